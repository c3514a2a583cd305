package model

// TurnID 一次发送/流式响应的标识，发送时生成，随该轮次的每个事件传递，
// 用于区分重叠或过期轮次的事件。
type TurnID string

// StreamEvent 传输层为一个轮次推送的事件，只有 Delta 和 Done 两种实现
type StreamEvent interface {
	TurnOf() TurnID
	streamEvent()
}

// Delta 正文和推理内容的增量片段，由聚合器拼接
type Delta struct {
	Turn      TurnID `json:"turn_id,omitempty"`
	Content   string `json:"content"`
	Reasoning string `json:"reasoning_content"`
}

// Done 结束一个轮次，不携带内容
type Done struct {
	Turn TurnID `json:"turn_id,omitempty"`
}

func (d Delta) TurnOf() TurnID { return d.Turn }
func (Delta) streamEvent()     {}

func (d Done) TurnOf() TurnID { return d.Turn }
func (Done) streamEvent()     {}

// CompletionResult 非流式模式的完整回复
type CompletionResult struct {
	Content          string `json:"content"`
	ReasoningContent string `json:"reasoning_content"`
}

// TurnInput 用户一轮提交的内容
type TurnInput struct {
	Text     string `json:"text"`
	PromptID string `json:"prompt_id,omitempty"`
}
