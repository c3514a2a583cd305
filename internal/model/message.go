package model

// Message 渲染端看到的一条消息
type Message struct {
	Content              string  `json:"content"`
	IsUser               bool    `json:"is_user"`
	ReasoningContent     *string `json:"reasoning_content,omitempty"` // nil 表示模型没有推理内容
	IsReasoningCollapsed bool    `json:"is_reasoning_collapsed"`
	Sealed               bool    `json:"sealed"`
}

// NewUserMessage 用户消息整体创建，创建即封存
func NewUserMessage(text string) Message {
	return Message{
		Content: text,
		IsUser:  true,
		Sealed:  true,
	}
}

// NewAssistantMessage 用累积内容构建助手消息，空推理内容记为不存在
func NewAssistantMessage(content, reasoning string, sealed bool) Message {
	msg := Message{
		Content: content,
		Sealed:  sealed,
	}
	if reasoning != "" {
		r := reasoning
		msg.ReasoningContent = &r
	}
	return msg
}

// Reasoning 返回推理内容，不存在时为空
func (m Message) Reasoning() string {
	if m.ReasoningContent == nil {
		return ""
	}
	return *m.ReasoningContent
}

// Equal 按值比较，推理内容比较指针指向的值
func (m Message) Equal(o Message) bool {
	if m.Content != o.Content || m.IsUser != o.IsUser ||
		m.IsReasoningCollapsed != o.IsReasoningCollapsed || m.Sealed != o.Sealed {
		return false
	}
	if (m.ReasoningContent == nil) != (o.ReasoningContent == nil) {
		return false
	}
	return m.Reasoning() == o.Reasoning()
}

// Transcript 有序且不可变的消息列表。每次变更都基于新的底层数组返回新的 Transcript，
// 持有旧值的一方不会看到变化。
type Transcript struct {
	messages []Message
}

// NewTranscript 复制 msgs 创建会话记录
func NewTranscript(msgs ...Message) Transcript {
	cp := make([]Message, len(msgs))
	copy(cp, msgs)
	return Transcript{messages: cp}
}

func (t Transcript) Len() int {
	return len(t.messages)
}

func (t Transcript) At(i int) Message {
	return t.messages[i]
}

// Last 返回最后一条消息，会话记录为空时返回 false
func (t Transcript) Last() (Message, bool) {
	if len(t.messages) == 0 {
		return Message{}, false
	}
	return t.messages[len(t.messages)-1], true
}

// InFlight 最后一条消息是否仍在接收流式事件
func (t Transcript) InFlight() bool {
	last, ok := t.Last()
	return ok && !last.Sealed
}

// Messages 返回消息副本
func (t Transcript) Messages() []Message {
	cp := make([]Message, len(t.messages))
	copy(cp, t.messages)
	return cp
}

// Append 在末尾追加消息
func (t Transcript) Append(msg Message) Transcript {
	next := make([]Message, len(t.messages), len(t.messages)+1)
	copy(next, t.messages)
	return Transcript{messages: append(next, msg)}
}

// ReplaceLast 按值替换最后一条消息，会话记录为空时等同于 Append
func (t Transcript) ReplaceLast(msg Message) Transcript {
	if len(t.messages) == 0 {
		return t.Append(msg)
	}
	next := make([]Message, len(t.messages))
	copy(next, t.messages)
	next[len(next)-1] = msg
	return Transcript{messages: next}
}

// DropLast 去掉最后一条消息
func (t Transcript) DropLast() Transcript {
	if len(t.messages) == 0 {
		return t
	}
	return NewTranscript(t.messages[:len(t.messages)-1]...)
}
