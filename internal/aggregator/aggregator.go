// Package aggregator 把一轮对话的流式事件折叠为会话记录的变更。
//
// 所有函数都是纯函数：按值接收当前会话记录和状态，返回新的会话记录和状态。
// 调用方持有二者，每个会话视图一份。
//
// 推理内容与正文一样按增量拼接。若上游返回的是推理快照，传输层需要先换算成增量再发出事件。
//
// 每个事件都带有发送时生成的 TurnID，不属于当前轮次的事件会被拒绝，
// 两个重叠的轮次不会互相污染累积内容。
package aggregator

import (
	"floatai/internal/model"
)

// State 每个视图的累积状态，零值即空闲
type State struct {
	Turn      model.TurnID
	Content   string
	Reasoning string
	InFlight  bool
}

// Open 轮次已开始且尚未封存
func (s State) Open() bool {
	return s.Turn != "" || s.InFlight
}

// Outcome 一次折叠对会话记录做了什么
type Outcome int

const (
	// Appended 追加了一条新的临时助手消息
	Appended Outcome = iota
	// Replaced 临时消息被更新后的副本替换
	Replaced
	// Sealed 临时消息已封存
	Sealed
	// Reset 结束事件关闭了一个没有产生消息的轮次
	Reset
	// Rejected 事件属于其他轮次，已忽略
	Rejected
)

func (o Outcome) String() string {
	switch o {
	case Appended:
		return "appended"
	case Replaced:
		return "replaced"
	case Sealed:
		return "sealed"
	case Reset:
		return "reset"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Changed 折叠后会话记录是否有变化
func (o Outcome) Changed() bool {
	return o == Appended || o == Replaced || o == Sealed
}

// Begin 在空闲状态上开启新轮次，已开启的状态原样返回并附带 false
func Begin(s State, turn model.TurnID) (State, bool) {
	if s.Open() {
		return s, false
	}
	return State{Turn: turn}, true
}

// OnEvent 把一个事件折叠进会话记录
func OnEvent(ev model.StreamEvent, t model.Transcript, s State) (model.Transcript, State, Outcome) {
	if !accepts(s, ev.TurnOf()) {
		return t, s, Rejected
	}

	switch e := ev.(type) {
	case model.Delta:
		return onDelta(e, t, s)
	case model.Done:
		return onDone(t, s)
	default:
		return t, s, Rejected
	}
}

func accepts(s State, turn model.TurnID) bool {
	if turn == "" || s.Turn == "" {
		return true
	}
	return turn == s.Turn
}

func onDelta(e model.Delta, t model.Transcript, s State) (model.Transcript, State, Outcome) {
	next := State{
		Turn:      s.Turn,
		Content:   s.Content + e.Content,
		Reasoning: s.Reasoning + e.Reasoning,
		InFlight:  true,
	}
	if next.Turn == "" {
		// 没有开启的轮次：沿用事件的轮次，后续事件同样受校验
		next.Turn = e.Turn
	}

	msg := model.NewAssistantMessage(next.Content, next.Reasoning, false)
	if !s.InFlight || !t.InFlight() {
		return t.Append(msg), next, Appended
	}
	return t.ReplaceLast(carryDisplay(t, msg)), next, Replaced
}

func onDone(t model.Transcript, s State) (model.Transcript, State, Outcome) {
	if !s.InFlight || !t.InFlight() {
		return t, State{}, Reset
	}
	final := model.NewAssistantMessage(s.Content, s.Reasoning, true)
	return t.ReplaceLast(carryDisplay(t, final)), State{}, Sealed
}

// carryDisplay 替换副本时保留渲染端的折叠标记
func carryDisplay(t model.Transcript, msg model.Message) model.Message {
	if last, ok := t.Last(); ok {
		msg.IsReasoningCollapsed = last.IsReasoningCollapsed
	}
	return msg
}

// OnComplete 追加非流式轮次的完整回复（已封存）
func OnComplete(res model.CompletionResult, t model.Transcript) model.Transcript {
	return t.Append(model.NewAssistantMessage(res.Content, res.ReasoningContent, true))
}

// Abort 传输失败后结束当前轮次：删除临时消息，已封存的消息不受影响
func Abort(t model.Transcript, s State) (model.Transcript, State) {
	if s.InFlight && t.InFlight() {
		t = t.DropLast()
	}
	return t, State{}
}
