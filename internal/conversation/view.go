package conversation

import (
	"context"
	"errors"
	"strings"
	"sync"

	"floatai/internal/aggregator"
	"floatai/internal/model"

	"github.com/google/uuid"
)

var (
	ErrEmptyInput      = errors.New("message text is empty")
	ErrTurnInProgress  = errors.New("a turn is already in progress")
	ErrTurnMismatch    = errors.New("turn is not the open turn")
	ErrViewClosed      = errors.New("view is closed")
	ErrIndexOutOfRange = errors.New("message index out of range")
)

// Phase 轮次生命周期阶段
type Phase int

const (
	Idle Phase = iota
	Streaming
)

func (p Phase) String() string {
	if p == Streaming {
		return "streaming"
	}
	return "idle"
}

// View 会话视图：会话记录、累积状态以及负责渲染的订阅者，视图之间不共享状态。
//
// 快照在持有 mu 时发布，订阅者按变更顺序收到快照。
type View struct {
	id string

	mu         sync.RWMutex
	transcript model.Transcript
	state      aggregator.State
	chatID     string
	cancelTurn context.CancelFunc
	closed     bool

	subs    map[int]chan model.Transcript
	nextSub int
}

// NewView 创建会话视图
func NewView(id string) *View {
	if id == "" {
		id = uuid.New().String()
	}
	return &View{
		id:   id,
		subs: make(map[int]chan model.Transcript),
	}
}

func (v *View) ID() string {
	return v.id
}

// Transcript 返回当前快照，之后的变更不会影响它
func (v *View) Transcript() model.Transcript {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.transcript
}

func (v *View) Phase() Phase {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.state.Open() {
		return Streaming
	}
	return Idle
}

// OpenTurn 当前轮次ID，空闲时为空
func (v *View) OpenTurn() model.TurnID {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.state.Turn
}

// ChatID 视图对应的已保存会话ID
func (v *View) ChatID() string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.chatID
}

func (v *View) SetChatID(id string) {
	v.mu.Lock()
	v.chatID = id
	v.mu.Unlock()
}

// Load 用已保存的会话替换会话记录，仅空闲时允许
func (v *View) Load(chatID string, t model.Transcript) error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return ErrViewClosed
	}
	if v.state.Open() {
		v.mu.Unlock()
		return ErrTurnInProgress
	}
	v.transcript = t
	v.chatID = chatID
	v.publishLocked()
	v.mu.Unlock()
	return nil
}

// Begin 追加用户消息并开启新轮次，轮次结束或视图关闭时返回的 context 被取消
func (v *View) Begin(ctx context.Context, text string) (model.TurnID, context.Context, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil, ErrEmptyInput
	}

	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return "", nil, ErrViewClosed
	}
	turn := model.TurnID(uuid.New().String())
	state, ok := aggregator.Begin(v.state, turn)
	if !ok {
		v.mu.Unlock()
		return "", nil, ErrTurnInProgress
	}
	v.state = state
	v.transcript = v.transcript.Append(model.NewUserMessage(text))
	turnCtx, cancel := context.WithCancel(ctx)
	v.cancelTurn = cancel
	v.publishLocked()
	v.mu.Unlock()

	return turn, turnCtx, nil
}

// Apply 折叠一个流式事件，会话记录有变化时通知订阅者
func (v *View) Apply(ev model.StreamEvent) aggregator.Outcome {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return aggregator.Rejected
	}
	t, s, outcome := aggregator.OnEvent(ev, v.transcript, v.state)
	v.transcript, v.state = t, s
	if outcome == aggregator.Sealed || outcome == aggregator.Reset {
		v.endTurnLocked()
	}
	if outcome.Changed() {
		v.publishLocked()
	}
	return outcome
}

// Complete 用完整回复结束非流式轮次
func (v *View) Complete(turn model.TurnID, res model.CompletionResult) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return ErrViewClosed
	}
	if !v.state.Open() || v.state.Turn != turn {
		return ErrTurnMismatch
	}
	v.transcript = aggregator.OnComplete(res, v.transcript)
	v.state = aggregator.State{}
	v.endTurnLocked()
	v.publishLocked()
	return nil
}

// Abort 传输失败后结束轮次，删除未完成的助手消息
func (v *View) Abort(turn model.TurnID) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed || v.state.Turn != turn {
		return
	}
	before := v.transcript.Len()
	v.transcript, v.state = aggregator.Abort(v.transcript, v.state)
	v.endTurnLocked()
	if v.transcript.Len() != before {
		v.publishLocked()
	}
}

// SetReasoningCollapsed 设置第 i 条消息推理内容的折叠状态
func (v *View) SetReasoningCollapsed(i int, collapsed bool) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if i < 0 || i >= v.transcript.Len() {
		return ErrIndexOutOfRange
	}
	msgs := v.transcript.Messages()
	msgs[i].IsReasoningCollapsed = collapsed
	v.transcript = model.NewTranscript(msgs...)
	v.publishLocked()
	return nil
}

func (v *View) endTurnLocked() {
	if v.cancelTurn != nil {
		v.cancelTurn()
	}
	v.cancelTurn = nil
}

// Close 关闭视图：取消进行中的轮次，释放订阅者
func (v *View) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return
	}
	v.closed = true
	v.endTurnLocked()
	for id, ch := range v.subs {
		close(ch)
		delete(v.subs, id)
	}
}

// Subscribe 注册订阅者。通道中只保留最新快照，未读取的旧快照会被替换而不是排队，
// 当前会话记录立即送达。
func (v *View) Subscribe() (<-chan model.Transcript, func()) {
	v.mu.Lock()
	defer v.mu.Unlock()

	ch := make(chan model.Transcript, 1)
	if v.closed {
		close(ch)
		return ch, func() {}
	}
	id := v.nextSub
	v.nextSub++
	v.subs[id] = ch
	ch <- v.transcript

	cancel := func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		if c, ok := v.subs[id]; ok {
			delete(v.subs, id)
			close(c)
		}
	}
	return ch, cancel
}

func (v *View) publishLocked() {
	for _, ch := range v.subs {
		select {
		case <-ch:
		default:
		}
		ch <- v.transcript
	}
}
