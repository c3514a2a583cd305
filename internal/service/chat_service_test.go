package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"floatai/internal/config"
	"floatai/internal/conversation"
	"floatai/internal/model"
	"floatai/internal/storage"
	"floatai/internal/transport"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTransport 回放预设事件并记录收到的请求
type fakeTransport struct {
	mu       sync.Mutex
	requests []transport.Request

	deltas    []model.Delta
	streamErr error // 代替 reader 返回
	recvErr   error // 增量之后代替 Done 返回
	noDone    bool
	result    model.CompletionResult
	complErr  error
}

func (f *fakeTransport) record(req transport.Request) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
}

func (f *fakeTransport) calls() []transport.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]transport.Request(nil), f.requests...)
}

func (f *fakeTransport) Stream(ctx context.Context, req transport.Request) (*schema.StreamReader[model.StreamEvent], error) {
	f.record(req)
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	reader, writer := schema.Pipe[model.StreamEvent](len(f.deltas) + 1)
	go func() {
		defer writer.Close()
		for _, d := range f.deltas {
			d.Turn = req.Turn
			writer.Send(d, nil)
		}
		switch {
		case f.recvErr != nil:
			writer.Send(nil, f.recvErr)
		case !f.noDone:
			writer.Send(model.Done{Turn: req.Turn}, nil)
		}
	}()
	return reader, nil
}

func (f *fakeTransport) Complete(ctx context.Context, req transport.Request) (model.CompletionResult, error) {
	f.record(req)
	return f.result, f.complErr
}

func testConfig() *config.Config {
	return &config.Config{
		Provider: config.ProviderConfig{
			BaseURL:      "https://api.deepseek.com",
			DefaultModel: "deepseek-chat",
			SystemPrompt: "You are a helpful assistant.",
		},
		Chat: config.ChatConfig{StreamDefault: true},
	}
}

func newTestStore(t *testing.T) storage.Storage {
	s := storage.NewMemoryStorage()
	require.NoError(t, s.Init())
	return s
}

func addModel(t *testing.T, s storage.Storage, id, key string, at time.Time) {
	require.NoError(t, s.Models().Create(model.ModelConfig{
		ID: id, Name: id, APIKey: key, BaseURL: "https://api.example.com/v1", ModelID: id + "-chat", CreatedAt: at,
	}))
}

func TestSend_StreamSealsAndPersists(t *testing.T) {
	store := newTestStore(t)
	addModel(t, store, "m1", "sk-1", time.Now())
	tr := &fakeTransport{deltas: []model.Delta{
		{Reasoning: "thinking "},
		{Reasoning: "hard", Content: "Hel"},
		{Content: "lo"},
	}}
	svc := NewChatService(store, tr, testConfig())
	view := conversation.NewView("")

	mode, err := svc.Send(context.Background(), view, model.TurnInput{Text: "Hi"})
	require.NoError(t, err)
	assert.Equal(t, ModeStream, mode)

	msgs := view.Transcript().Messages()
	require.Len(t, msgs, 2)
	assert.True(t, msgs[0].IsUser)
	assert.Equal(t, "Hello", msgs[1].Content)
	assert.Equal(t, "thinking hard", msgs[1].Reasoning())
	assert.True(t, msgs[1].Sealed)
	assert.Equal(t, conversation.Idle, view.Phase())

	req := tr.calls()[0]
	assert.Equal(t, "sk-1", req.Endpoint.APIKey)
	assert.Equal(t, "m1-chat", req.Endpoint.Model)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, model.RoleSystem, req.Messages[0].Role)
	assert.Equal(t, "Hi", req.Messages[1].Content)

	chat, err := store.Chats().Get(view.ChatID())
	require.NoError(t, err)
	assert.Equal(t, "Hi", chat.Title)
	assert.Equal(t, "m1", chat.ModelID)
	assert.Len(t, chat.Messages, 2)
}

func TestSend_SecondTurnUpdatesChat(t *testing.T) {
	store := newTestStore(t)
	addModel(t, store, "m1", "sk-1", time.Now())
	tr := &fakeTransport{deltas: []model.Delta{{Content: "ok"}}}
	cfg := testConfig()
	cfg.Chat.MaxHistoryMessages = 10
	svc := NewChatService(store, tr, cfg)
	view := conversation.NewView("")

	_, err := svc.Send(context.Background(), view, model.TurnInput{Text: "first"})
	require.NoError(t, err)
	chatID := view.ChatID()
	_, err = svc.Send(context.Background(), view, model.TurnInput{Text: "second question"})
	require.NoError(t, err)

	assert.Equal(t, chatID, view.ChatID())
	chats, err := svc.ListChats()
	require.NoError(t, err)
	require.Len(t, chats, 1)
	assert.Equal(t, "second question", chats[0].Title)
	assert.Equal(t, 4, chats[0].MessageCount)

	// 系统提示词 + 两条历史消息 + 新的用户消息
	assert.Len(t, tr.calls()[1].Messages, 4)
}

func TestSend_NonStream(t *testing.T) {
	store := newTestStore(t)
	addModel(t, store, "m1", "sk-1", time.Now())
	require.NoError(t, store.Settings().Set(model.SettingUseStreamChat, "false"))
	tr := &fakeTransport{result: model.CompletionResult{Content: "Answer"}}
	svc := NewChatService(store, tr, testConfig())
	view := conversation.NewView("")

	mode, err := svc.Send(context.Background(), view, model.TurnInput{Text: "Q"})
	require.NoError(t, err)
	assert.Equal(t, ModeComplete, mode)

	last, ok := view.Transcript().Last()
	require.True(t, ok)
	assert.Equal(t, "Answer", last.Content)
	assert.Nil(t, last.ReasoningContent)
	assert.True(t, last.Sealed)
}

func TestSend_MissingConfigLeavesTranscript(t *testing.T) {
	store := newTestStore(t)
	tr := &fakeTransport{}
	svc := NewChatService(store, tr, testConfig())
	view := conversation.NewView("")

	_, err := svc.Send(context.Background(), view, model.TurnInput{Text: "Hi"})
	assert.ErrorIs(t, err, ErrMissingConfig)

	addModel(t, store, "m1", "", time.Now())
	_, err = svc.Send(context.Background(), view, model.TurnInput{Text: "Hi"})
	assert.ErrorIs(t, err, ErrMissingConfig)

	assert.Equal(t, 0, view.Transcript().Len())
	assert.Empty(t, tr.calls())
}

func TestSend_CredentialFallback(t *testing.T) {
	store := newTestStore(t)
	addModel(t, store, "m1", "", time.Now())
	tr := &fakeTransport{}
	cfg := testConfig()
	cfg.Provider.APIKey = "sk-config"
	svc := NewChatService(store, tr, cfg)

	_, err := svc.Send(context.Background(), conversation.NewView(""), model.TurnInput{Text: "a"})
	require.NoError(t, err)
	assert.Equal(t, "sk-config", tr.calls()[0].Endpoint.APIKey)

	require.NoError(t, store.Settings().Set(model.SettingAPIKey, "sk-setting"))
	_, err = svc.Send(context.Background(), conversation.NewView(""), model.TurnInput{Text: "b"})
	require.NoError(t, err)
	assert.Equal(t, "sk-setting", tr.calls()[1].Endpoint.APIKey)
}

func TestSend_SelectedModelFallback(t *testing.T) {
	store := newTestStore(t)
	base := time.Now()
	addModel(t, store, "first", "sk", base)
	addModel(t, store, "second", "sk", base.Add(time.Second))
	tr := &fakeTransport{}
	svc := NewChatService(store, tr, testConfig())

	require.NoError(t, store.Settings().Set(model.SettingSelectedModel, "second"))
	_, err := svc.Send(context.Background(), conversation.NewView(""), model.TurnInput{Text: "a"})
	require.NoError(t, err)
	assert.Equal(t, "second-chat", tr.calls()[0].Endpoint.Model)

	require.NoError(t, store.Settings().Set(model.SettingSelectedModel, "gone"))
	_, err = svc.Send(context.Background(), conversation.NewView(""), model.TurnInput{Text: "b"})
	require.NoError(t, err)
	assert.Equal(t, "first-chat", tr.calls()[1].Endpoint.Model)

	selected, err := store.Settings().Get(model.SettingSelectedModel)
	require.NoError(t, err)
	assert.Equal(t, "first", selected)
}

func TestSend_TransportFailureAborts(t *testing.T) {
	store := newTestStore(t)
	addModel(t, store, "m1", "sk-1", time.Now())
	boom := errors.New("connection reset")
	tr := &fakeTransport{deltas: []model.Delta{{Content: "partial"}}, recvErr: boom}
	svc := NewChatService(store, tr, testConfig())
	view := conversation.NewView("")

	_, err := svc.Send(context.Background(), view, model.TurnInput{Text: "Hi"})
	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	assert.ErrorIs(t, err, boom)

	msgs := view.Transcript().Messages()
	require.Len(t, msgs, 1)
	assert.True(t, msgs[0].IsUser)
	assert.Equal(t, conversation.Idle, view.Phase())

	// 视图可以开始下一轮
	tr.recvErr = nil
	_, err = svc.Send(context.Background(), view, model.TurnInput{Text: "again"})
	require.NoError(t, err)
	assert.Equal(t, 3, view.Transcript().Len())
}

func TestSend_StreamRefused(t *testing.T) {
	store := newTestStore(t)
	addModel(t, store, "m1", "sk-1", time.Now())
	tr := &fakeTransport{streamErr: errors.New("401 unauthorized")}
	svc := NewChatService(store, tr, testConfig())
	view := conversation.NewView("")

	_, err := svc.Send(context.Background(), view, model.TurnInput{Text: "Hi"})
	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, 1, view.Transcript().Len())
	assert.Equal(t, conversation.Idle, view.Phase())
}

func TestSend_StreamClosedWithoutDone(t *testing.T) {
	store := newTestStore(t)
	addModel(t, store, "m1", "sk-1", time.Now())
	tr := &fakeTransport{deltas: []model.Delta{{Content: "cut"}}, noDone: true}
	svc := NewChatService(store, tr, testConfig())
	view := conversation.NewView("")

	_, err := svc.Send(context.Background(), view, model.TurnInput{Text: "Hi"})
	require.NoError(t, err)
	last, _ := view.Transcript().Last()
	assert.Equal(t, "cut", last.Content)
	assert.True(t, last.Sealed)
}

func TestSend_EmptyInput(t *testing.T) {
	svc := NewChatService(newTestStore(t), &fakeTransport{}, testConfig())
	_, err := svc.Send(context.Background(), conversation.NewView(""), model.TurnInput{Text: "  "})
	assert.ErrorIs(t, err, conversation.ErrEmptyInput)
}

func TestSend_TurnInProgress(t *testing.T) {
	store := newTestStore(t)
	addModel(t, store, "m1", "sk-1", time.Now())
	svc := NewChatService(store, &fakeTransport{}, testConfig())
	view := conversation.NewView("")
	_, _, err := view.Begin(context.Background(), "pending")
	require.NoError(t, err)

	_, err = svc.Send(context.Background(), view, model.TurnInput{Text: "Hi"})
	assert.ErrorIs(t, err, conversation.ErrTurnInProgress)
}

func TestSend_Prompt(t *testing.T) {
	store := newTestStore(t)
	addModel(t, store, "m1", "sk-1", time.Now())
	require.NoError(t, store.Prompts().Create(model.Prompt{
		ID: "tr", Name: "Translator", SystemRole: "You translate.", UserRole: "Translate to French: {{.Input}}",
	}))
	require.NoError(t, store.Prompts().Create(model.Prompt{
		ID: "plain", Name: "Plain", UserRole: "Be brief.",
	}))
	tr := &fakeTransport{}
	svc := NewChatService(store, tr, testConfig())

	view := conversation.NewView("")
	_, err := svc.Send(context.Background(), view, model.TurnInput{Text: "cat", PromptID: "tr"})
	require.NoError(t, err)
	req := tr.calls()[0]
	assert.Equal(t, "You translate.", req.Messages[0].Content)
	assert.Equal(t, "Translate to French: cat", req.Messages[1].Content)
	assert.Equal(t, "cat", view.Transcript().At(0).Content)

	_, err = svc.Send(context.Background(), conversation.NewView(""), model.TurnInput{Text: "dog", PromptID: "plain"})
	require.NoError(t, err)
	req = tr.calls()[1]
	assert.Equal(t, "You are a helpful assistant.", req.Messages[0].Content)
	assert.Equal(t, "Be brief.\n\ndog", req.Messages[1].Content)

	_, err = svc.Send(context.Background(), conversation.NewView(""), model.TurnInput{Text: "x", PromptID: "nope"})
	assert.ErrorIs(t, err, ErrPromptNotFound)
}

func TestOpenChat(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Chats().Create(model.ChatSession{
		ID: "c1",
		Messages: []model.ChatMessage{
			{Role: model.RoleUser, Content: "q"},
			{Role: model.RoleAssistant, Content: "a", ReasoningContent: "r"},
		},
	}))
	svc := NewChatService(store, &fakeTransport{}, testConfig())
	view := conversation.NewView("")

	require.NoError(t, svc.OpenChat(view, "c1"))
	assert.Equal(t, "c1", view.ChatID())
	assert.Equal(t, 2, view.Transcript().Len())
	assert.Equal(t, "r", view.Transcript().At(1).Reasoning())

	assert.ErrorIs(t, svc.OpenChat(view, "missing"), ErrNotFound)
	require.NoError(t, svc.DeleteChat("c1"))
	assert.ErrorIs(t, svc.DeleteChat("c1"), ErrNotFound)
}
