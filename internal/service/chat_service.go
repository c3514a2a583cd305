package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"floatai/internal/aggregator"
	"floatai/internal/config"
	"floatai/internal/conversation"
	"floatai/internal/model"
	"floatai/internal/storage"
	"floatai/internal/transport"
	"floatai/pkg/logger"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Mode 轮次的应答方式
type Mode int

const (
	ModeStream Mode = iota
	ModeComplete
)

func (m Mode) String() string {
	if m == ModeComplete {
		return "complete"
	}
	return "stream"
}

type ChatService struct {
	store     storage.Storage
	transport transport.Transport
	cfg       *config.Config
}

func NewChatService(store storage.Storage, tr transport.Transport, cfg *config.Config) *ChatService {
	return &ChatService{
		store:     store,
		transport: tr,
		cfg:       cfg,
	}
}

// target 轮次解析出的模型和接入点
type target struct {
	model    model.ModelConfig
	endpoint transport.Endpoint
}

// Turn 已准备好的轮次：用户消息已写入会话记录，请求已构建，Run 必须且只能调用一次
type Turn struct {
	ID   model.TurnID
	Mode Mode

	view    *conversation.View
	ctx     context.Context
	cancel  context.CancelFunc
	req     transport.Request
	modelID string
	log     *logrus.Entry
}

// Send 在视图上执行一轮对话：追加用户消息，请求模型，并把回复折叠进会话记录直到封存
func (s *ChatService) Send(ctx context.Context, view *conversation.View, in model.TurnInput) (Mode, error) {
	turn, err := s.Prepare(ctx, view, in)
	if err != nil {
		return 0, err
	}
	return turn.Mode, s.Run(turn)
}

// Prepare 解析模型、密钥和提示词后在视图上开启轮次，配置问题在修改会话记录之前返回
func (s *ChatService) Prepare(ctx context.Context, view *conversation.View, in model.TurnInput) (*Turn, error) {
	if strings.TrimSpace(in.Text) == "" {
		return nil, conversation.ErrEmptyInput
	}

	tgt, err := s.resolveTarget()
	if err != nil {
		return nil, err
	}
	system, userText, err := s.resolvePrompt(in)
	if err != nil {
		return nil, err
	}
	mode := s.mode()

	history := s.history(view.Transcript())
	id, turnCtx, err := view.Begin(ctx, in.Text)
	if err != nil {
		return nil, err
	}
	cancel := context.CancelFunc(func() {})
	if timeout := s.cfg.Chat.TurnTimeout; timeout > 0 {
		turnCtx, cancel = context.WithTimeout(turnCtx, timeout)
	}

	messages := make([]model.ChatMessage, 0, len(history)+2)
	if system != "" {
		messages = append(messages, model.ChatMessage{Role: model.RoleSystem, Content: system})
	}
	messages = append(messages, history...)
	messages = append(messages, model.ChatMessage{Role: model.RoleUser, Content: userText})

	return &Turn{
		ID:     id,
		Mode:   mode,
		view:   view,
		ctx:    turnCtx,
		cancel: cancel,
		req: transport.Request{
			Turn:     id,
			Endpoint: tgt.endpoint,
			Messages: messages,
		},
		modelID: tgt.model.ID,
		log: logger.WithFields(logrus.Fields{
			"view_id": view.ID(),
			"turn_id": id,
			"model":   tgt.endpoint.Model,
			"mode":    mode.String(),
		}),
	}, nil
}

// Run 请求模型并把回复折叠进视图，调用失败时中止轮次并返回 *TransportError
func (s *ChatService) Run(t *Turn) error {
	defer t.cancel()
	t.log.Debugf("turn started with %d messages", len(t.req.Messages))

	switch t.Mode {
	case ModeComplete:
		res, err := s.transport.Complete(t.ctx, t.req)
		if err != nil {
			t.view.Abort(t.ID)
			t.log.Warnf("completion failed: %v", err)
			return &TransportError{Turn: t.ID, Err: err}
		}
		if err := t.view.Complete(t.ID, res); err != nil {
			return err
		}
	default:
		if err := s.stream(t.ctx, t.view, t.req); err != nil {
			t.view.Abort(t.ID)
			t.log.Warnf("stream failed: %v", err)
			return &TransportError{Turn: t.ID, Err: err}
		}
	}
	t.log.Debug("turn sealed")

	if err := s.persist(t.view, t.modelID); err != nil {
		t.log.Errorf("failed to persist chat: %v", err)
	}
	return nil
}

// stream 把模型返回的事件折叠进视图直到轮次结束
func (s *ChatService) stream(ctx context.Context, view *conversation.View, req transport.Request) error {
	reader, err := s.transport.Stream(ctx, req)
	if err != nil {
		return err
	}
	defer reader.Close()

	for {
		ev, err := reader.Recv()
		if errors.Is(err, io.EOF) {
			// 没有结束事件就关闭了：以已收到的内容结束
			if view.OpenTurn() == req.Turn {
				view.Apply(model.Done{Turn: req.Turn})
			}
			return nil
		}
		if err != nil {
			return err
		}
		if ev == nil {
			continue
		}

		switch view.Apply(ev) {
		case aggregator.Sealed, aggregator.Reset:
			return nil
		}
	}
}

// resolveTarget 选择本轮使用的模型：已选模型存在时使用它，否则使用第一个模型并记为已选
func (s *ChatService) resolveTarget() (target, error) {
	models, err := s.store.Models().List()
	if err != nil {
		return target{}, fmt.Errorf("failed to list models: %w", err)
	}
	if len(models) == 0 {
		return target{}, fmt.Errorf("%w: no model configured", ErrMissingConfig)
	}

	selected, err := s.store.Settings().Get(model.SettingSelectedModel)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return target{}, fmt.Errorf("failed to read settings: %w", err)
	}

	chosen := models[0]
	found := false
	for _, m := range models {
		if m.ID == selected {
			chosen, found = m, true
			break
		}
	}
	if !found {
		if err := s.store.Settings().Set(model.SettingSelectedModel, chosen.ID); err != nil {
			logger.Warnf("failed to persist selected model: %v", err)
		}
	}

	apiKey := chosen.APIKey
	if apiKey == "" {
		apiKey, err = s.store.Settings().Get(model.SettingAPIKey)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return target{}, fmt.Errorf("failed to read settings: %w", err)
		}
	}
	if apiKey == "" {
		apiKey = s.cfg.Provider.APIKey
	}
	if apiKey == "" {
		return target{}, fmt.Errorf("%w: no api key for model %q", ErrMissingConfig, chosen.Name)
	}

	modelID := chosen.ModelID
	if modelID == "" {
		modelID = s.cfg.Provider.DefaultModel
	}
	baseURL := chosen.BaseURL
	if baseURL == "" {
		baseURL = s.cfg.Provider.BaseURL
	}
	if modelID == "" {
		return target{}, fmt.Errorf("%w: model %q has no model id", ErrMissingConfig, chosen.Name)
	}

	return target{
		model: chosen,
		endpoint: transport.Endpoint{
			BaseURL: baseURL,
			APIKey:  apiKey,
			Model:   modelID,
		},
	}, nil
}

// resolvePrompt 返回系统提示词和发送的用户文本
func (s *ChatService) resolvePrompt(in model.TurnInput) (string, string, error) {
	system := s.cfg.Provider.SystemPrompt
	if in.PromptID == "" {
		return system, in.Text, nil
	}

	p, err := s.store.Prompts().Get(in.PromptID)
	if errors.Is(err, storage.ErrNotFound) {
		return "", "", fmt.Errorf("%w: %s", ErrPromptNotFound, in.PromptID)
	}
	if err != nil {
		return "", "", fmt.Errorf("failed to get prompt: %w", err)
	}

	if strings.TrimSpace(p.SystemRole) != "" {
		system = p.SystemRole
	}
	text, err := applyUserRole(p.UserRole, in.Text)
	if err != nil {
		return "", "", err
	}
	return system, text, nil
}

func (s *ChatService) mode() Mode {
	stream := s.cfg.Chat.StreamDefault
	if v, err := s.store.Settings().Get(model.SettingUseStreamChat); err == nil {
		if b, err := strconv.ParseBool(v); err == nil {
			stream = b
		}
	}
	if stream {
		return ModeStream
	}
	return ModeComplete
}

// history 随轮次发送的历史消息，未设置 chat.max_history_messages 时不发送
func (s *ChatService) history(t model.Transcript) []model.ChatMessage {
	limit := s.cfg.Chat.MaxHistoryMessages
	if limit <= 0 {
		return nil
	}
	msgs := model.ChatMessagesFromTranscript(t)
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs
}

// persist 把视图已封存的会话记录保存为会话，首轮时创建
func (s *ChatService) persist(view *conversation.View, modelID string) error {
	msgs := model.ChatMessagesFromTranscript(view.Transcript())
	now := time.Now()

	if id := view.ChatID(); id != "" {
		chat, err := s.store.Chats().Get(id)
		if err == nil {
			chat.Title = model.ChatTitle(msgs)
			chat.ModelID = modelID
			chat.Messages = msgs
			chat.UpdatedAt = now
			return s.store.Chats().Update(chat)
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return err
		}
	}

	chat := model.ChatSession{
		ID:        uuid.New().String(),
		Title:     model.ChatTitle(msgs),
		ModelID:   modelID,
		CreatedAt: now,
		UpdatedAt: now,
		Messages:  msgs,
	}
	if err := s.store.Chats().Create(chat); err != nil {
		return err
	}
	view.SetChatID(chat.ID)
	return nil
}

func (s *ChatService) ListChats() ([]model.ChatSummary, error) {
	chats, err := s.store.Chats().List()
	if err != nil {
		return nil, fmt.Errorf("failed to list chats: %w", err)
	}
	out := make([]model.ChatSummary, 0, len(chats))
	for _, c := range chats {
		out = append(out, model.SummarizeChat(c))
	}
	return out, nil
}

func (s *ChatService) GetChat(id string) (model.ChatSession, error) {
	chat, err := s.store.Chats().Get(id)
	if errors.Is(err, storage.ErrNotFound) {
		return chat, fmt.Errorf("%w: chat %s", ErrNotFound, id)
	}
	return chat, err
}

func (s *ChatService) DeleteChat(id string) error {
	err := s.store.Chats().Delete(id)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%w: chat %s", ErrNotFound, id)
	}
	return err
}

// OpenChat 把已保存的会话加载进视图，下一轮接着对话
func (s *ChatService) OpenChat(view *conversation.View, id string) error {
	chat, err := s.GetChat(id)
	if err != nil {
		return err
	}
	return view.Load(chat.ID, model.TranscriptFromChatMessages(chat.Messages))
}
