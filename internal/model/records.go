package model

import (
	"strings"
	"time"
)

// 设置项键名
const (
	SettingSelectedModel = "selected_model"
	SettingAPIKey        = "api_key"
	SettingUseStreamChat = "use_stream_chat"
	SettingLanguage      = "language"
)

// SettingKeys 设置接口接受的全部键
var SettingKeys = []string{
	SettingSelectedModel,
	SettingAPIKey,
	SettingUseStreamChat,
	SettingLanguage,
}

// ModelConfig 模型配置：一个OpenAI兼容的接入点
type ModelConfig struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	APIKey    string    `json:"api_key"`
	BaseURL   string    `json:"base_url"`
	ModelID   string    `json:"model_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (m ModelConfig) RecordID() string      { return m.ID }
func (m ModelConfig) RecordTime() time.Time { return m.CreatedAt }

// Prompt 提示词模板
type Prompt struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	SystemRole  string    `json:"system_role,omitempty"`
	UserRole    string    `json:"user_role,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (p Prompt) RecordID() string      { return p.ID }
func (p Prompt) RecordTime() time.Time { return p.CreatedAt }

// 对话角色
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type ChatMessage struct {
	Role             string `json:"role"`
	Content          string `json:"content"`
	ReasoningContent string `json:"reasoning_content,omitempty"`
}

// ChatSession 已保存的会话
type ChatSession struct {
	ID        string        `json:"id"`
	Title     string        `json:"title"`
	ModelID   string        `json:"model_id"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
	Messages  []ChatMessage `json:"messages"`
}

func (c ChatSession) RecordID() string      { return c.ID }
func (c ChatSession) RecordTime() time.Time { return c.CreatedAt }

// DefaultChatTitle 没有可用的用户消息时的默认标题
const DefaultChatTitle = "New Chat"

const chatTitleRunes = 20

// ChatTitle 取最近一条用户消息作为会话标题
func ChatTitle(messages []ChatMessage) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role != RoleUser {
			continue
		}
		runes := []rune(strings.TrimSpace(messages[i].Content))
		if len(runes) == 0 {
			break
		}
		if len(runes) > chatTitleRunes {
			runes = runes[:chatTitleRunes]
		}
		return string(runes)
	}
	return DefaultChatTitle
}

// ChatMessagesFromTranscript 把会话记录中已封存的消息转换为持久化消息
func ChatMessagesFromTranscript(t Transcript) []ChatMessage {
	out := make([]ChatMessage, 0, t.Len())
	for _, m := range t.Messages() {
		if !m.Sealed {
			continue
		}
		role := RoleAssistant
		if m.IsUser {
			role = RoleUser
		}
		out = append(out, ChatMessage{
			Role:             role,
			Content:          m.Content,
			ReasoningContent: m.Reasoning(),
		})
	}
	return out
}

// TranscriptFromChatMessages 从已保存的会话恢复会话记录，系统消息不显示
func TranscriptFromChatMessages(messages []ChatMessage) Transcript {
	out := make([]Message, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleUser:
			out = append(out, NewUserMessage(m.Content))
		case RoleAssistant:
			out = append(out, NewAssistantMessage(m.Content, m.ReasoningContent, true))
		}
	}
	return NewTranscript(out...)
}
