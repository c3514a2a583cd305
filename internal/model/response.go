package model

import "time"

// MessageResponse 通过SSE推送的一次会话记录变更
type MessageResponse struct {
	ViewID    string  `json:"view_id"`
	TurnID    TurnID  `json:"turn_id,omitempty"`
	Index     int     `json:"index"`
	Message   Message `json:"message"`
	Timestamp int64   `json:"timestamp"`
}

type ViewResponse struct {
	ViewID   string    `json:"view_id"`
	ChatID   string    `json:"chat_id,omitempty"`
	Phase    string    `json:"phase"`
	Messages []Message `json:"messages"`
}

// ChatSummary 会话列表项
type ChatSummary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	ModelID      string    `json:"model_id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
}

func SummarizeChat(c ChatSession) ChatSummary {
	return ChatSummary{
		ID:           c.ID,
		Title:        c.Title,
		ModelID:      c.ModelID,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
		MessageCount: len(c.Messages),
	}
}

// RedactedKey 响应中替代已保存的密钥，更新时原样传回则保留原密钥
const RedactedKey = "********"

// RedactedModel 返回模型配置前隐藏密钥
func RedactedModel(m ModelConfig) ModelConfig {
	if m.APIKey != "" {
		m.APIKey = RedactedKey
	}
	return m
}
