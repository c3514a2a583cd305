package model

// SendRequest 发送一轮对话
type SendRequest struct {
	ViewID   string `json:"view_id" binding:"required"`
	Text     string `json:"text" binding:"required"`
	PromptID string `json:"prompt_id"`
}

type ModelRequest struct {
	Name    string `json:"name" binding:"required"`
	APIKey  string `json:"api_key"`
	BaseURL string `json:"base_url" binding:"required"`
	ModelID string `json:"model_id" binding:"required"`
}

type PromptRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	SystemRole  string `json:"system_role"`
	UserRole    string `json:"user_role"`
}

// SettingsRequest 部分更新，未提供的键保持不变
type SettingsRequest struct {
	Settings map[string]string `json:"settings" binding:"required"`
}

// CollapseRequest 设置单条消息推理内容的折叠状态
type CollapseRequest struct {
	Index     int  `json:"index"`
	Collapsed bool `json:"collapsed"`
}
