package service

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"floatai/internal/model"
	"floatai/internal/storage"

	"github.com/google/uuid"
)

// CatalogService 管理模型配置、提示词模板和设置
type CatalogService struct {
	store storage.Storage
}

func NewCatalogService(store storage.Storage) *CatalogService {
	return &CatalogService{store: store}
}

func notFound(kind, id string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%w: %s %s", ErrNotFound, kind, id)
	}
	return err
}

func (s *CatalogService) ListModels() ([]model.ModelConfig, error) {
	return s.store.Models().List()
}

func (s *CatalogService) GetModel(id string) (model.ModelConfig, error) {
	m, err := s.store.Models().Get(id)
	return m, notFound("model", id, err)
}

func validateModel(req model.ModelRequest) error {
	if strings.TrimSpace(req.Name) == "" {
		return validationError("model name is required")
	}
	if strings.TrimSpace(req.ModelID) == "" {
		return validationError("model id is required")
	}
	if !strings.HasPrefix(req.BaseURL, "http://") && !strings.HasPrefix(req.BaseURL, "https://") {
		return validationError("base url %q must be http(s)", req.BaseURL)
	}
	return nil
}

func (s *CatalogService) CreateModel(req model.ModelRequest) (model.ModelConfig, error) {
	if err := validateModel(req); err != nil {
		return model.ModelConfig{}, err
	}
	if req.APIKey == model.RedactedKey {
		req.APIKey = ""
	}

	now := time.Now()
	m := model.ModelConfig{
		ID:        uuid.New().String(),
		Name:      strings.TrimSpace(req.Name),
		APIKey:    req.APIKey,
		BaseURL:   strings.TrimRight(req.BaseURL, "/"),
		ModelID:   strings.TrimSpace(req.ModelID),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Models().Create(m); err != nil {
		return model.ModelConfig{}, fmt.Errorf("failed to create model: %w", err)
	}
	return m, nil
}

// UpdateModel 更新模型配置，api key 为 model.RedactedKey 时保留原密钥
func (s *CatalogService) UpdateModel(id string, req model.ModelRequest) (model.ModelConfig, error) {
	if err := validateModel(req); err != nil {
		return model.ModelConfig{}, err
	}
	m, err := s.store.Models().Get(id)
	if err != nil {
		return model.ModelConfig{}, notFound("model", id, err)
	}

	m.Name = strings.TrimSpace(req.Name)
	m.BaseURL = strings.TrimRight(req.BaseURL, "/")
	m.ModelID = strings.TrimSpace(req.ModelID)
	if req.APIKey != model.RedactedKey {
		m.APIKey = req.APIKey
	}
	m.UpdatedAt = time.Now()

	if err := s.store.Models().Update(m); err != nil {
		return model.ModelConfig{}, notFound("model", id, err)
	}
	return m, nil
}

// DeleteModel 删除模型，若为已选模型则清除选择，下一轮回退到第一个模型
func (s *CatalogService) DeleteModel(id string) error {
	if err := s.store.Models().Delete(id); err != nil {
		return notFound("model", id, err)
	}
	selected, err := s.store.Settings().Get(model.SettingSelectedModel)
	if err == nil && selected == id {
		return s.store.Settings().Set(model.SettingSelectedModel, "")
	}
	return nil
}

func (s *CatalogService) ListPrompts() ([]model.Prompt, error) {
	return s.store.Prompts().List()
}

func (s *CatalogService) GetPrompt(id string) (model.Prompt, error) {
	p, err := s.store.Prompts().Get(id)
	return p, notFound("prompt", id, err)
}

func (s *CatalogService) CreatePrompt(req model.PromptRequest) (model.Prompt, error) {
	now := time.Now()
	p := model.Prompt{
		ID:          uuid.New().String(),
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		SystemRole:  req.SystemRole,
		UserRole:    req.UserRole,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := validatePrompt(p); err != nil {
		return model.Prompt{}, err
	}
	if err := s.store.Prompts().Create(p); err != nil {
		return model.Prompt{}, fmt.Errorf("failed to create prompt: %w", err)
	}
	return p, nil
}

func (s *CatalogService) UpdatePrompt(id string, req model.PromptRequest) (model.Prompt, error) {
	p, err := s.store.Prompts().Get(id)
	if err != nil {
		return model.Prompt{}, notFound("prompt", id, err)
	}
	p.Name = strings.TrimSpace(req.Name)
	p.Description = req.Description
	p.SystemRole = req.SystemRole
	p.UserRole = req.UserRole
	p.UpdatedAt = time.Now()
	if err := validatePrompt(p); err != nil {
		return model.Prompt{}, err
	}

	if err := s.store.Prompts().Update(p); err != nil {
		return model.Prompt{}, notFound("prompt", id, err)
	}
	return p, nil
}

func (s *CatalogService) DeletePrompt(id string) error {
	return notFound("prompt", id, s.store.Prompts().Delete(id))
}

// Settings 返回全部设置，api key 已隐藏
func (s *CatalogService) Settings() (map[string]string, error) {
	all, err := s.store.Settings().All()
	if err != nil {
		return nil, err
	}
	if all[model.SettingAPIKey] != "" {
		all[model.SettingAPIKey] = model.RedactedKey
	}
	return all, nil
}

// UpdateSettings 部分更新设置，未知键直接拒绝，所有值校验通过后才写入
func (s *CatalogService) UpdateSettings(values map[string]string) error {
	for key, value := range values {
		if !slices.Contains(model.SettingKeys, key) {
			return validationError("unknown setting %q", key)
		}
		switch key {
		case model.SettingUseStreamChat:
			if _, err := strconv.ParseBool(value); err != nil {
				return validationError("%s must be a boolean", key)
			}
		case model.SettingSelectedModel:
			if value == "" {
				continue
			}
			if _, err := s.store.Models().Get(value); err != nil {
				return notFound("model", value, err)
			}
		}
	}

	for key, value := range values {
		if key == model.SettingAPIKey && value == model.RedactedKey {
			continue
		}
		if err := s.store.Settings().Set(key, value); err != nil {
			return fmt.Errorf("failed to save setting %s: %w", key, err)
		}
	}
	return nil
}
