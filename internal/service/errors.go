package service

import (
	"errors"
	"fmt"

	"floatai/internal/model"
)

var (
	// ErrMissingConfig 未配置模型或密钥，在调用模型和修改会话记录之前返回
	ErrMissingConfig  = errors.New("missing model configuration")
	ErrPromptNotFound = errors.New("prompt not found")
	ErrValidation     = errors.New("validation failed")
	ErrNotFound       = errors.New("not found")
)

// TransportError 模型调用失败，所属轮次已中止
type TransportError struct {
	Turn model.TurnID
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("turn %s: %v", e.Turn, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
