package transport

import (
	"context"
	"errors"
	"fmt"

	"floatai/internal/model"

	"github.com/cloudwego/eino/schema"
)

// Endpoint 一个OpenAI兼容的接入点
type Endpoint struct {
	BaseURL string
	APIKey  string
	Model   string
}

// Request 一个轮次的请求
type Request struct {
	Turn     model.TurnID
	Endpoint Endpoint
	Messages []model.ChatMessage
}

// Transport 把轮次发送给模型服务。
//
// Stream 在服务端接受请求后返回，随后按发出顺序推送事件：零个或多个 Delta，
// 最后恰好一个 Done，均带有请求的轮次ID。接受之后的失败由 Recv 返回，不再发送 Done。
type Transport interface {
	Stream(ctx context.Context, req Request) (*schema.StreamReader[model.StreamEvent], error)
	Complete(ctx context.Context, req Request) (model.CompletionResult, error)
}

var (
	ErrNoEndpoint = errors.New("endpoint is not configured")
	ErrNoChoices  = errors.New("no choices in provider response")
)

// Error 模型服务调用失败（网络、鉴权、限流）
type Error struct {
	Op     string
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("transport %s: status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func validate(req Request) error {
	if req.Endpoint.APIKey == "" || req.Endpoint.Model == "" {
		return ErrNoEndpoint
	}
	return nil
}
