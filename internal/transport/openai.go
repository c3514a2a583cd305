package transport

import (
	"context"
	"errors"
	"io"
	"net/http"

	"floatai/internal/model"
	"floatai/pkg/logger"

	"github.com/cloudwego/eino/schema"
	openai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
)

const pipeCapacity = 100

// OpenAI 对接任意OpenAI兼容的对话接口（DeepSeek、通义千问、豆包、OpenAI）
type OpenAI struct {
	httpClient *http.Client
}

func NewOpenAI(httpClient *http.Client) *OpenAI {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &OpenAI{httpClient: httpClient}
}

func (o *OpenAI) client(ep Endpoint) *openai.Client {
	cfg := openai.DefaultConfig(ep.APIKey)
	if ep.BaseURL != "" {
		cfg.BaseURL = ep.BaseURL
	}
	cfg.HTTPClient = o.httpClient
	return openai.NewClientWithConfig(cfg)
}

// Stream 发起流式请求并把返回的片段作为事件推送，取消 ctx 会中止请求
func (o *OpenAI) Stream(ctx context.Context, req Request) (*schema.StreamReader[model.StreamEvent], error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	stream, err := o.client(req.Endpoint).CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:    req.Endpoint.Model,
		Messages: convertMessages(req.Messages),
		Stream:   true,
	})
	if err != nil {
		return nil, wrapError("stream", err)
	}

	reader, writer := schema.Pipe[model.StreamEvent](pipeCapacity)
	log := logger.WithFields(logrus.Fields{"turn_id": req.Turn, "model": req.Endpoint.Model})

	go func() {
		defer writer.Close()
		defer stream.Close()

		chunks := 0
		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				log.Debugf("stream finished after %d chunks", chunks)
				writer.Send(model.Done{Turn: req.Turn}, nil)
				return
			}
			if err != nil {
				log.Warnf("stream aborted after %d chunks: %v", chunks, err)
				writer.Send(nil, wrapError("recv", err))
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}

			delta := resp.Choices[0].Delta
			if delta.Content == "" && delta.ReasoningContent == "" {
				continue
			}
			chunks++
			ev := model.Delta{
				Turn:      req.Turn,
				Content:   delta.Content,
				Reasoning: delta.ReasoningContent,
			}
			if closed := writer.Send(ev, nil); closed {
				// 读取端已关闭，关闭流即取消请求
				log.Debug("stream reader closed early")
				return
			}
		}
	}()

	return reader, nil
}

// Complete 等待完整回复
func (o *OpenAI) Complete(ctx context.Context, req Request) (model.CompletionResult, error) {
	if err := validate(req); err != nil {
		return model.CompletionResult{}, err
	}

	resp, err := o.client(req.Endpoint).CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    req.Endpoint.Model,
		Messages: convertMessages(req.Messages),
	})
	if err != nil {
		return model.CompletionResult{}, wrapError("complete", err)
	}
	if len(resp.Choices) == 0 {
		return model.CompletionResult{}, &Error{Op: "complete", Err: ErrNoChoices}
	}

	msg := resp.Choices[0].Message
	return model.CompletionResult{
		Content:          msg.Content,
		ReasoningContent: msg.ReasoningContent,
	}, nil
}

// convertMessages 转换消息角色，丢弃空的助手消息（部分服务会拒绝）
func convertMessages(messages []model.ChatMessage) []openai.ChatCompletionMessage {
	result := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		role := openai.ChatMessageRoleUser
		switch msg.Role {
		case model.RoleAssistant:
			role = openai.ChatMessageRoleAssistant
		case model.RoleSystem:
			role = openai.ChatMessageRoleSystem
		}
		if msg.Content == "" && role == openai.ChatMessageRoleAssistant {
			continue
		}
		result = append(result, openai.ChatCompletionMessage{
			Role:    role,
			Content: msg.Content,
		})
	}
	return result
}

func wrapError(op string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &Error{Op: op, Status: apiErr.HTTPStatusCode, Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &Error{Op: op, Status: reqErr.HTTPStatusCode, Err: err}
	}
	return &Error{Op: op, Err: err}
}
