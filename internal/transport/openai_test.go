package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"floatai/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testClient() *http.Client {
	return &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
}

func chunk(content, reasoning string) string {
	b, _ := json.Marshal(map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion.chunk",
		"created": 1,
		"model":   "deepseek-chat",
		"choices": []map[string]any{{
			"index": 0,
			"delta": map[string]string{"content": content, "reasoning_content": reasoning},
		}},
	})
	return string(b)
}

// sseProvider 以OpenAI格式的事件流返回 chunks，并记录解码后的请求体
func sseProvider(t *testing.T, chunks []string, got *map[string]any) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		if got != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(got))
		}

		w.Header().Set("Content-Type", "text/event-stream")
		for _, c := range chunks {
			fmt.Fprintf(w, "data: %s\n\n", c)
			w.(http.Flusher).Flush()
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
}

func request(baseURL string) Request {
	return Request{
		Turn:     "turn-1",
		Endpoint: Endpoint{BaseURL: baseURL, APIKey: "sk-test", Model: "deepseek-chat"},
		Messages: []model.ChatMessage{
			{Role: model.RoleSystem, Content: "You are a helpful assistant."},
			{Role: model.RoleAssistant, Content: ""},
			{Role: model.RoleUser, Content: "Hi"},
		},
	}
}

func collect(t *testing.T, tr Transport, req Request) ([]model.StreamEvent, error) {
	t.Helper()
	reader, err := tr.Stream(context.Background(), req)
	require.NoError(t, err)
	defer reader.Close()

	var events []model.StreamEvent
	for {
		ev, err := reader.Recv()
		if errors.Is(err, io.EOF) {
			return events, nil
		}
		if err != nil {
			return events, err
		}
		events = append(events, ev)
	}
}

func TestOpenAI_Stream(t *testing.T) {
	var body map[string]any
	srv := sseProvider(t, []string{
		chunk("", "Let me think"),
		chunk("Hel", ""),
		chunk("", ""),
		chunk("lo", ""),
	}, &body)
	defer srv.Close()

	events, err := collect(t, NewOpenAI(testClient()), request(srv.URL))
	require.NoError(t, err)

	assert.Equal(t, []model.StreamEvent{
		model.Delta{Turn: "turn-1", Reasoning: "Let me think"},
		model.Delta{Turn: "turn-1", Content: "Hel"},
		model.Delta{Turn: "turn-1", Content: "lo"},
		model.Done{Turn: "turn-1"},
	}, events)

	assert.Equal(t, "deepseek-chat", body["model"])
	assert.Equal(t, true, body["stream"])
	// 空的助手消息不会发送
	assert.Len(t, body["messages"], 2)
}

func TestOpenAI_StreamRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"invalid api key","type":"invalid_request_error"}}`)
	}))
	defer srv.Close()

	_, err := NewOpenAI(testClient()).Stream(context.Background(), request(srv.URL))
	var terr *Error
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, http.StatusUnauthorized, terr.Status)
	assert.Equal(t, "stream", terr.Op)
}

func TestOpenAI_StreamBrokenMidway(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprintf(w, "data: %s\n\n", chunk("par", ""))
		fmt.Fprint(w, "data: {not json\n\n")
	}))
	defer srv.Close()

	events, err := collect(t, NewOpenAI(testClient()), request(srv.URL))
	require.Error(t, err)
	var terr *Error
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "recv", terr.Op)
	assert.Equal(t, []model.StreamEvent{model.Delta{Turn: "turn-1", Content: "par"}}, events)
}

func TestOpenAI_StreamCancel(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 请求体读完后服务端才能感知连接断开
		io.Copy(io.Discard, r.Body)
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprintf(w, "data: %s\n\n", chunk("first", ""))
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	reader, err := NewOpenAI(testClient()).Stream(ctx, request(srv.URL))
	require.NoError(t, err)
	defer reader.Close()

	ev, err := reader.Recv()
	require.NoError(t, err)
	assert.Equal(t, model.Delta{Turn: "turn-1", Content: "first"}, ev)

	cancel()
	done := make(chan error, 1)
	go func() {
		_, err := reader.Recv()
		done <- err
	}()
	select {
	case err := <-done:
		assert.Error(t, err)
		assert.NotErrorIs(t, err, io.EOF)
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not stop after cancel")
	}
}

func TestOpenAI_ReaderClosedEarly(t *testing.T) {
	chunks := make([]string, 0, 300)
	for i := 0; i < 300; i++ {
		chunks = append(chunks, chunk("x", ""))
	}
	srv := sseProvider(t, chunks, nil)
	defer srv.Close()

	reader, err := NewOpenAI(testClient()).Stream(context.Background(), request(srv.URL))
	require.NoError(t, err)
	_, err = reader.Recv()
	require.NoError(t, err)
	// 读取协程需要感知关闭并退出，由 goleak 检查
	reader.Close()
}

func TestOpenAI_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Nil(t, body["stream"])

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"c1","object":"chat.completion","created":1,"model":"deepseek-reasoner",
			"choices":[{"index":0,"finish_reason":"stop",
			"message":{"role":"assistant","content":"Hi","reasoning_content":"greeting"}}]}`)
	}))
	defer srv.Close()

	res, err := NewOpenAI(testClient()).Complete(context.Background(), request(srv.URL))
	require.NoError(t, err)
	assert.Equal(t, model.CompletionResult{Content: "Hi", ReasoningContent: "greeting"}, res)
}

func TestOpenAI_CompleteNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"c1","object":"chat.completion","created":1,"model":"m","choices":[]}`)
	}))
	defer srv.Close()

	_, err := NewOpenAI(testClient()).Complete(context.Background(), request(srv.URL))
	assert.ErrorIs(t, err, ErrNoChoices)
}

func TestOpenAI_NoEndpoint(t *testing.T) {
	tr := NewOpenAI(nil)
	req := request("http://127.0.0.1:1")
	req.Endpoint.APIKey = ""

	_, err := tr.Stream(context.Background(), req)
	assert.ErrorIs(t, err, ErrNoEndpoint)
	_, err = tr.Complete(context.Background(), req)
	assert.ErrorIs(t, err, ErrNoEndpoint)
}

func TestError(t *testing.T) {
	base := errors.New("boom")
	assert.Equal(t, "transport recv: boom", (&Error{Op: "recv", Err: base}).Error())
	assert.Equal(t, "transport stream: status 429: boom", (&Error{Op: "stream", Status: 429, Err: base}).Error())
	assert.ErrorIs(t, &Error{Op: "recv", Err: base}, base)
}
