package utils

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"floatai/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSSEWriter(t *testing.T) {
	rec := httptest.NewRecorder()
	w := NewSSEWriter(rec)

	require.NoError(t, w.Write("status", "start"))
	require.NoError(t, w.Write("", "line1\nline2"))
	require.NoError(t, w.WriteJSON("message", map[string]int{"index": 1}))
	require.NoError(t, w.Close())

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.Equal(t,
		"event: status\ndata: start\n\n"+
			"data: line1\ndata: line2\n\n"+
			"event: message\ndata: {\"index\":1}\n\n"+
			"data: [DONE]\n\n",
		rec.Body.String())
	assert.True(t, rec.Flushed)
}

func TestIsSensitiveHeader(t *testing.T) {
	assert.True(t, IsSensitiveHeader("Authorization"))
	assert.True(t, IsSensitiveHeader("X-API-KEY"))
	assert.False(t, IsSensitiveHeader("Content-Type"))
}

func TestDebugTransport_RedactsCredentials(t *testing.T) {
	require.NoError(t, logger.Init("debug", "text"))
	var buf bytes.Buffer
	logger.SetOutput(&buf)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	defer srv.Close()

	client := &http.Client{Transport: NewDebugTransport(&http.Transport{DisableKeepAlives: true})}
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/chat/completions", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer sk-secret")

	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	out := buf.String()
	assert.Contains(t, out, "[REDACTED]")
	assert.Contains(t, out, "418")
	assert.NotContains(t, out, "sk-secret")
}

func TestNewHTTPClient(t *testing.T) {
	c := NewHTTPClient(0, true)
	_, ok := c.Transport.(*DebugTransport)
	assert.True(t, ok)

	c = NewHTTPClient(0, false)
	_, ok = c.Transport.(*http.Transport)
	assert.True(t, ok)
}
