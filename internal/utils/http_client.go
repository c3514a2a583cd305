package utils

import (
	"crypto/tls"
	"net/http"
	"strings"
	"time"

	"floatai/pkg/logger"

	"github.com/sirupsen/logrus"
)

// NewHTTPClient 创建调用模型服务的客户端，debug 时记录每个请求（隐藏密钥）。
//
// timeout 覆盖包括流式响应体在内的整个请求，需要大于最长的流式响应。
func NewHTTPClient(timeout time.Duration, debug bool) *http.Client {
	var transport http.RoundTripper = &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: false,
		},
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}
	if debug {
		transport = NewDebugTransport(transport)
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

// DebugTransport 记录发出的请求
type DebugTransport struct {
	base http.RoundTripper
}

func NewDebugTransport(base http.RoundTripper) *DebugTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &DebugTransport{base: base}
}

func (t *DebugTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	fields := logrus.Fields{
		"method": req.Method,
		"url":    req.URL.String(),
	}
	for name, values := range req.Header {
		if IsSensitiveHeader(name) {
			fields["header."+strings.ToLower(name)] = "[REDACTED]"
			continue
		}
		fields["header."+strings.ToLower(name)] = strings.Join(values, ", ")
	}

	start := time.Now()
	resp, err := t.base.RoundTrip(req)
	fields["elapsed"] = time.Since(start).String()
	if err != nil {
		logger.WithFields(fields).Errorf("provider request failed: %v", err)
		return nil, err
	}
	fields["status"] = resp.StatusCode
	logger.WithFields(fields).Debug("provider request")
	return resp, nil
}

var sensitiveHeaders = []string{
	"authorization",
	"x-api-key",
	"x-auth-token",
	"cookie",
}

// IsSensitiveHeader 检查是否为敏感请求头
func IsSensitiveHeader(name string) bool {
	for _, sensitive := range sensitiveHeaders {
		if strings.EqualFold(name, sensitive) {
			return true
		}
	}
	return false
}
