package mailfetch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"streamshare/backend/internal/domain"
)

// maxResponseBytes 单次响应体读取上限，防止异常接口拖垮取件协程。
const maxResponseBytes = 4 << 20 // 4MB

// Transport 执行一次针对邮箱提供方的取件调用。
//
// 实现只负责单次调用：不重试、不轮询，错误全部上抛给编排器处理。
type Transport interface {
	Fetch(ctx context.Context, cfg domain.MailboxConfig) ([]domain.CandidateMessage, error)
}

// HTTPTransport 通过 HTTP 风格邮件接口取件。
//
// 覆盖 custom、vendor、webhook 三种通道类型：三者的差异只在
// 配置预设（接口形态、响应解析规则），调用方式完全一致。
type HTTPTransport struct {
	client    *http.Client
	userAgent string
}

// NewHTTPTransport 创建 HTTP 取件通道。
//
// timeout 是单次调用的硬上限（建议 30 秒），超过即返回 ErrTransportTimeout。
func NewHTTPTransport(timeout time.Duration) *HTTPTransport {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPTransport{
		client: &http.Client{
			Timeout: timeout,
		},
		userAgent: "StreamShare-CodeRelay/1.0",
	}
}

// Fetch 按配置发起一次取件调用并投影为候选邮件列表。
func (t *HTTPTransport) Fetch(ctx context.Context, cfg domain.MailboxConfig) ([]domain.CandidateMessage, error) {
	if !cfg.FetchReady() {
		return nil, ErrConfigIncomplete
	}

	req, err := t.buildRequest(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("build transport request: %w", err)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, classifyDialError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &BadStatusError{StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, classifyDialError(err)
	}

	return ProjectMessages(body, cfg.Shape), nil
}

// buildRequest 按配置构造单次请求：注入凭证、请求头与参数。
func (t *HTTPTransport) buildRequest(ctx context.Context, cfg domain.MailboxConfig) (*http.Request, error) {
	method := strings.ToUpper(strings.TrimSpace(cfg.Method))
	if method == "" {
		method = http.MethodGet
	}

	var reqBody io.Reader
	endpoint := cfg.Endpoint

	if method == http.MethodGet {
		// GET 请求参数拼进 query
		if len(cfg.Params) > 0 {
			u, err := url.Parse(endpoint)
			if err != nil {
				return nil, err
			}
			q := u.Query()
			for k, v := range cfg.Params {
				q.Set(k, v)
			}
			u.RawQuery = q.Encode()
			endpoint = u.String()
		}
	} else {
		payload, err := json.Marshal(cfg.Params)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", t.userAgent)
	for k, v := range cfg.Headers {
		req.Header.Set(k, v)
	}
	if cfg.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.AuthToken)
	}
	if cfg.APIKey != "" {
		req.Header.Set("X-API-Key", cfg.APIKey)
	}

	return req, nil
}

// classifyDialError 把底层网络错误归入取件错误分类。
//
// 超时（客户端超时、context 截止）归为 ErrTransportTimeout，
// 其余连接层失败一律归为 ErrTransportRefused。
func classifyDialError(err error) error {
	if err == nil {
		return nil
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return fmt.Errorf("%w: %v", ErrTransportTimeout, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTransportTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrTransportRefused, err)
}
