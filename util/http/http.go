package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

const defaultTimeout = 30 * time.Second

//go:generate mockgen -destination=mocks/http.go -package=mocks . IClient
type IClient interface {
	DoHTTPRequest(ctx context.Context, requestParam *RequestParam) error
}

// RequestParam 描述一次请求
//
// Body 支持 io.Reader、[]byte 以及任意可 JSON 序列化的值。
// Response 为 *[]byte / *string 时直接写入原始响应体，否则按 JSON 解码。
type RequestParam struct {
	RequestURI string
	Method     string
	Query      url.Values
	Header     map[string]string
	Body       interface{}
	Response   interface{}

	Timeout time.Duration
	// Retry 失败后的重试次数，0 表示只请求一次
	Retry int
}

// StatusError 非 2xx 响应
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP request failed with status %d: %s", e.StatusCode, e.Body)
}

type HTTPClient struct {
	client  *http.Client
	limiter *rate.Limiter
	header  map[string]string
}

type Option func(*HTTPClient)

// WithLimiter 每次请求（包括重试）前等待 limiter
func WithLimiter(l *rate.Limiter) Option {
	return func(c *HTTPClient) {
		c.limiter = l
	}
}

// WithProxy 所有请求经由代理发出
func WithProxy(proxy string) Option {
	return func(c *HTTPClient) {
		u, err := url.Parse(proxy)
		if err != nil || proxy == "" {
			return
		}
		c.client.Transport = &http.Transport{Proxy: http.ProxyURL(u)}
	}
}

// WithHeader 默认请求头，RequestParam.Header 中的同名字段优先
func WithHeader(key, value string) Option {
	return func(c *HTTPClient) {
		if value == "" {
			return
		}
		if c.header == nil {
			c.header = make(map[string]string)
		}
		c.header[key] = value
	}
}

// WithTimeout 覆盖默认的 30s 客户端超时
func WithTimeout(d time.Duration) Option {
	return func(c *HTTPClient) {
		if d > 0 {
			c.client.Timeout = d
		}
	}
}

func NewHTTPClient(opts ...Option) IClient {
	c := &HTTPClient{
		client: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *HTTPClient) DoHTTPRequest(ctx context.Context, requestParam *RequestParam) error {
	if requestParam == nil {
		return errors.New("request param is nil")
	}

	payload, contentType, err := encodeBody(requestParam.Body)
	if err != nil {
		return err
	}

	attempts := max(1, requestParam.Retry+1)
	for i := 0; i < attempts; i++ {
		if c.limiter != nil {
			if err = c.limiter.Wait(ctx); err != nil {
				return err
			}
		}
		err = c.do(ctx, requestParam, payload, contentType)
		if err == nil || ctx.Err() != nil {
			return err
		}
	}
	if attempts > 1 {
		return fmt.Errorf("after %d attempts: %w", attempts, err)
	}
	return err
}

func (c *HTTPClient) do(ctx context.Context, p *RequestParam, payload []byte, contentType string) error {
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	uri := p.RequestURI
	if len(p.Query) > 0 {
		u, err := url.Parse(uri)
		if err != nil {
			return err
		}
		q := u.Query()
		for k, vs := range p.Query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
		uri = u.String()
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	method := p.Method
	if method == "" {
		method = http.MethodGet
	}
	req, err := http.NewRequestWithContext(ctx, method, uri, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range c.header {
		req.Header.Set(k, v)
	}
	for k, v := range p.Header {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{StatusCode: resp.StatusCode, Body: string(data)}
	}

	switch out := p.Response.(type) {
	case nil:
		return nil
	case *[]byte:
		*out = data
		return nil
	case *string:
		*out = string(data)
		return nil
	default:
		if len(data) == 0 {
			return nil
		}
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
}

// encodeBody 请求体需要在重试之间复用，因此统一读成字节
func encodeBody(body interface{}) ([]byte, string, error) {
	switch b := body.(type) {
	case nil:
		return nil, "", nil
	case []byte:
		return b, "application/json", nil
	case io.Reader:
		data, err := io.ReadAll(b)
		if err != nil {
			return nil, "", err
		}
		return data, "text/plain", nil
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, "", err
		}
		return data, "application/json", nil
	}
}
