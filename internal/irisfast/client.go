package irisfast

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

// HeaderProvider supplies per-request headers such as X-User-Id.
type HeaderProvider func() map[string]string

// IdentityHeaders sends the non-empty X-User-Id, X-User-Email and
// X-Session-Id values with every request and handshake.
func IdentityHeaders(userID, userEmail, sessionID string) HeaderProvider {
	return func() map[string]string {
		h := map[string]string{}
		if userID != "" {
			h["X-User-Id"] = userID
		}
		if userEmail != "" {
			h["X-User-Email"] = userEmail
		}
		if sessionID != "" {
			h["X-Session-Id"] = sessionID
		}
		return h
	}
}

// Client talks to the Iris HTTP API: /config and /reply.
type Client struct {
	baseURL string
	http    *fasthttp.Client
	headers HeaderProvider
	logger  *zap.Logger

	defaultTimeout time.Duration
	retryMax       int
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.defaultTimeout = d }
}

func WithHeaderProvider(h HeaderProvider) Option {
	return func(c *Client) { c.headers = h }
}

func WithRetry(max int) Option {
	return func(c *Client) { c.retryMax = max }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithDial replaces the TCP dialer, e.g. with an in-memory listener in tests.
func WithDial(dial func(addr string) (net.Conn, error)) Option {
	return func(c *Client) { c.http.Dial = dial }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		http:           &fasthttp.Client{ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 64},
		logger:         zap.NewNop(),
		defaultTimeout: 10 * time.Second,
		retryMax:       3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) GetConfig(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := c.do(ctx, fasthttp.MethodGet, "/config", nil, &cfg, true); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Client) SendMessage(ctx context.Context, room, message string) error {
	return c.reply(ctx, "text", room, message)
}

func (c *Client) SendImage(ctx context.Context, room, imageBase64 string) error {
	return c.reply(ctx, "image", room, imageBase64)
}

// Replies are not retried: a lost response would post the message twice.
func (c *Client) reply(ctx context.Context, kind, room, data string) error {
	return c.do(ctx, fasthttp.MethodPost, "/reply", ReplyRequest{Type: kind, Room: room, Data: data}, nil, false)
}

// APIError is a non-2xx answer from Iris.
type APIError struct {
	Path   string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("iris %s: status %d: %s", e.Path, e.Status, e.Body)
}

// Temporary reports whether the status is worth another attempt.
func (e *APIError) Temporary() bool {
	switch e.Status {
	case fasthttp.StatusInternalServerError, fasthttp.StatusBadGateway,
		fasthttp.StatusServiceUnavailable, fasthttp.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

func (c *Client) do(ctx context.Context, method, path string, in, out any, retry bool) error {
	var body []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal %s request: %w", path, err)
		}
		body = b
	}
	attempts := 1
	if retry {
		attempts = max(1, c.retryMax)
	}

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		again, err := c.once(ctx, method, path, body, out)
		if err == nil || !again || attempt >= attempts {
			return err
		}
		c.logger.Warn("iris_request_retry",
			zap.String("path", path),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
		if sleepWithContext(ctx, backoffDuration(attempt)) != nil {
			return err
		}
	}
}

// once performs a single round trip and reports whether a failure may be
// retried.
func (c *Client) once(ctx context.Context, method, path string, body []byte, out any) (bool, error) {
	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	req.Header.SetMethod(method)
	req.SetRequestURI(c.baseURL + path)
	req.Header.SetContentType("application/json")
	c.applyHeaders(&req.Header)
	if body != nil {
		req.SetBodyRaw(body)
	}

	if err := c.http.DoDeadline(req, resp, c.deadline(ctx)); err != nil {
		return true, fmt.Errorf("iris %s: %w", path, err)
	}
	if code := resp.StatusCode(); code < 200 || code >= 300 {
		apiErr := &APIError{Path: path, Status: code, Body: truncate(string(resp.Body()), 512)}
		return apiErr.Temporary(), apiErr
	}
	if out == nil {
		return false, nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return false, fmt.Errorf("decode %s: %w", path, err)
	}
	return false, nil
}

func (c *Client) applyHeaders(h *fasthttp.RequestHeader) {
	if c.headers == nil {
		return
	}
	for k, v := range c.headers() {
		if strings.TrimSpace(k) == "" || strings.TrimSpace(v) == "" {
			continue
		}
		h.Set(k, v)
	}
}

// deadline is the earlier of ctx's deadline and the client timeout.
func (c *Client) deadline(ctx context.Context) time.Time {
	dl := time.Now().Add(c.defaultTimeout)
	if ctxDL, ok := ctx.Deadline(); ok && ctxDL.Before(dl) {
		return ctxDL
	}
	return dl
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// backoffDuration doubles from 100ms and caps at 3.2s.
func backoffDuration(attempt int) time.Duration {
	attempt = min(max(attempt, 1), 6)
	return 100 * time.Millisecond << (attempt - 1)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
