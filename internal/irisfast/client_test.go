package irisfast

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
)

func newInmemoryClient(t *testing.T, handler fasthttp.RequestHandler, opts ...Option) *Client {
	t.Helper()
	ln := fasthttputil.NewInmemoryListener()
	srv := &fasthttp.Server{Handler: handler}
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() { _ = ln.Close() })

	opts = append(opts, WithDial(func(string) (net.Conn, error) { return ln.Dial() }))
	return NewClient("http://iris.test/", opts...)
}

func TestSendMessagePostsReply(t *testing.T) {
	var got ReplyRequest
	var header string
	client := newInmemoryClient(t, func(ctx *fasthttp.RequestCtx) {
		if string(ctx.Path()) != "/reply" || !ctx.IsPost() {
			ctx.SetStatusCode(fasthttp.StatusNotFound)
			return
		}
		header = string(ctx.Request.Header.Peek("X-User-Id"))
		_ = json.Unmarshal(ctx.PostBody(), &got)
		ctx.SetStatusCode(fasthttp.StatusOK)
	}, WithHeaderProvider(func() map[string]string {
		return map[string]string{"X-User-Id": "bot", "X-Empty": " "}
	}))

	if err := client.SendMessage(context.Background(), "room-1", "hello"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if got.Type != "text" || got.Room != "room-1" || got.Data != "hello" || header != "bot" {
		t.Fatalf("unexpected request %+v header=%q", got, header)
	}

	if err := client.SendImage(context.Background(), "room-1", "aGk="); err != nil {
		t.Fatalf("SendImage: %v", err)
	}
	if got.Type != "image" || got.Data != "aGk=" {
		t.Fatalf("unexpected image request %+v", got)
	}
}

func TestGetConfigRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	client := newInmemoryClient(t, func(ctx *fasthttp.RequestCtx) {
		if calls.Add(1) == 1 {
			ctx.SetStatusCode(fasthttp.StatusServiceUnavailable)
			return
		}
		ctx.SetContentType("application/json")
		ctx.SetBodyString(`{"port":3000,"polling_speed":100,"message_rate":50,"web_server_endpoint":"http://bot"}`)
	}, WithRetry(3))

	cfg, err := client.GetConfig(context.Background())
	if err != nil {
		t.Fatalf("GetConfig: %v", err)
	}
	if cfg.Port != 3000 || cfg.WebserverEndpoint != "http://bot" || calls.Load() != 2 {
		t.Fatalf("unexpected config %+v after %d calls", cfg, calls.Load())
	}
}

func TestReplyDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	client := newInmemoryClient(t, func(ctx *fasthttp.RequestCtx) {
		calls.Add(1)
		ctx.SetStatusCode(fasthttp.StatusBadRequest)
		ctx.SetBodyString("bad room")
	}, WithTimeout(time.Second))

	err := client.SendMessage(context.Background(), "", "x")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != fasthttp.StatusBadRequest || apiErr.Body != "bad room" || apiErr.Temporary() {
		t.Fatalf("expected a permanent APIError, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected a single attempt, got %d", calls.Load())
	}
}

func TestBackoffDuration(t *testing.T) {
	cases := map[int]time.Duration{
		0:  100 * time.Millisecond,
		1:  100 * time.Millisecond,
		3:  400 * time.Millisecond,
		10: 3200 * time.Millisecond,
	}
	for attempt, want := range cases {
		if got := backoffDuration(attempt); got != want {
			t.Fatalf("backoffDuration(%d) = %v, want %v", attempt, got, want)
		}
	}
}

func TestIdentityHeadersSkipsEmptyValues(t *testing.T) {
	h := IdentityHeaders("u-1", "", "s-9")()
	if len(h) != 2 || h["X-User-Id"] != "u-1" || h["X-Session-Id"] != "s-9" {
		t.Fatalf("unexpected headers %v", h)
	}
	if len(IdentityHeaders("", "", "")()) != 0 {
		t.Fatalf("expected no headers")
	}
}
