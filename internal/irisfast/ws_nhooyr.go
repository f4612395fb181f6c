package irisfast

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

var ErrNotConnected = errors.New("iris websocket not connected")

const (
	dialTimeout   = 10 * time.Second
	writeTimeout  = 5 * time.Second
	pingTimeout   = 3 * time.Second
	maxPingMisses = 2
	readLimit     = 1 << 20
)

// registry keeps callbacks in registration order.
type registry[T any] struct {
	mu    sync.RWMutex
	next  int
	order []int
	byID  map[int]T
}

func (r *registry[T]) add(cb T) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.byID == nil {
		r.byID = make(map[int]T)
	}
	r.next++
	r.byID[r.next] = cb
	r.order = append(r.order, r.next)
	return r.next
}

func (r *registry[T]) remove(id int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return
	}
	delete(r.byID, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

func (r *registry[T]) snapshot() []T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]T, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// WebSocket receives Iris chat events. One supervisor goroutine owns the
// connection: it reads and pings until either fails, then redials with
// backoff. Writes are serialized so the egress can share the socket.
type WebSocket struct {
	url     string
	headers HeaderProvider
	logger  *zap.Logger

	maxReconnect   int
	reconnectDelay time.Duration
	pingInterval   time.Duration

	mu    sync.RWMutex
	conn  *websocket.Conn
	state WebSocketState
	done  chan struct{} // closed when the supervisor exits

	writeMu  sync.Mutex
	messages registry[MessageCallback]
	states   registry[StateCallback]

	ctx    context.Context
	cancel context.CancelFunc
}

var _ WSClient = (*WebSocket)(nil)

// NewWebSocket returns an idle listener. maxReconnectAttempts <= 0 disables
// redialing after a drop.
func NewWebSocket(wsURL string, maxReconnectAttempts int, reconnectDelay time.Duration) *WebSocket {
	ctx, cancel := context.WithCancel(context.Background())
	return &WebSocket{
		url:            wsURL,
		logger:         zap.NewNop(),
		maxReconnect:   maxReconnectAttempts,
		reconnectDelay: reconnectDelay,
		pingInterval:   30 * time.Second,
		state:          WSStateDisconnected,
		ctx:            ctx,
		cancel:         cancel,
	}
}

func (ws *WebSocket) SetLogger(l *zap.Logger) {
	if l != nil {
		ws.logger = l
	}
}

// SetHeaderProvider adds headers to every handshake.
func (ws *WebSocket) SetHeaderProvider(h HeaderProvider) {
	ws.headers = h
}

// Connect dials once and starts the supervisor. A failed first dial is
// returned; the supervisor still retries it when reconnects are enabled.
func (ws *WebSocket) Connect(ctx context.Context) error {
	ws.mu.Lock()
	if ws.done != nil || ws.state == WSStateConnecting {
		ws.mu.Unlock()
		return nil
	}
	ws.state = WSStateConnecting
	ws.mu.Unlock()
	ws.notify(WSStateConnecting)

	conn, err := ws.dial(ctx)
	if err != nil {
		ws.setState(WSStateFailed)
		if ws.maxReconnect > 0 {
			ws.start(nil)
		}
		return fmt.Errorf("iris websocket dial: %w", err)
	}
	ws.start(conn)
	return nil
}

func (ws *WebSocket) start(conn *websocket.Conn) {
	done := make(chan struct{})
	ws.mu.Lock()
	ws.done = done
	ws.mu.Unlock()
	go ws.supervise(conn, done)
}

func (ws *WebSocket) supervise(conn *websocket.Conn, done chan struct{}) {
	defer close(done)
	for {
		if conn != nil {
			err := ws.serve(conn)
			if ws.ctx.Err() != nil {
				return
			}
			ws.logger.Warn("iris_ws_dropped", zap.Error(err))
			ws.setState(WSStateDisconnected)
		}
		if conn = ws.redial(); conn == nil {
			if ws.ctx.Err() == nil {
				ws.setState(WSStateFailed)
			}
			return
		}
	}
}

// serve runs the read and ping loops for conn and returns the first error.
func (ws *WebSocket) serve(conn *websocket.Conn) error {
	ws.mu.Lock()
	ws.conn = conn
	ws.mu.Unlock()
	ws.setState(WSStateConnected)

	g, ctx := errgroup.WithContext(ws.ctx)
	g.Go(func() error { return ws.readLoop(ctx, conn) })
	g.Go(func() error { return ws.pingLoop(ctx, conn) })
	err := g.Wait()

	ws.mu.Lock()
	if ws.conn == conn {
		ws.conn = nil
	}
	ws.mu.Unlock()
	_ = conn.Close(websocket.StatusGoingAway, "reconnect")
	return err
}

func (ws *WebSocket) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		var msg Message
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			return fmt.Errorf("read: %w", err)
		}
		for _, cb := range ws.messages.snapshot() {
			cb(&msg)
		}
	}
}

func (ws *WebSocket) pingLoop(ctx context.Context, conn *websocket.Conn) error {
	ticker := time.NewTicker(ws.pingInterval)
	defer ticker.Stop()
	misses := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		pctx, cancel := context.WithTimeout(ctx, pingTimeout)
		err := conn.Ping(pctx)
		cancel()
		if err == nil {
			misses = 0
			continue
		}
		if misses++; misses >= maxPingMisses {
			return fmt.Errorf("ping: %w", err)
		}
	}
}

func (ws *WebSocket) redial() *websocket.Conn {
	if ws.maxReconnect <= 0 {
		return nil
	}
	ws.setState(WSStateReconnecting)
	for attempt := 1; attempt <= ws.maxReconnect; attempt++ {
		if sleepWithContext(ws.ctx, ws.reconnectDelay+backoffDuration(attempt)) != nil {
			return nil
		}
		conn, err := ws.dial(ws.ctx)
		if err == nil {
			return conn
		}
		ws.logger.Warn("iris_ws_reconnect_failed", zap.Int("attempt", attempt), zap.Error(err))
	}
	return nil
}

func (ws *WebSocket) dial(ctx context.Context) (*websocket.Conn, error) {
	ctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, ws.url, &websocket.DialOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
		HTTPHeader:      ws.handshakeHeader(),
	})
	if err != nil {
		return nil, err
	}
	conn.SetReadLimit(readLimit)
	return conn, nil
}

func (ws *WebSocket) handshakeHeader() http.Header {
	hdr := http.Header{}
	if ws.headers == nil {
		return hdr
	}
	for k, v := range ws.headers() {
		if strings.TrimSpace(k) != "" && strings.TrimSpace(v) != "" {
			hdr.Set(k, v)
		}
	}
	return hdr
}

// Connected reports whether a live connection is attached.
func (ws *WebSocket) Connected() bool {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	return ws.conn != nil && ws.state == WSStateConnected
}

// WriteJSON sends one frame. Without a deadline on ctx it gives up after 5s.
func (ws *WebSocket) WriteJSON(ctx context.Context, v any) error {
	ws.mu.RLock()
	conn := ws.conn
	live := ws.state == WSStateConnected
	ws.mu.RUnlock()
	if conn == nil || !live {
		return ErrNotConnected
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, writeTimeout)
		defer cancel()
	}
	ws.writeMu.Lock()
	defer ws.writeMu.Unlock()
	return wsjson.Write(ctx, conn, v)
}

func (ws *WebSocket) OnMessage(cb MessageCallback) int { return ws.messages.add(cb) }

func (ws *WebSocket) RemoveMessageCallback(id int) { ws.messages.remove(id) }

func (ws *WebSocket) OnStateChange(cb StateCallback) int { return ws.states.add(cb) }

func (ws *WebSocket) RemoveStateCallback(id int) { ws.states.remove(id) }

func (ws *WebSocket) setState(state WebSocketState) {
	ws.mu.Lock()
	ws.state = state
	ws.mu.Unlock()
	ws.notify(state)
}

func (ws *WebSocket) notify(state WebSocketState) {
	for _, cb := range ws.states.snapshot() {
		cb(state)
	}
}

// Close stops the supervisor and waits for it, bounded by ctx.
func (ws *WebSocket) Close(ctx context.Context) error {
	ws.cancel()
	ws.mu.RLock()
	conn, done := ws.conn, ws.done
	ws.mu.RUnlock()
	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "close")
	}
	if done != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-done:
		}
	}
	ws.setState(WSStateDisconnected)
	return nil
}
