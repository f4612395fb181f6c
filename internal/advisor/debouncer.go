// Package advisor coalesces bursts of analysis requests per key so only the
// latest one is computed and delivered.
package advisor

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

const DefaultDelay = 300 * time.Millisecond

var ErrClosed = errors.New("advisor debouncer closed")

// Debouncer runs at most one pending task per key. A newer Submit for the
// same key stops the pending timer and cancels the context of a task that is
// already running; a superseded task never reaches its deliver callback.
type Debouncer[T any] struct {
	delay   time.Duration
	timeout time.Duration
	logger  *zap.Logger

	mu      sync.Mutex
	entries map[string]*entry
	seq     uint64 // last generation handed out, shared by all keys
	closed  bool
	wg      sync.WaitGroup
}

type entry struct {
	gen    uint64
	timer  *time.Timer
	cancel context.CancelFunc
}

type Option func(*settings)

type settings struct {
	delay   time.Duration
	timeout time.Duration
	logger  *zap.Logger
}

func WithDelay(d time.Duration) Option {
	return func(s *settings) {
		if d >= 0 {
			s.delay = d
		}
	}
}

// WithTimeout bounds a single run; zero means no limit beyond supersession.
func WithTimeout(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}

func New[T any](opts ...Option) *Debouncer[T] {
	s := settings{delay: DefaultDelay, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&s)
	}
	return &Debouncer[T]{
		delay:   s.delay,
		timeout: s.timeout,
		logger:  s.logger,
		entries: make(map[string]*entry),
	}
}

// Submit schedules run for key after the debounce delay. deliver is called
// with the result only if no newer submission for key arrived meanwhile.
func (d *Debouncer[T]) Submit(key string, run func(ctx context.Context) (T, error), deliver func(T)) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}

	e := d.entries[key]
	if e == nil {
		e = &entry{}
		d.entries[key] = e
	}
	d.stopLocked(e)
	d.seq++
	e.gen = d.seq
	gen := e.gen

	d.wg.Add(1)
	e.timer = time.AfterFunc(d.delay, func() {
		defer d.wg.Done()
		d.fire(key, gen, run, deliver)
	})
	return nil
}

func (d *Debouncer[T]) fire(key string, gen uint64, run func(ctx context.Context) (T, error), deliver func(T)) {
	d.mu.Lock()
	e := d.entries[key]
	if d.closed || e == nil || e.gen != gen {
		d.mu.Unlock()
		return
	}
	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if d.timeout > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), d.timeout)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}
	e.timer = nil
	e.cancel = cancel
	d.mu.Unlock()

	start := time.Now()
	result, err := run(ctx)
	cancel()

	d.mu.Lock()
	current := !d.closed && d.entries[key] == e && e.gen == gen
	if current {
		delete(d.entries, key)
	}
	d.mu.Unlock()

	if err != nil {
		if current {
			d.logger.Warn("advisor_run_failed", zap.String("key", key), zap.Error(err))
		}
		return
	}
	if !current {
		d.logger.Debug("advisor_result_stale", zap.String("key", key), zap.Uint64("gen", gen))
		return
	}
	d.logger.Debug("advisor_delivered", zap.String("key", key), zap.Duration("took", time.Since(start)))
	if deliver != nil {
		deliver(result)
	}
}

// Cancel drops whatever is pending or running for key.
func (d *Debouncer[T]) Cancel(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if e := d.entries[key]; e != nil {
		d.stopLocked(e)
		delete(d.entries, key)
	}
}

// Pending reports whether key has a scheduled or running task.
func (d *Debouncer[T]) Pending(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.entries[key]
	return ok
}

// Flush cancels every pending and running task without delivering.
func (d *Debouncer[T]) Flush() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for key, e := range d.entries {
		d.stopLocked(e)
		delete(d.entries, key)
	}
}

// Close flushes, rejects further submissions and waits for running tasks.
func (d *Debouncer[T]) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.Flush()
	d.wg.Wait()
}

func (d *Debouncer[T]) stopLocked(e *entry) {
	if e.timer != nil && e.timer.Stop() {
		d.wg.Done()
	}
	e.timer = nil
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
}
