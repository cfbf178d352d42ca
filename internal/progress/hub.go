package progress

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Config tunes how the hub buffers and batches client events. Zero values
// pick defaults sized for a single CLI session: one job produces a few
// hundred events at most.
type Config struct {
	// BufferSize is the queue length between emitters and sinks (default 256).
	BufferSize int
	// MaxBatchEvents flushes a batch once it holds this many events (default 64).
	MaxBatchEvents int
	// MaxBatchWait flushes a partial batch after this long (default 250ms).
	MaxBatchWait time.Duration
	// SinkTimeout bounds each sink call (default 5s).
	SinkTimeout time.Duration
	// BaseContext parents sink calls; it should outlive the command context
	// so the final SUBMITTED/JOB_DONE rows still reach history on interrupt.
	BaseContext context.Context
	Logger      *zap.Logger
}

const (
	defaultBufferSize     = 256
	defaultMaxBatchEvents = 64
	defaultMaxBatchWait   = 250 * time.Millisecond
	defaultSinkTimeout    = 5 * time.Second
	dropLogInterval       = 5 * time.Second
)

// Hub moves session and stream events to the sinks on its own goroutine.
// Emit never blocks, so the stream reader can report every applied message;
// under backpressure events are dropped and counted instead.
type Hub struct {
	cfg    Config
	sinks  []Sink
	events chan Event
	stop   chan struct{}
	done   chan struct{}
	logger *zap.Logger

	dropLimiter rateLimiter
	// pendingDrops is reset each time a drop warning is logged; totalDrops is not.
	pendingDrops atomic.Int64
	totalDrops   atomic.Int64
	closed       atomic.Bool

	closeOnce sync.Once
	closeCtx  context.Context
}

// NewHub starts a hub delivering to sinks. Nil sinks are skipped.
func NewHub(cfg Config, sinks ...Sink) *Hub {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = defaultBufferSize
	}
	if cfg.MaxBatchEvents <= 0 {
		cfg.MaxBatchEvents = defaultMaxBatchEvents
	}
	if cfg.MaxBatchWait <= 0 {
		cfg.MaxBatchWait = defaultMaxBatchWait
	}
	if cfg.SinkTimeout <= 0 {
		cfg.SinkTimeout = defaultSinkTimeout
	}
	if cfg.BaseContext == nil {
		cfg.BaseContext = context.Background()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	live := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			live = append(live, s)
		}
	}
	h := &Hub{
		cfg:         cfg,
		sinks:       live,
		events:      make(chan Event, cfg.BufferSize),
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
		logger:      logger,
		dropLimiter: rateLimiter{interval: dropLogInterval},
	}
	go h.run()
	return h
}

// Emit queues evt. Invalid events and events emitted after Close are ignored.
func (h *Hub) Emit(evt Event) {
	if h == nil || h.closed.Load() {
		return
	}
	if err := evt.Validate(); err != nil {
		h.logger.Debug("discarding invalid progress event", zap.Error(err))
		return
	}
	select {
	case h.events <- evt:
	default:
		h.pendingDrops.Add(1)
		h.totalDrops.Add(1)
		if h.dropLimiter.Allow(time.Now()) {
			h.logger.Warn("progress events dropped due to backpressure",
				zap.Int64("dropped", h.pendingDrops.Swap(0)))
		}
	}
}

// Dropped is the number of events lost to backpressure so far.
func (h *Hub) Dropped() int64 {
	if h == nil {
		return 0
	}
	return h.totalDrops.Load()
}

// Close stops intake, delivers what is queued, closes the sinks and waits for
// that to finish or for ctx to end. Later calls only wait.
func (h *Hub) Close(ctx context.Context) error {
	if h == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	h.closeOnce.Do(func() {
		h.closed.Store(true)
		h.closeCtx = ctx
		close(h.stop)
	})
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("progress hub close wait: %w", ctx.Err())
	}
}

func (h *Hub) run() {
	defer close(h.done)
	b := newBatcher(h.cfg.MaxBatchEvents, h.cfg.MaxBatchWait)
	defer b.timer.Stop()
	for {
		select {
		case evt := <-h.events:
			if b.add(evt) {
				h.deliver(b.take())
			}
		case <-b.timer.C:
			b.armed = false
			h.deliver(b.take())
		case <-h.stop:
			h.drain(b)
			h.closeSinks()
			return
		}
	}
}

// drain delivers everything still queued once intake has stopped.
func (h *Hub) drain(b *batcher) {
	for {
		select {
		case evt := <-h.events:
			if b.add(evt) {
				h.deliver(b.take())
			}
		default:
			h.deliver(b.take())
			return
		}
	}
}

func (h *Hub) deliver(batch []Event) {
	if len(batch) == 0 {
		return
	}
	for _, sink := range h.sinks {
		ctx, cancel := context.WithTimeout(h.cfg.BaseContext, h.cfg.SinkTimeout)
		if err := sink.Consume(ctx, batch); err != nil {
			h.logger.Warn("progress sink consume failed", zap.Error(err))
		}
		cancel()
	}
}

func (h *Hub) closeSinks() {
	ctx := h.closeCtx
	if ctx == nil {
		ctx = context.Background()
	}
	for _, sink := range h.sinks {
		if err := sink.Close(ctx); err != nil {
			h.logger.Warn("progress sink close failed", zap.Error(err))
		}
	}
}

// batcher accumulates events and owns the flush timer of a partial batch.
type batcher struct {
	events []Event
	max    int
	wait   time.Duration
	timer  *time.Timer
	armed  bool
}

func newBatcher(size int, wait time.Duration) *batcher {
	t := time.NewTimer(wait)
	t.Stop()
	return &batcher{events: make([]Event, 0, size), max: size, wait: wait, timer: t}
}

// add appends evt and reports whether the batch is full. The first event of
// a batch arms the timer.
func (b *batcher) add(evt Event) bool {
	b.events = append(b.events, evt)
	if len(b.events) >= b.max {
		return true
	}
	if !b.armed {
		b.timer.Reset(b.wait)
		b.armed = true
	}
	return false
}

// take returns the pending events as a fresh slice and disarms the timer.
func (b *batcher) take() []Event {
	if b.armed {
		if !b.timer.Stop() {
			select {
			case <-b.timer.C:
			default:
			}
		}
		b.armed = false
	}
	if len(b.events) == 0 {
		return nil
	}
	out := append([]Event(nil), b.events...)
	b.events = b.events[:0]
	return out
}

type rateLimiter struct {
	interval time.Duration
	last     atomic.Int64
}

func (r *rateLimiter) Allow(now time.Time) bool {
	if r == nil || r.interval <= 0 {
		return true
	}
	nano := now.UnixNano()
	last := r.last.Load()
	if nano-last < r.interval.Nanoseconds() {
		return false
	}
	return r.last.CompareAndSwap(last, nano)
}
