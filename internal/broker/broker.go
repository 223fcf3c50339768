// Package broker provides the in-process queue that decouples POS sale
// capture from ledger posting. Delivery is at-least-once with FIFO order for
// a given message; the queue is not durable across restarts, so consumers
// re-seed it from their own store on boot.
package broker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	queueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "broker",
		Name:      "queue_depth",
		Help:      "Messages currently queued",
	})
	deliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "broker",
		Name:      "deliveries_total",
		Help:      "Delivery attempts by outcome",
	}, []string{"outcome"})
)

// Message is one unit of work. Payload stays opaque to the queue.
type Message struct {
	Type     string
	Key      string
	Payload  []byte
	Attempts int
}

// Handler processes one message. A nil return acknowledges it; an error
// schedules a retry until the attempt cap is reached.
type Handler func(ctx context.Context, m Message) error

// Config tunes retry behavior.
type Config struct {
	// Base is the initial retry delay. Doubles per attempt up to Cap.
	Base time.Duration
	Cap  time.Duration
	// MaxAttempts bounds deliveries per message; afterwards OnDrop fires.
	MaxAttempts int
	// OnDrop is called when a message exhausts its attempts. May be nil.
	OnDrop func(m Message)
}

func (c *Config) defaults() {
	if c.Base <= 0 {
		c.Base = time.Second
	}
	if c.Cap <= 0 {
		c.Cap = 30 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 10
	}
}

// Queue is a single-consumer FIFO with retry scheduling.
type Queue struct {
	cfg Config
	ch  chan Message

	mu     sync.Mutex
	timers map[*time.Timer]struct{}
	closed bool
}

// New constructs a queue with the given buffer size.
func New(size int, cfg Config) *Queue {
	cfg.defaults()
	if size <= 0 {
		size = 1024
	}
	return &Queue{cfg: cfg, ch: make(chan Message, size), timers: make(map[*time.Timer]struct{})}
}

// ErrQueueFull is returned when the buffer is saturated.
var ErrQueueFull = errors.New("broker queue full")

// Enqueue appends a message. It never blocks; a full buffer is an error so
// the producer can surface backpressure instead of hanging a request.
func (q *Queue) Enqueue(m Message) error {
	select {
	case q.ch <- m:
		queueDepth.Inc()
		return nil
	default:
		return ErrQueueFull
	}
}

// Run consumes messages until ctx is done. It is the single consumer; per-key
// FIFO holds because a message is only re-enqueued after its handler returns.
func (q *Queue) Run(ctx context.Context, h Handler) {
	for {
		select {
		case <-ctx.Done():
			return
		case m := <-q.ch:
			queueDepth.Dec()
			m.Attempts++
			if err := h(ctx, m); err != nil {
				deliveries.WithLabelValues("retry").Inc()
				q.scheduleRetry(ctx, m)
				continue
			}
			deliveries.WithLabelValues("ok").Inc()
		}
	}
}

func (q *Queue) scheduleRetry(ctx context.Context, m Message) {
	if m.Attempts >= q.cfg.MaxAttempts {
		deliveries.WithLabelValues("dropped").Inc()
		if q.cfg.OnDrop != nil {
			q.cfg.OnDrop(m)
		}
		return
	}
	delay := q.backoff(m.Attempts)
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	var t *time.Timer
	t = time.AfterFunc(delay, func() {
		q.mu.Lock()
		delete(q.timers, t)
		q.mu.Unlock()
		if ctx.Err() != nil {
			return
		}
		_ = q.Enqueue(m)
	})
	q.timers[t] = struct{}{}
	q.mu.Unlock()
}

// backoff doubles the base delay per prior attempt, bounded by Cap.
func (q *Queue) backoff(attempts int) time.Duration {
	d := q.cfg.Base
	for i := 1; i < attempts && d < q.cfg.Cap; i++ {
		d *= 2
	}
	if d > q.cfg.Cap {
		d = q.cfg.Cap
	}
	return d
}

// Close stops pending retry timers. In-flight messages are lost, which is the
// documented baseline; the boot scan recovers them.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	for t := range q.timers {
		t.Stop()
	}
	q.timers = map[*time.Timer]struct{}{}
}

// Depth reports the number of buffered messages (retries pending on timers
// are not counted).
func (q *Queue) Depth() int { return len(q.ch) }
