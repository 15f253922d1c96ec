package vectorstore

import (
	"context"
	"errors"
	"sync"
	"time"
)

// DefaultMinInterval is the minimum spacing between outbound store
// calls: at most ten per second, no matter how many indexing calls are
// in flight.
const DefaultMinInterval = 100 * time.Millisecond

// ErrLimiterClosed is returned for work submitted after Close.
var ErrLimiterClosed = errors.New("vectorstore: rate limiter closed")

type job struct {
	ctx  context.Context
	run  func(context.Context) error
	done chan error
}

// Limiter serializes store writes through a single worker draining a
// FIFO queue, enforcing a minimum interval between calls. All pipeline
// instances share one Limiter, so caller concurrency never multiplies
// the outbound rate.
type Limiter struct {
	jobs     chan job
	interval time.Duration
	now      func() time.Time
	sleep    func(time.Duration)

	closeOnce sync.Once
	closed    chan struct{}
}

// LimiterOption configures a Limiter.
type LimiterOption func(*Limiter)

// WithLimiterClock injects clock and sleep functions, for deterministic
// tests.
func WithLimiterClock(now func() time.Time, sleep func(time.Duration)) LimiterOption {
	return func(l *Limiter) {
		l.now = now
		l.sleep = sleep
	}
}

// NewLimiter starts a limiter with the given minimum interval
// (DefaultMinInterval when <= 0).
func NewLimiter(interval time.Duration, opts ...LimiterOption) *Limiter {
	if interval <= 0 {
		interval = DefaultMinInterval
	}
	l := &Limiter{
		jobs:     make(chan job, 64),
		interval: interval,
		now:      time.Now,
		sleep:    time.Sleep,
		closed:   make(chan struct{}),
	}
	for _, o := range opts {
		o(l)
	}
	go l.worker()
	return l
}

// Do enqueues fn and blocks until it has run or ctx is cancelled while
// still queued. Once fn starts it runs to completion; the store call
// itself is not cancelled mid-flight.
func (l *Limiter) Do(ctx context.Context, fn func(context.Context) error) error {
	j := job{ctx: ctx, run: fn, done: make(chan error, 1)}
	select {
	case l.jobs <- j:
	case <-l.closed:
		return ErrLimiterClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-j.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Limiter) worker() {
	var last time.Time
	for {
		select {
		case j := <-l.jobs:
			if j.ctx.Err() != nil {
				j.done <- j.ctx.Err()
				continue
			}
			if !last.IsZero() {
				if wait := l.interval - l.now().Sub(last); wait > 0 {
					l.sleep(wait)
				}
			}
			last = l.now()
			j.done <- j.run(j.ctx)
		case <-l.closed:
			// Drain queued jobs so no caller blocks forever.
			for {
				select {
				case j := <-l.jobs:
					j.done <- ErrLimiterClosed
				default:
					return
				}
			}
		}
	}
}

// Close stops the worker. Queued jobs fail with ErrLimiterClosed.
func (l *Limiter) Close() {
	l.closeOnce.Do(func() { close(l.closed) })
}
