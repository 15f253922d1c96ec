package vectorstore

import (
	"context"
	"log"
	"time"
)

// backoffs are the waits between upsert attempts. Exhausting them
// surfaces the last transient failure as a batch failure.
var defaultBackoffs = []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second}

// retryState is the explicit retry state machine:
// attempting(n) -> backingOff -> attempting(n+1) -> ... -> failed | succeeded.
type retryState int

const (
	stateAttempting retryState = iota
	stateBackingOff
	stateSucceeded
	stateFailed
)

// Upserter is the retrying write path: a store client behind the shared
// rate limiter with bounded exponential backoff on transient failures.
// Client/validation-class failures are never retried.
type Upserter struct {
	client   *Client
	limiter  *Limiter
	backoffs []time.Duration
	sleep    func(context.Context, time.Duration) error
}

// NewUpserter creates an Upserter over client, serialized by limiter.
func NewUpserter(client *Client, limiter *Limiter) *Upserter {
	return &Upserter{
		client:   client,
		limiter:  limiter,
		backoffs: defaultBackoffs,
		sleep:    sleepCtx,
	}
}

// Upsert writes one batch of points under rate limiting and retry
// discipline.
func (u *Upserter) Upsert(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}

	state := stateAttempting
	attempt := 0
	var lastErr error

	for {
		switch state {
		case stateAttempting:
			err := u.limiter.Do(ctx, func(callCtx context.Context) error {
				return u.client.Upsert(callCtx, points)
			})
			if err == nil {
				state = stateSucceeded
				break
			}
			lastErr = err
			if !IsTransient(err) || attempt >= len(u.backoffs) {
				state = stateFailed
				break
			}
			state = stateBackingOff

		case stateBackingOff:
			delay := u.backoffs[attempt]
			attempt++
			log.Printf("WARNING: vectorstore: upsert attempt %d failed, retrying in %s: %v", attempt, delay, lastErr)
			if err := u.sleep(ctx, delay); err != nil {
				lastErr = err
				state = stateFailed
				break
			}
			state = stateAttempting

		case stateSucceeded:
			return nil

		case stateFailed:
			return lastErr
		}
	}
}

// sleepCtx waits for d or until ctx is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
