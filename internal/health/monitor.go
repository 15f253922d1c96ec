// Package health observes the vector store without ever blocking the
// serving path. Checks are read-only; a store outage degrades health
// answers, never the index or the resolver.
package health

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/trellis-dev/trellis/internal/vectorstore"
)

// DefaultInterval is the periodic polling cadence.
const DefaultInterval = 60 * time.Second

// Monitor polls one collection's health on demand and, optionally, on a
// timer.
type Monitor struct {
	client *vectorstore.Client

	mu   sync.Mutex
	stop chan struct{}
	wg   sync.WaitGroup
}

// NewMonitor creates a Monitor over client.
func NewMonitor(client *vectorstore.Client) *Monitor {
	return &Monitor{client: client}
}

// CheckCollectionHealth fetches the collection's health metrics.
// Failures propagate to the caller; the monitor never fabricates a
// healthy answer.
func (m *Monitor) CheckCollectionHealth(ctx context.Context) (*vectorstore.CollectionHealth, error) {
	return m.client.GetCollection(ctx)
}

// GetCollectionStatus reports whether the collection exists and, when
// it does, its point count.
func (m *Monitor) GetCollectionStatus(ctx context.Context) (bool, int64, error) {
	names, err := m.client.GetCollections(ctx)
	if err != nil {
		return false, 0, err
	}
	found := false
	for _, n := range names {
		if n == m.client.Collection() {
			found = true
			break
		}
	}
	if !found {
		return false, 0, nil
	}
	h, err := m.client.GetCollection(ctx)
	if err != nil {
		return true, 0, err
	}
	return true, h.PointCount, nil
}

// Start begins periodic polling (DefaultInterval when interval <= 0).
// Poll failures are logged and polling continues. Calling Start on a
// running monitor is a no-op.
func (m *Monitor) Start(interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stop != nil {
		return
	}
	m.stop = make(chan struct{})
	m.wg.Add(1)
	go m.poll(interval, m.stop)
}

func (m *Monitor) poll(interval time.Duration, stop chan struct{}) {
	defer m.wg.Done()
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			h, err := m.client.GetCollection(ctx)
			cancel()
			if err != nil {
				log.Printf("WARNING: health: poll failed: %v", err)
				continue
			}
			if h.Status != "green" {
				log.Printf("WARNING: health: collection %s status %s (optimizer: %s)",
					m.client.Collection(), h.Status, h.OptimizerStatus)
			}
		}
	}
}

// Stop halts periodic polling and waits for the poller to exit. Safe to
// call when polling never started.
func (m *Monitor) Stop() {
	m.mu.Lock()
	stop := m.stop
	m.stop = nil
	m.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	m.wg.Wait()
}
