package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"bff-service/internal/logger"
)

// Expirer is anything holding entries that can outlive their TTL. Every
// Store is one.
type Expirer interface {
	SweepExpired(ctx context.Context) (int, error)
}

// Sweeper periodically removes expired entries from an Expirer.
type Sweeper struct {
	store    Expirer
	interval time.Duration
	onSweep  func(removed int)

	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
	started atomic.Bool
}

// NewSweeper creates a sweeper. onSweep, when non-nil, receives the number
// of entries removed by each successful pass.
func NewSweeper(store Expirer, interval time.Duration, onSweep func(removed int)) *Sweeper {
	return &Sweeper{
		store:    store,
		interval: interval,
		onSweep:  onSweep,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start runs the sweep loop in a goroutine until Stop is called or ctx ends.
func (s *Sweeper) Start(ctx context.Context) {
	if !s.started.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer close(s.done)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			case <-ticker.C:
				s.RunOnce(ctx)
			}
		}
	}()
}

// RunOnce performs a single sweep pass.
func (s *Sweeper) RunOnce(ctx context.Context) int {
	removed, err := s.store.SweepExpired(ctx)
	if err != nil {
		logger.Error("sweep failed", map[string]any{
			"error": err.Error(),
		})
		return 0
	}

	if removed > 0 {
		logger.Info("expired entries swept", map[string]any{
			"removed": removed,
		})
	}
	if s.onSweep != nil {
		s.onSweep(removed)
	}
	return removed
}

// Stop ends the loop and waits for it to exit. Safe to call more than once.
func (s *Sweeper) Stop() {
	s.once.Do(func() {
		close(s.stop)
	})
	if s.started.Load() {
		<-s.done
	}
}
