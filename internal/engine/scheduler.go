package engine

// scheduler.go runs the background eviction job.
//
// Eviction is low frequency and best effort: the store also evicts
// opportunistically before each Apply, so the scheduler only has to catch
// vehicles that went quiet. It is long-running and context-aware for
// graceful shutdown, and logs what it removed without ever failing the
// application.

import (
	"context"
	"log/slog"
	"time"
)

// DefaultEvictInterval is how often the background eviction job runs.
const DefaultEvictInterval = time.Minute

// StartEvictionScheduler starts a goroutine that periodically evicts idle
// vehicles. It runs immediately on start, then every interval, and stops
// when the context is cancelled.
func (s *Store) StartEvictionScheduler(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultEvictInterval
	}
	slog.Info("eviction scheduler started",
		"interval", interval,
		"ttl", s.ttl,
		"max_vehicles", s.max,
	)

	s.runEvictJob()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("eviction scheduler stopped")
			return
		case <-ticker.C:
			s.runEvictJob()
		}
	}
}

// runEvictJob performs one eviction cycle.
func (s *Store) runEvictJob() {
	start := time.Now()
	evicted := s.Evict()
	if len(evicted) > 0 {
		slog.Info("evicted idle vehicles",
			"count", len(evicted),
			"keys", evicted,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	} else {
		slog.Debug("eviction cycle found nothing to remove",
			"tracked", s.Len(),
		)
	}
}
