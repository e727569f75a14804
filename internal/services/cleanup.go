package services

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/adhocore/gronx"
)

// HistorySweeper is whatever owns the history window and can evict old
// entries from it without racing other mutations.
type HistorySweeper interface {
	SweepHistory(maxAge time.Duration) int
}

// CleanupService evicts stale messages from the history window.
// It runs as a background goroutine and wakes on a cron schedule.
type CleanupService struct {
	target   HistorySweeper
	cron     string
	maxAge   time.Duration
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewCleanupService creates a new cleanup service.
// - cronExpr: when to sweep (e.g., "*/10 * * * *")
// - maxAge: how old a message can get before it is swept (e.g., 24 hours)
func NewCleanupService(target HistorySweeper, cronExpr string, maxAge time.Duration) (*CleanupService, error) {
	if !gronx.IsValid(cronExpr) {
		return nil, fmt.Errorf("invalid sweep cron expression: %q", cronExpr)
	}
	if maxAge <= 0 {
		return nil, fmt.Errorf("invalid sweep max age: %v", maxAge)
	}
	return &CleanupService{
		target:   target,
		cron:     cronExpr,
		maxAge:   maxAge,
		stopChan: make(chan struct{}),
	}, nil
}

// Start begins the background cleanup worker.
// This method blocks until Stop and should be called with 'go'.
func (s *CleanupService) Start() {
	slog.Info("cleanup service started", "cron", s.cron, "maxAge", s.maxAge)

	for {
		next, err := gronx.NextTickAfter(s.cron, time.Now(), false)
		if err != nil {
			slog.Error("cleanup next tick failed", "cron", s.cron, "error", err)
			next = time.Now().Add(time.Minute)
		}

		timer := time.NewTimer(time.Until(next))
		select {
		case <-timer.C:
			s.cleanup()
		case <-s.stopChan:
			timer.Stop()
			slog.Info("cleanup service stopped")
			return
		}
	}
}

// Stop shuts down the cleanup service. It is safe to call more than once.
func (s *CleanupService) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
}

// cleanup runs one sweep and reports how many messages were evicted.
func (s *CleanupService) cleanup() int {
	evicted := s.target.SweepHistory(s.maxAge)
	if evicted > 0 {
		slog.Info("swept stale history", "evicted", evicted, "maxAge", s.maxAge)
	}
	return evicted
}
