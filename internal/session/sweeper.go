package session

import (
	"context"
	"time"

	"github.com/AtoyanMikhail/tasks-auth/internal/logger"
	"github.com/AtoyanMikhail/tasks-auth/internal/metrics"
	"github.com/AtoyanMikhail/tasks-auth/internal/repository/models"
)

// Sweeper periodically deletes expired sessions. Reads already ignore them,
// so sweeping only bounds table growth.
type Sweeper struct {
	sessions models.SessionRepository
	interval time.Duration
	metrics  *metrics.Metrics
	logger   logger.Logger
}

func NewSweeper(sessions models.SessionRepository, interval time.Duration, m *metrics.Metrics, l logger.Logger) *Sweeper {
	return &Sweeper{
		sessions: sessions,
		interval: interval,
		metrics:  m,
		logger:   l,
	}
}

// Run sweeps every interval until ctx is done. A non-positive interval
// returns immediately.
func (s *Sweeper) Run(ctx context.Context) {
	if s.interval <= 0 {
		s.logger.Info("Session sweeper disabled")
		return
	}

	s.logger.Info("Session sweeper started", logger.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Session sweeper stopped")
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				s.logger.Error("Session sweep failed", logger.Error(err))
			}
		}
	}
}

// Sweep removes expired sessions once and returns how many were deleted.
func (s *Sweeper) Sweep(ctx context.Context) (int64, error) {
	n, err := s.sessions.CleanExpired(ctx)
	if err != nil {
		return 0, err
	}

	s.metrics.SessionsSwept(n)
	if n > 0 {
		s.logger.Info("Expired sessions removed", logger.Int64("count", n))
	}
	return n, nil
}
