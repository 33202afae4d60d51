package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/AtoyanMikhail/tasks-auth/internal/logger"
)

// reuseWindow is how long reuse events of a subject are remembered.
const reuseWindow = 24 * time.Hour

type securityRecorder struct {
	cache         Cache
	logger        logger.Logger
	attemptWindow time.Duration
}

// NewSecurityRecorder creates a recorder that counts refresh attempts per
// subject and address within attemptWindow, and reuse events per subject.
func NewSecurityRecorder(cache Cache, attemptWindow time.Duration, l logger.Logger) SecurityRecorder {
	return &securityRecorder{
		cache:         cache,
		logger:        l,
		attemptWindow: attemptWindow,
	}
}

// RegisterRefreshAttempt counts a refresh attempt and returns the number of
// attempts seen from this subject and address in the current window.
func (s *securityRecorder) RegisterRefreshAttempt(ctx context.Context, subjectID, address string) (int64, error) {
	key := fmt.Sprintf("%s%s:%s", RefreshAttemptPrefix, subjectID, address)

	count, err := s.cache.IncrementWithTTL(ctx, key, s.attemptWindow)
	if err != nil {
		s.logger.Error("Failed to register refresh attempt",
			logger.String("subject_id", subjectID),
			logger.String("ip", address),
			logger.Error(err))
		return 0, fmt.Errorf("failed to register refresh attempt: %w", err)
	}

	return count, nil
}

// RecordReuse remembers a detected refresh-token reuse and returns how many
// were recorded for the subject during the last day.
func (s *securityRecorder) RecordReuse(ctx context.Context, subjectID string) (int64, error) {
	key := ReusePrefix + subjectID

	count, err := s.cache.IncrementWithTTL(ctx, key, reuseWindow)
	if err != nil {
		s.logger.Error("Failed to record token reuse",
			logger.String("subject_id", subjectID),
			logger.Error(err))
		return 0, fmt.Errorf("failed to record token reuse: %w", err)
	}

	s.logger.Warn("Token reuse recorded",
		logger.String("subject_id", subjectID),
		logger.Int64("events_last_day", count))

	return count, nil
}
