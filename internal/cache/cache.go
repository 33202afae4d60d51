package cache

import (
	"context"
	"time"
)

// Cache is the subset of Redis operations the auth service relies on.
type Cache interface {
	IncrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	Close() error
	Ping(ctx context.Context) error
}

// SecurityRecorder keeps short-lived counters about refresh-token traffic.
type SecurityRecorder interface {
	RegisterRefreshAttempt(ctx context.Context, subjectID, address string) (int64, error)
	RecordReuse(ctx context.Context, subjectID string) (int64, error)
}
