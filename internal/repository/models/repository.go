package models

import (
	"context"
	"errors"
)

var (
	// ErrDuplicateToken is returned when a session with the same token value already exists.
	ErrDuplicateToken = errors.New("refresh session with this token already exists")
	// ErrSessionNotActive is returned by Rotate when the old session was revoked,
	// expired or removed before the rotation could claim it.
	ErrSessionNotActive = errors.New("refresh session is no longer active")
	// ErrPrincipalExists is returned when registering an email that is taken.
	ErrPrincipalExists = errors.New("principal already exists")
)

// SessionRepository persists refresh sessions. Lookups return (nil, nil) when
// nothing matches; errors are reserved for storage failures.
type SessionRepository interface {
	Create(ctx context.Context, params CreateSessionParams) (*RefreshSession, error)
	FindActive(ctx context.Context, tokenValue string) (*RefreshSession, error)
	FindByPreviousToken(ctx context.Context, tokenValue, subjectID string) (*RefreshSession, error)
	// Rotate inserts the session described by params and revokes old, as one
	// unit. It fails with ErrSessionNotActive, leaving nothing inserted, if old
	// is no longer active at the time of the conditional revoke.
	Rotate(ctx context.Context, old *RefreshSession, params CreateSessionParams) (*RefreshSession, error)
	// Revoke is the standalone single-session revoke and is idempotent. The
	// refresh path never calls it: Rotate carries its own conditional revoke.
	Revoke(ctx context.Context, sessionID int64) error
	RevokeAll(ctx context.Context, subjectID string) (int64, error)
	DeleteByToken(ctx context.Context, tokenValue string) error
	CleanExpired(ctx context.Context) (int64, error)
}

// PrincipalRepository stores the users sessions are issued for.
type PrincipalRepository interface {
	Create(ctx context.Context, p *Principal) error
	FindByID(ctx context.Context, id string) (*Principal, error)
	FindByEmail(ctx context.Context, email string) (*Principal, error)
	TouchLastLogin(ctx context.Context, id string) error
}
