package models

import "time"

// RefreshSession is the persisted record behind a refresh token.
// Rows are only ever inserted, flipped to revoked, or deleted.
type RefreshSession struct {
	ID                 int64     `db:"id" json:"id"`
	SubjectID          string    `db:"subject_id" json:"subject_id"`
	TokenValue         string    `db:"token_value" json:"-"`
	PreviousTokenValue *string   `db:"previous_token_value" json:"-"`
	IsRevoked          bool      `db:"is_revoked" json:"is_revoked"`
	DeviceName         string    `db:"device_name" json:"device_name"`
	SourceAddress      string    `db:"source_address" json:"source_address"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
	ExpiresAt          time.Time `db:"expires_at" json:"expires_at"`
}

// IsActive reports whether the session may still be exchanged at now.
func (s *RefreshSession) IsActive(now time.Time) bool {
	return !s.IsRevoked && now.Before(s.ExpiresAt)
}

// CreateSessionParams describes a session to insert. ExpiresAt is derived by
// the store from its own clock and TTL.
type CreateSessionParams struct {
	SubjectID          string
	TokenValue         string
	PreviousTokenValue *string
	TTL                time.Duration
	DeviceName         string
	SourceAddress      string
}

// Principal is the identity a session belongs to.
type Principal struct {
	ID           string     `db:"id" json:"id"`
	Name         string     `db:"name" json:"name"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	LastLoginAt  *time.Time `db:"last_login_at" json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
}
