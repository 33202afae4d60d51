// Package session implements the refresh-session lifecycle: issuing token
// pairs, rotating refresh tokens with reuse detection, logout, and the
// access-token guard used by protected handlers.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/AtoyanMikhail/tasks-auth/internal/cache"
	"github.com/AtoyanMikhail/tasks-auth/internal/logger"
	"github.com/AtoyanMikhail/tasks-auth/internal/metrics"
	"github.com/AtoyanMikhail/tasks-auth/internal/repository/models"
	"github.com/AtoyanMikhail/tasks-auth/internal/token"
)

// TokenCodec issues and verifies signed tokens. *token.Codec implements it.
type TokenCodec interface {
	IssueAccessToken(subjectID string) (string, time.Time, error)
	IssueRefreshToken(subjectID string) (string, time.Time, error)
	Verify(raw string, kind token.Kind) (*token.Claims, error)
	RefreshTTL() time.Duration
}

// Metadata describes the client a session is issued to.
type Metadata struct {
	DeviceName    string
	SourceAddress string
}

type TokenPair struct {
	SubjectID        string
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

type Config struct {
	// MaxRefreshAttempts per subject and address within the recorder's
	// window; zero disables throttling.
	MaxRefreshAttempts int
}

type Service struct {
	codec    TokenCodec
	sessions models.SessionRepository
	recorder cache.SecurityRecorder
	metrics  *metrics.Metrics
	cfg      Config
	logger   logger.Logger
}

// NewService wires the session lifecycle. recorder and m may be nil.
func NewService(
	codec TokenCodec,
	sessions models.SessionRepository,
	recorder cache.SecurityRecorder,
	m *metrics.Metrics,
	cfg Config,
	l logger.Logger,
) *Service {
	return &Service{
		codec:    codec,
		sessions: sessions,
		recorder: recorder,
		metrics:  m,
		cfg:      cfg,
		logger:   l,
	}
}

// Login starts a new session chain for an already authenticated subject.
func (s *Service) Login(ctx context.Context, subjectID string, meta Metadata) (*TokenPair, error) {
	if subjectID == "" {
		return nil, errors.New("login: subject id is required")
	}

	pair, err := s.issuePair(subjectID)
	if err != nil {
		return nil, err
	}

	_, err = s.sessions.Create(ctx, models.CreateSessionParams{
		SubjectID:     subjectID,
		TokenValue:    pair.RefreshToken,
		TTL:           s.codec.RefreshTTL(),
		DeviceName:    meta.DeviceName,
		SourceAddress: meta.SourceAddress,
	})
	if err != nil {
		s.logger.Error("Failed to create session", logger.String("subject_id", subjectID), logger.Error(err))
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.metrics.Login()
	s.logger.Info("Session started",
		logger.String("subject_id", subjectID),
		logger.String("device", meta.DeviceName),
		logger.String("ip", meta.SourceAddress))
	return pair, nil
}

// Refresh exchanges a refresh token for a new pair. The presented session is
// revoked and the new one records it as its predecessor. Presenting a token
// that an active session already descends from revokes every session of the
// subject and fails with ErrReuseDetected.
func (s *Service) Refresh(ctx context.Context, raw string, meta Metadata) (pair *TokenPair, err error) {
	defer func() { s.metrics.Refresh(KindOf(err).String()) }()

	if raw == "" {
		return nil, ErrNoToken
	}

	claims, err := s.codec.Verify(raw, token.Refresh)
	if err != nil {
		if errors.Is(err, token.ErrExpiredToken) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	current, err := s.sessions.FindActive(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("find session: %w", err)
	}
	if current == nil {
		return nil, s.detectReuse(ctx, raw, claims.SubjectID)
	}
	if current.SubjectID != claims.SubjectID {
		s.logger.Warn("Refresh token subject mismatch",
			logger.Int64("session_id", current.ID),
			logger.String("token_subject", claims.SubjectID))
		return nil, ErrTokenInvalid
	}

	// only claimable tokens count towards the limit
	if err := s.throttle(ctx, current.SubjectID, meta.SourceAddress); err != nil {
		return nil, err
	}

	pair, err = s.issuePair(current.SubjectID)
	if err != nil {
		return nil, err
	}

	previous := raw
	next, err := s.sessions.Rotate(ctx, current, models.CreateSessionParams{
		SubjectID:          current.SubjectID,
		TokenValue:         pair.RefreshToken,
		PreviousTokenValue: &previous,
		TTL:                s.codec.RefreshTTL(),
		DeviceName:         current.DeviceName,
		SourceAddress:      current.SourceAddress,
	})
	if errors.Is(err, models.ErrSessionNotActive) {
		// another request claimed this token first
		return nil, s.detectReuse(ctx, raw, claims.SubjectID)
	}
	if err != nil {
		s.logger.Error("Failed to rotate session", logger.Int64("session_id", current.ID), logger.Error(err))
		return nil, fmt.Errorf("rotate session: %w", err)
	}

	s.logger.Debug("Session rotated",
		logger.String("subject_id", next.SubjectID),
		logger.Int64("old_id", current.ID),
		logger.Int64("new_id", next.ID))
	return pair, nil
}

// detectReuse decides what an unclaimable refresh token means: reuse when an
// active session descends from it, plain invalid otherwise.
func (s *Service) detectReuse(ctx context.Context, raw, subjectID string) error {
	descendant, err := s.sessions.FindByPreviousToken(ctx, raw, subjectID)
	if err != nil {
		return fmt.Errorf("find descendant session: %w", err)
	}
	if descendant == nil {
		return ErrTokenInvalid
	}

	revoked, err := s.sessions.RevokeAll(ctx, subjectID)
	if err != nil {
		s.logger.Error("Failed to revoke sessions after reuse",
			logger.String("subject_id", subjectID), logger.Error(err))
		return fmt.Errorf("revoke sessions: %w", err)
	}
	s.metrics.SessionsRevoked(revoked)

	s.logger.Warn("Refresh token reuse detected",
		logger.String("subject_id", subjectID),
		logger.Int64("descendant_id", descendant.ID),
		logger.Int64("revoked", revoked))

	if s.recorder != nil {
		if _, err := s.recorder.RecordReuse(ctx, subjectID); err != nil {
			s.logger.Warn("Reuse event not recorded", logger.Error(err))
		}
	}

	return ErrReuseDetected
}

// throttle fails open when the recorder is unavailable.
func (s *Service) throttle(ctx context.Context, subjectID, address string) error {
	if s.recorder == nil || s.cfg.MaxRefreshAttempts <= 0 {
		return nil
	}

	attempts, err := s.recorder.RegisterRefreshAttempt(ctx, subjectID, address)
	if err != nil {
		s.logger.Warn("Refresh throttling skipped", logger.Error(err))
		return nil
	}
	if attempts > int64(s.cfg.MaxRefreshAttempts) {
		s.logger.Warn("Refresh attempts exceeded",
			logger.String("subject_id", subjectID),
			logger.String("ip", address),
			logger.Int64("attempts", attempts))
		return ErrRateLimited
	}
	return nil
}

// Logout ends the session of raw. Unknown and empty tokens are not an error.
func (s *Service) Logout(ctx context.Context, raw string) error {
	if raw == "" {
		return nil
	}

	if err := s.sessions.DeleteByToken(ctx, raw); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// LogoutAll revokes every session of subjectID and returns how many were active.
func (s *Service) LogoutAll(ctx context.Context, subjectID string) (int64, error) {
	n, err := s.sessions.RevokeAll(ctx, subjectID)
	if err != nil {
		return 0, fmt.Errorf("revoke sessions: %w", err)
	}

	s.metrics.SessionsRevoked(n)
	s.logger.Info("All sessions revoked",
		logger.String("subject_id", subjectID),
		logger.Int64("revoked", n))
	return n, nil
}

func (s *Service) issuePair(subjectID string) (*TokenPair, error) {
	access, accessExp, err := s.codec.IssueAccessToken(subjectID)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	refresh, refreshExp, err := s.codec.IssueRefreshToken(subjectID)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}

	return &TokenPair{
		SubjectID:        subjectID,
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
	}, nil
}
