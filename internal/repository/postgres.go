package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/AtoyanMikhail/tasks-auth/internal/logger"
	"github.com/AtoyanMikhail/tasks-auth/internal/repository/models"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

const sessionColumns = `id, subject_id, token_value, previous_token_value, is_revoked,
		device_name, source_address, created_at, expires_at`

const (
	qSessionCreate = `
		INSERT INTO refresh_sessions (subject_id, token_value, previous_token_value, device_name, source_address, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + sessionColumns

	qSessionFindActive = `
		SELECT ` + sessionColumns + `
		FROM refresh_sessions
		WHERE token_value = $1 AND is_revoked = FALSE AND expires_at > $2`

	qSessionFindByPrevious = `
		SELECT ` + sessionColumns + `
		FROM refresh_sessions
		WHERE previous_token_value = $1 AND subject_id = $2 AND is_revoked = FALSE AND expires_at > $3
		ORDER BY created_at DESC
		LIMIT 1`

	qSessionRevokeActive = `
		UPDATE refresh_sessions SET is_revoked = TRUE
		WHERE id = $1 AND is_revoked = FALSE AND expires_at > $2`

	qSessionRevoke = `
		UPDATE refresh_sessions SET is_revoked = TRUE
		WHERE id = $1 AND is_revoked = FALSE`

	qSessionRevokeAll = `
		UPDATE refresh_sessions SET is_revoked = TRUE
		WHERE subject_id = $1 AND is_revoked = FALSE`

	qSessionDeleteByToken = `DELETE FROM refresh_sessions WHERE token_value = $1`

	qSessionCleanExpired = `DELETE FROM refresh_sessions WHERE expires_at <= $1`
)

type sessionRepo struct {
	db  *sqlx.DB
	l   logger.Logger
	now func() time.Time
}

// NewSessionRepository returns a Postgres-backed SessionRepository. Expired rows
// are filtered out of every read; CleanExpired removes them physically.
func NewSessionRepository(db *sqlx.DB, l logger.Logger) models.SessionRepository {
	return &sessionRepo{db: db, l: l, now: time.Now}
}

func (r *sessionRepo) Create(ctx context.Context, params models.CreateSessionParams) (*models.RefreshSession, error) {
	session, err := r.insert(ctx, r.db, params)
	if err != nil {
		return nil, err
	}

	r.l.Info("Refresh session created",
		logger.Int64("id", session.ID),
		logger.String("subject_id", session.SubjectID))
	return session, nil
}

func (r *sessionRepo) insert(ctx context.Context, q sqlx.ExtContext, params models.CreateSessionParams) (*models.RefreshSession, error) {
	now := r.now().UTC()
	session := &models.RefreshSession{}

	err := q.QueryRowxContext(ctx, qSessionCreate,
		params.SubjectID,
		params.TokenValue,
		params.PreviousTokenValue,
		params.DeviceName,
		params.SourceAddress,
		now,
		now.Add(params.TTL),
	).StructScan(session)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			r.l.Error("Duplicate refresh token value", logger.String("subject_id", params.SubjectID))
			return nil, models.ErrDuplicateToken
		}
		r.l.Error("Failed to insert refresh session", logger.Error(err))
		return nil, fmt.Errorf("failed to insert refresh session: %w", err)
	}

	return session, nil
}

func (r *sessionRepo) FindActive(ctx context.Context, tokenValue string) (*models.RefreshSession, error) {
	session := &models.RefreshSession{}
	err := r.db.GetContext(ctx, session, qSessionFindActive, tokenValue, r.now().UTC())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get refresh session: %w", err)
	}

	return session, nil
}

func (r *sessionRepo) FindByPreviousToken(ctx context.Context, tokenValue, subjectID string) (*models.RefreshSession, error) {
	session := &models.RefreshSession{}
	err := r.db.GetContext(ctx, session, qSessionFindByPrevious, tokenValue, subjectID, r.now().UTC())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get descendant refresh session: %w", err)
	}

	return session, nil
}

// Rotate runs the insert and the conditional revoke in one transaction. Row
// locking on the old session serialises concurrent rotations; the loser sees
// is_revoked = TRUE, affects zero rows and rolls back its insert.
func (r *sessionRepo) Rotate(ctx context.Context, old *models.RefreshSession, params models.CreateSessionParams) (_ *models.RefreshSession, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin rotation: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				r.l.Error("Failed to roll back rotation", logger.Error(rbErr))
			}
		}
	}()

	next, err := r.insert(ctx, tx, params)
	if err != nil {
		return nil, err
	}

	result, err := tx.ExecContext(ctx, qSessionRevokeActive, old.ID, r.now().UTC())
	if err != nil {
		r.l.Error("Failed to revoke rotated session", logger.Error(err), logger.Int64("session_id", old.ID))
		return nil, fmt.Errorf("failed to revoke rotated session: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		r.l.Warn("Rotation lost: session no longer active", logger.Int64("session_id", old.ID))
		err = models.ErrSessionNotActive
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit rotation: %w", err)
	}

	r.l.Info("Refresh session rotated",
		logger.Int64("old_id", old.ID),
		logger.Int64("new_id", next.ID),
		logger.String("subject_id", next.SubjectID))
	return next, nil
}

func (r *sessionRepo) Revoke(ctx context.Context, sessionID int64) error {
	if _, err := r.db.ExecContext(ctx, qSessionRevoke, sessionID); err != nil {
		r.l.Error("Failed to revoke session", logger.Error(err), logger.Int64("session_id", sessionID))
		return fmt.Errorf("failed to revoke session: %w", err)
	}

	return nil
}

func (r *sessionRepo) RevokeAll(ctx context.Context, subjectID string) (int64, error) {
	result, err := r.db.ExecContext(ctx, qSessionRevokeAll, subjectID)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke sessions for subject %s: %w", subjectID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	r.l.Info("Refresh sessions revoked",
		logger.String("subject_id", subjectID),
		logger.Int64("count", rowsAffected))
	return rowsAffected, nil
}

func (r *sessionRepo) DeleteByToken(ctx context.Context, tokenValue string) error {
	if _, err := r.db.ExecContext(ctx, qSessionDeleteByToken, tokenValue); err != nil {
		r.l.Error("Failed to delete session", logger.Error(err))
		return fmt.Errorf("failed to delete session: %w", err)
	}

	return nil
}

func (r *sessionRepo) CleanExpired(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, qSessionCleanExpired, r.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to clean expired sessions: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected, nil
}
