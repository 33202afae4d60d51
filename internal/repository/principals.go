package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/AtoyanMikhail/tasks-auth/internal/logger"
	"github.com/AtoyanMikhail/tasks-auth/internal/repository/models"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const (
	qPrincipalCreate = `
		INSERT INTO users (id, name, email, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	qPrincipalByID = `
		SELECT id, name, email, password_hash, last_login_at, created_at
		FROM users
		WHERE id = $1`

	qPrincipalByEmail = `
		SELECT id, name, email, password_hash, last_login_at, created_at
		FROM users
		WHERE email = $1`

	qPrincipalTouch = `UPDATE users SET last_login_at = $2 WHERE id = $1`
)

type principalRepo struct {
	db  *sqlx.DB
	l   logger.Logger
	now func() time.Time
}

func NewPrincipalRepository(db *sqlx.DB, l logger.Logger) models.PrincipalRepository {
	return &principalRepo{db: db, l: l, now: time.Now}
}

// Create inserts p, assigning ID and CreatedAt when they are empty.
func (r *principalRepo) Create(ctx context.Context, p *models.Principal) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = r.now().UTC()
	}
	p.Email = normalizeEmail(p.Email)

	_, err := r.db.ExecContext(ctx, qPrincipalCreate, p.ID, p.Name, p.Email, p.PasswordHash, p.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return models.ErrPrincipalExists
		}
		r.l.Error("Failed to create principal", logger.Error(err))
		return fmt.Errorf("failed to create principal: %w", err)
	}

	r.l.Info("Principal created", logger.String("id", p.ID))
	return nil
}

func (r *principalRepo) FindByID(ctx context.Context, id string) (*models.Principal, error) {
	// ids are UUIDs; anything else cannot exist and would only make Postgres complain
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}
	return r.findOne(ctx, qPrincipalByID, id)
}

func (r *principalRepo) FindByEmail(ctx context.Context, email string) (*models.Principal, error) {
	return r.findOne(ctx, qPrincipalByEmail, normalizeEmail(email))
}

func (r *principalRepo) findOne(ctx context.Context, query string, arg string) (*models.Principal, error) {
	p := &models.Principal{}
	if err := r.db.GetContext(ctx, p, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get principal: %w", err)
	}
	return p, nil
}

func (r *principalRepo) TouchLastLogin(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, qPrincipalTouch, id, r.now().UTC()); err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return nil
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
