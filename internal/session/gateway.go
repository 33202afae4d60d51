package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/AtoyanMikhail/tasks-auth/internal/logger"
	"github.com/AtoyanMikhail/tasks-auth/internal/metrics"
	"github.com/AtoyanMikhail/tasks-auth/internal/repository/models"
	"github.com/AtoyanMikhail/tasks-auth/internal/token"
)

// AccessVerifier verifies access tokens.
type AccessVerifier interface {
	Verify(raw string, kind token.Kind) (*token.Claims, error)
}

// PrincipalFinder looks principals up by id, returning nil when none exists.
type PrincipalFinder interface {
	FindByID(ctx context.Context, id string) (*models.Principal, error)
}

// Gateway guards protected handlers. Access tokens are checked statelessly;
// sessions are never consulted.
type Gateway struct {
	codec      AccessVerifier
	principals PrincipalFinder
	metrics    *metrics.Metrics
	logger     logger.Logger
}

func NewGateway(codec AccessVerifier, principals PrincipalFinder, m *metrics.Metrics, l logger.Logger) *Gateway {
	return &Gateway{
		codec:      codec,
		principals: principals,
		metrics:    m,
		logger:     l,
	}
}

// Authenticate resolves the principal an access token was issued to.
func (g *Gateway) Authenticate(ctx context.Context, raw string) (p *models.Principal, err error) {
	defer func() { g.metrics.Authenticate(KindOf(err).String()) }()

	if raw == "" {
		return nil, ErrNoToken
	}

	claims, err := g.codec.Verify(raw, token.Access)
	if err != nil {
		if errors.Is(err, token.ErrExpiredToken) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	p, err = g.principals.FindByID(ctx, claims.SubjectID)
	if err != nil {
		g.logger.Error("Failed to look up principal", logger.String("subject_id", claims.SubjectID), logger.Error(err))
		return nil, fmt.Errorf("find principal: %w", err)
	}
	if p == nil {
		return nil, ErrUnknownSubject
	}

	return p, nil
}
