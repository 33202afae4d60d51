package http

import (
	"context"

	"github.com/AtoyanMikhail/tasks-auth/internal/repository/models"
	"github.com/AtoyanMikhail/tasks-auth/internal/session"
	"github.com/stretchr/testify/mock"
)

type mockSessionService struct {
	mock.Mock
}

func (m *mockSessionService) Login(ctx context.Context, subjectID string, meta session.Metadata) (*session.TokenPair, error) {
	args := m.Called(ctx, subjectID, meta)
	p, _ := args.Get(0).(*session.TokenPair)
	return p, args.Error(1)
}

func (m *mockSessionService) Refresh(ctx context.Context, raw string, meta session.Metadata) (*session.TokenPair, error) {
	args := m.Called(ctx, raw, meta)
	p, _ := args.Get(0).(*session.TokenPair)
	return p, args.Error(1)
}

func (m *mockSessionService) Logout(ctx context.Context, raw string) error {
	args := m.Called(ctx, raw)
	return args.Error(0)
}

func (m *mockSessionService) LogoutAll(ctx context.Context, subjectID string) (int64, error) {
	args := m.Called(ctx, subjectID)
	return args.Get(0).(int64), args.Error(1)
}

type mockPrincipalRepo struct {
	mock.Mock
}

func (m *mockPrincipalRepo) Create(ctx context.Context, p *models.Principal) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *mockPrincipalRepo) FindByID(ctx context.Context, id string) (*models.Principal, error) {
	args := m.Called(ctx, id)
	p, _ := args.Get(0).(*models.Principal)
	return p, args.Error(1)
}

func (m *mockPrincipalRepo) FindByEmail(ctx context.Context, email string) (*models.Principal, error) {
	args := m.Called(ctx, email)
	p, _ := args.Get(0).(*models.Principal)
	return p, args.Error(1)
}

func (m *mockPrincipalRepo) TouchLastLogin(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type mockHasher struct {
	mock.Mock
}

func (m *mockHasher) Hash(password string) (string, error) {
	args := m.Called(password)
	return args.String(0), args.Error(1)
}

func (m *mockHasher) Compare(hash, password string) error {
	args := m.Called(hash, password)
	return args.Error(0)
}

type mockAuthenticator struct {
	mock.Mock
}

func (m *mockAuthenticator) Authenticate(ctx context.Context, raw string) (*models.Principal, error) {
	args := m.Called(ctx, raw)
	p, _ := args.Get(0).(*models.Principal)
	return p, args.Error(1)
}
