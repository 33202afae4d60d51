package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/AtoyanMikhail/tasks-auth/internal/cache"
	"github.com/AtoyanMikhail/tasks-auth/internal/logger"
	"github.com/AtoyanMikhail/tasks-auth/internal/repository"
	"github.com/AtoyanMikhail/tasks-auth/internal/repository/models"
	"github.com/AtoyanMikhail/tasks-auth/internal/token"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	testAccessSecret  = "access-secret-access-secret-0001"
	testRefreshSecret = "refresh-secret-refresh-secret-01"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestCodec(t *testing.T, clock *testClock) *token.Codec {
	t.Helper()
	c, err := token.NewCodec(token.Config{
		AccessSecret:  []byte(testAccessSecret),
		RefreshSecret: []byte(testRefreshSecret),
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
		Issuer:        "tasks-auth",
		Now:           clock.Now,
	})
	require.NoError(t, err)
	return c
}

type harness struct {
	svc   *Service
	store *repository.MemorySessionRepository
	codec *token.Codec
	clock *testClock
}

func newHarness(t *testing.T, recorder *fakeRecorder, cfg Config) *harness {
	t.Helper()
	clock := &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	codec := newTestCodec(t, clock)
	store := repository.NewMemorySessionRepository(clock.Now)

	var rec cache.SecurityRecorder
	if recorder != nil {
		rec = recorder
	}

	return &harness{
		svc:   NewService(codec, store, rec, nil, cfg, logger.NewNop()),
		store: store,
		codec: codec,
		clock: clock,
	}
}

// fakeRecorder counts attempts in memory.
type fakeRecorder struct {
	mu       sync.Mutex
	attempts map[string]int64
	reuses   []string
	err      error
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{attempts: make(map[string]int64)}
}

func (f *fakeRecorder) RegisterRefreshAttempt(_ context.Context, subjectID, address string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	f.attempts[subjectID+":"+address]++
	return f.attempts[subjectID+":"+address], nil
}

func (f *fakeRecorder) RecordReuse(_ context.Context, subjectID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reuses = append(f.reuses, subjectID)
	return int64(len(f.reuses)), f.err
}

// mockSessions is a SessionRepository whose every call must be expected.
type mockSessions struct {
	mock.Mock
}

func (m *mockSessions) Create(ctx context.Context, params models.CreateSessionParams) (*models.RefreshSession, error) {
	args := m.Called(ctx, params)
	s, _ := args.Get(0).(*models.RefreshSession)
	return s, args.Error(1)
}

func (m *mockSessions) FindActive(ctx context.Context, tokenValue string) (*models.RefreshSession, error) {
	args := m.Called(ctx, tokenValue)
	s, _ := args.Get(0).(*models.RefreshSession)
	return s, args.Error(1)
}

func (m *mockSessions) FindByPreviousToken(ctx context.Context, tokenValue, subjectID string) (*models.RefreshSession, error) {
	args := m.Called(ctx, tokenValue, subjectID)
	s, _ := args.Get(0).(*models.RefreshSession)
	return s, args.Error(1)
}

func (m *mockSessions) Rotate(ctx context.Context, old *models.RefreshSession, params models.CreateSessionParams) (*models.RefreshSession, error) {
	args := m.Called(ctx, old, params)
	s, _ := args.Get(0).(*models.RefreshSession)
	return s, args.Error(1)
}

func (m *mockSessions) Revoke(ctx context.Context, sessionID int64) error {
	args := m.Called(ctx, sessionID)
	return args.Error(0)
}

func (m *mockSessions) RevokeAll(ctx context.Context, subjectID string) (int64, error) {
	args := m.Called(ctx, subjectID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockSessions) DeleteByToken(ctx context.Context, tokenValue string) error {
	args := m.Called(ctx, tokenValue)
	return args.Error(0)
}

func (m *mockSessions) CleanExpired(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

type mockPrincipals struct {
	mock.Mock
}

func (m *mockPrincipals) FindByID(ctx context.Context, id string) (*models.Principal, error) {
	args := m.Called(ctx, id)
	p, _ := args.Get(0).(*models.Principal)
	return p, args.Error(1)
}
