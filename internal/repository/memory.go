package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/AtoyanMikhail/tasks-auth/internal/repository/models"
)

var _ models.SessionRepository = (*MemorySessionRepository)(nil)

// MemorySessionRepository keeps sessions in process memory. It gives the same
// guarantees as the Postgres store for a single process and is used by tests
// and local development.
type MemorySessionRepository struct {
	mu      sync.Mutex
	now     func() time.Time
	nextID  int64
	byID    map[int64]*models.RefreshSession
	byToken map[string]int64
}

func NewMemorySessionRepository(now func() time.Time) *MemorySessionRepository {
	if now == nil {
		now = time.Now
	}
	return &MemorySessionRepository{
		now:     now,
		byID:    make(map[int64]*models.RefreshSession),
		byToken: make(map[string]int64),
	}
}

func (m *MemorySessionRepository) Create(_ context.Context, params models.CreateSessionParams) (*models.RefreshSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.insertLocked(params)
}

func (m *MemorySessionRepository) insertLocked(params models.CreateSessionParams) (*models.RefreshSession, error) {
	if _, exists := m.byToken[params.TokenValue]; exists {
		return nil, models.ErrDuplicateToken
	}

	now := m.now().UTC()
	m.nextID++
	s := &models.RefreshSession{
		ID:                 m.nextID,
		SubjectID:          params.SubjectID,
		TokenValue:         params.TokenValue,
		PreviousTokenValue: copyString(params.PreviousTokenValue),
		DeviceName:         params.DeviceName,
		SourceAddress:      params.SourceAddress,
		CreatedAt:          now,
		ExpiresAt:          now.Add(params.TTL),
	}
	m.byID[s.ID] = s
	m.byToken[s.TokenValue] = s.ID

	return clone(s), nil
}

func (m *MemorySessionRepository) FindActive(_ context.Context, tokenValue string) (*models.RefreshSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.byToken[tokenValue]
	if !ok {
		return nil, nil
	}
	s := m.byID[id]
	if !s.IsActive(m.now()) {
		return nil, nil
	}
	return clone(s), nil
}

func (m *MemorySessionRepository) FindByPreviousToken(_ context.Context, tokenValue, subjectID string) (*models.RefreshSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	var found *models.RefreshSession
	for _, s := range m.byID {
		if s.PreviousTokenValue == nil || *s.PreviousTokenValue != tokenValue {
			continue
		}
		if s.SubjectID != subjectID || !s.IsActive(now) {
			continue
		}
		if found == nil || s.CreatedAt.After(found.CreatedAt) {
			found = s
		}
	}
	if found == nil {
		return nil, nil
	}
	return clone(found), nil
}

func (m *MemorySessionRepository) Rotate(_ context.Context, old *models.RefreshSession, params models.CreateSessionParams) (*models.RefreshSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.byID[old.ID]
	if !ok || !current.IsActive(m.now()) {
		return nil, models.ErrSessionNotActive
	}

	next, err := m.insertLocked(params)
	if err != nil {
		return nil, err
	}
	current.IsRevoked = true

	return next, nil
}

func (m *MemorySessionRepository) Revoke(_ context.Context, sessionID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.byID[sessionID]; ok {
		s.IsRevoked = true
	}
	return nil
}

func (m *MemorySessionRepository) RevokeAll(_ context.Context, subjectID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for _, s := range m.byID {
		if s.SubjectID == subjectID && !s.IsRevoked {
			s.IsRevoked = true
			n++
		}
	}
	return n, nil
}

func (m *MemorySessionRepository) DeleteByToken(_ context.Context, tokenValue string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.byToken[tokenValue]; ok {
		delete(m.byID, id)
		delete(m.byToken, tokenValue)
	}
	return nil
}

func (m *MemorySessionRepository) CleanExpired(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	var n int64
	for id, s := range m.byID {
		if !now.Before(s.ExpiresAt) {
			delete(m.byID, id)
			delete(m.byToken, s.TokenValue)
			n++
		}
	}
	return n, nil
}

// Sessions returns copies of every stored session of subjectID, oldest first,
// regardless of state.
func (m *MemorySessionRepository) Sessions(subjectID string) []*models.RefreshSession {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*models.RefreshSession, 0)
	for _, s := range m.byID {
		if s.SubjectID == subjectID {
			out = append(out, clone(s))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func clone(s *models.RefreshSession) *models.RefreshSession {
	c := *s
	c.PreviousTokenValue = copyString(s.PreviousTokenValue)
	return &c
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
