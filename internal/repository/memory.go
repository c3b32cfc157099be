package repository

import (
	"context"
	"sync"
	"time"

	"deskbot/internal/models"

	"golang.org/x/time/rate"
)

// MemoryStateRepository is the in-process store used when redis is
// not configured or unreachable.
type MemoryStateRepository struct {
	mu       sync.Mutex
	ttl      time.Duration
	states   map[int64]*models.UserState
	limiters map[int64]*rate.Limiter
	now      func() time.Time
}

func NewMemoryStateRepository(ttl time.Duration) *MemoryStateRepository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &MemoryStateRepository{
		ttl:      ttl,
		states:   make(map[int64]*models.UserState),
		limiters: make(map[int64]*rate.Limiter),
		now:      time.Now,
	}
}

func (m *MemoryStateRepository) GetState(_ context.Context, userID int64) (*models.UserState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.states[userID]
	if !ok {
		return nil, nil
	}
	if m.now().Sub(state.UpdatedAt) > m.ttl {
		delete(m.states, userID)
		return nil, nil
	}
	cp := *state
	cp.TempData = make(map[string]interface{}, len(state.TempData))
	for k, v := range state.TempData {
		cp.TempData[k] = v
	}
	return &cp, nil
}

func (m *MemoryStateRepository) SetState(_ context.Context, state *models.UserState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	state.UpdatedAt = m.now()
	cp := *state
	cp.TempData = make(map[string]interface{}, len(state.TempData))
	for k, v := range state.TempData {
		cp.TempData[k] = v
	}
	m.states[state.UserID] = &cp
	return nil
}

func (m *MemoryStateRepository) ClearState(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, userID)
	return nil
}

// CheckRateLimit uses a token bucket refilled at limit per window.
func (m *MemoryStateRepository) CheckRateLimit(_ context.Context, userID int64, limit int, window time.Duration) (bool, error) {
	if limit <= 0 || window <= 0 {
		return true, nil
	}
	m.mu.Lock()
	l, ok := m.limiters[userID]
	if !ok {
		l = rate.NewLimiter(rate.Limit(float64(limit)/window.Seconds()), limit)
		m.limiters[userID] = l
	}
	m.mu.Unlock()
	return l.AllowN(m.now(), 1), nil
}

// Sweep drops expired states.
func (m *MemoryStateRepository) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, s := range m.states {
		if m.now().Sub(s.UpdatedAt) > m.ttl {
			delete(m.states, id)
			removed++
		}
	}
	return removed
}
