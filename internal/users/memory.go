package users

import (
	"context"
	"sync"
	"time"

	"github.com/quantlens/quantlens/backend/gateway/internal/models"
)

// MemoryRepository is an in-memory Repository used when no MongoDB is
// configured (development and unit tests).
type MemoryRepository struct {
	mu    sync.RWMutex
	byID  map[string]*models.User
	byKey map[string]string // username -> id
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:  make(map[string]*models.User),
		byKey: make(map[string]string),
	}
}

func (r *MemoryRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byKey[username]
	if !ok {
		return nil, nil
	}
	u := *r.byID[id]
	return &u, nil
}

func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (r *MemoryRepository) Create(ctx context.Context, u *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	cp := *u
	r.byID[u.ID] = &cp
	r.byKey[u.Username] = u.ID
	return nil
}
