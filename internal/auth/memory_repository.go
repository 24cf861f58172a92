package auth

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is an in-process Repository used by tests.
type MemoryRepository struct {
	mu      sync.Mutex
	byEmail map[string]*AdminUser
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byEmail: make(map[string]*AdminUser)}
}

func (r *MemoryRepository) CreateAdmin(ctx context.Context, user *AdminUser) (*AdminUser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := strings.ToLower(user.Email)
	if _, exists := r.byEmail[key]; exists {
		return nil, ErrEmailTaken
	}

	now := time.Now()
	created := *user
	created.ID = uuid.New()
	created.CreatedAt = now
	created.UpdatedAt = now
	r.byEmail[key] = &created

	out := created
	return &out, nil
}

func (r *MemoryRepository) GetAdminByEmail(ctx context.Context, email string) (*AdminUser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, ErrAdminNotFound
	}
	out := *u
	return &out, nil
}
