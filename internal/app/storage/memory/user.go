package memory

import (
	"context"
	"fmt"
	"golang.org/x/crypto/bcrypt"
	"sync"
	"townmarket/internal/app/apperr"
	"townmarket/internal/app/model"
	"townmarket/internal/app/storage"
)

// storage.UserRepository interface implementation
var _ storage.UserRepository = (*UserRepository)(nil)

type UserRepository struct {
	mu sync.RWMutex
	db map[string]model.User
}

func NewUserRepository() *UserRepository {
	return &UserRepository{db: make(map[string]model.User)}
}

// Create implementation of interface storage.UserRepository
func (r *UserRepository) Create(ctx context.Context, m *model.User) (*model.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(m.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("password hash: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.db[m.ID]; ok {
		return nil, apperr.ErrConflict
	}
	r.db[m.ID] = model.User{ID: m.ID, Name: m.Name, Password: string(hash)}

	return &model.User{ID: m.ID, Name: m.Name}, nil
}

// ReadByIDAndPassword implementation of interface storage.UserRepository
func (r *UserRepository) ReadByIDAndPassword(ctx context.Context, id string, password string) (*model.User, error) {
	r.mu.RLock()
	m, ok := r.db[id]
	r.mu.RUnlock()

	if !ok {
		return nil, apperr.ErrNotFound
	}
	if err := bcrypt.CompareHashAndPassword([]byte(m.Password), []byte(password)); err != nil {
		return nil, apperr.ErrNotFound
	}

	return &model.User{ID: m.ID, Name: m.Name}, nil
}

// Read implementation of interface storage.UserRepository
func (r *UserRepository) Read(ctx context.Context, id string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.db[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return &model.User{ID: m.ID, Name: m.Name}, nil
}
