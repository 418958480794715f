package memory

import (
	"context"
	"sync"
	"time"
	"townmarket/internal/app/apperr"
	"townmarket/internal/app/model"
	"townmarket/internal/app/storage"
)

// storage.AccountRepository interface implementation
var _ storage.AccountRepository = (*AccountRepository)(nil)

type AccountRepository struct {
	mu sync.RWMutex
	db map[string]model.Account
}

func NewAccountRepository() *AccountRepository {
	return &AccountRepository{db: make(map[string]model.Account)}
}

// Read implementation of interface storage.AccountRepository
func (r *AccountRepository) Read(ctx context.Context, id string) (*model.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.db[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return &m, nil
}

// CompareAndSwap implementation of interface storage.AccountRepository
func (r *AccountRepository) CompareAndSwap(ctx context.Context, prev, next *model.Account) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.db[next.ID]
	switch {
	case prev == nil && ok:
		return apperr.ErrVersionConflict
	case prev != nil && (!ok || cur.Version != prev.Version):
		return apperr.ErrVersionConflict
	}

	stored := *next
	stored.Version = cur.Version + 1
	stored.UpdatedAt = time.Now()
	r.db[next.ID] = stored

	next.Version = stored.Version
	next.UpdatedAt = stored.UpdatedAt
	return nil
}
