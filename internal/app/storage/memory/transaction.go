package memory

import (
	"context"
	"sync"
	"townmarket/internal/app/model"
	"townmarket/internal/app/storage"
)

// storage.TransactionRepository interface implementation
var _ storage.TransactionRepository = (*TransactionRepository)(nil)

type TransactionRepository struct {
	mu sync.RWMutex
	db map[string][]model.TransactionRecord
}

func NewTransactionRepository() *TransactionRepository {
	return &TransactionRepository{db: make(map[string][]model.TransactionRecord)}
}

// Append implementation of interface storage.TransactionRepository
func (r *TransactionRepository) Append(ctx context.Context, m *model.TransactionRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.db[m.AccountID] = append(r.db[m.AccountID], *m)
	return nil
}

// AllByAccountID implementation of interface storage.TransactionRepository
func (r *TransactionRepository) AllByAccountID(ctx context.Context, accountID string) ([]*model.TransactionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	rows := r.db[accountID]
	res := make([]*model.TransactionRecord, 0, len(rows))
	for i := range rows {
		m := rows[i]
		res = append(res, &m)
	}
	return res, nil
}
