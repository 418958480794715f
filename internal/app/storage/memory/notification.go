package memory

import (
	"context"
	"sync"
	"townmarket/internal/app/model"
	"townmarket/internal/app/storage"
)

// storage.NotificationRepository interface implementation
var _ storage.NotificationRepository = (*NotificationRepository)(nil)

type NotificationRepository struct {
	mu sync.RWMutex
	db map[string][]model.Notification
}

func NewNotificationRepository() *NotificationRepository {
	return &NotificationRepository{db: make(map[string][]model.Notification)}
}

// Append implementation of interface storage.NotificationRepository
func (r *NotificationRepository) Append(ctx context.Context, m *model.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.db[m.UserID] = append(r.db[m.UserID], *m)
	return nil
}

// AllByUserID implementation of interface storage.NotificationRepository
func (r *NotificationRepository) AllByUserID(ctx context.Context, userID string) ([]*model.Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rows := r.db[userID]
	res := make([]*model.Notification, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		m := rows[i]
		res = append(res, &m)
	}
	return res, nil
}
