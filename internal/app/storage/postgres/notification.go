package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"townmarket/internal/app/model"
	"townmarket/internal/app/storage"
)

// storage.NotificationRepository interface implementation
var _ storage.NotificationRepository = (*NotificationRepository)(nil)

type NotificationRepository struct {
	db *sql.DB
}

func NewNotificationRepository(db *sql.DB) (*NotificationRepository, error) {
	return &NotificationRepository{db: db}, nil
}

// Append implementation of interface storage.NotificationRepository
func (r *NotificationRepository) Append(ctx context.Context, m *model.Notification) error {
	const SQL = `
		INSERT INTO notifications (id, user_id, type, message, reference, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
`
	if _, err := r.db.ExecContext(ctx, SQL, m.ID, m.UserID, m.Type, m.Message, m.Reference, m.CreatedAt); err != nil {
		return fmt.Errorf("insert: %w", err)
	}
	return nil
}

// AllByUserID implementation of interface storage.NotificationRepository
func (r *NotificationRepository) AllByUserID(ctx context.Context, userID string) ([]*model.Notification, error) {
	const SQL = `
		SELECT id, user_id, type, message, reference, created_at
		FROM notifications
		WHERE user_id=$1
		ORDER BY seq DESC
		LIMIT 100
`
	rows, err := r.db.QueryContext(ctx, SQL, userID)
	if err != nil {
		return nil, fmt.Errorf("select: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	res := make([]*model.Notification, 0)
	for rows.Next() {
		m := &model.Notification{}
		if err := rows.Scan(&m.ID, &m.UserID, &m.Type, &m.Message, &m.Reference, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		res = append(res, m)
	}

	return res, rows.Err()
}
