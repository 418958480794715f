// Package notify keeps the per-user notification feed.
package notify

import (
	"context"
	"fmt"
	"github.com/google/uuid"
	"time"
	"townmarket/internal/app/apperr"
	"townmarket/internal/app/logger"
	"townmarket/internal/app/model"
	"townmarket/internal/app/storage"
	"townmarket/internal/app/stream"
)

type Service struct {
	notifications storage.NotificationRepository
	broker        stream.Broker
	paths         storage.Paths
	now           func() time.Time
}

func (s *Service) LoggerComponent() string {
	return "Notify.Service"
}

func New(notifications storage.NotificationRepository, broker stream.Broker, paths storage.Paths) *Service {
	return &Service{
		notifications: notifications,
		broker:        broker,
		paths:         paths,
		now:           time.Now,
	}
}

// Push appends a notification and signals the user feed. A failed signal
// is logged only, the feed itself is the source of truth.
func (s *Service) Push(ctx context.Context, userID string, typ model.NotificationType, message, reference string) (*model.Notification, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: empty user id", apperr.ErrInvalidRequest)
	}

	m := &model.Notification{
		ID:        uuid.New(),
		UserID:    userID,
		Type:      typ,
		Message:   message,
		Reference: reference,
		CreatedAt: s.now(),
	}

	if err := s.notifications.Append(ctx, m); err != nil {
		return nil, fmt.Errorf("%w: %w", apperr.ErrUnavailable, err)
	}

	if err := s.broker.Publish(ctx, s.paths.Notifications(userID)); err != nil {
		log := logger.Get(ctx, s)
		log.Warn().Err(err).Str("user_id", userID).Msg("Feed signal failed")
	}

	return m, nil
}

// List returns the feed of a user, newest first
func (s *Service) List(ctx context.Context, userID string) ([]*model.Notification, error) {
	mm, err := s.notifications.AllByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperr.ErrUnavailable, err)
	}
	return mm, nil
}
