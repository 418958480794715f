package handler

import (
	"context"
	"net/http"
	"townmarket/internal/app/logger"
	"townmarket/internal/app/model"
)

type Notifications interface {
	List(ctx context.Context, userID string) ([]*model.Notification, error)
}

type NotificationHandler struct {
	notifications Notifications
}

func NewNotificationHandler(notifications Notifications) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := logger.Get(ctx, "Handler.Notification.List")

	u, err := ReadContextUser(ctx)
	if err != nil {
		WriteError(w, err, http.StatusUnauthorized)
		return
	}

	mm, err := h.notifications.List(ctx, u.ID)
	if err != nil {
		writeServiceError(l, w, err)
		return
	}

	if len(mm) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	WriteResponse(w, mm, http.StatusOK)
}
