package model

import (
	"github.com/google/uuid"
	"time"
)

type NotificationType string

const (
	NotificationTransferSent     NotificationType = "transfer_sent"
	NotificationTransferReceived NotificationType = "transfer_received"
	NotificationDeposit          NotificationType = "deposit"
	NotificationOutbid           NotificationType = "outbid"
)

type Notification struct {
	ID        uuid.UUID        `json:"id"`
	UserID    string           `json:"user_id"`
	Type      NotificationType `json:"type"`
	Message   string           `json:"message"`
	Reference string           `json:"reference,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}
