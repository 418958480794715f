//go:generate mockgen -source=./interface.go -destination=./mock/storage.go -package=storagemock
package storage

import (
	"context"
	"github.com/google/uuid"
	"townmarket/internal/app/model"
)

type UserRepository interface {
	// Create a new model.User, apperr.ErrConflict if the id is taken
	Create(ctx context.Context, m *model.User) (*model.User, error)
	// ReadByIDAndPassword instance of model.User
	ReadByIDAndPassword(ctx context.Context, id, password string) (*model.User, error)
	// Read instance of model.User
	Read(ctx context.Context, id string) (*model.User, error)
}

type AccountRepository interface {
	// Read current state of model.Account, apperr.ErrNotFound if never written
	Read(ctx context.Context, id string) (*model.Account, error)
	// CompareAndSwap stores next only if the stored version still equals
	// prev.Version, or if the account is absent and prev is nil.
	// Returns apperr.ErrVersionConflict otherwise.
	CompareAndSwap(ctx context.Context, prev, next *model.Account) error
}

type TransactionRepository interface {
	// Append a record to the account history
	Append(ctx context.Context, m *model.TransactionRecord) error
	// AllByAccountID returns records in insertion order
	AllByAccountID(ctx context.Context, accountID string) ([]*model.TransactionRecord, error)
}

type AuctionRepository interface {
	// Create a new model.Auction
	Create(ctx context.Context, m *model.Auction) (*model.Auction, error)
	// Read instance of model.Auction
	Read(ctx context.Context, id uuid.UUID) (*model.Auction, error)
	// UpdateCurrentBid refreshes the cached leading amount and bid count
	UpdateCurrentBid(ctx context.Context, id uuid.UUID, amount int64, bidCount int) error
	// AppendBid adds a bid, bids are never updated or deleted
	AppendBid(ctx context.Context, m *model.Bid) error
	// Bids returns every bid of the auction in insertion order
	Bids(ctx context.Context, auctionID uuid.UUID) ([]*model.Bid, error)
}

type NotificationRepository interface {
	// Append a notification to the user feed
	Append(ctx context.Context, m *model.Notification) error
	// AllByUserID returns the feed, newest first
	AllByUserID(ctx context.Context, userID string) ([]*model.Notification, error)
}
