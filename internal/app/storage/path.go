package storage

import (
	"github.com/google/uuid"
	"path"
)

// Paths builds hierarchical keys under a single application root.
// Stream topics use the same keys as the data they announce.
type Paths struct {
	Root string
}

func NewPaths(root string) Paths {
	if root == "" {
		root = "townmarket"
	}
	return Paths{Root: root}
}

func (p Paths) Account(id string) string {
	return path.Join(p.Root, "accounts", id)
}

func (p Paths) Transactions(accountID string) string {
	return path.Join(p.Account(accountID), "transactions")
}

func (p Paths) AuctionBids(id uuid.UUID) string {
	return path.Join(p.Root, "auctions", id.String(), "bids")
}

func (p Paths) Notifications(userID string) string {
	return path.Join(p.Root, "users", userID, "notifications")
}
