package model

import (
	"fmt"
	"github.com/google/uuid"
	"time"
)

type Auction struct {
	ID       uuid.UUID `json:"id"`
	SellerID string    `json:"seller_id"`
	Title    string    `json:"title"`
	// CurrentBidAmount is a cache of the leading bid written after each bid; it may lag.
	CurrentBidAmount int64     `json:"current_bid_amount"`
	BidCount         int       `json:"bid_count"`
	MinIncrement     int64     `json:"min_increment"`
	EndsAt           time.Time `json:"ends_at,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// Closed reports whether bidding has ended at t. A zero EndsAt never closes.
func (a *Auction) Closed(t time.Time) bool {
	return !a.EndsAt.IsZero() && !t.Before(a.EndsAt)
}

type Bid struct {
	ID         uuid.UUID `json:"id"`
	AuctionID  uuid.UUID `json:"auction_id"`
	BidderID   string    `json:"bidder_id"`
	BidderName string    `json:"bidder_name"`
	Amount     int64     `json:"amount"`
	CreatedAt  time.Time `json:"timestamp"`
}

func (b *Bid) Validate() error {
	if b.ID == uuid.Nil {
		return fmt.Errorf("bid id is empty")
	}
	if b.AuctionID == uuid.Nil {
		return fmt.Errorf("auction id is empty")
	}
	if b.BidderID == "" {
		return fmt.Errorf("bidder id is empty")
	}
	if b.Amount <= 0 {
		return fmt.Errorf("amount %d is not positive", b.Amount)
	}
	if b.CreatedAt.IsZero() {
		return fmt.Errorf("timestamp is empty")
	}
	return nil
}

// Outranks reports whether b leads over o: higher amount first, then earlier
// timestamp, then lower id so that every observer picks the same leader.
func (b *Bid) Outranks(o *Bid) bool {
	if o == nil {
		return true
	}
	if b.Amount != o.Amount {
		return b.Amount > o.Amount
	}
	if !b.CreatedAt.Equal(o.CreatedAt) {
		return b.CreatedAt.Before(o.CreatedAt)
	}
	return b.ID.String() < o.ID.String()
}
