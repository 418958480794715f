package memory

import (
	"context"
	"github.com/google/uuid"
	"sync"
	"townmarket/internal/app/apperr"
	"townmarket/internal/app/model"
	"townmarket/internal/app/storage"
)

// storage.AuctionRepository interface implementation
var _ storage.AuctionRepository = (*AuctionRepository)(nil)

type AuctionRepository struct {
	mu       sync.RWMutex
	auctions map[uuid.UUID]model.Auction
	bids     map[uuid.UUID][]model.Bid
}

func NewAuctionRepository() *AuctionRepository {
	return &AuctionRepository{
		auctions: make(map[uuid.UUID]model.Auction),
		bids:     make(map[uuid.UUID][]model.Bid),
	}
}

// Create implementation of interface storage.AuctionRepository
func (r *AuctionRepository) Create(ctx context.Context, m *model.Auction) (*model.Auction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.auctions[m.ID]; ok {
		return nil, apperr.ErrConflict
	}
	r.auctions[m.ID] = *m
	return m, nil
}

// Read implementation of interface storage.AuctionRepository
func (r *AuctionRepository) Read(ctx context.Context, id uuid.UUID) (*model.Auction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.auctions[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return &m, nil
}

// UpdateCurrentBid implementation of interface storage.AuctionRepository
func (r *AuctionRepository) UpdateCurrentBid(ctx context.Context, id uuid.UUID, amount int64, bidCount int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.auctions[id]
	if !ok {
		return apperr.ErrNotFound
	}
	if amount > m.CurrentBidAmount {
		m.CurrentBidAmount = amount
	}
	if bidCount > m.BidCount {
		m.BidCount = bidCount
	}
	r.auctions[id] = m
	return nil
}

// AppendBid implementation of interface storage.AuctionRepository
func (r *AuctionRepository) AppendBid(ctx context.Context, m *model.Bid) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.auctions[m.AuctionID]; !ok {
		return apperr.ErrNotFound
	}
	r.bids[m.AuctionID] = append(r.bids[m.AuctionID], *m)
	return nil
}

// Bids implementation of interface storage.AuctionRepository
func (r *AuctionRepository) Bids(ctx context.Context, auctionID uuid.UUID) ([]*model.Bid, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	rows := r.bids[auctionID]
	res := make([]*model.Bid, 0, len(rows))
	for i := range rows {
		m := rows[i]
		res = append(res, &m)
	}
	return res, nil
}
