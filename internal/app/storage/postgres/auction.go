package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"townmarket/internal/app/apperr"
	"townmarket/internal/app/logger"
	"townmarket/internal/app/model"
	"townmarket/internal/app/storage"
)

// storage.AuctionRepository interface implementation
var _ storage.AuctionRepository = (*AuctionRepository)(nil)

type AuctionRepository struct {
	db *sql.DB
}

func (r *AuctionRepository) LoggerComponent() string {
	return "AuctionRepository"
}

func NewAuctionRepository(db *sql.DB) (*AuctionRepository, error) {
	s := &AuctionRepository{
		db: db,
	}
	return s, nil
}

// Create implementation of interface storage.AuctionRepository
func (r *AuctionRepository) Create(ctx context.Context, m *model.Auction) (*model.Auction, error) {
	const SQL = `
		INSERT INTO auctions (id, seller_id, title, current_bid_amount, bid_count, min_increment, ends_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`
	endsAt := sql.NullTime{Time: m.EndsAt, Valid: !m.EndsAt.IsZero()}

	_, err := r.db.ExecContext(ctx, SQL, m.ID, m.SellerID, m.Title, m.CurrentBidAmount, m.BidCount, m.MinIncrement, endsAt, m.CreatedAt)
	if err != nil {
		if isIntegrityViolation(err) {
			return nil, apperr.ErrConflict
		}
		return nil, fmt.Errorf("insert: %w", err)
	}

	return m, nil
}

// Read implementation of interface storage.AuctionRepository
func (r *AuctionRepository) Read(ctx context.Context, id uuid.UUID) (*model.Auction, error) {
	const SQL = `
		SELECT id, seller_id, title, current_bid_amount, bid_count, min_increment, ends_at, created_at
		FROM auctions
		WHERE id=$1
`
	m := &model.Auction{}
	var endsAt sql.NullTime

	err := r.db.QueryRowContext(ctx, SQL, id).
		Scan(&m.ID, &m.SellerID, &m.Title, &m.CurrentBidAmount, &m.BidCount, &m.MinIncrement, &endsAt, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("select: %w", err)
	}
	if endsAt.Valid {
		m.EndsAt = endsAt.Time
	}

	return m, nil
}

// UpdateCurrentBid implementation of interface storage.AuctionRepository
func (r *AuctionRepository) UpdateCurrentBid(ctx context.Context, id uuid.UUID, amount int64, bidCount int) error {
	const SQL = `
		UPDATE auctions
		SET current_bid_amount=GREATEST(current_bid_amount, $1), bid_count=GREATEST(bid_count, $2)
		WHERE id=$3
`
	res, err := r.db.ExecContext(ctx, SQL, amount, bidCount, id)
	if err != nil {
		return fmt.Errorf("update: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return apperr.ErrNotFound
	}

	return nil
}

// AppendBid implementation of interface storage.AuctionRepository
func (r *AuctionRepository) AppendBid(ctx context.Context, m *model.Bid) error {
	const SQL = `
		INSERT INTO bids (id, auction_id, bidder_id, bidder_name, amount, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
`
	_, err := r.db.ExecContext(ctx, SQL, m.ID, m.AuctionID, m.BidderID, m.BidderName, m.Amount, m.CreatedAt)
	if err != nil {
		if pgCode(err) == pgerrcode.ForeignKeyViolation {
			return apperr.ErrNotFound
		}
		return fmt.Errorf("insert: %w", err)
	}

	return nil
}

// Bids implementation of interface storage.AuctionRepository
func (r *AuctionRepository) Bids(ctx context.Context, auctionID uuid.UUID) ([]*model.Bid, error) {
	l := logger.Get(ctx, r).With().Str("method", "Bids").Logger()

	const SQL = `
		SELECT id, auction_id, bidder_id, bidder_name, amount, created_at
		FROM bids
		WHERE auction_id=$1
		ORDER BY seq
`
	rows, err := r.db.QueryContext(ctx, SQL, auctionID)
	if err != nil {
		return nil, fmt.Errorf("select: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	res := make([]*model.Bid, 0)

	for rows.Next() {
		m := &model.Bid{}
		if err := rows.Scan(&m.ID, &m.AuctionID, &m.BidderID, &m.BidderName, &m.Amount, &m.CreatedAt); err != nil {
			l.Debug().Err(err).Send()
			return nil, fmt.Errorf("scan: %w", err)
		}
		res = append(res, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	return res, nil
}
