// Package auction runs live bidding.
//
// The leading bid is always derived from the full bid set: highest amount,
// earliest timestamp on ties. The Auction.CurrentBidAmount field is a cache
// refreshed after each bid and must not be trusted for display.
//
// The minimum increment check in PlaceBid is advisory. It is evaluated
// against the bids this instance has observed and is not enforced by the
// store, so two concurrent bids can both pass it.
package auction

import (
	"context"
	"errors"
	"fmt"
	"github.com/google/uuid"
	"math"
	"time"
	"townmarket/internal/app/apperr"
	"townmarket/internal/app/logger"
	"townmarket/internal/app/model"
	"townmarket/internal/app/service/dispatcher"
	"townmarket/internal/app/storage"
	"townmarket/internal/app/stream"
)

type Notifier interface {
	Push(ctx context.Context, userID string, typ model.NotificationType, message, reference string) (*model.Notification, error)
}

type Dispatcher interface {
	Run(ctx context.Context, name string, job dispatcher.Job) error
}

type Service struct {
	auctions   storage.AuctionRepository
	broker     stream.Broker
	paths      storage.Paths
	notifier   Notifier
	dispatcher Dispatcher
	now        func() time.Time
}

func (s *Service) LoggerComponent() string {
	return "Auction.Service"
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func New(auctions storage.AuctionRepository, broker stream.Broker, paths storage.Paths, notifier Notifier, d Dispatcher, opts ...Option) *Service {
	s := &Service{
		auctions:   auctions,
		broker:     broker,
		paths:      paths,
		notifier:   notifier,
		dispatcher: d,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type AuctionRequest struct {
	SellerID     string
	Title        string
	StartingBid  int64
	MinIncrement int64
	EndsAt       time.Time
}

func (s *Service) Create(ctx context.Context, in AuctionRequest) (*model.Auction, error) {
	if in.SellerID == "" || in.Title == "" {
		return nil, fmt.Errorf("%w: seller and title are required", apperr.ErrInvalidRequest)
	}
	if in.StartingBid < 0 || in.MinIncrement <= 0 {
		return nil, fmt.Errorf("%w: starting bid must not be negative and increment must be positive", apperr.ErrInvalidRequest)
	}
	if in.MinIncrement > math.MaxInt64-in.StartingBid {
		return nil, fmt.Errorf("%w: starting bid plus increment is out of range", apperr.ErrInvalidRequest)
	}

	now := s.now()
	if !in.EndsAt.IsZero() && !in.EndsAt.After(now) {
		return nil, fmt.Errorf("%w: auction ends in the past", apperr.ErrInvalidRequest)
	}

	m, err := s.auctions.Create(ctx, &model.Auction{
		ID:               uuid.New(),
		SellerID:         in.SellerID,
		Title:            in.Title,
		CurrentBidAmount: in.StartingBid,
		MinIncrement:     in.MinIncrement,
		EndsAt:           in.EndsAt,
		CreatedAt:        now,
	})
	if err != nil {
		return nil, unavailable(err)
	}

	log := logger.Get(ctx, s)
	log.Info().Str("auction_id", m.ID.String()).Str("seller_id", m.SellerID).Msg("Auction created")
	return m, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Auction, error) {
	m, err := s.auctions.Read(ctx, id)
	if err != nil {
		return nil, unavailable(err)
	}
	return m, nil
}

// Bids returns the full bid set and the leading bid derived from it
func (s *Service) Bids(ctx context.Context, id uuid.UUID) ([]*model.Bid, *model.Bid, error) {
	bids, err := s.auctions.Bids(ctx, id)
	if err != nil {
		return nil, nil, unavailable(err)
	}
	return bids, Leading(bids), nil
}

type BidRequest struct {
	BidderID   string
	BidderName string
	Amount     int64
}

// PlaceBid appends a bid that clears the observed leading amount by at
// least the auction increment.
func (s *Service) PlaceBid(ctx context.Context, auctionID uuid.UUID, in BidRequest) (*model.Bid, error) {
	if in.BidderID == "" {
		return nil, fmt.Errorf("%w: bidder is required", apperr.ErrInvalidRequest)
	}
	if in.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", apperr.ErrInvalidRequest)
	}

	l := logger.Get(ctx, s).With().
		Str("auction_id", auctionID.String()).
		Str("bidder_id", in.BidderID).
		Int64("amount", in.Amount).
		Logger()

	a, err := s.Get(ctx, auctionID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if a.Closed(now) {
		return nil, apperr.ErrAuctionClosed
	}
	if a.SellerID == in.BidderID {
		return nil, fmt.Errorf("%w: seller cannot bid", apperr.ErrInvalidRequest)
	}

	_, lead, err := s.Bids(ctx, auctionID)
	if err != nil {
		return nil, err
	}

	observed := a.CurrentBidAmount
	if lead != nil && lead.Amount > observed {
		observed = lead.Amount
	}
	if a.MinIncrement > math.MaxInt64-observed {
		l.Debug().Int64("observed", observed).Int64("increment", a.MinIncrement).Msg("No bid can clear the increment")
		return nil, fmt.Errorf("%w: increment %d exceeds the bid range", apperr.ErrBidTooLow, a.MinIncrement)
	}
	if floor := observed + a.MinIncrement; in.Amount < floor {
		l.Debug().Int64("minimum", floor).Msg("Bid too low")
		return nil, fmt.Errorf("%w: minimum is %d", apperr.ErrBidTooLow, floor)
	}

	bid := &model.Bid{
		ID:         uuid.New(),
		AuctionID:  auctionID,
		BidderID:   in.BidderID,
		BidderName: in.BidderName,
		Amount:     in.Amount,
		CreatedAt:  now,
	}
	if err := bid.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidRequest, err)
	}

	if err := s.auctions.AppendBid(ctx, bid); err != nil {
		return nil, unavailable(err)
	}
	l.Info().Str("bid_id", bid.ID.String()).Msg("Bid placed")

	if err := s.broker.Publish(ctx, s.paths.AuctionBids(auctionID)); err != nil {
		l.Warn().Err(err).Msg("Bid signal failed")
	}

	s.schedule(ctx, "auction.refresh_current_bid", s.refreshCurrentBid(auctionID))

	if lead != nil && lead.BidderID != in.BidderID {
		msg := fmt.Sprintf("You were outbid on %q: %d", a.Title, in.Amount)
		outbid := lead.BidderID
		s.schedule(ctx, "auction.notify_outbid", func(ctx context.Context) error {
			_, err := s.notifier.Push(ctx, outbid, model.NotificationOutbid, msg, auctionID.String())
			return err
		})
	}

	return bid, nil
}

// refreshCurrentBid rewrites the cached leading amount from the bid set
func (s *Service) refreshCurrentBid(id uuid.UUID) dispatcher.Job {
	return func(ctx context.Context) error {
		bids, lead, err := s.Bids(ctx, id)
		if err != nil {
			return err
		}
		if lead == nil {
			return nil
		}
		return s.auctions.UpdateCurrentBid(ctx, id, lead.Amount, len(bids))
	}
}

func (s *Service) schedule(ctx context.Context, name string, job dispatcher.Job) {
	if err := s.dispatcher.Run(ctx, name, job); err != nil {
		log := logger.Get(ctx, s)
		log.Warn().Err(err).Str("job", name).Msg("Side update dropped")
	}
}

// Leading returns the highest bid, the earliest one on ties, nil for no bids
func Leading(bids []*model.Bid) *model.Bid {
	var lead *model.Bid
	for _, b := range bids {
		if b.Outranks(lead) {
			lead = b
		}
	}
	return lead
}

func unavailable(err error) error {
	switch {
	case errors.Is(err, apperr.ErrNotFound),
		errors.Is(err, apperr.ErrConflict),
		errors.Is(err, apperr.ErrUnavailable),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return err
	}
	return fmt.Errorf("%w: %w", apperr.ErrUnavailable, err)
}
