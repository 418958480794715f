package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"net/http"
	"time"
	"townmarket/internal/app/apperr"
	"townmarket/internal/app/logger"
	"townmarket/internal/app/model"
	"townmarket/internal/app/service/auction"
)

type Auctions interface {
	Create(ctx context.Context, in auction.AuctionRequest) (*model.Auction, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Auction, error)
	Bids(ctx context.Context, id uuid.UUID) ([]*model.Bid, *model.Bid, error)
	PlaceBid(ctx context.Context, id uuid.UUID, in auction.BidRequest) (*model.Bid, error)
	Subscribe(ctx context.Context, id uuid.UUID, onUpdate func(auction.Update)) (*auction.Subscription, error)
}

type AuctionHandler struct {
	auctions  Auctions
	exponent  int32
	keepAlive time.Duration
}

func NewAuctionHandler(auctions Auctions, exponent int32) *AuctionHandler {
	return &AuctionHandler{
		auctions:  auctions,
		exponent:  exponent,
		keepAlive: 15 * time.Second,
	}
}

type auctionView struct {
	ID               string          `json:"id"`
	SellerID         string          `json:"seller_id"`
	Title            string          `json:"title"`
	CurrentBidAmount decimal.Decimal `json:"current_bid_amount"`
	BidCount         int             `json:"bid_count"`
	MinIncrement     decimal.Decimal `json:"min_increment"`
	EndsAt           *time.Time      `json:"ends_at,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	Leading          *bidView        `json:"leading,omitempty"`
}

type bidView struct {
	ID         string          `json:"id"`
	BidderID   string          `json:"bidder_id"`
	BidderName string          `json:"bidder_name"`
	Amount     decimal.Decimal `json:"amount"`
	Timestamp  time.Time       `json:"timestamp"`
}

type updateView struct {
	AuctionID string     `json:"auction_id"`
	State     string     `json:"state"`
	Bids      []*bidView `json:"bids,omitempty"`
	Leading   *bidView   `json:"leading,omitempty"`
	Error     string     `json:"error,omitempty"`
}

func (h *AuctionHandler) bid(m *model.Bid) *bidView {
	if m == nil {
		return nil
	}
	return &bidView{
		ID:         m.ID.String(),
		BidderID:   m.BidderID,
		BidderName: m.BidderName,
		Amount:     model.FromMinor(m.Amount, h.exponent),
		Timestamp:  m.CreatedAt,
	}
}

func (h *AuctionHandler) auction(m *model.Auction, lead *model.Bid) *auctionView {
	v := &auctionView{
		ID:               m.ID.String(),
		SellerID:         m.SellerID,
		Title:            m.Title,
		CurrentBidAmount: model.FromMinor(m.CurrentBidAmount, h.exponent),
		BidCount:         m.BidCount,
		MinIncrement:     model.FromMinor(m.MinIncrement, h.exponent),
		CreatedAt:        m.CreatedAt,
		Leading:          h.bid(lead),
	}
	if !m.EndsAt.IsZero() {
		t := m.EndsAt
		v.EndsAt = &t
	}
	return v
}

func (h *AuctionHandler) update(u auction.Update) *updateView {
	v := &updateView{
		AuctionID: u.AuctionID.String(),
		State:     u.State.String(),
		Leading:   h.bid(u.Leading),
	}
	for _, b := range u.Bids {
		v.Bids = append(v.Bids, h.bid(b))
	}
	if u.Err != nil {
		v.Error = u.Err.Error()
	}
	return v
}

func (h *AuctionHandler) minor(d decimal.Decimal, allowZero bool) (int64, error) {
	if allowZero && d.IsZero() {
		return 0, nil
	}
	v, err := model.ToMinor(d, h.exponent)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", apperr.ErrInvalidRequest, err)
	}
	return v, nil
}

func auctionID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: auction id: %v", apperr.ErrInvalidRequest, err)
	}
	return id, nil
}

func (h *AuctionHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := logger.Get(ctx, "Handler.Auction.Create")

	u, err := ReadContextUser(ctx)
	if err != nil {
		WriteError(w, err, http.StatusUnauthorized)
		return
	}

	in := struct {
		Title        string          `json:"title" validate:"required,min=1,max=200"`
		StartingBid  decimal.Decimal `json:"starting_bid"`
		MinIncrement decimal.Decimal `json:"min_increment"`
		EndsAt       time.Time       `json:"ends_at"`
	}{}

	if err := readBody(r, &in); err != nil {
		WriteError(w, err, http.StatusBadRequest)
		return
	}

	if !validateData(w, in) {
		return
	}

	start, err := h.minor(in.StartingBid, true)
	if err != nil {
		writeServiceError(l, w, err)
		return
	}
	increment, err := h.minor(in.MinIncrement, false)
	if err != nil {
		writeServiceError(l, w, err)
		return
	}

	m, err := h.auctions.Create(ctx, auction.AuctionRequest{
		SellerID:     u.ID,
		Title:        in.Title,
		StartingBid:  start,
		MinIncrement: increment,
		EndsAt:       in.EndsAt,
	})
	if err != nil {
		writeServiceError(l, w, err)
		return
	}

	WriteResponse(w, h.auction(m, nil), http.StatusCreated)
}

func (h *AuctionHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := logger.Get(ctx, "Handler.Auction.Get")

	id, err := auctionID(r)
	if err != nil {
		writeServiceError(l, w, err)
		return
	}

	m, err := h.auctions.Get(ctx, id)
	if err != nil {
		writeServiceError(l, w, err)
		return
	}

	_, lead, err := h.auctions.Bids(ctx, id)
	if err != nil {
		writeServiceError(l, w, err)
		return
	}

	WriteResponse(w, h.auction(m, lead), http.StatusOK)
}

func (h *AuctionHandler) PlaceBid(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := logger.Get(ctx, "Handler.Auction.PlaceBid")

	u, err := ReadContextUser(ctx)
	if err != nil {
		WriteError(w, err, http.StatusUnauthorized)
		return
	}

	id, err := auctionID(r)
	if err != nil {
		writeServiceError(l, w, err)
		return
	}

	in := struct {
		Amount decimal.Decimal `json:"amount"`
	}{}

	if err := readBody(r, &in); err != nil {
		WriteError(w, err, http.StatusBadRequest)
		return
	}

	amount, err := h.minor(in.Amount, false)
	if err != nil {
		writeServiceError(l, w, err)
		return
	}

	m, err := h.auctions.PlaceBid(ctx, id, auction.BidRequest{
		BidderID:   u.ID,
		BidderName: u.Name,
		Amount:     amount,
	})
	if err != nil {
		writeServiceError(l, w, err)
		return
	}

	WriteResponse(w, h.bid(m), http.StatusCreated)
}

// Stream sends every auction update as a server-sent event until the client
// goes away. Only the latest pending update is kept for a slow client.
func (h *AuctionHandler) Stream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := logger.Get(ctx, "Handler.Auction.Stream")

	id, err := auctionID(r)
	if err != nil {
		writeServiceError(l, w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteError(w, fmt.Errorf("streaming unsupported"), http.StatusInternalServerError)
		return
	}

	updates := make(chan auction.Update, 1)
	sub, err := h.auctions.Subscribe(ctx, id, func(u auction.Update) {
		for {
			select {
			case updates <- u:
				return
			default:
			}
			select {
			case <-updates:
			default:
			}
		}
	})
	if err != nil {
		writeServiceError(l, w, err)
		return
	}
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	l.Debug().Str("auction_id", id.String()).Msg("Stream opened")
	for {
		select {
		case <-ctx.Done():
			l.Debug().Str("auction_id", id.String()).Msg("Stream closed")
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case u := <-updates:
			data, err := json.Marshal(h.update(u))
			if err != nil {
				l.Error().Err(err).Msg("Update encode failed")
				return
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", u.State, data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
