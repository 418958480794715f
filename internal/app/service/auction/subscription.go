package auction

import (
	"context"
	"fmt"
	"github.com/google/uuid"
	"sync"
	"townmarket/internal/app/apperr"
	"townmarket/internal/app/logger"
	"townmarket/internal/app/model"
	"townmarket/internal/app/stream"
)

type State int

const (
	StateLive State = iota + 1
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateLive:
		return "live"
	case StateDisconnected:
		return "disconnected"
	}
	return "unknown"
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Update is a full view of an auction bid set. Bids and Leading are only
// meaningful when State is StateLive.
type Update struct {
	AuctionID uuid.UUID    `json:"auction_id"`
	State     State        `json:"state"`
	Bids      []*model.Bid `json:"bids"`
	Leading   *model.Bid   `json:"leading"`
	Err       error        `json:"-"`
}

type Subscription struct {
	cancel context.CancelFunc
	stream stream.Subscription
	done   chan struct{}
	once   sync.Once
}

// Close stops delivery and waits for the delivery goroutine. It must not be
// called from inside the update callback.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.cancel()
		_ = s.stream.Close()
	})
	<-s.done
}

// Done is closed once no more updates will be delivered
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Subscribe delivers the full bid set of an auction now and after every
// change. Updates come from a single goroutine, one at a time.
func (s *Service) Subscribe(ctx context.Context, auctionID uuid.UUID, onUpdate func(Update)) (*Subscription, error) {
	if _, err := s.Get(ctx, auctionID); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	l := logger.Get(ctx, s).With().Str("auction_id", auctionID.String()).Logger()
	ctx = l.WithContext(ctx)

	// listen before the first read so no change between the two is missed
	ss, err := s.broker.Subscribe(ctx, s.paths.AuctionBids(auctionID))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: %v", apperr.ErrUnavailable, err)
	}

	sub := &Subscription{
		cancel: cancel,
		stream: ss,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(sub.done)

		deliver := func(u Update) {
			if ctx.Err() != nil {
				return
			}
			onUpdate(u)
		}

		deliver(s.snapshot(ctx, auctionID))
		for e := range ss.Events() {
			switch e.Type {
			case stream.EventDisconnected:
				l.Debug().Msg("Bid stream disconnected")
				deliver(Update{AuctionID: auctionID, State: StateDisconnected, Err: apperr.ErrDisconnected})
			case stream.EventResync:
				l.Debug().Msg("Bid stream resynced")
				deliver(s.snapshot(ctx, auctionID))
			default:
				deliver(s.snapshot(ctx, auctionID))
			}
		}
		l.Debug().Msg("Bid stream closed")
	}()

	return sub, nil
}

// snapshot reads the bid set. A failed read is reported as a disconnect,
// the next signal tries again.
func (s *Service) snapshot(ctx context.Context, auctionID uuid.UUID) Update {
	bids, lead, err := s.Bids(ctx, auctionID)
	if err != nil {
		if ctx.Err() == nil {
			log := logger.Ctx(ctx)
			log.Warn().Err(err).Msg("Bid snapshot failed")
		}
		return Update{
			AuctionID: auctionID,
			State:     StateDisconnected,
			Err:       fmt.Errorf("%w: %w", apperr.ErrDisconnected, err),
		}
	}
	return Update{
		AuctionID: auctionID,
		State:     StateLive,
		Bids:      bids,
		Leading:   lead,
	}
}
