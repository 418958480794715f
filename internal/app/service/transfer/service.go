// Package transfer moves money between two wallets.
//
// A transfer is a debit of the sender followed by a credit of the receiver,
// not one atomic write: an observer may see the debit before the credit. The
// sender is never left debited, a failed credit is compensated before
// Transfer returns.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"github.com/google/uuid"
	"github.com/rs/xid"
	"time"
	"townmarket/internal/app/apperr"
	"townmarket/internal/app/logger"
	"townmarket/internal/app/model"
	"townmarket/internal/app/retry"
	"townmarket/internal/app/service/dispatcher"
)

type Ledger interface {
	ConditionalDebit(ctx context.Context, id string, amount int64) (*model.Account, error)
	Credit(ctx context.Context, id string, amount int64) (*model.Account, error)
	AppendTransaction(ctx context.Context, m *model.TransactionRecord) error
}

type Notifier interface {
	Push(ctx context.Context, userID string, typ model.NotificationType, message, reference string) (*model.Notification, error)
}

type Dispatcher interface {
	Run(ctx context.Context, name string, job dispatcher.Job) error
}

type Service struct {
	ledger     Ledger
	notifier   Notifier
	dispatcher Dispatcher
	policy     retry.Policy
	now        func() time.Time
}

func (s *Service) LoggerComponent() string {
	return "Transfer.Service"
}

type Option func(*Service)

// WithRetryPolicy sets the policy for compensations and record appends
func WithRetryPolicy(p retry.Policy) Option {
	return func(s *Service) {
		s.policy = p
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func New(ledger Ledger, notifier Notifier, d Dispatcher, opts ...Option) *Service {
	s := &Service{
		ledger:     ledger,
		notifier:   notifier,
		dispatcher: d,
		policy:     retry.Policy{Attempts: 5, Backoff: retry.Exponential(50*time.Millisecond, time.Second)},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Transfer(ctx context.Context, senderID, receiverID string, amount int64) (*model.TransferReceipt, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", apperr.ErrInvalidRequest)
	}
	if senderID == "" || receiverID == "" {
		return nil, fmt.Errorf("%w: empty account id", apperr.ErrInvalidRequest)
	}
	if senderID == receiverID {
		return nil, fmt.Errorf("%w: transfer to self", apperr.ErrInvalidRequest)
	}

	txID := xid.New().String()
	l := logger.Get(ctx, s).With().
		Str("transaction_id", txID).
		Str("sender_id", senderID).
		Str("receiver_id", receiverID).
		Int64("amount", amount).
		Logger()
	ctx = l.WithContext(ctx)

	sender, err := s.ledger.ConditionalDebit(ctx, senderID, amount)
	if err != nil {
		l.Debug().Err(err).Msg("Debit rejected")
		return nil, fmt.Errorf("debit: %w", err)
	}

	// the sender is debited, a caller going away must not stop the credit
	ctx = context.WithoutCancel(ctx)

	if _, err := s.ledger.Credit(ctx, receiverID, amount); err != nil {
		l.Warn().Err(err).Msg("Credit failed, compensating sender")
		s.compensate(ctx, txID, senderID, receiverID, amount)

		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.ErrUnknownReceiver
		}
		return nil, fmt.Errorf("credit: %w", err)
	}

	now := s.now()
	debit := &model.TransactionRecord{
		ID:             uuid.New(),
		TransactionID:  txID,
		AccountID:      senderID,
		Amount:         amount,
		Direction:      model.DirectionDebit,
		Kind:           model.TransactionKindTransfer,
		CounterpartyID: receiverID,
		Status:         model.TransactionStatusCompleted,
		CreatedAt:      now,
	}
	credit := &model.TransactionRecord{
		ID:             uuid.New(),
		TransactionID:  txID,
		AccountID:      receiverID,
		Amount:         amount,
		Direction:      model.DirectionCredit,
		Kind:           model.TransactionKindTransfer,
		CounterpartyID: senderID,
		Status:         model.TransactionStatusCompleted,
		CreatedAt:      now,
	}
	for _, rec := range []*model.TransactionRecord{debit, credit} {
		s.appendRecord(ctx, rec)
	}

	s.notify(ctx, senderID, model.NotificationTransferSent, fmt.Sprintf("Sent %d to %s", amount, receiverID), txID)
	s.notify(ctx, receiverID, model.NotificationTransferReceived, fmt.Sprintf("Received %d from %s", amount, senderID), txID)

	l.Info().Int64("sender_balance", sender.Balance).Msg("Transfer completed")

	return &model.TransferReceipt{
		TransactionID:  txID,
		SenderID:       senderID,
		ReceiverID:     receiverID,
		Amount:         amount,
		DebitRecordID:  debit.ID.String(),
		CreditRecordID: credit.ID.String(),
		SenderBalance:  sender.Balance,
		CreatedAt:      now,
	}, nil
}

// compensate returns amount to the sender. It outlives the caller context,
// and when the inline attempts fail it keeps going on the dispatcher. A
// pending reversal record marks the refund as owed until the dispatcher
// lands it.
func (s *Service) compensate(ctx context.Context, txID, senderID, receiverID string, amount int64) {
	l := logger.Ctx(ctx)
	ctx = context.WithoutCancel(ctx)

	refund := func(ctx context.Context) error {
		_, err := s.ledger.Credit(ctx, senderID, amount)
		return err
	}

	err := retry.Do(ctx, s.policy, func(int) error {
		if err := refund(ctx); err != nil {
			if apperr.Retryable(err) {
				return retry.Retryable(err)
			}
			return err
		}
		return nil
	})
	if err == nil {
		l.Info().Msg("Sender compensated")
		return
	}

	reversal := func(status model.TransactionStatus) *model.TransactionRecord {
		return &model.TransactionRecord{
			ID:             uuid.New(),
			TransactionID:  txID,
			AccountID:      senderID,
			Amount:         amount,
			Direction:      model.DirectionCredit,
			Kind:           model.TransactionKindTransfer,
			CounterpartyID: receiverID,
			Status:         status,
			CreatedAt:      s.now(),
		}
	}

	l.Error().Err(err).Msg("Compensation failed, handing over to dispatcher")
	s.appendRecord(ctx, reversal(model.TransactionStatusPending))

	err = s.dispatcher.Run(ctx, "transfer.compensate", func(ctx context.Context) error {
		if err := refund(ctx); err != nil {
			return err
		}
		s.appendRecord(ctx, reversal(model.TransactionStatusCompleted))
		return nil
	})
	if err != nil {
		l.Error().Err(err).Msg("Compensation could not be scheduled")
	}
}

func (s *Service) appendRecord(ctx context.Context, rec *model.TransactionRecord) {
	l := logger.Ctx(ctx).With().Str("record_id", rec.ID.String()).Str("account_id", rec.AccountID).Logger()
	ctx = context.WithoutCancel(ctx)

	add := func(ctx context.Context) error {
		return s.ledger.AppendTransaction(ctx, rec)
	}

	err := retry.Do(ctx, s.policy, func(int) error {
		if err := add(ctx); err != nil {
			if apperr.Retryable(err) {
				return retry.Retryable(err)
			}
			return err
		}
		return nil
	})
	if err == nil {
		return
	}

	l.Error().Err(err).Msg("Record append failed, handing over to dispatcher")
	if err := s.dispatcher.Run(ctx, "transfer.append_record", add); err != nil {
		l.Error().Err(err).Msg("Record append could not be scheduled")
	}
}

func (s *Service) notify(ctx context.Context, userID string, typ model.NotificationType, message, reference string) {
	err := s.dispatcher.Run(ctx, "transfer.notify", func(ctx context.Context) error {
		_, err := s.notifier.Push(ctx, userID, typ, message, reference)
		return err
	})
	if err != nil {
		log := logger.Ctx(ctx)
		log.Warn().Err(err).Str("user_id", userID).Msg("Notification dropped")
	}
}
