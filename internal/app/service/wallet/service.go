// Package wallet tops up wallets from a card through the payment gateway.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"github.com/ferdypruis/go-luhn"
	"github.com/google/uuid"
	"github.com/rs/xid"
	"github.com/sony/gobreaker"
	"time"
	"townmarket/internal/app/apperr"
	"townmarket/internal/app/logger"
	"townmarket/internal/app/model"
	"townmarket/internal/app/service/dispatcher"
	"townmarket/pkg/payment"
)

type Ledger interface {
	Deposit(ctx context.Context, id string, amount int64) (*model.Account, error)
	AppendTransaction(ctx context.Context, m *model.TransactionRecord) error
}

type Gateway interface {
	Charge(ctx context.Context, in *payment.ChargeRequest, out *payment.ChargeResponse) error
}

type Notifier interface {
	Push(ctx context.Context, userID string, typ model.NotificationType, message, reference string) (*model.Notification, error)
}

type Dispatcher interface {
	Run(ctx context.Context, name string, job dispatcher.Job) error
}

type Service struct {
	ledger     Ledger
	gateway    Gateway
	notifier   Notifier
	dispatcher Dispatcher
	breaker    *gobreaker.CircuitBreaker
	exponent   int32
	now        func() time.Time
}

func (s *Service) LoggerComponent() string {
	return "Wallet.Service"
}

type Option func(*Service)

// WithCurrencyExponent sets the number of minor unit digits, 2 by default
func WithCurrencyExponent(exp int32) Option {
	return func(s *Service) {
		s.exponent = exp
	}
}

func WithBreakerSettings(st gobreaker.Settings) Option {
	return func(s *Service) {
		s.breaker = gobreaker.NewCircuitBreaker(st)
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func New(ledger Ledger, gateway Gateway, notifier Notifier, d Dispatcher, opts ...Option) *Service {
	s := &Service{
		ledger:     ledger,
		gateway:    gateway,
		notifier:   notifier,
		dispatcher: d,
		exponent:   2,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.breaker == nil {
		s.breaker = gobreaker.NewCircuitBreaker(DefaultBreakerSettings())
	}
	return s
}

// DefaultBreakerSettings opens after five consecutive gateway failures
func DefaultBreakerSettings() gobreaker.Settings {
	return gobreaker.Settings{
		Name:        "payment-gateway",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Global().Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state changed")
		},
	}
}

type DepositRequest struct {
	AccountID  string
	CardNumber string
	Amount     int64
}

type DepositReceipt struct {
	TransactionID string `json:"transaction_id"`
	RecordID      string `json:"record_id"`
	Amount        int64  `json:"amount"`
	Balance       int64  `json:"balance"`
}

// Deposit charges the card and credits the wallet with the charged amount
func (s *Service) Deposit(ctx context.Context, in DepositRequest) (*DepositReceipt, error) {
	if in.AccountID == "" {
		return nil, fmt.Errorf("%w: empty account id", apperr.ErrInvalidRequest)
	}
	if in.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", apperr.ErrInvalidRequest)
	}
	if !luhn.Valid(in.CardNumber) {
		return nil, fmt.Errorf("%w: invalid card number", apperr.ErrInvalidRequest)
	}

	txID := xid.New().String()
	l := logger.Get(ctx, s).With().
		Str("transaction_id", txID).
		Str("account_id", in.AccountID).
		Int64("amount", in.Amount).
		Logger()
	ctx = l.WithContext(ctx)

	if err := s.charge(ctx, txID, in); err != nil {
		l.Warn().Err(err).Msg("Charge failed")
		return nil, err
	}

	m, err := s.ledger.Deposit(ctx, in.AccountID, in.Amount)
	if err != nil {
		// the card is charged at this point, the credit has to land eventually
		l.Error().Err(err).Msg("Deposit credit failed, handing over to dispatcher")
		credit := func(ctx context.Context) error {
			_, err := s.ledger.Deposit(ctx, in.AccountID, in.Amount)
			return err
		}
		if err := s.dispatcher.Run(context.WithoutCancel(ctx), "wallet.deposit", credit); err != nil {
			l.Error().Err(err).Msg("Deposit credit could not be scheduled")
		}
		return nil, fmt.Errorf("deposit: %w", err)
	}

	rec := &model.TransactionRecord{
		ID:             uuid.New(),
		TransactionID:  txID,
		AccountID:      in.AccountID,
		Amount:         in.Amount,
		Direction:      model.DirectionCredit,
		Kind:           model.TransactionKindDeposit,
		CounterpartyID: maskCard(in.CardNumber),
		Status:         model.TransactionStatusCompleted,
		CreatedAt:      s.now(),
	}
	if err := s.ledger.AppendTransaction(ctx, rec); err != nil {
		l.Warn().Err(err).Msg("Deposit record append failed, handing over to dispatcher")
		s.schedule(ctx, "wallet.append_record", func(ctx context.Context) error {
			return s.ledger.AppendTransaction(ctx, rec)
		})
	}

	msg := fmt.Sprintf("Deposited %s", model.FromMinor(in.Amount, s.exponent).StringFixed(s.exponent))
	s.schedule(ctx, "wallet.notify", func(ctx context.Context) error {
		_, err := s.notifier.Push(ctx, in.AccountID, model.NotificationDeposit, msg, txID)
		return err
	})

	l.Info().Int64("balance", m.Balance).Msg("Deposit completed")

	return &DepositReceipt{
		TransactionID: txID,
		RecordID:      rec.ID.String(),
		Amount:        in.Amount,
		Balance:       m.Balance,
	}, nil
}

// charge runs the gateway call through the circuit breaker. Only transport
// failures and temporary gateway errors count against the breaker.
func (s *Service) charge(ctx context.Context, reference string, in DepositRequest) error {
	req := &payment.ChargeRequest{
		Reference:  reference,
		CardNumber: in.CardNumber,
		Amount:     model.FromMinor(in.Amount, s.exponent),
	}

	var rejected error
	res, err := s.breaker.Execute(func() (interface{}, error) {
		out := &payment.ChargeResponse{}
		if err := s.gateway.Charge(ctx, req, out); err != nil {
			var re *payment.RemoteError
			if errors.As(err, &re) && !re.Temporary() {
				rejected = fmt.Errorf("%w: %v", apperr.ErrPaymentDeclined, re)
				return nil, nil
			}
			return nil, err
		}
		return out, nil
	})

	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return fmt.Errorf("%w: payment gateway: %v", apperr.ErrUnavailable, err)
	case err != nil:
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return fmt.Errorf("%w: payment gateway: %v", apperr.ErrUnavailable, err)
	case rejected != nil:
		return rejected
	}

	out := res.(*payment.ChargeResponse)
	if !out.Approved() {
		return fmt.Errorf("%w: %s", apperr.ErrPaymentDeclined, out.Reason)
	}
	if !out.Amount.Equal(req.Amount) {
		return fmt.Errorf("%w: charged %s, requested %s", apperr.ErrPaymentDeclined, out.Amount, req.Amount)
	}
	return nil
}

func (s *Service) schedule(ctx context.Context, name string, job dispatcher.Job) {
	if err := s.dispatcher.Run(context.WithoutCancel(ctx), name, job); err != nil {
		log := logger.Ctx(ctx)
		log.Warn().Err(err).Str("job", name).Msg("Side update dropped")
	}
}

// maskCard keeps the last four digits only
func maskCard(number string) string {
	if len(number) < 4 {
		return "card"
	}
	return "card:****" + number[len(number)-4:]
}
