package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"
	"townmarket/internal/app/apperr"
	"townmarket/internal/app/logger"
	"townmarket/internal/app/model"
	"townmarket/internal/app/retry"
	"townmarket/internal/app/storage"
)

// Mutation computes the next state of an account from the current one.
// current is nil when the account was never written and is a private copy
// otherwise. Returning an error aborts the update. Returning current itself
// commits nothing. A mutation may run several times and must be pure.
type Mutation func(current *model.Account) (*model.Account, error)

type Service struct {
	accounts     storage.AccountRepository
	transactions storage.TransactionRepository
	policy       retry.Policy
}

func (s *Service) LoggerComponent() string {
	return "Ledger.Service"
}

type Option func(*Service)

func WithRetryPolicy(p retry.Policy) Option {
	return func(s *Service) {
		s.policy = p
	}
}

func New(accounts storage.AccountRepository, transactions storage.TransactionRepository, opts ...Option) *Service {
	s := &Service{
		accounts:     accounts,
		transactions: transactions,
		policy:       DefaultRetryPolicy(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func DefaultRetryPolicy() retry.Policy {
	return retry.Policy{Attempts: 25}
}

// GetBalance returns the current balance, apperr.ErrNotFound for unknown accounts
func (s *Service) GetBalance(ctx context.Context, id string) (int64, error) {
	m, err := s.accounts.Read(ctx, id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return 0, err
		}
		return 0, unavailable(err)
	}
	return m.Balance, nil
}

// Update applies fn with compare-and-swap, re-reading and re-running fn on
// every version conflict until it commits or the retry policy runs out.
func (s *Service) Update(ctx context.Context, id string, fn Mutation) (*model.Account, error) {
	l := logger.Get(ctx, s).With().Str("account_id", id).Logger()

	var res *model.Account
	err := retry.Do(ctx, s.policy, func(attempt int) error {
		cur, err := s.accounts.Read(ctx, id)
		if err != nil {
			if !errors.Is(err, apperr.ErrNotFound) {
				return unavailable(err)
			}
			cur = nil
		}

		proposed := cur.Clone()
		next, err := fn(proposed)
		if err != nil {
			return err
		}
		if next == nil {
			return fmt.Errorf("%w: mutation returned no account", apperr.ErrInvalidRequest)
		}
		if proposed != nil && next == proposed && *next == *cur {
			res = next
			return nil
		}
		if next.Balance < 0 {
			return fmt.Errorf("%w: negative balance", apperr.ErrInvalidRequest)
		}

		next.ID = id
		if err := s.accounts.CompareAndSwap(ctx, cur, next); err != nil {
			if errors.Is(err, apperr.ErrVersionConflict) {
				l.Debug().Int("attempt", attempt).Msg("Version conflict, retrying")
				return retry.Retryable(err)
			}
			return unavailable(err)
		}

		res = next
		return nil
	})

	if err != nil {
		if errors.Is(err, retry.ErrExhausted) {
			l.Warn().Err(err).Msg("Update gave up")
			return nil, fmt.Errorf("%w: account %s: %w", apperr.ErrContention, id, err)
		}
		return nil, err
	}

	return res, nil
}

// ConditionalDebit takes amount only if the balance covers it at commit time
func (s *Service) ConditionalDebit(ctx context.Context, id string, amount int64) (*model.Account, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", apperr.ErrInvalidRequest)
	}

	return s.Update(ctx, id, func(cur *model.Account) (*model.Account, error) {
		if cur == nil {
			return nil, apperr.ErrNotFound
		}
		if cur.Balance < amount {
			return nil, apperr.ErrInsufficientFunds
		}
		cur.Balance -= amount
		return cur, nil
	})
}

// Credit adds amount to an existing account
func (s *Service) Credit(ctx context.Context, id string, amount int64) (*model.Account, error) {
	return s.increment(ctx, id, amount, false)
}

// Deposit adds amount, creating the account on first write
func (s *Service) Deposit(ctx context.Context, id string, amount int64) (*model.Account, error) {
	return s.increment(ctx, id, amount, true)
}

// Open makes sure the account exists, leaving an existing one untouched
func (s *Service) Open(ctx context.Context, id string) (*model.Account, error) {
	return s.Update(ctx, id, func(cur *model.Account) (*model.Account, error) {
		if cur != nil {
			return cur, nil
		}
		return &model.Account{ID: id}, nil
	})
}

func (s *Service) increment(ctx context.Context, id string, amount int64, upsert bool) (*model.Account, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", apperr.ErrInvalidRequest)
	}

	return s.Update(ctx, id, func(cur *model.Account) (*model.Account, error) {
		if cur == nil {
			if !upsert {
				return nil, apperr.ErrNotFound
			}
			return &model.Account{ID: id, Balance: amount}, nil
		}
		if cur.Balance > math.MaxInt64-amount {
			return nil, fmt.Errorf("%w: balance overflow", apperr.ErrInvalidRequest)
		}
		cur.Balance += amount
		return cur, nil
	})
}

// AppendTransaction validates and stores a record in the account history
func (s *Service) AppendTransaction(ctx context.Context, m *model.TransactionRecord) error {
	if err := m.Validate(); err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrInvalidRequest, err)
	}

	if err := s.transactions.Append(ctx, m); err != nil {
		return unavailable(err)
	}

	log := logger.Get(ctx, s)
	log.Debug().
		Str("account_id", m.AccountID).
		Str("transaction_id", m.TransactionID).
		Str("direction", string(m.Direction)).
		Int64("amount", m.Amount).
		Msg("Transaction appended")

	return nil
}

// Transactions returns the account history in insertion order
func (s *Service) Transactions(ctx context.Context, id string) ([]*model.TransactionRecord, error) {
	mm, err := s.transactions.AllByAccountID(ctx, id)
	if err != nil {
		return nil, unavailable(err)
	}
	return mm, nil
}

func unavailable(err error) error {
	switch {
	case errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, apperr.ErrInvalidRequest),
		errors.Is(err, apperr.ErrUnavailable):
		return err
	}
	return fmt.Errorf("%w: %w", apperr.ErrUnavailable, err)
}
