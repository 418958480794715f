package ledger

import (
	"context"
	"errors"
	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sync"
	"testing"
	"time"
	"townmarket/internal/app/apperr"
	"townmarket/internal/app/model"
	"townmarket/internal/app/retry"
	"townmarket/internal/app/storage/memory"
	storagemock "townmarket/internal/app/storage/mock"
)

func newMemoryLedger(t *testing.T, balances map[string]int64) *Service {
	t.Helper()
	s := New(memory.NewAccountRepository(), memory.NewTransactionRepository(), WithRetryPolicy(retry.Policy{Attempts: 1000}))
	for id, b := range balances {
		if b == 0 {
			_, err := s.Open(context.Background(), id)
			require.NoError(t, err)
			continue
		}
		_, err := s.Deposit(context.Background(), id, b)
		require.NoError(t, err)
	}
	return s
}

func TestConcurrentDebitNeverDoubleSpends(t *testing.T) {
	const (
		balance = 10000
		amount  = 300
		callers = 64
	)
	s := newMemoryLedger(t, map[string]int64{"a": balance})

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
	)
	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := s.ConditionalDebit(context.Background(), "a", amount)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, apperr.ErrInsufficientFunds):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, balance/amount, succeeded)
	assert.Equal(t, callers-balance/amount, rejected)

	got, err := s.GetBalance(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, int64(balance-(balance/amount)*amount), got)
	assert.GreaterOrEqual(t, got, int64(0))
}

func TestConcurrentCreditsAreNotLost(t *testing.T) {
	s := newMemoryLedger(t, map[string]int64{"b": 0})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Credit(context.Background(), "b", 10)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := s.GetBalance(context.Background(), "b")
	require.NoError(t, err)
	assert.Equal(t, int64(500), got)
}

func TestConditionalDebit(t *testing.T) {
	ctx := context.Background()
	s := newMemoryLedger(t, map[string]int64{"a": 1000})

	_, err := s.ConditionalDebit(ctx, "a", 4000)
	assert.ErrorIs(t, err, apperr.ErrInsufficientFunds)

	_, err = s.ConditionalDebit(ctx, "a", 0)
	assert.ErrorIs(t, err, apperr.ErrInvalidRequest)

	_, err = s.ConditionalDebit(ctx, "nobody", 1)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	m, err := s.ConditionalDebit(ctx, "a", 1000)
	require.NoError(t, err)
	assert.Equal(t, int64(0), m.Balance)
}

func TestCreditAndDeposit(t *testing.T) {
	ctx := context.Background()
	s := newMemoryLedger(t, nil)

	_, err := s.GetBalance(ctx, "new")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = s.Credit(ctx, "new", 100)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	m, err := s.Deposit(ctx, "new", 100)
	require.NoError(t, err)
	assert.Equal(t, int64(100), m.Balance)

	m, err = s.Credit(ctx, "new", 50)
	require.NoError(t, err)
	assert.Equal(t, int64(150), m.Balance)

	// opening an existing account keeps its balance
	m, err = s.Open(ctx, "new")
	require.NoError(t, err)
	assert.Equal(t, int64(150), m.Balance)
}

func TestUpdateContention(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	accounts := storagemock.NewMockAccountRepository(ctrl)
	s := New(accounts, storagemock.NewMockTransactionRepository(ctrl), WithRetryPolicy(retry.Policy{Attempts: 3}))

	accounts.EXPECT().Read(gomock.Any(), "a").Return(&model.Account{ID: "a", Balance: 100, Version: 7}, nil).Times(3)
	accounts.EXPECT().CompareAndSwap(gomock.Any(), gomock.Any(), gomock.Any()).Return(apperr.ErrVersionConflict).Times(3)

	_, err := s.ConditionalDebit(context.Background(), "a", 10)
	assert.ErrorIs(t, err, apperr.ErrContention)
	assert.True(t, apperr.Retryable(err))
}

func TestUpdateUnavailable(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	accounts := storagemock.NewMockAccountRepository(ctrl)
	s := New(accounts, storagemock.NewMockTransactionRepository(ctrl))

	accounts.EXPECT().Read(gomock.Any(), "a").Return(nil, errors.New("connection refused"))

	_, err := s.Credit(context.Background(), "a", 10)
	assert.ErrorIs(t, err, apperr.ErrUnavailable)
	assert.NotErrorIs(t, err, apperr.ErrContention)
}

func TestUpdateRereadsAfterConflict(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	accounts := storagemock.NewMockAccountRepository(ctrl)
	s := New(accounts, storagemock.NewMockTransactionRepository(ctrl))

	first := &model.Account{ID: "a", Balance: 100, Version: 1}
	second := &model.Account{ID: "a", Balance: 30, Version: 2}

	gomock.InOrder(
		accounts.EXPECT().Read(gomock.Any(), "a").Return(first, nil),
		accounts.EXPECT().CompareAndSwap(gomock.Any(), first, gomock.Any()).Return(apperr.ErrVersionConflict),
		accounts.EXPECT().Read(gomock.Any(), "a").Return(second, nil),
	)

	// the fresh value no longer covers the debit
	_, err := s.ConditionalDebit(context.Background(), "a", 50)
	assert.ErrorIs(t, err, apperr.ErrInsufficientFunds)
}

func TestAppendTransaction(t *testing.T) {
	ctx := context.Background()
	s := newMemoryLedger(t, nil)

	err := s.AppendTransaction(ctx, &model.TransactionRecord{AccountID: "a"})
	assert.ErrorIs(t, err, apperr.ErrInvalidRequest)

	rec := &model.TransactionRecord{
		ID:             uuid.New(),
		TransactionID:  "c5u8d1",
		AccountID:      "a",
		Amount:         10,
		Direction:      model.DirectionCredit,
		Kind:           model.TransactionKindDeposit,
		CounterpartyID: "card",
		Status:         model.TransactionStatusCompleted,
		CreatedAt:      time.Now(),
	}
	require.NoError(t, s.AppendTransaction(ctx, rec))

	mm, err := s.Transactions(ctx, "a")
	require.NoError(t, err)
	require.Len(t, mm, 1)
	assert.Equal(t, rec.ID, mm[0].ID)
}
