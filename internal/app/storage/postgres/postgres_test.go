package postgres

import (
	"context"
	"database/sql"
	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	pg "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
	"time"
	"townmarket/internal/app/apperr"
	"townmarket/internal/app/model"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db, mock
}

func TestAccountRead(t *testing.T) {
	db, mock := newMock(t)
	r, _ := NewAccountRepository(db)
	now := time.Now()

	mock.ExpectQuery("SELECT id, balance, version, updated_at FROM accounts").
		WithArgs("a").
		WillReturnRows(sqlmock.NewRows([]string{"id", "balance", "version", "updated_at"}).AddRow("a", 10000, 3, now))
	mock.ExpectQuery("SELECT id, balance, version, updated_at FROM accounts").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	m, err := r.Read(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, int64(10000), m.Balance)
	assert.Equal(t, int64(3), m.Version)

	_, err = r.Read(context.Background(), "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountCompareAndSwapUpdate(t *testing.T) {
	db, mock := newMock(t)
	r, _ := NewAccountRepository(db)

	prev := &model.Account{ID: "a", Balance: 10000, Version: 3}
	next := &model.Account{ID: "a", Balance: 6000, Version: 3}

	mock.ExpectExec("UPDATE accounts").
		WithArgs(int64(6000), sqlmock.AnyArg(), "a", int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, r.CompareAndSwap(context.Background(), prev, next))
	assert.Equal(t, int64(4), next.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountCompareAndSwapConflict(t *testing.T) {
	db, mock := newMock(t)
	r, _ := NewAccountRepository(db)

	prev := &model.Account{ID: "a", Balance: 10000, Version: 3}

	mock.ExpectExec("UPDATE accounts").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("UPDATE accounts").WillReturnError(&pg.Error{Code: "40001"})
	mock.ExpectExec("INSERT INTO accounts").
		WithArgs("b", int64(0), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, r.CompareAndSwap(context.Background(), prev, &model.Account{ID: "a", Balance: 1}), apperr.ErrVersionConflict)
	assert.ErrorIs(t, r.CompareAndSwap(context.Background(), prev, &model.Account{ID: "a", Balance: 1}), apperr.ErrVersionConflict)
	assert.ErrorIs(t, r.CompareAndSwap(context.Background(), nil, &model.Account{ID: "b"}), apperr.ErrVersionConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionAppendAndList(t *testing.T) {
	db, mock := newMock(t)
	r, _ := NewTransactionRepository(db)
	now := time.Now()

	rec := &model.TransactionRecord{
		ID:             uuid.New(),
		TransactionID:  "c5u8d1",
		AccountID:      "a",
		Amount:         4000,
		Direction:      model.DirectionDebit,
		Kind:           model.TransactionKindTransfer,
		CounterpartyID: "b",
		Status:         model.TransactionStatusCompleted,
		CreatedAt:      now,
	}

	mock.ExpectExec("INSERT INTO transactions").
		WithArgs(rec.ID, "c5u8d1", "a", int64(4000), model.DirectionDebit, model.TransactionKindTransfer, "b", model.TransactionStatusCompleted, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	cols := []string{"id", "transaction_id", "account_id", "amount", "direction", "kind", "counterparty_id", "status", "created_at"}
	mock.ExpectQuery("SELECT (.+) FROM transactions WHERE account_id").
		WithArgs("a").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(rec.ID.String(), "c5u8d1", "a", 4000, "debit", "transfer", "b", "completed", now))

	require.NoError(t, r.Append(context.Background(), rec))

	rows, err := r.AllByAccountID(context.Background(), "a")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, rec.ID, rows[0].ID)
	assert.Equal(t, model.DirectionDebit, rows[0].Direction)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuctionAppendBidUnknownAuction(t *testing.T) {
	db, mock := newMock(t)
	r, _ := NewAuctionRepository(db)

	mock.ExpectExec("INSERT INTO bids").WillReturnError(&pg.Error{Code: "23503"})

	err := r.AppendBid(context.Background(), &model.Bid{ID: uuid.New(), AuctionID: uuid.New(), BidderID: "u", Amount: 1, CreatedAt: time.Now()})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuctionReadWithoutEnd(t *testing.T) {
	db, mock := newMock(t)
	r, _ := NewAuctionRepository(db)
	id := uuid.New()
	now := time.Now()

	cols := []string{"id", "seller_id", "title", "current_bid_amount", "bid_count", "min_increment", "ends_at", "created_at"}
	mock.ExpectQuery("SELECT (.+) FROM auctions").
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(id.String(), "s", "bike", 100000, 0, 10000, nil, now))

	m, err := r.Read(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, int64(100000), m.CurrentBidAmount)
	assert.True(t, m.EndsAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}
