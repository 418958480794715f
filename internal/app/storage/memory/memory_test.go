package memory

import (
	"context"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
	"time"
	"townmarket/internal/app/apperr"
	"townmarket/internal/app/model"
)

func TestAccountCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	r := NewAccountRepository()

	_, err := r.Read(ctx, "a")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	created := &model.Account{ID: "a", Balance: 100}
	require.NoError(t, r.CompareAndSwap(ctx, nil, created))
	assert.Equal(t, int64(1), created.Version)

	// second create loses
	assert.ErrorIs(t, r.CompareAndSwap(ctx, nil, &model.Account{ID: "a", Balance: 5}), apperr.ErrVersionConflict)

	cur, err := r.Read(ctx, "a")
	require.NoError(t, err)

	next := cur.Clone()
	next.Balance = 60
	require.NoError(t, r.CompareAndSwap(ctx, cur, next))

	// stale version loses
	stale := cur.Clone()
	stale.Balance = 0
	assert.ErrorIs(t, r.CompareAndSwap(ctx, cur, stale), apperr.ErrVersionConflict)

	got, err := r.Read(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(60), got.Balance)
	assert.Equal(t, int64(2), got.Version)
}

func TestTransactionsKeepInsertionOrder(t *testing.T) {
	ctx := context.Background()
	r := NewTransactionRepository()

	for i := 1; i <= 3; i++ {
		require.NoError(t, r.Append(ctx, &model.TransactionRecord{ID: uuid.New(), AccountID: "a", Amount: int64(i)}))
	}
	require.NoError(t, r.Append(ctx, &model.TransactionRecord{ID: uuid.New(), AccountID: "b", Amount: 9}))

	rows, err := r.AllByAccountID(ctx, "a")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	for i, m := range rows {
		assert.Equal(t, int64(i+1), m.Amount)
	}
}

func TestAuctionBids(t *testing.T) {
	ctx := context.Background()
	r := NewAuctionRepository()
	a := &model.Auction{ID: uuid.New(), Title: "bike", CurrentBidAmount: 100, MinIncrement: 10, CreatedAt: time.Now()}

	_, err := r.Create(ctx, a)
	require.NoError(t, err)

	assert.ErrorIs(t, r.AppendBid(ctx, &model.Bid{ID: uuid.New(), AuctionID: uuid.New(), Amount: 1}), apperr.ErrNotFound)

	require.NoError(t, r.AppendBid(ctx, &model.Bid{ID: uuid.New(), AuctionID: a.ID, BidderID: "u", Amount: 110}))
	require.NoError(t, r.UpdateCurrentBid(ctx, a.ID, 110, 1))

	bids, err := r.Bids(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, bids, 1)

	got, err := r.Read(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(110), got.CurrentBidAmount)
	assert.Equal(t, 1, got.BidCount)
}

func TestUserPassword(t *testing.T) {
	ctx := context.Background()
	r := NewUserRepository()

	_, err := r.Create(ctx, &model.User{ID: "01012345678", Name: "kim", Password: "secret-pass"})
	require.NoError(t, err)

	_, err = r.Create(ctx, &model.User{ID: "01012345678", Name: "lee", Password: "other-pass"})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	u, err := r.ReadByIDAndPassword(ctx, "01012345678", "secret-pass")
	require.NoError(t, err)
	assert.Equal(t, "kim", u.Name)
	assert.Empty(t, u.Password)

	_, err = r.ReadByIDAndPassword(ctx, "01012345678", "wrong")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestNotificationsNewestFirst(t *testing.T) {
	ctx := context.Background()
	r := NewNotificationRepository()

	require.NoError(t, r.Append(ctx, &model.Notification{ID: uuid.New(), UserID: "u", Message: "first"}))
	require.NoError(t, r.Append(ctx, &model.Notification{ID: uuid.New(), UserID: "u", Message: "second"}))

	rows, err := r.AllByUserID(ctx, "u")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "second", rows[0].Message)
}
