package model

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"math"
	"testing"
	"time"
)

func TestBidOutranks(t *testing.T) {
	now := time.Now()
	low := &Bid{ID: uuid.New(), Amount: 100, CreatedAt: now}
	high := &Bid{ID: uuid.New(), Amount: 200, CreatedAt: now.Add(time.Second)}
	earlyTie := &Bid{ID: uuid.New(), Amount: 200, CreatedAt: now}

	assert.True(t, high.Outranks(low))
	assert.False(t, low.Outranks(high))
	assert.True(t, earlyTie.Outranks(high))
	assert.False(t, high.Outranks(earlyTie))
	assert.True(t, low.Outranks(nil))
}

func TestTransactionRecordValidate(t *testing.T) {
	valid := TransactionRecord{
		ID:            uuid.New(),
		TransactionID: "c5u8d1",
		AccountID:     "01012345678",
		Amount:        4000,
		Direction:     DirectionDebit,
		Kind:          TransactionKindTransfer,
		Status:        TransactionStatusCompleted,
		CreatedAt:     time.Now(),
	}
	require.NoError(t, valid.Validate())

	bad := valid
	bad.Amount = 0
	assert.Error(t, bad.Validate())

	bad = valid
	bad.Direction = "sideways"
	assert.Error(t, bad.Validate())

	bad = valid
	bad.ID = uuid.Nil
	assert.Error(t, bad.Validate())
}

func TestAuctionClosed(t *testing.T) {
	now := time.Now()
	a := &Auction{}
	assert.False(t, a.Closed(now))
	a.EndsAt = now
	assert.True(t, a.Closed(now))
	assert.False(t, a.Closed(now.Add(-time.Minute)))
}

func TestToMinor(t *testing.T) {
	v, err := ToMinor(decimal.RequireFromString("40.5"), 2)
	require.NoError(t, err)
	assert.Equal(t, int64(4050), v)

	v, err = ToMinor(decimal.NewFromInt(4000), 0)
	require.NoError(t, err)
	assert.Equal(t, int64(4000), v)

	_, err = ToMinor(decimal.RequireFromString("1.005"), 2)
	assert.Error(t, err)

	_, err = ToMinor(decimal.NewFromInt(-5), 0)
	assert.Error(t, err)

	for _, in := range []string{"184467440737095516.17", "92233720368547758.08", "1e30"} {
		_, err = ToMinor(decimal.RequireFromString(in), 2)
		assert.Error(t, err, in)
	}

	v, err = ToMinor(decimal.RequireFromString("92233720368547758.07"), 2)
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), v)

	assert.True(t, FromMinor(4050, 2).Equal(decimal.RequireFromString("40.5")))
}
