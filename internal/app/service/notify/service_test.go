package notify

import (
	"context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
	"time"
	"townmarket/internal/app/apperr"
	"townmarket/internal/app/model"
	"townmarket/internal/app/storage"
	"townmarket/internal/app/storage/memory"
	"townmarket/internal/app/stream"
)

func TestPushSignalsFeed(t *testing.T) {
	ctx := context.Background()
	broker := stream.NewMemoryBroker()
	paths := storage.NewPaths("test")
	s := New(memory.NewNotificationRepository(), broker, paths)

	sub, err := broker.Subscribe(ctx, paths.Notifications("u1"))
	require.NoError(t, err)
	defer sub.Close()

	_, err = s.Push(ctx, "u1", model.NotificationDeposit, "Deposit of 100", "tx1")
	require.NoError(t, err)

	select {
	case e := <-sub.Events():
		assert.Equal(t, stream.EventChanged, e.Type)
	case <-time.After(time.Second):
		t.Fatal("feed was not signalled")
	}

	mm, err := s.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, mm, 1)
	assert.Equal(t, model.NotificationDeposit, mm[0].Type)

	_, err = s.Push(ctx, "", model.NotificationDeposit, "x", "")
	assert.ErrorIs(t, err, apperr.ErrInvalidRequest)
}
