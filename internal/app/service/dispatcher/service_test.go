package dispatcher

import (
	"context"
	"errors"
	"github.com/stretchr/testify/assert"
	"sync/atomic"
	"testing"
	"time"
	"townmarket/internal/app/logger"
)

func newTestService(opts ...Option) *Service {
	opts = append([]Option{WithLogger(logger.Nop()), WithRetryDelay(time.Millisecond)}, opts...)
	s := New(opts...)
	s.Start(2)
	return s
}

func TestRunRetriesUntilSuccess(t *testing.T) {
	s := newTestService()
	defer s.Stop()

	var calls int32
	err := s.Run(context.Background(), "flaky", func(ctx context.Context) error {
		if atomic.AddInt32(&calls, 1) < 3 {
			return errors.New("boom")
		}
		return nil
	})
	assert.NoError(t, err)

	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&calls) == 3
	}, time.Second, time.Millisecond)
}

func TestRunGivesUp(t *testing.T) {
	s := newTestService(WithMaxRetries(2))
	defer s.Stop()

	var calls int32
	assert.NoError(t, s.Run(context.Background(), "broken", func(ctx context.Context) error {
		atomic.AddInt32(&calls, 1)
		return errors.New("boom")
	}))

	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&calls) == 2
	}, time.Second, time.Millisecond)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestRunAfterStop(t *testing.T) {
	s := newTestService()
	s.Stop()
	s.Stop()

	err := s.Run(context.Background(), "late", func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrStopped)
}
