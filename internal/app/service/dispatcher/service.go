package dispatcher

import (
	"context"
	"errors"
	"github.com/rs/xid"
	"sync"
	"time"
	"townmarket/internal/app/logger"
)

var ErrStopped = errors.New("dispatcher stopped")

// Job is a best-effort side effect run outside of the request path
type Job func(ctx context.Context) error

type task struct {
	id      xid.ID
	name    string
	job     Job
	attempt int
}

type Service struct {
	logger logger.Logger
	jobs   chan task
	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once

	retryDelay time.Duration
	maxRetries int
	jobTimeout time.Duration
}

type Option func(*Service)

func WithRetryDelay(d time.Duration) Option {
	return func(s *Service) {
		s.retryDelay = d
	}
}

func WithMaxRetries(n int) Option {
	return func(s *Service) {
		s.maxRetries = n
	}
}

func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

func New(opts ...Option) *Service {
	s := &Service{
		logger:     *logger.Global(),
		jobs:       make(chan task, 256),
		stopCh:     make(chan struct{}),
		retryDelay: time.Second,
		maxRetries: 10,
		jobTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent("Dispatcher.Service")

	return s
}

func (s *Service) Start(numWorkers int) {
	for i := 0; i < numWorkers; i++ {
		s.wg.Add(1)
		go func(workerID int, l logger.Logger) {
			defer s.wg.Done()
			for {
				select {
				case <-s.stopCh:
					return
				case t := <-s.jobs:
					s.execute(logger.Logger{Logger: l.With().Int("worker_id", workerID).Logger()}, t)
				}
			}
		}(i, s.logger)
	}
}

func (s *Service) execute(l logger.Logger, t task) {
	ll := l.With().Str("job_id", t.id.String()).Str("job", t.name).Int("attempt", t.attempt).Logger()
	ll.Debug().Msg("Running job")

	ctx, cancel := context.WithTimeout(context.Background(), s.jobTimeout)
	defer cancel()
	ctx = ll.WithContext(ctx)

	if err := t.job(ctx); err != nil {
		if t.attempt >= s.maxRetries {
			ll.Error().Err(err).Msg("Job failed, giving up")
			return
		}
		ll.Warn().Err(err).Msg("Job failed")

		t.attempt++
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			timer := time.NewTimer(s.retryDelay)
			defer timer.Stop()
			select {
			case <-s.stopCh:
				ll.Warn().Msg("Dropping retry on shutdown")
			case <-timer.C:
				ll.Debug().Msg("Retrying job")
				_ = s.enqueue(context.Background(), t)
			}
		}()
		return
	}

	ll.Debug().Msg("Job done")
}

// Stop makes workers exit and waits for them, pending jobs are dropped
func (s *Service) Stop() {
	s.once.Do(func() {
		s.logger.Debug().Msg("Service shutdown")
		close(s.stopCh)
	})
	s.wg.Wait()
}

// Run schedules job, it does not wait for the job to finish
func (s *Service) Run(ctx context.Context, name string, job Job) error {
	return s.enqueue(ctx, task{id: xid.New(), name: name, job: job, attempt: 1})
}

func (s *Service) enqueue(ctx context.Context, t task) error {
	select {
	case <-s.stopCh:
		return ErrStopped
	default:
	}

	select {
	case s.jobs <- t:
		return nil
	case <-s.stopCh:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}
