package app

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"github.com/go-redis/redis/v8"
	"time"
	"townmarket/internal/app/config"
	"townmarket/internal/app/logger"
	"townmarket/internal/app/retry"
	"townmarket/internal/app/service/auction"
	"townmarket/internal/app/service/dispatcher"
	"townmarket/internal/app/service/ledger"
	"townmarket/internal/app/service/notify"
	"townmarket/internal/app/service/transfer"
	"townmarket/internal/app/service/wallet"
	"townmarket/internal/app/session"
	"townmarket/internal/app/storage"
	"townmarket/internal/app/storage/memory"
	"townmarket/internal/app/storage/postgres"
	"townmarket/internal/app/stream"
	"townmarket/pkg/payment"
)

type repositories struct {
	users         storage.UserRepository
	accounts      storage.AccountRepository
	transactions  storage.TransactionRepository
	auctions      storage.AuctionRepository
	notifications storage.NotificationRepository
}

type App struct {
	config     config.Config
	logger     logger.Logger
	db         *sql.DB
	redis      *redis.Client
	repos      repositories
	session    session.Manager
	dispatcher *dispatcher.Service
	ledger     *ledger.Service
	transfers  *transfer.Service
	wallet     *wallet.Service
	auctions   *auction.Service
	notify     *notify.Service
	stopCh     chan struct{}
}

func New(ctx context.Context, cfg config.Config, l logger.Logger, e embed.FS) (*App, error) {
	a := &App{
		config: cfg,
		logger: l.WithComponent("App"),
		stopCh: make(chan struct{}),
	}

	gw, err := payment.NewService(cfg.Payment.RemoteURL, payment.WithLogger(l.Logger))
	if err != nil {
		return nil, fmt.Errorf("payment client init: %w", err)
	}

	if cfg.Database.DSN == "" {
		a.logger.Warn().Msg("DATABASE_URI is empty, data is kept in memory")
		a.repos = memoryRepositories()
	} else {
		if a.repos, err = a.openDatabase(ctx, e); err != nil {
			a.Stop()
			return nil, err
		}
	}

	broker, err := a.openBroker(ctx)
	if err != nil {
		a.Stop()
		return nil, err
	}

	paths := storage.NewPaths(cfg.Namespace)

	a.dispatcher = dispatcher.New(dispatcher.WithLogger(l))
	a.dispatcher.Start(cfg.Ledger.Workers)

	a.ledger = ledger.New(a.repos.accounts, a.repos.transactions, ledger.WithRetryPolicy(retry.Policy{
		Attempts: cfg.Ledger.RetryAttempts,
		Backoff:  retry.Exponential(cfg.Ledger.RetryBackoff, time.Second),
	}))
	a.notify = notify.New(a.repos.notifications, broker, paths)
	a.transfers = transfer.New(a.ledger, a.notify, a.dispatcher)
	a.wallet = wallet.New(a.ledger, gw, a.notify, a.dispatcher, wallet.WithCurrencyExponent(cfg.CurrencyExponent))
	a.auctions = auction.New(a.repos.auctions, broker, paths, a.notify, a.dispatcher)
	a.session = session.NewMemory(cfg.SecretKey, a.repos.users)

	go func() {
		<-a.stopCh
		a.logger.Info().Msg("Shutting down application")
	}()

	return a, nil
}

func memoryRepositories() repositories {
	return repositories{
		users:         memory.NewUserRepository(),
		accounts:      memory.NewAccountRepository(),
		transactions:  memory.NewTransactionRepository(),
		auctions:      memory.NewAuctionRepository(),
		notifications: memory.NewNotificationRepository(),
	}
}

func (a *App) openDatabase(ctx context.Context, e embed.FS) (repositories, error) {
	var r repositories

	db, err := sql.Open("postgres", a.config.Database.DSN)
	if err != nil {
		return r, fmt.Errorf("db open: %w", err)
	}
	a.db = db

	if err := db.PingContext(ctx); err != nil {
		return r, fmt.Errorf("db ping: %w", err)
	}

	if err := applyMigrations(e, db); err != nil {
		return r, fmt.Errorf("db migrate: %w", err)
	}

	if r.users, err = postgres.NewUserRepository(db); err != nil {
		return r, fmt.Errorf("user repository init: %w", err)
	}
	if r.accounts, err = postgres.NewAccountRepository(db); err != nil {
		return r, fmt.Errorf("account repository init: %w", err)
	}
	if r.transactions, err = postgres.NewTransactionRepository(db); err != nil {
		return r, fmt.Errorf("transaction repository init: %w", err)
	}
	if r.auctions, err = postgres.NewAuctionRepository(db); err != nil {
		return r, fmt.Errorf("auction repository init: %w", err)
	}
	if r.notifications, err = postgres.NewNotificationRepository(db); err != nil {
		return r, fmt.Errorf("notification repository init: %w", err)
	}

	a.logger.Info().Msg("Postgres storage ready")
	return r, nil
}

func (a *App) openBroker(ctx context.Context) (stream.Broker, error) {
	if a.config.Redis.Addr == "" {
		a.logger.Warn().Msg("REDIS_ADDR is empty, streams stay in process")
		return stream.NewMemoryBroker(), nil
	}

	a.redis = redis.NewClient(&redis.Options{
		Addr:     a.config.Redis.Addr,
		Password: a.config.Redis.Password,
		DB:       a.config.Redis.DB,
	})

	b, err := stream.NewRedisBroker(ctx, a.redis)
	if err != nil {
		return nil, fmt.Errorf("redis broker init: %w", err)
	}

	a.logger.Info().Str("redis_addr", a.config.Redis.Addr).Msg("Redis streams ready")
	return b, nil
}

// Stop waits for background jobs and releases connections, safe to call once
func (a *App) Stop() {
	close(a.stopCh)

	if a.dispatcher != nil {
		a.dispatcher.Stop()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("Redis close failed")
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("DB close failed")
		}
	}
}
