package main

import (
	"context"
	"embed"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"townmarket/internal/app/app"
	"townmarket/internal/app/config"
	"townmarket/internal/app/logger"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

var version = "dev"

func main() {
	c := config.New()
	if err := c.Load(os.Args[1:]); err != nil {
		logger.Global().Fatal().Err(err).Msg("Config load failed")
	}

	l := logger.New(c.LogVerbose, c.LogPretty).WithComponent("Main")
	l.Info().Str("version", version).Object("config", c).Msg("Starting townmarket")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, c, l); err != nil {
		l.Fatal().Err(err).Msg("Server run failed")
	}
}

func run(ctx context.Context, c config.Config, l logger.Logger) error {
	a, err := app.New(ctx, c, l, embedMigrations)
	if err != nil {
		return fmt.Errorf("app init: %w", err)
	}
	defer a.Stop()

	// open bid streams end with ctx, no write timeout for them
	srv := &http.Server{
		Addr:        c.Server.Listen,
		Handler:     a.Router(),
		ReadTimeout: c.Server.TimeoutRead,
		IdleTimeout: c.Server.TimeoutIdle,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		l.Info().Str("listen_address", c.Server.Listen).Msg("Listening incoming connections")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}
	l.Info().Dur("timeout", c.Server.TimeoutShutdown).Msg("Shutting down, draining requests")

	ctxShutdown, cancel := context.WithTimeout(context.Background(), c.Server.TimeoutShutdown)
	defer cancel()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	l.Info().Msg("Server exited properly")
	return nil
}
