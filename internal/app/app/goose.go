package app

import (
	"database/sql"
	"embed"
	"fmt"
	"github.com/pressly/goose/v3"
	"townmarket/internal/app/logger"
)

// gooseLogger sends migration output to the application log
type gooseLogger struct {
	l logger.Logger
}

func (g gooseLogger) Fatal(v ...interface{}) {
	g.l.Fatal().Msg(fmt.Sprint(v...))
}

func (g gooseLogger) Fatalf(format string, v ...interface{}) {
	g.l.Fatal().Msgf(format, v...)
}

func (g gooseLogger) Print(v ...interface{}) {
	g.l.Info().Msg(fmt.Sprint(v...))
}

func (g gooseLogger) Println(v ...interface{}) {
	g.l.Info().Msg(fmt.Sprint(v...))
}

func (g gooseLogger) Printf(format string, v ...interface{}) {
	g.l.Info().Msgf(format, v...)
}

func applyMigrations(embedMigrations embed.FS, db *sql.DB) error {
	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(gooseLogger{l: logger.Global().WithComponent("Migrations")})

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}

	return nil
}
