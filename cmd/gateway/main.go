package main

import (
	"context"
	"encoding/json"
	"fmt"
	"github.com/ferdypruis/go-luhn"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"time"
	"townmarket/internal/app/logger"
	mw "townmarket/internal/app/middleware"
	"townmarket/pkg/payment"
)

// charges above the limit are declined
var limit = decimal.NewFromInt(10000)

func main() {
	// setting up signal capturing
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		osCall := <-stop
		log.Printf("System call: %+v", osCall)
		cancel()
	}()

	listen := pflag.StringP("listen-addr", "a", "127.0.0.1:8090", "Server address to listen on")
	pflag.Parse()

	l := logger.New(true, true)

	if err := runServer(ctx, *listen, l); err != nil {
		l.Fatal().Err(err).Msg("Server run failed")
	}
}

func runServer(ctx context.Context, listenAddr string, l logger.Logger) (err error) {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(mw.Log(l))
	r.Post("/api/charges", Charge)

	srv := &http.Server{
		Addr:    listenAddr,
		Handler: r,
	}

	go func() {
		log.Printf("Listening on %s", listenAddr)
		if err = srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			l.Fatal().Err(err).Msg("")
		}
	}()

	log.Printf("Server started")
	<-ctx.Done()
	log.Printf("Server stopped")

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer func() {
		cancel()
	}()

	if err = srv.Shutdown(ctxShutdown); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Printf("Server exited properly")

	return
}

func Charge(w http.ResponseWriter, r *http.Request) {
	l := logger.Ctx(r.Context()).With().Str("method", "Charge").Logger()

	in := &payment.ChargeRequest{}
	if err := json.NewDecoder(r.Body).Decode(in); err != nil {
		l.Debug().Err(err).Msg("Bad request")
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	if rand.Float32() < 0.2 {
		http.Error(w, "fail", http.StatusInternalServerError)
		return
	}

	if rand.Float32() < 0.2 {
		http.Error(w, "too many requests", http.StatusTooManyRequests)
		return
	}

	out := &payment.ChargeResponse{
		Reference: in.Reference,
		Status:    payment.ChargeStatusApproved,
		Amount:    in.Amount,
	}
	switch {
	case !luhn.Valid(in.CardNumber):
		out.Status, out.Reason = payment.ChargeStatusDeclined, "invalid card number"
	case !in.Amount.IsPositive():
		out.Status, out.Reason = payment.ChargeStatusDeclined, "invalid amount"
	case in.Amount.GreaterThan(limit):
		out.Status, out.Reason = payment.ChargeStatusDeclined, "limit exceeded"
	}

	l.Info().Str("reference", in.Reference).Str("status", out.Status).Msg("Charge processed")

	rawJSON, _ := json.Marshal(out)
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(rawJSON)
}
