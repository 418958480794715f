package app

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"net/http"
	"townmarket/internal/app/handler"
	mw "townmarket/internal/app/middleware"
)

func (a *App) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(mw.Log(a.logger))

	auth := mw.Auth(a.session)
	// streams are long lived, every other route gets a deadline
	timeout := func(next http.Handler) http.Handler { return next }
	if a.config.Server.TimeoutWrite > 0 {
		timeout = middleware.Timeout(a.config.Server.TimeoutWrite)
	}

	uh := handler.NewUserHandler(a.repos.users, a.ledger, a.session)
	wh := handler.NewWalletHandler(a.ledger, a.transfers, a.wallet, a.config.CurrencyExponent)
	ah := handler.NewAuctionHandler(a.auctions, a.config.CurrencyExponent)
	nh := handler.NewNotificationHandler(a.notify)

	r.Route("/api", func(r chi.Router) {
		r.Route("/user", func(r chi.Router) {
			r.Use(timeout)
			r.Post("/login", uh.Login)
			r.Post("/register", uh.Register)
		})

		r.Route("/wallet", func(r chi.Router) {
			r.Use(timeout, auth)
			r.Get("/balance", wh.Balance)
			r.Get("/transactions", wh.Transactions)
			r.Post("/transfer", wh.Transfer)
			r.Post("/deposit", wh.Deposit)
		})

		r.Route("/auctions", func(r chi.Router) {
			r.With(timeout).Get("/{id}", ah.Get)
			r.Get("/{id}/stream", ah.Stream)
			r.With(timeout, auth).Post("/", ah.Create)
			r.With(timeout, auth).Post("/{id}/bids", ah.PlaceBid)
		})

		r.With(timeout, auth).Get("/notifications", nh.List)
	})

	return r
}
