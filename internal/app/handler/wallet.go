package handler

import (
	"context"
	"fmt"
	"github.com/shopspring/decimal"
	"net/http"
	"time"
	"townmarket/internal/app/apperr"
	"townmarket/internal/app/logger"
	"townmarket/internal/app/model"
	"townmarket/internal/app/service/wallet"
)

type Ledger interface {
	GetBalance(ctx context.Context, id string) (int64, error)
	Transactions(ctx context.Context, id string) ([]*model.TransactionRecord, error)
}

type Transferer interface {
	Transfer(ctx context.Context, senderID, receiverID string, amount int64) (*model.TransferReceipt, error)
}

type Depositor interface {
	Deposit(ctx context.Context, in wallet.DepositRequest) (*wallet.DepositReceipt, error)
}

type WalletHandler struct {
	ledger    Ledger
	transfers Transferer
	deposits  Depositor
	exponent  int32
}

func NewWalletHandler(ledger Ledger, transfers Transferer, deposits Depositor, exponent int32) *WalletHandler {
	return &WalletHandler{
		ledger:    ledger,
		transfers: transfers,
		deposits:  deposits,
		exponent:  exponent,
	}
}

type transactionView struct {
	ID             string          `json:"id"`
	TransactionID  string          `json:"transaction_id"`
	Amount         decimal.Decimal `json:"amount"`
	Direction      string          `json:"direction"`
	Kind           string          `json:"kind"`
	CounterpartyID string          `json:"counterparty_id,omitempty"`
	Status         string          `json:"status"`
	CreatedAt      time.Time       `json:"created_at"`
}

func (h *WalletHandler) money(v int64) decimal.Decimal {
	return model.FromMinor(v, h.exponent)
}

// minor converts an API amount, apperr.ErrInvalidRequest when it does not fit
func (h *WalletHandler) minor(d decimal.Decimal) (int64, error) {
	v, err := model.ToMinor(d, h.exponent)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", apperr.ErrInvalidRequest, err)
	}
	return v, nil
}

func (h *WalletHandler) Balance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := logger.Get(ctx, "Handler.Wallet.Balance")

	u, err := ReadContextUser(ctx)
	if err != nil {
		WriteError(w, err, http.StatusUnauthorized)
		return
	}

	b, err := h.ledger.GetBalance(ctx, u.ID)
	if err != nil {
		writeServiceError(l, w, err)
		return
	}

	out := struct {
		AccountID string          `json:"account_id"`
		Current   decimal.Decimal `json:"current"`
	}{
		AccountID: u.ID,
		Current:   h.money(b),
	}

	WriteResponse(w, out, http.StatusOK)
}

func (h *WalletHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := logger.Get(ctx, "Handler.Wallet.Transactions")

	u, err := ReadContextUser(ctx)
	if err != nil {
		WriteError(w, err, http.StatusUnauthorized)
		return
	}

	mm, err := h.ledger.Transactions(ctx, u.ID)
	if err != nil {
		writeServiceError(l, w, err)
		return
	}

	if len(mm) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	out := make([]transactionView, 0, len(mm))
	for _, m := range mm {
		out = append(out, transactionView{
			ID:             m.ID.String(),
			TransactionID:  m.TransactionID,
			Amount:         h.money(m.Amount),
			Direction:      string(m.Direction),
			Kind:           string(m.Kind),
			CounterpartyID: m.CounterpartyID,
			Status:         string(m.Status),
			CreatedAt:      m.CreatedAt,
		})
	}

	WriteResponse(w, out, http.StatusOK)
}

func (h *WalletHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := logger.Get(ctx, "Handler.Wallet.Transfer")

	u, err := ReadContextUser(ctx)
	if err != nil {
		WriteError(w, err, http.StatusUnauthorized)
		return
	}

	in := struct {
		To     string          `json:"to" validate:"required,e164"`
		Amount decimal.Decimal `json:"amount"`
	}{}

	if err := readBody(r, &in); err != nil {
		WriteError(w, err, http.StatusBadRequest)
		return
	}

	if !validateData(w, in) {
		return
	}

	amount, err := h.minor(in.Amount)
	if err != nil {
		writeServiceError(l, w, err)
		return
	}

	receipt, err := h.transfers.Transfer(ctx, u.ID, in.To, amount)
	if err != nil {
		writeServiceError(l, w, err)
		return
	}

	out := struct {
		TransactionID string          `json:"transaction_id"`
		To            string          `json:"to"`
		Amount        decimal.Decimal `json:"amount"`
		Balance       decimal.Decimal `json:"balance"`
		CreatedAt     time.Time       `json:"created_at"`
	}{
		TransactionID: receipt.TransactionID,
		To:            receipt.ReceiverID,
		Amount:        h.money(receipt.Amount),
		Balance:       h.money(receipt.SenderBalance),
		CreatedAt:     receipt.CreatedAt,
	}

	WriteResponse(w, out, http.StatusOK)
}

func (h *WalletHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := logger.Get(ctx, "Handler.Wallet.Deposit")

	u, err := ReadContextUser(ctx)
	if err != nil {
		WriteError(w, err, http.StatusUnauthorized)
		return
	}

	in := struct {
		CardNumber string          `json:"card_number" validate:"required,numeric,min=12,max=19"`
		Amount     decimal.Decimal `json:"amount"`
	}{}

	if err := readBody(r, &in); err != nil {
		WriteError(w, err, http.StatusBadRequest)
		return
	}

	if !validateData(w, in) {
		return
	}

	amount, err := h.minor(in.Amount)
	if err != nil {
		writeServiceError(l, w, err)
		return
	}

	receipt, err := h.deposits.Deposit(ctx, wallet.DepositRequest{
		AccountID:  u.ID,
		CardNumber: in.CardNumber,
		Amount:     amount,
	})
	if err != nil {
		writeServiceError(l, w, err)
		return
	}

	out := struct {
		TransactionID string          `json:"transaction_id"`
		Amount        decimal.Decimal `json:"amount"`
		Balance       decimal.Decimal `json:"balance"`
	}{
		TransactionID: receipt.TransactionID,
		Amount:        h.money(receipt.Amount),
		Balance:       h.money(receipt.Balance),
	}

	WriteResponse(w, out, http.StatusOK)
}
