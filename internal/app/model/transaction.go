package model

import (
	"fmt"
	"github.com/google/uuid"
	"time"
)

type Direction string

const (
	DirectionCredit Direction = "credit"
	DirectionDebit  Direction = "debit"
)

type TransactionStatus string

// Pending marks a transfer reversal still owed to the sender, failed is reserved.
const (
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusFailed    TransactionStatus = "failed"
)

type TransactionKind string

const (
	TransactionKindTransfer TransactionKind = "transfer"
	TransactionKindDeposit  TransactionKind = "deposit"
)

type TransactionRecord struct {
	ID             uuid.UUID         `json:"id"`
	TransactionID  string            `json:"transaction_id"`
	AccountID      string            `json:"account_id"`
	Amount         int64             `json:"amount"`
	Direction      Direction         `json:"direction"`
	Kind           TransactionKind   `json:"kind"`
	CounterpartyID string            `json:"counterparty_id"`
	Status         TransactionStatus `json:"status"`
	CreatedAt      time.Time         `json:"created_at"`
}

// Validate checks the required fields of a record before it is written.
func (m *TransactionRecord) Validate() error {
	if m.ID == uuid.Nil {
		return fmt.Errorf("record id is empty")
	}
	if m.TransactionID == "" {
		return fmt.Errorf("transaction id is empty")
	}
	if m.AccountID == "" {
		return fmt.Errorf("account id is empty")
	}
	if m.Amount <= 0 {
		return fmt.Errorf("amount %d is not positive", m.Amount)
	}
	switch m.Direction {
	case DirectionCredit, DirectionDebit:
	default:
		return fmt.Errorf("unknown direction %q", m.Direction)
	}
	switch m.Status {
	case TransactionStatusCompleted, TransactionStatusPending, TransactionStatusFailed:
	default:
		return fmt.Errorf("unknown status %q", m.Status)
	}
	switch m.Kind {
	case TransactionKindTransfer, TransactionKindDeposit:
	default:
		return fmt.Errorf("unknown kind %q", m.Kind)
	}
	if m.CreatedAt.IsZero() {
		return fmt.Errorf("timestamp is empty")
	}
	return nil
}
