package model

import "time"

type Account struct {
	ID        string    `json:"id"`
	Balance   int64     `json:"balance"`
	Version   int64     `json:"-"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a copy safe to hand to a mutation.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	cp := *a
	return &cp
}

type TransferReceipt struct {
	TransactionID  string    `json:"transaction_id"`
	SenderID       string    `json:"sender_id"`
	ReceiverID     string    `json:"receiver_id"`
	Amount         int64     `json:"amount"`
	DebitRecordID  string    `json:"debit_record_id"`
	CreditRecordID string    `json:"credit_record_id"`
	SenderBalance  int64     `json:"sender_balance"`
	CreatedAt      time.Time `json:"created_at"`
}
