package payment

import "github.com/shopspring/decimal"

const (
	ChargeStatusApproved = "APPROVED"
	ChargeStatusDeclined = "DECLINED"
)

type ChargeRequest struct {
	// Reference is echoed back and makes retried charges idempotent on the gateway side
	Reference  string          `json:"reference"`
	CardNumber string          `json:"card_number"`
	Amount     decimal.Decimal `json:"amount"`
}

type ChargeResponse struct {
	Reference string          `json:"reference"`
	Status    string          `json:"status"`
	Amount    decimal.Decimal `json:"amount"`
	Reason    string          `json:"reason,omitempty"`
}

func (r *ChargeResponse) Approved() bool {
	return r.Status == ChargeStatusApproved
}
