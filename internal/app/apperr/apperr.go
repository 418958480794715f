package apperr

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidRequest is returned for malformed input and is never retried.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrInsufficientFunds is a business rejection of an outgoing debit.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrUnknownReceiver is returned by a transfer after the sender debit has been compensated.
	ErrUnknownReceiver = errors.New("unknown receiver")
	// ErrVersionConflict is returned by compare-and-swap writes that lost a race.
	ErrVersionConflict = errors.New("version conflict")
	// ErrContention means the conditional write ran out of attempts.
	ErrContention = errors.New("contention")
	// ErrUnavailable wraps infrastructure failures of a backing store or remote service.
	ErrUnavailable = errors.New("unavailable")
	// ErrDisconnected is reported when a live subscription loses its transport.
	ErrDisconnected = errors.New("disconnected")

	ErrBidTooLow       = errors.New("bid too low")
	ErrAuctionClosed   = errors.New("auction closed")
	ErrPaymentDeclined = errors.New("payment declined")
)

// Retryable reports whether a caller may safely retry the failed operation.
func Retryable(err error) bool {
	return errors.Is(err, ErrContention) || errors.Is(err, ErrUnavailable)
}
