package payments

import "errors"

var (
	// ErrInsufficientFunds is a local precondition failure: the channel
	// balance cannot cover the requested amount. No remote side effect has
	// occurred and the call is safe to retry once the balance changes.
	ErrInsufficientFunds = errors.New("insufficient channel balance")

	// ErrValidation means the hub's locked transfer failed the local
	// consistency check. The remote creation has already happened, so the
	// attempt is unrecoverable and needs manual reconciliation.
	ErrValidation = errors.New("locked transfer validation failed")

	// ErrOutOfOrder rejects a step that is not the immediate successor of the
	// payment's current message order.
	ErrOutOfOrder = errors.New("message out of protocol order")

	// ErrNoChannel means no channel exists for the (partner, token) pair.
	ErrNoChannel = errors.New("no channel for partner and token")

	// ErrPaymentNotFound means the referenced payment id is unknown.
	ErrPaymentNotFound = errors.New("payment not found")
)
