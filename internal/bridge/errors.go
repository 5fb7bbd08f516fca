package bridge

import (
	"errors"
	"fmt"

	"github.com/yourorg/omnimint-bridge/internal/model"
)

var (
	ErrUnsupportedRoute  = errors.New("unsupported route")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNotConfirmed      = errors.New("transaction not confirmed")
	ErrReverted          = errors.New("transaction reverted")
	ErrTransport         = errors.New("transport failure")
	ErrUnknownProtocol   = errors.New("unknown protocol")
	ErrPriceUnavailable  = errors.New("price unavailable")
)

func transportError(method string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrTransport, method, err)
}

// classify maps an error onto the outcome taxonomy
func classify(err error) model.Message {
	switch {
	case errors.Is(err, ErrInsufficientFunds):
		return model.MessageInsufficientFunds
	case errors.Is(err, ErrUnsupportedRoute), errors.Is(err, ErrUnknownProtocol):
		return model.MessageUnsupportedRoute
	case errors.Is(err, ErrNotConfirmed):
		return model.MessageNotConfirmed
	case errors.Is(err, ErrReverted):
		return model.MessageReverted
	default:
		return model.MessageUnknown
	}
}

// failed builds the outcome for an error raised before or without a transaction hash
func failed(err error) model.TransactionOutcome {
	return model.TransactionOutcome{
		Success: false,
		Message: classify(err),
		Detail:  err.Error(),
	}
}
