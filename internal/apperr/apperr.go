// Package apperr defines the error taxonomy shared across the service.
// Every caller-visible failure is one of a small closed set of kinds, each
// with a stable error code and an HTTP status mapping.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error.
type Kind uint8

const (
	KindUnknown Kind = iota
	// KindUpstream covers network, timeout and non-success responses from
	// the market data provider. It is recovered locally via retry and
	// fallback and never reaches the order path.
	KindUpstream
	// KindPriceUnavailable means neither the live feed nor the fallback
	// dataset could produce a price for the requested symbol.
	KindPriceUnavailable
	KindInvalidOrder
	KindInsufficientFunds
	KindInsufficientHoldings
	KindAccountNotFound
	KindNotFound
	KindInternal
)

// Error carries a kind, a caller-facing message and an optional wrapped
// cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches two errors by kind, so errors.Is(err, apperr.InsufficientFunds(""))
// style comparisons work regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New builds an error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an error of the given kind around a cause.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func Upstream(message string, err error) *Error {
	return Wrap(KindUpstream, message, err)
}

func PriceUnavailable(symbol string) *Error {
	return New(KindPriceUnavailable, fmt.Sprintf("no price available for %s", symbol))
}

func InvalidOrder(message string) *Error {
	return New(KindInvalidOrder, message)
}

func InsufficientFunds(message string) *Error {
	return New(KindInsufficientFunds, message)
}

func InsufficientHoldings(message string) *Error {
	return New(KindInsufficientHoldings, message)
}

func AccountNotFound(accountID int64) *Error {
	return New(KindAccountNotFound, fmt.Sprintf("account %d not found", accountID))
}

func NotFound(message string) *Error {
	return New(KindNotFound, message)
}

func Internal(message string, err error) *Error {
	return Wrap(KindInternal, message, err)
}

// KindOf extracts the kind from an error chain, KindUnknown if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Code returns the stable machine-readable code for an error.
func Code(err error) string {
	switch KindOf(err) {
	case KindUpstream:
		return "UPSTREAM_ERROR"
	case KindPriceUnavailable:
		return "PRICE_UNAVAILABLE"
	case KindInvalidOrder:
		return "INVALID_ORDER"
	case KindInsufficientFunds:
		return "INSUFFICIENT_FUNDS"
	case KindInsufficientHoldings:
		return "INSUFFICIENT_HOLDINGS"
	case KindAccountNotFound:
		return "ACCOUNT_NOT_FOUND"
	case KindNotFound:
		return "NOT_FOUND"
	case KindInternal:
		return "INTERNAL_ERROR"
	default:
		return "UNKNOWN_ERROR"
	}
}

// HTTPStatus maps an error to the status the handler layer should emit.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindInvalidOrder, KindInsufficientFunds, KindInsufficientHoldings:
		return http.StatusBadRequest
	case KindAccountNotFound, KindNotFound:
		return http.StatusNotFound
	case KindPriceUnavailable:
		return http.StatusUnprocessableEntity
	case KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
