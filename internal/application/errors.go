package application

import (
	"errors"

	"dspacegw/internal/domain"
)

type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindInvalidInput
	KindNotFound
	KindConflict
	KindTimeout
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindTimeout:
		return "timeout"
	default:
		return "internal"
	}
}

// Classify buckets an operation error for the transport fronts.
func Classify(err error) ErrorKind {
	var decodeErr *domain.DecodeError
	switch {
	case errors.As(err, &decodeErr), errors.Is(err, domain.ErrBadHex), errors.Is(err, domain.ErrBadLength),
		errors.Is(err, domain.ErrInvalidName):
		return KindInvalidInput
	case errors.Is(err, domain.ErrReceiptNotFound):
		return KindNotFound
	case errors.Is(err, domain.ErrAccountExists):
		return KindConflict
	case errors.Is(err, ErrBridgeTimeout):
		return KindTimeout
	default:
		return KindInternal
	}
}
