package domain

import "errors"

var (
	ErrReceiptNotFound = errors.New("receipt not found")
	ErrAccountExists   = errors.New("account already exists")
	ErrInvalidName     = errors.New("invalid account name")
)
