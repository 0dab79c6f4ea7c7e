// Package crypto provides the signing backends a gateway can be configured with.
// Exactly one backend is active per process.
package crypto

import (
	"fmt"

	"dspacegw/internal/domain"
)

const (
	BackendETH = "crypto_eth"
	BackendSM  = "crypto_sm"
)

// Backend derives and parses signing keys for one signature scheme.
type Backend interface {
	Name() string
	KeyFromSeed(seed []byte) (Key, error)
	ParseKey(raw []byte) (Key, error)
}

// Key is a private key able to sign transactions for its address.
type Key interface {
	domain.Signer
	Bytes() []byte
}

func NewBackend(name string) (Backend, error) {
	switch name {
	case BackendETH:
		return ethBackend{}, nil
	case BackendSM:
		return smBackend{}, nil
	default:
		return nil, fmt.Errorf("unknown crypto backend %q", name)
	}
}
