package domain

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

const (
	AddressLength = 20
	ValueLength   = 32
	HashLength    = 32
)

var (
	ErrBadHex    = errors.New("bad hex")
	ErrBadLength = errors.New("bad length")
)

// DecodeError reports which wire field failed to decode.
type DecodeError struct {
	Field string
	Err   error
}

func (e *DecodeError) Error() string {
	if e.Field == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Address is a 20 byte account or contract identifier.
type Address [AddressLength]byte

func (a Address) Bytes() []byte { return a[:] }

func (a Address) Hex() string { return Encode(a[:]) }

func (a Address) IsZero() bool { return a == Address{} }

// Payload is call input or transaction data.
type Payload []byte

func (p Payload) Hex() string { return Encode(p) }

// Value is a big-endian transfer amount.
type Value [ValueLength]byte

func (v Value) Bytes() []byte { return v[:] }

func (v Value) Hex() string { return Encode(v[:]) }

func (v Value) IsZero() bool { return v == Value{} }

func (v Value) Big() *big.Int { return new(big.Int).SetBytes(v[:]) }

// TxHash correlates a submitted transaction with its receipt.
type TxHash [HashLength]byte

func (h TxHash) Bytes() []byte { return h[:] }

func (h TxHash) Hex() string { return Encode(h[:]) }

func DecodeAddress(s string) (Address, error) {
	raw, err := decodeHex(s)
	if err != nil {
		return Address{}, err
	}
	if len(raw) != AddressLength {
		return Address{}, fmt.Errorf("%w: want %d bytes, got %d", ErrBadLength, AddressLength, len(raw))
	}
	var addr Address
	copy(addr[:], raw)
	return addr, nil
}

func DecodeData(s string) (Payload, error) {
	raw, err := decodeHex(s)
	if err != nil {
		return nil, err
	}
	return Payload(raw), nil
}

// DecodeValue left-pads the amount to 32 bytes. Empty input is zero.
func DecodeValue(s string) (Value, error) {
	var v Value
	if err := decodeFixedWidth(s, v[:]); err != nil {
		return Value{}, err
	}
	return v, nil
}

// DecodeTxHash follows the value rules but rejects empty input.
func DecodeTxHash(s string) (TxHash, error) {
	if trimPrefix(s) == "" {
		return TxHash{}, fmt.Errorf("%w: empty transaction hash", ErrBadLength)
	}
	var h TxHash
	if err := decodeFixedWidth(s, h[:]); err != nil {
		return TxHash{}, err
	}
	return h, nil
}

// Encode renders bytes as lowercase 0x-prefixed hex.
func Encode(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}

func decodeFixedWidth(s string, dst []byte) error {
	digits := trimPrefix(s)
	if len(digits) > 2*len(dst) {
		return fmt.Errorf("%w: at most %d bytes, got %d hex digits", ErrBadLength, len(dst), len(digits))
	}
	padded := strings.Repeat("0", 2*len(dst)-len(digits)) + digits
	raw, err := hex.DecodeString(padded)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadHex, err)
	}
	copy(dst, raw)
	return nil
}

func decodeHex(s string) ([]byte, error) {
	digits := trimPrefix(s)
	if len(digits)%2 != 0 {
		return nil, fmt.Errorf("%w: odd number of digits", ErrBadHex)
	}
	raw, err := hex.DecodeString(digits)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadHex, err)
	}
	return raw, nil
}

func trimPrefix(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}
