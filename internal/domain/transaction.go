package domain

import (
	"math/big"
	"time"
)

// UnsignedTx carries everything a signer needs to produce raw transaction bytes.
type UnsignedTx struct {
	ChainID  *big.Int
	Nonce    uint64
	To       Address
	Data     Payload
	Value    Value
	Gas      uint64
	GasPrice *big.Int
}

// SignedTx is the wire encoding of a signed transaction and its hash.
type SignedTx struct {
	Raw  []byte
	Hash []byte
}

// Submission records a transaction accepted by the ledger node.
type Submission struct {
	TxHash      string
	From        string
	To          string
	Value       string
	DataSize    int
	SubmittedAt time.Time
}

// AccountCreation records a keypair created through the gateway.
type AccountCreation struct {
	Name      string
	Address   string
	Crypto    string
	CreatedAt time.Time
}
