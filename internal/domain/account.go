package domain

// Signer is the signing capability the wallet attaches to an account.
type Signer interface {
	Address() Address
	SignTransaction(tx UnsignedTx) (SignedTx, error)
}

// Account is the active signer of the gateway.
type Account struct {
	Name    string
	Address Address
	Crypto  string
	Signer  Signer
}
