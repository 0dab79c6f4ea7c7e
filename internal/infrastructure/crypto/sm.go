package crypto

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"dspacegw/internal/domain"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/tjfoc/gmsm/sm2"
	"github.com/tjfoc/gmsm/sm3"
)

const smScalarLength = 32

type smBackend struct{}

func (smBackend) Name() string { return BackendSM }

func (smBackend) KeyFromSeed(seed []byte) (Key, error) {
	if len(seed) == 0 {
		return nil, errors.New("seed is required")
	}
	n := sm2.P256Sm2().Params().N
	d := new(big.Int).SetBytes(sm3.Sm3Sum(seed))
	d.Mod(d, new(big.Int).Sub(n, big.NewInt(1)))
	d.Add(d, big.NewInt(1))
	return newSMKey(d), nil
}

func (smBackend) ParseKey(raw []byte) (Key, error) {
	if len(raw) != smScalarLength {
		return nil, fmt.Errorf("parse sm2 key: want %d bytes, got %d", smScalarLength, len(raw))
	}
	d := new(big.Int).SetBytes(raw)
	if d.Sign() == 0 || d.Cmp(sm2.P256Sm2().Params().N) >= 0 {
		return nil, errors.New("parse sm2 key: scalar out of range")
	}
	return newSMKey(d), nil
}

type smKey struct {
	priv    *sm2.PrivateKey
	pub     []byte
	address domain.Address
}

func newSMKey(d *big.Int) *smKey {
	curve := sm2.P256Sm2()
	priv := &sm2.PrivateKey{D: d}
	priv.PublicKey.Curve = curve
	priv.PublicKey.X, priv.PublicKey.Y = curve.ScalarBaseMult(d.FillBytes(make([]byte, smScalarLength)))

	pub := make([]byte, 2*smScalarLength)
	priv.PublicKey.X.FillBytes(pub[:smScalarLength])
	priv.PublicKey.Y.FillBytes(pub[smScalarLength:])

	key := &smKey{priv: priv, pub: pub}
	digest := sm3.Sm3Sum(pub)
	copy(key.address[:], digest[len(digest)-domain.AddressLength:])
	return key
}

func (k *smKey) Address() domain.Address { return k.address }

func (k *smKey) Bytes() []byte { return k.priv.D.FillBytes(make([]byte, smScalarLength)) }

// SignTransaction RLP-encodes the transaction body and appends r || s || pubkey.
// The transaction hash is SM3 over the signed encoding.
func (k *smKey) SignTransaction(tx domain.UnsignedTx) (domain.SignedTx, error) {
	if tx.ChainID == nil {
		return domain.SignedTx{}, errors.New("chain id is required")
	}
	body := smTxBody(tx)
	encoded, err := rlp.EncodeToBytes(body)
	if err != nil {
		return domain.SignedTx{}, fmt.Errorf("encode transaction: %w", err)
	}
	r, s, err := sm2.Sm2Sign(k.priv, sm3.Sm3Sum(encoded), nil, rand.Reader)
	if err != nil {
		return domain.SignedTx{}, fmt.Errorf("sign transaction: %w", err)
	}
	signature := make([]byte, 4*smScalarLength)
	r.FillBytes(signature[:smScalarLength])
	s.FillBytes(signature[smScalarLength : 2*smScalarLength])
	copy(signature[2*smScalarLength:], k.pub)

	raw, err := rlp.EncodeToBytes(append(body, signature))
	if err != nil {
		return domain.SignedTx{}, fmt.Errorf("encode signed transaction: %w", err)
	}
	return domain.SignedTx{Raw: raw, Hash: sm3.Sm3Sum(raw)}, nil
}

func smTxBody(tx domain.UnsignedTx) []any {
	gasPrice := tx.GasPrice
	if gasPrice == nil {
		gasPrice = new(big.Int)
	}
	return []any{
		tx.Nonce,
		gasPrice,
		tx.Gas,
		tx.To.Bytes(),
		tx.Value.Big(),
		[]byte(tx.Data),
		tx.ChainID,
	}
}
