package crypto

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"

	"dspacegw/internal/domain"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
)

type ethBackend struct{}

func (ethBackend) Name() string { return BackendETH }

func (ethBackend) KeyFromSeed(seed []byte) (Key, error) {
	if len(seed) == 0 {
		return nil, errors.New("seed is required")
	}
	priv, err := gethcrypto.ToECDSA(gethcrypto.Keccak256(seed))
	if err != nil {
		return nil, fmt.Errorf("derive secp256k1 key: %w", err)
	}
	return newETHKey(priv), nil
}

func (ethBackend) ParseKey(raw []byte) (Key, error) {
	priv, err := gethcrypto.ToECDSA(raw)
	if err != nil {
		return nil, fmt.Errorf("parse secp256k1 key: %w", err)
	}
	return newETHKey(priv), nil
}

type ethKey struct {
	priv    *ecdsa.PrivateKey
	address domain.Address
}

func newETHKey(priv *ecdsa.PrivateKey) *ethKey {
	key := &ethKey{priv: priv}
	copy(key.address[:], gethcrypto.PubkeyToAddress(priv.PublicKey).Bytes())
	return key
}

func (k *ethKey) Address() domain.Address { return k.address }

func (k *ethKey) Bytes() []byte { return gethcrypto.FromECDSA(k.priv) }

// SignTransaction produces an EIP-155 legacy transaction.
func (k *ethKey) SignTransaction(tx domain.UnsignedTx) (domain.SignedTx, error) {
	if tx.ChainID == nil {
		return domain.SignedTx{}, errors.New("chain id is required")
	}
	gasPrice := tx.GasPrice
	if gasPrice == nil {
		gasPrice = new(big.Int)
	}
	to := common.BytesToAddress(tx.To.Bytes())
	unsigned := types.NewTx(&types.LegacyTx{
		Nonce:    tx.Nonce,
		GasPrice: gasPrice,
		Gas:      tx.Gas,
		To:       &to,
		Value:    tx.Value.Big(),
		Data:     tx.Data,
	})
	signed, err := types.SignTx(unsigned, types.NewEIP155Signer(tx.ChainID), k.priv)
	if err != nil {
		return domain.SignedTx{}, fmt.Errorf("sign transaction: %w", err)
	}
	raw, err := signed.MarshalBinary()
	if err != nil {
		return domain.SignedTx{}, err
	}
	return domain.SignedTx{Raw: raw, Hash: signed.Hash().Bytes()}, nil
}
