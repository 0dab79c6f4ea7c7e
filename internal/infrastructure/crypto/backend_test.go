package crypto

import (
	"bytes"
	"math/big"
	"testing"

	"dspacegw/internal/domain"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/tjfoc/gmsm/sm2"
	"github.com/tjfoc/gmsm/sm3"
)

func sampleTx(t *testing.T) domain.UnsignedTx {
	t.Helper()
	to, err := domain.DecodeAddress("0xffffffffffffffffffffffffffffffffff010000")
	if err != nil {
		t.Fatalf("decode address: %v", err)
	}
	value, err := domain.DecodeValue("0x2a")
	if err != nil {
		t.Fatalf("decode value: %v", err)
	}
	return domain.UnsignedTx{
		ChainID:  big.NewInt(1337),
		Nonce:    7,
		To:       to,
		Data:     domain.Payload{0xca, 0xfe},
		Value:    value,
		Gas:      21000,
		GasPrice: big.NewInt(1),
	}
}

func TestNewBackendRejectsUnknown(t *testing.T) {
	if _, err := NewBackend("crypto_rot13"); err == nil {
		t.Fatal("expected error")
	}
}

func TestKeyFromSeedDeterministic(t *testing.T) {
	for _, name := range []string{BackendETH, BackendSM} {
		backend, err := NewBackend(name)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		first, err := backend.KeyFromSeed([]byte("seed material"))
		if err != nil {
			t.Fatalf("%s: derive: %v", name, err)
		}
		second, err := backend.KeyFromSeed([]byte("seed material"))
		if err != nil {
			t.Fatalf("%s: derive: %v", name, err)
		}
		if first.Address() != second.Address() {
			t.Errorf("%s: expected same address", name)
		}
		parsed, err := backend.ParseKey(first.Bytes())
		if err != nil {
			t.Fatalf("%s: parse: %v", name, err)
		}
		if parsed.Address() != first.Address() {
			t.Errorf("%s: parsed key has different address", name)
		}
		if _, err := backend.KeyFromSeed(nil); err == nil {
			t.Errorf("%s: expected empty seed error", name)
		}
	}
}

func TestETHSignTransactionRecoversSender(t *testing.T) {
	backend, _ := NewBackend(BackendETH)
	key, err := backend.KeyFromSeed([]byte("alice"))
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	signed, err := key.SignTransaction(sampleTx(t))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	var tx types.Transaction
	if err := tx.UnmarshalBinary(signed.Raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !bytes.Equal(tx.Hash().Bytes(), signed.Hash) {
		t.Errorf("hash mismatch")
	}
	from, err := types.Sender(types.NewEIP155Signer(big.NewInt(1337)), &tx)
	if err != nil {
		t.Fatalf("sender: %v", err)
	}
	addr := key.Address()
	if !bytes.Equal(from.Bytes(), addr[:]) {
		t.Errorf("sender %s does not match key address %s", from.Hex(), addr.Hex())
	}
	if tx.Nonce() != 7 || tx.Value().Int64() != 42 {
		t.Errorf("unexpected tx fields nonce=%d value=%s", tx.Nonce(), tx.Value())
	}
}

func TestSignRequiresChainID(t *testing.T) {
	for _, name := range []string{BackendETH, BackendSM} {
		backend, _ := NewBackend(name)
		key, _ := backend.KeyFromSeed([]byte("bob"))
		tx := sampleTx(t)
		tx.ChainID = nil
		if _, err := key.SignTransaction(tx); err == nil {
			t.Errorf("%s: expected chain id error", name)
		}
	}
}

func TestSMSignTransactionVerifies(t *testing.T) {
	backend, _ := NewBackend(BackendSM)
	generic, err := backend.KeyFromSeed([]byte("carol"))
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	key := generic.(*smKey)
	tx := sampleTx(t)
	signed, err := key.SignTransaction(tx)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if !bytes.Equal(signed.Hash, sm3.Sm3Sum(signed.Raw)) {
		t.Errorf("hash is not sm3 of raw transaction")
	}

	var decoded [][]byte
	if err := rlp.DecodeBytes(signed.Raw, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(decoded) != 8 {
		t.Fatalf("expected 8 fields, got %d", len(decoded))
	}
	signature := decoded[7]
	if !bytes.Equal(signature[64:], key.pub) {
		t.Errorf("signature does not carry public key")
	}
	body, err := rlp.EncodeToBytes(smTxBody(tx))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	r := new(big.Int).SetBytes(signature[:32])
	s := new(big.Int).SetBytes(signature[32:64])
	if !sm2.Sm2Verify(&key.priv.PublicKey, sm3.Sm3Sum(body), nil, r, s) {
		t.Errorf("signature does not verify")
	}
}

func TestSMParseKeyRejectsBadScalar(t *testing.T) {
	backend, _ := NewBackend(BackendSM)
	if _, err := backend.ParseKey(make([]byte, 32)); err == nil {
		t.Error("expected zero scalar to be rejected")
	}
	if _, err := backend.ParseKey([]byte{1, 2, 3}); err == nil {
		t.Error("expected short scalar to be rejected")
	}
}
