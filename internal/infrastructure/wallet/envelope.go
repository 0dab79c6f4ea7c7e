package wallet

import (
	"crypto/rand"
	"errors"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	envelopeVersion = 1
	envelopeKDF     = "argon2id"
	saltSize        = 16
)

var (
	ErrWrongPassphrase = errors.New("wallet passphrase rejected")
	ErrInvalidEnvelope = errors.New("wallet envelope is invalid")
)

// Envelope seals account secrets under the wallet passphrase.
type Envelope struct {
	Version     uint32 `json:"version"`
	KDF         string `json:"kdf"`
	KDFTime     uint32 `json:"kdf_time"`
	KDFMemoryKB uint32 `json:"kdf_memory_kb"`
	KDFThreads  uint8  `json:"kdf_threads"`
	Salt        []byte `json:"salt"`
	Nonce       []byte `json:"nonce"`
	Ciphertext  []byte `json:"ciphertext"`
}

func seal(passphrase string, plaintext []byte) (*Envelope, error) {
	env := &Envelope{
		Version:     envelopeVersion,
		KDF:         envelopeKDF,
		KDFTime:     2,
		KDFMemoryKB: 64 * 1024,
		KDFThreads:  1,
		Salt:        make([]byte, saltSize),
		Nonce:       make([]byte, chacha20poly1305.NonceSizeX),
	}
	if _, err := rand.Read(env.Salt); err != nil {
		return nil, err
	}
	if _, err := rand.Read(env.Nonce); err != nil {
		return nil, err
	}

	key := env.deriveKey(passphrase)
	defer wipe(key)
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	env.Ciphertext = aead.Seal(nil, env.Nonce, plaintext, nil)
	return env, nil
}

func (env *Envelope) open(passphrase string) ([]byte, error) {
	if env == nil || env.Version != envelopeVersion || env.KDF != envelopeKDF {
		return nil, ErrInvalidEnvelope
	}
	if len(env.Nonce) != chacha20poly1305.NonceSizeX || env.KDFTime == 0 || env.KDFMemoryKB == 0 || env.KDFThreads == 0 {
		return nil, ErrInvalidEnvelope
	}
	key := env.deriveKey(passphrase)
	defer wipe(key)
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	plaintext, err := aead.Open(nil, env.Nonce, env.Ciphertext, nil)
	if err != nil {
		return nil, ErrWrongPassphrase
	}
	return plaintext, nil
}

func (env *Envelope) deriveKey(passphrase string) []byte {
	return argon2.IDKey([]byte(passphrase), env.Salt, env.KDFTime, env.KDFMemoryKB, env.KDFThreads, chacha20poly1305.KeySize)
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
