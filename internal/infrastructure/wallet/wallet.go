// Package wallet stores the gateway's signing accounts on the local filesystem.
//
// Layout under the wallet directory:
//
//	accounts/<name>.json  one file per account, never overwritten
//	default               name of the default account
//
// Secrets are kept in plaintext unless a passphrase is configured, in which case
// they are sealed with argon2id + XChaCha20-Poly1305.
package wallet

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"dspacegw/internal/domain"
	"dspacegw/internal/infrastructure/crypto"

	"github.com/tyler-smith/go-bip39"
)

const (
	accountFileVersion = 1
	accountsDir        = "accounts"
	defaultFile        = "default"
	mnemonicEntropy    = 128
)

var (
	ErrAccountExists   = domain.ErrAccountExists
	ErrAccountNotFound = errors.New("account not found")
	ErrBackendMismatch = errors.New("account was created with a different crypto backend")
	ErrCorruptAccount  = errors.New("account file is corrupt")
)

type Wallet struct {
	dir        string
	backend    crypto.Backend
	passphrase string
	mu         sync.Mutex
	now        func() time.Time
}

// AccountInfo is the public part of a stored account.
type AccountInfo struct {
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	Crypto    string    `json:"crypto"`
	CreatedAt time.Time `json:"created_at"`
	Default   bool      `json:"default"`
}

type accountFile struct {
	Version   int            `json:"version"`
	Name      string         `json:"name"`
	Address   string         `json:"address"`
	Crypto    string         `json:"crypto"`
	CreatedAt time.Time      `json:"created_at"`
	Secret    *accountSecret `json:"secret,omitempty"`
	Sealed    *Envelope      `json:"sealed,omitempty"`
}

type accountSecret struct {
	Mnemonic   string `json:"mnemonic"`
	PrivateKey string `json:"private_key"`
}

func Open(dir string, backend crypto.Backend, passphrase string) (*Wallet, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("wallet directory is required")
	}
	if backend == nil {
		return nil, errors.New("crypto backend is required")
	}
	if err := os.MkdirAll(filepath.Join(dir, accountsDir), 0o700); err != nil {
		return nil, fmt.Errorf("create wallet directory: %w", err)
	}
	return &Wallet{dir: dir, backend: backend, passphrase: passphrase, now: time.Now}, nil
}

// CheckAccountName allows letters, digits, '-' and '_'.
func CheckAccountName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty", domain.ErrInvalidName)
	}
	if len(name) > 64 {
		return fmt.Errorf("%w: longer than 64 characters", domain.ErrInvalidName)
	}
	for _, char := range name {
		if (char >= 'a' && char <= 'z') || (char >= 'A' && char <= 'Z') || (char >= '0' && char <= '9') || char == '-' || char == '_' {
			continue
		}
		return fmt.Errorf("%w: invalid character %q", domain.ErrInvalidName, char)
	}
	return nil
}

// CreateAccount generates a mnemonic-backed keypair and persists it under name.
// The first account created becomes the default.
func (w *Wallet) CreateAccount(name string) (domain.Address, error) {
	if err := CheckAccountName(name); err != nil {
		return domain.Address{}, err
	}

	entropy, err := bip39.NewEntropy(mnemonicEntropy)
	if err != nil {
		return domain.Address{}, err
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return domain.Address{}, err
	}
	key, err := w.backend.KeyFromSeed(bip39.NewSeed(mnemonic, ""))
	if err != nil {
		return domain.Address{}, err
	}

	file := accountFile{
		Version:   accountFileVersion,
		Name:      name,
		Address:   key.Address().Hex(),
		Crypto:    w.backend.Name(),
		CreatedAt: w.now().UTC(),
	}
	secret := &accountSecret{Mnemonic: mnemonic, PrivateKey: hex.EncodeToString(key.Bytes())}
	if w.passphrase != "" {
		plaintext, err := json.Marshal(secret)
		if err != nil {
			return domain.Address{}, err
		}
		file.Sealed, err = seal(w.passphrase, plaintext)
		wipe(plaintext)
		if err != nil {
			return domain.Address{}, fmt.Errorf("seal account secret: %w", err)
		}
	} else {
		file.Secret = secret
	}
	payload, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return domain.Address{}, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := writeExclusive(w.accountPath(name), payload); err != nil {
		if errors.Is(err, os.ErrExist) {
			return domain.Address{}, fmt.Errorf("%w: %s", ErrAccountExists, name)
		}
		return domain.Address{}, err
	}
	if _, ok, err := w.defaultName(); err != nil {
		return domain.Address{}, err
	} else if !ok {
		if err := w.writeDefault(name); err != nil {
			return domain.Address{}, err
		}
	}
	return key.Address(), nil
}

// LoadAccount returns the named account with its signer. ok is false when the
// wallet has no account under that name.
func (w *Wallet) LoadAccount(name string) (domain.Account, bool, error) {
	if err := CheckAccountName(name); err != nil {
		return domain.Account{}, false, err
	}
	file, err := w.readAccountFile(name)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return domain.Account{}, false, nil
		}
		return domain.Account{}, false, err
	}
	if file.Crypto != w.backend.Name() {
		return domain.Account{}, false, fmt.Errorf("%w: %s uses %s", ErrBackendMismatch, name, file.Crypto)
	}

	secret, err := w.openSecret(file)
	if err != nil {
		return domain.Account{}, false, fmt.Errorf("account %s: %w", name, err)
	}
	raw, err := hex.DecodeString(secret.PrivateKey)
	if err != nil {
		return domain.Account{}, false, fmt.Errorf("%w: %s", ErrCorruptAccount, name)
	}
	key, err := w.backend.ParseKey(raw)
	wipe(raw)
	if err != nil {
		return domain.Account{}, false, fmt.Errorf("%w: %s: %v", ErrCorruptAccount, name, err)
	}
	if key.Address().Hex() != strings.ToLower(file.Address) {
		return domain.Account{}, false, fmt.Errorf("%w: %s address does not match key", ErrCorruptAccount, name)
	}
	return domain.Account{
		Name:    name,
		Address: key.Address(),
		Crypto:  file.Crypto,
		Signer:  key,
	}, true, nil
}

// DefaultAccount loads the account named by the default file. ok is false when
// no default is configured.
func (w *Wallet) DefaultAccount() (domain.Account, bool, error) {
	name, ok, err := w.defaultName()
	if err != nil || !ok {
		return domain.Account{}, false, err
	}
	account, found, err := w.LoadAccount(name)
	if err != nil {
		return domain.Account{}, false, err
	}
	if !found {
		return domain.Account{}, false, fmt.Errorf("%w: default account %s", ErrAccountNotFound, name)
	}
	return account, true, nil
}

func (w *Wallet) SetDefault(name string) error {
	if err := CheckAccountName(name); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := os.Stat(w.accountPath(name)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrAccountNotFound, name)
		}
		return err
	}
	return w.writeDefault(name)
}

func (w *Wallet) ListAccounts() ([]AccountInfo, error) {
	entries, err := os.ReadDir(filepath.Join(w.dir, accountsDir))
	if err != nil {
		return nil, err
	}
	defaultName, _, err := w.defaultName()
	if err != nil {
		return nil, err
	}
	accounts := make([]AccountInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), ".json")
		file, err := w.readAccountFile(name)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, AccountInfo{
			Name:      file.Name,
			Address:   file.Address,
			Crypto:    file.Crypto,
			CreatedAt: file.CreatedAt,
			Default:   file.Name == defaultName,
		})
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].Name < accounts[j].Name })
	return accounts, nil
}

func (w *Wallet) openSecret(file accountFile) (accountSecret, error) {
	if file.Secret != nil {
		return *file.Secret, nil
	}
	if file.Sealed == nil {
		return accountSecret{}, ErrCorruptAccount
	}
	if w.passphrase == "" {
		return accountSecret{}, ErrWrongPassphrase
	}
	plaintext, err := file.Sealed.open(w.passphrase)
	if err != nil {
		return accountSecret{}, err
	}
	defer wipe(plaintext)
	var secret accountSecret
	if err := json.Unmarshal(plaintext, &secret); err != nil {
		return accountSecret{}, ErrCorruptAccount
	}
	return secret, nil
}

func (w *Wallet) readAccountFile(name string) (accountFile, error) {
	data, err := os.ReadFile(w.accountPath(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return accountFile{}, ErrAccountNotFound
		}
		return accountFile{}, err
	}
	var file accountFile
	if err := json.Unmarshal(data, &file); err != nil {
		return accountFile{}, fmt.Errorf("%w: %s", ErrCorruptAccount, name)
	}
	if file.Version != accountFileVersion || file.Name != name {
		return accountFile{}, fmt.Errorf("%w: %s", ErrCorruptAccount, name)
	}
	return file, nil
}

func (w *Wallet) defaultName() (string, bool, error) {
	data, err := os.ReadFile(filepath.Join(w.dir, defaultFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", false, nil
		}
		return "", false, err
	}
	name := strings.TrimSpace(string(data))
	if name == "" {
		return "", false, nil
	}
	return name, true, nil
}

func (w *Wallet) writeDefault(name string) error {
	path := filepath.Join(w.dir, defaultFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(name+"\n"), 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (w *Wallet) accountPath(name string) string {
	return filepath.Join(w.dir, accountsDir, name+".json")
}

func writeExclusive(path string, payload []byte) error {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return err
	}
	if _, err := file.Write(payload); err != nil {
		_ = file.Close()
		_ = os.Remove(path)
		return err
	}
	return file.Close()
}
