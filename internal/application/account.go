package application

import (
	"errors"
	"fmt"
	"strings"

	"dspacegw/internal/domain"
)

var (
	ErrAccountNotFound  = errors.New("account not found")
	ErrNoDefaultAccount = errors.New("no default account configured")
)

// ResolveAccount selects the signing account once at startup: the named account
// when name is set, the wallet default otherwise.
func ResolveAccount(store AccountStore, name string) (domain.Account, error) {
	if store == nil {
		return domain.Account{}, errors.New("account store is required")
	}
	name = strings.TrimSpace(name)
	if name != "" {
		account, ok, err := store.LoadAccount(name)
		if err != nil {
			return domain.Account{}, fmt.Errorf("load account %s: %w", name, err)
		}
		if !ok {
			return domain.Account{}, fmt.Errorf("%w: %s", ErrAccountNotFound, name)
		}
		return account, nil
	}

	account, ok, err := store.DefaultAccount()
	if err != nil {
		return domain.Account{}, fmt.Errorf("load default account: %w", err)
	}
	if !ok {
		return domain.Account{}, ErrNoDefaultAccount
	}
	return account, nil
}
