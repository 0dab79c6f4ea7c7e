package application

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"dspacegw/internal/domain"

	"github.com/cenkalti/backoff/v4"
)

const (
	recordTimeout = 5 * time.Second
	recordRetries = 2
)

type CallRequest struct {
	To   string
	Data string
}

type SendRequest struct {
	To    string
	Data  string
	Value string
}

type ReceiptRequest struct {
	TxHash string
}

type CreateAccountRequest struct {
	ID string
}

// Dispatcher decodes inbound requests and routes them to the chain client or
// the wallet. It holds no mutable state and is safe for concurrent use.
type Dispatcher struct {
	account   domain.Account
	chain     ChainClient
	accounts  AccountCreator
	crypto    string
	bridge    *Bridge
	receipts  ReceiptRenderer
	recorders []Recorder
	logger    *slog.Logger
	now       func() time.Time

	recordTimeout time.Duration
	pending       sync.WaitGroup
}

type DispatcherConfig struct {
	Account   domain.Account
	Chain     ChainClient
	Accounts  AccountCreator
	Crypto    string
	Bridge    *Bridge
	Receipts  ReceiptRenderer
	Recorders []Recorder
	Logger    *slog.Logger
}

func NewDispatcher(cfg DispatcherConfig) (*Dispatcher, error) {
	if cfg.Chain == nil || cfg.Accounts == nil || cfg.Bridge == nil || cfg.Receipts == nil {
		return nil, errors.New("dispatcher dependencies must not be nil")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	recorders := make([]Recorder, 0, len(cfg.Recorders))
	for _, recorder := range cfg.Recorders {
		if recorder != nil {
			recorders = append(recorders, recorder)
		}
	}
	return &Dispatcher{
		account:   cfg.Account,
		chain:     cfg.Chain,
		accounts:  cfg.Accounts,
		crypto:    cfg.Crypto,
		bridge:    cfg.Bridge,
		receipts:  cfg.Receipts,
		recorders: recorders,
		logger:    logger,
		now:       time.Now,

		recordTimeout: recordTimeout,
	}, nil
}

// Call runs a read-only call with an empty sender and returns the hex result.
func (d *Dispatcher) Call(ctx context.Context, req CallRequest) (string, error) {
	to, err := domain.DecodeAddress(req.To)
	if err != nil {
		return "", &domain.DecodeError{Field: "To", Err: err}
	}
	data, err := domain.DecodeData(req.Data)
	if err != nil {
		return "", &domain.DecodeError{Field: "Data", Err: err}
	}

	result, err := Await(ctx, d.bridge, "call", func(ctx context.Context) ([]byte, error) {
		return d.chain.Call(ctx, nil, to, data)
	})
	if err != nil {
		return "", err
	}
	return domain.Encode(result), nil
}

// Send submits a transaction signed by the resolved account and returns its hash.
func (d *Dispatcher) Send(ctx context.Context, req SendRequest) (string, error) {
	to, err := domain.DecodeAddress(req.To)
	if err != nil {
		return "", &domain.DecodeError{Field: "To", Err: err}
	}
	data, err := domain.DecodeData(req.Data)
	if err != nil {
		return "", &domain.DecodeError{Field: "Data", Err: err}
	}
	value, err := domain.DecodeValue(req.Value)
	if err != nil {
		return "", &domain.DecodeError{Field: "Value", Err: err}
	}

	hash, err := Await(ctx, d.bridge, "send", func(ctx context.Context) ([]byte, error) {
		return d.chain.Send(ctx, to, data, value)
	})
	if err != nil {
		return "", err
	}

	txHash := domain.Encode(hash)
	submission := domain.Submission{
		TxHash:      txHash,
		From:        d.account.Address.Hex(),
		To:          to.Hex(),
		Value:       value.Big().String(),
		DataSize:    len(data),
		SubmittedAt: d.now().UTC(),
	}
	d.record(ctx, "submission", func(ctx context.Context, r Recorder) error {
		return r.RecordSubmission(ctx, submission)
	})
	return txHash, nil
}

// Receipt fetches the receipt for a transaction hash and renders it.
func (d *Dispatcher) Receipt(ctx context.Context, req ReceiptRequest) (string, error) {
	hash, err := domain.DecodeTxHash(req.TxHash)
	if err != nil {
		return "", &domain.DecodeError{Field: "TxHash", Err: err}
	}

	receipt, err := Await(ctx, d.bridge, "receipt", func(ctx context.Context) (domain.Receipt, error) {
		return d.chain.GetReceipt(ctx, hash)
	})
	if err != nil {
		return "", err
	}
	return d.receipts.Render(receipt), nil
}

// CreateAccount creates and persists a new keypair under the given name.
func (d *Dispatcher) CreateAccount(ctx context.Context, req CreateAccountRequest) (string, error) {
	address, err := d.accounts.CreateAccount(req.ID)
	if err != nil {
		return "", err
	}

	creation := domain.AccountCreation{
		Name:      req.ID,
		Address:   address.Hex(),
		Crypto:    d.crypto,
		CreatedAt: d.now().UTC(),
	}
	d.record(ctx, "account_creation", func(ctx context.Context, r Recorder) error {
		return r.RecordAccountCreation(ctx, creation)
	})
	return address.Hex(), nil
}

// record notifies the recorders in the background. The caller's response
// never waits on them.
func (d *Dispatcher) record(ctx context.Context, kind string, fn func(context.Context, Recorder) error) {
	if len(d.recorders) == 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)
	d.pending.Add(1)
	go func() {
		defer d.pending.Done()
		ctx, cancel := context.WithTimeout(ctx, d.recordTimeout)
		defer cancel()
		for _, recorder := range d.recorders {
			policy := backoff.NewExponentialBackOff()
			policy.InitialInterval = 50 * time.Millisecond
			policy.MaxElapsedTime = d.recordTimeout
			err := backoff.Retry(func() error {
				return fn(ctx, recorder)
			}, backoff.WithContext(backoff.WithMaxRetries(policy, recordRetries), ctx))
			if err != nil {
				d.logger.Warn("record failed", "kind", kind, "err", err)
			}
		}
	}()
}

// Wait blocks until every background recorder notification has finished.
func (d *Dispatcher) Wait() {
	d.pending.Wait()
}
