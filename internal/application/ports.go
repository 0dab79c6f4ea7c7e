package application

import (
	"context"

	"dspacegw/internal/domain"
)

// ChainClient executes calls and submits transactions for the resolved account.
type ChainClient interface {
	Call(ctx context.Context, from []byte, to domain.Address, data domain.Payload) ([]byte, error)
	Send(ctx context.Context, to domain.Address, data domain.Payload, value domain.Value) ([]byte, error)
	GetReceipt(ctx context.Context, hash domain.TxHash) (domain.Receipt, error)
}

type AccountStore interface {
	LoadAccount(name string) (domain.Account, bool, error)
	DefaultAccount() (domain.Account, bool, error)
}

type AccountCreator interface {
	CreateAccount(name string) (domain.Address, error)
}

// Recorder is notified after a submission or account creation succeeded.
type Recorder interface {
	RecordSubmission(ctx context.Context, submission domain.Submission) error
	RecordAccountCreation(ctx context.Context, creation domain.AccountCreation) error
}

type JournalReader interface {
	QuerySubmissions(ctx context.Context, filter SubmissionQueryFilter) ([]domain.Submission, error)
}

// Operations is the request surface shared by the gRPC and HTTP fronts.
type Operations interface {
	Call(ctx context.Context, req CallRequest) (string, error)
	Send(ctx context.Context, req SendRequest) (string, error)
	Receipt(ctx context.Context, req ReceiptRequest) (string, error)
	CreateAccount(ctx context.Context, req CreateAccountRequest) (string, error)
}
