package application

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"dspacegw/internal/domain"
)

type stubChain struct {
	mu       sync.Mutex
	calls    int
	callTo   domain.Address
	callFrom []byte
	sendTo   domain.Address
	value    domain.Value
	result   []byte
	hash     []byte
	receipt  domain.Receipt
	err      error
}

func (s *stubChain) Call(ctx context.Context, from []byte, to domain.Address, data domain.Payload) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.callFrom = from
	s.callTo = to
	return s.result, s.err
}

func (s *stubChain) Send(ctx context.Context, to domain.Address, data domain.Payload, value domain.Value) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.sendTo = to
	s.value = value
	return s.hash, s.err
}

func (s *stubChain) GetReceipt(ctx context.Context, hash domain.TxHash) (domain.Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.receipt, s.err
}

type stubAccounts struct {
	mu      sync.Mutex
	created map[string]domain.Address
}

func (s *stubAccounts) CreateAccount(name string) (domain.Address, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.created == nil {
		s.created = make(map[string]domain.Address)
	}
	if _, ok := s.created[name]; ok {
		return domain.Address{}, errors.New("account already exists")
	}
	var addr domain.Address
	copy(addr[:], name)
	s.created[name] = addr
	return addr, nil
}

func (s *stubAccounts) LoadAccount(name string) (domain.Account, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	addr, ok := s.created[name]
	if !ok {
		return domain.Account{}, false, nil
	}
	return domain.Account{Name: name, Address: addr}, true, nil
}

func (s *stubAccounts) DefaultAccount() (domain.Account, bool, error) {
	return domain.Account{}, false, nil
}

type stubRecorder struct {
	mu          sync.Mutex
	submissions []domain.Submission
	creations   []domain.AccountCreation
	err         error
}

func (r *stubRecorder) RecordSubmission(ctx context.Context, submission domain.Submission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.submissions = append(r.submissions, submission)
	return r.err
}

func (r *stubRecorder) RecordAccountCreation(ctx context.Context, creation domain.AccountCreation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.creations = append(r.creations, creation)
	return r.err
}

// blockingRecorder holds every notification until its context ends.
type blockingRecorder struct {
	mu    sync.Mutex
	calls int
}

func (r *blockingRecorder) wait(ctx context.Context) error {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
	<-ctx.Done()
	return ctx.Err()
}

func (r *blockingRecorder) RecordSubmission(ctx context.Context, submission domain.Submission) error {
	return r.wait(ctx)
}

func (r *blockingRecorder) RecordAccountCreation(ctx context.Context, creation domain.AccountCreation) error {
	return r.wait(ctx)
}

// gatedChain stalls Call for one target until release is closed.
type gatedChain struct {
	stubChain
	slow    domain.Address
	entered chan struct{}
	release chan struct{}
}

func (g *gatedChain) Call(ctx context.Context, from []byte, to domain.Address, data domain.Payload) ([]byte, error) {
	if to == g.slow {
		close(g.entered)
		<-g.release
		return []byte{0x01}, nil
	}
	return g.stubChain.Call(ctx, from, to, data)
}

func newTestDispatcher(t *testing.T, chain ChainClient, accounts AccountCreator, recorders ...Recorder) *Dispatcher {
	t.Helper()
	renderer, err := NewReceiptRenderer(ReceiptFormatEVM)
	if err != nil {
		t.Fatalf("renderer: %v", err)
	}
	d, err := NewDispatcher(DispatcherConfig{
		Chain:     chain,
		Accounts:  accounts,
		Crypto:    "crypto_eth",
		Bridge:    NewBridge(time.Second, nil),
		Receipts:  renderer,
		Recorders: recorders,
	})
	if err != nil {
		t.Fatalf("dispatcher: %v", err)
	}
	return d
}

func TestNewDispatcherRequiresDependencies(t *testing.T) {
	if _, err := NewDispatcher(DispatcherConfig{}); err == nil {
		t.Fatal("expected error")
	}
}

func TestCallEncodesResult(t *testing.T) {
	chain := &stubChain{result: []byte{0xde, 0xad}}
	d := newTestDispatcher(t, chain, &stubAccounts{})
	got, err := d.Call(context.Background(), CallRequest{To: "0xffffffffffffffffffffffffffffffffff010000", Data: "0x"})
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if got != "0xdead" {
		t.Errorf("unexpected result %s", got)
	}
	if len(chain.callFrom) != 0 {
		t.Errorf("expected empty sender, got %x", chain.callFrom)
	}
}

func TestSendReturnsHashAndRecords(t *testing.T) {
	chain := &stubChain{hash: []byte{0x12, 0x34}}
	recorder := &stubRecorder{}
	d := newTestDispatcher(t, chain, &stubAccounts{}, recorder)
	got, err := d.Send(context.Background(), SendRequest{To: "0xffffffffffffffffffffffffffffffffff010000", Data: "0xabcd"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if got != "0x1234" {
		t.Errorf("unexpected tx hash %s", got)
	}
	if !chain.value.IsZero() {
		t.Errorf("expected zero value, got %s", chain.value.Hex())
	}
	if chain.sendTo.Hex() != "0xffffffffffffffffffffffffffffffffff010000" {
		t.Errorf("unexpected recipient %s", chain.sendTo.Hex())
	}
	d.Wait()
	if len(recorder.submissions) != 1 || recorder.submissions[0].TxHash != "0x1234" || recorder.submissions[0].DataSize != 2 {
		t.Errorf("unexpected submissions %+v", recorder.submissions)
	}
}

func TestSendSucceedsWhenRecorderFails(t *testing.T) {
	chain := &stubChain{hash: []byte{0x01}}
	recorder := &stubRecorder{err: errors.New("journal down")}
	d := newTestDispatcher(t, chain, &stubAccounts{}, recorder)
	got, err := d.Send(context.Background(), SendRequest{To: "0xffffffffffffffffffffffffffffffffff010000", Value: "0x2a"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if got != "0x01" {
		t.Errorf("unexpected tx hash %s", got)
	}
	if chain.value.Big().Int64() != 42 {
		t.Errorf("unexpected value %s", chain.value.Big())
	}
	d.Wait()
	if len(recorder.submissions) != 1+recordRetries {
		t.Errorf("expected %d attempts, got %d", 1+recordRetries, len(recorder.submissions))
	}
}

func TestReceiptRendersStatus(t *testing.T) {
	chain := &stubChain{receipt: domain.Receipt{TxHash: "0xabcd", Status: domain.ReceiptStatusSuccess}}
	d := newTestDispatcher(t, chain, &stubAccounts{})
	got, err := d.Receipt(context.Background(), ReceiptRequest{TxHash: "0xabcd"})
	if err != nil {
		t.Fatalf("receipt: %v", err)
	}
	if !strings.Contains(got, "success") {
		t.Errorf("expected status in %q", got)
	}
}

func TestDecodeFailuresSkipDownstream(t *testing.T) {
	chain := &stubChain{}
	d := newTestDispatcher(t, chain, &stubAccounts{})
	ctx := context.Background()

	cases := []struct {
		field string
		run   func() error
	}{
		{"To", func() error { _, err := d.Call(ctx, CallRequest{To: "0x01"}); return err }},
		{"Data", func() error {
			_, err := d.Call(ctx, CallRequest{To: "0xffffffffffffffffffffffffffffffffff010000", Data: "0xzz"})
			return err
		}},
		{"Value", func() error {
			_, err := d.Send(ctx, SendRequest{To: "0xffffffffffffffffffffffffffffffffff010000", Value: "0x" + strings.Repeat("11", 33)})
			return err
		}},
		{"TxHash", func() error { _, err := d.Receipt(ctx, ReceiptRequest{TxHash: ""}); return err }},
	}
	for _, tc := range cases {
		err := tc.run()
		var decodeErr *domain.DecodeError
		if !errors.As(err, &decodeErr) {
			t.Errorf("%s: expected DecodeError, got %v", tc.field, err)
			continue
		}
		if decodeErr.Field != tc.field {
			t.Errorf("expected field %s, got %s", tc.field, decodeErr.Field)
		}
	}
	if chain.calls != 0 {
		t.Errorf("expected no downstream calls, got %d", chain.calls)
	}
}

func TestCreateAccountThenResolve(t *testing.T) {
	accounts := &stubAccounts{}
	recorder := &stubRecorder{}
	d := newTestDispatcher(t, &stubChain{}, accounts, recorder)
	addr, err := d.CreateAccount(context.Background(), CreateAccountRequest{ID: "alice"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	account, err := ResolveAccount(accounts, "alice")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if account.Address.Hex() != addr {
		t.Errorf("resolved %s, created %s", account.Address.Hex(), addr)
	}
	d.Wait()
	if len(recorder.creations) != 1 || recorder.creations[0].Crypto != "crypto_eth" {
		t.Errorf("unexpected creations %+v", recorder.creations)
	}
	if _, err := d.CreateAccount(context.Background(), CreateAccountRequest{ID: "alice"}); err == nil {
		t.Error("expected duplicate error")
	}
}

func TestChainErrorsPropagate(t *testing.T) {
	boom := errors.New("node unreachable")
	d := newTestDispatcher(t, &stubChain{err: boom}, &stubAccounts{})
	if _, err := d.Call(context.Background(), CallRequest{To: "0xffffffffffffffffffffffffffffffffff010000"}); !errors.Is(err, boom) {
		t.Errorf("expected node error, got %v", err)
	}
}

func TestRecordersDoNotDelayResponses(t *testing.T) {
	recorder := &blockingRecorder{}
	d := newTestDispatcher(t, &stubChain{hash: []byte{0x01}}, &stubAccounts{}, recorder)
	d.recordTimeout = time.Second

	start := time.Now()
	if _, err := d.Send(context.Background(), SendRequest{To: "0xffffffffffffffffffffffffffffffffff010000"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, err := d.CreateAccount(context.Background(), CreateAccountRequest{ID: "bob"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("responses waited %s on recorders", elapsed)
	}

	d.Wait()
	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	if recorder.calls == 0 {
		t.Error("expected recorders to be notified")
	}
}

func TestSlowCallDoesNotBlockOtherCalls(t *testing.T) {
	slow, err := domain.DecodeAddress("0xffffffffffffffffffffffffffffffffff010000")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	chain := &gatedChain{
		stubChain: stubChain{result: []byte{0x02}},
		slow:      slow,
		entered:   make(chan struct{}),
		release:   make(chan struct{}),
	}
	d := newTestDispatcher(t, chain, &stubAccounts{})
	ctx := context.Background()

	slowDone := make(chan string, 1)
	go func() {
		got, _ := d.Call(ctx, CallRequest{To: slow.Hex()})
		slowDone <- got
	}()
	<-chain.entered

	got, err := d.Call(ctx, CallRequest{To: "0xffffffffffffffffffffffffffffffffff020000"})
	if err != nil {
		t.Fatalf("fast call: %v", err)
	}
	if got != "0x02" {
		t.Errorf("unexpected fast result %s", got)
	}
	select {
	case <-slowDone:
		t.Fatal("slow call finished before release")
	default:
	}

	close(chain.release)
	if got := <-slowDone; got != "0x01" {
		t.Errorf("unexpected slow result %s", got)
	}
}
