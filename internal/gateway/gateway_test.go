package gateway

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"dspacegw/internal/application"
	"dspacegw/internal/config"
	"dspacegw/internal/infrastructure/crypto"
	"dspacegw/internal/infrastructure/wallet"
	"dspacegw/internal/interfaces/grpcapi"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	return config.Config{
		RPCAddr:         "127.0.0.1:1",
		ExecutorAddr:    "127.0.0.1:1",
		KeystoreDir:     filepath.Join(dir, "wallet"),
		ReceiptFormat:   config.FeatureEVM,
		CryptoBackend:   config.FeatureCryptoETH,
		GRPCAddr:        "127.0.0.1:0",
		HTTPAddr:        "127.0.0.1:0",
		BridgeTimeout:   5 * time.Second,
		DefaultGasLimit: 3_000_000,
		JournalDSN:      "sqlite:" + filepath.Join(dir, "journal.db"),
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seedAccount(t *testing.T, cfg config.Config, name string) {
	t.Helper()
	backend, err := crypto.NewBackend(cfg.CryptoBackend)
	if err != nil {
		t.Fatalf("backend: %v", err)
	}
	w, err := wallet.Open(cfg.KeystoreDir, backend, cfg.WalletPassphrase)
	if err != nil {
		t.Fatalf("wallet: %v", err)
	}
	if _, err := w.CreateAccount(name); err != nil {
		t.Fatalf("create: %v", err)
	}
}

func TestNewFailsWithoutDefaultAccount(t *testing.T) {
	listened := false
	_, err := New(testConfig(t), Options{
		Logger: quietLogger(),
		Listen: func(network, address string) (net.Listener, error) {
			listened = true
			return net.Listen(network, address)
		},
	})
	if !errors.Is(err, application.ErrNoDefaultAccount) {
		t.Fatalf("expected ErrNoDefaultAccount, got %v", err)
	}
	if listened {
		t.Fatal("listener bound before account resolution")
	}
}

func TestNewFailsForUnknownUser(t *testing.T) {
	cfg := testConfig(t)
	seedAccount(t, cfg, "alice")
	cfg.DefaultUser = "mallory"
	if _, err := New(cfg, Options{Logger: quietLogger()}); !errors.Is(err, application.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestNewRejectsBadJournal(t *testing.T) {
	cfg := testConfig(t)
	seedAccount(t, cfg, "alice")
	cfg.JournalDSN = "postgres:somewhere"
	if _, err := New(cfg, Options{Logger: quietLogger()}); err == nil {
		t.Fatal("expected journal error")
	}
}

func TestRunRequiresReady(t *testing.T) {
	g := &Gateway{}
	if err := g.Run(context.Background()); err == nil {
		t.Fatal("expected error for uninitialized gateway")
	}
}

func TestServeCreateAccountAndShutdown(t *testing.T) {
	cfg := testConfig(t)
	seedAccount(t, cfg, "alice")

	addrs := make(chan string, 2)
	g, err := New(cfg, Options{
		Logger: quietLogger(),
		Listen: func(network, address string) (net.Listener, error) {
			lis, err := net.Listen(network, address)
			if err == nil {
				addrs <- lis.Addr().String()
			}
			return lis, err
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer g.Close()
	if g.State() != StateReady || g.Account().Name != "alice" {
		t.Fatalf("unexpected state %s account %q", g.State(), g.Account().Name)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- g.Run(ctx) }()

	grpcAddr := waitAddr(t, addrs)
	httpAddr := waitAddr(t, addrs)

	cc, err := grpc.DialContext(ctx, grpcAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer cc.Close()
	client := grpcapi.NewDSpaceServiceClient(cc)

	req, _ := structpb.NewStruct(map[string]interface{}{"Id": "bob"})
	callCtx, callCancel := context.WithTimeout(ctx, 5*time.Second)
	resp, err := client.CreateAccount(callCtx, req)
	callCancel()
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	if addr := resp.GetValue(); !strings.HasPrefix(addr, "0x") || len(addr) != 42 {
		t.Fatalf("unexpected address %q", addr)
	}

	health, err := http.Get("http://" + httpAddr + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	health.Body.Close()
	if health.StatusCode != http.StatusOK {
		t.Fatalf("healthz status %d", health.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if g.State() != StateStopped {
		t.Errorf("expected stopped, got %s", g.State())
	}
}

func waitAddr(t *testing.T, addrs <-chan string) string {
	t.Helper()
	select {
	case addr := <-addrs:
		return addr
	case <-time.After(5 * time.Second):
		t.Fatal("listener was not bound")
		return ""
	}
}
