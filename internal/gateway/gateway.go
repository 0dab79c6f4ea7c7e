// Package gateway assembles the dSpace gateway from configuration and runs its
// gRPC and HTTP fronts.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync/atomic"

	"dspacegw/internal/application"
	"dspacegw/internal/config"
	"dspacegw/internal/domain"
	"dspacegw/internal/infrastructure/chainrpc"
	"dspacegw/internal/infrastructure/crypto"
	"dspacegw/internal/infrastructure/kafka"
	"dspacegw/internal/infrastructure/ratelimit"
	"dspacegw/internal/infrastructure/storage"
	"dspacegw/internal/infrastructure/wallet"
	"dspacegw/internal/interfaces/grpcapi"
	"dspacegw/internal/interfaces/httpapi"

	"golang.org/x/sync/errgroup"
)

type State int32

const (
	StateUninitialized State = iota
	StateResolving
	StateReady
	StateServing
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateResolving:
		return "resolving"
	case StateReady:
		return "ready"
	case StateServing:
		return "serving"
	case StateStopped:
		return "stopped"
	default:
		return "uninitialized"
	}
}

type ListenFunc func(network, address string) (net.Listener, error)

type Options struct {
	BuildInfo httpapi.BuildInfo
	Logger    *slog.Logger
	// Listen defaults to net.Listen.
	Listen ListenFunc
}

// Gateway owns the shared handles built once at startup.
type Gateway struct {
	cfg       config.Config
	logger    *slog.Logger
	listen    ListenFunc
	buildInfo httpapi.BuildInfo
	state     atomic.Int32

	wallet     *wallet.Wallet
	account    domain.Account
	chain      *chainrpc.CachedClient
	journal    storage.Journal
	producer   *kafka.Producer
	metrics    *httpapi.Metrics
	limiter    *ratelimit.PeerLimiter
	renderer   application.ReceiptRenderer
	dispatcher *application.Dispatcher
}

// New resolves the signing account and builds every collaborator. It never
// binds a listener, so a resolution failure leaves no port open.
func New(cfg config.Config, opts Options) (*Gateway, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	listen := opts.Listen
	if listen == nil {
		listen = net.Listen
	}
	g := &Gateway{cfg: cfg, logger: logger, listen: listen, buildInfo: opts.BuildInfo}
	g.state.Store(int32(StateResolving))

	backend, err := crypto.NewBackend(cfg.CryptoBackend)
	if err != nil {
		return nil, err
	}
	g.wallet, err = wallet.Open(cfg.KeystoreDir, backend, cfg.WalletPassphrase)
	if err != nil {
		return nil, fmt.Errorf("open wallet: %w", err)
	}
	g.account, err = application.ResolveAccount(g.wallet, cfg.DefaultUser)
	if err != nil {
		return nil, fmt.Errorf("resolve account: %w", err)
	}
	logger.Info("account resolved", "name", g.account.Name, "address", g.account.Address.Hex(), "crypto", g.account.Crypto)

	if err := g.build(); err != nil {
		_ = g.Close()
		return nil, err
	}
	g.state.Store(int32(StateReady))
	return g, nil
}

func (g *Gateway) build() error {
	cfg := g.cfg
	base, err := chainrpc.NewClient(chainrpc.Config{
		LedgerURL:       chainrpc.NormalizeEndpoint(cfg.RPCAddr),
		ExecutorURL:     chainrpc.NormalizeEndpoint(cfg.ExecutorAddr),
		Signer:          g.account.Signer,
		DefaultGasLimit: cfg.DefaultGasLimit,
	})
	if err != nil {
		return fmt.Errorf("chain client: %w", err)
	}
	g.chain, err = chainrpc.NewCachedClient(base, chainrpc.CacheConfig{Addr: cfg.RedisAddr, TTL: cfg.ReceiptCacheTTL})
	if err != nil {
		g.logger.Warn("receipt cache disabled", "addr", cfg.RedisAddr, "err", err)
		g.chain, _ = chainrpc.NewCachedClient(base, chainrpc.CacheConfig{})
	}

	var recorders []application.Recorder
	g.journal, err = storage.OpenJournal(cfg.JournalDSN)
	if err != nil {
		return fmt.Errorf("journal: %w", err)
	}
	if g.journal != nil {
		recorders = append(recorders, g.journal)
	}
	if len(cfg.KafkaBrokers) > 0 {
		g.producer, err = kafka.NewProducer(kafka.ProducerConfig{Brokers: cfg.KafkaBrokers, Topic: cfg.KafkaTopic})
		if err != nil {
			return fmt.Errorf("kafka producer: %w", err)
		}
		recorders = append(recorders, g.producer)
	}

	g.renderer, err = application.NewReceiptRenderer(cfg.ReceiptFormat)
	if err != nil {
		return err
	}
	g.metrics = httpapi.NewMetrics()
	g.limiter = ratelimit.New(cfg.RateLimitRPS, cfg.RateLimitBurst, 0)
	g.dispatcher, err = application.NewDispatcher(application.DispatcherConfig{
		Account:   g.account,
		Chain:     g.chain,
		Accounts:  g.wallet,
		Crypto:    cfg.CryptoBackend,
		Bridge:    application.NewBridge(cfg.BridgeTimeout, g.metrics),
		Receipts:  g.renderer,
		Recorders: recorders,
		Logger:    g.logger,
	})
	return err
}

func (g *Gateway) State() State {
	return State(g.state.Load())
}

func (g *Gateway) Account() domain.Account {
	return g.account
}

// Run binds both listeners and serves until ctx is done or a front fails.
func (g *Gateway) Run(ctx context.Context) error {
	if g.State() != StateReady {
		return fmt.Errorf("gateway is %s, not ready", g.State())
	}
	grpcLis, err := g.listen("tcp", g.cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("grpc listen %s: %w", g.cfg.GRPCAddr, err)
	}
	var httpLis net.Listener
	if strings.TrimSpace(g.cfg.HTTPAddr) != "" {
		httpLis, err = g.listen("tcp", g.cfg.HTTPAddr)
		if err != nil {
			_ = grpcLis.Close()
			return fmt.Errorf("http listen %s: %w", g.cfg.HTTPAddr, err)
		}
	}

	grpcSrv, err := grpcapi.NewServer(g.dispatcher)
	if err != nil {
		return err
	}
	grpcServer := grpcapi.NewGRPCServer(grpcSrv, grpcapi.ServerConfig{
		Limiter:  g.limiter,
		Observer: g.metrics,
		Logger:   g.logger,
	})

	group, groupCtx := errgroup.WithContext(ctx)
	g.state.Store(int32(StateServing))
	defer g.state.Store(int32(StateStopped))

	group.Go(func() error {
		g.logger.Info("grpc server listening", "addr", grpcLis.Addr().String())
		return grpcapi.Serve(groupCtx, grpcServer, grpcLis)
	})
	if httpLis != nil {
		httpServer, err := httpapi.NewServer(httpapi.ServerConfig{
			Config:    g.cfg,
			Account:   g.account,
			Ops:       g.dispatcher,
			Chain:     g.chain,
			Journal:   g.journalStore(),
			Metrics:   g.metrics,
			Limiter:   g.limiter,
			BuildInfo: g.buildInfo,
			Logger:    g.logger,

			ReceiptFormat: g.renderer.Format(),
		})
		if err != nil {
			_ = httpLis.Close()
			grpcServer.Stop()
			_ = group.Wait()
			return err
		}
		group.Go(func() error {
			g.logger.Info("http server listening", "addr", httpLis.Addr().String())
			return httpServer.Serve(groupCtx, httpLis)
		})
	}

	err = group.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (g *Gateway) journalStore() httpapi.JournalStore {
	if g.journal == nil {
		return nil
	}
	return g.journal
}

// Close drains pending recorder notifications, then releases the cache,
// journal and producer connections.
func (g *Gateway) Close() error {
	if g.dispatcher != nil {
		g.dispatcher.Wait()
	}
	var errs []error
	if g.chain != nil {
		errs = append(errs, g.chain.Close())
	}
	if g.journal != nil {
		errs = append(errs, g.journal.Close())
	}
	if g.producer != nil {
		errs = append(errs, g.producer.Close())
	}
	return errors.Join(errs...)
}
