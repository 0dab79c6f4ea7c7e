package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dspacegw/internal/config"
	"dspacegw/internal/gateway"
	"dspacegw/internal/infrastructure/crypto"
	"dspacegw/internal/infrastructure/logging"
	"dspacegw/internal/infrastructure/telemetry"
	"dspacegw/internal/infrastructure/wallet"
	"dspacegw/internal/interfaces/httpapi"

	"github.com/urfave/cli/v2"
)

var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

func main() {
	app := &cli.App{
		Name:  "dspacegw",
		Usage: "gRPC gateway for dSpace contract calls",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "optional YAML file layered under the environment",
				EnvVars: []string{"CONFIG_FILE"},
			},
		},
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "resolve the signing account and serve requests",
				Action: serve,
			},
			{
				Name:  "account",
				Usage: "manage wallet accounts",
				Subcommands: []*cli.Command{
					{
						Name:      "create",
						Usage:     "create a new account",
						ArgsUsage: "<name>",
						Action:    createAccount,
					},
					{
						Name:   "list",
						Usage:  "list accounts as JSON",
						Action: listAccounts,
					},
					{
						Name:      "default",
						Usage:     "set the default account",
						ArgsUsage: "<name>",
						Action:    setDefault,
					},
				},
			},
			{
				Name:  "version",
				Usage: "print build information",
				Action: func(c *cli.Context) error {
					fmt.Fprintf(c.App.Writer, "dspacegw %s (commit %s, built %s)\n", version, commit, buildTime)
					return nil
				},
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatalf("dspacegw: %v", err)
	}
}

func serve(c *cli.Context) error {
	cfg, err := config.LoadFromEnv(c.String("config"))
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	logger, logCloser, err := logging.Init(logging.Config{
		Level:      cfg.LogLevel,
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
	}, "service", "dspacegw")
	if err != nil {
		return fmt.Errorf("logging error: %w", err)
	}
	defer logCloser.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	shutdownTracing, err := telemetry.InitTracer(ctx, "dspacegw", version, cfg.OtelEndpoint)
	if err != nil {
		logger.Warn("tracing disabled", "err", err)
	}
	defer func() {
		flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer flushCancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("tracing shutdown error", "err", err)
		}
	}()

	gw, err := gateway.New(cfg, gateway.Options{
		Logger: logger,
		BuildInfo: httpapi.BuildInfo{
			Version:   version,
			Commit:    commit,
			BuildTime: buildTime,
		},
	})
	if err != nil {
		return err
	}
	defer gw.Close()

	logger.Info("gateway ready", "features", cfg.Features(), "grpc_addr", cfg.GRPCAddr, "http_addr", cfg.HTTPAddr)
	if err := gw.Run(ctx); err != nil {
		return err
	}
	logger.Info("gateway stopped")
	return nil
}

func openWallet(c *cli.Context) (*wallet.Wallet, error) {
	cfg, err := config.LoadFromEnv(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}
	backend, err := crypto.NewBackend(cfg.CryptoBackend)
	if err != nil {
		return nil, err
	}
	return wallet.Open(cfg.KeystoreDir, backend, cfg.WalletPassphrase)
}

func createAccount(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: dspacegw account create <name>", 2)
	}
	w, err := openWallet(c)
	if err != nil {
		return err
	}
	address, err := w.CreateAccount(c.Args().First())
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, address.Hex())
	return nil
}

func listAccounts(c *cli.Context) error {
	w, err := openWallet(c)
	if err != nil {
		return err
	}
	accounts, err := w.ListAccounts()
	if err != nil {
		return err
	}
	encoder := json.NewEncoder(c.App.Writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(accounts)
}

func setDefault(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: dspacegw account default <name>", 2)
	}
	w, err := openWallet(c)
	if err != nil {
		return err
	}
	return w.SetDefault(c.Args().First())
}
