package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"stakepool/config"
	"stakepool/core"
	"stakepool/core/events"
	"stakepool/crypto"
	"stakepool/observability"
	"stakepool/observability/logging"
	telemetry "stakepool/observability/otel"
	"stakepool/rpc"
	"stakepool/rpc/middleware"
	"stakepool/storage"
	"stakepool/storage/eventlog"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file (.toml or .yaml)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configFile); err != nil {
		fmt.Fprintf(os.Stderr, "stakingd: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logOpts := []logging.Option{logging.WithLevel(cfg.Logging.Level)}
	if cfg.Logging.File != "" {
		logOpts = append(logOpts, logging.WithFile(cfg.Logging.File, cfg.Logging.MaxSizeMB, cfg.Logging.MaxBackups))
	}
	logger, logCloser := logging.Setup("stakingd", cfg.Environment, logOpts...)
	defer logCloser.Close()

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: "stakingd",
		Environment: cfg.Environment,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     telemetry.ParseHeaders(cfg.Telemetry.Headers),
		Metrics:     cfg.Telemetry.Metrics,
		Traces:      cfg.Telemetry.Traces,
		Program:     cfg.ProgramSeed,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	if cfg.Telemetry.Metrics || cfg.Telemetry.Traces {
		logger.Info("telemetry export enabled",
			slog.String("endpoint", cfg.Telemetry.Endpoint),
			logging.MaskField("headers", cfg.Telemetry.Headers))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", slog.Any("error", err))
		}
	}()

	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "state"))
	if err != nil {
		return fmt.Errorf("open state database: %w", err)
	}
	defer db.Close()

	node, err := core.NewNode(db, core.NodeConfig{
		ChainID:     cfg.ChainID,
		ProgramSeed: cfg.ProgramSeed,
		StakeToken:  cfg.StakeToken,
	})
	if err != nil {
		return err
	}
	node.SetLogger(logger)

	allocations, err := cfg.GenesisAllocations()
	if err != nil {
		return err
	}
	if err := node.ApplyGenesis(allocations); err != nil {
		return fmt.Errorf("apply genesis: %w", err)
	}

	journal, err := eventlog.Open(cfg.EventLogDSN)
	if err != nil {
		return fmt.Errorf("open event log: %w", err)
	}
	defer journal.Close()
	node.SetJournal(journal)

	server, err := rpc.NewServer(node, journal, rpc.ServerConfig{
		ReadTimeout:  time.Duration(cfg.RPC.ReadTimeoutSecs) * time.Second,
		WriteTimeout: time.Duration(cfg.RPC.WriteTimeoutSecs) * time.Second,
		IdleTimeout:  time.Duration(cfg.RPC.IdleTimeoutSecs) * time.Second,
		Auth: middleware.AuthConfig{
			Enabled:    cfg.RPC.RequireAuth,
			HMACSecret: cfg.JWTSecret(),
			Issuer:     cfg.RPC.JWTIssuer,
			Audience:   cfg.RPC.JWTAudience,
		},
		RateLimit: middleware.RateLimit{
			RatePerSecond: cfg.RPC.RateLimitPerSecond,
			Burst:         cfg.RPC.RateLimitBurst,
		},
		AllowedOrigins: cfg.RPC.AllowedOrigins,
	}, logger)
	if err != nil {
		return err
	}
	node.SetEmitter(events.NewFanout(server.Hub(), observability.Events()))

	if cfg.Bootstrap.InitializePool {
		key, err := crypto.LoadFromKeystore(cfg.OperatorKeystorePath, cfg.OperatorPassphrase)
		if err != nil {
			return fmt.Errorf("load operator key: %w", err)
		}
		if err := bootstrapPool(ctx, node, key, cfg.Bootstrap, logger); err != nil {
			return err
		}
	}

	addrs := node.Addresses()
	logger.Info("staking node ready",
		slog.Uint64("chain_id", node.ChainID()),
		slog.String("token", node.Token()),
		slog.String("pool", crypto.AddressFromRaw(addrs.Pool).String()),
		slog.String("vault", crypto.AddressFromRaw(addrs.Vault).String()),
		slog.String("rpc", cfg.RPCAddress))

	listener, err := net.Listen("tcp", cfg.RPCAddress)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.RPCAddress, err)
	}
	if err := server.Serve(ctx, listener); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("staking node stopped")
	return nil
}
