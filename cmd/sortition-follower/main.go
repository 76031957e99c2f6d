package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/btcsuite/btcd/rpcclient"
	"github.com/jessevdk/go-flags"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/witwitchayakarn/stacks-blockchain-sub004/internal/archive"
	"github.com/witwitchayakarn/stacks-blockchain-sub004/internal/burn"
	"github.com/witwitchayakarn/stacks-blockchain-sub004/internal/burnchain"
	"github.com/witwitchayakarn/stacks-blockchain-sub004/internal/burnchain/bitcoin"
	"github.com/witwitchayakarn/stacks-blockchain-sub004/internal/metrics"
	"github.com/witwitchayakarn/stacks-blockchain-sub004/internal/repository/clickhouse"
	"github.com/witwitchayakarn/stacks-blockchain-sub004/internal/sortdb"
	"github.com/witwitchayakarn/stacks-blockchain-sub004/internal/sortition"
)

type config struct {
	Network          string        `long:"network" env:"SORTITION_NETWORK" description:"burnchain network name" required:"true"`
	DBPath           string        `long:"db-path" env:"SORTITION_DB_PATH" description:"path to the sortition database" default:"sortition-db"`
	FirstBlockHeight uint64        `long:"first-block-height" env:"SORTITION_FIRST_BLOCK_HEIGHT" description:"burnchain height of the genesis snapshot"`
	FirstBlockHash   string        `long:"first-block-hash" env:"SORTITION_FIRST_BLOCK_HASH" description:"burnchain header hash of the genesis snapshot" required:"true"`
	RPCURL           string        `long:"rpc-url" env:"SORTITION_RPC_URL" description:"Bitcoin RPC URL" default:"http://127.0.0.1:8332"`
	RPCUser          string        `long:"rpc-user" env:"SORTITION_RPC_USER" description:"Bitcoin RPC username"`
	RPCPassword      string        `long:"rpc-password" env:"SORTITION_RPC_PASSWORD" description:"Bitcoin RPC password"`
	RPCRateLimit     int           `long:"rpc-rate-limit" env:"SORTITION_RPC_RATE_LIMIT" description:"max node RPC calls per second" default:"16"`
	HTTPTimeout      time.Duration `long:"http-timeout" env:"SORTITION_HTTP_TIMEOUT" description:"HTTP timeout for RPC requests" default:"30s"`
	MetricsAddr      string        `long:"metrics-addr" env:"SORTITION_METRICS_ADDR" description:"address for metrics server" default:":2112"`
	ClickhouseDSN    string        `long:"clickhouse-dsn" env:"SORTITION_CLICKHOUSE_DSN" description:"ClickHouse DSN for the snapshot archive; empty disables archiving"`
}

func main() {
	cfg := config{}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := zap.NewDevelopment()
	if err != nil {
		panic("can't initialize zap logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync()
	}()

	if _, err := flags.ParseArgs(&cfg, os.Args); err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			return
		}
		logger.Fatal("failed to parse flags", zap.Error(err))
	}

	if err := run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("sortition follower failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg config, logger *zap.Logger) error {
	startMetricsServer(ctx, cfg.MetricsAddr, logger)

	params, err := burnchain.ParamsForNetwork(cfg.Network)
	if err != nil {
		return err
	}
	params.FirstBlockHeight = cfg.FirstBlockHeight
	params.FirstBlockHash, err = burn.NewBurnchainHeaderHashFromHex(cfg.FirstBlockHash)
	if err != nil {
		return fmt.Errorf("parse first block hash: %w", err)
	}

	db, err := sortdb.Connect(cfg.DBPath, params, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("close sortition db", zap.Error(err))
		}
	}()

	codec, err := bitcoin.NewCodec(cfg.Network)
	if err != nil {
		return err
	}

	rpcClient, err := newRPCClient(cfg.RPCURL, cfg.RPCUser, cfg.RPCPassword, cfg.HTTPTimeout)
	if err != nil {
		return fmt.Errorf("init bitcoin rpc client: %w", err)
	}
	defer func() {
		rpcClient.Shutdown()
		rpcClient.WaitForShutdown()
	}()

	rpc := bitcoin.NewRPCClient(rpcClient, metrics.NewRPCClient(cfg.Network), cfg.RPCRateLimit)
	parser := bitcoin.NewParser(codec, params.Magic, logger)
	source := bitcoin.NewSource(rpc, parser)

	processor, err := sortition.NewProcessor(db, params, codec, metrics.NewProcessor(cfg.Network), logger)
	if err != nil {
		return err
	}

	var sink sortition.SnapshotArchiver
	if cfg.ClickhouseDSN != "" {
		repo, err := clickhouse.NewRepository(cfg.ClickhouseDSN, cfg.Network, metrics.NewClickhouseRepository(cfg.Network))
		if err != nil {
			return fmt.Errorf("init snapshot archive: %w", err)
		}
		arc := archive.New(repo, logger)
		arc.Start(ctx)
		defer arc.Stop()
		sink = arc
	}

	follower, err := sortition.NewFollower(source, processor, sink, metrics.NewFollower(cfg.Network), params, logger)
	if err != nil {
		return err
	}
	return follower.Run(ctx)
}

func startMetricsServer(ctx context.Context, addr string, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("starting metrics server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown metrics server", zap.Error(err))
		}
	}()
}

func newRPCClient(rawURL, user, password string, _ time.Duration) (*rpcclient.Client, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse rpc url: %w", err)
	}
	if parsed.Scheme != "http" {
		return nil, fmt.Errorf("rpc url scheme %q not supported, use http", parsed.Scheme)
	}
	if parsed.Host == "" {
		return nil, errors.New("rpc url missing host")
	}

	cfg := &rpcclient.ConnConfig{
		Host:         parsed.Host,
		User:         user,
		Pass:         password,
		HTTPPostMode: true,
		DisableTLS:   true,
	}

	return rpcclient.New(cfg, nil)
}
