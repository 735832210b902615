package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/lugondev/anchorlite/internal/chain"
	"github.com/lugondev/anchorlite/internal/common"
	"github.com/lugondev/anchorlite/internal/config"
	anchorerrors "github.com/lugondev/anchorlite/internal/errors"
	"github.com/lugondev/anchorlite/internal/flow"
	"github.com/lugondev/anchorlite/internal/idl"
	"github.com/lugondev/anchorlite/internal/metrics"
	"github.com/lugondev/anchorlite/internal/sender"
	solanaclient "github.com/lugondev/anchorlite/internal/solana"
	"github.com/lugondev/anchorlite/internal/storage"
	redisstore "github.com/lugondev/anchorlite/internal/storage/redis"
	"github.com/lugondev/anchorlite/internal/transaction"
	"github.com/lugondev/anchorlite/internal/wallet"
)

// app carries the process-wide services every command shares.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	logCloser io.Closer
	storage   *storage.ConnectionManager
	repo      storage.Repository
	registry  *chain.Registry
	metrics   *metrics.LogMetrics
	closers   []func() error
}

func newApp(ctx context.Context) (*app, error) {
	logger, closer := common.NewLogger(cfg.Log)

	a := &app{
		cfg:       cfg,
		logger:    logger,
		logCloser: closer,
		metrics:   metrics.NewLogMetrics(logger),
	}

	cm, err := storage.NewConnectionManager(&cfg.Storage)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	a.storage = cm

	repo, err := cm.Connect(ctx)
	if err != nil {
		a.Close(ctx)
		return nil, anchorerrors.Storage("connect", err)
	}
	a.repo = repo

	descs, err := chain.FromConfig(cfg)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	registry, err := chain.NewRegistry(descs, cfg.Chains.Default, repo.Selections())
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	a.registry = registry.WithLogger(logger)

	if err := a.registry.Restore(ctx); err != nil {
		logger.Warn("failed to restore chain selection", "error", err)
	}
	if err := a.metrics.Initialize(ctx); err != nil {
		logger.Warn("failed to initialize metrics", "error", err)
	}
	return a, nil
}

// Close flushes metrics and releases storage and log outputs.
func (a *app) Close(ctx context.Context) {
	if a.metrics != nil && len(a.metrics.Snapshot().Counters) > 0 {
		if err := a.metrics.Flush(ctx); err != nil {
			a.logger.Warn("failed to flush metrics", "error", err)
		}
		_ = a.metrics.Shutdown(ctx)
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
	if a.storage != nil {
		if err := a.storage.Close(); err != nil {
			a.logger.Warn("failed to close storage", "error", err)
		}
	}
	if a.logCloser != nil {
		_ = a.logCloser.Close()
	}
}

// withApp runs fn with a fully wired app and closes it afterwards.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close(context.WithoutCancel(ctx))
	return fn(ctx, a)
}

// solana returns the selected Solana chain and a client for its endpoint.
func (a *app) solana() (chain.Context, *solanaclient.Client, error) {
	cc, err := a.registry.SolanaContext()
	if err != nil {
		return chain.Context{}, nil, err
	}
	client := solanaclient.NewClient(cc.Endpoint).WithLogger(a.logger)
	a.closers = append(a.closers, client.Close)
	return cc, client, nil
}

// idlPath prefers an explicit path, then the selected chain's IDL, then the
// configured default.
func (a *app) idlPath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if cc, err := a.registry.SolanaContext(); err == nil && cc.IDLPath != "" {
		return cc.IDLPath
	}
	return a.cfg.Solana.IDLPath
}

func (a *app) loadIDL(ctx context.Context, explicit string) (*idl.Document, error) {
	return idl.NewLoader().WithLogger(a.logger).Load(ctx, a.idlPath(explicit))
}

func (a *app) connectWallet(client *solanaclient.Client) (*wallet.Connected, error) {
	provider, err := wallet.FromConfig(a.cfg.Wallet.Keypair, a.cfg.Wallet.Mode, client)
	if err != nil {
		return nil, err
	}
	return wallet.Connect(provider)
}

// newFlow wires a transaction flow for the selected chain, the configured
// wallet and the chain's IDL.
func (a *app) newFlow(ctx context.Context, opts flow.Options) (*flow.Flow, error) {
	cc, client, err := a.solana()
	if err != nil {
		return nil, err
	}

	doc, err := a.loadIDL(ctx, "")
	if err != nil {
		return nil, err
	}

	w, err := a.connectWallet(client)
	if err != nil {
		return nil, err
	}

	commitment := solanaclient.ParseCommitment(a.cfg.Flow.ConfirmCommitment)
	opts.Assembler = transaction.NewAssembler(client).
		WithLogger(a.logger).
		WithSettleDelay(a.cfg.Flow.SettleDelay)
	opts.Sender = sender.New(client).
		WithLogger(a.logger).
		WithCommitment(commitment).
		WithPollInterval(a.cfg.Flow.ConfirmPollInterval)
	opts.Attempts = a.repo.Attempts()
	opts.Metrics = a.metrics
	opts.Logger = a.logger
	opts.Gate = a.gate(w.PublicKey().String())

	return flow.New(cc, doc, client, w, opts)
}

// gate returns the configured in-flight gate. The Redis gate is keyed per
// wallet so that separate processes signing for one wallet exclude each other.
func (a *app) gate(walletKey string) flow.Gate {
	if a.cfg.Flow.Gate != "redis" {
		return flow.NewLocalGate()
	}

	var rdb *redis.Client
	if rr, ok := a.repo.(*redisstore.RedisRepository); ok {
		rdb = rr.Client()
	} else {
		rdb = redisstore.NewClient(&a.cfg.Storage.Redis)
		a.closers = append(a.closers, rdb.Close)
	}

	key := a.cfg.Storage.Redis.KeyPrefix + "gate:" + walletKey
	return flow.NewRedisGate(rdb, key, a.cfg.Flow.GateTTL)
}

// describeError renders err with its anchorlite error code, if any.
func describeError(err error) string {
	code := anchorerrors.CodeOf(err)
	if code == "" || strings.HasPrefix(err.Error(), code) {
		return err.Error()
	}
	return fmt.Sprintf("[%s] %v", code, err)
}
