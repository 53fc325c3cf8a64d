package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/pvzzle/stxwatch/internal/bus"
	"github.com/pvzzle/stxwatch/internal/logging"
	"github.com/pvzzle/stxwatch/internal/market"
	"github.com/pvzzle/stxwatch/internal/stacks"
	"github.com/pvzzle/stxwatch/internal/storage/pg"
	"github.com/pvzzle/stxwatch/internal/subs"
	"github.com/pvzzle/stxwatch/internal/tg"
	"github.com/pvzzle/stxwatch/internal/tracker"
	"github.com/pvzzle/stxwatch/internal/wallet"
)

// Core holds the clients every entry point shares.
type Core struct {
	Config    Config
	Contracts Contracts
	Log       *zap.Logger

	Reader      *stacks.ReadOnlyClient
	Broadcaster *stacks.Broadcaster
	Status      *stacks.StatusClient
	Tracker     *tracker.Tracker

	Gateway  *market.Gateway
	Listings *market.Aggregator
	Balances *market.BalanceReader

	Actions *wallet.Actions
}

func NewCore(cfg Config, logger *zap.Logger) (*Core, error) {
	logger = logging.OrNop(logger)

	contracts, err := cfg.Contracts()
	if err != nil {
		return nil, err
	}

	hc := stacks.DefaultHTTPClient()

	reader := stacks.NewReadOnlyClient(stacks.ReadOnlyConfig{
		Endpoints:  cfg.Endpoints,
		MaxRetries: cfg.ReadMaxRetries,
		Timeout:    cfg.ReadTimeout,
		BaseDelay:  cfg.ReadBaseDelay,
		RPS:        cfg.ReadRPS,
	}, hc, logger)

	status := stacks.NewStatusClient(cfg.StatusURL, hc, logger)

	gw, err := market.NewGateway(market.GatewayConfig{
		BaseURL:   cfg.IPFSGateway,
		CacheSize: cfg.MetadataCacheSize,
	}, hc, logger)
	if err != nil {
		return nil, err
	}

	mc := market.Contracts{
		NFT:         contracts.NFT,
		Marketplace: contracts.Marketplace,
		Staking:     contracts.Staking,
		Token:       contracts.Token,
	}

	wc := wallet.Contracts{
		NFT:         contracts.NFT,
		Marketplace: contracts.Marketplace,
		Staking:     contracts.Staking,
		AssetName:   contracts.AssetName,
	}

	return &Core{
		Config:      cfg,
		Contracts:   contracts,
		Log:         logger,
		Reader:      reader,
		Broadcaster: stacks.NewBroadcaster(cfg.BroadcastURL, hc, logger),
		Status:      status,
		Tracker: tracker.New(status, tracker.Config{
			PollInterval: cfg.PollInterval,
			MaxAttempts:  cfg.PollMaxAttempts,
		}, logger),
		Gateway: gw,
		Listings: market.NewAggregator(reader, gw, mc, market.AggregatorConfig{
			Concurrency: cfg.ListingConcurrency,
			MaxIndex:    cfg.MaxListingIndex,
			Sender:      cfg.ReadSender,
		}, logger),
		Balances: market.NewBalanceReader(reader, mc, cfg.ReadSender, logger),
		Actions: wallet.NewActions(
			wallet.NewBridgeSigner(cfg.WalletBridgeURL, nil, logger),
			wc, cfg.Network, logger,
		),
	}, nil
}

// Run starts the bot, the tracking watcher and the metrics endpoint, and
// blocks until ctx is done.
func Run(ctx context.Context, cfg Config, logger *zap.Logger) error {
	if cfg.TelegramToken == "" || cfg.PostgresURL == "" {
		return errors.New("serve: TELEGRAM_TOKEN and POSTGRES_URL are required")
	}

	core, err := NewCore(cfg, logger)
	if err != nil {
		return err
	}
	log := core.Log

	pgPool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		return fmt.Errorf("pgxpool new: %w", err)
	}
	defer pgPool.Close()

	repo := pg.New(pgPool)
	if err := repo.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}

	subStore := subs.NewStore()

	notifyCh := make(chan bus.Notification, cfg.NotifyBuffer)

	b, err := tgbot.New(cfg.TelegramToken,
		tgbot.WithWorkers(4),
		tgbot.WithNotAsyncHandlers(),
	)
	if err != nil {
		return fmt.Errorf("telegram bot init: %w", err)
	}

	watcher := tracker.NewWatcher(core.Tracker, subStore, notifyCh, repo, tracker.WatcherConfig{
		Workers:     cfg.WatcherWorkers,
		TasksBuffer: cfg.TasksBuffer,
		Network:     cfg.Network,
	}, log)
	tgSvc := tg.NewService(b, cfg.Network, watcher, core.Listings, core.Balances, subStore, notifyCh, repo, log)

	go func() {
		if err := watcher.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("watcher stopped", zap.Error(err))
		}
	}()

	go tgSvc.StartNotifyLoop(ctx)

	if cfg.MetricsAddr != "" {
		go serveMetrics(ctx, cfg.MetricsAddr, log)
	}

	log.Info("started",
		zap.String("network", cfg.Network),
		zap.Strings("endpoints", cfg.Endpoints),
		zap.Int("workers", cfg.WatcherWorkers),
	)
	b.Start(ctx)

	return nil
}

func serveMetrics(ctx context.Context, addr string, log *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("metrics listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("metrics server", zap.Error(err))
	}
}
