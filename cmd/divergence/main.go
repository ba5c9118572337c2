package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"poly-divergence/internal/balance"
	"poly-divergence/internal/clob"
	"poly-divergence/internal/config"
	"poly-divergence/internal/divergence"
	"poly-divergence/internal/dotenv"
	"poly-divergence/internal/ethutil"
	"poly-divergence/internal/executor"
	"poly-divergence/internal/feed"
	"poly-divergence/internal/gamma"
	"poly-divergence/internal/jsonl"
	"poly-divergence/internal/ledger"
	"poly-divergence/internal/logging"
	"poly-divergence/internal/metrics"
	"poly-divergence/internal/polygonutil"
	"poly-divergence/internal/pricestate"
	"poly-divergence/internal/trader"
)

func main() {
	flags := config.BindFlags(flag.CommandLine)
	flag.Parse()

	dotenvErr := dotenv.Load(dotenv.SplitList(flags.EnvFiles)...)

	cfg, err := flags.Resolve(os.Getenv)
	if err != nil {
		boot := logging.New("info", false)
		boot.Fatal().Err(err).Msg("invalid configuration")
	}

	log := logging.New(cfg.App.LogLevel, cfg.App.LogPretty)
	if dotenvErr != nil {
		log.Warn().Err(dotenvErr).Msg("dotenv")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("trader exited")
	}
}

func run(ctx context.Context, cfg config.Config, log zerolog.Logger) error {
	pk, err := ethutil.ParsePrivateKey(cfg.Wallet.PrivateKey)
	if err != nil {
		return err
	}
	funder, err := ethutil.ParseOptionalAddress("funder", cfg.Wallet.Funder)
	if err != nil {
		return err
	}

	clobClient, err := clob.NewClient(cfg.Venue.ClobURL, clob.PolygonChainID, pk, funder, cfg.Wallet.SignatureType,
		clob.WithRateLimit(cfg.Venue.RateLimit, cfg.Venue.RateBurst),
		clob.WithServerTime(cfg.Venue.UseServerTime),
	)
	if err != nil {
		return err
	}
	if cfg.Wallet.APIKey != "" && cfg.Wallet.APISecret != "" && cfg.Wallet.APIPassphrase != "" {
		clobClient.SetApiCreds(clob.ApiKeyCreds{Key: cfg.Wallet.APIKey, Secret: cfg.Wallet.APISecret, Passphrase: cfg.Wallet.APIPassphrase})
	} else if cfg.Trading.EnableTrading {
		creds, err := clobClient.CreateOrDeriveApiKey(ctx, cfg.Wallet.APINonce)
		if err != nil {
			return err
		}
		clobClient.SetApiCreds(creds)
		log.Info().Str("key", safePrefix(creds.Key, 8)).Msg("CLOB API creds ready")
	}

	upToken, downToken := cfg.Venue.UpToken, cfg.Venue.DownToken
	if upToken == "" {
		gc, err := gamma.NewClient(cfg.Venue.GammaURL)
		if err != nil {
			return err
		}
		pair, err := gc.ResolveActivePair(ctx)
		if err != nil {
			return err
		}
		upToken, downToken = pair.UpToken, pair.DownToken
		log.Info().
			Str("slug", pair.Slug).
			Str("question", pair.Question).
			Bool("from_slug", pair.FromSlug).
			Msg("market resolved")
	}

	rpcURL := cfg.Venue.RPCURL
	if rpcURL == "" {
		rpcURL = polygonutil.DefaultRPCURL
	}
	if rpcURL, err = polygonutil.ValidateRPCURL(rpcURL); err != nil {
		return err
	}
	reader, err := polygonutil.Dial(ctx, rpcURL)
	if err != nil {
		return err
	}
	defer reader.Close()

	owner, ownerSrc, err := ethutil.ResolveOwner("", cfg.Wallet.Funder, cfg.Wallet.PrivateKey)
	if err != nil {
		return err
	}
	balances := balance.NewService(reader, owner)
	log.Info().Str("owner", owner.Hex()).Str("source", ownerSrc).Str("signer", clobClient.SignerAddress().Hex()).Msg("wallet")

	srv := metrics.Serve(cfg.App.MetricsAddr, func(err error) {
		log.Error().Err(err).Str("addr", cfg.App.MetricsAddr).Msg("metrics server")
	})
	if srv != nil {
		log.Info().Str("addr", cfg.App.MetricsAddr).Msg("metrics listening")
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	out, err := jsonl.Open(cfg.App.AuditLog)
	if err != nil {
		return err
	}
	audit := ledger.NewAudit(out, log)
	defer func() {
		if err := audit.Close(); err != nil {
			log.Warn().Err(err).Msg("audit log close")
		}
	}()
	if cfg.App.AuditLog != "" {
		log.Info().Str("path", cfg.App.AuditLog).Msg("audit log (JSONL)")
	}

	var venue executor.Venue = clobClient
	if !cfg.Trading.EnableTrading {
		venue = executor.NewPaperVenue(clobClient)
		log.Warn().Msg("paper trading: orders are simulated, set ENABLE_TRADING=true to trade")
	}

	store := pricestate.New(upToken, downToken)
	book := ledger.New(audit)
	clock := &divergence.Clock{}
	exec := executor.New(venue, clock, book, cfg.ExecutorConfig(), log)
	gate := &divergence.Gate{
		Clock:      clock,
		Cooldown:   cfg.Trading.Cooldown,
		Balances:   balances,
		MinBalance: cfg.Trading.MinBalance,
	}

	proprietary := feed.NewProprietary(cfg.Feeds.ProprietaryURL, store, log,
		feed.WithReconnectDelay(cfg.Feeds.ReconnectDelay),
	)
	market, err := feed.NewVenue(cfg.Feeds.VenueURL, store, log,
		feed.WithReconnectDelay(cfg.Feeds.ReconnectDelay),
		feed.WithPingInterval(cfg.Feeds.VenuePing),
	)
	if err != nil {
		return err
	}

	runner := trader.New(trader.Config{
		Mode:             cfg.Mode(),
		Threshold:        cfg.Trading.Threshold,
		MinBalance:       cfg.Trading.MinBalance,
		MinGasStartup:    cfg.Trading.MinGasStartup,
		MinGasMonitor:    cfg.Trading.MinGasMonitor,
		DecisionInterval: cfg.Trading.DecisionInterval,
		WarmUp:           cfg.Trading.WarmUp,
		SnapshotEvery:    cfg.App.SnapshotEvery,
		BalanceEvery:     cfg.App.BalanceEvery,
	}, store, []trader.Feed{proprietary, market}, gate, exec, book, audit, log)

	return runner.Run(ctx)
}

func safePrefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
