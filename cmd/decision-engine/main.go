// Command decision-engine runs the autonomous trading agent's per-symbol
// decision loop of spec.md §4.7: one Decision Engine instance per
// configured trading.symbols entry, each pulling fused market context,
// choosing between the INoT Orchestrator and a deterministic rule tree,
// and submitting orders through the Execution Bridge in paper-trading mode.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/inot-trading/core/internal/bridge"
	"github.com/inot-trading/core/internal/config"
	"github.com/inot-trading/core/internal/engine"
	"github.com/inot-trading/core/internal/fusion"
	"github.com/inot-trading/core/internal/indicators"
	"github.com/inot-trading/core/internal/inot"
	"github.com/inot-trading/core/internal/memory"
	"github.com/inot-trading/core/internal/resilience"
	"github.com/inot-trading/core/internal/symbol"
)

func main() {
	configPath := flag.String("config", "", "path to config file (defaults to ./configs/config.yaml)")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if vaultCfg := config.GetVaultConfigFromEnv(); vaultCfg.Enabled {
		if err := config.LoadSecretsFromVault(ctx, cfg, vaultCfg); err != nil {
			log.Fatal().Err(err).Msg("failed to load secrets from vault")
		}
	}
	apiKey := firstNonEmpty(os.Getenv("ANTHROPIC_API_KEY"), os.Getenv("OPENAI_API_KEY"), os.Getenv("GEMINI_API_KEY"))

	pool, err := pgxpool.New(ctx, cfg.Database.GetDSN())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database pool")
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}

	registry := resilience.NewBreakerRegistry(prometheus.DefaultRegisterer)

	store := memory.NewStore(pool, registry.Register(cfg.Resilience.BreakerConfig("database")))
	if err := store.HealthCheck(ctx); err != nil {
		log.Fatal().Err(err).Msg("memory store health check failed")
	}

	calibrator := memory.NewCalibrator()
	if err := calibrator.Refit(ctx, store); err != nil {
		log.Warn().Err(err).Msg("calibrator refit skipped, too few labeled outcomes yet")
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.GetRedisAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	infos := make([]symbol.Info, 0, len(cfg.Trading.Symbols))
	for _, sym := range cfg.Trading.Symbols {
		infos = append(infos, defaultSymbolInfo(sym))
	}
	provider := symbol.NewStaticProvider(infos...)
	normalizer := symbol.NewNormalizer(provider, redisClient, 15*time.Minute)

	adapter := bridge.NewMockAdapter(infos...)
	if err := adapter.Connect(ctx); err != nil {
		log.Fatal().Err(err).Msg("paper-trading adapter connect failed")
	}
	execBridge := bridge.NewBridge(adapter, cfg.BridgeConfig(), registry)

	orchestratorEnabled := apiKey != "" && cfg.LLM.Endpoint != ""
	var orchestrator *inot.Orchestrator
	if orchestratorEnabled {
		orchestrator = inot.NewOrchestrator(cfg.INoT.OrchestratorConfig(cfg.LLM, apiKey), calibrator)
	} else {
		log.Warn().Msg("no LLM API key configured, running on rule-based fallback only")
	}

	tools := indicators.NewService()

	group, groupCtx := errgroup.WithContext(ctx)
	fusionEngines := make([]*fusion.Engine, 0, len(cfg.Trading.Symbols))

	group.Go(func() error {
		refitCalibratorPeriodically(groupCtx, calibrator, store, time.Duration(cfg.Memory.CalibrationRefitHours)*time.Hour)
		return nil
	})

	for _, sym := range cfg.Trading.Symbols {
		fe := fusion.NewEngine(cfg.Fusion.FusionEngineConfig())
		fe.AddStream(fusion.NewNewsStream(sym+"-news", noopNewsFetcher{}, 0, 0, cfg.Fusion.StreamQueueCap))
		fe.AddStream(fusion.NewEconomicCalendarStream(sym+"-econ", noopEconFetcher{}, 0, 0, 0, cfg.Fusion.StreamQueueCap))
		if cfg.Fusion.PriceFeedURL != "" {
			fe.AddStream(fusion.NewPriceStream(sym, cfg.Fusion.PriceFeedURL+"?symbol="+sym, cfg.Fusion.StreamQueueCap))
		} else {
			log.Warn().Str("symbol", sym).Msg("no price feed configured, engine runs on stale history only")
		}
		if err := fe.Start(groupCtx); err != nil {
			log.Fatal().Err(err).Str("symbol", sym).Msg("fusion engine start failed")
		}
		fusionEngines = append(fusionEngines, fe)

		eng := engine.New(cfg.EngineConfig(sym, orchestratorEnabled), fe, tools, normalizer, store, calibrator, orchestrator, execBridge, budgetCheckerOf(orchestrator))

		group.Go(func() error { return eng.Run(groupCtx) })
		group.Go(func() error { return eng.MonitorOutcomes(groupCtx) })
		group.Go(func() error { quotePump(groupCtx, sym, fe, eng, adapter, 5*time.Second); return nil })

		log.Info().Str("symbol", sym).Bool("orchestrator", orchestratorEnabled).Msg("decision engine started")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	case <-groupCtx.Done():
		log.Error().Msg("a decision engine loop exited unexpectedly")
	}

	cancel()
	waitErr := group.Wait()
	for _, fe := range fusionEngines {
		fe.Stop()
	}
	if waitErr != nil && !errors.Is(waitErr, context.Canceled) {
		log.Error().Err(waitErr).Msg("error during shutdown")
		os.Exit(1)
	}
	log.Info().Msg("decision engine shutdown complete")
}

// budgetCheckerOf returns nil, not a typed-nil *inot.BudgetGuard,
// when orch is nil, so engine.Engine's `e.budget != nil` check behaves
// correctly (a typed-nil interface value is non-nil to that check).
func budgetCheckerOf(orch *inot.Orchestrator) interface{ Exhausted() bool } {
	if orch == nil {
		return nil
	}
	return orch.Budget()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
