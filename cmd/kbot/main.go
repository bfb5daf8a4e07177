package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"kbot/internal/analytics"
	"kbot/internal/auth"
	"kbot/internal/bot"
	"kbot/internal/chain"
	"kbot/internal/config"
	"kbot/internal/dispatch"
	"kbot/internal/history"
	"kbot/internal/llm"
	"kbot/internal/logger"
	"kbot/internal/metrics"
	"kbot/internal/prompts"
	"kbot/internal/scheduler"
	"kbot/internal/telegram"
)

const sweepSpec = "@hourly"

func main() {
	envFile := pflag.String("env-file", ".env", "dotenv file loaded before reading the environment")
	logLevel := pflag.String("log-level", "", "log level, overrides LOG_LEVEL")
	pflag.Parse()

	boot := logger.New(logger.Config{Level: *logLevel})
	if err := godotenv.Load(*envFile); err != nil {
		boot.Warn().Err(err).Str("file", *envFile).Msg("dotenv file not loaded")
	}

	cfg, err := config.New()
	if err != nil {
		boot.Fatal().Err(err).Msg("invalid configuration")
	}
	level := cfg.LogLevel
	if *logLevel != "" {
		level = *logLevel
	}
	log := logger.New(logger.Config{Level: level, Pretty: cfg.LogPretty})

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("kbot stopped")
	}
	log.Info().Msg("kbot stopped")
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	catalog, err := llm.CatalogFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("model catalog: %w", err)
	}
	client, err := llm.NewClient(cfg, logger.Component(log, "llm"))
	if err != nil {
		return fmt.Errorf("llm client: %w", err)
	}

	promptRegistry := prompts.Open(prompts.Options{
		Path:    cfg.PromptsFile(),
		Logger:  logger.Component(log, "prompts"),
		Metrics: m,
	})
	ledger := analytics.Open(analytics.Options{
		StatsFile:  cfg.StatsFile(),
		ReportsDir: cfg.ReportsDir(),
		Catalog:    catalog,
		Logger:     logger.Component(log, "ledger"),
		Metrics:    m,
	})
	sessions := history.NewManager(history.Options{
		Dir:        cfg.ConversationsDir(),
		MaxHistory: cfg.MaxHistory,
		Timeout:    cfg.IdleTimeout(),
		Logger:     logger.Component(log, "sessions"),
		Metrics:    m,
	})
	defer sessions.Flush()

	ownerID := strconv.FormatInt(cfg.OwnerID, 10)
	tg, err := telegram.New(cfg.TelegramBotToken, telegram.Options{
		OwnerID:       ownerID,
		OwnerUsername: cfg.OwnerUsername,
		CacheSize:     cfg.MessageCacheSize,
		Logger:        logger.Component(log, "telegram"),
	})
	if err != nil {
		return err
	}

	b := bot.New(bot.Options{
		Platform: tg,
		Gate:     auth.NewGate(ownerID, tg.BotID()),
		Resolver: chain.NewResolver(tg, chain.DefaultMaxDepth, logger.Component(log, "chain")),
		Dispatcher: dispatch.New(dispatch.Options{
			Client:      client,
			Catalog:     catalog,
			Prompts:     promptRegistry,
			MaxTokens:   cfg.MaxTokens,
			Temperature: &cfg.Temperature,
			Logger:      logger.Component(log, "dispatch"),
			Metrics:     m,
		}),
		Ledger:         ledger,
		Sessions:       sessions,
		Prompts:        promptRegistry,
		Sigil:          cfg.CommandPrefix,
		MessageLimit:   cfg.MessageLimit,
		SessionContext: cfg.SessionContext,
		Logger:         logger.Component(log, "bot"),
		Metrics:        m,
	})

	sched := scheduler.New(logger.Component(log, "scheduler"))
	if err := sched.Add(cfg.ReportCron, "daily-report", func(context.Context) error {
		ledger.Report(analytics.PeriodDay)
		return nil
	}); err != nil {
		return err
	}
	if err := sched.Add(sweepSpec, "session-sweep", func(context.Context) error {
		sessions.Sweep()
		return nil
	}); err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return tg.Run(gctx, b.Handle) })
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			log.Info().Str("addr", cfg.MetricsAddr).Msg("metrics server listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	log.Info().Str("provider", string(cfg.LLMProvider)).Str("prefix", cfg.CommandPrefix).
		Str("data_dir", cfg.DataDir).Msg("kbot started")
	return g.Wait()
}
