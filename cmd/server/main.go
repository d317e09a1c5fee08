package main

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/Zwemvest/paradoxplazabot-sub000/internal/appeal"
	"github.com/Zwemvest/paradoxplazabot-sub000/internal/config"
	"github.com/Zwemvest/paradoxplazabot-sub000/internal/enforcement"
	"github.com/Zwemvest/paradoxplazabot-sub000/internal/handler"
	"github.com/Zwemvest/paradoxplazabot-sub000/internal/metrics"
	"github.com/Zwemvest/paradoxplazabot-sub000/internal/notify"
	"github.com/Zwemvest/paradoxplazabot-sub000/internal/platform"
	"github.com/Zwemvest/paradoxplazabot-sub000/internal/repository"
	"github.com/Zwemvest/paradoxplazabot-sub000/internal/scheduler"
	"github.com/Zwemvest/paradoxplazabot-sub000/internal/server"
	"github.com/Zwemvest/paradoxplazabot-sub000/internal/service"
	"github.com/Zwemvest/paradoxplazabot-sub000/internal/store"
	"github.com/Zwemvest/paradoxplazabot-sub000/internal/telegram_bot"
)

// checkFunc lets the bot reach the engine, which is built after the bot's sink is registered.
type checkFunc func(ctx context.Context, itemID string) error

func (f checkFunc) CheckCompliance(ctx context.Context, itemID string) error { return f(ctx, itemID) }

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfgPath := os.Getenv("PPBOT_CONFIG")
	if cfgPath == "" {
		cfgPath = "configs/config.yml"
	}
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		panic(err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		panic(err)
	}
	defer func() {
		_ = logger.Sync() // Flushes buffer, if any
	}()

	// Context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	stateStore, closeStore, err := openStore(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to open state store", zap.Error(err))
	}
	defer closeStore()

	records := repository.NewRecordRepository(stateStore, repository.TTLs{
		Processed: cfg.State.TTL.Processed,
		Warned:    cfg.State.TTL.Warned,
		Removed:   cfg.State.TTL.Removed,
		Approved:  cfg.State.TTL.Approved,
	}, logger)

	client := platform.NewHTTPClient(platform.HTTPConfig{
		BaseURL:     cfg.Platform.BaseURL,
		Token:       cfg.Platform.Token,
		Timeout:     cfg.Platform.Timeout,
		MaxFailures: cfg.Platform.Breaker.MaxFailures,
		OpenTimeout: cfg.Platform.Breaker.OpenTimeout,
	}, logger)

	m := metrics.New(prometheus.DefaultRegisterer)

	var engine *enforcement.Engine

	// Notification sinks
	sinks := []notify.Sink{notify.NewLogSink(logger)}
	if cfg.Notifications.Webhook.URL != "" {
		sinks = append(sinks, notify.NewWebhookSink(cfg.Notifications.Webhook.URL, cfg.Notifications.Webhook.Format))
	}
	if len(cfg.Notifications.Kafka.Brokers) > 0 && cfg.Notifications.Kafka.Topic != "" {
		kafkaSink := notify.NewKafkaSink(cfg.Notifications.Kafka.Brokers, cfg.Notifications.Kafka.Topic)
		defer closeQuietly(kafkaSink, "kafka sink", logger)
		sinks = append(sinks, kafkaSink)
	}
	bot, err := telegram_bot.NewBot(cfg.Telegram, records, checkFunc(func(ctx context.Context, id string) error {
		return engine.CheckCompliance(ctx, id)
	}), logger)
	if err != nil {
		logger.Warn("Failed to initialize Telegram bot, continuing without it", zap.Error(err))
		bot = nil
	}
	if bot != nil {
		sinks = append(sinks, bot)
	}

	dispatcher := notify.NewDispatcher(sinks, cfg.Notifications.Workers, cfg.Notifications.BufferSize, logger)
	dispatcher.Start(ctx)

	timers := scheduler.NewTimerScheduler(stateStore, func(ctx context.Context, job scheduler.Job) error {
		return engine.HandleTimer(ctx, job)
	}, cfg.Sweep.TimerConcurrency, logger)

	engine = enforcement.NewEngine(records, client, dispatcher, timers, enforcement.Options{
		Rules:       cfg.Rules,
		Appeals:     cfg.Appeals,
		BotUsername: cfg.Platform.BotUsername,
		SweepLimit:  cfg.Sweep.Limit,
		Metrics:     m,
	}, logger)

	appeals := appeal.NewHandler(client, records, engine, cfg.Rules, cfg.Appeals, cfg.Platform.BotUsername, m, logger)

	if err := timers.Start(ctx); err != nil {
		logger.Error("Failed to restore pending timers, relying on the sweep", zap.Error(err))
	}

	periodic := scheduler.NewPeriodic(logger)
	if err := periodic.Add("sweep", cfg.Sweep.Schedule, func(ctx context.Context) {
		if _, err := engine.Sweep(ctx); err != nil {
			logger.Warn("Sweep failed", zap.Error(err))
		}
	}); err != nil {
		logger.Fatal("Failed to schedule sweep", zap.Error(err))
	}
	if purger, ok := stateStore.(store.Purger); ok {
		if err := periodic.Add("purge", cfg.Sweep.PurgeSchedule, func(ctx context.Context) {
			n, err := purger.PurgeExpired(ctx)
			if err != nil {
				logger.Warn("Failed to purge expired state", zap.Error(err))
				return
			}
			logger.Debug("Purged expired state", zap.Int64("entries", n))
		}); err != nil {
			logger.Fatal("Failed to schedule purge", zap.Error(err))
		}
	}
	periodic.Start(ctx)

	// Run Telegram bot in a goroutine (if enabled)
	if bot != nil {
		go func() {
			if err := bot.Start(ctx); err != nil {
				logger.Error("Telegram bot failed", zap.Error(err))
			}
		}()
	}

	auth := service.NewAuthService(cfg.Admin, logger)
	srv := server.NewServer(cfg.Server.Port, server.Deps{
		Events:       handler.NewEventHandler(engine, logger),
		Appeals:      handler.NewAppealHandler(appeals, logger),
		Records:      handler.NewRecordHandler(records, engine, logger),
		Auth:         handler.NewAuthHandler(auth, logger),
		AuthService:  auth,
		WebhookToken: cfg.Server.WebhookToken,
	}, logger)

	if err := srv.Run(ctx); err != nil {
		logger.Error("Server failed", zap.Error(err))
		cancel()
	}

	periodic.Stop()
	timers.Stop()
	dispatcher.Close()
	logger.Info("Application stopped.")
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if cfg.Logging.Development {
		zcfg = zap.NewDevelopmentConfig()
	}
	level, err := zap.ParseAtomicLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	zcfg.Level = level
	return zcfg.Build()
}

// openStore builds the configured backend and returns a func releasing it.
func openStore(cfg *config.Config, logger *zap.Logger) (store.Store, func(), error) {
	switch cfg.State.Backend {
	case "redis":
		s, err := store.NewRedisStore(store.RedisConfig{
			Addr:      cfg.State.Redis.Addr,
			Password:  cfg.State.Redis.Password,
			DB:        cfg.State.Redis.DB,
			PoolSize:  cfg.State.Redis.PoolSize,
			Namespace: cfg.State.Redis.Namespace,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { closeQuietly(s, "redis", logger) }, nil
	case "postgres":
		db, err := store.NewPostgresDB(cfg.State.Database.URL, logger)
		if err != nil {
			return nil, nil, err
		}
		if err := store.MigrateDB(db, cfg.State.Database.MigrationsPath, logger); err != nil {
			db.Close()
			return nil, nil, err
		}
		s := store.NewSQLStore(db, logger)
		return s, func() { closeQuietly(s, "postgres", logger) }, nil
	case "sqlite":
		db, err := store.NewSQLiteDB(cfg.State.Database.URL, logger)
		if err != nil {
			return nil, nil, err
		}
		s := store.NewSQLStore(db, logger)
		return s, func() { closeQuietly(s, "sqlite", logger) }, nil
	case "memory":
		logger.Warn("Using in-memory state store, records are lost on restart")
		return store.NewMemoryStore(nil), func() {}, nil
	}
	return nil, nil, errors.New("unknown state backend " + cfg.State.Backend)
}

func closeQuietly(c io.Closer, name string, logger *zap.Logger) {
	if err := c.Close(); err != nil {
		logger.Warn("Failed to close", zap.String("component", name), zap.Error(err))
	}
}
