package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"

	"github.com/Checker-Finance/rfq-checker/internal/api"
	"github.com/Checker-Finance/rfq-checker/internal/jobs"
	"github.com/Checker-Finance/rfq-checker/internal/publisher"
	"github.com/Checker-Finance/rfq-checker/internal/rate"
	"github.com/Checker-Finance/rfq-checker/internal/rfq"
	internalsecrets "github.com/Checker-Finance/rfq-checker/internal/secrets"
	"github.com/Checker-Finance/rfq-checker/internal/store"
	"github.com/Checker-Finance/rfq-checker/pkg/config"
	"github.com/Checker-Finance/rfq-checker/pkg/logger"
	"github.com/Checker-Finance/rfq-checker/pkg/secrets"
	"github.com/Checker-Finance/rfq-checker/pkg/utils"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Load configuration ---
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}

	logger.Init(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	defer logger.Sync()
	logg := logger.S()
	logg.Infow("starting [rfq-checker]...",
		"mode", cfg.RunMode,
		"base_url", cfg.RFQBaseURL,
		"profiles", len(cfg.Profiles))

	// --- Credentials ---
	stopCleaner := make(chan struct{})
	defer close(stopCleaner)
	resolver := newResolver(ctx, cfg, stopCleaner)

	// --- Rate limiter (shared by every profile, keyed by client id) ---
	rateMgr := rate.NewManager(rate.Config{
		RequestsPerSecond: cfg.RFQRateRPS,
		Burst:             cfg.RFQRateBurst,
	})

	defaults := rfq.ClientConfig{BaseURL: cfg.RFQBaseURL, TokenURL: cfg.RFQTokenURL}
	newClient := func(creds internalsecrets.Credentials) jobs.Client {
		return rfq.NewClient(logger.L(), rateMgr, creds.ClientConfig(defaults), cfg.RFQRequestTimeout)
	}

	// --- Store ---
	st := newStore(cfg)
	defer func() { _ = st.Close() }()

	// --- Event sinks ---
	pub := newPublisher(cfg)
	defer func() { _ = pub.Close() }()

	runner := jobs.NewWorkflowRunner(
		logger.L(),
		cfg.Profiles,
		resolver,
		newClient,
		st,
		pub,
		cfg.RunInterval,
		cfg.RunTimeout,
	)

	if cfg.RunMode == "once" {
		failed := 0
		for _, res := range runner.RunOnce(ctx) {
			if !res.Succeeded() {
				failed++
			}
		}
		logg.Infow("[rfq-checker] single pass finished", "profiles", len(cfg.Profiles), "failed", failed)
		if failed > 0 {
			logger.Sync()
			os.Exit(1)
		}
		return
	}

	// --- Fiber HTTP Server ---
	app := fiber.New(fiber.Config{
		ReadTimeout:           cfg.HTTPReadTimeout,
		WriteTimeout:          cfg.HTTPWriteTimeout,
		IdleTimeout:           cfg.HTTPIdleTimeout,
		DisableStartupMessage: true,
	})
	api.RegisterRoutes(app, st, pub, api.NewRunsHandler(logger.L(), runner, st))

	go func() {
		logg.Infof("HTTP API listening on :%d", cfg.Port)
		if err := app.Listen(fmt.Sprintf(":%d", cfg.Port)); err != nil {
			logg.Fatalw("fiber.listen_failed", "error", err)
		}
	}()

	go runner.Start(ctx)

	logg.Infow("[rfq-checker] running",
		"env", cfg.Env,
		"interval", cfg.RunInterval,
		"profiles", runner.Profiles(),
		"sinks", pub.Sinks())

	<-ctx.Done()
	logg.Info("shutting down [rfq-checker]...")

	runner.Stop()
	if err := app.Shutdown(); err != nil {
		logg.Warnw("fiber.shutdown_failed", "error", err)
	}
	logg.Info("[rfq-checker] stopped cleanly")
}

func newResolver(ctx context.Context, cfg *config.Config, stopCleaner <-chan struct{}) internalsecrets.CredentialResolver {
	logg := logger.S()

	if cfg.CredentialsSource != "aws" {
		r, err := internalsecrets.NewEnvResolver(internalsecrets.Credentials{
			ClientID:     cfg.RFQClientID,
			ClientSecret: cfg.RFQClientSecret,
		})
		if err != nil {
			logg.Fatalw("invalid env credentials", "error", err)
		}
		logg.Infow("credentials from environment", "client_id", utils.MaskSecret(cfg.RFQClientID))
		return r
	}

	awsProvider, err := secrets.NewAWSProvider(ctx, cfg.AWSRegion)
	if err != nil {
		logg.Fatalw("failed to create AWS Secrets Manager provider", "error", err)
	}

	cache := secrets.NewCache[internalsecrets.Credentials](cfg.CacheTTL)
	go cache.StartCleaner(cfg.CleanupFreq, stopCleaner)

	base := internalsecrets.NewAWSResolver(logger.L(), cfg.Env, internalsecrets.Venue, awsProvider, cache)
	if keys, err := base.Discover(ctx); err != nil {
		logg.Warnw("failed to discover credentials in AWS Secrets Manager", "error", err)
	} else {
		missing := 0
		known := make(map[string]struct{}, len(keys))
		for _, k := range keys {
			known[k] = struct{}{}
		}
		for _, p := range cfg.Profiles {
			if _, ok := known[p.CredentialsKey()]; !ok {
				missing++
				logg.Warnw("no secret for profile", "profile", p.Name, "secret", base.SecretName(p.CredentialsKey()))
			}
		}
		logg.Infow("discovered RFQ credentials", "count", len(keys), "profiles_without_secret", missing)
	}
	return internalsecrets.NewAWSCredentialResolver(base)
}

func newStore(cfg *config.Config) store.Store {
	logg := logger.S()
	if cfg.RedisAddr == "" {
		logg.Info("REDIS_ADDR not set; keeping run results in memory")
		return store.NewMemory()
	}

	logg.Info("connection to DSN: ", utils.MaskDSN(cfg.DatabaseURL))
	st, err := store.NewHybrid(cfg.RedisAddr, cfg.RedisDB, cfg.RedisPass, cfg.RunTTL, cfg.DatabaseURL, store.PGPoolConfig{
		MaxConns:          int32(cfg.PGMaxConns),
		MinConns:          int32(cfg.PGMinConns),
		MaxConnLifetime:   cfg.PGMaxConnLifetime,
		MaxConnIdleTime:   cfg.PGMaxConnIdleTime,
		HealthCheckPeriod: cfg.PGHealthCheckPeriod,
	}, logger.L())
	if err != nil {
		logg.Fatalw("failed to init store", "error", err)
	}
	return st
}

func newPublisher(cfg *config.Config) *publisher.Publisher {
	logg := logger.S()
	var sinks []publisher.Sink
	for _, name := range cfg.EventSinks {
		switch name {
		case "nats":
			s, err := publisher.NewNATSSink(cfg.NATSURL, cfg.ServiceName)
			if err != nil {
				logg.Fatalw("failed to init NATS sink", "error", err)
			}
			sinks = append(sinks, s)
		case "rabbitmq":
			s, err := publisher.NewRabbitMQSink(cfg.RabbitMQURL, cfg.RabbitMQQueue, cfg.ServiceName)
			if err != nil {
				logg.Fatalw("failed to init RabbitMQ sink", "error", err)
			}
			sinks = append(sinks, s)
		case "kafka":
			sinks = append(sinks, publisher.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic))
		default:
			logg.Fatalw("unknown event sink", "sink", name)
		}
	}
	return publisher.New(cfg.NATSSubjectPrefix, cfg.ServiceName, sinks...)
}
