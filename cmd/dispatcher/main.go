// cmd/dispatcher/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"jobdispatch/internal/audience"
	"jobdispatch/internal/channel"
	commonaws "jobdispatch/internal/common/aws"
	"jobdispatch/internal/common/config"
	"jobdispatch/internal/common/database"
	"jobdispatch/internal/common/logger"
	"jobdispatch/internal/dispatch"
	"jobdispatch/internal/lifecycle"
	"jobdispatch/internal/models"
	"jobdispatch/internal/notify"
	"jobdispatch/internal/realtime"
	"jobdispatch/internal/reminder"
	"jobdispatch/internal/store"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting dispatch engine...",
		zap.String("app", cfg.App.Name),
		zap.String("environment", cfg.App.Environment),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var rdb *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rdb, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return rdb.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rdb.Close()
	zapLog.Info("Redis connected successfully")

	// --- Stores and resolvers ---
	repos := store.New(pg.DB)
	resolver := audience.NewResolver(pg.DB, log)
	feed := realtime.NewFeed(rdb.Client, log)

	// --- Channel adapters ---
	registry := channel.NewRegistry()
	registry.Register(models.ChannelInApp, channel.NewInAppAdapter(repos.Notifications, feed, log))

	if cfg.AWS.SES.Enabled {
		sesClient, err := commonaws.NewSESClient(ctx, cfg.AWS.Region)
		if err != nil {
			zapLog.Fatal("ses client init failed", zap.Error(err))
		}
		registry.Register(models.ChannelEmail, channel.NewEmailAdapter(sesClient, cfg.AWS.SES.FromEmail))
	}
	if cfg.AWS.SNS.Enabled {
		snsClient, err := commonaws.NewSNSClient(ctx, cfg.AWS.Region)
		if err != nil {
			zapLog.Fatal("sns client init failed", zap.Error(err))
		}
		registry.Register(models.ChannelSMS, channel.NewSMSAdapter(snsClient, cfg.AWS.SNS.DefaultSMSSenderID))
	}
	if cfg.WhatsApp.Enabled {
		registry.Register(models.ChannelWhatsApp, channel.NewWhatsAppAdapter(cfg.WhatsApp.Endpoint, cfg.WhatsApp.Sender))
	}
	zapLog.Info("Channel adapters registered", zap.Any("channels", registry.Channels()))

	// --- Services ---
	dispatcher := dispatch.New(resolver, repos.Broadcasts, repos.Messages, repos.Logs,
		repos.Preferences, registry,
		dispatch.Options{
			WorkerPoolSize: cfg.Dispatch.WorkerPoolSize,
			MaxRetries:     cfg.Dispatch.MaxRetries,
			AudiencePage:   cfg.Dispatch.AudiencePage,
		}, log)

	controller := lifecycle.NewController(repos.Broadcasts, repos.Logs, repos.Templates, resolver, dispatcher, log)

	notifier := notify.NewService(registry, repos.Correlation, log)

	reminders := reminder.NewScheduler(repos.Reminders, resolver, notifier,
		reminder.Options{BatchSize: cfg.Scheduler.ReminderBatchSize}, log)

	// --- Background sweeps ---
	go runSweep(ctx, time.Duration(cfg.Scheduler.BroadcastSweepInterval)*time.Second, controller.SweepScheduled)
	go runSweep(ctx, time.Duration(cfg.Scheduler.ReminderSweepInterval)*time.Second, reminders.Sweep)
	zapLog.Info("Background sweeps started",
		zap.Int("broadcast_interval_s", cfg.Scheduler.BroadcastSweepInterval),
		zap.Int("reminder_interval_s", cfg.Scheduler.ReminderSweepInterval),
	)

	// --- Metrics and health ---
	go func() {
		http.Handle("/metrics", promhttp.Handler())
		http.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			if err := pg.Ping(r.Context()); err != nil {
				http.Error(w, "postgres unavailable", http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusOK)
		})
		if err := http.ListenAndServe(":8080", nil); err != nil {
			zapLog.Error("metrics server stopped", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zapLog.Info("Shutdown signal received, draining...")

	// Give in-flight fan-outs a moment to finish their current batch.
	time.Sleep(2 * time.Second)
	zapLog.Info("Dispatch engine stopped")
}

func runSweep(ctx context.Context, interval time.Duration, sweep func(context.Context)) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweep(ctx)
		}
	}
}
