// Package main запускает HTTP-сервер и планировщик напоминаний сервиса pettag.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/pettag/internal/config"
	"github.com/mmeshcher/pettag/internal/handler"
	"github.com/mmeshcher/pettag/internal/lock"
	"github.com/mmeshcher/pettag/internal/middleware"
	"github.com/mmeshcher/pettag/internal/notify"
	"github.com/mmeshcher/pettag/internal/reminder"
	"github.com/mmeshcher/pettag/internal/repository"
	"github.com/mmeshcher/pettag/internal/service"
)

const (
	scanLockKey      = "pettag:reminder-scan"
	webhookRetryMax  = 3
	webhookRetryWait = 500 * time.Millisecond
)

func newLogger(level string) *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	if level == "debug" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// recordStore объединяет контракты хранилища сервиса и сканера напоминаний.
type recordStore interface {
	service.Store
	reminder.Store
}

func openStore(cfg *config.Config) (recordStore, error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
		if err != nil {
			return nil, err
		}
		return repo, nil
	case config.DriverMongo:
		repo, err := repository.NewMongoRepository(cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		return repo, nil
	default:
		return repository.NewMemoryRepository(), nil
	}
}

// newSender выбирает канал доставки напоминаний. Без настроенного канала возвращает nil.
func newSender(cfg *config.Config) (reminder.Sender, error) {
	if cfg.NotifyWebhookURL != "" {
		return notify.NewWebhookSender(cfg.NotifyWebhookURL, webhookRetryMax, webhookRetryWait), nil
	}
	if cfg.SMTP.Host == "" {
		return nil, nil
	}
	mailer, err := notify.NewMailer(notify.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
		TLS:      cfg.SMTP.TLS,
	})
	if err != nil {
		return nil, err
	}
	return mailer, nil
}

func main() {
	cfg, err := config.Parse()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.LogLevel)
	defer logger.Sync()

	sugar := logger.Sugar()

	loc, err := cfg.Location()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	store, err := openStore(cfg)
	if err != nil {
		sugar.Fatalw("store initialization error", "driver", cfg.StoreDriver, "error", err.Error())
	}

	svc := service.NewService(store, service.Config{
		BaseURL: cfg.BaseURL,
		CodeTTL: cfg.RedemptionCodeTTL,
	}, logger)
	defer svc.Close()

	sender, err := newSender(cfg)
	if err != nil {
		sugar.Fatalw("notification sender initialization error", "error", err.Error())
	}

	scanner := reminder.NewScanner(store, sender, reminder.Config{
		WindowDays:  cfg.Reminder.WindowDays,
		Location:    loc,
		SendTimeout: cfg.Reminder.SendTimeout,
	}, logger.Named("reminder"))

	var guard reminder.Guard
	if cfg.RedisAddr != "" {
		rdb, err := lock.NewRedisClient(cfg.RedisAddr)
		if err != nil {
			sugar.Fatalw("redis initialization error", "error", err.Error())
		}
		defer rdb.Close()
		guard = lock.NewRedisLock(rdb, scanLockKey, lock.DefaultTTL, logger.Named("lock"))
	}

	scheduler := reminder.NewScheduler(scanner, reminder.SchedulerConfig{
		Interval:   cfg.Reminder.Interval,
		RunOnStart: cfg.Reminder.RunOnStart,
		Guard:      guard,
	}, logger.Named("reminder"))

	authMiddleware := middleware.NewAuthMiddleware(cfg.AuthSecret)
	h := handler.NewHandler(svc, scanner, logger, authMiddleware, cfg.AdminKey)

	r := h.SetupRouter()

	server := &http.Server{
		Addr:    cfg.RunAddress,
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Планировщик напоминаний работает только при настроенном канале доставки
	if sender != nil {
		g.Go(func() error {
			if err := scheduler.Start(ctx); err != nil {
				return fmt.Errorf("scheduler start: %w", err)
			}
			<-ctx.Done()
			scheduler.Stop()
			return nil
		})
	} else {
		sugar.Warn("no notification channel configured, reminder scheduler disabled")
	}

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting pettag server", "addr", cfg.RunAddress, "store", cfg.StoreDriver)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
