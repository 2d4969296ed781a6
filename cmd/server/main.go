package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Freeeeeet/lesson_booking/internal/api"
	"github.com/Freeeeeet/lesson_booking/internal/app"
	"github.com/Freeeeeet/lesson_booking/internal/config"
	"github.com/Freeeeeet/lesson_booking/internal/notifier"
	"github.com/Freeeeeet/lesson_booking/internal/payment"
	"github.com/Freeeeeet/lesson_booking/internal/pricing"
	"github.com/Freeeeeet/lesson_booking/internal/repository"
	"github.com/Freeeeeet/lesson_booking/internal/service"
	"github.com/Freeeeeet/lesson_booking/migrations"
	"github.com/go-telegram/bot"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := app.NewLogger(cfg.Environment, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("Server stopped with error", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	_ = logger.Sync()
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DBDSN)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return err
	}

	migrator, err := app.NewMigrator(pool, migrations.FS, logger)
	if err != nil {
		return err
	}
	if err := migrator.Run(ctx); err != nil {
		return err
	}
	_ = migrator.Close()

	store := repository.NewPostgres(pool)

	pricingModel, err := pricing.NewModel(cfg.Pricing)
	if err != nil {
		return err
	}

	async := notifier.NewAsync(newNotifier(cfg, store, logger), cfg.NotifyTimeout, logger)
	clock := service.SystemClock{}

	lessons := service.NewLessonService(store, pricingModel, async, clock, logger)
	reports := service.NewReportService(store, pricingModel, logger)
	lessons.OnCompleted(reports.LessonCompleted)

	handler := &api.Handler{
		Lessons:      lessons,
		Availability: service.NewAvailabilityService(store, clock, logger),
		Fulfillment: service.NewFulfillmentService(store, lessons, payment.NewSigner(cfg.PaymentSecret), async, clock,
			service.FulfillmentConfig{
				GatewayURL:  cfg.PaymentGatewayURL,
				CallbackURL: cfg.PaymentCallbackURL,
				GraceDays:   cfg.PackageGraceDays,
			}, logger),
		Reschedule: service.NewRescheduleService(store, lessons, async, clock, service.RescheduleRules{
			Deadline:          cfg.RescheduleDeadline,
			MaxStudentChanges: cfg.MaxReschedulePerLesson,
			ReleaseOldSlot:    cfg.ReleaseSlotOnReschedule,
		}, logger),
		Reports:   reports,
		ResultURL: cfg.PaymentResultURL,
		Logger:    logger,
	}

	monitor := app.NewReconciliationMonitor(store.Reconciliation(), cfg.ReconciliationInterval, logger)
	monitor.Start(ctx)
	defer monitor.Stop()

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      api.NewRouter(handler, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting lesson booking server",
			zap.String("environment", cfg.Environment),
			zap.String("addr", cfg.HTTPAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	logger.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	// дожидаемся уведомлений, отправленных до остановки
	async.Wait()

	logger.Info("Server stopped")
	return nil
}

// newNotifier отправляет уведомления в Telegram, а без токена пишет их в лог
func newNotifier(cfg *config.Config, store repository.Store, logger *zap.Logger) notifier.Notifier {
	if cfg.TelegramToken == "" {
		logger.Warn("TELEGRAM_TOKEN is empty, notifications go to the log")
		return notifier.NewLog(logger)
	}

	b, err := bot.New(cfg.TelegramToken)
	if err != nil {
		logger.Error("Failed to create telegram bot, notifications go to the log", zap.Error(err))
		return notifier.NewLog(logger)
	}

	return notifier.NewTelegram(b, store.Users(), logger)
}
