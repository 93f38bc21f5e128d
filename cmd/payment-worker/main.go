// Command payment-worker runs PaymentWorkerSet as a standalone process:
// no HTTP API surface, just the eight scheduled jobs, an hourly
// LockedFundsResolver pass and the outbox dispatcher, grounded on the source's cmd/saga-payment-worker
// entrypoint shape (config load -> platform clients -> repositories ->
// service construction -> signal-driven shutdown).
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/msaedi/instructly-booking-engine/internal/audit"
	"github.com/msaedi/instructly-booking-engine/internal/clock"
	"github.com/msaedi/instructly-booking-engine/internal/credit"
	"github.com/msaedi/instructly-booking-engine/internal/gateway"
	"github.com/msaedi/instructly-booking-engine/internal/idempotency"
	"github.com/msaedi/instructly-booking-engine/internal/ledger"
	"github.com/msaedi/instructly-booking-engine/internal/lock"
	"github.com/msaedi/instructly-booking-engine/internal/lockedfunds"
	"github.com/msaedi/instructly-booking-engine/internal/notify"
	"github.com/msaedi/instructly-booking-engine/internal/outbox"
	"github.com/msaedi/instructly-booking-engine/internal/platform/config"
	"github.com/msaedi/instructly-booking-engine/internal/platform/logger"
	"github.com/msaedi/instructly-booking-engine/internal/pricing"
	"github.com/msaedi/instructly-booking-engine/internal/repository"
	"github.com/msaedi/instructly-booking-engine/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logger.New(logger.Config{Environment: cfg.App.Environment})
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Error("connecting to postgres", zap.Error(err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	defer redisClient.Close()

	bookingLock := lock.New(redisClient, cfg.Redis.LockTTL)
	clockSvc := clock.New(nil)
	psp := gateway.NewStripeAdapter(cfg.Stripe.SecretKey, log)

	bookings := repository.NewBookingRepository(pool)
	payments := repository.NewBookingPaymentRepository(pool)
	transfers := repository.NewTransferRepository(pool)
	noShows := repository.NewNoShowRepository(pool)
	lockRecords := repository.NewLockRecordRepository(pool)
	txRepo := repository.NewTxRepository(pool)
	idemStore := idempotency.NewStore(pool)
	eventLedger := ledger.New(pool)
	auditLog := audit.New(pool)
	outboxPub := outbox.NewPublisher(pool)
	pricingCalc := pricing.New(1000) // 10% platform fee on a normal settlement
	creditSvc := credit.New(pool)

	dispatcher, err := outbox.NewDispatcher(pool, cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.ClientID, log)
	if err != nil {
		log.Error("creating outbox dispatcher", zap.Error(err))
		os.Exit(1)
	}
	defer dispatcher.Close()
	go dispatcher.Run(ctx)

	resolver := lockedfunds.New(lockedfunds.Dependencies{
		LockRecords: lockRecords, Bookings: bookings, Payments: payments, Tx: txRepo,
		Locks: bookingLock, Idempotency: idemStore, Ledger: eventLedger, PSP: psp,
		Pricing: pricingCalc, Clock: clockSvc, Log: log,
	})

	workerSet := worker.New(worker.Config{
		ProcessScheduledAuthorizationsInterval: cfg.Worker.ProcessScheduledAuthorizationsInterval,
		RetryFailedAuthorizationsInterval:      cfg.Worker.RetryFailedAuthorizationsInterval,
		CaptureCompletedLessonsInterval:        cfg.Worker.CaptureCompletedLessonsInterval,
		RetryFailedCapturesInterval:            cfg.Worker.RetryFailedCapturesInterval,
		ResolveUndisputedNoShowsInterval:       cfg.Worker.ResolveUndisputedNoShowsInterval,
		AuditPayoutSchedulesInterval:           cfg.Worker.AuditPayoutSchedulesInterval,
		AuthorizationHealthCheckInterval:       cfg.Worker.AuthorizationHealthCheckInterval,
		CheckImmediateAuthTimeoutInterval:      cfg.Worker.CheckImmediateAuthTimeoutInterval,
		BatchSize:                              cfg.Worker.BatchSize,
	}, worker.Dependencies{
		Bookings: bookings, Payments: payments, Transfers: transfers, NoShows: noShows,
		LockRecords: lockRecords, Tx: txRepo, Locks: bookingLock, Idempotency: idemStore,
		Ledger: eventLedger, Audit: auditLog, Outbox: outboxPub, PSP: psp, Clock: clockSvc,
		Notifier: notify.NoOp{}, Credit: creditSvc, Pricing: pricingCalc, Log: log,
	})

	workerSet.Start(ctx)
	log.Info("payment-worker started")

	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, _, err := resolver.ResolvePending(ctx, cfg.Worker.BatchSize); err != nil {
					log.Error("locked funds resolver run failed", zap.Error(err))
				}
			}
		}
	}()

	<-ctx.Done()
	log.Info("payment-worker shutting down")
	workerSet.Stop()
}
