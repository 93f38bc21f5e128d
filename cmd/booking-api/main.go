// Command booking-api wires BookingService for callers outside this
// module. Full HTTP request routing is out of scope (spec.md Non-goals
// §1); this entrypoint exposes only a health endpoint, matching
// ServerConfig's documented surface, and exists so the service graph
// construction mirrors cmd/payment-worker's shape for whatever transport
// the caller adds in front of it.
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/msaedi/instructly-booking-engine/internal/audit"
	"github.com/msaedi/instructly-booking-engine/internal/availability"
	"github.com/msaedi/instructly-booking-engine/internal/clock"
	"github.com/msaedi/instructly-booking-engine/internal/credit"
	"github.com/msaedi/instructly-booking-engine/internal/gateway"
	"github.com/msaedi/instructly-booking-engine/internal/idempotency"
	"github.com/msaedi/instructly-booking-engine/internal/ledger"
	"github.com/msaedi/instructly-booking-engine/internal/lock"
	"github.com/msaedi/instructly-booking-engine/internal/notify"
	"github.com/msaedi/instructly-booking-engine/internal/outbox"
	"github.com/msaedi/instructly-booking-engine/internal/platform/config"
	"github.com/msaedi/instructly-booking-engine/internal/platform/logger"
	"github.com/msaedi/instructly-booking-engine/internal/pricing"
	"github.com/msaedi/instructly-booking-engine/internal/repository"
	"github.com/msaedi/instructly-booking-engine/internal/service"
	"github.com/msaedi/instructly-booking-engine/internal/videoroom"
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

	bookings := repository.NewBookingRepository(pool)
	payments := repository.NewBookingPaymentRepository(pool)
	transfers := repository.NewTransferRepository(pool)
	noShows := repository.NewNoShowRepository(pool)
	lockRecords := repository.NewLockRecordRepository(pool)
	txRepo := repository.NewTxRepository(pool)
	availRepo := repository.NewAvailabilityRepository(pool)

	bookingSvc := service.New(service.Dependencies{
		Tx: txRepo, Bookings: bookings, Payments: payments, Transfers: transfers,
		NoShows: noShows, LockRecords: lockRecords,
		Locks:       lock.New(redisClient, cfg.Redis.LockTTL),
		Idempotency: idempotency.NewStore(pool),
		Ledger:      ledger.New(pool),
		Audit:       audit.New(pool),
		Outbox:      outbox.NewPublisher(pool),
		Pricing:     pricing.New(1000),
		PSP:         gateway.NewStripeAdapter(cfg.Stripe.SecretKey, log),
		Clock:       clock.New(nil),
		Availability: availability.NewValidator(availRepo),
		Credit:      credit.New(pool),
		Notifier:    notify.NoOp{},
		Video:       videoroom.NoOp{},
		Log:         log,
	})
	_ = bookingSvc

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	srv := &http.Server{Addr: cfg.Server.Host + ":" + strconv.Itoa(cfg.Server.Port), Handler: mux}
	go func() {
		log.Info("booking-api listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("booking-api shutting down")
	_ = srv.Shutdown(context.Background())
}
