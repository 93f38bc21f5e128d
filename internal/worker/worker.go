// Package worker implements PaymentWorkerSet, the eight scheduled jobs
// that drive payments forward without a caller present (authorization,
// retries, capture, no-show resolution, payout auditing, health
// checks). Grounded on ExpiryWorker's ticker/WaitGroup/Stats/Start-Stop
// structural template (backend-booking/internal/worker/expiry_worker.go),
// generalized from one job to a set of named jobs each on its own
// cadence.
package worker

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/msaedi/instructly-booking-engine/internal/audit"
	"github.com/msaedi/instructly-booking-engine/internal/clock"
	"github.com/msaedi/instructly-booking-engine/internal/credit"
	"github.com/msaedi/instructly-booking-engine/internal/domain"
	"github.com/msaedi/instructly-booking-engine/internal/gateway"
	"github.com/msaedi/instructly-booking-engine/internal/idempotency"
	"github.com/msaedi/instructly-booking-engine/internal/ledger"
	"github.com/msaedi/instructly-booking-engine/internal/lock"
	"github.com/msaedi/instructly-booking-engine/internal/notify"
	"github.com/msaedi/instructly-booking-engine/internal/outbox"
	"github.com/msaedi/instructly-booking-engine/internal/platform/logger"
	"github.com/msaedi/instructly-booking-engine/internal/platform/telemetry"
	"github.com/msaedi/instructly-booking-engine/internal/pricing"
	"github.com/msaedi/instructly-booking-engine/internal/repository"
	"go.uber.org/zap"
)

// Stats tracks one job's most recent run, mirroring ExpiryWorker.Stats.
type Stats struct {
	LastRunAt     time.Time
	LastRunCount  int
	LastRunErrors int
}

type jobFunc func(ctx context.Context) (processed, failed int, err error)

type job struct {
	name     string
	interval time.Duration
	run      jobFunc

	mu    sync.Mutex
	stats Stats
}

// PaymentWorkerSet owns the eight scheduled jobs and their lifecycle.
type PaymentWorkerSet struct {
	bookings    *repository.BookingRepository
	payments    *repository.BookingPaymentRepository
	transfers   *repository.TransferRepository
	noShows     *repository.NoShowRepository
	lockRecords *repository.LockRecordRepository
	tx          *repository.TxRepository
	locks       *lock.BookingLock
	idemStore   *idempotency.Store
	ledger      *ledger.EventLedger
	audit       *audit.Log
	outboxPub   *outbox.Publisher
	psp         gateway.PSPAdapter
	clock       clock.Service
	notifier    notify.Notifier
	credit      *credit.Service
	pricing     *pricing.Calculator
	log         *logger.Logger

	jobs []*job

	running bool
	mu      sync.Mutex
	wg      sync.WaitGroup
	cancel  context.CancelFunc
}

type Config struct {
	ProcessScheduledAuthorizationsInterval time.Duration
	RetryFailedAuthorizationsInterval      time.Duration
	CaptureCompletedLessonsInterval        time.Duration
	RetryFailedCapturesInterval            time.Duration
	ResolveUndisputedNoShowsInterval       time.Duration
	AuditPayoutSchedulesInterval           time.Duration
	AuthorizationHealthCheckInterval       time.Duration
	CheckImmediateAuthTimeoutInterval      time.Duration
	BatchSize                              int
}

type Dependencies struct {
	Bookings    *repository.BookingRepository
	Payments    *repository.BookingPaymentRepository
	Transfers   *repository.TransferRepository
	NoShows     *repository.NoShowRepository
	LockRecords *repository.LockRecordRepository
	Tx          *repository.TxRepository
	Locks       *lock.BookingLock
	Idempotency *idempotency.Store
	Ledger      *ledger.EventLedger
	Audit       *audit.Log
	Outbox      *outbox.Publisher
	PSP         gateway.PSPAdapter
	Clock       clock.Service
	Notifier    notify.Notifier
	Credit      *credit.Service
	Pricing     *pricing.Calculator
	Log         *logger.Logger
}

func New(cfg Config, d Dependencies) *PaymentWorkerSet {
	w := &PaymentWorkerSet{
		bookings: d.Bookings, payments: d.Payments, transfers: d.Transfers,
		noShows: d.NoShows, lockRecords: d.LockRecords, tx: d.Tx, locks: d.Locks,
		idemStore: d.Idempotency, ledger: d.Ledger, audit: d.Audit, outboxPub: d.Outbox,
		psp: d.PSP, clock: d.Clock, notifier: d.Notifier, credit: d.Credit,
		pricing: d.Pricing, log: d.Log,
	}

	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}

	w.jobs = []*job{
		{name: "process_scheduled_authorizations", interval: cfg.ProcessScheduledAuthorizationsInterval, run: w.processScheduledAuthorizations(cfg.BatchSize)},
		{name: "retry_failed_authorizations", interval: cfg.RetryFailedAuthorizationsInterval, run: w.retryFailedAuthorizations(cfg.BatchSize)},
		{name: "capture_completed_lessons", interval: cfg.CaptureCompletedLessonsInterval, run: w.captureCompletedLessons(cfg.BatchSize)},
		{name: "retry_failed_captures", interval: cfg.RetryFailedCapturesInterval, run: w.retryFailedCaptures(cfg.BatchSize)},
		{name: "resolve_undisputed_no_shows", interval: cfg.ResolveUndisputedNoShowsInterval, run: w.resolveUndisputedNoShows(cfg.BatchSize)},
		{name: "audit_payout_schedules", interval: cfg.AuditPayoutSchedulesInterval, run: w.auditPayoutSchedules(cfg.BatchSize)},
		{name: "authorization_health_check", interval: cfg.AuthorizationHealthCheckInterval, run: w.authorizationHealthCheck()},
		{name: "check_immediate_auth_timeout", interval: cfg.CheckImmediateAuthTimeoutInterval, run: w.checkImmediateAuthTimeout()},
	}
	return w
}

// Start launches one goroutine per job, each on its own ticker.
func (w *PaymentWorkerSet) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return
	}
	w.running = true

	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	for _, j := range w.jobs {
		w.wg.Add(1)
		go w.runLoop(ctx, j)
	}
}

func (w *PaymentWorkerSet) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	cancel := w.cancel
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	w.wg.Wait()
}

func (w *PaymentWorkerSet) runLoop(ctx context.Context, j *job) {
	defer w.wg.Done()

	if j.interval <= 0 {
		j.interval = time.Hour
	}
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.runOnce(ctx, j)
		}
	}
}

func (w *PaymentWorkerSet) runOnce(ctx context.Context, j *job) {
	ctx, span := telemetry.StartSpan(ctx, "worker.job."+j.name)
	defer span.End()

	processed, failed, err := j.run(ctx)

	j.mu.Lock()
	j.stats = Stats{LastRunAt: w.clock.Now(), LastRunCount: processed, LastRunErrors: failed}
	j.mu.Unlock()

	if err != nil {
		w.log.Error("payment worker job run failed", zap.String("job", j.name), zap.Error(err))
		return
	}
	w.log.Info("payment worker job run completed", zap.String("job", j.name), zap.Int("processed", processed), zap.Int("failed", failed))
}

// StatsFor returns the most recent run stats for jobName; the boolean is
// false when no job has that name.
func (w *PaymentWorkerSet) StatsFor(jobName string) (Stats, bool) {
	for _, j := range w.jobs {
		if j.name == jobName {
			j.mu.Lock()
			defer j.mu.Unlock()
			return j.stats, true
		}
	}
	return Stats{}, false
}

// withBookingLock is the per-item wrapper every job uses: try-acquire,
// skip on failure, always release.
func (w *PaymentWorkerSet) withBookingLock(ctx context.Context, bookingID string, fn func(ctx context.Context) error) error {
	guard, err := w.locks.TryAcquire(ctx, bookingID, uuid.NewString())
	if err != nil {
		if err == lock.ErrNotAcquired {
			return nil
		}
		return err
	}
	defer guard.Release(ctx)
	return fn(ctx)
}

// outboxEvent builds the transactional-outbox envelope for a booking
// state change raised from a worker job, mirroring
// BookingService.outboxEvent.
func (w *PaymentWorkerSet) outboxEvent(t domain.OutboxEventType, b *domain.Booking) domain.OutboxEvent {
	payload, _ := json.Marshal(map[string]any{
		"booking_id":    b.ID,
		"student_id":    b.StudentID,
		"instructor_id": b.InstructorID,
		"status":        b.Status,
	})
	return domain.OutboxEvent{
		EventID: uuid.NewString(), EventType: t, BookingID: b.ID,
		StudentID: b.StudentID, InstructorID: b.InstructorID,
		OccurredAt: w.clock.Now(), Payload: payload,
	}
}
