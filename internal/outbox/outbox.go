// Package outbox implements the transactional outbox: an event row is
// written in the same database transaction as the state change it
// describes (Publisher), and a separate process delivers it at-least-
// once to Kafka (Dispatcher), reconstructing the teacher's pkg/kafka
// Producer/Consumer contract observed at call sites in
// booking_consumer.go (ProduceJSON/Poll/CommitRecords) using
// github.com/twmb/franz-go directly.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/msaedi/instructly-booking-engine/internal/domain"
	"github.com/msaedi/instructly-booking-engine/internal/platform/logger"
)

// Publisher writes outbox rows as part of a caller's Phase 3
// transaction. It never talks to Kafka directly.
type Publisher struct {
	pool *pgxpool.Pool
}

func NewPublisher(pool *pgxpool.Pool) *Publisher {
	return &Publisher{pool: pool}
}

func (p *Publisher) Write(ctx context.Context, tx pgx.Tx, ev domain.OutboxEvent) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO outbox_events (event_id, event_type, booking_id, student_id, instructor_id, occurred_at, payload, dispatched)
		VALUES ($1, $2, $3, $4, $5, $6, $7, false)
	`, ev.EventID, ev.EventType, ev.BookingID, ev.StudentID, ev.InstructorID, ev.OccurredAt, ev.Payload)
	if err != nil {
		return fmt.Errorf("writing outbox event: %w", err)
	}
	return nil
}

// Dispatcher polls undispatched outbox rows and produces them to Kafka,
// marking each dispatched only after the broker acknowledges the write
// (at-least-once delivery).
type Dispatcher struct {
	pool     *pgxpool.Pool
	producer *kgo.Client
	topic    string
	log      *logger.Logger
	interval time.Duration
	batch    int
}

func NewDispatcher(pool *pgxpool.Pool, brokers []string, topic, clientID string, log *logger.Logger) (*Dispatcher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ClientID(clientID),
		kgo.AllowAutoTopicCreation(),
	)
	if err != nil {
		return nil, fmt.Errorf("creating kafka producer: %w", err)
	}
	return &Dispatcher{
		pool:     pool,
		producer: client,
		topic:    topic,
		log:      log,
		interval: 2 * time.Second,
		batch:    100,
	}, nil
}

func (d *Dispatcher) Close() {
	d.producer.Close()
}

// Run polls for undispatched events until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := d.dispatchBatch(ctx); err != nil {
				d.log.Error("outbox dispatch batch failed")
			}
		}
	}
}

func (d *Dispatcher) dispatchBatch(ctx context.Context) error {
	rows, err := d.pool.Query(ctx, `
		SELECT event_id, event_type, booking_id, student_id, instructor_id, occurred_at, payload
		FROM outbox_events WHERE dispatched = false
		ORDER BY occurred_at ASC LIMIT $1
	`, d.batch)
	if err != nil {
		return fmt.Errorf("querying undispatched outbox events: %w", err)
	}

	type pending struct {
		eventID string
		ev      domain.OutboxEvent
	}
	var items []pending
	for rows.Next() {
		var ev domain.OutboxEvent
		var payload []byte
		if err := rows.Scan(&ev.EventID, &ev.EventType, &ev.BookingID, &ev.StudentID, &ev.InstructorID, &ev.OccurredAt, &payload); err != nil {
			rows.Close()
			return fmt.Errorf("scanning outbox event: %w", err)
		}
		ev.Payload = payload
		items = append(items, pending{eventID: ev.EventID, ev: ev})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, it := range items {
		if err := d.produceJSON(ctx, it.ev); err != nil {
			d.log.Error("producing outbox event to kafka")
			continue
		}
		if _, err := d.pool.Exec(ctx, `
			UPDATE outbox_events SET dispatched = true, dispatched_at = now() WHERE event_id = $1
		`, it.eventID); err != nil {
			d.log.Error("marking outbox event dispatched")
		}
	}
	return nil
}

func (d *Dispatcher) produceJSON(ctx context.Context, ev domain.OutboxEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshalling outbox event: %w", err)
	}

	record := &kgo.Record{
		Topic: d.topic,
		Key:   []byte(ev.BookingID),
		Value: body,
	}

	results := d.producer.ProduceSync(ctx, record)
	return results.FirstErr()
}
