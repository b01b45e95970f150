package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ingressolab/ingresso-backend/pkg/config"
	"github.com/ingressolab/ingresso-backend/pkg/db/models"
	"github.com/ingressolab/ingresso-backend/pkg/enums"
	"github.com/ingressolab/ingresso-backend/pkg/logger"
	"github.com/ingressolab/ingresso-backend/pkg/outbox/registry"
)

const (
	defaultBatchSize   = 50
	defaultPollMs      = 500
	defaultMaxAttempts = 10
	publishTimeout     = 15 * time.Second
	backoffCeiling     = 10 * time.Second
	jitterWindow       = 250 * time.Millisecond
)

var jitterRand = rand.New(rand.NewSource(time.Now().UnixNano()))

type txRunner interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type outboxStore interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, cause error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, cause error, terminalAttempts int) error
}

type dlqStore interface {
	InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error
}

type eventResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

// topicPublisher abstracts the Pub/Sub publisher so tests can fake delivery.
type topicPublisher interface {
	Publish(ctx context.Context, msg *gcppubsub.Message) (string, error)
}

type publisherLookup func(topic string) topicPublisher

type pubsubSource interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

// DispatcherParams wire the outbox dispatcher.
type DispatcherParams struct {
	Config     *config.Config
	Logger     *logger.Logger
	DB         txRunner
	PubSub     pubsubSource
	Outbox     outboxStore
	DLQ        dlqStore
	Registry   eventResolver
	Publishers publisherLookup
}

// Dispatcher drains the transactional outbox into Pub/Sub. Rows either get
// published and stamped, retried with an incremented attempt count, or parked
// in the DLQ when the registry rejects them or the retry budget runs out.
type Dispatcher struct {
	cfg        *config.Config
	logg       *logger.Logger
	db         txRunner
	pubsub     pubsubSource
	store      outboxStore
	dlq        dlqStore
	resolver   eventResolver
	publishers publisherLookup

	batchSize    int
	maxAttempts  int
	pollInterval time.Duration
}

func NewDispatcher(params DispatcherParams) (*Dispatcher, error) {
	if params.Config == nil {
		return nil, errors.New("config is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.DB == nil {
		return nil, errors.New("database client is required")
	}
	if params.PubSub == nil {
		return nil, errors.New("pubsub client is required")
	}
	if params.Outbox == nil {
		return nil, errors.New("outbox repository is required")
	}
	if params.DLQ == nil {
		return nil, errors.New("dlq repository is required")
	}
	if params.Registry == nil {
		return nil, errors.New("event registry is required")
	}

	lookup := params.Publishers
	if lookup == nil {
		lookup = func(topic string) topicPublisher {
			pub := params.PubSub.Publisher(topic)
			if pub == nil {
				return nil
			}
			return gcpTopicPublisher{pub: pub}
		}
	}

	batch := params.Config.Outbox.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	pollMs := params.Config.Outbox.PollIntervalMS
	if pollMs <= 0 {
		pollMs = defaultPollMs
	}
	maxAttempts := params.Config.Outbox.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}

	return &Dispatcher{
		cfg:          params.Config,
		logg:         params.Logger,
		db:           params.DB,
		pubsub:       params.PubSub,
		store:        params.Outbox,
		dlq:          params.DLQ,
		resolver:     params.Registry,
		publishers:   lookup,
		batchSize:    batch,
		maxAttempts:  maxAttempts,
		pollInterval: time.Duration(pollMs) * time.Millisecond,
	}, nil
}

// Run polls until the context is canceled. Batch errors back off
// exponentially up to a ceiling; an empty poll sleeps one interval.
func (d *Dispatcher) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := d.checkDependencies(ctx); err != nil {
		return err
	}

	backoff := d.pollInterval
	for {
		select {
		case <-ctx.Done():
			d.logg.Info(ctx, "outbox dispatcher context canceled")
			return ctx.Err()
		default:
		}

		drained, err := d.drainOnce(ctx)
		if err != nil {
			d.logg.Error(ctx, "outbox batch failed", err)
			backoff = doubleCapped(backoff, backoffCeiling)
			if err := sleepCtx(ctx, jittered(backoff)); err != nil {
				return err
			}
			continue
		}
		backoff = d.pollInterval

		if drained {
			continue
		}
		if err := sleepCtx(ctx, jittered(d.pollInterval)); err != nil {
			return err
		}
	}
}

func (d *Dispatcher) checkDependencies(ctx context.Context) error {
	if err := d.db.Ping(ctx); err != nil {
		return fmt.Errorf("database ping: %w", err)
	}
	if err := d.pubsub.Ping(ctx); err != nil {
		return fmt.Errorf("pubsub ping: %w", err)
	}
	return nil
}

// drainOnce processes one batch inside a single transaction. It reports
// whether any rows were found so the caller can skip the idle sleep.
func (d *Dispatcher) drainOnce(ctx context.Context) (bool, error) {
	found := false
	err := d.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := d.store.FetchUnpublishedForPublish(tx, d.batchSize, d.maxAttempts)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		found = true
		for _, event := range rows {
			if err := d.dispatchEvent(ctx, tx, event); err != nil {
				return err
			}
		}
		return nil
	})
	return found, err
}

func (d *Dispatcher) dispatchEvent(ctx context.Context, tx *gorm.DB, event models.OutboxEvent) error {
	resolved, err := d.resolver.Resolve(event)
	if err != nil {
		return d.park(ctx, tx, event, enums.OutboxDLQReasonNonRetryable, err)
	}

	logCtx := d.logg.WithFields(ctx, map[string]any{
		"outbox_id":      event.ID.String(),
		"event_type":     event.EventType,
		"aggregate_id":   event.AggregateID.String(),
		"aggregate_type": event.AggregateType,
		"topic":          resolved.Descriptor.Topic,
		"attempt_count":  event.AttemptCount,
	})

	if err := d.publish(ctx, event, resolved); err != nil {
		var nonRetry registry.NonRetryableError
		if errors.As(err, &nonRetry) {
			return d.park(logCtx, tx, event, enums.OutboxDLQReasonNonRetryable, err)
		}
		if event.AttemptCount+1 >= d.maxAttempts {
			return d.park(logCtx, tx, event, enums.OutboxDLQReasonMaxAttempts,
				fmt.Errorf("max publish attempts reached: %w", err))
		}
		d.logg.Warn(d.logg.WithField(logCtx, "error", err.Error()), "outbox publish failed, will retry")
		if markErr := d.store.MarkFailedTx(tx, event.ID, err); markErr != nil {
			return fmt.Errorf("mark failed %s: %w", event.ID, markErr)
		}
		return nil
	}

	if err := d.store.MarkPublishedTx(tx, event.ID); err != nil {
		return fmt.Errorf("mark published %s: %w", event.ID, err)
	}
	d.logg.Info(logCtx, "outbox event published")
	return nil
}

func (d *Dispatcher) publish(ctx context.Context, event models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	topic := resolved.Descriptor.Topic
	pub := d.publishers(topic)
	if pub == nil {
		return registry.NewNonRetryableError(fmt.Errorf("no publisher for topic %s", topic))
	}

	msg := &gcppubsub.Message{
		Data: event.Payload,
		Attributes: map[string]string{
			"event_id":       resolved.Envelope.EventID,
			"event_type":     string(event.EventType),
			"aggregate_type": string(event.AggregateType),
			"aggregate_id":   event.AggregateID.String(),
			"created_at":     event.CreatedAt.Format(time.RFC3339Nano),
		},
	}

	publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	_, err := pub.Publish(publishCtx, msg)
	return err
}

// park records the row in the DLQ and moves it past the retry horizon.
func (d *Dispatcher) park(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error) error {
	logCtx := d.logg.WithFields(ctx, map[string]any{
		"outbox_id":    event.ID.String(),
		"event_type":   event.EventType,
		"error_reason": reason,
		"error":        cause.Error(),
	})
	d.logg.Warn(logCtx, "outbox event parked in dlq")

	message := cause.Error()
	entry := models.OutboxDLQ{
		EventID:       event.ID,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       event.Payload,
		ErrorReason:   reason,
		ErrorMessage:  &message,
		AttemptCount:  event.AttemptCount,
		FailedAt:      time.Now().UTC(),
	}
	if err := d.dlq.InsertTx(tx, entry); err != nil {
		return fmt.Errorf("insert dlq %s: %w", event.ID, err)
	}
	if err := d.store.MarkTerminalTx(tx, event.ID, cause, d.maxAttempts); err != nil {
		return fmt.Errorf("mark terminal %s: %w", event.ID, err)
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func doubleCapped(current, ceiling time.Duration) time.Duration {
	next := current * 2
	if next > ceiling {
		return ceiling
	}
	return next
}

func jittered(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d + time.Duration(jitterRand.Int63n(int64(jitterWindow)))
}

type gcpTopicPublisher struct {
	pub *gcppubsub.Publisher
}

func (p gcpTopicPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) (string, error) {
	result := p.pub.Publish(ctx, msg)
	if result == nil {
		return "", errors.New("publish returned no result")
	}
	return result.Get(ctx)
}
