package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/robertarktes/event-ticketing/internal/adapters/crdb"
	"github.com/robertarktes/event-ticketing/internal/observability"
)

type ReadStore interface {
	WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error
	ClaimUnpublished(ctx context.Context, tx pgx.Tx, limit int) ([]crdb.OutboxRecord, error)
	MarkPublished(ctx context.Context, tx pgx.Tx, id uuid.UUID, publishedAt time.Time) error
}

type Broker interface {
	Publish(ctx context.Context, key string, msg amqp.Publishing) error
}

type Publisher struct {
	repo      ReadStore
	broker    Broker
	logger    observability.Logger
	batchSize int
	retries   int
	backoff   time.Duration
}

func NewPublisher(repo ReadStore, broker Broker, logger observability.Logger) *Publisher {
	return &Publisher{
		repo:      repo,
		broker:    broker,
		logger:    logger,
		batchSize: 50,
		retries:   3,
		backoff:   200 * time.Millisecond,
	}
}

func (p *Publisher) Run(ctx context.Context, interval time.Duration) {
	p.logger.Info("outbox publisher started")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := p.PublishBatch(ctx)
			if err != nil {
				p.logger.Error("failed to publish outbox batch: ", err)
				continue
			}
			if n > 0 {
				p.logger.WithField("count", n).Debug("published outbox records")
			}
		}
	}
}

// PublishBatch forwards one batch of NEW records. A record that cannot be published ends the
// batch; records already sent are still marked so they are not sent again.
func (p *Publisher) PublishBatch(ctx context.Context) (int, error) {
	published := 0
	err := p.repo.WithTx(ctx, func(tx pgx.Tx) error {
		published = 0
		records, err := p.repo.ClaimUnpublished(ctx, tx, p.batchSize)
		if err != nil {
			return err
		}
		var oldest time.Time
		for _, rec := range records {
			if err := p.publish(ctx, rec); err != nil {
				p.logger.WithField("outbox_id", rec.ID).Error("failed to publish record: ", err)
				break
			}
			if err := p.repo.MarkPublished(ctx, tx, rec.ID, time.Now().UTC()); err != nil {
				return err
			}
			if oldest.IsZero() || rec.CreatedAt.Before(oldest) {
				oldest = rec.CreatedAt
			}
			published++
		}
		if !oldest.IsZero() {
			observability.OutboxLag.Set(time.Since(oldest).Seconds())
		}
		return nil
	})
	return published, err
}

func (p *Publisher) publish(ctx context.Context, rec crdb.OutboxRecord) error {
	msg := amqp.Publishing{
		MessageId:    rec.DedupeKey,
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    rec.CreatedAt,
		Type:         rec.EventType,
		Body:         rec.Payload,
	}
	var err error
	for i := 0; i < p.retries; i++ {
		if i > 0 {
			observability.RabbitPublishRetries.Inc()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.backoff * time.Duration(1<<(i-1))):
			}
		}
		if err = p.broker.Publish(ctx, rec.EventType, msg); err == nil {
			return nil
		}
	}
	return err
}
