// Package worker consumes reservation events from the broker: it audits new bookings and
// applies seat releases that the API could not apply itself.
package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/robertarktes/event-ticketing/internal/domain"
	"github.com/robertarktes/event-ticketing/internal/observability"
	"github.com/robertarktes/event-ticketing/internal/outbox"
)

var errMalformed = errors.New("malformed message")

type Auditor interface {
	LogBooking(ctx context.Context, b domain.Booking) error
	LogRelease(ctx context.Context, r domain.SeatRelease, result string) error
}

type Releaser interface {
	ReleaseSeats(ctx context.Context, r domain.SeatRelease) error
}

// BookingChecker tells whether the booking behind a queued release was stored after all.
type BookingChecker interface {
	BookingExists(ctx context.Context, id uuid.UUID) (bool, error)
}

type CacheInvalidator interface {
	InvalidateEvent(ctx context.Context, id uuid.UUID) error
}

type BookingWorker struct {
	audit      Auditor
	releaser   Releaser
	bookings   BookingChecker
	cache      CacheInvalidator
	logger     observability.Logger
	maxRetries int
	backoff    time.Duration
}

// NewBookingWorker wires the worker. cache may be nil.
func NewBookingWorker(audit Auditor, releaser Releaser, bookings BookingChecker, cache CacheInvalidator, logger observability.Logger) *BookingWorker {
	return &BookingWorker{
		audit:      audit,
		releaser:   releaser,
		bookings:   bookings,
		cache:      cache,
		logger:     logger,
		maxRetries: 3,
		backoff:    time.Second,
	}
}

// Run handles deliveries until ctx is done or the channel closes. Malformed messages are
// dropped; anything else that fails is requeued.
func (w *BookingWorker) Run(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				w.logger.Warn("delivery channel closed")
				return
			}
			err := w.Handle(ctx, d.RoutingKey, d.Body)
			switch {
			case err == nil:
				d.Ack(false)
			case errors.Is(err, errMalformed):
				w.logger.WithField("message_id", d.MessageId).Error("dropping message: ", err)
				d.Nack(false, false)
			default:
				w.logger.WithField("message_id", d.MessageId).Error("failed to handle message: ", err)
				d.Nack(false, true)
			}
		}
	}
}

func (w *BookingWorker) Handle(ctx context.Context, key string, body []byte) error {
	switch key {
	case outbox.EventBookingCreated:
		var b domain.Booking
		if err := json.Unmarshal(body, &b); err != nil {
			return errors.Mark(errors.Wrap(err, "decode booking"), errMalformed)
		}
		return w.audit.LogBooking(ctx, b)
	case outbox.EventInventoryRelease:
		var r domain.SeatRelease
		if err := json.Unmarshal(body, &r); err != nil {
			return errors.Mark(errors.Wrap(err, "decode release"), errMalformed)
		}
		return w.release(ctx, r)
	default:
		return errors.Mark(errors.Newf("unexpected routing key %q", key), errMalformed)
	}
}

// release applies a queued seat release at most once: the store refuses a release id it has
// already applied, and a release whose booking exists is dropped. Once the store has answered,
// the message is settled even if the audit write fails, so a redelivery never repeats it.
func (w *BookingWorker) release(ctx context.Context, r domain.SeatRelease) error {
	log := w.logger.WithField("event_id", r.EventID).WithField("ticket_type", r.TicketType).WithField("release_id", r.ID)

	var err error
	for i := 0; i < w.maxRetries; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(w.backoff * time.Duration(1<<(i-1))):
			}
		}

		var exists bool
		exists, err = w.bookings.BookingExists(ctx, r.BookingID)
		if err != nil {
			continue
		}
		if exists {
			log.Warn("booking was stored, dropping seat release")
			observability.Compensations.WithLabelValues("booking_stored").Inc()
			w.auditRelease(ctx, log, r, "booking_stored")
			return nil
		}

		err = w.releaser.ReleaseSeats(ctx, r)
		if err == nil || errors.Is(err, domain.ErrConflict) {
			break
		}
	}

	switch {
	case err == nil:
		log.Info("released seats")
		observability.Compensations.WithLabelValues("released").Inc()
		if w.cache != nil {
			if err := w.cache.InvalidateEvent(ctx, r.EventID); err != nil {
				log.Warn("failed to invalidate event cache: ", err)
			}
		}
		w.auditRelease(ctx, log, r, "released")
		return nil
	case errors.Is(err, domain.ErrConflict):
		log.Warn("seat release refused: ", err)
		observability.Compensations.WithLabelValues("skipped").Inc()
		w.auditRelease(ctx, log, r, "skipped")
		return nil
	default:
		return errors.Wrapf(err, "release failed after %d retries", w.maxRetries)
	}
}

func (w *BookingWorker) auditRelease(ctx context.Context, log observability.Logger, r domain.SeatRelease, result string) {
	if err := w.audit.LogRelease(ctx, r, result); err != nil {
		log.Error("failed to audit seat release: ", err)
	}
}
