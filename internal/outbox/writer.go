package outbox

import (
	"context"
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/robertarktes/event-ticketing/internal/adapters/crdb"
	"github.com/robertarktes/event-ticketing/internal/domain"
)

const (
	EventBookingCreated   = "booking.created"
	EventInventoryRelease = "inventory.release"
)

type WriteStore interface {
	WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error
	InsertOutbox(ctx context.Context, tx pgx.Tx, record crdb.OutboxRecord) error
}

// Writer records reservation facts in the outbox table for the publisher to forward.
type Writer struct {
	store WriteStore
}

func NewWriter(store WriteStore) *Writer {
	return &Writer{store: store}
}

func (w *Writer) BookingCreated(ctx context.Context, b domain.Booking) error {
	return w.enqueue(ctx, "booking", b.ID, EventBookingCreated, EventBookingCreated+":"+b.ID.String(), b)
}

// ReleasePending records seats that still have to be given back, deduplicated by release id.
func (w *Writer) ReleasePending(ctx context.Context, r domain.SeatRelease) error {
	return w.enqueue(ctx, "event", r.EventID, EventInventoryRelease, EventInventoryRelease+":"+r.ID.String(), r)
}

func (w *Writer) enqueue(ctx context.Context, aggregate string, id uuid.UUID, eventType, dedupe string, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "marshal outbox payload")
	}
	rec := crdb.OutboxRecord{
		ID:            uuid.New(),
		AggregateType: aggregate,
		AggregateID:   id,
		EventType:     eventType,
		Payload:       payload,
		DedupeKey:     dedupe,
	}
	err = w.store.WithTx(ctx, func(tx pgx.Tx) error {
		return w.store.InsertOutbox(ctx, tx, rec)
	})
	return errors.Wrapf(err, "enqueue %s", eventType)
}
