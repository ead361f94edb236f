package worker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/event-ticketing/internal/domain"
	"github.com/robertarktes/event-ticketing/internal/observability"
	"github.com/robertarktes/event-ticketing/internal/outbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAudit struct {
	bookings   []domain.Booking
	releases   []string
	releaseErr error
}

func (a *fakeAudit) LogBooking(ctx context.Context, b domain.Booking) error {
	a.bookings = append(a.bookings, b)
	return nil
}

func (a *fakeAudit) LogRelease(ctx context.Context, r domain.SeatRelease, result string) error {
	if a.releaseErr != nil {
		err := a.releaseErr
		a.releaseErr = nil
		return err
	}
	a.releases = append(a.releases, result)
	return nil
}

// fakeReleaser refuses a release id it has already applied, like the event store.
type fakeReleaser struct {
	errs    []error
	calls   int
	applied map[uuid.UUID]int
}

func newFakeReleaser(errs ...error) *fakeReleaser {
	return &fakeReleaser{errs: errs, applied: map[uuid.UUID]int{}}
}

func (r *fakeReleaser) ReleaseSeats(ctx context.Context, rel domain.SeatRelease) error {
	r.calls++
	if len(r.errs) > 0 {
		err := r.errs[0]
		r.errs = r.errs[1:]
		if err != nil {
			return err
		}
	}
	if r.applied[rel.ID] > 0 {
		return errors.Mark(errors.New("already applied"), domain.ErrConflict)
	}
	r.applied[rel.ID]++
	return nil
}

type fakeBookings struct {
	stored map[uuid.UUID]bool
	err    error
}

func (b *fakeBookings) BookingExists(ctx context.Context, id uuid.UUID) (bool, error) {
	if b.err != nil {
		return false, b.err
	}
	return b.stored[id], nil
}

type fakeCache struct{ invalidated []uuid.UUID }

func (c *fakeCache) InvalidateEvent(ctx context.Context, id uuid.UUID) error {
	c.invalidated = append(c.invalidated, id)
	return nil
}

type testWorker struct {
	*BookingWorker
	audit    *fakeAudit
	bookings *fakeBookings
	cache    *fakeCache
}

func newTestWorker(rel *fakeReleaser) testWorker {
	tw := testWorker{
		audit:    &fakeAudit{},
		bookings: &fakeBookings{stored: map[uuid.UUID]bool{}},
		cache:    &fakeCache{},
	}
	tw.BookingWorker = NewBookingWorker(tw.audit, rel, tw.bookings, tw.cache, observability.NopLogger())
	tw.backoff = time.Millisecond
	return tw
}

func releaseBody(t *testing.T) (domain.SeatRelease, []byte) {
	t.Helper()
	r := domain.SeatRelease{ID: uuid.New(), BookingID: uuid.New(), EventID: uuid.New(), TicketType: "VIP", Quantity: 3, TotalSeats: 50}
	body, err := json.Marshal(r)
	require.NoError(t, err)
	return r, body
}

func TestHandle_BookingCreated(t *testing.T) {
	w := newTestWorker(newFakeReleaser())
	b := domain.Booking{ID: uuid.New(), TicketType: "VIP", TicketCount: 2, TotalPrice: 1198}
	body, _ := json.Marshal(b)

	require.NoError(t, w.Handle(context.Background(), outbox.EventBookingCreated, body))
	require.Len(t, w.audit.bookings, 1)
	assert.Equal(t, b.ID, w.audit.bookings[0].ID)
}

func TestHandle_ReleaseRetriesThenSucceeds(t *testing.T) {
	rel := newFakeReleaser(errors.New("timeout"), errors.New("timeout"))
	w := newTestWorker(rel)
	r, body := releaseBody(t)

	require.NoError(t, w.Handle(context.Background(), outbox.EventInventoryRelease, body))
	assert.Equal(t, 3, rel.calls)
	assert.Equal(t, []string{"released"}, w.audit.releases)
	assert.Equal(t, []uuid.UUID{r.EventID}, w.cache.invalidated)
}

func TestHandle_ReleaseConflictIsFinal(t *testing.T) {
	rel := newFakeReleaser(errors.Mark(errors.New("full"), domain.ErrConflict))
	w := newTestWorker(rel)
	_, body := releaseBody(t)

	require.NoError(t, w.Handle(context.Background(), outbox.EventInventoryRelease, body))
	assert.Equal(t, 1, rel.calls)
	assert.Equal(t, []string{"skipped"}, w.audit.releases)
	assert.Empty(t, w.cache.invalidated)
}

func TestHandle_RedeliveredReleaseAppliedOnce(t *testing.T) {
	rel := newFakeReleaser()
	w := newTestWorker(rel)
	w.audit.releaseErr = errors.New("mongo down")
	r, body := releaseBody(t)

	// The audit failure must not requeue a release that was applied.
	require.NoError(t, w.Handle(context.Background(), outbox.EventInventoryRelease, body))
	// A second delivery of the same message, as after a publisher retry.
	require.NoError(t, w.Handle(context.Background(), outbox.EventInventoryRelease, body))

	assert.Equal(t, 1, rel.applied[r.ID])
	assert.Equal(t, []string{"skipped"}, w.audit.releases)
}

func TestHandle_ReleaseDroppedWhenBookingStored(t *testing.T) {
	rel := newFakeReleaser()
	w := newTestWorker(rel)
	r, body := releaseBody(t)
	w.bookings.stored[r.BookingID] = true

	require.NoError(t, w.Handle(context.Background(), outbox.EventInventoryRelease, body))
	assert.Equal(t, 0, rel.calls)
	assert.Equal(t, []string{"booking_stored"}, w.audit.releases)
}

func TestHandle_ReleaseGivesUp(t *testing.T) {
	down := errors.New("down")
	rel := newFakeReleaser(down, down, down)
	w := newTestWorker(rel)
	_, body := releaseBody(t)

	err := w.Handle(context.Background(), outbox.EventInventoryRelease, body)
	assert.ErrorIs(t, err, down)
	assert.False(t, errors.Is(err, errMalformed))
	assert.Empty(t, w.audit.releases)
}

func TestHandle_BookingLookupDown(t *testing.T) {
	rel := newFakeReleaser()
	w := newTestWorker(rel)
	w.bookings.err = errors.New("down")
	_, body := releaseBody(t)

	err := w.Handle(context.Background(), outbox.EventInventoryRelease, body)
	assert.Error(t, err)
	assert.Equal(t, 0, rel.calls)
}

func TestHandle_Malformed(t *testing.T) {
	w := newTestWorker(newFakeReleaser())

	err := w.Handle(context.Background(), outbox.EventBookingCreated, []byte("{not json"))
	assert.True(t, errors.Is(err, errMalformed))

	err = w.Handle(context.Background(), "order.created", []byte("{}"))
	assert.True(t, errors.Is(err, errMalformed))
}
