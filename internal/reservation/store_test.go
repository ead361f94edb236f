package reservation_test

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/event-ticketing/internal/domain"
)

// memStore applies the same predicates as the Mongo adapter under one mutex, which gives the
// per-document atomicity the engine relies on.
type memStore struct {
	mu       sync.Mutex
	events   map[uuid.UUID]domain.Event
	bookings []domain.Booking

	reserveErr error
	insertErr  error
	releaseErr error
	existsErr  error
	// storedErr makes InsertBooking store the booking and still report an error, like a
	// write whose reply was lost.
	storedErr error
	// afterInsert runs under the lock after a failed insert.
	afterInsert func(s *memStore)

	releases int
	applied  map[uuid.UUID]bool
}

func newMemStore(events ...domain.Event) *memStore {
	s := &memStore{events: make(map[uuid.UUID]domain.Event), applied: make(map[uuid.UUID]bool)}
	for _, e := range events {
		s.events[e.ID] = e
	}
	return s
}

func clone(e domain.Event) *domain.Event {
	e.TicketTypes = append([]domain.TicketTier(nil), e.TicketTypes...)
	return &e
}

func (s *memStore) ReserveSeats(ctx context.Context, eventID uuid.UUID, tier string, qty int, now time.Time) (*domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reserveErr != nil {
		return nil, s.reserveErr
	}
	ev, ok := s.events[eventID]
	if !ok || !ev.Date.After(now) {
		return nil, domain.ErrNotFound
	}
	for i, t := range ev.TicketTypes {
		if t.Name == tier && t.AvailableSeats >= qty {
			ev.TicketTypes[i].AvailableSeats -= qty
			s.events[eventID] = ev
			return clone(ev), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *memStore) ReleaseSeats(ctx context.Context, r domain.SeatRelease) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releases++
	if s.releaseErr != nil {
		return s.releaseErr
	}
	ev, ok := s.events[r.EventID]
	if !ok || s.applied[r.ID] {
		return errors.Mark(errors.New("release refused"), domain.ErrConflict)
	}
	for i, t := range ev.TicketTypes {
		if t.Name == r.TicketType && t.AvailableSeats+r.Quantity <= t.TotalSeats {
			ev.TicketTypes[i].AvailableSeats += r.Quantity
			s.events[r.EventID] = ev
			s.applied[r.ID] = true
			return nil
		}
	}
	return errors.Mark(errors.New("release refused"), domain.ErrConflict)
}

func (s *memStore) GetEvent(ctx context.Context, id uuid.UUID) (*domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.events[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return clone(ev), nil
}

func (s *memStore) InsertBooking(ctx context.Context, b domain.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.storedErr != nil {
		s.bookings = append(s.bookings, b)
		return s.storedErr
	}
	if s.insertErr != nil {
		if s.afterInsert != nil {
			s.afterInsert(s)
		}
		return s.insertErr
	}
	s.bookings = append(s.bookings, b)
	return nil
}

func (s *memStore) BookingExists(ctx context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.existsErr != nil {
		return false, s.existsErr
	}
	for _, b := range s.bookings {
		if b.ID == id {
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) available(eventID uuid.UUID, tier string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev := s.events[eventID]
	t, _ := ev.Tier(tier)
	return t.AvailableSeats
}

type recordingNotifier struct {
	mu         sync.Mutex
	created    []domain.Booking
	released   []domain.SeatRelease
	releaseErr error
}

func (n *recordingNotifier) BookingCreated(ctx context.Context, b domain.Booking) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.created = append(n.created, b)
	return nil
}

func (n *recordingNotifier) ReleasePending(ctx context.Context, r domain.SeatRelease) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.releaseErr != nil {
		return n.releaseErr
	}
	n.released = append(n.released, r)
	return nil
}

var errDown = errors.New("connection refused")
