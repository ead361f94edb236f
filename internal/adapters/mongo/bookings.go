package mongo

import (
	"context"

	"github.com/google/uuid"
	"github.com/robertarktes/event-ticketing/internal/domain"
	"github.com/robertarktes/event-ticketing/internal/observability"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type BookingRepository struct {
	coll   *mongo.Collection
	events *mongo.Collection
	logger observability.Logger
}

func NewBookingRepository(db *mongo.Database, logger observability.Logger) *BookingRepository {
	return &BookingRepository{
		coll:   db.Collection(bookingsCollection),
		events: db.Collection(eventsCollection),
		logger: logger,
	}
}

func (r *BookingRepository) InsertBooking(ctx context.Context, b domain.Booking) error {
	_, err := r.coll.InsertOne(ctx, b)
	if err != nil {
		r.logger.Error("failed to insert booking: ", err)
		return err
	}
	return nil
}

// BookingExists reports whether a booking with id was stored.
func (r *BookingRepository) BookingExists(ctx context.Context, id uuid.UUID) (bool, error) {
	n, err := r.coll.CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListByUser returns the user's bookings, newest first.
func (r *BookingRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.BookingView, error) {
	return r.list(ctx, bson.M{"user": userID})
}

func (r *BookingRepository) ListAll(ctx context.Context) ([]domain.BookingView, error) {
	return r.list(ctx, bson.M{})
}

func (r *BookingRepository) list(ctx context.Context, filter bson.M) ([]domain.BookingView, error) {
	opts := options.Find().SetSort(bson.D{{Key: "bookingDate", Value: -1}})
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		r.logger.Error("failed to list bookings: ", err)
		return nil, err
	}
	var bookings []domain.Booking
	if err := cur.All(ctx, &bookings); err != nil {
		return nil, err
	}

	summaries, err := r.eventSummaries(ctx, bookings)
	if err != nil {
		return nil, err
	}
	views := make([]domain.BookingView, len(bookings))
	for i, b := range bookings {
		views[i] = domain.BookingView{Booking: b, Event: summaries[b.EventID]}
	}
	return views, nil
}

// eventSummaries loads title, date and location of every event referenced by bookings in one
// query. Events that no longer exist are simply missing from the map.
func (r *BookingRepository) eventSummaries(ctx context.Context, bookings []domain.Booking) (map[uuid.UUID]*domain.EventSummary, error) {
	out := make(map[uuid.UUID]*domain.EventSummary)
	if len(bookings) == 0 {
		return out, nil
	}
	seen := make(map[uuid.UUID]struct{})
	ids := make([]uuid.UUID, 0, len(bookings))
	for _, b := range bookings {
		if _, ok := seen[b.EventID]; ok {
			continue
		}
		seen[b.EventID] = struct{}{}
		ids = append(ids, b.EventID)
	}

	proj := options.Find().SetProjection(bson.M{"title": 1, "date": 1, "location": 1})
	cur, err := r.events.Find(ctx, bson.M{"_id": bson.M{"$in": ids}}, proj)
	if err != nil {
		r.logger.Error("failed to load booked events: ", err)
		return nil, err
	}
	var events []domain.Event
	if err := cur.All(ctx, &events); err != nil {
		return nil, err
	}
	for i := range events {
		out[events[i].ID] = events[i].Summary()
	}
	return out, nil
}
