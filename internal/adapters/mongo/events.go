package mongo

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/event-ticketing/internal/domain"
	"github.com/robertarktes/event-ticketing/internal/observability"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	eventsCollection   = "events"
	bookingsCollection = "bookings"
)

type EventRepository struct {
	coll   *mongo.Collection
	logger observability.Logger
}

func NewEventRepository(db *mongo.Database, logger observability.Logger) *EventRepository {
	return &EventRepository{
		coll:   db.Collection(eventsCollection),
		logger: logger,
	}
}

// ReserveSeats is the single atomic step of a reservation. $elemMatch pins the name and the
// seat count to the same tier element, and the positional $ decrements exactly that element.
func (r *EventRepository) ReserveSeats(ctx context.Context, eventID uuid.UUID, tier string, qty int, now time.Time) (*domain.Event, error) {
	filter := bson.M{
		"_id":  eventID,
		"date": bson.M{"$gt": now},
		"ticketTypes": bson.M{"$elemMatch": bson.M{
			"name":           tier,
			"availableSeats": bson.M{"$gte": qty},
		}},
	}
	update := bson.M{"$inc": bson.M{"ticketTypes.$.availableSeats": -qty}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var event domain.Event
	err := r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&event)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		r.logger.Error("failed to reserve seats: ", err)
		return nil, err
	}
	return &event, nil
}

// ReleaseSeats adds seats back to a tier. The filter refuses any release that would push
// availableSeats above the tier's total, and any release whose id was already applied; the
// id is recorded in the same update.
func (r *EventRepository) ReleaseSeats(ctx context.Context, rel domain.SeatRelease) error {
	filter := bson.M{
		"_id":             rel.EventID,
		"appliedReleases": bson.M{"$ne": rel.ID},
		"ticketTypes": bson.M{"$elemMatch": bson.M{
			"name":           rel.TicketType,
			"availableSeats": bson.M{"$lte": rel.TotalSeats - rel.Quantity},
		}},
	}
	update := bson.M{
		"$inc":  bson.M{"ticketTypes.$.availableSeats": rel.Quantity},
		"$push": bson.M{"appliedReleases": rel.ID},
	}

	res, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		r.logger.Error("failed to release seats: ", err)
		return err
	}
	if res.MatchedCount == 0 {
		return errors.Mark(errors.Newf("release %s of %d %q seats on event %s refused", rel.ID, rel.Quantity, rel.TicketType, rel.EventID), domain.ErrConflict)
	}
	return nil
}

func (r *EventRepository) GetEvent(ctx context.Context, id uuid.UUID) (*domain.Event, error) {
	var event domain.Event
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&event)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		r.logger.Error("failed to get event: ", err)
		return nil, err
	}
	return &event, nil
}

func (r *EventRepository) ListEvents(ctx context.Context) ([]domain.Event, error) {
	cur, err := r.coll.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "date", Value: 1}}))
	if err != nil {
		r.logger.Error("failed to list events: ", err)
		return nil, err
	}
	events := []domain.Event{}
	if err := cur.All(ctx, &events); err != nil {
		return nil, err
	}
	return events, nil
}

func (r *EventRepository) CreateEvent(ctx context.Context, event domain.Event) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	_, err := r.coll.InsertOne(ctx, event)
	if err != nil {
		r.logger.Error("failed to create event: ", err)
		return err
	}
	return nil
}

// ReplaceAll drops every event and inserts the given ones. Used by the seeder.
func (r *EventRepository) ReplaceAll(ctx context.Context, events []domain.Event) error {
	if _, err := r.coll.DeleteMany(ctx, bson.M{}); err != nil {
		return errors.Wrap(err, "delete events")
	}
	if len(events) == 0 {
		return nil
	}
	docs := make([]interface{}, len(events))
	for i, e := range events {
		docs[i] = e
	}
	_, err := r.coll.InsertMany(ctx, docs)
	return errors.Wrap(err, "insert events")
}

func (r *EventRepository) Ping(ctx context.Context) error {
	return r.coll.Database().Client().Ping(ctx, nil)
}

// EnsureIndexes creates the indexes the listings sort on.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(eventsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "date", Value: 1}},
	})
	if err != nil {
		return errors.Wrap(err, "events index")
	}
	_, err = db.Collection(bookingsCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "user", Value: 1}, {Key: "bookingDate", Value: -1}}},
		{Keys: bson.D{{Key: "bookingDate", Value: -1}}},
	})
	return errors.Wrap(err, "bookings index")
}
