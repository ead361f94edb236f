package mongo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/robertarktes/event-ticketing/internal/domain"
	"github.com/robertarktes/event-ticketing/internal/observability"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type AuditLogger struct {
	coll   *mongo.Collection
	logger observability.Logger
}

func NewAuditLogger(db *mongo.Database, logger observability.Logger) *AuditLogger {
	return &AuditLogger{
		coll:   db.Collection("audit_logs"),
		logger: logger,
	}
}

type AuditLog struct {
	ID        uuid.UUID `bson:"_id"`
	Action    string    `bson:"action"`
	UserID    uuid.UUID `bson:"user_id"`
	Timestamp time.Time `bson:"timestamp"`
	Data      bson.M    `bson:"data"`
}

func (a *AuditLogger) LogEvent(ctx context.Context, action string, userID uuid.UUID, data map[string]interface{}) error {
	log := AuditLog{
		ID:        uuid.New(),
		Action:    action,
		UserID:    userID,
		Timestamp: time.Now().UTC(),
		Data:      bson.M(data),
	}
	_, err := a.coll.InsertOne(ctx, log)
	if err != nil {
		a.logger.Error("failed to insert audit log: ", err)
		return err
	}
	return nil
}

func (a *AuditLogger) LogBooking(ctx context.Context, b domain.Booking) error {
	data := map[string]interface{}{
		"booking_id":     b.ID.String(),
		"event_id":       b.EventID.String(),
		"ticket_type":    b.TicketType,
		"ticket_count":   b.TicketCount,
		"total_price":    b.TotalPrice,
		"payment_method": b.PaymentMethod,
	}
	return a.LogEvent(ctx, "booking.created", b.UserID, data)
}

func (a *AuditLogger) LogRelease(ctx context.Context, r domain.SeatRelease, result string) error {
	data := map[string]interface{}{
		"event_id":    r.EventID.String(),
		"ticket_type": r.TicketType,
		"quantity":    r.Quantity,
		"result":      result,
	}
	return a.LogEvent(ctx, "inventory.release", r.UserID, data)
}
