package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const MaxTicketsPerBooking = 10

type ReserveRequest struct {
	EventID         uuid.UUID `json:"eventId"`
	TicketTypeName  string    `json:"ticketTypeName"`
	TicketCount     int       `json:"ticketCount"`
	PaymentMethod   string    `json:"paymentMethod"`
	SpecialRequests string    `json:"specialRequests,omitempty"`
}

// Validate checks the request without touching storage. Checks run in a fixed order so the
// first problem reported is stable.
func (r ReserveRequest) Validate() error {
	if strings.TrimSpace(r.TicketTypeName) == "" {
		return ErrMissingTicketType
	}
	if strings.TrimSpace(r.PaymentMethod) == "" {
		return ErrMissingPaymentMethod
	}
	if r.TicketCount > MaxTicketsPerBooking {
		return ErrQuantityExceeded
	}
	if r.TicketCount < 1 {
		return ErrInvalidQuantity
	}
	if r.EventID == uuid.Nil {
		return ErrMissingEvent
	}
	return nil
}

func NewBooking(userID uuid.UUID, req ReserveRequest, tier TicketTier, now time.Time) Booking {
	return Booking{
		ID:              uuid.New(),
		UserID:          userID,
		EventID:         req.EventID,
		TicketType:      tier.Name,
		TicketCount:     req.TicketCount,
		TotalPrice:      tier.Price * float64(req.TicketCount),
		PaymentMethod:   req.PaymentMethod,
		SpecialRequests: req.SpecialRequests,
		BookingDate:     now,
	}
}
