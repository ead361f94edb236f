package domain

import (
	"time"

	"github.com/google/uuid"
)

type Event struct {
	ID          uuid.UUID    `json:"id" bson:"_id"`
	Title       string       `json:"title" bson:"title"`
	Description string       `json:"description" bson:"description"`
	Date        time.Time    `json:"date" bson:"date"`
	Location    string       `json:"location" bson:"location"`
	TicketTypes []TicketTier `json:"ticketTypes" bson:"ticketTypes"`
	CreatedAt   time.Time    `json:"createdAt" bson:"createdAt"`
	// AppliedReleases lists SeatRelease ids already applied, so a redelivered release is
	// refused instead of returning the same seats twice.
	AppliedReleases []uuid.UUID `json:"-" bson:"appliedReleases,omitempty"`
}

// TicketTier is a named seat pool on an event. AvailableSeats stays within [0, TotalSeats].
type TicketTier struct {
	Name           string  `json:"name" bson:"name"`
	Price          float64 `json:"price" bson:"price"`
	Description    string  `json:"description,omitempty" bson:"description,omitempty"`
	TotalSeats     int     `json:"totalSeats" bson:"totalSeats"`
	AvailableSeats int     `json:"availableSeats" bson:"availableSeats"`
}

// Tier returns the tier with the given name.
func (e *Event) Tier(name string) (TicketTier, bool) {
	for _, t := range e.TicketTypes {
		if t.Name == name {
			return t, true
		}
	}
	return TicketTier{}, false
}

// Booking is a snapshot taken at reservation time. TicketType and TotalPrice are copied from
// the tier and never follow later changes to the event.
type Booking struct {
	ID              uuid.UUID `json:"id" bson:"_id"`
	UserID          uuid.UUID `json:"user" bson:"user"`
	EventID         uuid.UUID `json:"event" bson:"event"`
	TicketType      string    `json:"ticketType" bson:"ticketType"`
	TicketCount     int       `json:"ticketCount" bson:"ticketCount"`
	TotalPrice      float64   `json:"totalPrice" bson:"totalPrice"`
	PaymentMethod   string    `json:"paymentMethod" bson:"paymentMethod"`
	SpecialRequests string    `json:"specialRequests,omitempty" bson:"specialRequests,omitempty"`
	BookingDate     time.Time `json:"bookingDate" bson:"bookingDate"`
}

type EventSummary struct {
	ID       uuid.UUID `json:"id"`
	Title    string    `json:"title"`
	Date     time.Time `json:"date"`
	Location string    `json:"location"`
}

// BookingView is a booking joined with a summary of its event for listings.
type BookingView struct {
	Booking
	Event *EventSummary `json:"eventSummary,omitempty"`
}

// SeatRelease returns seats taken by a reservation whose booking could not be stored. ID
// identifies the release itself and is applied at most once.
type SeatRelease struct {
	ID         uuid.UUID `json:"id"`
	BookingID  uuid.UUID `json:"bookingId"`
	EventID    uuid.UUID `json:"eventId"`
	TicketType string    `json:"ticketType"`
	Quantity   int       `json:"quantity"`
	TotalSeats int       `json:"totalSeats"`
	UserID     uuid.UUID `json:"userId"`
}
