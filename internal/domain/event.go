package domain

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type CreateEventRequest struct {
	Title       string              `json:"title" validate:"required,max=200"`
	Description string              `json:"description" validate:"required"`
	Date        time.Time           `json:"date" validate:"required"`
	Location    string              `json:"location" validate:"required"`
	TicketTypes []CreateTierRequest `json:"ticketTypes" validate:"required,min=1,unique=Name,dive"`
}

type CreateTierRequest struct {
	Name        string  `json:"name" validate:"required"`
	Price       float64 `json:"price" validate:"gte=0"`
	Description string  `json:"description"`
	TotalSeats  int     `json:"totalSeats" validate:"gte=1"`
}

// NewEvent builds an event from an admin request. Every tier starts fully available.
func NewEvent(req CreateEventRequest, now time.Time) (Event, error) {
	for i := range req.TicketTypes {
		req.TicketTypes[i].Name = strings.TrimSpace(req.TicketTypes[i].Name)
	}
	if err := validate.Struct(req); err != nil {
		return Event{}, errors.Mark(errors.Wrap(err, "create event"), ErrInvalidInput)
	}
	if !req.Date.After(now) {
		return Event{}, errors.Mark(errors.New("event date must be in the future"), ErrInvalidInput)
	}

	tiers := make([]TicketTier, len(req.TicketTypes))
	for i, t := range req.TicketTypes {
		tiers[i] = TicketTier{
			Name:           t.Name,
			Price:          t.Price,
			Description:    t.Description,
			TotalSeats:     t.TotalSeats,
			AvailableSeats: t.TotalSeats,
		}
	}
	return Event{
		ID:          uuid.New(),
		Title:       req.Title,
		Description: req.Description,
		Date:        req.Date.UTC(),
		Location:    req.Location,
		TicketTypes: tiers,
		CreatedAt:   now,
	}, nil
}

func (e *Event) Summary() *EventSummary {
	return &EventSummary{ID: e.ID, Title: e.Title, Date: e.Date, Location: e.Location}
}
