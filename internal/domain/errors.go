package domain

import "github.com/cockroachdb/errors"

var (
	ErrSerializationFailure = errors.New("serialization failure")
	ErrNotFound             = errors.New("not found")
	ErrConflict             = errors.New("conflict")
	ErrInvalidInput         = errors.New("invalid input")
)

// Reservation failures. Validation errors are also marked with ErrInvalidInput.
var (
	ErrMissingTicketType    = errors.Mark(errors.New("ticket type is required"), ErrInvalidInput)
	ErrMissingPaymentMethod = errors.Mark(errors.New("payment method is required"), ErrInvalidInput)
	ErrQuantityExceeded     = errors.Mark(errors.Newf("max %d tickets per booking", MaxTicketsPerBooking), ErrInvalidInput)
	ErrInvalidQuantity      = errors.Mark(errors.New("ticket count must be at least 1"), ErrInvalidInput)
	ErrMissingEvent         = errors.Mark(errors.New("event id is required"), ErrInvalidInput)

	ErrEventExpired          = errors.New("cannot book past events")
	ErrInsufficientInventory = errors.New("not enough seats available or event not found")
	ErrEventNotFound         = errors.Mark(errors.New("event not found"), ErrInsufficientInventory)
	ErrTierNotFound          = errors.Mark(errors.New("ticket type not found"), ErrInsufficientInventory)

	ErrPersistence = errors.New("server error")
)

// Persistence marks a storage failure so callers can match it with ErrPersistence.
func Persistence(err error, op string) error {
	return errors.Mark(errors.Wrap(err, op), ErrPersistence)
}
