package domain

import "strings"

type Role int

const (
	RoleUser Role = iota
	RoleAdmin
)

// ParseRole maps a token claim to a Role. Anything unrecognised is a plain user.
func ParseRole(s string) Role {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "admin":
		return RoleAdmin
	default:
		return RoleUser
	}
}

func (r Role) String() string {
	if r == RoleAdmin {
		return "admin"
	}
	return "user"
}

type Capability int

const (
	CapBookTickets Capability = iota
	CapViewOwnBookings
	CapCreateEvent
	CapViewAllBookings
)

func (c Capability) String() string {
	switch c {
	case CapBookTickets:
		return "book_tickets"
	case CapViewOwnBookings:
		return "view_own_bookings"
	case CapCreateEvent:
		return "create_event"
	case CapViewAllBookings:
		return "view_all_bookings"
	}
	return "unknown"
}

var grants = map[Role][]Capability{
	RoleUser:  {CapBookTickets, CapViewOwnBookings},
	RoleAdmin: {CapBookTickets, CapViewOwnBookings, CapCreateEvent, CapViewAllBookings},
}

// Allows reports whether role holds capability.
func Allows(role Role, c Capability) bool {
	for _, g := range grants[role] {
		if g == c {
			return true
		}
	}
	return false
}
