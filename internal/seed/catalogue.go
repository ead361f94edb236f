// Package seed holds the demo event catalogue.
package seed

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/robertarktes/event-ticketing/internal/domain"
)

type demoEvent struct {
	in  time.Duration
	req domain.CreateEventRequest
}

const day = 24 * time.Hour

var demo = []demoEvent{
	{60 * day, domain.CreateEventRequest{
		Title:       "Tech Conference",
		Description: "Join us for the biggest tech conference of the year featuring industry leaders and innovative workshops.",
		Location:    "San Francisco, CA",
		TicketTypes: []domain.CreateTierRequest{
			{Name: "General Admission", Price: 299, Description: "Access to all main stage talks.", TotalSeats: 300},
			{Name: "VIP", Price: 599, Description: "Front row seating, exclusive lounge access, and after-party.", TotalSeats: 50},
			{Name: "Student", Price: 99, Description: "Valid student ID required.", TotalSeats: 150},
		},
	}},
	{95 * day, domain.CreateEventRequest{
		Title:       "Summer Music Festival",
		Description: "A weekend of live music, food, and fun under the sun. Featuring top artists from around the globe.",
		Location:    "Austin, TX",
		TicketTypes: []domain.CreateTierRequest{
			{Name: "Weekend Pass", Price: 150, Description: "Access for the full weekend.", TotalSeats: 1500},
			{Name: "Day Pass", Price: 80, Description: "Valid for one day only.", TotalSeats: 500},
			{Name: "Backstage Experience", Price: 400, Description: "Meet and greet with artists.", TotalSeats: 20},
		},
	}},
	{25 * day, domain.CreateEventRequest{
		Title:       "React Workshop",
		Description: "Hands-on workshop to master React and build modern web applications.",
		Location:    "New York, NY",
		TicketTypes: []domain.CreateTierRequest{
			{Name: "Standard", Price: 99, Description: "Workshop materials included.", TotalSeats: 50},
		},
	}},
	{111 * day, domain.CreateEventRequest{
		Title:       "Startup Networking Night",
		Description: "Connect with fellow entrepreneurs, investors, and innovators.",
		Location:    "London, UK",
		TicketTypes: []domain.CreateTierRequest{
			{Name: "Entry", Price: 25, Description: "Includes 2 drink tickets.", TotalSeats: 100},
		},
	}},
	{149 * day, domain.CreateEventRequest{
		Title:       "AI & Machine Learning Summit",
		Description: "Explore the future of AI with experts in the field.",
		Location:    "Boston, MA",
		TicketTypes: []domain.CreateTierRequest{
			{Name: "Regular", Price: 350, Description: "Full conference access.", TotalSeats: 250},
			{Name: "Workshop Add-on", Price: 150, Description: "Extra day of hands-on training.", TotalSeats: 50},
		},
	}},
	{10 * day, domain.CreateEventRequest{
		Title:       "Photography Masterclass",
		Description: "Learn the art of photography from award-winning photographers.",
		Location:    "Paris, France",
		TicketTypes: []domain.CreateTierRequest{
			{Name: "Participant", Price: 200, Description: "Bring your own camera.", TotalSeats: 30},
		},
	}},
}

// Catalogue returns the demo events dated relative to now, every tier fully available.
func Catalogue(now time.Time) ([]domain.Event, error) {
	events := make([]domain.Event, 0, len(demo))
	for _, d := range demo {
		req := d.req
		req.TicketTypes = append([]domain.CreateTierRequest(nil), d.req.TicketTypes...)
		req.Date = now.Add(d.in).Truncate(time.Hour)
		event, err := domain.NewEvent(req, now)
		if err != nil {
			return nil, errors.Wrapf(err, "seed event %q", req.Title)
		}
		events = append(events, event)
	}
	return events, nil
}
