package domain

import (
	"fmt"
	"time"
)

// DateLayout is the wire format for flight dates
const DateLayout = "2006-01-02"

// Flight is a dated instantiation of a flight route. AvailableTickets and
// Version are mutated only through the version-gated update in the
// repository; a plain read is non-authoritative.
type Flight struct {
	FlightID         int64     `json:"flight_id"`
	FlightNumber     int       `json:"flight_number"`
	FlightDate       time.Time `json:"flight_date"`
	AvailableTickets int       `json:"available_tickets"`
	Version          int64     `json:"version"`
}

// IsFullyBooked reports whether the quota is exhausted
func (f *Flight) IsFullyBooked() bool {
	return f.AvailableTickets <= 0
}

// Details renders the flight label used in booking responses
func (f *Flight) Details() string {
	return fmt.Sprintf("Flight %d on %s", f.FlightNumber, f.FlightDate.Format(DateLayout))
}

// FlightDetail is one flight search result, a flight joined with its route
type FlightDetail struct {
	FlightID         int64     `json:"flight_id"`
	FlightNumber     int       `json:"flight_number"`
	DepartureCity    string    `json:"departure_city"`
	DestinationCity  string    `json:"destination_city"`
	DepartureTime    string    `json:"departure_time"`
	ArrivalTime      string    `json:"arrival_time"`
	AvailableTickets int       `json:"available_tickets"`
	FlightDate       time.Time `json:"flight_date"`
}

// FlightSearchCriteria filters the flight search. EndDate nil means an exact
// date match; set, it widens the search to [DepartureDate, EndDate].
type FlightSearchCriteria struct {
	DepartureCity   string
	DestinationCity string
	DepartureDate   time.Time
	EndDate         *time.Time
}
