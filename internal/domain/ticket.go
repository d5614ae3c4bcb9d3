package domain

import (
	"fmt"
	"time"
)

// Ticket links a customer to one flight, optionally with an assigned seat.
// SeatNumber nil means the customer flies without a selected seat.
type Ticket struct {
	ID           string    `json:"id"`
	CustomerID   string    `json:"customer_id"`
	FlightID     int64     `json:"flight_id"`
	SeatNumber   *int      `json:"seat_number,omitempty"`
	FlightDate   time.Time `json:"flight_date"`
	FlightNumber int       `json:"flight_number"`
	CreatedAt    time.Time `json:"created_at"`
}

// Details renders the flight label used in booking responses
func (t *Ticket) Details() string {
	return fmt.Sprintf("Flight %d on %s", t.FlightNumber, t.FlightDate.Format(DateLayout))
}

// HistoryEntry is one row of a customer's booking history, a ticket joined
// with its flight and route
type HistoryEntry struct {
	FlightNumber    int       `json:"flight_number"`
	SeatNumber      *int      `json:"seat_number,omitempty"`
	DepartureCity   string    `json:"departure_city"`
	DestinationCity string    `json:"destination_city"`
	FlightDate      time.Time `json:"flight_date"`
	DepartureTime   string    `json:"departure_time"`
	ArrivalTime     string    `json:"arrival_time"`
}
