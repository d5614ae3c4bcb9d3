package dto

import (
	"strconv"

	"github.com/prohmpiriya/flight-rush/internal/domain"
)

// FlightBookingRequest is one leg of a multi-leg booking
type FlightBookingRequest struct {
	FlightNumber  int    `json:"flight_number" binding:"required"`
	FlightDate    string `json:"flight_date" binding:"required"`
	PreferredSeat *int   `json:"preferred_seat,omitempty"`
}

// TicketBookingRequest represents a multi-leg booking request
type TicketBookingRequest struct {
	Flights []FlightBookingRequest `json:"flights" binding:"required,min=1,dive"`
}

// FlightBookingResponse is the outcome of one booked leg. SeatNumber is nil
// when no seat was requested or the preferred seat could not be claimed.
type FlightBookingResponse struct {
	TicketID      string `json:"ticket_id"`
	FlightDetails string `json:"flight_details"`
	SeatNumber    *int   `json:"seat_number,omitempty"`
}

// TicketBookingResponse represents the aggregate outcome of a booking request
type TicketBookingResponse struct {
	BookingStatus  string                  `json:"booking_status"`
	FlightBookings []FlightBookingResponse `json:"flight_bookings"`
}

// SeatBookingRequest asks to claim or change a seat on an already booked flight
type SeatBookingRequest struct {
	FlightNumber int    `json:"flight_number" binding:"required"`
	FlightDate   string `json:"flight_date" binding:"required"`
	SeatNumber   int    `json:"seat_number" binding:"required"`
}

// SeatBookingResponse confirms a seat assignment
type SeatBookingResponse struct {
	FlightNumber int    `json:"flight_number"`
	FlightDate   string `json:"flight_date"`
	SeatNumber   int    `json:"seat_number"`
	SeatStatus   string `json:"seat_status"`
}

// CancelTicketResponse confirms a ticket cancellation
type CancelTicketResponse struct {
	TicketID string `json:"ticket_id"`
	Status   string `json:"status"`
}

// BookingHistoryDetail is one row of a customer's booking history
type BookingHistoryDetail struct {
	FlightNumber    int    `json:"flight_number"`
	SeatNumber      string `json:"seat_number"`
	DepartureCity   string `json:"departure_city"`
	DestinationCity string `json:"destination_city"`
	FlightDate      string `json:"flight_date"`
	DepartureTime   string `json:"departure_time"`
	ArrivalTime     string `json:"arrival_time"`
}

// BookingHistoryResponse represents a customer's booking history
type BookingHistoryResponse struct {
	Flights []BookingHistoryDetail `json:"flights"`
}

// HistoryFromDomain converts history rows to the API shape. A missing seat
// renders as "Not Selected".
func HistoryFromDomain(entries []domain.HistoryEntry) *BookingHistoryResponse {
	flights := make([]BookingHistoryDetail, 0, len(entries))
	for _, e := range entries {
		seat := "Not Selected"
		if e.SeatNumber != nil {
			seat = strconv.Itoa(*e.SeatNumber)
		}
		flights = append(flights, BookingHistoryDetail{
			FlightNumber:    e.FlightNumber,
			SeatNumber:      seat,
			DepartureCity:   e.DepartureCity,
			DestinationCity: e.DestinationCity,
			FlightDate:      e.FlightDate.Format(domain.DateLayout),
			DepartureTime:   e.DepartureTime,
			ArrivalTime:     e.ArrivalTime,
		})
	}
	return &BookingHistoryResponse{Flights: flights}
}
