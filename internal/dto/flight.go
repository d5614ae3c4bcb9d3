package dto

import (
	"github.com/prohmpiriya/flight-rush/internal/domain"
)

// FlightSearchQuery holds the flight search query parameters
type FlightSearchQuery struct {
	DepartureCity   string `form:"departure_city" binding:"required"`
	DestinationCity string `form:"destination_city" binding:"required"`
	DepartureDate   string `form:"departure_date" binding:"required"`
	EndDate         string `form:"end_date"`
}

// FlightDetail is one flight search result
type FlightDetail struct {
	FlightID         int64  `json:"flight_id"`
	FlightNumber     int    `json:"flight_number"`
	DepartureCity    string `json:"departure_city"`
	DestinationCity  string `json:"destination_city"`
	DepartureTime    string `json:"departure_time"`
	ArrivalTime      string `json:"arrival_time"`
	AvailableTickets int    `json:"available_tickets"`
	FlightDate       string `json:"flight_date"`
}

// FlightSearchResponse lists flights matching a search
type FlightSearchResponse struct {
	Flights []FlightDetail `json:"flights"`
}

// AvailableSeatsQuery holds the available seats query parameters
type AvailableSeatsQuery struct {
	FlightNumber int    `form:"flight_number" binding:"required"`
	FlightDate   string `form:"flight_date" binding:"required"`
}

// AvailableSeatsResponse lists open seat numbers on a flight
type AvailableSeatsResponse struct {
	AvailableSeats []int `json:"available_seats"`
}

// SearchFromDomain converts flight search rows to the API shape
func SearchFromDomain(details []domain.FlightDetail) *FlightSearchResponse {
	flights := make([]FlightDetail, 0, len(details))
	for _, d := range details {
		flights = append(flights, FlightDetail{
			FlightID:         d.FlightID,
			FlightNumber:     d.FlightNumber,
			DepartureCity:    d.DepartureCity,
			DestinationCity:  d.DestinationCity,
			DepartureTime:    d.DepartureTime,
			ArrivalTime:      d.ArrivalTime,
			AvailableTickets: d.AvailableTickets,
			FlightDate:       d.FlightDate.Format(domain.DateLayout),
		})
	}
	return &FlightSearchResponse{Flights: flights}
}
