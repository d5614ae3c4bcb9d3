package repository

import (
	"context"
	"time"

	"github.com/prohmpiriya/flight-rush/internal/domain"
)

// FlightRepository defines storage operations for flights
type FlightRepository interface {
	// GetByNumberAndDate loads the dated flight instance
	GetByNumberAndDate(ctx context.Context, flightNumber int, flightDate time.Time) (*domain.Flight, error)

	// GetByID loads a flight by its surrogate key
	GetByID(ctx context.Context, flightID int64) (*domain.Flight, error)

	// DecrementAvailability takes one quota unit behind the version gate.
	// false with a nil error means the gate missed: another writer moved the
	// version first and the caller must re-read and retry.
	DecrementAvailability(ctx context.Context, flightID, version int64) (bool, error)

	// IncrementAvailability returns one quota unit, unconditionally
	IncrementAvailability(ctx context.Context, flightID int64) error

	// Search lists flights with open quota matching the criteria
	Search(ctx context.Context, criteria domain.FlightSearchCriteria) ([]domain.FlightDetail, error)

	// ListUpcomingIDs lists ids of flights departing today or later, soonest
	// first, capped at limit
	ListUpcomingIDs(ctx context.Context, limit int) ([]int64, error)
}

// SeatRepository defines storage operations for seats
type SeatRepository interface {
	// Get loads one seat
	Get(ctx context.Context, flightID int64, seatNumber int) (*domain.Seat, error)

	// Claim runs one transactional claim attempt: version-gated BOOKED update
	// on the target seat, unconditional release of the old seat (if any), and
	// the ticket's seat_number update. false with a nil error means the
	// version gate missed.
	Claim(ctx context.Context, customerID string, flightID int64, newSeat int, oldSeat *int) (bool, error)

	// Release resets a seat to AVAILABLE, unconditionally
	Release(ctx context.Context, flightID int64, seatNumber int) error

	// ListAvailable lists open seat numbers on a flight, ascending
	ListAvailable(ctx context.Context, flightID int64) ([]int, error)
}

// TicketRepository defines storage operations for tickets
type TicketRepository interface {
	// Create inserts a ticket. A second ticket for the same (customer,
	// flight) pair surfaces domain.ErrDuplicateBooking.
	Create(ctx context.Context, ticket *domain.Ticket) error

	// GetByID loads a ticket
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)

	// GetByCustomerAndFlight loads the customer's ticket on a flight
	GetByCustomerAndFlight(ctx context.Context, customerID string, flightID int64) (*domain.Ticket, error)

	// Delete removes a ticket
	Delete(ctx context.Context, id string) error

	// HistoryByCustomer lists the customer's booked flights joined with
	// route details, most recent flight date first
	HistoryByCustomer(ctx context.Context, customerID string) ([]domain.HistoryEntry, error)
}
