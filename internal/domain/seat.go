package domain

// SeatStatus is the lifecycle state of a seat on a flight
type SeatStatus string

const (
	SeatStatusAvailable   SeatStatus = "AVAILABLE"
	SeatStatusBooked      SeatStatus = "BOOKED"
	SeatStatusUnavailable SeatStatus = "UNAVAILABLE"
)

// Seat is one assignable seat on a flight. Status and Version are mutated
// only by the seat allocator's version-gated update.
type Seat struct {
	FlightID   int64      `json:"flight_id"`
	SeatNumber int        `json:"seat_number"`
	Status     SeatStatus `json:"seat_status"`
	Version    int64      `json:"version"`
}

// IsAvailable reports whether the seat can be claimed
func (s *Seat) IsAvailable() bool {
	return s.Status == SeatStatusAvailable
}
