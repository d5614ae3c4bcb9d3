package domain

import "errors"

// Domain errors
var (
	// Lookup errors
	ErrFlightNotFound = errors.New("flight not found")
	ErrSeatNotFound   = errors.New("seat not found")
	ErrTicketNotFound = errors.New("ticket not found")

	// Booking rejections
	ErrFlightFullyBooked    = errors.New("this flight is fully booked")
	ErrDuplicateBooking     = errors.New("cannot re-book the same flight")
	ErrTicketRetryExhausted = errors.New("failed to secure a ticket after maximum retries")
	ErrBookingFailed        = errors.New("failed to book some of your flights, please try again")

	// Seat claim errors
	ErrSeatUnavailable    = errors.New("seat is already booked or unavailable")
	ErrSeatRetryExhausted = errors.New("failed to book the seat after maximum retries")

	// Request errors
	ErrFlightNotOperating = errors.New("flight does not exist on the requested date")
	ErrNoTicketForFlight  = errors.New("customer does not have a ticket for this flight")
	ErrSameSeat           = errors.New("cannot book the same seat you already have")
	ErrInvalidFlightDate  = errors.New("invalid flight date, expected YYYY-MM-DD")
	ErrNoFlightsRequested = errors.New("at least one flight is required")
)

// IsNotFound checks if the error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrFlightNotFound) ||
		errors.Is(err, ErrTicketNotFound)
}

// IsValidation checks if the error is a validation error
func IsValidation(err error) bool {
	return errors.Is(err, ErrFlightFullyBooked) ||
		errors.Is(err, ErrDuplicateBooking) ||
		errors.Is(err, ErrTicketRetryExhausted) ||
		errors.Is(err, ErrBookingFailed) ||
		errors.Is(err, ErrSeatNotFound)
}

// IsConflict checks if the error is a conflict error. Conflicts are terminal
// business rejections of a seat claim, never retried.
func IsConflict(err error) bool {
	return errors.Is(err, ErrSeatUnavailable) ||
		errors.Is(err, ErrSeatRetryExhausted)
}

// IsBadRequest checks if the error rejects the request itself
func IsBadRequest(err error) bool {
	return errors.Is(err, ErrFlightNotOperating) ||
		errors.Is(err, ErrNoTicketForFlight) ||
		errors.Is(err, ErrSameSeat) ||
		errors.Is(err, ErrInvalidFlightDate) ||
		errors.Is(err, ErrNoFlightsRequested)
}
