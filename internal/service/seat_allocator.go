package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prohmpiriya/flight-rush/internal/domain"
	"github.com/prohmpiriya/flight-rush/internal/metrics"
	"github.com/prohmpiriya/flight-rush/internal/repository"
	"github.com/prohmpiriya/flight-rush/pkg/retry"
	"github.com/prohmpiriya/flight-rush/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// errSeatVersionConflict marks a version-gate miss inside the claim loop
var errSeatVersionConflict = errors.New("seat version conflict")

// SeatAllocator claims and releases seats under optimistic concurrency
// control. A claim that loses the version race retries; a claim on a seat
// that is already BOOKED or UNAVAILABLE is rejected outright.
type SeatAllocator interface {
	// Assign claims newSeat for the customer, releasing oldSeat when set.
	// The customer must already hold a ticket on the flight.
	Assign(ctx context.Context, customerID string, flightID int64, newSeat int, oldSeat *int) error

	// AssignForCustomer resolves the flight and the customer's ticket, then
	// delegates to Assign with the ticket's current seat as oldSeat. Returns
	// the ticket with its new seat.
	AssignForCustomer(ctx context.Context, customerID string, flightNumber int, flightDate time.Time, seatNumber int) (*domain.Ticket, error)

	// Release resets a seat to AVAILABLE, unconditionally
	Release(ctx context.Context, flightID int64, seatNumber int) error
}

// seatAllocator implements SeatAllocator
type seatAllocator struct {
	flightRepo repository.FlightRepository
	seatRepo   repository.SeatRepository
	ticketRepo repository.TicketRepository
	retrier    *retry.Retrier
}

// NewSeatAllocator creates a new seat allocator
func NewSeatAllocator(
	flightRepo repository.FlightRepository,
	seatRepo repository.SeatRepository,
	ticketRepo repository.TicketRepository,
	cfg *retry.Config,
) SeatAllocator {
	return &seatAllocator{
		flightRepo: flightRepo,
		seatRepo:   seatRepo,
		ticketRepo: ticketRepo,
		retrier:    retry.New(cfg),
	}
}

// Assign claims newSeat for the customer. Each attempt is one transaction:
// a fresh read of the seat, the version-gated BOOKED update, the old-seat
// release and the ticket update, committed together. A gate miss backs off
// and retries; a seat that is no longer AVAILABLE stops the loop.
func (a *seatAllocator) Assign(ctx context.Context, customerID string, flightID int64, newSeat int, oldSeat *int) error {
	ctx, span := telemetry.StartSpan(ctx, "service.seat_allocator.assign")
	defer span.End()

	span.SetAttributes(
		attribute.String("customer_id", customerID),
		attribute.Int64("flight_id", flightID),
		attribute.Int("seat_number", newSeat),
	)
	if oldSeat != nil {
		span.SetAttributes(attribute.Int("old_seat_number", *oldSeat))
	}

	result := a.retrier.Do(ctx, func(ctx context.Context) error {
		seat, err := a.seatRepo.Get(ctx, flightID, newSeat)
		if err != nil {
			return retry.Permanent(err)
		}
		if !seat.IsAvailable() {
			return retry.Permanent(domain.ErrSeatUnavailable)
		}

		ok, err := a.seatRepo.Claim(ctx, customerID, flightID, newSeat, oldSeat)
		if err != nil {
			return retry.Permanent(err)
		}
		if !ok {
			metrics.RecordSeatConflict(ctx, flightID, newSeat)
			return retry.Retryable(errSeatVersionConflict)
		}
		return nil
	})

	span.SetAttributes(attribute.Int("attempts", result.Attempts))

	if result.Err != nil {
		switch {
		case errors.Is(result.Err, retry.ErrMaxRetriesExceeded):
			span.SetStatus(codes.Error, "retries exhausted")
			return domain.ErrSeatRetryExhausted
		case errors.Is(result.Err, retry.ErrContextCanceled):
			span.SetStatus(codes.Error, "context canceled")
			return fmt.Errorf("seat claim interrupted: %w", ctx.Err())
		default:
			span.RecordError(result.Err)
			span.SetStatus(codes.Error, result.Err.Error())
			return result.Err
		}
	}

	metrics.RecordSeatAssigned(ctx, flightID)
	span.SetStatus(codes.Ok, "")
	return nil
}

// AssignForCustomer validates the request against the customer's ticket and
// claims the seat
func (a *seatAllocator) AssignForCustomer(ctx context.Context, customerID string, flightNumber int, flightDate time.Time, seatNumber int) (*domain.Ticket, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.seat_allocator.assign_for_customer")
	defer span.End()

	span.SetAttributes(
		attribute.String("customer_id", customerID),
		attribute.Int("flight_number", flightNumber),
		attribute.String("flight_date", flightDate.Format(domain.DateLayout)),
		attribute.Int("seat_number", seatNumber),
	)

	flight, err := a.flightRepo.GetByNumberAndDate(ctx, flightNumber, flightDate)
	if err != nil {
		if errors.Is(err, domain.ErrFlightNotFound) {
			span.SetStatus(codes.Error, "flight not operating")
			return nil, domain.ErrFlightNotOperating
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	ticket, err := a.ticketRepo.GetByCustomerAndFlight(ctx, customerID, flight.FlightID)
	if err != nil {
		if errors.Is(err, domain.ErrTicketNotFound) {
			span.SetStatus(codes.Error, "no ticket for flight")
			return nil, domain.ErrNoTicketForFlight
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if ticket.SeatNumber != nil && *ticket.SeatNumber == seatNumber {
		span.SetStatus(codes.Error, "same seat")
		return nil, domain.ErrSameSeat
	}

	if err := a.Assign(ctx, customerID, flight.FlightID, seatNumber, ticket.SeatNumber); err != nil {
		return nil, err
	}

	claimed := seatNumber
	ticket.SeatNumber = &claimed

	span.SetStatus(codes.Ok, "")
	return ticket, nil
}

// Release resets a seat to AVAILABLE, unconditionally
func (a *seatAllocator) Release(ctx context.Context, flightID int64, seatNumber int) error {
	ctx, span := telemetry.StartSpan(ctx, "service.seat_allocator.release")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("flight_id", flightID),
		attribute.Int("seat_number", seatNumber),
	)

	if err := a.seatRepo.Release(ctx, flightID, seatNumber); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

var _ SeatAllocator = (*seatAllocator)(nil)
