package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prohmpiriya/flight-rush/internal/domain"
	"github.com/prohmpiriya/flight-rush/internal/metrics"
	"github.com/prohmpiriya/flight-rush/internal/repository"
	"github.com/prohmpiriya/flight-rush/pkg/logger"
	"github.com/prohmpiriya/flight-rush/pkg/retry"
	"github.com/prohmpiriya/flight-rush/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// errQuotaVersionConflict marks a version-gate miss inside the acquire loop
var errQuotaVersionConflict = errors.New("flight quota version conflict")

// TicketAllocator hands out and takes back flight quota under optimistic
// concurrency control. The version-gated decrement in the flight repository
// is the only admission point; no availability is ever granted from a plain
// read or a cache.
type TicketAllocator interface {
	// Acquire claims one quota unit on the dated flight and creates the
	// customer's ticket
	Acquire(ctx context.Context, customerID string, flightNumber int, flightDate time.Time) (*domain.Ticket, error)

	// Release returns the ticket's quota unit, deletes the ticket and frees
	// any attached seat. A missing ticket reports domain.ErrTicketNotFound,
	// so releasing the same ticket twice fails the second time.
	Release(ctx context.Context, ticketID string) error
}

// ticketAllocator implements TicketAllocator
type ticketAllocator struct {
	flightRepo repository.FlightRepository
	ticketRepo repository.TicketRepository
	seats      SeatAllocator
	cache      FlightCache
	retrier    *retry.Retrier
	log        *logger.Logger
}

// NewTicketAllocator creates a new ticket allocator. cache may be nil; quota
// movements then skip the availability mirror.
func NewTicketAllocator(
	flightRepo repository.FlightRepository,
	ticketRepo repository.TicketRepository,
	seats SeatAllocator,
	cache FlightCache,
	cfg *retry.Config,
) TicketAllocator {
	return &ticketAllocator{
		flightRepo: flightRepo,
		ticketRepo: ticketRepo,
		seats:      seats,
		cache:      cache,
		retrier:    retry.New(cfg),
		log:        logger.Get(),
	}
}

// Acquire claims one quota unit and creates the ticket. The acquire loop
// re-reads the flight on every attempt: the version seen by the read is the
// version the conditional decrement is gated on.
func (a *ticketAllocator) Acquire(ctx context.Context, customerID string, flightNumber int, flightDate time.Time) (*domain.Ticket, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.ticket_allocator.acquire")
	defer span.End()

	span.SetAttributes(
		attribute.String("customer_id", customerID),
		attribute.Int("flight_number", flightNumber),
		attribute.String("flight_date", flightDate.Format(domain.DateLayout)),
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

	// Fast-path duplicate check. The UNIQUE(customer_id, flight_id)
	// constraint on tickets closes the remaining read-then-insert race.
	_, err = a.ticketRepo.GetByCustomerAndFlight(ctx, customerID, flight.FlightID)
	if err == nil {
		span.SetStatus(codes.Error, "duplicate booking")
		return nil, domain.ErrDuplicateBooking
	}
	if !errors.Is(err, domain.ErrTicketNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	result := a.retrier.Do(ctx, func(ctx context.Context) error {
		current, err := a.flightRepo.GetByID(ctx, flight.FlightID)
		if err != nil {
			return retry.Permanent(err)
		}
		if current.IsFullyBooked() {
			return retry.Permanent(domain.ErrFlightFullyBooked)
		}

		ok, err := a.flightRepo.DecrementAvailability(ctx, current.FlightID, current.Version)
		if err != nil {
			return retry.Permanent(err)
		}
		if !ok {
			metrics.RecordQuotaConflict(ctx, current.FlightID)
			return retry.Retryable(errQuotaVersionConflict)
		}
		return nil
	})

	span.SetAttributes(attribute.Int("attempts", result.Attempts))

	if result.Err != nil {
		switch {
		case errors.Is(result.Err, retry.ErrMaxRetriesExceeded):
			span.SetStatus(codes.Error, "retries exhausted")
			return nil, domain.ErrTicketRetryExhausted
		case errors.Is(result.Err, retry.ErrContextCanceled):
			span.SetStatus(codes.Error, "context canceled")
			return nil, fmt.Errorf("quota acquire interrupted: %w", ctx.Err())
		default:
			span.RecordError(result.Err)
			span.SetStatus(codes.Error, result.Err.Error())
			return nil, result.Err
		}
	}

	ticket := &domain.Ticket{
		ID:           uuid.New().String(),
		CustomerID:   customerID,
		FlightID:     flight.FlightID,
		FlightDate:   flight.FlightDate,
		FlightNumber: flight.FlightNumber,
		CreatedAt:    time.Now().UTC(),
	}

	if err := a.ticketRepo.Create(ctx, ticket); err != nil {
		// The quota unit is already claimed; put it back before surfacing
		// the insert failure. Runs detached so a cancelled request cannot
		// strand the unit.
		undoCtx := context.WithoutCancel(ctx)
		if incErr := a.flightRepo.IncrementAvailability(undoCtx, flight.FlightID); incErr != nil {
			a.log.Error("quota return after ticket insert failure did not land",
				zap.Int64("flight_id", flight.FlightID),
				zap.Error(incErr),
			)
			err = errors.Join(err, fmt.Errorf("quota return failed: %w", incErr))
		}
		a.refreshMirror(undoCtx, flight.FlightID)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	a.refreshMirror(ctx, flight.FlightID)
	metrics.RecordTicketBooked(ctx, flight.FlightID, result.Attempts)

	span.SetStatus(codes.Ok, "")
	return ticket, nil
}

// Release returns the ticket's quota unit, deletes the ticket and frees any
// attached seat. The row delete is the linearization point: of two
// concurrent releases, exactly one sees the row and moves the quota.
func (a *ticketAllocator) Release(ctx context.Context, ticketID string) error {
	ctx, span := telemetry.StartSpan(ctx, "service.ticket_allocator.release")
	defer span.End()

	span.SetAttributes(attribute.String("ticket_id", ticketID))

	ticket, err := a.ticketRepo.GetByID(ctx, ticketID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if err := a.ticketRepo.Delete(ctx, ticketID); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if err := a.flightRepo.IncrementAvailability(ctx, ticket.FlightID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if ticket.SeatNumber != nil {
		if err := a.seats.Release(ctx, ticket.FlightID, *ticket.SeatNumber); err != nil {
			if !errors.Is(err, domain.ErrSeatNotFound) {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return err
			}
			a.log.Warn("released ticket pointed at a missing seat",
				zap.String("ticket_id", ticketID),
				zap.Int64("flight_id", ticket.FlightID),
				zap.Int("seat_number", *ticket.SeatNumber),
			)
		}
	}

	a.refreshMirror(ctx, ticket.FlightID)

	span.SetStatus(codes.Ok, "")
	return nil
}

// refreshMirror updates the availability mirror, best effort. A mirror
// failure never fails a booking.
func (a *ticketAllocator) refreshMirror(ctx context.Context, flightID int64) {
	if a.cache == nil {
		return
	}
	if err := a.cache.Refresh(ctx, flightID); err != nil {
		a.log.Warn("availability mirror refresh failed",
			zap.Int64("flight_id", flightID),
			zap.Error(err),
		)
	}
}

var _ TicketAllocator = (*ticketAllocator)(nil)
