package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prohmpiriya/flight-rush/internal/domain"
	"github.com/prohmpiriya/flight-rush/internal/dto"
	"github.com/prohmpiriya/flight-rush/internal/metrics"
	"github.com/prohmpiriya/flight-rush/internal/repository"
	"github.com/prohmpiriya/flight-rush/pkg/logger"
	"github.com/prohmpiriya/flight-rush/pkg/saga"
	"github.com/prohmpiriya/flight-rush/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// Aggregate booking statuses returned to the caller. A booking whose
// preferred seats could not all be claimed still succeeds; the status string
// carries the warning.
const (
	bookingStatusConfirmed       = "Confirmed"
	bookingStatusSeatUnavailable = "Confirmed booking, however the preferred seat is currently unavailable, please try again later."

	cancelStatusCancelled = "Cancelled"
)

// BookingService defines the interface for booking business logic
type BookingService interface {
	// BookTickets books every requested leg in order. If any leg fails
	// outright, already booked legs are released in reverse order.
	BookTickets(ctx context.Context, customerID string, req *dto.TicketBookingRequest) (*dto.TicketBookingResponse, error)

	// BookSeat claims or changes a seat on a flight the customer already
	// holds a ticket for
	BookSeat(ctx context.Context, customerID string, req *dto.SeatBookingRequest) (*dto.SeatBookingResponse, error)

	// CancelTicket releases the customer's ticket, returning its quota unit
	// and freeing any attached seat
	CancelTicket(ctx context.Context, customerID, ticketID string) (*dto.CancelTicketResponse, error)

	// History lists the customer's booked flights, latest flight date first
	History(ctx context.Context, customerID string) (*dto.BookingHistoryResponse, error)
}

// bookingService implements BookingService
type bookingService struct {
	tickets    TicketAllocator
	seats      SeatAllocator
	ticketRepo repository.TicketRepository
	publisher  EventPublisher
	log        *logger.Logger
}

// NewBookingService creates a new booking service
func NewBookingService(
	tickets TicketAllocator,
	seats SeatAllocator,
	ticketRepo repository.TicketRepository,
	publisher EventPublisher,
) BookingService {
	if publisher == nil {
		publisher = NewNoOpEventPublisher()
	}
	return &bookingService{
		tickets:    tickets,
		seats:      seats,
		ticketRepo: ticketRepo,
		publisher:  publisher,
		log:        logger.Get(),
	}
}

// bookingLeg is one parsed leg of a booking request
type bookingLeg struct {
	flightNumber  int
	flightDate    time.Time
	preferredSeat *int
}

// BookTickets books every requested leg through a compensation stack. Each
// acquired leg registers an undo; the first hard failure unwinds everything
// booked so far in reverse order. A preferred seat that cannot be claimed is
// not a hard failure: the ticket stands and the aggregate status says so.
func (s *bookingService) BookTickets(ctx context.Context, customerID string, req *dto.TicketBookingRequest) (*dto.TicketBookingResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.booking.book_tickets")
	defer span.End()

	start := time.Now()

	if req == nil || len(req.Flights) == 0 {
		span.SetStatus(codes.Error, "no flights requested")
		return nil, domain.ErrNoFlightsRequested
	}

	span.SetAttributes(
		attribute.String("customer_id", customerID),
		attribute.Int("legs", len(req.Flights)),
	)

	legs := make([]bookingLeg, 0, len(req.Flights))
	for _, flight := range req.Flights {
		date, err := time.Parse(domain.DateLayout, flight.FlightDate)
		if err != nil {
			span.SetStatus(codes.Error, "invalid flight date")
			return nil, fmt.Errorf("%w: %q", domain.ErrInvalidFlightDate, flight.FlightDate)
		}
		legs = append(legs, bookingLeg{
			flightNumber:  flight.FlightNumber,
			flightDate:    date,
			preferredSeat: flight.PreferredSeat,
		})
	}

	booked := make([]*domain.Ticket, len(legs))
	results := make([]dto.FlightBookingResponse, len(legs))

	sg := saga.New("book_tickets", newSagaLogger(s.log))
	for i, leg := range legs {
		sg.AddStep(&saga.Step{
			Name: fmt.Sprintf("book_flight_%d", leg.flightNumber),
			Execute: func(ctx context.Context) error {
				ticket, err := s.tickets.Acquire(ctx, customerID, leg.flightNumber, leg.flightDate)
				if err != nil {
					return err
				}
				booked[i] = ticket
				results[i] = dto.FlightBookingResponse{
					TicketID:      ticket.ID,
					FlightDetails: ticket.Details(),
				}

				if leg.preferredSeat != nil {
					if err := s.seats.Assign(ctx, customerID, ticket.FlightID, *leg.preferredSeat, nil); err != nil {
						// Seat failure is soft: the ticket stands
						s.log.Warn("preferred seat claim failed",
							zap.String("customer_id", customerID),
							zap.Int64("flight_id", ticket.FlightID),
							zap.Int("seat_number", *leg.preferredSeat),
							zap.Error(err),
						)
					} else {
						seatNumber := *leg.preferredSeat
						ticket.SeatNumber = &seatNumber
						results[i].SeatNumber = &seatNumber
					}
				}
				return nil
			},
			Compensate: func(ctx context.Context) error {
				if booked[i] == nil {
					return nil
				}
				return s.tickets.Release(ctx, booked[i].ID)
			},
		})
	}

	if err := sg.Execute(ctx); err != nil {
		compensated := 0
		for _, ticket := range booked {
			if ticket != nil {
				compensated++
			}
		}
		if compensated > 0 {
			metrics.RecordCompensation(ctx, compensated)
			s.publishCompensated(ctx, customerID)
		}
		metrics.RecordBookingFailure(ctx, failureReason(err))
		metrics.RecordBookingDuration(ctx, time.Since(start).Seconds(), "failed")

		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		var compErr *saga.CompensationError
		if errors.As(err, &compErr) && len(compErr.StepErrors) == 0 {
			// Clean unwind: surface the cause, not the saga bookkeeping
			return nil, fmt.Errorf("%w: %w", domain.ErrBookingFailed, compErr.Cause)
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrBookingFailed, err)
	}

	status := bookingStatusConfirmed
	for i, leg := range legs {
		if leg.preferredSeat != nil && results[i].SeatNumber == nil {
			status = bookingStatusSeatUnavailable
			break
		}
	}

	for _, ticket := range booked {
		s.publishBooked(ctx, ticket)
	}
	metrics.RecordBookingDuration(ctx, time.Since(start).Seconds(), "confirmed")

	span.SetStatus(codes.Ok, "")
	return &dto.TicketBookingResponse{
		BookingStatus:  status,
		FlightBookings: results,
	}, nil
}

// BookSeat claims or changes a seat on an already booked flight
func (s *bookingService) BookSeat(ctx context.Context, customerID string, req *dto.SeatBookingRequest) (*dto.SeatBookingResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.booking.book_seat")
	defer span.End()

	date, err := time.Parse(domain.DateLayout, req.FlightDate)
	if err != nil {
		span.SetStatus(codes.Error, "invalid flight date")
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidFlightDate, req.FlightDate)
	}

	span.SetAttributes(
		attribute.String("customer_id", customerID),
		attribute.Int("flight_number", req.FlightNumber),
		attribute.String("flight_date", req.FlightDate),
		attribute.Int("seat_number", req.SeatNumber),
	)

	ticket, err := s.seats.AssignForCustomer(ctx, customerID, req.FlightNumber, date, req.SeatNumber)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if pubErr := s.publisher.PublishSeatAssigned(ctx, ticket); pubErr != nil {
		s.log.Warn("failed to publish seat assigned event",
			zap.String("ticket_id", ticket.ID),
			zap.Error(pubErr),
		)
	}

	span.SetStatus(codes.Ok, "")
	return &dto.SeatBookingResponse{
		FlightNumber: req.FlightNumber,
		FlightDate:   req.FlightDate,
		SeatNumber:   req.SeatNumber,
		SeatStatus:   string(domain.SeatStatusBooked),
	}, nil
}

// CancelTicket releases the customer's ticket. Tickets belonging to another
// customer report not found rather than leaking their existence.
func (s *bookingService) CancelTicket(ctx context.Context, customerID, ticketID string) (*dto.CancelTicketResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.booking.cancel_ticket")
	defer span.End()

	span.SetAttributes(
		attribute.String("customer_id", customerID),
		attribute.String("ticket_id", ticketID),
	)

	ticket, err := s.ticketRepo.GetByID(ctx, ticketID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if ticket.CustomerID != customerID {
		span.SetStatus(codes.Error, "ticket owned by another customer")
		return nil, domain.ErrTicketNotFound
	}

	if err := s.tickets.Release(ctx, ticketID); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	metrics.RecordTicketCancelled(ctx, ticket.FlightID)
	if pubErr := s.publisher.PublishTicketCancelled(ctx, ticket); pubErr != nil {
		s.log.Warn("failed to publish ticket cancelled event",
			zap.String("ticket_id", ticketID),
			zap.Error(pubErr),
		)
	}

	span.SetStatus(codes.Ok, "")
	return &dto.CancelTicketResponse{
		TicketID: ticketID,
		Status:   cancelStatusCancelled,
	}, nil
}

// History lists the customer's booked flights, latest flight date first
func (s *bookingService) History(ctx context.Context, customerID string) (*dto.BookingHistoryResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.booking.history")
	defer span.End()

	span.SetAttributes(attribute.String("customer_id", customerID))

	entries, err := s.ticketRepo.HistoryByCustomer(ctx, customerID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int("count", len(entries)))
	span.SetStatus(codes.Ok, "")
	return dto.HistoryFromDomain(entries), nil
}

// publishBooked emits the ticket booked event, best effort
func (s *bookingService) publishBooked(ctx context.Context, ticket *domain.Ticket) {
	if ticket == nil {
		return
	}
	if err := s.publisher.PublishTicketBooked(ctx, ticket); err != nil {
		s.log.Warn("failed to publish ticket booked event",
			zap.String("ticket_id", ticket.ID),
			zap.Error(err),
		)
	}
}

// publishCompensated emits the compensation event on a detached context so
// an already cancelled request still reports its unwind
func (s *bookingService) publishCompensated(ctx context.Context, customerID string) {
	if err := s.publisher.PublishBookingCompensated(context.WithoutCancel(ctx), customerID); err != nil {
		s.log.Warn("failed to publish compensation event",
			zap.String("customer_id", customerID),
			zap.Error(err),
		)
	}
}

// failureReason classifies a booking failure for metric labels
func failureReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrFlightFullyBooked):
		return "fully_booked"
	case errors.Is(err, domain.ErrDuplicateBooking):
		return "duplicate_booking"
	case errors.Is(err, domain.ErrTicketRetryExhausted):
		return "retries_exhausted"
	case errors.Is(err, domain.ErrFlightNotOperating):
		return "flight_not_operating"
	default:
		return "error"
	}
}

// sagaLogger adapts the zap logger to the saga package's logger interface
type sagaLogger struct {
	log *zap.SugaredLogger
}

func newSagaLogger(log *logger.Logger) *sagaLogger {
	return &sagaLogger{log: log.Zap().Sugar()}
}

func (l *sagaLogger) Info(msg string, fields ...interface{})  { l.log.Infow(msg, fields...) }
func (l *sagaLogger) Warn(msg string, fields ...interface{})  { l.log.Warnw(msg, fields...) }
func (l *sagaLogger) Error(msg string, fields ...interface{}) { l.log.Errorw(msg, fields...) }

var _ BookingService = (*bookingService)(nil)
