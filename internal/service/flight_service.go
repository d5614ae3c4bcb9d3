package service

import (
	"context"
	"fmt"
	"time"

	"github.com/prohmpiriya/flight-rush/internal/domain"
	"github.com/prohmpiriya/flight-rush/internal/dto"
	"github.com/prohmpiriya/flight-rush/internal/repository"
	"github.com/prohmpiriya/flight-rush/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// FlightService defines the read side of the flight inventory
type FlightService interface {
	// Search lists flights with open quota matching the query
	Search(ctx context.Context, query *dto.FlightSearchQuery) (*dto.FlightSearchResponse, error)

	// AvailableSeats lists open seat numbers on the dated flight
	AvailableSeats(ctx context.Context, query *dto.AvailableSeatsQuery) (*dto.AvailableSeatsResponse, error)
}

// flightService implements FlightService
type flightService struct {
	flightRepo repository.FlightRepository
	seatRepo   repository.SeatRepository
	cache      FlightCache
}

// NewFlightService creates a new flight service. cache may be nil; search
// results then serve the database values as read.
func NewFlightService(
	flightRepo repository.FlightRepository,
	seatRepo repository.SeatRepository,
	cache FlightCache,
) FlightService {
	return &flightService{
		flightRepo: flightRepo,
		seatRepo:   seatRepo,
		cache:      cache,
	}
}

// Search lists flights with open quota. When the availability mirror holds a
// fresher count for a returned flight, that count replaces the one the
// search query read.
func (s *flightService) Search(ctx context.Context, query *dto.FlightSearchQuery) (*dto.FlightSearchResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.flight.search")
	defer span.End()

	span.SetAttributes(
		attribute.String("departure_city", query.DepartureCity),
		attribute.String("destination_city", query.DestinationCity),
		attribute.String("departure_date", query.DepartureDate),
	)

	departureDate, err := time.Parse(domain.DateLayout, query.DepartureDate)
	if err != nil {
		span.SetStatus(codes.Error, "invalid departure date")
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidFlightDate, query.DepartureDate)
	}

	criteria := domain.FlightSearchCriteria{
		DepartureCity:   query.DepartureCity,
		DestinationCity: query.DestinationCity,
		DepartureDate:   departureDate,
	}

	if query.EndDate != "" {
		endDate, err := time.Parse(domain.DateLayout, query.EndDate)
		if err != nil {
			span.SetStatus(codes.Error, "invalid end date")
			return nil, fmt.Errorf("%w: %q", domain.ErrInvalidFlightDate, query.EndDate)
		}
		criteria.EndDate = &endDate
	}

	details, err := s.flightRepo.Search(ctx, criteria)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	s.overlayAvailability(ctx, details)

	span.SetAttributes(attribute.Int("count", len(details)))
	span.SetStatus(codes.Ok, "")
	return dto.SearchFromDomain(details), nil
}

// AvailableSeats lists open seat numbers on the dated flight
func (s *flightService) AvailableSeats(ctx context.Context, query *dto.AvailableSeatsQuery) (*dto.AvailableSeatsResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.flight.available_seats")
	defer span.End()

	span.SetAttributes(
		attribute.Int("flight_number", query.FlightNumber),
		attribute.String("flight_date", query.FlightDate),
	)

	flightDate, err := time.Parse(domain.DateLayout, query.FlightDate)
	if err != nil {
		span.SetStatus(codes.Error, "invalid flight date")
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidFlightDate, query.FlightDate)
	}

	flight, err := s.flightRepo.GetByNumberAndDate(ctx, query.FlightNumber, flightDate)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	seats, err := s.seatRepo.ListAvailable(ctx, flight.FlightID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if seats == nil {
		seats = []int{}
	}

	span.SetAttributes(attribute.Int("count", len(seats)))
	span.SetStatus(codes.Ok, "")
	return &dto.AvailableSeatsResponse{AvailableSeats: seats}, nil
}

// overlayAvailability replaces search-result counts with mirrored counts
// where the mirror has an entry
func (s *flightService) overlayAvailability(ctx context.Context, details []domain.FlightDetail) {
	if s.cache == nil || len(details) == 0 {
		return
	}

	ids := make([]int64, len(details))
	for i, d := range details {
		ids[i] = d.FlightID
	}

	counts := s.cache.AvailabilityBatch(ctx, ids)
	for i := range details {
		if count, ok := counts[details[i].FlightID]; ok {
			details[i].AvailableTickets = count
		}
	}
}

var _ FlightService = (*flightService)(nil)
