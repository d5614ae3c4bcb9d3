package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prohmpiriya/flight-rush/internal/domain"
	"github.com/prohmpiriya/flight-rush/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// PostgresFlightRepository implements FlightRepository using PostgreSQL with pgxpool
type PostgresFlightRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresFlightRepository creates a new PostgresFlightRepository
func NewPostgresFlightRepository(pool *pgxpool.Pool) *PostgresFlightRepository {
	return &PostgresFlightRepository{pool: pool}
}

// GetByNumberAndDate retrieves the dated flight instance
func (r *PostgresFlightRepository) GetByNumberAndDate(ctx context.Context, flightNumber int, flightDate time.Time) (*domain.Flight, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.flight.get_by_number_date")
	defer span.End()

	span.SetAttributes(
		attribute.Int("flight_number", flightNumber),
		attribute.String("flight_date", flightDate.Format(domain.DateLayout)),
	)

	query := `
		SELECT flight_id, flight_number, flight_date, available_tickets, version
		FROM flights
		WHERE flight_number = $1 AND flight_date = $2
	`

	flight := &domain.Flight{}
	err := r.pool.QueryRow(ctx, query, flightNumber, flightDate).Scan(
		&flight.FlightID,
		&flight.FlightNumber,
		&flight.FlightDate,
		&flight.AvailableTickets,
		&flight.Version,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "not found")
			return nil, domain.ErrFlightNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to get flight: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return flight, nil
}

// GetByID retrieves a flight by its surrogate key
func (r *PostgresFlightRepository) GetByID(ctx context.Context, flightID int64) (*domain.Flight, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.flight.get_by_id")
	defer span.End()

	span.SetAttributes(attribute.Int64("flight_id", flightID))

	query := `
		SELECT flight_id, flight_number, flight_date, available_tickets, version
		FROM flights
		WHERE flight_id = $1
	`

	flight := &domain.Flight{}
	err := r.pool.QueryRow(ctx, query, flightID).Scan(
		&flight.FlightID,
		&flight.FlightNumber,
		&flight.FlightDate,
		&flight.AvailableTickets,
		&flight.Version,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "not found")
			return nil, domain.ErrFlightNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to get flight: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return flight, nil
}

// DecrementAvailability takes one quota unit behind the version gate. The
// update only lands when the stored version still equals the version the
// caller read; a miss reports false with no error and the caller re-reads.
func (r *PostgresFlightRepository) DecrementAvailability(ctx context.Context, flightID, version int64) (bool, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.flight.decrement_availability")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("flight_id", flightID),
		attribute.Int64("version", version),
	)

	query := `
		UPDATE flights
		SET available_tickets = available_tickets - 1,
		    version = version + 1
		WHERE flight_id = $1 AND version = $2
	`

	result, err := r.pool.Exec(ctx, query, flightID, version)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, fmt.Errorf("failed to decrement flight availability: %w", err)
	}

	matched := result.RowsAffected() > 0
	span.SetAttributes(attribute.Bool("version_match", matched))
	span.SetStatus(codes.Ok, "")
	return matched, nil
}

// IncrementAvailability returns one quota unit, unconditionally
func (r *PostgresFlightRepository) IncrementAvailability(ctx context.Context, flightID int64) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.flight.increment_availability")
	defer span.End()

	span.SetAttributes(attribute.Int64("flight_id", flightID))

	query := `
		UPDATE flights
		SET available_tickets = available_tickets + 1,
		    version = version + 1
		WHERE flight_id = $1
	`

	result, err := r.pool.Exec(ctx, query, flightID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to increment flight availability: %w", err)
	}

	if result.RowsAffected() == 0 {
		span.SetStatus(codes.Error, "not found")
		return domain.ErrFlightNotFound
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// Search lists flights with open quota matching the criteria, joined with
// their route details
func (r *PostgresFlightRepository) Search(ctx context.Context, criteria domain.FlightSearchCriteria) ([]domain.FlightDetail, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.flight.search")
	defer span.End()

	span.SetAttributes(
		attribute.String("departure_city", criteria.DepartureCity),
		attribute.String("destination_city", criteria.DestinationCity),
		attribute.String("departure_date", criteria.DepartureDate.Format(domain.DateLayout)),
	)

	query := `
		SELECT f.flight_id, fr.flight_number, fr.departure_city, fr.destination_city,
		       fr.departure_time::text, fr.arrival_time::text, f.available_tickets, f.flight_date
		FROM flights f
		JOIN flight_routes fr ON fr.flight_number = f.flight_number
		WHERE fr.departure_city = $1
		  AND fr.destination_city = $2
		  AND f.available_tickets > 0
		  AND f.flight_date = $3
		ORDER BY f.flight_date, fr.departure_time
	`
	args := []any{criteria.DepartureCity, criteria.DestinationCity, criteria.DepartureDate}

	if criteria.EndDate != nil {
		span.SetAttributes(attribute.String("end_date", criteria.EndDate.Format(domain.DateLayout)))
		query = `
			SELECT f.flight_id, fr.flight_number, fr.departure_city, fr.destination_city,
			       fr.departure_time::text, fr.arrival_time::text, f.available_tickets, f.flight_date
			FROM flights f
			JOIN flight_routes fr ON fr.flight_number = f.flight_number
			WHERE fr.departure_city = $1
			  AND fr.destination_city = $2
			  AND f.available_tickets > 0
			  AND f.flight_date BETWEEN $3 AND $4
			ORDER BY f.flight_date, fr.departure_time
		`
		args = append(args, *criteria.EndDate)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to search flights: %w", err)
	}
	defer rows.Close()

	var flights []domain.FlightDetail
	for rows.Next() {
		var detail domain.FlightDetail
		if err := rows.Scan(
			&detail.FlightID,
			&detail.FlightNumber,
			&detail.DepartureCity,
			&detail.DestinationCity,
			&detail.DepartureTime,
			&detail.ArrivalTime,
			&detail.AvailableTickets,
			&detail.FlightDate,
		); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("failed to scan flight detail: %w", err)
		}
		flights = append(flights, detail)
	}

	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("error iterating flights: %w", err)
	}

	span.SetAttributes(attribute.Int("count", len(flights)))
	span.SetStatus(codes.Ok, "")
	return flights, nil
}

// ListUpcomingIDs lists ids of flights departing today or later
func (r *PostgresFlightRepository) ListUpcomingIDs(ctx context.Context, limit int) ([]int64, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.flight.list_upcoming_ids")
	defer span.End()

	span.SetAttributes(attribute.Int("limit", limit))

	query := `
		SELECT flight_id
		FROM flights
		WHERE flight_date >= CURRENT_DATE
		ORDER BY flight_date
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to list upcoming flights: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("failed to scan flight id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("error iterating flights: %w", err)
	}

	span.SetAttributes(attribute.Int("count", len(ids)))
	span.SetStatus(codes.Ok, "")
	return ids, nil
}

var _ FlightRepository = (*PostgresFlightRepository)(nil)
