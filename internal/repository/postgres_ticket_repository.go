package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prohmpiriya/flight-rush/internal/domain"
	"github.com/prohmpiriya/flight-rush/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const pgUniqueViolationCode = "23505"

// PostgresTicketRepository implements TicketRepository using PostgreSQL with pgxpool
type PostgresTicketRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresTicketRepository creates a new PostgresTicketRepository
func NewPostgresTicketRepository(pool *pgxpool.Pool) *PostgresTicketRepository {
	return &PostgresTicketRepository{pool: pool}
}

// Create inserts a ticket. The UNIQUE(customer_id, flight_id) constraint is
// authoritative for duplicate bookings; a violation surfaces as
// domain.ErrDuplicateBooking regardless of what the caller checked earlier.
func (r *PostgresTicketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.ticket.create")
	defer span.End()

	span.SetAttributes(
		attribute.String("ticket_id", ticket.ID),
		attribute.String("customer_id", ticket.CustomerID),
		attribute.Int64("flight_id", ticket.FlightID),
	)

	query := `
		INSERT INTO tickets (
			id, customer_id, flight_id, seat_number,
			flight_date, flight_number, created_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7
		)
	`

	_, err := r.pool.Exec(ctx, query,
		ticket.ID,
		ticket.CustomerID,
		ticket.FlightID,
		ticket.SeatNumber,
		ticket.FlightDate,
		ticket.FlightNumber,
		ticket.CreatedAt,
	)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolationCode {
			span.SetStatus(codes.Error, "duplicate booking")
			return domain.ErrDuplicateBooking
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to create ticket: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// GetByID retrieves a ticket by its ID
func (r *PostgresTicketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.ticket.get_by_id")
	defer span.End()

	span.SetAttributes(attribute.String("ticket_id", id))

	query := `
		SELECT id, customer_id, flight_id, seat_number,
		       flight_date, flight_number, created_at
		FROM tickets
		WHERE id = $1
	`

	ticket := &domain.Ticket{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&ticket.ID,
		&ticket.CustomerID,
		&ticket.FlightID,
		&ticket.SeatNumber,
		&ticket.FlightDate,
		&ticket.FlightNumber,
		&ticket.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "not found")
			return nil, domain.ErrTicketNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to get ticket: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return ticket, nil
}

// GetByCustomerAndFlight retrieves the customer's ticket on a flight
func (r *PostgresTicketRepository) GetByCustomerAndFlight(ctx context.Context, customerID string, flightID int64) (*domain.Ticket, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.ticket.get_by_customer_flight")
	defer span.End()

	span.SetAttributes(
		attribute.String("customer_id", customerID),
		attribute.Int64("flight_id", flightID),
	)

	query := `
		SELECT id, customer_id, flight_id, seat_number,
		       flight_date, flight_number, created_at
		FROM tickets
		WHERE customer_id = $1 AND flight_id = $2
	`

	ticket := &domain.Ticket{}
	err := r.pool.QueryRow(ctx, query, customerID, flightID).Scan(
		&ticket.ID,
		&ticket.CustomerID,
		&ticket.FlightID,
		&ticket.SeatNumber,
		&ticket.FlightDate,
		&ticket.FlightNumber,
		&ticket.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "not found")
			return nil, domain.ErrTicketNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to get ticket: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return ticket, nil
}

// Delete removes a ticket by its ID
func (r *PostgresTicketRepository) Delete(ctx context.Context, id string) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.ticket.delete")
	defer span.End()

	span.SetAttributes(attribute.String("ticket_id", id))

	query := `DELETE FROM tickets WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to delete ticket: %w", err)
	}

	if result.RowsAffected() == 0 {
		span.SetStatus(codes.Error, "not found")
		return domain.ErrTicketNotFound
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// HistoryByCustomer lists the customer's booked flights joined with route
// details, most recent flight date first
func (r *PostgresTicketRepository) HistoryByCustomer(ctx context.Context, customerID string) ([]domain.HistoryEntry, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.ticket.history_by_customer")
	defer span.End()

	span.SetAttributes(attribute.String("customer_id", customerID))

	query := `
		SELECT fr.flight_number, t.seat_number, fr.departure_city, fr.destination_city,
		       f.flight_date, fr.departure_time::text, fr.arrival_time::text
		FROM tickets t
		JOIN flights f ON f.flight_id = t.flight_id
		JOIN flight_routes fr ON fr.flight_number = f.flight_number
		WHERE t.customer_id = $1
		ORDER BY f.flight_date DESC
	`

	rows, err := r.pool.Query(ctx, query, customerID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to get booking history: %w", err)
	}
	defer rows.Close()

	var entries []domain.HistoryEntry
	for rows.Next() {
		var entry domain.HistoryEntry
		if err := rows.Scan(
			&entry.FlightNumber,
			&entry.SeatNumber,
			&entry.DepartureCity,
			&entry.DestinationCity,
			&entry.FlightDate,
			&entry.DepartureTime,
			&entry.ArrivalTime,
		); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("error iterating history: %w", err)
	}

	span.SetAttributes(attribute.Int("count", len(entries)))
	span.SetStatus(codes.Ok, "")
	return entries, nil
}

var _ TicketRepository = (*PostgresTicketRepository)(nil)
