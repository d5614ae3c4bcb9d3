package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prohmpiriya/flight-rush/internal/domain"
	"github.com/prohmpiriya/flight-rush/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// PostgresSeatRepository implements SeatRepository using PostgreSQL with pgxpool
type PostgresSeatRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresSeatRepository creates a new PostgresSeatRepository
func NewPostgresSeatRepository(pool *pgxpool.Pool) *PostgresSeatRepository {
	return &PostgresSeatRepository{pool: pool}
}

// Get retrieves one seat on a flight
func (r *PostgresSeatRepository) Get(ctx context.Context, flightID int64, seatNumber int) (*domain.Seat, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.seat.get")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("flight_id", flightID),
		attribute.Int("seat_number", seatNumber),
	)

	query := `
		SELECT flight_id, seat_number, seat_status, version
		FROM seats
		WHERE flight_id = $1 AND seat_number = $2
	`

	seat := &domain.Seat{}
	err := r.pool.QueryRow(ctx, query, flightID, seatNumber).Scan(
		&seat.FlightID,
		&seat.SeatNumber,
		&seat.Status,
		&seat.Version,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "not found")
			return nil, domain.ErrSeatNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to get seat: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return seat, nil
}

// Claim runs one transactional claim attempt. It reads the target seat's
// current version inside the transaction, books the seat behind the version
// gate, releases the previously held seat when there is one, and points the
// customer's ticket at the new seat. A gate miss rolls everything back and
// reports false with no error so the caller can retry.
func (r *PostgresSeatRepository) Claim(ctx context.Context, customerID string, flightID int64, newSeat int, oldSeat *int) (bool, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.seat.claim")
	defer span.End()

	span.SetAttributes(
		attribute.String("customer_id", customerID),
		attribute.Int64("flight_id", flightID),
		attribute.Int("seat_number", newSeat),
	)
	if oldSeat != nil {
		span.SetAttributes(attribute.Int("old_seat_number", *oldSeat))
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var version int64
	err = tx.QueryRow(ctx,
		`SELECT version FROM seats WHERE flight_id = $1 AND seat_number = $2`,
		flightID, newSeat,
	).Scan(&version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "not found")
			return false, domain.ErrSeatNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, fmt.Errorf("failed to read seat version: %w", err)
	}

	bookQuery := `
		UPDATE seats
		SET seat_status = $4,
		    version = version + 1
		WHERE flight_id = $1 AND seat_number = $2 AND version = $3 AND seat_status = $5
	`
	result, err := tx.Exec(ctx, bookQuery,
		flightID, newSeat, version,
		domain.SeatStatusBooked, domain.SeatStatusAvailable,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, fmt.Errorf("failed to book seat: %w", err)
	}

	if result.RowsAffected() == 0 {
		span.SetAttributes(attribute.Bool("version_match", false))
		span.SetStatus(codes.Ok, "")
		return false, nil
	}

	if oldSeat != nil {
		releaseQuery := `
			UPDATE seats
			SET seat_status = $3,
			    version = version + 1
			WHERE flight_id = $1 AND seat_number = $2
		`
		if _, err := tx.Exec(ctx, releaseQuery, flightID, *oldSeat, domain.SeatStatusAvailable); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return false, fmt.Errorf("failed to release previous seat: %w", err)
		}
	}

	ticketQuery := `
		UPDATE tickets
		SET seat_number = $3
		WHERE customer_id = $1 AND flight_id = $2
	`
	ticketResult, err := tx.Exec(ctx, ticketQuery, customerID, flightID, newSeat)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, fmt.Errorf("failed to update ticket seat: %w", err)
	}

	if ticketResult.RowsAffected() == 0 {
		span.SetStatus(codes.Error, "ticket not found")
		return false, domain.ErrNoTicketForFlight
	}

	if err := tx.Commit(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, fmt.Errorf("failed to commit transaction: %w", err)
	}

	span.SetAttributes(attribute.Bool("version_match", true))
	span.SetStatus(codes.Ok, "")
	return true, nil
}

// Release resets a seat to AVAILABLE, unconditionally
func (r *PostgresSeatRepository) Release(ctx context.Context, flightID int64, seatNumber int) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.seat.release")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("flight_id", flightID),
		attribute.Int("seat_number", seatNumber),
	)

	query := `
		UPDATE seats
		SET seat_status = $3,
		    version = version + 1
		WHERE flight_id = $1 AND seat_number = $2
	`

	result, err := r.pool.Exec(ctx, query, flightID, seatNumber, domain.SeatStatusAvailable)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to release seat: %w", err)
	}

	if result.RowsAffected() == 0 {
		span.SetStatus(codes.Error, "not found")
		return domain.ErrSeatNotFound
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// ListAvailable lists open seat numbers on a flight, ascending
func (r *PostgresSeatRepository) ListAvailable(ctx context.Context, flightID int64) ([]int, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.seat.list_available")
	defer span.End()

	span.SetAttributes(attribute.Int64("flight_id", flightID))

	query := `
		SELECT seat_number
		FROM seats
		WHERE flight_id = $1 AND seat_status = $2
		ORDER BY seat_number
	`

	rows, err := r.pool.Query(ctx, query, flightID, domain.SeatStatusAvailable)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to list available seats: %w", err)
	}
	defer rows.Close()

	var seats []int
	for rows.Next() {
		var seatNumber int
		if err := rows.Scan(&seatNumber); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("failed to scan seat number: %w", err)
		}
		seats = append(seats, seatNumber)
	}

	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("error iterating seats: %w", err)
	}

	span.SetAttributes(attribute.Int("count", len(seats)))
	span.SetStatus(codes.Ok, "")
	return seats, nil
}

var _ SeatRepository = (*PostgresSeatRepository)(nil)
