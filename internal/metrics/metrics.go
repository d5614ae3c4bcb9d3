package metrics

import (
	"context"
	"sync"

	"github.com/prohmpiriya/flight-rush/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

var (
	// Booking counters
	TicketsBooked    *telemetry.Counter
	TicketsCancelled *telemetry.Counter
	BookingsFailed   *telemetry.Counter
	Compensations    *telemetry.Counter

	// Optimistic-concurrency counters. A version conflict is a gate miss on a
	// conditional update, not an error.
	QuotaConflicts *telemetry.Counter
	SeatConflicts  *telemetry.Counter

	// Seat counters
	SeatsAssigned *telemetry.Counter

	// Histograms
	QuotaAttempts   *telemetry.Histogram
	BookingDuration *telemetry.Histogram
	RequestDuration *telemetry.Histogram

	// Gauges
	TicketsOutstanding *telemetry.UpDownCounter

	initOnce sync.Once
	initErr  error
)

// Init initializes all booking engine metrics
func Init() error {
	initOnce.Do(func() {
		initErr = initMetrics()
	})
	return initErr
}

func initMetrics() error {
	var err error

	TicketsBooked, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "tickets_booked_total",
		Description: "Total number of tickets booked",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	TicketsCancelled, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "tickets_cancelled_total",
		Description: "Total number of tickets cancelled",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	BookingsFailed, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "booking_failures_total",
		Description: "Total number of failed booking requests",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	Compensations, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "booking_compensations_total",
		Description: "Total number of bookings unwound after a partial failure",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	QuotaConflicts, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "quota_version_conflicts_total",
		Description: "Total number of flight quota updates that missed the version gate",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	SeatConflicts, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "seat_version_conflicts_total",
		Description: "Total number of seat claims that missed the version gate",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	SeatsAssigned, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "seats_assigned_total",
		Description: "Total number of seats assigned",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	QuotaAttempts, err = telemetry.NewHistogram(telemetry.MetricOpts{
		Name:        "booking_quota_attempts",
		Description: "Number of optimistic attempts needed to claim one quota unit",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	BookingDuration, err = telemetry.NewHistogram(telemetry.MetricOpts{
		Name:        "booking_duration_seconds",
		Description: "End-to-end duration of booking requests",
		Unit:        "s",
	})
	if err != nil {
		return err
	}

	RequestDuration, err = telemetry.NewHistogram(telemetry.MetricOpts{
		Name:        "http_request_duration_seconds",
		Description: "HTTP request duration",
		Unit:        "s",
	})
	if err != nil {
		return err
	}

	TicketsOutstanding, err = telemetry.NewUpDownCounter(telemetry.MetricOpts{
		Name:        "tickets_outstanding",
		Description: "Number of tickets currently held",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	return nil
}

// RecordTicketBooked records a successful ticket acquisition
func RecordTicketBooked(ctx context.Context, flightID int64, attempts int) {
	if TicketsBooked != nil {
		TicketsBooked.Inc(ctx,
			attribute.Int64("flight_id", flightID),
		)
	}
	if QuotaAttempts != nil {
		QuotaAttempts.Record(ctx, float64(attempts),
			attribute.Int64("flight_id", flightID),
		)
	}
	if TicketsOutstanding != nil {
		TicketsOutstanding.Add(ctx, 1)
	}
}

// RecordTicketCancelled records a ticket release
func RecordTicketCancelled(ctx context.Context, flightID int64) {
	if TicketsCancelled != nil {
		TicketsCancelled.Inc(ctx,
			attribute.Int64("flight_id", flightID),
		)
	}
	if TicketsOutstanding != nil {
		TicketsOutstanding.Add(ctx, -1)
	}
}

// RecordBookingFailure records a failed booking request
func RecordBookingFailure(ctx context.Context, reason string) {
	if BookingsFailed != nil {
		BookingsFailed.Inc(ctx,
			attribute.String("reason", reason),
		)
	}
}

// RecordCompensation records a saga unwind
func RecordCompensation(ctx context.Context, legs int) {
	if Compensations != nil {
		Compensations.Inc(ctx,
			attribute.Int("legs", legs),
		)
	}
}

// RecordQuotaConflict records a flight quota version-gate miss
func RecordQuotaConflict(ctx context.Context, flightID int64) {
	if QuotaConflicts != nil {
		QuotaConflicts.Inc(ctx,
			attribute.Int64("flight_id", flightID),
		)
	}
}

// RecordSeatConflict records a seat claim version-gate miss
func RecordSeatConflict(ctx context.Context, flightID int64, seatNumber int) {
	if SeatConflicts != nil {
		SeatConflicts.Inc(ctx,
			attribute.Int64("flight_id", flightID),
			attribute.Int("seat_number", seatNumber),
		)
	}
}

// RecordSeatAssigned records a successful seat assignment
func RecordSeatAssigned(ctx context.Context, flightID int64) {
	if SeatsAssigned != nil {
		SeatsAssigned.Inc(ctx,
			attribute.Int64("flight_id", flightID),
		)
	}
}

// RecordBookingDuration records the end-to-end duration of a booking request
func RecordBookingDuration(ctx context.Context, seconds float64, status string) {
	if BookingDuration != nil {
		BookingDuration.Record(ctx, seconds,
			attribute.String("status", status),
		)
	}
}

// RecordRequestDuration records the duration of an HTTP request by route
func RecordRequestDuration(ctx context.Context, seconds float64, method, route string, status int) {
	if RequestDuration != nil {
		RequestDuration.Record(ctx, seconds,
			attribute.String("method", method),
			attribute.String("route", route),
			attribute.Int("status", status),
		)
	}
}
