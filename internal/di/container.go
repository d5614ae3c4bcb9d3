package di

import (
	"github.com/prohmpiriya/flight-rush/internal/handler"
	"github.com/prohmpiriya/flight-rush/internal/repository"
	"github.com/prohmpiriya/flight-rush/internal/service"
	"github.com/prohmpiriya/flight-rush/pkg/config"
	"github.com/prohmpiriya/flight-rush/pkg/database"
	"github.com/prohmpiriya/flight-rush/pkg/redis"
	"github.com/prohmpiriya/flight-rush/pkg/retry"
)

// Container holds all dependencies for the booking engine
type Container struct {
	// Infrastructure
	DB    *database.PostgresDB
	Redis *redis.Client

	// Repositories
	FlightRepo repository.FlightRepository
	SeatRepo   repository.SeatRepository
	TicketRepo repository.TicketRepository

	// Publishers
	EventPublisher service.EventPublisher

	// Services
	FlightCache     service.FlightCache
	SeatAllocator   service.SeatAllocator
	TicketAllocator service.TicketAllocator
	BookingService  service.BookingService
	FlightService   service.FlightService

	// Handlers
	HealthHandler  *handler.HealthHandler
	BookingHandler *handler.BookingHandler
	FlightHandler  *handler.FlightHandler
}

// ContainerConfig contains configuration for building the container
type ContainerConfig struct {
	DB             *database.PostgresDB
	Redis          *redis.Client
	FlightRepo     repository.FlightRepository
	SeatRepo       repository.SeatRepository
	TicketRepo     repository.TicketRepository
	EventPublisher service.EventPublisher
	Booking        *config.BookingConfig
}

// NewContainer creates a new dependency injection container
func NewContainer(cfg *ContainerConfig) *Container {
	c := &Container{
		DB:             cfg.DB,
		Redis:          cfg.Redis,
		FlightRepo:     cfg.FlightRepo,
		SeatRepo:       cfg.SeatRepo,
		TicketRepo:     cfg.TicketRepo,
		EventPublisher: cfg.EventPublisher,
	}

	booking := cfg.Booking
	if booking == nil {
		booking = &config.BookingConfig{}
	}

	ticketRetry := &retry.Config{
		MaxAttempts: booking.TicketMaxAttempts,
		MinBackoff:  booking.MinBackoff,
		MaxBackoff:  booking.MaxBackoff,
	}
	seatRetry := &retry.Config{
		MaxAttempts: booking.SeatMaxAttempts,
		MinBackoff:  booking.MinBackoff,
		MaxBackoff:  booking.MaxBackoff,
	}
	// Seat claims are terminal after a short fixed budget; the retrier's
	// default of 10 is sized for quota claims only
	if seatRetry.MaxAttempts <= 0 {
		seatRetry.MaxAttempts = 3
	}

	if c.Redis != nil {
		c.FlightCache = service.NewRedisFlightCache(c.Redis, c.FlightRepo, booking.AvailabilityTTL)
	}

	// Initialize services
	c.SeatAllocator = service.NewSeatAllocator(c.FlightRepo, c.SeatRepo, c.TicketRepo, seatRetry)
	c.TicketAllocator = service.NewTicketAllocator(c.FlightRepo, c.TicketRepo, c.SeatAllocator, c.FlightCache, ticketRetry)
	c.BookingService = service.NewBookingService(c.TicketAllocator, c.SeatAllocator, c.TicketRepo, c.EventPublisher)
	c.FlightService = service.NewFlightService(c.FlightRepo, c.SeatRepo, c.FlightCache)

	// Initialize handlers
	c.HealthHandler = handler.NewHealthHandler(c.DB, c.Redis)
	c.BookingHandler = handler.NewBookingHandler(c.BookingService)
	c.FlightHandler = handler.NewFlightHandler(c.FlightService)

	return c
}
