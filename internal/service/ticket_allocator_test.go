package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prohmpiriya/flight-rush/internal/domain"
	"github.com/prohmpiriya/flight-rush/pkg/retry"
)

// MockFlightRepository is a mock implementation of FlightRepository
type MockFlightRepository struct {
	GetByNumberAndDateFunc    func(ctx context.Context, flightNumber int, flightDate time.Time) (*domain.Flight, error)
	GetByIDFunc               func(ctx context.Context, flightID int64) (*domain.Flight, error)
	DecrementAvailabilityFunc func(ctx context.Context, flightID, version int64) (bool, error)
	IncrementAvailabilityFunc func(ctx context.Context, flightID int64) error
	SearchFunc                func(ctx context.Context, criteria domain.FlightSearchCriteria) ([]domain.FlightDetail, error)
	ListUpcomingIDsFunc       func(ctx context.Context, limit int) ([]int64, error)
}

func (m *MockFlightRepository) GetByNumberAndDate(ctx context.Context, flightNumber int, flightDate time.Time) (*domain.Flight, error) {
	if m.GetByNumberAndDateFunc != nil {
		return m.GetByNumberAndDateFunc(ctx, flightNumber, flightDate)
	}
	return nil, domain.ErrFlightNotFound
}

func (m *MockFlightRepository) GetByID(ctx context.Context, flightID int64) (*domain.Flight, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, flightID)
	}
	return nil, domain.ErrFlightNotFound
}

func (m *MockFlightRepository) DecrementAvailability(ctx context.Context, flightID, version int64) (bool, error) {
	if m.DecrementAvailabilityFunc != nil {
		return m.DecrementAvailabilityFunc(ctx, flightID, version)
	}
	return true, nil
}

func (m *MockFlightRepository) IncrementAvailability(ctx context.Context, flightID int64) error {
	if m.IncrementAvailabilityFunc != nil {
		return m.IncrementAvailabilityFunc(ctx, flightID)
	}
	return nil
}

func (m *MockFlightRepository) Search(ctx context.Context, criteria domain.FlightSearchCriteria) ([]domain.FlightDetail, error) {
	if m.SearchFunc != nil {
		return m.SearchFunc(ctx, criteria)
	}
	return []domain.FlightDetail{}, nil
}

func (m *MockFlightRepository) ListUpcomingIDs(ctx context.Context, limit int) ([]int64, error) {
	if m.ListUpcomingIDsFunc != nil {
		return m.ListUpcomingIDsFunc(ctx, limit)
	}
	return []int64{}, nil
}

// MockSeatRepository is a mock implementation of SeatRepository
type MockSeatRepository struct {
	GetFunc           func(ctx context.Context, flightID int64, seatNumber int) (*domain.Seat, error)
	ClaimFunc         func(ctx context.Context, customerID string, flightID int64, newSeat int, oldSeat *int) (bool, error)
	ReleaseFunc       func(ctx context.Context, flightID int64, seatNumber int) error
	ListAvailableFunc func(ctx context.Context, flightID int64) ([]int, error)
}

func (m *MockSeatRepository) Get(ctx context.Context, flightID int64, seatNumber int) (*domain.Seat, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, flightID, seatNumber)
	}
	return nil, domain.ErrSeatNotFound
}

func (m *MockSeatRepository) Claim(ctx context.Context, customerID string, flightID int64, newSeat int, oldSeat *int) (bool, error) {
	if m.ClaimFunc != nil {
		return m.ClaimFunc(ctx, customerID, flightID, newSeat, oldSeat)
	}
	return true, nil
}

func (m *MockSeatRepository) Release(ctx context.Context, flightID int64, seatNumber int) error {
	if m.ReleaseFunc != nil {
		return m.ReleaseFunc(ctx, flightID, seatNumber)
	}
	return nil
}

func (m *MockSeatRepository) ListAvailable(ctx context.Context, flightID int64) ([]int, error) {
	if m.ListAvailableFunc != nil {
		return m.ListAvailableFunc(ctx, flightID)
	}
	return []int{}, nil
}

// MockTicketRepository is a mock implementation of TicketRepository
type MockTicketRepository struct {
	CreateFunc                 func(ctx context.Context, ticket *domain.Ticket) error
	GetByIDFunc                func(ctx context.Context, id string) (*domain.Ticket, error)
	GetByCustomerAndFlightFunc func(ctx context.Context, customerID string, flightID int64) (*domain.Ticket, error)
	DeleteFunc                 func(ctx context.Context, id string) error
	HistoryByCustomerFunc      func(ctx context.Context, customerID string) ([]domain.HistoryEntry, error)
}

func (m *MockTicketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, ticket)
	}
	return nil
}

func (m *MockTicketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, domain.ErrTicketNotFound
}

func (m *MockTicketRepository) GetByCustomerAndFlight(ctx context.Context, customerID string, flightID int64) (*domain.Ticket, error) {
	if m.GetByCustomerAndFlightFunc != nil {
		return m.GetByCustomerAndFlightFunc(ctx, customerID, flightID)
	}
	return nil, domain.ErrTicketNotFound
}

func (m *MockTicketRepository) Delete(ctx context.Context, id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return nil
}

func (m *MockTicketRepository) HistoryByCustomer(ctx context.Context, customerID string) ([]domain.HistoryEntry, error) {
	if m.HistoryByCustomerFunc != nil {
		return m.HistoryByCustomerFunc(ctx, customerID)
	}
	return []domain.HistoryEntry{}, nil
}

// fakeFlightStore is an in-memory FlightRepository over a single flight with
// the same version-gate semantics as the SQL implementation: the decrement
// lands only when the caller's version matches, and every landed write bumps
// the version.
type fakeFlightStore struct {
	mu     sync.Mutex
	flight domain.Flight
}

func newFakeFlightStore(flightID int64, flightNumber, availableTickets int) *fakeFlightStore {
	return &fakeFlightStore{
		flight: domain.Flight{
			FlightID:         flightID,
			FlightNumber:     flightNumber,
			FlightDate:       time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
			AvailableTickets: availableTickets,
			Version:          1,
		},
	}
}

func (s *fakeFlightStore) GetByNumberAndDate(ctx context.Context, flightNumber int, flightDate time.Time) (*domain.Flight, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if flightNumber != s.flight.FlightNumber {
		return nil, domain.ErrFlightNotFound
	}
	f := s.flight
	return &f, nil
}

func (s *fakeFlightStore) GetByID(ctx context.Context, flightID int64) (*domain.Flight, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if flightID != s.flight.FlightID {
		return nil, domain.ErrFlightNotFound
	}
	f := s.flight
	return &f, nil
}

func (s *fakeFlightStore) DecrementAvailability(ctx context.Context, flightID, version int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if flightID != s.flight.FlightID || version != s.flight.Version {
		return false, nil
	}
	s.flight.AvailableTickets--
	s.flight.Version++
	return true, nil
}

func (s *fakeFlightStore) IncrementAvailability(ctx context.Context, flightID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if flightID != s.flight.FlightID {
		return domain.ErrFlightNotFound
	}
	s.flight.AvailableTickets++
	s.flight.Version++
	return nil
}

func (s *fakeFlightStore) Search(ctx context.Context, criteria domain.FlightSearchCriteria) ([]domain.FlightDetail, error) {
	return []domain.FlightDetail{}, nil
}

func (s *fakeFlightStore) ListUpcomingIDs(ctx context.Context, limit int) ([]int64, error) {
	return []int64{s.flight.FlightID}, nil
}

func (s *fakeFlightStore) Available() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flight.AvailableTickets
}

// fakeTicketStore is an in-memory TicketRepository enforcing the
// (customer_id, flight_id) uniqueness constraint
type fakeTicketStore struct {
	mu     sync.Mutex
	byID   map[string]domain.Ticket
	byPair map[string]string
}

func newFakeTicketStore() *fakeTicketStore {
	return &fakeTicketStore{
		byID:   make(map[string]domain.Ticket),
		byPair: make(map[string]string),
	}
}

func ticketPairKey(customerID string, flightID int64) string {
	return fmt.Sprintf("%s|%d", customerID, flightID)
}

func (s *fakeTicketStore) Create(ctx context.Context, ticket *domain.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := ticketPairKey(ticket.CustomerID, ticket.FlightID)
	if _, exists := s.byPair[key]; exists {
		return domain.ErrDuplicateBooking
	}
	s.byID[ticket.ID] = *ticket
	s.byPair[key] = ticket.ID
	return nil
}

func (s *fakeTicketStore) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.byID[id]
	if !ok {
		return nil, domain.ErrTicketNotFound
	}
	return &t, nil
}

func (s *fakeTicketStore) GetByCustomerAndFlight(ctx context.Context, customerID string, flightID int64) (*domain.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byPair[ticketPairKey(customerID, flightID)]
	if !ok {
		return nil, domain.ErrTicketNotFound
	}
	t := s.byID[id]
	return &t, nil
}

func (s *fakeTicketStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.byID[id]
	if !ok {
		return domain.ErrTicketNotFound
	}
	delete(s.byID, id)
	delete(s.byPair, ticketPairKey(t.CustomerID, t.FlightID))
	return nil
}

func (s *fakeTicketStore) HistoryByCustomer(ctx context.Context, customerID string) ([]domain.HistoryEntry, error) {
	return []domain.HistoryEntry{}, nil
}

func (s *fakeTicketStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}

func testRetryConfig() *retry.Config {
	return &retry.Config{
		MaxAttempts: 3,
		MinBackoff:  1 * time.Millisecond,
		MaxBackoff:  2 * time.Millisecond,
	}
}

func testFlight(available int) *domain.Flight {
	return &domain.Flight{
		FlightID:         1,
		FlightNumber:     500,
		FlightDate:       time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
		AvailableTickets: available,
		Version:          7,
	}
}

func newTestTicketAllocator(flightRepo *MockFlightRepository, ticketRepo *MockTicketRepository) TicketAllocator {
	seats := NewSeatAllocator(flightRepo, &MockSeatRepository{}, ticketRepo, testRetryConfig())
	return NewTicketAllocator(flightRepo, ticketRepo, seats, nil, testRetryConfig())
}

func TestTicketAllocator_Acquire(t *testing.T) {
	flightDate := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		setupMocks func(*MockFlightRepository, *MockTicketRepository)
		wantErr    error
	}{
		{
			name: "successful acquire",
			setupMocks: func(fr *MockFlightRepository, tr *MockTicketRepository) {
				fr.GetByNumberAndDateFunc = func(ctx context.Context, flightNumber int, flightDate time.Time) (*domain.Flight, error) {
					return testFlight(10), nil
				}
				fr.GetByIDFunc = func(ctx context.Context, flightID int64) (*domain.Flight, error) {
					return testFlight(10), nil
				}
			},
			wantErr: nil,
		},
		{
			name:       "flight not operating",
			setupMocks: func(fr *MockFlightRepository, tr *MockTicketRepository) {},
			wantErr:    domain.ErrFlightNotOperating,
		},
		{
			name: "duplicate booking rejected on fast path",
			setupMocks: func(fr *MockFlightRepository, tr *MockTicketRepository) {
				fr.GetByNumberAndDateFunc = func(ctx context.Context, flightNumber int, flightDate time.Time) (*domain.Flight, error) {
					return testFlight(10), nil
				}
				tr.GetByCustomerAndFlightFunc = func(ctx context.Context, customerID string, flightID int64) (*domain.Ticket, error) {
					return &domain.Ticket{ID: "existing", CustomerID: customerID, FlightID: flightID}, nil
				}
			},
			wantErr: domain.ErrDuplicateBooking,
		},
		{
			name: "fully booked",
			setupMocks: func(fr *MockFlightRepository, tr *MockTicketRepository) {
				fr.GetByNumberAndDateFunc = func(ctx context.Context, flightNumber int, flightDate time.Time) (*domain.Flight, error) {
					return testFlight(0), nil
				}
				fr.GetByIDFunc = func(ctx context.Context, flightID int64) (*domain.Flight, error) {
					return testFlight(0), nil
				}
			},
			wantErr: domain.ErrFlightFullyBooked,
		},
		{
			name: "retries exhausted on persistent version conflict",
			setupMocks: func(fr *MockFlightRepository, tr *MockTicketRepository) {
				fr.GetByNumberAndDateFunc = func(ctx context.Context, flightNumber int, flightDate time.Time) (*domain.Flight, error) {
					return testFlight(10), nil
				}
				fr.GetByIDFunc = func(ctx context.Context, flightID int64) (*domain.Flight, error) {
					return testFlight(10), nil
				}
				fr.DecrementAvailabilityFunc = func(ctx context.Context, flightID, version int64) (bool, error) {
					return false, nil
				}
			},
			wantErr: domain.ErrTicketRetryExhausted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flightRepo := &MockFlightRepository{}
			ticketRepo := &MockTicketRepository{}
			tt.setupMocks(flightRepo, ticketRepo)

			allocator := newTestTicketAllocator(flightRepo, ticketRepo)
			ticket, err := allocator.Acquire(context.Background(), "customer-1", 500, flightDate)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Acquire() error = %v, wantErr %v", err, tt.wantErr)
				}
				return
			}

			if err != nil {
				t.Fatalf("Acquire() unexpected error = %v", err)
			}
			if ticket.ID == "" {
				t.Error("Acquire() expected ticket ID, got empty")
			}
			if ticket.CustomerID != "customer-1" {
				t.Errorf("Acquire() CustomerID = %q, want %q", ticket.CustomerID, "customer-1")
			}
			if ticket.FlightID != 1 || ticket.FlightNumber != 500 {
				t.Errorf("Acquire() flight = (%d, %d), want (1, 500)", ticket.FlightID, ticket.FlightNumber)
			}
			if ticket.SeatNumber != nil {
				t.Errorf("Acquire() SeatNumber = %v, want nil", *ticket.SeatNumber)
			}
		})
	}
}

func TestTicketAllocator_Acquire_ConflictThenSuccess(t *testing.T) {
	var decrements int32

	flightRepo := &MockFlightRepository{
		GetByNumberAndDateFunc: func(ctx context.Context, flightNumber int, flightDate time.Time) (*domain.Flight, error) {
			return testFlight(10), nil
		},
		GetByIDFunc: func(ctx context.Context, flightID int64) (*domain.Flight, error) {
			return testFlight(10), nil
		},
		DecrementAvailabilityFunc: func(ctx context.Context, flightID, version int64) (bool, error) {
			// First attempt loses the version race, second lands
			return atomic.AddInt32(&decrements, 1) > 1, nil
		},
	}
	ticketRepo := &MockTicketRepository{}

	allocator := newTestTicketAllocator(flightRepo, ticketRepo)
	ticket, err := allocator.Acquire(context.Background(), "customer-1", 500, testFlight(10).FlightDate)
	if err != nil {
		t.Fatalf("Acquire() unexpected error = %v", err)
	}
	if ticket == nil {
		t.Fatal("Acquire() expected ticket, got nil")
	}
	if got := atomic.LoadInt32(&decrements); got != 2 {
		t.Errorf("expected 2 decrement attempts, got %d", got)
	}
}

func TestTicketAllocator_Acquire_AttemptsBounded(t *testing.T) {
	var decrements int32

	flightRepo := &MockFlightRepository{
		GetByNumberAndDateFunc: func(ctx context.Context, flightNumber int, flightDate time.Time) (*domain.Flight, error) {
			return testFlight(10), nil
		},
		GetByIDFunc: func(ctx context.Context, flightID int64) (*domain.Flight, error) {
			return testFlight(10), nil
		},
		DecrementAvailabilityFunc: func(ctx context.Context, flightID, version int64) (bool, error) {
			atomic.AddInt32(&decrements, 1)
			return false, nil
		},
	}

	allocator := newTestTicketAllocator(flightRepo, &MockTicketRepository{})
	_, err := allocator.Acquire(context.Background(), "customer-1", 500, testFlight(10).FlightDate)
	if !errors.Is(err, domain.ErrTicketRetryExhausted) {
		t.Fatalf("Acquire() error = %v, want ErrTicketRetryExhausted", err)
	}
	if got := atomic.LoadInt32(&decrements); got != 3 {
		t.Errorf("expected exactly 3 decrement attempts, got %d", got)
	}
}

func TestTicketAllocator_Acquire_InsertFailureReturnsQuota(t *testing.T) {
	insertErr := errors.New("insert failed")
	var increments int32

	flightRepo := &MockFlightRepository{
		GetByNumberAndDateFunc: func(ctx context.Context, flightNumber int, flightDate time.Time) (*domain.Flight, error) {
			return testFlight(10), nil
		},
		GetByIDFunc: func(ctx context.Context, flightID int64) (*domain.Flight, error) {
			return testFlight(10), nil
		},
		IncrementAvailabilityFunc: func(ctx context.Context, flightID int64) error {
			atomic.AddInt32(&increments, 1)
			return nil
		},
	}
	ticketRepo := &MockTicketRepository{
		CreateFunc: func(ctx context.Context, ticket *domain.Ticket) error {
			return insertErr
		},
	}

	allocator := newTestTicketAllocator(flightRepo, ticketRepo)
	_, err := allocator.Acquire(context.Background(), "customer-1", 500, testFlight(10).FlightDate)
	if !errors.Is(err, insertErr) {
		t.Fatalf("Acquire() error = %v, want wrapped insert error", err)
	}
	if got := atomic.LoadInt32(&increments); got != 1 {
		t.Errorf("expected exactly 1 quota return, got %d", got)
	}
}

func TestTicketAllocator_Acquire_InsertFailureAndQuotaReturnFailure(t *testing.T) {
	insertErr := errors.New("insert failed")
	incErr := errors.New("increment failed")

	flightRepo := &MockFlightRepository{
		GetByNumberAndDateFunc: func(ctx context.Context, flightNumber int, flightDate time.Time) (*domain.Flight, error) {
			return testFlight(10), nil
		},
		GetByIDFunc: func(ctx context.Context, flightID int64) (*domain.Flight, error) {
			return testFlight(10), nil
		},
		IncrementAvailabilityFunc: func(ctx context.Context, flightID int64) error {
			return incErr
		},
	}
	ticketRepo := &MockTicketRepository{
		CreateFunc: func(ctx context.Context, ticket *domain.Ticket) error {
			return insertErr
		},
	}

	allocator := newTestTicketAllocator(flightRepo, ticketRepo)
	_, err := allocator.Acquire(context.Background(), "customer-1", 500, testFlight(10).FlightDate)
	if !errors.Is(err, insertErr) {
		t.Errorf("Acquire() error should carry the insert failure, got %v", err)
	}
	if !errors.Is(err, incErr) {
		t.Errorf("Acquire() error should carry the quota return failure, got %v", err)
	}
}

func TestTicketAllocator_Release(t *testing.T) {
	seatNumber := 12

	t.Run("releases quota, ticket and seat", func(t *testing.T) {
		var deleted, incremented, seatReleased int32

		flightRepo := &MockFlightRepository{
			IncrementAvailabilityFunc: func(ctx context.Context, flightID int64) error {
				atomic.AddInt32(&incremented, 1)
				return nil
			},
		}
		seatRepo := &MockSeatRepository{
			ReleaseFunc: func(ctx context.Context, flightID int64, seat int) error {
				if seat != seatNumber {
					t.Errorf("seat release got seat %d, want %d", seat, seatNumber)
				}
				atomic.AddInt32(&seatReleased, 1)
				return nil
			},
		}
		ticketRepo := &MockTicketRepository{
			GetByIDFunc: func(ctx context.Context, id string) (*domain.Ticket, error) {
				return &domain.Ticket{ID: id, CustomerID: "customer-1", FlightID: 1, SeatNumber: &seatNumber}, nil
			},
			DeleteFunc: func(ctx context.Context, id string) error {
				atomic.AddInt32(&deleted, 1)
				return nil
			},
		}

		seats := NewSeatAllocator(flightRepo, seatRepo, ticketRepo, testRetryConfig())
		allocator := NewTicketAllocator(flightRepo, ticketRepo, seats, nil, testRetryConfig())

		if err := allocator.Release(context.Background(), "ticket-1"); err != nil {
			t.Fatalf("Release() unexpected error = %v", err)
		}
		if deleted != 1 || incremented != 1 || seatReleased != 1 {
			t.Errorf("Release() deleted=%d incremented=%d seatReleased=%d, want 1/1/1", deleted, incremented, seatReleased)
		}
	})

	t.Run("missing ticket fails without moving quota", func(t *testing.T) {
		var incremented int32

		flightRepo := &MockFlightRepository{
			IncrementAvailabilityFunc: func(ctx context.Context, flightID int64) error {
				atomic.AddInt32(&incremented, 1)
				return nil
			},
		}
		ticketRepo := &MockTicketRepository{}

		allocator := newTestTicketAllocator(flightRepo, ticketRepo)
		err := allocator.Release(context.Background(), "missing")
		if !errors.Is(err, domain.ErrTicketNotFound) {
			t.Fatalf("Release() error = %v, want ErrTicketNotFound", err)
		}
		if incremented != 0 {
			t.Errorf("Release() moved quota for a missing ticket")
		}
	})

	t.Run("tolerates a missing seat", func(t *testing.T) {
		ticketRepo := &MockTicketRepository{
			GetByIDFunc: func(ctx context.Context, id string) (*domain.Ticket, error) {
				return &domain.Ticket{ID: id, CustomerID: "customer-1", FlightID: 1, SeatNumber: &seatNumber}, nil
			},
		}
		seatRepo := &MockSeatRepository{
			ReleaseFunc: func(ctx context.Context, flightID int64, seat int) error {
				return domain.ErrSeatNotFound
			},
		}
		flightRepo := &MockFlightRepository{}

		seats := NewSeatAllocator(flightRepo, seatRepo, ticketRepo, testRetryConfig())
		allocator := NewTicketAllocator(flightRepo, ticketRepo, seats, nil, testRetryConfig())

		if err := allocator.Release(context.Background(), "ticket-1"); err != nil {
			t.Fatalf("Release() unexpected error = %v", err)
		}
	})
}

func TestTicketAllocator_ReleaseTwiceFails(t *testing.T) {
	flights := newFakeFlightStore(1, 500, 10)
	tickets := newFakeTicketStore()

	seats := NewSeatAllocator(flights, &MockSeatRepository{}, tickets, testRetryConfig())
	allocator := NewTicketAllocator(flights, tickets, seats, nil, testRetryConfig())

	ticket, err := allocator.Acquire(context.Background(), "customer-1", 500, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Acquire() unexpected error = %v", err)
	}
	if flights.Available() != 9 {
		t.Fatalf("expected 9 tickets available after acquire, got %d", flights.Available())
	}

	if err := allocator.Release(context.Background(), ticket.ID); err != nil {
		t.Fatalf("first Release() unexpected error = %v", err)
	}
	if flights.Available() != 10 {
		t.Errorf("expected 10 tickets available after release, got %d", flights.Available())
	}

	err = allocator.Release(context.Background(), ticket.ID)
	if !errors.Is(err, domain.ErrTicketNotFound) {
		t.Fatalf("second Release() error = %v, want ErrTicketNotFound", err)
	}
	if flights.Available() != 10 {
		t.Errorf("second release moved quota: available = %d, want 10", flights.Available())
	}
}

func TestTicketAllocator_NoOversell(t *testing.T) {
	tests := []struct {
		name      string
		capacity  int
		customers int
	}{
		{name: "1 ticket, 10 customers", capacity: 1, customers: 10},
		{name: "5 tickets, 20 customers", capacity: 5, customers: 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flights := newFakeFlightStore(1, 500, tt.capacity)
			tickets := newFakeTicketStore()

			cfg := &retry.Config{
				MaxAttempts: 10,
				MinBackoff:  1 * time.Millisecond,
				MaxBackoff:  5 * time.Millisecond,
			}
			seats := NewSeatAllocator(flights, &MockSeatRepository{}, tickets, cfg)
			allocator := NewTicketAllocator(flights, tickets, seats, nil, cfg)

			flightDate := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)

			var wg sync.WaitGroup
			var successes int32
			errs := make([]error, tt.customers)

			for i := 0; i < tt.customers; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					_, err := allocator.Acquire(context.Background(), fmt.Sprintf("customer-%d", i), 500, flightDate)
					if err == nil {
						atomic.AddInt32(&successes, 1)
						return
					}
					errs[i] = err
				}(i)
			}
			wg.Wait()

			if int(successes) != tt.capacity {
				t.Errorf("expected exactly %d successful bookings, got %d", tt.capacity, successes)
			}
			if got := tickets.Count(); got != tt.capacity {
				t.Errorf("expected %d tickets created, got %d", tt.capacity, got)
			}
			if got := flights.Available(); got != 0 {
				t.Errorf("expected 0 tickets available, got %d", got)
			}
			for i, err := range errs {
				if err == nil {
					continue
				}
				if !errors.Is(err, domain.ErrFlightFullyBooked) && !errors.Is(err, domain.ErrTicketRetryExhausted) {
					t.Errorf("customer %d failed with %v, want fully booked or retries exhausted", i, err)
				}
			}
		})
	}
}

func TestTicketAllocator_ConcurrentDuplicateCustomer(t *testing.T) {
	const capacity = 10
	const racers = 5

	flights := newFakeFlightStore(1, 500, capacity)
	tickets := newFakeTicketStore()

	cfg := &retry.Config{
		MaxAttempts: 10,
		MinBackoff:  1 * time.Millisecond,
		MaxBackoff:  5 * time.Millisecond,
	}
	seats := NewSeatAllocator(flights, &MockSeatRepository{}, tickets, cfg)
	allocator := NewTicketAllocator(flights, tickets, seats, nil, cfg)

	flightDate := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	var successes, duplicates int32

	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := allocator.Acquire(context.Background(), "customer-1", 500, flightDate)
			switch {
			case err == nil:
				atomic.AddInt32(&successes, 1)
			case errors.Is(err, domain.ErrDuplicateBooking):
				atomic.AddInt32(&duplicates, 1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Errorf("expected exactly 1 booking for the customer, got %d", successes)
	}
	if int(successes+duplicates) != racers {
		t.Errorf("expected %d racers to finish as success or duplicate, got %d", racers, successes+duplicates)
	}
	if got := tickets.Count(); got != 1 {
		t.Errorf("expected 1 ticket, got %d", got)
	}
	// Losing racers that reached the insert must have returned their quota
	if got := flights.Available(); got != capacity-1 {
		t.Errorf("expected %d tickets available, got %d", capacity-1, got)
	}
}
