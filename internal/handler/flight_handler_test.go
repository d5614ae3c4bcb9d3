package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prohmpiriya/flight-rush/internal/domain"
	"github.com/prohmpiriya/flight-rush/internal/dto"
)

// MockFlightService is a mock implementation of FlightService for testing
type MockFlightService struct {
	SearchFunc         func(ctx context.Context, query *dto.FlightSearchQuery) (*dto.FlightSearchResponse, error)
	AvailableSeatsFunc func(ctx context.Context, query *dto.AvailableSeatsQuery) (*dto.AvailableSeatsResponse, error)
}

func (m *MockFlightService) Search(ctx context.Context, query *dto.FlightSearchQuery) (*dto.FlightSearchResponse, error) {
	if m.SearchFunc != nil {
		return m.SearchFunc(ctx, query)
	}
	return &dto.FlightSearchResponse{Flights: []dto.FlightDetail{}}, nil
}

func (m *MockFlightService) AvailableSeats(ctx context.Context, query *dto.AvailableSeatsQuery) (*dto.AvailableSeatsResponse, error) {
	if m.AvailableSeatsFunc != nil {
		return m.AvailableSeatsFunc(ctx, query)
	}
	return &dto.AvailableSeatsResponse{AvailableSeats: []int{}}, nil
}

// setupFlightRouter mounts the public flight routes, no identity middleware
func setupFlightRouter(handler *FlightHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()

	flights := router.Group("/api/v1/flights")
	{
		flights.GET("/search", handler.Search)
		flights.GET("/availableSeats", handler.AvailableSeats)
	}

	return router
}

func TestFlightHandler_Search(t *testing.T) {
	tests := []struct {
		name           string
		query          string
		mockFunc       func(ctx context.Context, query *dto.FlightSearchQuery) (*dto.FlightSearchResponse, error)
		expectedStatus int
		expectedCode   string
	}{
		{
			name:  "lists matching flights",
			query: "departure_city=Bangkok&destination_city=Phuket&departure_date=2026-03-15",
			mockFunc: func(ctx context.Context, query *dto.FlightSearchQuery) (*dto.FlightSearchResponse, error) {
				if query.DepartureCity != "Bangkok" || query.DestinationCity != "Phuket" {
					t.Errorf("query = %+v, want Bangkok to Phuket", query)
				}
				return &dto.FlightSearchResponse{Flights: []dto.FlightDetail{
					{FlightID: 1, FlightNumber: 100, AvailableTickets: 10, FlightDate: "2026-03-15"},
				}}, nil
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "missing required parameters",
			query:          "departure_city=Bangkok",
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "BAD_REQUEST",
		},
		{
			name:  "invalid departure date",
			query: "departure_city=Bangkok&destination_city=Phuket&departure_date=soon",
			mockFunc: func(ctx context.Context, query *dto.FlightSearchQuery) (*dto.FlightSearchResponse, error) {
				return nil, domain.ErrInvalidFlightDate
			},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "BAD_REQUEST",
		},
		{
			name:  "unexpected error",
			query: "departure_city=Bangkok&destination_city=Phuket&departure_date=2026-03-15",
			mockFunc: func(ctx context.Context, query *dto.FlightSearchQuery) (*dto.FlightSearchResponse, error) {
				return nil, errors.New("query timeout")
			},
			expectedStatus: http.StatusInternalServerError,
			expectedCode:   "INTERNAL_ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := &MockFlightService{SearchFunc: tt.mockFunc}
			router := setupFlightRouter(NewFlightHandler(mockService))

			req := httptest.NewRequest(http.MethodGet, "/api/v1/flights/search?"+tt.query, nil)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			if w.Code != tt.expectedStatus {
				t.Errorf("expected status %d, got %d", tt.expectedStatus, w.Code)
			}
			if tt.expectedCode != "" {
				if code := errorCode(t, w.Body.Bytes()); code != tt.expectedCode {
					t.Errorf("expected code %s, got %s", tt.expectedCode, code)
				}
			}

			if tt.expectedStatus == http.StatusOK {
				var envelope struct {
					Success bool                     `json:"success"`
					Data    dto.FlightSearchResponse `json:"data"`
				}
				if err := json.Unmarshal(w.Body.Bytes(), &envelope); err != nil {
					t.Fatalf("failed to parse response: %v", err)
				}
				if len(envelope.Data.Flights) != 1 || envelope.Data.Flights[0].FlightNumber != 100 {
					t.Errorf("flights = %+v, want one flight 100", envelope.Data.Flights)
				}
			}
		})
	}
}

func TestFlightHandler_AvailableSeats(t *testing.T) {
	tests := []struct {
		name           string
		query          string
		mockFunc       func(ctx context.Context, query *dto.AvailableSeatsQuery) (*dto.AvailableSeatsResponse, error)
		expectedStatus int
		expectedCode   string
		expectedSeats  []int
	}{
		{
			name:  "lists open seats",
			query: "flight_number=100&flight_date=2026-03-15",
			mockFunc: func(ctx context.Context, query *dto.AvailableSeatsQuery) (*dto.AvailableSeatsResponse, error) {
				if query.FlightNumber != 100 || query.FlightDate != "2026-03-15" {
					t.Errorf("query = %+v, want flight 100 on 2026-03-15", query)
				}
				return &dto.AvailableSeatsResponse{AvailableSeats: []int{1, 5, 9}}, nil
			},
			expectedStatus: http.StatusOK,
			expectedSeats:  []int{1, 5, 9},
		},
		{
			name:           "missing flight number",
			query:          "flight_date=2026-03-15",
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "BAD_REQUEST",
		},
		{
			name:  "unknown flight",
			query: "flight_number=999&flight_date=2026-03-15",
			mockFunc: func(ctx context.Context, query *dto.AvailableSeatsQuery) (*dto.AvailableSeatsResponse, error) {
				return nil, domain.ErrFlightNotFound
			},
			expectedStatus: http.StatusNotFound,
			expectedCode:   "NOT_FOUND",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := &MockFlightService{AvailableSeatsFunc: tt.mockFunc}
			router := setupFlightRouter(NewFlightHandler(mockService))

			req := httptest.NewRequest(http.MethodGet, "/api/v1/flights/availableSeats?"+tt.query, nil)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			if w.Code != tt.expectedStatus {
				t.Errorf("expected status %d, got %d", tt.expectedStatus, w.Code)
			}
			if tt.expectedCode != "" {
				if code := errorCode(t, w.Body.Bytes()); code != tt.expectedCode {
					t.Errorf("expected code %s, got %s", tt.expectedCode, code)
				}
			}

			if tt.expectedSeats != nil {
				var envelope struct {
					Success bool                       `json:"success"`
					Data    dto.AvailableSeatsResponse `json:"data"`
				}
				if err := json.Unmarshal(w.Body.Bytes(), &envelope); err != nil {
					t.Fatalf("failed to parse response: %v", err)
				}
				if len(envelope.Data.AvailableSeats) != len(tt.expectedSeats) {
					t.Fatalf("seats = %v, want %v", envelope.Data.AvailableSeats, tt.expectedSeats)
				}
				for i, seat := range tt.expectedSeats {
					if envelope.Data.AvailableSeats[i] != seat {
						t.Errorf("seats[%d] = %d, want %d", i, envelope.Data.AvailableSeats[i], seat)
					}
				}
			}
		})
	}
}
