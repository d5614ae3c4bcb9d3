package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/prohmpiriya/flight-rush/internal/dto"
	"github.com/prohmpiriya/flight-rush/internal/service"
	"github.com/prohmpiriya/flight-rush/pkg/response"
	"github.com/prohmpiriya/flight-rush/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// FlightHandler handles flight search HTTP requests
type FlightHandler struct {
	flightService service.FlightService
}

// NewFlightHandler creates a new flight handler
func NewFlightHandler(flightService service.FlightService) *FlightHandler {
	return &FlightHandler{flightService: flightService}
}

// Search handles GET /api/v1/flights/search
func (h *FlightHandler) Search(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.flight.search")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	var query dto.FlightSearchQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid query")
		response.BadRequest(c, err.Error())
		return
	}

	span.SetAttributes(
		attribute.String("departure_city", query.DepartureCity),
		attribute.String("destination_city", query.DestinationCity),
	)

	result, err := h.flightService.Search(ctx, &query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	response.Success(c, result)
}

// AvailableSeats handles GET /api/v1/flights/availableSeats
func (h *FlightHandler) AvailableSeats(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.flight.available_seats")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	var query dto.AvailableSeatsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid query")
		response.BadRequest(c, err.Error())
		return
	}

	span.SetAttributes(
		attribute.Int("flight_number", query.FlightNumber),
		attribute.String("flight_date", query.FlightDate),
	)

	result, err := h.flightService.AvailableSeats(ctx, &query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	response.Success(c, result)
}
