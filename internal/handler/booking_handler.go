package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prohmpiriya/flight-rush/internal/domain"
	"github.com/prohmpiriya/flight-rush/internal/dto"
	"github.com/prohmpiriya/flight-rush/internal/service"
	"github.com/prohmpiriya/flight-rush/pkg/middleware"
	"github.com/prohmpiriya/flight-rush/pkg/response"
	"github.com/prohmpiriya/flight-rush/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// BookingHandler handles ticket booking HTTP requests
type BookingHandler struct {
	bookingService service.BookingService
}

// NewBookingHandler creates a new booking handler
func NewBookingHandler(bookingService service.BookingService) *BookingHandler {
	return &BookingHandler{bookingService: bookingService}
}

// BookTickets handles POST /api/v1/tickets/book
func (h *BookingHandler) BookTickets(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.booking.book_tickets")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	customerID, ok := middleware.GetCustomerID(c)
	if !ok {
		span.SetStatus(codes.Error, "missing customer id")
		response.Unauthorized(c, "missing "+middleware.CustomerIDHeader+" header")
		return
	}

	var req dto.TicketBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid request")
		response.BadRequest(c, err.Error())
		return
	}

	span.SetAttributes(
		attribute.String("customer_id", customerID),
		attribute.Int("legs", len(req.Flights)),
	)

	result, err := h.bookingService.BookTickets(ctx, customerID, &req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	response.Created(c, result)
}

// BookSeat handles POST /api/v1/tickets/seat
func (h *BookingHandler) BookSeat(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.booking.book_seat")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	customerID, ok := middleware.GetCustomerID(c)
	if !ok {
		span.SetStatus(codes.Error, "missing customer id")
		response.Unauthorized(c, "missing "+middleware.CustomerIDHeader+" header")
		return
	}

	var req dto.SeatBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid request")
		response.BadRequest(c, err.Error())
		return
	}

	span.SetAttributes(
		attribute.String("customer_id", customerID),
		attribute.Int("flight_number", req.FlightNumber),
		attribute.Int("seat_number", req.SeatNumber),
	)

	result, err := h.bookingService.BookSeat(ctx, customerID, &req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	response.Success(c, result)
}

// CancelTicket handles DELETE /api/v1/tickets/:ticketID
func (h *BookingHandler) CancelTicket(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.booking.cancel_ticket")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	customerID, ok := middleware.GetCustomerID(c)
	if !ok {
		span.SetStatus(codes.Error, "missing customer id")
		response.Unauthorized(c, "missing "+middleware.CustomerIDHeader+" header")
		return
	}

	ticketID := c.Param("ticketID")
	if ticketID == "" {
		span.SetStatus(codes.Error, "missing ticket id")
		response.BadRequest(c, "ticket ID is required")
		return
	}

	span.SetAttributes(
		attribute.String("customer_id", customerID),
		attribute.String("ticket_id", ticketID),
	)

	result, err := h.bookingService.CancelTicket(ctx, customerID, ticketID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	response.Success(c, result)
}

// History handles GET /api/v1/tickets/history
func (h *BookingHandler) History(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.booking.history")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	customerID, ok := middleware.GetCustomerID(c)
	if !ok {
		span.SetStatus(codes.Error, "missing customer id")
		response.Unauthorized(c, "missing "+middleware.CustomerIDHeader+" header")
		return
	}

	span.SetAttributes(attribute.String("customer_id", customerID))

	result, err := h.bookingService.History(ctx, customerID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	response.Success(c, result)
}

// handleError maps domain errors onto HTTP status codes. Validation is
// checked before NotFound so that a compensated booking whose error chain
// contains a not-found undo failure still reports the booking rejection.
func handleError(c *gin.Context, err error) {
	switch {
	case domain.IsValidation(err):
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), "")
	case domain.IsConflict(err):
		response.Conflict(c, err.Error())
	case domain.IsBadRequest(err):
		response.BadRequest(c, err.Error())
	case domain.IsNotFound(err):
		response.NotFound(c, err.Error())
	default:
		response.InternalError(c, err)
	}
}
