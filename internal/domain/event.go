package domain

import (
	"time"
)

// BookingEventType classifies booking lifecycle events
type BookingEventType string

const (
	BookingEventTicketBooked    BookingEventType = "ticket.booked"
	BookingEventSeatAssigned    BookingEventType = "seat.assigned"
	BookingEventTicketCancelled BookingEventType = "ticket.cancelled"
	BookingEventCompensated     BookingEventType = "booking.compensated"
)

// BookingEvent is the payload published to the booking events topic
type BookingEvent struct {
	EventID      string           `json:"event_id"`
	EventType    BookingEventType `json:"event_type"`
	CustomerID   string           `json:"customer_id"`
	TicketID     string           `json:"ticket_id,omitempty"`
	FlightID     int64            `json:"flight_id,omitempty"`
	FlightNumber int              `json:"flight_number,omitempty"`
	FlightDate   string           `json:"flight_date,omitempty"`
	SeatNumber   *int             `json:"seat_number,omitempty"`
	OccurredAt   time.Time        `json:"occurred_at"`
}

// NewBookingEvent builds an event from a ticket
func NewBookingEvent(eventType BookingEventType, ticket *Ticket, eventID string) *BookingEvent {
	event := &BookingEvent{
		EventID:    eventID,
		EventType:  eventType,
		OccurredAt: time.Now().UTC(),
	}
	if ticket != nil {
		event.CustomerID = ticket.CustomerID
		event.TicketID = ticket.ID
		event.FlightID = ticket.FlightID
		event.FlightNumber = ticket.FlightNumber
		event.FlightDate = ticket.FlightDate.Format(DateLayout)
		event.SeatNumber = ticket.SeatNumber
	}
	return event
}

// Key returns the partition key; keying by customer keeps one customer's
// events in order
func (e *BookingEvent) Key() string {
	return e.CustomerID
}
