package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prohmpiriya/flight-rush/internal/domain"
	"github.com/prohmpiriya/flight-rush/pkg/kafka"
)

// EventPublisher defines the interface for publishing booking lifecycle
// events. Publishing is observational: a publish failure must never fail
// the booking that triggered it.
type EventPublisher interface {
	// PublishTicketBooked publishes a ticket booked event
	PublishTicketBooked(ctx context.Context, ticket *domain.Ticket) error

	// PublishSeatAssigned publishes a seat assigned event
	PublishSeatAssigned(ctx context.Context, ticket *domain.Ticket) error

	// PublishTicketCancelled publishes a ticket cancelled event
	PublishTicketCancelled(ctx context.Context, ticket *domain.Ticket) error

	// PublishBookingCompensated publishes a compensation event for an
	// unwound booking request
	PublishBookingCompensated(ctx context.Context, customerID string) error

	// Close closes the event publisher
	Close() error
}

// KafkaEventPublisher implements EventPublisher using Kafka
type KafkaEventPublisher struct {
	producer    *kafka.Producer
	topic       string
	serviceName string
}

// EventPublisherConfig contains configuration for the event publisher
type EventPublisherConfig struct {
	Brokers     []string
	Topic       string
	ServiceName string
	ClientID    string
}

// NewKafkaEventPublisher creates a new Kafka event publisher
func NewKafkaEventPublisher(ctx context.Context, cfg *EventPublisherConfig) (*KafkaEventPublisher, error) {
	if cfg == nil {
		return nil, fmt.Errorf("event publisher config is required")
	}

	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}

	topic := cfg.Topic
	if topic == "" {
		topic = "booking-events"
	}

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "flight-rush"
	}

	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "flight-rush-producer"
	}

	producer, err := kafka.NewProducer(ctx, &kafka.ProducerConfig{
		Brokers:       cfg.Brokers,
		ClientID:      clientID,
		MaxRetries:    3,
		RetryInterval: 2 * time.Second,
		BatchSize:     100,
		LingerMs:      10,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	return &KafkaEventPublisher{
		producer:    producer,
		topic:       topic,
		serviceName: serviceName,
	}, nil
}

// PublishTicketBooked publishes a ticket booked event
func (p *KafkaEventPublisher) PublishTicketBooked(ctx context.Context, ticket *domain.Ticket) error {
	return p.publishEvent(ctx, domain.BookingEventTicketBooked, ticket)
}

// PublishSeatAssigned publishes a seat assigned event
func (p *KafkaEventPublisher) PublishSeatAssigned(ctx context.Context, ticket *domain.Ticket) error {
	return p.publishEvent(ctx, domain.BookingEventSeatAssigned, ticket)
}

// PublishTicketCancelled publishes a ticket cancelled event
func (p *KafkaEventPublisher) PublishTicketCancelled(ctx context.Context, ticket *domain.Ticket) error {
	return p.publishEvent(ctx, domain.BookingEventTicketCancelled, ticket)
}

// PublishBookingCompensated publishes a compensation event. The unwound
// tickets no longer exist, so the event carries the customer only.
func (p *KafkaEventPublisher) PublishBookingCompensated(ctx context.Context, customerID string) error {
	eventID := uuid.New().String()
	event := domain.NewBookingEvent(domain.BookingEventCompensated, nil, eventID)
	event.CustomerID = customerID
	return p.produce(ctx, event)
}

// Close closes the event publisher
func (p *KafkaEventPublisher) Close() error {
	if p.producer != nil {
		p.producer.Close()
	}
	return nil
}

// publishEvent publishes a ticket lifecycle event to Kafka
func (p *KafkaEventPublisher) publishEvent(ctx context.Context, eventType domain.BookingEventType, ticket *domain.Ticket) error {
	eventID := uuid.New().String()
	event := domain.NewBookingEvent(eventType, ticket, eventID)
	return p.produce(ctx, event)
}

func (p *KafkaEventPublisher) produce(ctx context.Context, event *domain.BookingEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	headers := map[string]string{
		"event_type":   string(event.EventType),
		"event_id":     event.EventID,
		"source":       p.serviceName,
		"content_type": "application/json",
	}

	msg := &kafka.Message{
		Topic:     p.topic,
		Key:       []byte(event.Key()),
		Value:     value,
		Headers:   headers,
		Timestamp: time.Now(),
	}

	if err := p.producer.Produce(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", event.EventType, err)
	}

	return nil
}

// NoOpEventPublisher is a no-op implementation of EventPublisher, used when
// no broker is reachable and in tests
type NoOpEventPublisher struct{}

// NewNoOpEventPublisher creates a new no-op event publisher
func NewNoOpEventPublisher() *NoOpEventPublisher {
	return &NoOpEventPublisher{}
}

// PublishTicketBooked is a no-op
func (p *NoOpEventPublisher) PublishTicketBooked(ctx context.Context, ticket *domain.Ticket) error {
	return nil
}

// PublishSeatAssigned is a no-op
func (p *NoOpEventPublisher) PublishSeatAssigned(ctx context.Context, ticket *domain.Ticket) error {
	return nil
}

// PublishTicketCancelled is a no-op
func (p *NoOpEventPublisher) PublishTicketCancelled(ctx context.Context, ticket *domain.Ticket) error {
	return nil
}

// PublishBookingCompensated is a no-op
func (p *NoOpEventPublisher) PublishBookingCompensated(ctx context.Context, customerID string) error {
	return nil
}

// Close is a no-op
func (p *NoOpEventPublisher) Close() error {
	return nil
}
