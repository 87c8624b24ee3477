package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prohmpiriya/concert-booking/internal/domain"
	"github.com/prohmpiriya/concert-booking/pkg/kafka"
)

// EventPublisher publishes booking events. Delivery is best-effort: callers
// log a failed publish and carry on.
type EventPublisher interface {
	// PublishReservationCreated publishes a reservation.created event
	PublishReservationCreated(ctx context.Context, reservation *domain.Reservation) error

	// PublishReservationConfirmed publishes a reservation.confirmed event
	PublishReservationConfirmed(ctx context.Context, reservation *domain.Reservation) error

	// PublishSeatReleased publishes a seat.released event for a reclaimed hold
	PublishSeatReleased(ctx context.Context, seat *domain.Seat, previousHolder string) error

	// Close closes the event publisher
	Close() error
}

// KafkaEventPublisher implements EventPublisher using Kafka
type KafkaEventPublisher struct {
	producer    *kafka.Producer
	topic       string
	serviceName string
	now         func() time.Time
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
		serviceName = "concert-booking"
	}
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = serviceName + "-producer"
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
		now:         time.Now,
	}, nil
}

// PublishReservationCreated publishes a reservation.created event
func (p *KafkaEventPublisher) PublishReservationCreated(ctx context.Context, reservation *domain.Reservation) error {
	return p.publish(ctx, domain.NewReservationEvent(domain.BookingEventReservationCreated, uuid.New().String(), reservation, p.now()))
}

// PublishReservationConfirmed publishes a reservation.confirmed event
func (p *KafkaEventPublisher) PublishReservationConfirmed(ctx context.Context, reservation *domain.Reservation) error {
	return p.publish(ctx, domain.NewReservationEvent(domain.BookingEventReservationConfirmed, uuid.New().String(), reservation, p.now()))
}

// PublishSeatReleased publishes a seat.released event
func (p *KafkaEventPublisher) PublishSeatReleased(ctx context.Context, seat *domain.Seat, previousHolder string) error {
	return p.publish(ctx, domain.NewSeatReleasedEvent(uuid.New().String(), seat, previousHolder, p.now()))
}

// Close closes the event publisher
func (p *KafkaEventPublisher) Close() error {
	if p.producer != nil {
		p.producer.Close()
	}
	return nil
}

func (p *KafkaEventPublisher) publish(ctx context.Context, event *domain.BookingEvent) error {
	msg, err := p.buildMessage(event)
	if err != nil {
		return err
	}
	if err := p.producer.Produce(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", event.EventType, err)
	}
	return nil
}

// buildMessage encodes an event into a keyed Kafka record
func (p *KafkaEventPublisher) buildMessage(event *domain.BookingEvent) (*kafka.Message, error) {
	value, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}

	return &kafka.Message{
		Topic: p.topic,
		Key:   []byte(event.Key()),
		Value: value,
		Headers: map[string]string{
			"event_type":   string(event.EventType),
			"event_id":     event.EventID,
			"source":       p.serviceName,
			"content_type": "application/json",
		},
		Timestamp: event.OccurredAt,
	}, nil
}

// NoOpEventPublisher drops every event; used when Kafka is not configured
type NoOpEventPublisher struct{}

// NewNoOpEventPublisher creates a new no-op event publisher
func NewNoOpEventPublisher() *NoOpEventPublisher {
	return &NoOpEventPublisher{}
}

func (p *NoOpEventPublisher) PublishReservationCreated(ctx context.Context, reservation *domain.Reservation) error {
	return nil
}

func (p *NoOpEventPublisher) PublishReservationConfirmed(ctx context.Context, reservation *domain.Reservation) error {
	return nil
}

func (p *NoOpEventPublisher) PublishSeatReleased(ctx context.Context, seat *domain.Seat, previousHolder string) error {
	return nil
}

func (p *NoOpEventPublisher) Close() error {
	return nil
}
