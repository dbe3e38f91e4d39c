package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"bus-ticketing/internal/config"
	"bus-ticketing/internal/logger"
	"bus-ticketing/internal/models"
)

// Producer publishes broadcast events for the ticketing core. Every
// publish is fire-and-forget from the caller's point of view: failures
// are logged and never propagated into a booking or lock operation.
type Producer struct {
	writer *kafka.Writer
	topics config.TopicConfig
	logger *logger.Logger
}

func NewProducer(cfg config.KafkaConfig, log *logger.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
	}
	return &Producer{writer: writer, topics: cfg.Topics, logger: log}
}

func (p *Producer) publish(topic, key string, payload any) error {
	msgBytes, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: msgBytes,
	})
	if err != nil {
		p.logger.LogKafka("PUBLISH-FAILED", topic, err.Error())
		return err
	}
	p.logger.LogKafka("PUBLISH", topic, key)
	return nil
}

// The nil checks make a disabled broker safe: main leaves the producer
// a nil pointer when Kafka is off, and the guard must run before the
// receiver's topics field is touched.

func (p *Producer) PublishSeatsLocked(event models.SeatLockEvent) error {
	if p == nil {
		return nil
	}
	return p.publish(p.topics.SeatsLocked, event.TripID, event)
}

func (p *Producer) PublishSeatsUnlocked(event models.SeatLockEvent) error {
	if p == nil {
		return nil
	}
	return p.publish(p.topics.SeatsUnlocked, event.TripID, event)
}

func (p *Producer) PublishSeatsBooked(event models.SeatLockEvent) error {
	if p == nil {
		return nil
	}
	return p.publish(p.topics.SeatsBooked, event.TripID, event)
}

func (p *Producer) PublishBookingConfirmed(booking models.Booking) error {
	if p == nil {
		return nil
	}
	return p.publish(p.topics.BookingConfirmed, booking.BookingID, booking)
}

func (p *Producer) PublishBookingCancelled(booking models.Booking) error {
	if p == nil {
		return nil
	}
	return p.publish(p.topics.BookingCancelled, booking.BookingID, booking)
}

func (p *Producer) PublishTripStatusChanged(entry models.TripStatusLog) error {
	if p == nil {
		return nil
	}
	return p.publish(p.topics.TripStatus, entry.TripID, entry)
}

func (p *Producer) Close() error {
	if p == nil {
		return nil
	}
	return p.writer.Close()
}
