// Package publisher mirrors hub events onto Kafka for downstream consumers
// (reporting, auditing). The mirror is an ordinary hub subscriber: it gets
// the same fire-and-forget delivery as a connected administrator and adds no
// guarantees of its own.
package publisher

import (
	"context"
	"encoding/json"
	"log"

	"github.com/segmentio/kafka-go"

	"github.com/deivygoficial/supermercado-app/internal/domain"
	"github.com/deivygoficial/supermercado-app/internal/hub"
)

// MessageWriter is satisfied by *kafka.Writer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewKafkaWriter builds a writer for the order events topic. Messages are
// keyed by order id so one order's events stay on one partition.
func NewKafkaWriter(topic string, brokers ...string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
}

type Mirror struct {
	hub    *hub.Hub
	writer MessageWriter
}

func NewMirror(h *hub.Hub, writer MessageWriter) *Mirror {
	return &Mirror{hub: h, writer: writer}
}

// Run subscribes to the hub and forwards events until the context is
// cancelled or the hub closes. Write failures are logged and skipped; a
// broken broker must not stall the hub or the API.
func (m *Mirror) Run(ctx context.Context) {
	sub := m.hub.Subscribe()
	defer m.hub.Unsubscribe(sub)

	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-sub.Events():
			if !ok {
				return
			}
			m.forward(ctx, data)
		}
	}
}

func (m *Mirror) forward(ctx context.Context, data []byte) {
	var event domain.NotificationEvent
	if err := json.Unmarshal(data, &event); err != nil {
		log.Printf("mirror: failed to parse event: %v", err)
		return
	}

	key := event.Type
	if event.Order != nil {
		key = event.Order.OrderID
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	}
	if err := m.writer.WriteMessages(ctx, msg); err != nil {
		log.Printf("mirror: failed to write %s event: %v", event.Type, err)
	}
}

func (m *Mirror) Close() {
	if err := m.writer.Close(); err != nil {
		log.Printf("mirror: error closing kafka writer: %v", err)
	}
}
