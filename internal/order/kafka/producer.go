package kafka

import (
	"context"
	"fmt"

	"tixly-ticketing/internal/clock"
	"tixly-ticketing/internal/config"
	"tixly-ticketing/internal/models"
)

type Publisher interface {
	Publish(ctx context.Context, topic, key string, value interface{}) error
}

// Producer routes order events to their topics.
type Producer struct {
	Publisher Publisher
	Topics    config.TopicConfig
	Clock     clock.Clock
}

func NewProducer(p Publisher, topics config.TopicConfig, clk clock.Clock) *Producer {
	return &Producer{Publisher: p, Topics: topics, Clock: clk}
}

func (p *Producer) topicFor(eventType string) (string, error) {
	switch eventType {
	case "order.created":
		return p.Topics.OrderCreated, nil
	case "order.completed":
		return p.Topics.OrderCompleted, nil
	case "order.failed":
		return p.Topics.OrderFailed, nil
	case "order.cancelled":
		return p.Topics.OrderCancelled, nil
	case "order.refunded":
		return p.Topics.OrderRefunded, nil
	}
	return "", fmt.Errorf("no topic for event type %q", eventType)
}

// PublishOrderEvent streams the order event to Kafka, keyed by order ID
func (p *Producer) PublishOrderEvent(ctx context.Context, eventType string, order models.Order) error {
	topic, err := p.topicFor(eventType)
	if err != nil {
		return err
	}
	msg := models.NewOrderEventMessage(eventType, order, p.Clock.Now())
	return p.Publisher.Publish(ctx, topic, order.ID, msg)
}

// PublishInventoryReleased streams the holds the sweeper returned to sale
func (p *Producer) PublishInventoryReleased(ctx context.Context, msg models.InventoryReleasedMessage) error {
	return p.Publisher.Publish(ctx, p.Topics.InventoryReleased, msg.Reason, msg)
}
