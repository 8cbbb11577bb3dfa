package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"

	"github.com/Papel-hub/talentoStore/models"
)

// StatusChannel is the Redis channel order status changes go out on.
const StatusChannel = "order-status"

// Publisher emits order status events over Redis pub/sub.
type Publisher struct {
	conn    *redis.Client
	channel string
}

func NewPublisher(conn *redis.Client) *Publisher {
	return &Publisher{conn: conn, channel: StatusChannel}
}

// PublishStatus publishes ev to the status channel.
func (p *Publisher) PublishStatus(ctx context.Context, ev models.OrderStatusEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal status event: %w", err)
	}
	if err := p.conn.Publish(ctx, p.channel, data).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", p.channel, err)
	}
	log.Printf("[Emit] order=%s status=%s published to '%s'", ev.OrderID, ev.Status, p.channel)
	return nil
}

// Listen delivers every status event to handle until ctx is done.
// Undecodable payloads are logged and skipped.
func (p *Publisher) Listen(ctx context.Context, handle func(models.OrderStatusEvent)) error {
	sub := p.conn.Subscribe(ctx, p.channel)
	defer sub.Close()

	// Wait for the subscription to be confirmed before reading.
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe to %s: %w", p.channel, err)
	}
	log.Printf("[StatusWorker] Listening on '%s'", p.channel)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var ev models.OrderStatusEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				log.Printf("[StatusWorker] Failed to parse event: %v", err)
				continue
			}
			handle(ev)
		}
	}
}
