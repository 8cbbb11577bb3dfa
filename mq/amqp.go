package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/Papel-hub/talentoStore/models"
)

// StatusQueue receives a durable copy of every status change for back-office
// consumers.
const StatusQueue = "order_status"

// Channel is the part of *amqp.Channel the publisher uses.
type Channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPPublisher writes status events to a durable RabbitMQ queue.
type AMQPPublisher struct {
	mu    sync.Mutex
	ch    Channel
	queue string
}

// DialAMQP connects to url and declares the status queue.
func DialAMQP(url string) (*amqp.Connection, *AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}
	p, err := NewAMQPPublisher(ch, StatusQueue)
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	return conn, p, nil
}

func NewAMQPPublisher(ch Channel, queue string) (*AMQPPublisher, error) {
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare queue %s: %w", queue, err)
	}
	return &AMQPPublisher{ch: ch, queue: queue}, nil
}

func (p *AMQPPublisher) PublishStatus(ctx context.Context, ev models.OrderStatusEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal status event: %w", err)
	}
	ts := ev.UpdatedAt
	if ts.IsZero() {
		ts = time.Now()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.ch.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.OrderID + ":" + string(ev.Status),
		Timestamp:    ts,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", p.queue, err)
	}
	log.Printf("[Emit] order=%s status=%s queued on '%s'", ev.OrderID, ev.Status, p.queue)
	return nil
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch.Close()
}

// StatusPublisher is anything that announces status events.
type StatusPublisher interface {
	PublishStatus(ctx context.Context, ev models.OrderStatusEvent) error
}

// Fanout publishes each event to every sink and joins the failures.
type Fanout []StatusPublisher

func (f Fanout) PublishStatus(ctx context.Context, ev models.OrderStatusEvent) error {
	var errs []error
	for _, p := range f {
		if err := p.PublishStatus(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
