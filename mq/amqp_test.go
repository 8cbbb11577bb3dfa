package mq

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Papel-hub/talentoStore/models"
)

type MockChannel struct {
	mock.Mock
}

func (m *MockChannel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error) {
	argsCall := m.Called(name, durable, autoDelete, exclusive, noWait, args)
	return argsCall.Get(0).(amqp.Queue), argsCall.Error(1)
}

func (m *MockChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	return m.Called(exchange, key, mandatory, immediate, msg).Error(0)
}

func (m *MockChannel) Close() error {
	return m.Called().Error(0)
}

func TestAMQPPublisher(t *testing.T) {
	ch := &MockChannel{}
	ch.On("QueueDeclare", StatusQueue, true, false, false, false, amqp.Table(nil)).Return(amqp.Queue{Name: StatusQueue}, nil)

	var sent amqp.Publishing
	ch.On("PublishWithContext", "", StatusQueue, false, false, mock.Anything).Run(func(args mock.Arguments) {
		sent = args.Get(4).(amqp.Publishing)
	}).Return(nil)
	p, err := NewAMQPPublisher(ch, StatusQueue)
	require.NoError(t, err)

	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, p.PublishStatus(context.Background(), models.OrderStatusEvent{OrderID: "o-1", Status: models.OrderPaid, UpdatedAt: at}))

	assert.Equal(t, "application/json", sent.ContentType)
	assert.Equal(t, uint8(amqp.Persistent), sent.DeliveryMode)
	assert.Equal(t, "o-1:paid", sent.MessageId)
	assert.Equal(t, at, sent.Timestamp)
	var ev models.OrderStatusEvent
	require.NoError(t, json.Unmarshal(sent.Body, &ev))
	assert.Equal(t, models.OrderPaid, ev.Status)
	ch.AssertExpectations(t)
}

func TestAMQPPublisher_DeclareFails(t *testing.T) {
	ch := &MockChannel{}
	ch.On("QueueDeclare", StatusQueue, true, false, false, false, amqp.Table(nil)).Return(amqp.Queue{}, errors.New("access refused"))
	_, err := NewAMQPPublisher(ch, StatusQueue)
	assert.Error(t, err)
}

type failingPublisher struct{ err error }

func (f failingPublisher) PublishStatus(context.Context, models.OrderStatusEvent) error { return f.err }

type countingPublisher struct{ n int }

func (c *countingPublisher) PublishStatus(context.Context, models.OrderStatusEvent) error {
	c.n++
	return nil
}

func TestFanout(t *testing.T) {
	ok := &countingPublisher{}
	boom := errors.New("boom")
	err := Fanout{failingPublisher{boom}, ok}.PublishStatus(context.Background(), models.OrderStatusEvent{OrderID: "o"})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, ok.n, "a failing sink does not stop the others")

	assert.NoError(t, Fanout{ok}.PublishStatus(context.Background(), models.OrderStatusEvent{OrderID: "o"}))
}
