package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"

	"github.com/streadway/amqp"

	"github.com/unclebandit/smsleopard-dispatch/internal/model"
)

// Enqueuer pushes one atomic delivery job onto the broker. Enqueue is
// fire-and-forget: the pipeline never waits for or learns of delivery outcome.
type Enqueuer interface {
	Enqueue(ctx context.Context, queueName string, payload model.DeliveryPayload) error
}

// AMQPEnqueuer publishes delivery jobs to RabbitMQ
type AMQPEnqueuer struct {
	ch *amqp.Channel
}

// NewAMQPEnqueuer opens a channel and declares the durable queue
func NewAMQPEnqueuer(conn *amqp.Connection, queueName string) (*AMQPEnqueuer, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	_, err = ch.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	)
	if err != nil {
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	return &AMQPEnqueuer{ch: ch}, nil
}

func (q *AMQPEnqueuer) Enqueue(ctx context.Context, queueName string, payload model.DeliveryPayload) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal job payload: %w", err)
	}

	return q.ch.Publish(
		"",        // exchange
		queueName, // routing key
		false,     // mandatory
		false,     // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    payload.JobID.String(),
			Body:         body,
		},
	)
}

func (q *AMQPEnqueuer) Close() error {
	return q.ch.Close()
}

// IsTransient reports whether an enqueue failure is worth retrying. Timeouts
// and network hiccups are transient; everything else is treated as permanent.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var amqpErr *amqp.Error
	if errors.As(err, &amqpErr) {
		return amqpErr.Recover
	}
	return false
}

var _ Enqueuer = (*AMQPEnqueuer)(nil)
