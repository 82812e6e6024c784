package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// DefaultRabbitMQQueue receives job-created events when no queue is configured.
const DefaultRabbitMQQueue = "analysis_jobs"

const publishTimeout = 5 * time.Second

// amqpChannel is the subset of *amqp.Channel used by RabbitMQNotifier.
type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// RabbitMQNotifier holds the connection and channel for RabbitMQ.
type RabbitMQNotifier struct {
	conn    *amqp.Connection
	channel amqpChannel
	queue   string
	logger  *slog.Logger
}

// NewRabbitMQNotifier dials amqpURL and declares a durable queue.
func NewRabbitMQNotifier(amqpURL, queueName string, logger *slog.Logger) (*RabbitMQNotifier, error) {
	if queueName == "" {
		queueName = DefaultRabbitMQQueue
	}

	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open RabbitMQ channel: %w", err)
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
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue %s: %w", queueName, err)
	}

	return &RabbitMQNotifier{
		conn:    conn,
		channel: ch,
		queue:   queueName,
		logger:  logger,
	}, nil
}

// JobCreated publishes event to the default exchange routed to the queue.
func (n *RabbitMQNotifier) JobCreated(ctx context.Context, event JobCreated) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = n.channel.PublishWithContext(ctx,
		"",      // exchange
		n.queue, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    event.JobID,
			Timestamp:    time.Unix(event.CreatedAt, 0),
			Body:         body,
		})
	if err != nil {
		return fmt.Errorf("failed to publish job %s to RabbitMQ: %w", event.JobID, err)
	}

	n.logger.Debug("Published job-created event", slog.String("job_id", event.JobID))
	return nil
}

// Close closes the RabbitMQ channel and connection.
func (n *RabbitMQNotifier) Close() {
	if ch, ok := n.channel.(*amqp.Channel); ok && ch != nil {
		ch.Close()
	}
	if n.conn != nil {
		n.conn.Close()
	}
}
