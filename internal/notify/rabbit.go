// internal/notify/rabbit.go
package notify

import (
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/streadway/amqp"

	"tenant-provisioner/internal/metrics"
	"tenant-provisioner/internal/model"
)

const (
	QueueName = "tenant_lifecycle"
	dlqName   = "tenant_lifecycle_dlq"
)

// RabbitClient is the fire-and-forget notification dispatcher. The saga
// publishes lifecycle events here and never waits on the result.
type RabbitClient struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	URL     string
	log     *logrus.Logger
}

func NewRabbitClient(url string, log *logrus.Logger) (*RabbitClient, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create channel: %w", err)
	}

	return &RabbitClient{
		conn:    conn,
		channel: ch,
		URL:     url,
		log:     log,
	}, nil
}

func (r *RabbitClient) GetChannel() *amqp.Channel {
	return r.channel
}

func (r *RabbitClient) GetConnection() *amqp.Connection {
	return r.conn
}

// DeclareQueue creates the durable lifecycle queue with its DLQ.
func (r *RabbitClient) DeclareQueue() error {
	// 1. DLQ
	_, err := r.channel.QueueDeclare(
		dlqName,
		true, false, false, false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare DLQ: %w", err)
	}

	// 2. Main queue with DLQ binding
	args := amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": dlqName,
	}
	_, err = r.channel.QueueDeclare(
		QueueName,
		true, false, false, false,
		args,
	)
	if err != nil {
		return fmt.Errorf("declare main queue: %w", err)
	}

	r.log.WithField("queue", QueueName).Info("lifecycle queue declared")
	return nil
}

// Publish sends a lifecycle event to the queue. Fire-and-forget: a
// publish failure is logged, never surfaced to the saga.
func (r *RabbitClient) Publish(ev *model.AuditEvent) {
	body, err := json.Marshal(ev)
	if err != nil {
		r.log.WithError(err).Error("failed to encode lifecycle event")
		return
	}

	err = r.channel.Publish(
		"",        // default exchange
		QueueName, // routing key (queue name)
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		},
	)
	if err != nil {
		r.log.WithError(err).WithField("event", ev.Event).Error("failed to publish lifecycle event")
	}
}

// Close cleans up connection and channel
func (r *RabbitClient) Close() error {
	if err := r.channel.Close(); err != nil {
		return err
	}
	if err := r.conn.Close(); err != nil {
		return err
	}
	return nil
}

func (r *RabbitClient) UpdateQueueDepth() {
	q, err := r.channel.QueueInspect(QueueName)
	if err != nil {
		r.log.WithError(err).Warn("failed to inspect lifecycle queue")
		return
	}

	metrics.AuditQueueDepth.Set(float64(q.Messages))
}
