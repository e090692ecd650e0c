// internal/audit/consumer.go
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/streadway/amqp"

	"tenant-provisioner/internal/metrics"
	"tenant-provisioner/internal/model"
	"tenant-provisioner/internal/notify"
)

// Store persists audit events. Satisfied by the registry.
type Store interface {
	InsertAudit(ctx context.Context, ev *model.AuditEvent) error
}

// Consumer drains the lifecycle queue and persists events to the audit
// log. It runs entirely outside the provisioning saga: a stopped
// consumer only delays the audit trail, never a tenant.
type Consumer struct {
	channel  *amqp.Channel
	store    Store
	log      *logrus.Logger
	workers  int
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// StartConsumer opens a channel on the connection and spawns the worker
// goroutines consuming the lifecycle queue.
func StartConsumer(conn *amqp.Connection, store Store, workers int, log *logrus.Logger) (*Consumer, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open audit channel: %w", err)
	}

	msgs, err := ch.Consume(
		notify.QueueName,
		"audit-consumer",
		false, // manual ack
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to start consuming lifecycle queue: %w", err)
	}

	c := &Consumer{
		channel:  ch,
		store:    store,
		log:      log,
		workers:  workers,
		stopChan: make(chan struct{}),
	}

	for i := 0; i < workers; i++ {
		c.wg.Add(1)
		go c.consumeLoop(msgs)
	}

	log.WithField("workers", workers).Info("audit consumer started")
	return c, nil
}

// consumeLoop processes deliveries until stopChan is closed.
func (c *Consumer) consumeLoop(msgs <-chan amqp.Delivery) {
	defer c.wg.Done()

	for {
		select {
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			if err := c.handle(msg); err != nil {
				c.log.WithError(err).Warn("audit event rejected")
				_ = msg.Nack(false, false) // send to DLQ
				continue
			}
			_ = msg.Ack(false)

		case <-c.stopChan:
			return
		}
	}
}

func (c *Consumer) handle(msg amqp.Delivery) error {
	var ev model.AuditEvent
	if err := json.Unmarshal(msg.Body, &ev); err != nil {
		return fmt.Errorf("failed to decode lifecycle event: %w", err)
	}

	if err := c.store.InsertAudit(context.Background(), &ev); err != nil {
		return err
	}

	metrics.AuditProcessed.WithLabelValues(ev.Event).Inc()
	c.log.WithFields(logrus.Fields{
		"event": ev.Event,
		"slug":  ev.Slug,
	}).Info("audit event recorded")
	return nil
}

// Stop signals the workers to stop and waits for them to drain.
func (c *Consumer) Stop() {
	close(c.stopChan)
	_ = c.channel.Cancel("audit-consumer", false)
	c.wg.Wait()
	_ = c.channel.Close()
	c.log.Info("audit consumer stopped")
}
