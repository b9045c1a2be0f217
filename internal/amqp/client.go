// Package amqp connects the API to the background workers. Movements to be
// exported and overdue notices both travel through a direct exchange with one
// durable queue per concern.
package amqp

import (
	"context"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"carteira/internal/core"
	"carteira/internal/log"
)

type Client struct {
	conn         *amqp091.Connection
	channel      *amqp091.Channel
	exchangeName string
	syncQueue    string
	notifyQueue  string
	logger       *log.Logger
}

func NewClient(url, exchangeName, syncQueue, notifyQueue string, logger *log.Logger) (*Client, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	client := &Client{
		conn:         conn,
		channel:      channel,
		exchangeName: exchangeName,
		syncQueue:    syncQueue,
		notifyQueue:  notifyQueue,
		logger:       logger.WithComponent(log.ComponentAMQP),
	}

	if err := client.setup(); err != nil {
		client.Close()
		return nil, fmt.Errorf("setup exchange and queues: %w", err)
	}

	return client, nil
}

func (c *Client) setup() error {
	err := c.channel.ExchangeDeclare(
		c.exchangeName,
		"direct",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	for _, queue := range []string{c.syncQueue, c.notifyQueue} {
		_, err = c.channel.QueueDeclare(
			queue,
			true,  // durable
			false, // delete when unused
			false, // exclusive
			false, // no-wait
			nil,
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", queue, err)
		}

		// Routing key equals the queue name on a direct exchange.
		if err := c.channel.QueueBind(queue, queue, c.exchangeName, false, nil); err != nil {
			return fmt.Errorf("bind queue %s: %w", queue, err)
		}
	}

	return nil
}

func (c *Client) publish(ctx context.Context, routingKey string, body []byte) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := c.channel.PublishWithContext(
		ctx,
		c.exchangeName,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}
	return nil
}

// PublishMovementSync enqueues a movement for export to the sheet.
func (c *Client) PublishMovementSync(ctx context.Context, id int64) error {
	body, err := NewMovementSyncMessage(id).ToJSON()
	if err != nil {
		return fmt.Errorf("marshal sync message: %w", err)
	}
	if err := c.publish(ctx, c.syncQueue, body); err != nil {
		return err
	}
	c.logger.InfoContext(ctx, "published movement sync message",
		log.FieldMovementID, id,
		"queue", c.syncQueue)
	return nil
}

// PublishOverdueNotice announces an unpaid installment past its due date.
func (c *Client) PublishOverdueNotice(ctx context.Context, inst core.Installment) error {
	notice := OverdueNotice{
		InstallmentID: inst.ID,
		PlanID:        inst.PlanID,
		OwnerID:       inst.OwnerID,
		Seq:           inst.Seq,
		AmountCents:   inst.Amount.Cents,
		DueDate:       inst.DueDate.String(),
		Timestamp:     time.Now(),
	}
	body, err := notice.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal overdue notice: %w", err)
	}
	if err := c.publish(ctx, c.notifyQueue, body); err != nil {
		return err
	}
	c.logger.InfoContext(ctx, "published overdue notice",
		log.FieldPlanID, inst.PlanID,
		log.FieldSeq, inst.Seq,
		log.FieldDueDate, inst.DueDate.String(),
		"queue", c.notifyQueue)
	return nil
}

// ConsumeMovementSync delivers sync messages to handler until ctx is done.
// Handler errors requeue the message; undecodable messages are dropped.
func (c *Client) ConsumeMovementSync(ctx context.Context, handler func(*MovementSyncMessage) error) error {
	msgs, err := c.channel.Consume(
		c.syncQueue,
		"",    // consumer
		false, // auto-ack, we ack after the handler succeeds
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	c.logger.InfoContext(ctx, "started consuming movement sync messages", "queue", c.syncQueue)

	for {
		select {
		case <-ctx.Done():
			c.logger.InfoContext(ctx, "stopping message consumption", "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return fmt.Errorf("message channel closed")
			}

			msg, err := MovementSyncMessageFromJSON(delivery.Body)
			if err != nil {
				c.logger.ErrorContext(ctx, "failed to unmarshal message", log.FieldError, err)
				delivery.Nack(false, false)
				continue
			}

			if err := handler(msg); err != nil {
				c.logger.ErrorContext(ctx, "failed to handle message",
					log.FieldError, err,
					log.FieldMovementID, msg.ID)
				delivery.Nack(false, true)
				continue
			}

			delivery.Ack(false)
		}
	}
}

func (c *Client) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
