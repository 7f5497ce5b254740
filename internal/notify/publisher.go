package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Push is one notification for one device.
type Push struct {
	Title          string `json:"title"`
	Body           string `json:"body"`
	ConversationID string `json:"conversationId"`
	Token          string `json:"token"`
	RecipientID    string `json:"recipientId"`
	MessageID      string `json:"messageId"`
}

// Publisher hands pushes to the delivery side.
type Publisher interface {
	Publish(ctx context.Context, p Push) error
	Close() error
}

const publishTimeout = 5 * time.Second

// AMQPPublisher queues pushes on RabbitMQ for the delivery worker.
type AMQPPublisher struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
}

// DialAMQP connects and declares the queue topology: the main queue
// dead-letters to queue.dlq, and queue.retry dead-letters back to main.
func DialAMQP(url, queue string) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := declareTopology(ch, queue); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	return &AMQPPublisher{conn: conn, ch: ch, queue: queue}, nil
}

func declareTopology(ch *amqp.Channel, queue string) error {
	queues := []struct {
		name string
		args amqp.Table
	}{
		{queue + ".dlq", nil},
		{queue + ".retry", amqp.Table{
			"x-dead-letter-exchange":    "",
			"x-dead-letter-routing-key": queue,
		}},
		{queue, amqp.Table{
			"x-dead-letter-exchange":    "",
			"x-dead-letter-routing-key": queue + ".dlq",
		}},
	}
	for _, q := range queues {
		if _, err := ch.QueueDeclare(q.name, true, false, false, false, q.args); err != nil {
			return fmt.Errorf("declare queue %s: %w", q.name, err)
		}
	}
	return nil
}

// Publish sends p as a persistent JSON message on the default exchange.
func (p *AMQPPublisher) Publish(ctx context.Context, push Push) error {
	msg, err := publishing(push, time.Now())
	if err != nil {
		return err
	}
	cctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	return p.ch.PublishWithContext(cctx, "", p.queue, false, false, msg)
}

// Close closes the channel and connection.
func (p *AMQPPublisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

func publishing(push Push, now time.Time) (amqp.Publishing, error) {
	body, err := json.Marshal(push)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("encode push: %w", err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    push.MessageID + ":" + push.RecipientID,
		Timestamp:    now,
		Body:         body,
	}, nil
}
