package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/dentalcare/clinic-visits/internal/core/domain"
)

const (
	contentTypeJSON = "application/json"
	prefetch        = 8
)

// Connect dials the broker.
func Connect(url string) (*amqp091.Connection, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}
	return conn, nil
}

func declare(ch *amqp091.Channel, queue string) error {
	_, err := ch.QueueDeclare(queue, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", queue, err)
	}
	return nil
}

func encode(msg domain.MailMessage) (amqp091.Publishing, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return amqp091.Publishing{}, err
	}
	return amqp091.Publishing{
		ContentType:  contentTypeJSON,
		DeliveryMode: amqp091.Persistent,
		MessageId:    msg.Key,
		Body:         body,
		Headers:      amqp091.Table{"template": msg.Template},
	}, nil
}

func decode(body []byte) (domain.MailMessage, error) {
	var msg domain.MailMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return msg, fmt.Errorf("decode mail message: %w", err)
	}
	if msg.To == "" || msg.Template == "" {
		return msg, errors.New("decode mail message: missing recipient or template")
	}
	return msg, nil
}

// Publisher implements ports.MailQueue on a durable RabbitMQ queue.
type Publisher struct {
	mu    sync.Mutex
	ch    *amqp091.Channel
	queue string
}

func NewPublisher(conn *amqp091.Connection, queue string) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}
	if err := declare(ch, queue); err != nil {
		_ = ch.Close()
		return nil, err
	}
	return &Publisher{ch: ch, queue: queue}, nil
}

// Enqueue publishes msg as a persistent JSON message. Channels are not safe
// for concurrent publishing, hence the mutex.
func (p *Publisher) Enqueue(ctx context.Context, msg domain.MailMessage) error {
	pub, err := encode(msg)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ch.PublishWithContext(ctx, "", p.queue, false, false, pub); err != nil {
		return fmt.Errorf("publish mail message: %w", err)
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.ch.Close()
}

// HandlerFunc processes one decoded message.
type HandlerFunc func(ctx context.Context, msg domain.MailMessage) error

// Consumer drains the mail queue into a handler. Failed messages are dropped
// rather than requeued so a poison message cannot loop forever.
type Consumer struct {
	ch      *amqp091.Channel
	queue   string
	handler HandlerFunc
	log     zerolog.Logger
}

func NewConsumer(conn *amqp091.Connection, queue string, handler HandlerFunc, log zerolog.Logger) (*Consumer, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}
	if err := declare(ch, queue); err != nil {
		_ = ch.Close()
		return nil, err
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("rabbitmq qos: %w", err)
	}
	return &Consumer{ch: ch, queue: queue, handler: handler, log: log}, nil
}

// Run consumes until ctx is cancelled or the channel closes.
func (c *Consumer) Run(ctx context.Context) error {
	deliveries, err := c.ch.ConsumeWithContext(ctx, c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("rabbitmq consume: %w", err)
	}
	c.log.Info().Str("queue", c.queue).Msg("mail consumer started")

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("rabbitmq delivery channel closed")
			}
			c.handle(ctx, d)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, d amqp091.Delivery) {
	msg, err := decode(d.Body)
	if err != nil {
		c.log.Error().Err(err).Str("message_id", d.MessageId).Msg("discarding malformed mail message")
		_ = d.Nack(false, false)
		return
	}
	if err := c.handler(ctx, msg); err != nil {
		c.log.Error().Err(err).Str("to", msg.To).Str("template", msg.Template).Msg("mail delivery failed")
		_ = d.Nack(false, false)
		return
	}
	_ = d.Ack(false)
}

func (c *Consumer) Close() error {
	return c.ch.Close()
}
