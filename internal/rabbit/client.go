package rabbit

import (
	"context"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"roombooker/internal/broker"
)

type Config struct {
	URL      string
	Exchange string
	// Queue is only declared by consumers.
	Queue      string
	RoutingKey string
	Prefetch   int
}

type Client struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	cfg     Config
	log     *zerolog.Logger
	mu      sync.Mutex
}

var (
	_ broker.Publisher  = (*Client)(nil)
	_ broker.Subscriber = (*Client)(nil)
)

// NewRabbit connects and declares a durable topic exchange. When cfg.Queue is set the queue is
// declared too and bound to the exchange with cfg.RoutingKey.
func NewRabbit(cfg Config, log *zerolog.Logger) (*Client, error) {
	if cfg.RoutingKey == "" {
		cfg.RoutingKey = broker.Channel
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		log.Error().Err(err).Msg("failed to connect to RabbitMQ")
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		log.Error().Err(err).Msg("failed to open RabbitMQ channel")
		return nil, err
	}

	client := &Client{
		conn:    conn,
		channel: ch,
		cfg:     cfg,
		log:     log,
	}

	if err := ch.ExchangeDeclare(
		cfg.Exchange,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		client.Close()
		log.Error().Err(err).Msg("failed to declare exchange")
		return nil, err
	}

	if cfg.Queue != "" {
		if _, err := ch.QueueDeclare(
			cfg.Queue,
			true,
			false,
			false,
			false,
			nil,
		); err != nil {
			client.Close()
			log.Error().Err(err).Msg("failed to declare queue")
			return nil, err
		}

		if err := ch.QueueBind(
			cfg.Queue,
			cfg.RoutingKey,
			cfg.Exchange,
			false,
			nil,
		); err != nil {
			client.Close()
			log.Error().Err(err).Msg("failed to bind queue")
			return nil, err
		}

		if cfg.Prefetch > 0 {
			if err := ch.Qos(cfg.Prefetch, 0, false); err != nil {
				client.Close()
				log.Error().Err(err).Msg("failed to set prefetch")
				return nil, err
			}
		}
	}

	log.Info().Msgf("RabbitMQ initialized (exchange=%s, queue=%s, key=%s)", cfg.Exchange, cfg.Queue, cfg.RoutingKey)

	return client, nil
}

func (c *Client) Close() {
	if c.channel != nil {
		_ = c.channel.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.log.Info().Msg("RabbitMQ connection closed")
}

// Publish sends a persistent message on the configured routing key. key travels as the
// correlation id.
func (c *Client) Publish(ctx context.Context, key string, message []byte) error {
	c.mu.Lock()
	err := c.channel.PublishWithContext(
		ctx,
		c.cfg.Exchange,
		c.cfg.RoutingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:   "application/json",
			DeliveryMode:  amqp.Persistent,
			CorrelationId: key,
			Body:          message,
			Timestamp:     time.Now(),
		},
	)
	c.mu.Unlock()

	if err != nil {
		c.log.Error().Err(err).Msg("failed to publish message to RabbitMQ")
		return fmt.Errorf("publish to %s/%s: %w", c.cfg.Exchange, c.cfg.RoutingKey, err)
	}
	c.log.Debug().Msgf("Message published to exchange=%s key=%s", c.cfg.Exchange, c.cfg.RoutingKey)
	return nil
}

// Consume blocks, handing every delivery of the queue to handler, until ctx is done or the
// delivery channel closes.
func (c *Client) Consume(ctx context.Context, handler broker.Handler) error {
	msgs, err := c.channel.ConsumeWithContext(
		ctx,
		c.cfg.Queue,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		c.log.Error().Err(err).Msg("failed to start consuming messages")
		return err
	}

	c.log.Info().Msgf("Started consuming from queue %s", c.cfg.Queue)

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("delivery channel of %s closed", c.cfg.Queue)
			}
			c.dispatch(ctx, d, handler)
		}
	}
}

func (c *Client) dispatch(ctx context.Context, d amqp.Delivery, handler broker.Handler) {
	err := handler(ctx, d.Body)
	switch {
	case err == nil:
		_ = d.Ack(false)
	case broker.IsDrop(err):
		c.log.Warn().Err(err).Msg("dropping message")
		_ = d.Nack(false, false)
	default:
		c.log.Warn().Msgf("failed to process message: %v", err)
		_ = d.Nack(false, true)
	}
}
