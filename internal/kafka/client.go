// Package kafka carries the booking channel over Kafka with franz-go.
package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/twmb/franz-go/pkg/kgo"

	"roombooker/internal/broker"
)

type Config struct {
	Brokers  []string
	Topic    string
	GroupID  string
	ClientID string
	// RetryBackoff is the pause before a failed record is handed to the handler again.
	RetryBackoff time.Duration
}

type Client struct {
	client *kgo.Client
	cfg    Config
	log    *zerolog.Logger
}

var (
	_ broker.Publisher  = (*Client)(nil)
	_ broker.Subscriber = (*Client)(nil)
)

// NewProducer returns a client that only publishes to cfg.Topic.
func NewProducer(cfg Config, log *zerolog.Logger) (*Client, error) {
	return newClient(cfg, log, false)
}

// NewConsumer returns a client in consumer group cfg.GroupID reading cfg.Topic.
// Offsets are committed only after the handler accepted or dropped the records.
func NewConsumer(cfg Config, log *zerolog.Logger) (*Client, error) {
	return newClient(cfg, log, true)
}

func newClient(cfg Config, log *zerolog.Logger, consume bool) (*Client, error) {
	if cfg.Topic == "" {
		cfg.Topic = broker.Channel
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 500 * time.Millisecond
	}

	opts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID(cfg.ClientID),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.AllowAutoTopicCreation(),
	}
	if consume {
		opts = append(opts,
			kgo.ConsumerGroup(cfg.GroupID),
			kgo.ConsumeTopics(cfg.Topic),
			kgo.DisableAutoCommit(),
		)
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		log.Error().Err(err).Msg("failed to create Kafka client")
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	log.Info().
		Strs("brokers", cfg.Brokers).
		Str("topic", cfg.Topic).
		Str("group", cfg.GroupID).
		Msg("Kafka client initialized")

	return &Client{client: client, cfg: cfg, log: log}, nil
}

func (c *Client) Close() {
	c.client.Close()
	c.log.Info().Msg("Kafka client closed")
}

// Publish writes message to the configured topic keyed by key, waiting for the broker ack.
func (c *Client) Publish(ctx context.Context, key string, message []byte) error {
	record := &kgo.Record{Topic: c.cfg.Topic, Value: message}
	if key != "" {
		record.Key = []byte(key)
	}
	if err := c.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		c.log.Error().Err(err).Str("topic", c.cfg.Topic).Msg("failed to publish message to Kafka")
		return fmt.Errorf("publish to %s: %w", c.cfg.Topic, err)
	}
	c.log.Debug().Str("topic", c.cfg.Topic).Str("key", key).Msg("Message published")
	return nil
}

// Consume polls until ctx is done. A record the handler fails on is retried in place, so the
// partition does not advance past it.
func (c *Client) Consume(ctx context.Context, handler broker.Handler) error {
	c.log.Info().Msgf("Started consuming from topic %s", c.cfg.Topic)

	for {
		if ctx.Err() != nil {
			return nil
		}

		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return nil
		}
		for _, fe := range fetches.Errors() {
			c.log.Error().Err(fe.Err).Str("topic", fe.Topic).Int32("partition", fe.Partition).Msg("fetch error")
		}

		fetches.EachRecord(func(r *kgo.Record) {
			if ctx.Err() == nil {
				c.process(ctx, r, handler)
			}
		})

		// A record interrupted by shutdown must be redelivered, so nothing is committed then.
		if ctx.Err() != nil {
			return nil
		}
		if err := c.client.CommitUncommittedOffsets(ctx); err != nil {
			c.log.Error().Err(err).Msg("failed to commit offsets")
		}
	}
}

func (c *Client) process(ctx context.Context, r *kgo.Record, handler broker.Handler) {
	for {
		err := handler(ctx, r.Value)
		switch {
		case err == nil:
			return
		case broker.IsDrop(err):
			c.log.Warn().Err(err).Int64("offset", r.Offset).Msg("dropping message")
			return
		}

		c.log.Warn().Err(err).Int64("offset", r.Offset).Msg("failed to process message, retrying")
		select {
		case <-ctx.Done():
			return
		case <-time.After(c.cfg.RetryBackoff):
		}
	}
}
