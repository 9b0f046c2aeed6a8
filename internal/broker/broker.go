// Package broker is the asynchronous channel between the booking service and the event
// registrar. Implementations live in internal/rabbit and internal/kafka.
package broker

import (
	"context"
	"errors"
)

// Channel is the logical name of the booking channel: the Kafka topic, the RabbitMQ routing key.
const Channel = "booking"

// Handler processes one delivery. A nil error acks it. An error marked with Drop is logged and
// discarded; any other error asks for redelivery.
type Handler func(ctx context.Context, body []byte) error

type Publisher interface {
	// Publish sends body. key orders messages of the same booking where the transport supports it.
	Publish(ctx context.Context, key string, body []byte) error
	Close()
}

type Subscriber interface {
	// Consume delivers messages to h until ctx is done or the connection fails.
	Consume(ctx context.Context, h Handler) error
	Close()
}

type dropError struct {
	err error
}

func (e *dropError) Error() string { return e.err.Error() }

func (e *dropError) Unwrap() error { return e.err }

// Drop marks err as a delivery that must not be redelivered, such as a malformed payload.
func Drop(err error) error {
	if err == nil {
		return nil
	}
	return &dropError{err: err}
}

func IsDrop(err error) bool {
	var d *dropError
	return errors.As(err, &d)
}
