package broker

import (
	"context"
	"errors"
	"sync"
)

var ErrClosed = errors.New("broker closed")

// Memory is an in-process Publisher and Subscriber. Failed deliveries are put back at the end of
// the queue, so it keeps the at-least-once contract of the real transports.
type Memory struct {
	mu     sync.Mutex
	queue  chan []byte
	closed bool
	// PublishErr, when set, is returned by Publish instead of enqueueing.
	PublishErr error
}

func NewMemory(buffer int) *Memory {
	if buffer <= 0 {
		buffer = 64
	}
	return &Memory{queue: make(chan []byte, buffer)}
}

func (m *Memory) Publish(ctx context.Context, _ string, body []byte) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if m.PublishErr != nil {
		err := m.PublishErr
		m.mu.Unlock()
		return err
	}
	m.mu.Unlock()

	msg := append([]byte(nil), body...)
	select {
	case m.queue <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Memory) Consume(ctx context.Context, h Handler) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case body, ok := <-m.queue:
			if !ok {
				return nil
			}
			if err := h(ctx, body); err != nil && !IsDrop(err) {
				select {
				case m.queue <- body:
				case <-ctx.Done():
					return nil
				}
			}
		}
	}
}

// Pending is the number of messages waiting for a consumer.
func (m *Memory) Pending() int {
	return len(m.queue)
}

func (m *Memory) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.queue)
	}
}
