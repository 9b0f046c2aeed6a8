package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/twmb/franz-go/pkg/kgo"

	"roombooker/internal/broker"
)

func testClient() *Client {
	nop := zerolog.Nop()
	return &Client{cfg: Config{RetryBackoff: time.Millisecond}, log: &nop}
}

func TestProcess_RetriesInPlace(t *testing.T) {
	c := testClient()
	calls := 0

	c.process(context.Background(), &kgo.Record{Value: []byte("x")}, func(context.Context, []byte) error {
		calls++
		if calls < 3 {
			return errors.New("store unavailable")
		}
		return nil
	})
	assert.Equal(t, 3, calls)
}

func TestProcess_DropsMalformed(t *testing.T) {
	c := testClient()
	calls := 0

	c.process(context.Background(), &kgo.Record{Value: []byte("x")}, func(context.Context, []byte) error {
		calls++
		return broker.Drop(errors.New("bad json"))
	})
	assert.Equal(t, 1, calls)
}

func TestProcess_StopsOnShutdown(t *testing.T) {
	c := testClient()
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	c.process(ctx, &kgo.Record{Value: []byte("x")}, func(context.Context, []byte) error {
		calls++
		cancel()
		return errors.New("store unavailable")
	})
	assert.Equal(t, 1, calls)
}
