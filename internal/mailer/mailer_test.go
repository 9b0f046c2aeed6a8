package mailer

import (
	"context"
	"errors"
	"net/smtp"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DisabledIsNop(t *testing.T) {
	log := zerolog.Nop()
	assert.IsType(t, Nop{}, New(Config{Enabled: false, Operators: []string{"ops@example.com"}}, &log))
	assert.IsType(t, Nop{}, New(Config{Enabled: true}, &log))
}

func TestMailer_Alert(t *testing.T) {
	log := zerolog.Nop()
	m := New(Config{
		Enabled:   true,
		Host:      "smtp.example.com",
		Port:      587,
		From:      "roombooker@example.com",
		Password:  "secret",
		Operators: []string{"ops@example.com", "oncall@example.com"},
	}, &log).(*Mailer)

	var gotAddr string
	var gotTo []string
	var gotMsg string
	m.send = func(addr string, _ smtp.Auth, _ string, to []string, msg []byte) error {
		gotAddr, gotTo, gotMsg = addr, to, string(msg)
		return nil
	}

	require.NoError(t, m.Alert(context.Background(), "booking 7 has no event", "publish failed"))
	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Equal(t, []string{"ops@example.com", "oncall@example.com"}, gotTo)
	assert.Contains(t, gotMsg, "Subject: [roombooker] booking 7 has no event")
	assert.Contains(t, gotMsg, "publish failed")

	m.send = func(string, smtp.Auth, string, []string, []byte) error { return errors.New("relay denied") }
	assert.Error(t, m.Alert(context.Background(), "s", "b"))
}
