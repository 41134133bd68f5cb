// Package push delivers notifications to device push tokens.
package push

import (
	"context"
	"errors"
	"log/slog"

	"github.com/school-notify-api/internal/domain"
)

// ErrInvalidAddress marks a delivery the provider rejected because the token
// itself is bad or unregistered. Retrying it cannot succeed.
var ErrInvalidAddress = errors.New("invalid delivery address")

// Provider sends one message to one delivery address.
type Provider interface {
	Name() string
	Send(ctx context.Context, msg domain.PushMessage) error
}

// LogProvider only logs messages. It stands in when no real provider is configured.
type LogProvider struct{}

func (LogProvider) Name() string { return "log" }

func (LogProvider) Send(_ context.Context, msg domain.PushMessage) error {
	slog.Info("push message (log provider)", "address", redact(msg.Address), "title", msg.Title)
	return nil
}

// redact keeps enough of a token to correlate log lines without leaking it.
func redact(address string) string {
	if len(address) <= 12 {
		return "***"
	}
	return address[:8] + "..." + address[len(address)-4:]
}
