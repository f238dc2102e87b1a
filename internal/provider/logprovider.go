package provider

import (
	"context"

	"github.com/google/uuid"
	"github.com/ignite/marketing-engine/internal/pkg/logger"
)

// LogProvider is the no-op double injected when no ESP credentials are
// configured. It accepts every message and logs it, so local development
// exercises the full pipeline without sending real mail.
type LogProvider struct {
	log *logger.Logger
}

// NewLogProvider creates the logging provider.
func NewLogProvider() *LogProvider {
	return &LogProvider{log: logger.Component("log-provider")}
}

func (p *LogProvider) Name() string { return "log" }

// Send logs the message and returns a synthetic message ID.
func (p *LogProvider) Send(_ context.Context, msg Message) (string, error) {
	id := "log-" + uuid.New().String()
	p.log.Info("email accepted (not sent)",
		"to", msg.To,
		"subject", msg.Subject,
		"message_id", id,
	)
	return id, nil
}
