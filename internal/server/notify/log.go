package notify

import (
	"context"

	"github.com/beesrs/identity/internal/logging"
)

// LogSender renders the message and logs its metadata. Codes and links are
// never written to the log.
type LogSender struct {
	log logging.Logger
}

func NewLogSender(log logging.Logger) *LogSender {
	return &LogSender{log: log.With("module", "notify")}
}

func (s *LogSender) Send(ctx context.Context, kind Kind, recipient string, payload Payload) error {
	subject, _, err := Render(kind, payload)
	if err != nil {
		return err
	}
	s.log.Info(ctx, "notification queued", "kind", string(kind), "recipient", recipient, "subject", subject)
	return nil
}
