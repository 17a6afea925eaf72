package mail

import (
	"context"
	"log/slog"
	"sync"
)

// ConsoleSender writes messages to the log instead of delivering them.
// Sent messages are kept so local runs and tests can inspect them.
type ConsoleSender struct {
	from       string
	subjPrefix string
	logger     *slog.Logger

	mu   sync.Mutex
	sent []Message
}

func NewConsoleSender(from, appName string, logger *slog.Logger) *ConsoleSender {
	return &ConsoleSender{
		from:       from,
		subjPrefix: subjectPrefix(appName),
		logger:     logger,
	}
}

func (s *ConsoleSender) Send(ctx context.Context, msg Message) error {
	msg.Subject = s.subjPrefix + msg.Subject

	s.logger.InfoContext(ctx, "email",
		"from", s.from,
		"to", msg.To,
		"subject", msg.Subject,
		"body", msg.Text,
	)

	s.mu.Lock()
	s.sent = append(s.sent, msg)
	s.mu.Unlock()
	return nil
}

// Sent returns a copy of every message passed to Send.
func (s *ConsoleSender) Sent() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.sent))
	copy(out, s.sent)
	return out
}
