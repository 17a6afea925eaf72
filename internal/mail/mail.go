// Package mail delivers transactional email such as password reset links.
package mail

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rewan24/E-Learning-Lessons-Platform/internal/config"
)

// Message is one outgoing email with a plain text body and an optional
// HTML alternative.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// New returns the sender selected by cfg.Driver.
func New(cfg config.MailConfig, logger *slog.Logger) (Sender, error) {
	switch cfg.Driver {
	case config.MailConsole, "":
		return NewConsoleSender(cfg.FromEmail, cfg.AppName, logger), nil
	case config.MailSendGrid:
		return NewSendGridSender(cfg.SendGridKey, cfg.FromEmail, cfg.AppName, logger), nil
	default:
		return nil, fmt.Errorf("unsupported mail driver %q", cfg.Driver)
	}
}

func subjectPrefix(appName string) string {
	if appName == "" {
		return ""
	}
	return "[" + appName + "] "
}
