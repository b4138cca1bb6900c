package mailbox

import (
	"fmt"
	"time"

	"jobscout/internal/config"
	"jobscout/internal/models"
)

// Mailbox is the narrow capability surface the batch driver needs from a
// mail backend: search message IDs by subject+date, fetch one message,
// and manage the connection lifecycle.
type Mailbox interface {
	Connect() error
	Search(subjectToken string, since time.Time) ([]string, error)
	Fetch(id string) (models.EmailMessage, error)
	Reconnect() error
	Close() error
}

// New creates the configured mailbox backend
func New(cfg *config.MailboxConfig) (Mailbox, error) {
	switch cfg.Backend {
	case "imap":
		return NewIMAPMailbox(cfg), nil
	case "gmail":
		return NewGmailMailbox(cfg), nil
	default:
		return nil, fmt.Errorf("unknown mailbox backend: %q", cfg.Backend)
	}
}
