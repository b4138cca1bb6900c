package mailbox

import (
	"fmt"
	"io"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message"
	"github.com/sirupsen/logrus"

	"jobscout/internal/config"
	"jobscout/internal/models"
	"jobscout/internal/parser"
)

// IMAPMailbox implements Mailbox over IMAP. Message IDs are UIDs of the
// selected INBOX, formatted as decimal strings.
type IMAPMailbox struct {
	cfg    *config.MailboxConfig
	client *client.Client
}

// NewIMAPMailbox creates an IMAP mailbox; Connect must be called before use
func NewIMAPMailbox(cfg *config.MailboxConfig) *IMAPMailbox {
	return &IMAPMailbox{cfg: cfg}
}

// Connect dials the IMAP server, authenticates and selects INBOX
func (m *IMAPMailbox) Connect() error {
	c, err := client.DialTLS(fmt.Sprintf("%s:%d", m.cfg.IMAPHost, m.cfg.IMAPPort), nil)
	if err != nil {
		return fmt.Errorf("failed to connect to IMAP server: %w", err)
	}

	if err := c.Login(m.cfg.IMAPUser, m.cfg.IMAPPassword); err != nil {
		c.Logout()
		return fmt.Errorf("failed to login to IMAP server: %w", err)
	}

	if _, err := c.Select("INBOX", true); err != nil {
		c.Logout()
		return fmt.Errorf("failed to select INBOX: %w", err)
	}

	m.client = c
	return nil
}

// Search returns the UIDs of messages whose subject contains the token
// and whose date is on or after since
func (m *IMAPMailbox) Search(subjectToken string, since time.Time) ([]string, error) {
	criteria := imap.NewSearchCriteria()
	criteria.Since = since
	criteria.Header = textproto.MIMEHeader{}
	criteria.Header.Add("Subject", subjectToken)

	uids, err := m.client.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("failed to search messages: %w", err)
	}

	ids := make([]string, 0, len(uids))
	for _, uid := range uids {
		ids = append(ids, strconv.FormatUint(uint64(uid), 10))
	}
	return ids, nil
}

// Fetch retrieves one message by UID, returning its decoded subject, date
// header and plain-text body
func (m *IMAPMailbox) Fetch(id string) (models.EmailMessage, error) {
	uid, err := strconv.ParseUint(id, 10, 32)
	if err != nil {
		return models.EmailMessage{}, fmt.Errorf("invalid message id %q: %w", id, err)
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(uint32(uid))

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchEnvelope, imap.FetchUid, section.FetchItem()}

	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- m.client.UidFetch(seqset, items, messages)
	}()

	var fetched *imap.Message
	for msg := range messages {
		fetched = msg
	}
	if err := <-done; err != nil {
		return models.EmailMessage{}, fmt.Errorf("failed to fetch message %s: %w", id, err)
	}
	if fetched == nil {
		return models.EmailMessage{}, fmt.Errorf("message %s not found", id)
	}

	email := models.EmailMessage{ID: id}
	if fetched.Envelope != nil {
		email.Subject = parser.DecodeSubject(fetched.Envelope.Subject)
		email.Date = fetched.Envelope.Date.Format(time.RFC1123Z)
	}

	body, err := m.readBody(fetched, section)
	if err != nil {
		return models.EmailMessage{}, err
	}
	email.Body = body

	return email, nil
}

// readBody extracts the plain-text part of a fetched message. Multipart
// messages yield their first text/plain part; non-text parts are ignored.
func (m *IMAPMailbox) readBody(msg *imap.Message, section *imap.BodySectionName) (string, error) {
	r := msg.GetBody(section)
	if r == nil {
		return "", fmt.Errorf("failed to get message body")
	}

	entity, err := message.Read(r)
	if err != nil {
		return "", fmt.Errorf("failed to read message: %w", err)
	}

	if mr := entity.MultipartReader(); mr != nil {
		for {
			p, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil {
				return "", fmt.Errorf("failed to read part: %w", err)
			}

			contentType := p.Header.Get("Content-Type")
			if !strings.Contains(contentType, "text/plain") {
				continue
			}

			content, err := io.ReadAll(p.Body)
			if err != nil {
				return "", fmt.Errorf("failed to read part body: %w", err)
			}
			return string(content), nil
		}
		return "", nil
	}

	content, err := io.ReadAll(entity.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read message body: %w", err)
	}
	return string(content), nil
}

// Reconnect tears down the current connection and establishes a fresh one
func (m *IMAPMailbox) Reconnect() error {
	if m.client != nil {
		if err := m.client.Logout(); err != nil {
			logrus.Warnf("Logout before reconnect failed: %v", err)
		}
		m.client = nil
	}
	return m.Connect()
}

// Close logs out of the IMAP server
func (m *IMAPMailbox) Close() error {
	if m.client == nil {
		return nil
	}
	err := m.client.Logout()
	m.client = nil
	return err
}
