package mailbox

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"jobscout/internal/config"
	"jobscout/internal/models"
)

// GmailMailbox implements Mailbox over the Gmail REST API. Message IDs
// are Gmail message IDs. The API is stateless HTTP, so Reconnect is a
// no-op.
type GmailMailbox struct {
	cfg     *config.MailboxConfig
	service *gmail.Service
}

// NewGmailMailbox creates a Gmail mailbox; Connect must be called before use
func NewGmailMailbox(cfg *config.MailboxConfig) *GmailMailbox {
	return &GmailMailbox{cfg: cfg}
}

// Connect creates the Gmail service from the configured OAuth2 refresh token
func (m *GmailMailbox) Connect() error {
	ctx := context.Background()

	oauth2Config := &oauth2.Config{
		ClientID:     m.cfg.ClientID,
		ClientSecret: m.cfg.ClientSecret,
		Scopes:       []string{gmail.GmailReadonlyScope},
		Endpoint:     google.Endpoint,
	}

	token := &oauth2.Token{
		RefreshToken: m.cfg.RefreshToken,
	}

	tokenSource := oauth2Config.TokenSource(ctx, token)

	service, err := gmail.NewService(ctx, option.WithTokenSource(tokenSource))
	if err != nil {
		return fmt.Errorf("failed to create Gmail service: %w", err)
	}

	m.service = service
	return nil
}

// Search returns the IDs of messages whose subject contains the token
// and which arrived on or after since
func (m *GmailMailbox) Search(subjectToken string, since time.Time) ([]string, error) {
	query := fmt.Sprintf("subject:%q after:%s", subjectToken, since.Format("2006/01/02"))

	var ids []string
	pageToken := ""
	for {
		call := m.service.Users.Messages.List(m.cfg.UserEmail).Q(query)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		response, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("failed to list messages: %w", err)
		}
		for _, msg := range response.Messages {
			ids = append(ids, msg.Id)
		}
		if response.NextPageToken == "" {
			break
		}
		pageToken = response.NextPageToken
	}

	return ids, nil
}

// Fetch retrieves one message by ID with its subject, date header and
// plain-text body
func (m *GmailMailbox) Fetch(id string) (models.EmailMessage, error) {
	msg, err := m.service.Users.Messages.Get(m.cfg.UserEmail, id).Format("full").Do()
	if err != nil {
		return models.EmailMessage{}, fmt.Errorf("failed to get message %s: %w", id, err)
	}

	email := models.EmailMessage{ID: id}
	for _, header := range msg.Payload.Headers {
		switch header.Name {
		case "Subject":
			email.Subject = header.Value
		case "Date":
			email.Date = header.Value
		}
	}

	body, err := plainTextPart(msg.Payload)
	if err != nil {
		return models.EmailMessage{}, err
	}
	email.Body = body

	return email, nil
}

// plainTextPart walks the message parts and returns the first text/plain
// payload it finds
func plainTextPart(part *gmail.MessagePart) (string, error) {
	if part.MimeType == "text/plain" && part.Body != nil && part.Body.Data != "" {
		data, err := base64.URLEncoding.DecodeString(part.Body.Data)
		if err != nil {
			return "", fmt.Errorf("failed to decode body data: %w", err)
		}
		return string(data), nil
	}

	for _, subPart := range part.Parts {
		body, err := plainTextPart(subPart)
		if err != nil {
			return "", err
		}
		if body != "" {
			return body, nil
		}
	}

	return "", nil
}

// Reconnect is a no-op for the stateless Gmail API
func (m *GmailMailbox) Reconnect() error {
	return nil
}

// Close is a no-op for the stateless Gmail API
func (m *GmailMailbox) Close() error {
	return nil
}
