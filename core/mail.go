package core

import "net/mail"

type (
	EmailMessage struct {
		To          []mail.Address
		Cc          []mail.Address
		Bcc         []mail.Address
		Subject     string
		TextContent string // text/plain only
	}

	// EmailService is any service that can send emails
	EmailService interface {
		// SendMessages sends messages one after the other and returns the first failure.
		SendMessages(messages ...*EmailMessage) error
	}
)

func (m *EmailMessage) HasRecipients() bool { return len(m.To) > 0 }
func (m *EmailMessage) HasContent() bool    { return m.TextContent != "" }
