package core

import (
	"context"
	"strings"
)

type (
	SMSMessage struct {
		To   string // phone number
		Body string // simple, non-templated content

		// templated content
		TemplateName string
		TemplateData interface{}
	}

	// SMSService is any service that can deliver text messages.
	SMSService interface {
		// Send delivers msg synchronously; one call per recipient.
		Send(ctx context.Context, msg *SMSMessage) error
	}
)

// Render fills Body from the named sms template when no Body was given.
func (m *SMSMessage) Render() error {
	if m.Body != "" || m.TemplateName == "" {
		return nil
	}
	body, err := renderText(&smsTemplates, m.TemplateName, m.TemplateData)
	if err != nil {
		return err
	}
	m.Body = strings.TrimSpace(body)
	return nil
}

func (m *SMSMessage) HasRecipient() bool { return strings.TrimSpace(m.To) != "" }
func (m *SMSMessage) HasContent() bool   { return m.Body != "" }
