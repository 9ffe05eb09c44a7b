package smssvc

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/remindme/core"
)

// Console logs text messages instead of sending them.
type Console struct {
	sender string
	logger core.Logger
}

var _ core.SMSService = (*Console)(nil)

func NewConsole(conf *core.Config, logger core.Logger) *Console {
	return &Console{sender: conf.SMS.Sender, logger: logger}
}

func (svc *Console) Send(_ context.Context, msg *core.SMSMessage) error {
	if err := msg.Render(); err != nil {
		return errors.Wrap(err, "rendering sms")
	}
	if !msg.HasRecipient() {
		return errNoRecipient
	}
	svc.logger.Info("sms", map[string]interface{}{
		"from": svc.sender,
		"to":   msg.To,
		"body": msg.Body,
	})
	return nil
}
