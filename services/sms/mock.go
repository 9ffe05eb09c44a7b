package smssvc

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/remindme/core"
)

// Mock records sent messages; sends to numbers in FailFor fail with the mapped error.
type Mock struct {
	mu      sync.Mutex
	sent    []core.SMSMessage
	FailFor map[string]error
}

var _ core.SMSService = (*Mock)(nil)

func NewMock() *Mock {
	return &Mock{FailFor: make(map[string]error)}
}

func (svc *Mock) Send(_ context.Context, msg *core.SMSMessage) error {
	if err := msg.Render(); err != nil {
		return errors.Wrap(err, "rendering sms")
	}
	if !msg.HasRecipient() {
		return errNoRecipient
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()
	if err, ok := svc.FailFor[msg.To]; ok {
		return err
	}
	svc.sent = append(svc.sent, *msg)
	return nil
}

// Fail makes every later send to phone fail.
func (svc *Mock) Fail(phone string, err error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	svc.FailFor[phone] = err
}

func (svc *Mock) Sent() []core.SMSMessage {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return append([]core.SMSMessage(nil), svc.sent...)
}

func (svc *Mock) Reset() {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	svc.sent = nil
	svc.FailFor = make(map[string]error)
}
