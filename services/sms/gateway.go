package smssvc

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/sendgrid/rest"
	"golang.org/x/time/rate"

	"github.com/trezcool/remindme/core"
)

var errNoRecipient = errors.New("sms has no recipient")

// Gateway sends text messages through an HTTP GET gateway:
// GET <url>?username=..&password=..&sender=..&recipient=..&message=..
type Gateway struct {
	client   *rest.Client
	url      string
	username string
	password string
	sender   string
	timeout  time.Duration
	limiter  *rate.Limiter
}

var _ core.SMSService = (*Gateway)(nil)

func NewGateway(conf *core.Config) *Gateway {
	limit := rate.Inf
	if conf.SMS.RatePerSec > 0 {
		limit = rate.Limit(conf.SMS.RatePerSec)
	}
	return &Gateway{
		client:   &rest.Client{HTTPClient: &http.Client{}},
		url:      conf.SMS.GatewayURL,
		username: conf.SMS.Username,
		password: conf.SMS.Password,
		sender:   conf.SMS.Sender,
		timeout:  conf.SMS.Timeout,
		limiter:  rate.NewLimiter(limit, 1),
	}
}

func (gw *Gateway) Send(ctx context.Context, msg *core.SMSMessage) error {
	if err := msg.Render(); err != nil {
		return errors.Wrap(err, "rendering sms")
	}
	if !msg.HasRecipient() {
		return errNoRecipient
	}
	if err := gw.limiter.Wait(ctx); err != nil {
		return errors.Wrap(err, "waiting for sms rate limiter")
	}

	if gw.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, gw.timeout)
		defer cancel()
	}

	res, err := gw.client.SendWithContext(ctx, rest.Request{
		Method:  rest.Get,
		BaseURL: gw.url,
		QueryParams: map[string]string{
			"username":  gw.username,
			"password":  gw.password,
			"sender":    gw.sender,
			"recipient": msg.To,
			"message":   msg.Body,
		},
	})
	if err != nil {
		return errors.Wrap(err, "calling sms gateway")
	}
	if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
		return errors.Wrapf(core.NewError(core.KindExternal, "sms gateway failure"), "status: %d - body: %s", res.StatusCode, res.Body)
	}
	return nil
}
