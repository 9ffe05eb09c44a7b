package smssvc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/remindme/core"
	logsvc "github.com/trezcool/remindme/services/logger"
)

func newTestGateway(t *testing.T, handler http.HandlerFunc) (*Gateway, chan url.Values) {
	t.Helper()
	queries := make(chan url.Values, 10)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		queries <- r.URL.Query()
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	conf := core.NewTestConfig()
	conf.SMS.GatewayURL = srv.URL + "/api/sms/sendsms"
	conf.SMS.Username = "user"
	conf.SMS.Password = "secret"
	conf.SMS.Sender = "REMINDME"
	conf.SMS.Timeout = 200 * time.Millisecond
	conf.SMS.RatePerSec = 0
	core.ParseTemplates(conf, logsvc.NewNopLogger())
	return NewGateway(conf), queries
}

func TestGateway_Send(t *testing.T) {
	gw, queries := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("OK"))
	})

	err := gw.Send(context.Background(), &core.SMSMessage{To: "+243810000001", Body: "Hello there"})
	require.NoError(t, err)

	q := <-queries
	assert.Equal(t, "user", q.Get("username"))
	assert.Equal(t, "secret", q.Get("password"))
	assert.Equal(t, "REMINDME", q.Get("sender"))
	assert.Equal(t, "+243810000001", q.Get("recipient"))
	assert.Equal(t, "Hello there", q.Get("message"))
}

func TestGateway_Send_Template(t *testing.T) {
	gw, queries := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {})

	err := gw.Send(context.Background(), &core.SMSMessage{
		To:           "+243810000001",
		TemplateName: "student_new_schedule",
		TemplateData: map[string]interface{}{
			"Recipient": "Ann",
			"Lecturer":  "Dr Who",
			"Course":    "Optics",
			"Date":      "2030-03-04",
			"Start":     "09:00:00",
			"End":       "10:00:00",
		},
	})
	require.NoError(t, err)
	assert.Equal(t,
		"Hi Ann, Your Lecturer Dr Who has added a new schedule for Optics on 2030-03-04 from 09:00:00 to 10:00:00.",
		(<-queries).Get("message"),
	)
}

func TestGateway_Send_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		msg     core.SMSMessage
	}{
		{
			name:    "server error",
			handler: func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusInternalServerError) },
			msg:     core.SMSMessage{To: "+243810000001", Body: "hi"},
		},
		{
			name:    "unauthorized",
			handler: func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusUnauthorized) },
			msg:     core.SMSMessage{To: "+243810000001", Body: "hi"},
		},
		{
			name:    "timeout",
			handler: func(w http.ResponseWriter, r *http.Request) { time.Sleep(time.Second) },
			msg:     core.SMSMessage{To: "+243810000001", Body: "hi"},
		},
		{
			name:    "no recipient",
			handler: func(w http.ResponseWriter, r *http.Request) {},
			msg:     core.SMSMessage{Body: "hi"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw, _ := newTestGateway(t, tt.handler)
			msg := tt.msg
			err := gw.Send(context.Background(), &msg)
			require.Error(t, err)
			assert.Equal(t, core.KindExternal, core.KindOf(err))
		})
	}
}

func TestGateway_RateLimit(t *testing.T) {
	gw, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {})
	gw.limiter.SetLimit(10) // one send every 100ms

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, gw.Send(context.Background(), &core.SMSMessage{To: "+243810000001", Body: "hi"}))
	}
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
}
