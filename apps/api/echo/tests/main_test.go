package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"reflect"
	"testing"
	"time"

	"github.com/trezcool/remindme/apps/api/echo"
	"github.com/trezcool/remindme/core"
	"github.com/trezcool/remindme/core/course"
	"github.com/trezcool/remindme/core/faculty"
	"github.com/trezcool/remindme/core/schedule"
	"github.com/trezcool/remindme/core/user"
	"github.com/trezcool/remindme/services/email"
	"github.com/trezcool/remindme/services/logger"
	"github.com/trezcool/remindme/services/queue"
	"github.com/trezcool/remindme/services/sms"
	"github.com/trezcool/remindme/storage/database/inmem"
	"github.com/trezcool/remindme/tests"
)

var (
	conf       *core.Config
	db         *inmemdb.DB
	app        *echoapi.Server
	usrRepo    user.Repository
	facRepo    faculty.Repository
	crsRepo    course.Repository
	schedRepo  schedule.Repository
	taskQueue  *queue.MemoryQueue
	smsMock    *smssvc.Mock
	mailMock   *emailsvc.MockService
	dispatcher *schedule.Dispatcher

	errMissingToken = echoapi.ErrorResponse{Kind: core.KindUnauthorized, Message: "missing or malformed jwt"}
	errForbidden    = echoapi.ErrorResponse{Kind: core.KindForbidden, Message: "permission denied"}
)

func TestMain(m *testing.M) {
	conf = core.NewTestConfig()
	logger := logsvc.NewNopLogger()
	validate, translator := testutil.NewValidator()
	core.ParseTemplates(conf, logger)

	// set up DB & repos
	db = inmemdb.Open()
	usrRepo = inmemdb.NewUserRepository(db)
	facRepo = inmemdb.NewFacultyRepository(db)
	crsRepo = inmemdb.NewCourseRepository(db)
	schedRepo = inmemdb.NewScheduleRepository(db)

	// set up services
	taskQueue = queue.NewMemoryQueue(conf.Queue.Buffer)
	smsMock = smssvc.NewMock()
	mailMock = emailsvc.NewMockService(conf, logger)

	usrSvc := user.NewService(usrRepo)
	facSvc := faculty.NewService(facRepo, conf)
	crsSvc := course.NewService(crsRepo, facSvc, usrSvc)
	schedSvc := schedule.NewService(schedRepo, crsSvc, taskQueue, validate, logger, conf)
	dispatcher = schedule.NewDispatcher(schedRepo, crsSvc, usrSvc, facSvc, smsMock, mailMock, logger)

	// set up server
	app = echoapi.NewServer(echoapi.ServerDeps{
		Conf:             conf,
		Logger:           logger,
		Validate:         validate,
		Translator:       translator,
		UserSvc:          usrSvc,
		PasswordResetter: user.NewPasswordResetter(usrSvc, mailMock, validate, conf),
		FacultySvc:       facSvc,
		CourseSvc:        crsSvc,
		ScheduleSvc:      schedSvc,
		DisableReqLogs:   true,
	})

	// run tests
	code := m.Run()

	// clean up
	_ = taskQueue.Close()
	os.Exit(code)
}

func contextWithTimeout() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), time.Second)
}

// resetDB empties the tables, the task queue & the sent messages.
func resetDB(t *testing.T) {
	t.Helper()
	db.Truncate()
	for taskQueue.Len() > 0 {
		ctx, cancel := contextWithTimeout()
		_, _ = taskQueue.Dequeue(ctx)
		cancel()
	}
	smsMock.Reset()
	mailMock.Reset()
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func serve(tt httpTest) *httptest.ResponseRecorder {
	method := tt.method
	if method == "" {
		method = http.MethodGet
	}
	req, rec := newAuthRequest(method, tt.path, tt.token, tt.body)
	app.ServeHTTP(rec, req)
	return rec
}

func getToken(t *testing.T, usr user.User) string {
	t.Helper()
	token, err := echoapi.GenerateToken(echoapi.GetUserClaims(usr, conf), conf)
	if err != nil {
		t.Fatalf("getToken(): %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj(): %v", err)
	}
	return data
}

func marchallList(t *testing.T, objs ...interface{}) []byte {
	t.Helper()
	if objs == nil {
		objs = []interface{}{}
	}
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList(): %v", err)
	}
	return data
}

func unmarshal(t *testing.T, rec *httptest.ResponseRecorder, dest interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dest); err != nil {
		t.Fatalf("unmarshal(%s): %v", rec.Body.String(), err)
	}
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func runHTTPTests(t *testing.T, tests []httpTest) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, serve(tt))
		})
	}
}

// checkKind asserts the status & the kind of an error response.
func checkKind(t *testing.T, rec *httptest.ResponseRecorder, wantCode int, wantKind core.ErrorKind) echoapi.ErrorResponse {
	t.Helper()
	if rec.Code != wantCode {
		t.Errorf("failed! code = %v; wantCode %v; body %s", rec.Code, wantCode, rec.Body.String())
	}
	var resp echoapi.ErrorResponse
	unmarshal(t, rec, &resp)
	if resp.Kind != wantKind {
		t.Errorf("failed! kind = %v; wantKind %v", resp.Kind, wantKind)
	}
	return resp
}
