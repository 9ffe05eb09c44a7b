package schedule_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/remindme/core"
	"github.com/trezcool/remindme/core/course"
	"github.com/trezcool/remindme/core/faculty"
	"github.com/trezcool/remindme/core/schedule"
	"github.com/trezcool/remindme/core/user"
	logsvc "github.com/trezcool/remindme/services/logger"
	smssvc "github.com/trezcool/remindme/services/sms"
)

type recordingEmail struct {
	mu   sync.Mutex
	msgs []core.EmailMessage
}

func (svc *recordingEmail) SendMessages(messages ...*core.EmailMessage) {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	for _, msg := range messages {
		svc.msgs = append(svc.msgs, *msg)
	}
}

// stubs fail one of the lookups of the dispatcher
type (
	failingCourses struct{ err error }
	failingUsers   struct {
		schedule.UserFinder
		err error
	}
	failingDepts struct{ err error }
)

func (c failingCourses) GetByID(context.Context, int64) (course.Course, error) {
	return course.Course{}, c.err
}

func (u failingUsers) Query(context.Context, user.QueryFilter, []core.DBOrdering) ([]user.User, error) {
	return nil, u.err
}

func (d failingDepts) GetDepartment(context.Context, int64) (faculty.Department, error) {
	return faculty.Department{}, d.err
}

type dispatchFixture struct {
	*fixture
	sms     *smssvc.Mock
	email   *recordingEmail
	users   schedule.UserFinder
	depts   schedule.DepartmentGetter
	courses schedule.CourseGetter
	sched   schedule.Schedule
}

func setupDispatcher(t *testing.T) *dispatchFixture {
	t.Helper()
	f := setup(t)
	df := &dispatchFixture{
		fixture: f,
		sms:     smssvc.NewMock(),
		email:   &recordingEmail{},
		users:   f.users,
		depts:   f.depts,
		courses: f.courses,
	}
	df.sched = f.mustCreate(t, schedule.NewDate(2099, time.March, 4), "09:00:00", "10:00:00")
	_, err := f.svc.Approve(f.ctx, f.admin, df.sched.ID)
	require.NoError(t, err)
	return df
}

func (df *dispatchFixture) dispatcher(email core.EmailService) *schedule.Dispatcher {
	return schedule.NewDispatcher(df.repo, df.courses, df.users, df.depts, df.sms, email, logsvc.NewNopLogger())
}

func TestDispatcher_Handle(t *testing.T) {
	df := setupDispatcher(t)
	tasks := df.queue.Tasks()
	require.Len(t, tasks, 1)

	report, err := df.dispatcher(df.email).Handle(df.ctx, tasks[0])
	require.NoError(t, err)
	assert.Equal(t, schedule.Report{ScheduleID: df.sched.ID, Attempted: 4, Sent: 4}, report)

	sent := df.sms.Sent()
	require.Len(t, sent, 4)
	assert.Equal(t, df.lecturer.Phone, sent[0].To, "lecturer is notified first")
	assert.Equal(t,
		"Hi lecturer, your schedule for Mechanics on 2099-03-04 from 09:00:00 to 10:00:00 has been approved by the Admin. See you in class !",
		sent[0].Body,
	)
	for i, student := range df.students {
		assert.Equal(t, student.Phone, sent[i+1].To)
		assert.Equal(t,
			"Hi "+student.Name+", Your Lecturer lecturer has added a new schedule for Mechanics on 2099-03-04 from 09:00:00 to 10:00:00.",
			sent[i+1].Body,
		)
	}

	require.Len(t, df.email.msgs, 1)
	assert.Equal(t, df.lecturer.Email, df.email.msgs[0].To[0].Address)
	assert.Equal(t, "schedule_approved", df.email.msgs[0].TemplateName)
}

func TestDispatcher_PartialFailures(t *testing.T) {
	df := setupDispatcher(t)
	df.sms.Fail(df.lecturer.Phone, errors.New("gateway down"))
	df.sms.Fail(df.students[1].Phone, errors.New("gateway down"))

	report, err := df.dispatcher(nil).Notify(df.ctx, df.sched.ID)
	require.NoError(t, err)
	assert.Equal(t, schedule.Report{ScheduleID: df.sched.ID, Attempted: 4, Sent: 2, Failed: 2}, report)

	sent := df.sms.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, df.students[0].Phone, sent[0].To)
	assert.Equal(t, df.students[2].Phone, sent[1].To)
}

func TestDispatcher_MissingPhoneCountsAsFailure(t *testing.T) {
	df := setupDispatcher(t)
	df.users = phonelessStudent{UserFinder: df.users, id: df.students[0].ID}

	report, err := df.dispatcher(nil).Notify(df.ctx, df.sched.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, report.Attempted)
	assert.Equal(t, 3, report.Sent)
	assert.Equal(t, 1, report.Failed)
}

type phonelessStudent struct {
	schedule.UserFinder
	id int64
}

func (u phonelessStudent) Query(ctx context.Context, filter user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	users, err := u.UserFinder.Query(ctx, filter, ordering)
	for i := range users {
		if users[i].ID == u.id {
			users[i].Phone = ""
		}
	}
	return users, err
}

func TestDispatcher_Aborts(t *testing.T) {
	boom := errors.New("db down")

	tests := []struct {
		name       string
		prepare    func(df *dispatchFixture)
		scheduleID func(df *dispatchFixture) int64
		wantSent   int
	}{
		{
			name:       "missing schedule",
			scheduleID: func(*dispatchFixture) int64 { return 9999 },
		},
		{
			name:    "course lookup",
			prepare: func(df *dispatchFixture) { df.courses = failingCourses{err: boom} },
		},
		{
			name:    "department lookup",
			prepare: func(df *dispatchFixture) { df.depts = failingDepts{err: boom} },
		},
		{
			name:     "students lookup",
			prepare:  func(df *dispatchFixture) { df.users = failingUsers{UserFinder: df.users, err: boom} },
			wantSent: 1, // the lecturer
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			df := setupDispatcher(t)
			if tt.prepare != nil {
				tt.prepare(df)
			}
			id := df.sched.ID
			if tt.scheduleID != nil {
				id = tt.scheduleID(df)
			}

			_, err := df.dispatcher(nil).Notify(df.ctx, id)
			require.Error(t, err)
			assert.Len(t, df.sms.Sent(), tt.wantSent)
		})
	}
}

func TestDispatcher_UnknownTask(t *testing.T) {
	df := setupDispatcher(t)
	_, err := df.dispatcher(nil).Handle(df.ctx, core.NewTask("lol", df.sched.ID))
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "lol"))
	assert.Empty(t, df.sms.Sent())
}
