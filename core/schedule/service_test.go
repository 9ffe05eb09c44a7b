package schedule_test

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/remindme/core"
	"github.com/trezcool/remindme/core/course"
	"github.com/trezcool/remindme/core/faculty"
	"github.com/trezcool/remindme/core/schedule"
	"github.com/trezcool/remindme/core/user"
	logsvc "github.com/trezcool/remindme/services/logger"
	inmemdb "github.com/trezcool/remindme/storage/database/inmem"
)

type recordingQueue struct {
	mu    sync.Mutex
	tasks []core.Task
	err   error
}

func (q *recordingQueue) Enqueue(_ context.Context, task core.Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.tasks = append(q.tasks, task)
	return nil
}

func (q *recordingQueue) Tasks() []core.Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]core.Task(nil), q.tasks...)
}

type fixture struct {
	ctx   context.Context
	svc   schedule.Service
	repo  schedule.Repository
	queue *recordingQueue

	users   user.Service
	depts   faculty.Service
	courses course.Service

	dept      faculty.Department
	otherDept faculty.Department
	admin     user.User
	lecturer  user.User
	other     user.User // lecturer of the same department
	students  []user.User
	course    course.Course
	course2   course.Course
	unowned   course.Course
}

func newValidator(t *testing.T) *validator.Validate {
	t.Helper()
	enLocale := en.New()
	translator, _ := ut.New(enLocale, enLocale).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	return validate
}

func createUser(t *testing.T, repo user.Repository, name, role string, deptID int64, phone string) user.User {
	t.Helper()
	now := time.Now().UTC()
	usr, err := repo.CreateUser(context.Background(), user.User{
		Name:         name,
		Email:        name + "@uni.test",
		Phone:        phone,
		DepartmentID: deptID,
		IsActive:     true,
		Roles:        []string{role},
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	require.NoError(t, err)
	return usr
}

func setup(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	conf := core.NewTestConfig()
	core.ParseTemplates(conf, logsvc.NewNopLogger())
	db := inmemdb.Open()

	facRepo := inmemdb.NewFacultyRepository(db)
	usrRepo := inmemdb.NewUserRepository(db)
	crsRepo := inmemdb.NewCourseRepository(db)
	schedRepo := inmemdb.NewScheduleRepository(db)

	facSvc := faculty.NewService(facRepo, conf)
	usrSvc := user.NewService(usrRepo)
	crsSvc := course.NewService(crsRepo, facSvc, usrSvc)

	f := &fixture{ctx: ctx, repo: schedRepo, queue: &recordingQueue{}, users: usrSvc, depts: facSvc, courses: crsSvc}
	f.svc = schedule.NewService(schedRepo, crsSvc, f.queue, newValidator(t), logsvc.NewNopLogger(), conf)

	fac, err := facSvc.CreateFaculty(ctx, faculty.NewFaculty{Name: "Science"})
	require.NoError(t, err)
	f.dept, err = facSvc.CreateDepartment(ctx, faculty.NewDepartment{Name: "Physics", FacultyID: fac.ID})
	require.NoError(t, err)
	f.otherDept, err = facSvc.CreateDepartment(ctx, faculty.NewDepartment{Name: "Chemistry", FacultyID: fac.ID})
	require.NoError(t, err)

	f.admin = createUser(t, usrRepo, "admin", user.RoleAdmin, 0, "")
	f.lecturer = createUser(t, usrRepo, "lecturer", user.RoleLecturer, f.dept.ID, "+243810000001")
	f.other = createUser(t, usrRepo, "other", user.RoleLecturer, f.dept.ID, "+243810000002")
	for i, name := range []string{"ann", "bob", "cid"} {
		f.students = append(f.students, createUser(t, usrRepo, name, user.RoleStudent, f.dept.ID, "+24382000000"+strconv.Itoa(i)))
	}

	newCourse := func(name string, lecturer user.User) course.Course {
		crs, err := crsSvc.Create(ctx, course.NewCourse{Name: name, DepartmentID: f.dept.ID})
		require.NoError(t, err)
		if lecturer.ID != 0 {
			crs, err = crsSvc.AssignLecturer(ctx, crs.ID, course.AssignLecturer{LecturerID: lecturer.ID})
			require.NoError(t, err)
		}
		return crs
	}
	f.course = newCourse("Mechanics", f.lecturer)
	f.course2 = newCourse("Optics", f.lecturer)
	f.unowned = newCourse("Relativity", f.other)
	return f
}

func tomorrow() schedule.Date {
	return schedule.DateOf(time.Now().UTC()).AddDays(1)
}

func (f *fixture) create(t *testing.T, actor user.User, courseID int64, date schedule.Date, start, end string) (schedule.Schedule, error) {
	t.Helper()
	return f.svc.Create(f.ctx, actor, schedule.NewSchedule{
		CourseID:     courseID,
		ScheduleDate: date.String(),
		StartTime:    start,
		EndTime:      end,
	})
}

func (f *fixture) mustCreate(t *testing.T, date schedule.Date, start, end string) schedule.Schedule {
	t.Helper()
	sched, err := f.create(t, f.lecturer, f.course.ID, date, start, end)
	require.NoError(t, err)
	return sched
}

func TestService_Create(t *testing.T) {
	f := setup(t)
	day := tomorrow()

	first, err := f.create(t, f.lecturer, f.course.ID, day, "09:00:00", "10:00:00")
	require.NoError(t, err)
	assert.False(t, first.Approved)
	assert.Equal(t, f.lecturer.ID, first.LecturerID)
	assert.Equal(t, f.course.ID, first.CourseID)
	assert.Equal(t, "09:00:00", first.StartTime.String())

	tests := []struct {
		name     string
		courseID int64
		date     schedule.Date
		start    string
		end      string
		wantErr  error
	}{
		{name: "overlapping", courseID: f.course.ID, date: day, start: "09:30:00", end: "10:30:00", wantErr: schedule.ErrConflict},
		{name: "contained", courseID: f.course.ID, date: day, start: "09:15:00", end: "09:45:00", wantErr: schedule.ErrConflict},
		{name: "overlapping on another course", courseID: f.course2.ID, date: day, start: "08:30:00", end: "09:01:00", wantErr: schedule.ErrConflict},
		{name: "touching boundary", courseID: f.course.ID, date: day, start: "10:00:00", end: "11:00:00"},
		{name: "ending at start", courseID: f.course2.ID, date: day, start: "08:00", end: "09:00"},
		{name: "same slot another day", courseID: f.course.ID, date: day.AddDays(1), start: "09:00:00", end: "10:00:00"},
		{name: "course of another lecturer", courseID: f.unowned.ID, date: day.AddDays(2), start: "09:00:00", end: "10:00:00", wantErr: schedule.ErrNotAssigned},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.create(t, f.lecturer, tt.courseID, tt.date, tt.start, tt.end)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, tt.wantErr, errors.Cause(err))
		})
	}
}

func TestService_Create_OtherLecturerSameSlot(t *testing.T) {
	f := setup(t)
	day := tomorrow()
	f.mustCreate(t, day, "09:00:00", "10:00:00")

	// conflicts are per lecturer
	_, err := f.create(t, f.other, f.unowned.ID, day, "09:00:00", "10:00:00")
	assert.NoError(t, err)
}

func fieldOf(err error) string {
	var vErr *core.ValidationError
	if errors.As(err, &vErr) && len(vErr.Fields) > 0 {
		return vErr.Fields[0].Field
	}
	var fErrs validator.ValidationErrors
	if errors.As(err, &fErrs) && len(fErrs) > 0 {
		return fErrs[0].Field()
	}
	return ""
}

func TestService_Create_Validation(t *testing.T) {
	f := setup(t)
	today := schedule.DateOf(time.Now().UTC())

	tests := []struct {
		name      string
		ns        schedule.NewSchedule
		wantField string
	}{
		{name: "missing course", ns: schedule.NewSchedule{ScheduleDate: tomorrow().String(), StartTime: "09:00", EndTime: "10:00"}, wantField: "course_id"},
		{name: "missing date", ns: schedule.NewSchedule{CourseID: f.course.ID, StartTime: "09:00", EndTime: "10:00"}, wantField: "schedule_date"},
		{name: "malformed date", ns: schedule.NewSchedule{CourseID: f.course.ID, ScheduleDate: "12/31/2030", StartTime: "09:00", EndTime: "10:00"}, wantField: "schedule_date"},
		{name: "malformed start", ns: schedule.NewSchedule{CourseID: f.course.ID, ScheduleDate: tomorrow().String(), StartTime: "9am", EndTime: "10:00"}, wantField: "start_time"},
		{name: "missing end", ns: schedule.NewSchedule{CourseID: f.course.ID, ScheduleDate: tomorrow().String(), StartTime: "09:00"}, wantField: "end_time"},
		{name: "today", ns: schedule.NewSchedule{CourseID: f.course.ID, ScheduleDate: today.String(), StartTime: "09:00", EndTime: "10:00"}, wantField: "schedule_date"},
		{name: "past", ns: schedule.NewSchedule{CourseID: f.course.ID, ScheduleDate: today.AddDays(-3).String(), StartTime: "09:00", EndTime: "10:00"}, wantField: "schedule_date"},
		{name: "start equals end", ns: schedule.NewSchedule{CourseID: f.course.ID, ScheduleDate: tomorrow().String(), StartTime: "10:00", EndTime: "10:00"}, wantField: "end_time"},
		{name: "start after end", ns: schedule.NewSchedule{CourseID: f.course.ID, ScheduleDate: tomorrow().String(), StartTime: "11:00", EndTime: "10:00"}, wantField: "end_time"},
		{name: "unknown course", ns: schedule.NewSchedule{CourseID: 9999, ScheduleDate: tomorrow().String(), StartTime: "09:00", EndTime: "10:00"}, wantField: "course_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Create(f.ctx, f.lecturer, tt.ns)
			require.Error(t, err)
			assert.Equal(t, core.KindValidation, core.KindOf(err))
			assert.Equal(t, tt.wantField, fieldOf(err))
		})
	}

	all, err := f.svc.ListForLecturer(f.ctx, f.lecturer)
	require.NoError(t, err)
	assert.Empty(t, all, "nothing is persisted on validation errors")
}

func TestService_Create_Concurrent(t *testing.T) {
	f := setup(t)
	day := tomorrow()

	const n = 20
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		created   int
		conflicts int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.create(t, f.lecturer, f.course.ID, day, "14:00:00", "15:00:00")
			mu.Lock()
			defer mu.Unlock()
			switch errors.Cause(err) {
			case nil:
				created++
			case schedule.ErrConflict:
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Equal(t, n-1, conflicts)
}

func TestService_Update(t *testing.T) {
	f := setup(t)
	day := tomorrow()
	sched := f.mustCreate(t, day, "09:00:00", "10:00:00")
	f.mustCreate(t, day, "11:00:00", "12:00:00")

	t.Run("shift over itself", func(t *testing.T) {
		updated, err := f.svc.Update(f.ctx, f.lecturer, sched.ID, schedule.UpdateSchedule{
			ScheduleDate: day.String(), StartTime: "09:30:00", EndTime: "10:30:00",
		})
		require.NoError(t, err)
		assert.Equal(t, sched.ID, updated.ID)
		assert.Equal(t, "09:30:00", updated.StartTime.String())
		assert.Equal(t, "10:30:00", updated.EndTime.String())
	})

	t.Run("overlap with another", func(t *testing.T) {
		_, err := f.svc.Update(f.ctx, f.lecturer, sched.ID, schedule.UpdateSchedule{
			ScheduleDate: day.String(), StartTime: "10:00:00", EndTime: "11:30:00",
		})
		assert.Equal(t, schedule.ErrConflict, errors.Cause(err))
	})

	t.Run("change course", func(t *testing.T) {
		updated, err := f.svc.Update(f.ctx, f.lecturer, sched.ID, schedule.UpdateSchedule{
			CourseID: f.course2.ID, ScheduleDate: day.String(), StartTime: "09:30:00", EndTime: "10:30:00",
		})
		require.NoError(t, err)
		assert.Equal(t, f.course2.ID, updated.CourseID)
	})

	t.Run("change to unassigned course", func(t *testing.T) {
		_, err := f.svc.Update(f.ctx, f.lecturer, sched.ID, schedule.UpdateSchedule{
			CourseID: f.unowned.ID, ScheduleDate: day.String(), StartTime: "09:30:00", EndTime: "10:30:00",
		})
		assert.Equal(t, schedule.ErrNotAssigned, errors.Cause(err))
	})

	t.Run("not found", func(t *testing.T) {
		_, err := f.svc.Update(f.ctx, f.lecturer, 9999, schedule.UpdateSchedule{
			ScheduleDate: day.String(), StartTime: "09:30:00", EndTime: "10:30:00",
		})
		assert.Equal(t, schedule.ErrNotFound, errors.Cause(err))
	})

	t.Run("approval is kept", func(t *testing.T) {
		_, err := f.svc.Approve(f.ctx, f.admin, sched.ID)
		require.NoError(t, err)
		updated, err := f.svc.Update(f.ctx, f.lecturer, sched.ID, schedule.UpdateSchedule{
			ScheduleDate: day.AddDays(1).String(), StartTime: "09:30:00", EndTime: "10:30:00",
		})
		require.NoError(t, err)
		assert.True(t, updated.Approved)
		assert.Len(t, f.queue.Tasks(), 1, "updates do not notify")
	})
}

func TestService_OwnershipIsEnforced(t *testing.T) {
	f := setup(t)
	day := tomorrow()
	sched := f.mustCreate(t, day, "09:00:00", "10:00:00")

	_, err := f.svc.Update(f.ctx, f.other, sched.ID, schedule.UpdateSchedule{
		ScheduleDate: day.String(), StartTime: "13:00:00", EndTime: "14:00:00",
	})
	assert.Equal(t, schedule.ErrForbidden, errors.Cause(err))

	err = f.svc.Delete(f.ctx, f.other, sched.ID)
	assert.Equal(t, schedule.ErrForbidden, errors.Cause(err))

	untouched, err := f.svc.Get(f.ctx, sched.ID)
	require.NoError(t, err)
	assert.Equal(t, sched, untouched)
}

func TestService_Delete(t *testing.T) {
	f := setup(t)
	sched := f.mustCreate(t, tomorrow(), "09:00:00", "10:00:00")

	require.NoError(t, f.svc.Delete(f.ctx, f.lecturer, sched.ID))
	_, err := f.svc.Get(f.ctx, sched.ID)
	assert.Equal(t, schedule.ErrNotFound, errors.Cause(err))

	err = f.svc.Delete(f.ctx, f.lecturer, sched.ID)
	assert.Equal(t, schedule.ErrNotFound, errors.Cause(err))
}

func TestService_Delete_ConcurrentWithUpdates(t *testing.T) {
	f := setup(t)
	day := tomorrow()

	for i := 0; i < 10; i++ {
		sched := f.mustCreate(t, day, "09:00:00", "10:00:00")

		var wg sync.WaitGroup
		errs := make(chan error, 6)
		wg.Add(6)
		go func() {
			defer wg.Done()
			errs <- f.svc.Delete(f.ctx, f.lecturer, sched.ID)
		}()
		for j := 0; j < 5; j++ {
			go func() {
				defer wg.Done()
				_, err := f.svc.Update(f.ctx, f.lecturer, sched.ID, schedule.UpdateSchedule{
					ScheduleDate: day.String(), StartTime: "09:30:00", EndTime: "10:30:00",
				})
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)

		for err := range errs {
			if err != nil {
				assert.Equal(t, schedule.ErrNotFound, errors.Cause(err), "updates after the delete find nothing")
			}
		}
		_, err := f.svc.Get(f.ctx, sched.ID)
		assert.Equal(t, schedule.ErrNotFound, errors.Cause(err), "an update never resurrects a deleted schedule")
	}

	all, err := f.svc.ListForLecturer(f.ctx, f.lecturer)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestService_Approve(t *testing.T) {
	f := setup(t)
	sched := f.mustCreate(t, tomorrow(), "09:00:00", "10:00:00")

	_, err := f.svc.Approve(f.ctx, f.lecturer, sched.ID)
	assert.Equal(t, schedule.ErrForbidden, errors.Cause(err))
	assert.Empty(t, f.queue.Tasks())

	approved, err := f.svc.Approve(f.ctx, f.admin, sched.ID)
	require.NoError(t, err)
	assert.True(t, approved.Approved)
	assert.False(t, approved.ApprovedAt.IsZero())

	tasks := f.queue.Tasks()
	require.Len(t, tasks, 1)
	assert.Equal(t, core.TaskScheduleApproved, tasks[0].Kind)
	assert.Equal(t, sched.ID, tasks[0].ScheduleID)
	assert.NotEmpty(t, tasks[0].ID)

	_, err = f.svc.Approve(f.ctx, f.admin, sched.ID)
	assert.Equal(t, schedule.ErrAlreadyApproved, errors.Cause(err))
	assert.Len(t, f.queue.Tasks(), 1, "no duplicate notification task")

	stored, err := f.svc.Get(f.ctx, sched.ID)
	require.NoError(t, err)
	assert.Equal(t, approved, stored)

	_, err = f.svc.Approve(f.ctx, f.admin, 9999)
	assert.Equal(t, schedule.ErrNotFound, errors.Cause(err))
}

func TestService_Approve_EnqueueFailure(t *testing.T) {
	f := setup(t)
	sched := f.mustCreate(t, tomorrow(), "09:00:00", "10:00:00")
	f.queue.err = errors.New("queue is down")

	approved, err := f.svc.Approve(f.ctx, f.admin, sched.ID)
	require.NoError(t, err, "enqueue errors never reach the caller")
	assert.True(t, approved.Approved)
}

func TestService_Listings(t *testing.T) {
	f := setup(t)
	day := tomorrow()
	late := f.mustCreate(t, day, "13:00:00", "14:30:00")
	early := f.mustCreate(t, day, "08:00:00", "09:00:00")
	next := f.mustCreate(t, day.AddDays(1), "07:00:00", "08:00:00")
	_, err := f.create(t, f.other, f.unowned.ID, day, "10:00:00", "11:00:00")
	require.NoError(t, err)

	t.Run("lecturer", func(t *testing.T) {
		got, err := f.svc.ListForLecturer(f.ctx, f.lecturer)
		require.NoError(t, err)
		ids := make([]int64, 0, len(got))
		for _, d := range got {
			ids = append(ids, d.ID)
		}
		assert.Equal(t, []int64{early.ID, late.ID, next.ID}, ids)
		assert.Equal(t, "Mechanics", got[0].CourseName)
	})

	t.Run("admin", func(t *testing.T) {
		got, err := f.svc.ListAll(f.ctx, schedule.QueryFilter{LecturerID: f.lecturer.ID}, nil)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, schedule.AdminView{
			ID:           late.ID,
			Course:       "Mechanics",
			Lecturer:     "lecturer",
			ScheduleDate: day,
			StartTime:    "01:00 PM",
			EndTime:      "02:30 PM",
		}, got[1])
	})

	t.Run("student", func(t *testing.T) {
		for _, id := range []int64{late.ID, next.ID} {
			_, err := f.svc.Approve(f.ctx, f.admin, id)
			require.NoError(t, err)
		}
		got, err := f.svc.ListForStudent(f.ctx, f.students[0])
		require.NoError(t, err)
		assert.Equal(t, []schedule.CalendarEvent{
			{ID: late.ID, Start: day.String() + " 13:00:00", End: day.String() + " 14:30:00", Title: "Mechanics"},
			{ID: next.ID, Start: day.AddDays(1).String() + " 07:00:00", End: day.AddDays(1).String() + " 08:00:00", Title: "Mechanics"},
		}, got)

		outsider := user.User{ID: 999, Roles: []string{user.RoleStudent}, DepartmentID: f.otherDept.ID}
		got, err = f.svc.ListForStudent(f.ctx, outsider)
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}
