package schedule

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/remindme/core"
	"github.com/trezcool/remindme/core/course"
	"github.com/trezcool/remindme/core/user"
)

var (
	// errors
	ErrNotFound        = core.NewError(core.KindNotFound, "schedule not found")
	ErrForbidden       = core.NewError(core.KindForbidden, "you are not allowed to modify this schedule")
	ErrNotAssigned     = core.NewError(core.KindNotAssigned, "you are not assigned to this course")
	ErrConflict        = core.NewError(core.KindConflict, "this schedule conflicts with another of your schedules")
	ErrAlreadyApproved = core.NewError(core.KindAlreadyApproved, "this schedule is already approved")
	errCourseNotExists = "course not found"
)

// ordering of the lecturer & student listings
var chronological = []core.DBOrdering{
	{Field: "schedule_date", Ascending: true},
	{Field: "start_time", Ascending: true},
	{Field: "end_time", Ascending: true},
}

type (
	Repository interface {
		CreateSchedule(ctx context.Context, sched Schedule) (Schedule, error)
		GetSchedule(ctx context.Context, id int64) (Schedule, error)
		// QuerySchedules applies AND operation on available QueryFilter fields.
		QuerySchedules(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]Detail, error)
		// FindConflicts returns the schedules of the lecturer overlapping slot, other than excludeID.
		FindConflicts(ctx context.Context, lecturerID int64, slot Slot, excludeID int64) ([]Schedule, error)
		UpdateSchedule(ctx context.Context, sched Schedule) (Schedule, error)
		// ApproveSchedule approves a pending schedule in a single conditional write.
		// Returns ErrNotFound or ErrAlreadyApproved when no row was changed.
		ApproveSchedule(ctx context.Context, id int64, at time.Time) (Schedule, error)
		DeleteSchedule(ctx context.Context, id int64) error
	}

	// CourseGetter resolves courses (see course.Service).
	CourseGetter interface {
		GetByID(ctx context.Context, id int64) (course.Course, error)
	}

	TaskEnqueuer interface {
		Enqueue(ctx context.Context, task core.Task) error
	}

	Service interface {
		Create(ctx context.Context, actor user.User, ns NewSchedule) (Schedule, error)
		Update(ctx context.Context, actor user.User, id int64, us UpdateSchedule) (Schedule, error)
		Delete(ctx context.Context, actor user.User, id int64) error
		Approve(ctx context.Context, actor user.User, id int64) (Schedule, error)
		Get(ctx context.Context, id int64) (Schedule, error)
		ListForLecturer(ctx context.Context, actor user.User) ([]Detail, error)
		ListAll(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]AdminView, error)
		ListForStudent(ctx context.Context, actor user.User) ([]CalendarEvent, error)
	}

	service struct {
		repo     Repository
		courses  CourseGetter
		queue    TaskEnqueuer
		validate *validator.Validate
		logger   core.Logger
		loc      *time.Location
		now      func() time.Time

		// serializes conflict check & write per lecturer
		locks *keyedMutex
	}
)

var _ Service = (*service)(nil)

func NewService(
	repo Repository,
	courses CourseGetter,
	queue TaskEnqueuer,
	validate *validator.Validate,
	logger core.Logger,
	conf *core.Config,
) Service {
	return &service{
		repo:     repo,
		courses:  courses,
		queue:    queue,
		validate: validate,
		logger:   logger,
		loc:      conf.Scheduling.Location(),
		now:      time.Now,
		locks:    newKeyedMutex(),
	}
}

func (svc *service) today() Date {
	return DateOf(svc.now().In(svc.loc))
}

// getOwnCourse returns the course if the actor teaches it.
func (svc *service) getOwnCourse(ctx context.Context, actor user.User, courseID int64) (course.Course, error) {
	crs, err := svc.courses.GetByID(ctx, courseID)
	if err != nil {
		if errors.Cause(err) == course.ErrNotFound {
			return course.Course{}, core.NewValidationError(err, core.FieldError{Field: "course_id", Error: errCourseNotExists})
		}
		return course.Course{}, errors.Wrap(err, "getting course")
	}
	if crs.LecturerID != actor.ID {
		return course.Course{}, ErrNotAssigned
	}
	return crs, nil
}

func (svc *service) checkConflicts(ctx context.Context, lecturerID int64, slot Slot, excludeID int64) error {
	conflicts, err := svc.repo.FindConflicts(ctx, lecturerID, slot, excludeID)
	if err != nil {
		return errors.Wrap(err, "finding conflicts")
	}
	if len(conflicts) > 0 {
		return ErrConflict
	}
	return nil
}

func (svc *service) Create(ctx context.Context, actor user.User, ns NewSchedule) (Schedule, error) {
	slot, err := ns.Validate(svc.validate, svc.today())
	if err != nil {
		return Schedule{}, err
	}
	crs, err := svc.getOwnCourse(ctx, actor, ns.CourseID)
	if err != nil {
		return Schedule{}, err
	}

	unlock := svc.locks.Lock(actor.ID)
	defer unlock()

	if err := svc.checkConflicts(ctx, actor.ID, slot, 0); err != nil {
		return Schedule{}, err
	}
	now := svc.now().UTC()
	return svc.repo.CreateSchedule(ctx, Schedule{
		CourseID:     crs.ID,
		LecturerID:   actor.ID,
		ScheduleDate: slot.Date,
		StartTime:    slot.Start,
		EndTime:      slot.End,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
}

func (svc *service) getOwnSchedule(ctx context.Context, actor user.User, id int64) (Schedule, error) {
	sched, err := svc.repo.GetSchedule(ctx, id)
	if err != nil {
		return Schedule{}, err
	}
	if sched.LecturerID != actor.ID {
		return Schedule{}, ErrForbidden
	}
	return sched, nil
}

// Update moves an own schedule to another slot and/or course.
// The approval state is kept & no notification is sent.
func (svc *service) Update(ctx context.Context, actor user.User, id int64, us UpdateSchedule) (Schedule, error) {
	slot, err := us.Validate(svc.validate, svc.today())
	if err != nil {
		return Schedule{}, err
	}

	unlock := svc.locks.Lock(actor.ID)
	defer unlock()

	sched, err := svc.getOwnSchedule(ctx, actor, id)
	if err != nil {
		return Schedule{}, err
	}
	if us.CourseID != 0 && us.CourseID != sched.CourseID {
		crs, err := svc.getOwnCourse(ctx, actor, us.CourseID)
		if err != nil {
			return Schedule{}, err
		}
		sched.CourseID = crs.ID
	}
	if err := svc.checkConflicts(ctx, actor.ID, slot, sched.ID); err != nil {
		return Schedule{}, err
	}

	sched.ScheduleDate = slot.Date
	sched.StartTime = slot.Start
	sched.EndTime = slot.End
	sched.UpdatedAt = svc.now().UTC()
	return svc.repo.UpdateSchedule(ctx, sched)
}

func (svc *service) Delete(ctx context.Context, actor user.User, id int64) error {
	unlock := svc.locks.Lock(actor.ID)
	defer unlock()

	if _, err := svc.getOwnSchedule(ctx, actor, id); err != nil {
		return err
	}
	return svc.repo.DeleteSchedule(ctx, id)
}

// Approve approves a pending schedule and enqueues its notification task.
// Enqueue failures are logged only: the approval stands.
func (svc *service) Approve(ctx context.Context, actor user.User, id int64) (Schedule, error) {
	if !actor.IsAdmin() {
		return Schedule{}, ErrForbidden
	}
	sched, err := svc.repo.ApproveSchedule(ctx, id, svc.now().UTC())
	if err != nil {
		return Schedule{}, err
	}

	task := core.NewTask(core.TaskScheduleApproved, sched.ID)
	if err := svc.queue.Enqueue(context.WithoutCancel(ctx), task); err != nil {
		svc.logger.Error("enqueuing schedule notification", err, map[string]interface{}{
			"schedule_id": sched.ID,
			"task_id":     task.ID,
		}, actor)
	}
	return sched, nil
}

func (svc *service) Get(ctx context.Context, id int64) (Schedule, error) {
	return svc.repo.GetSchedule(ctx, id)
}

func (svc *service) ListForLecturer(ctx context.Context, actor user.User) ([]Detail, error) {
	return svc.repo.QuerySchedules(ctx, QueryFilter{LecturerID: actor.ID}, chronological)
}

func (svc *service) ListAll(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]AdminView, error) {
	if len(ordering) == 0 {
		ordering = chronological
	}
	details, err := svc.repo.QuerySchedules(ctx, filter, ordering)
	if err != nil {
		return nil, err
	}
	views := make([]AdminView, 0, len(details))
	for _, d := range details {
		views = append(views, NewAdminView(d))
	}
	return views, nil
}

// ListForStudent lists the approved schedules of the student's department as calendar events.
func (svc *service) ListForStudent(ctx context.Context, actor user.User) ([]CalendarEvent, error) {
	if actor.DepartmentID == 0 {
		return []CalendarEvent{}, nil
	}
	approved := true
	details, err := svc.repo.QuerySchedules(ctx, QueryFilter{DepartmentID: actor.DepartmentID, Approved: &approved}, chronological)
	if err != nil {
		return nil, err
	}
	events := make([]CalendarEvent, 0, len(details))
	for _, d := range details {
		events = append(events, NewCalendarEvent(d))
	}
	return events, nil
}
