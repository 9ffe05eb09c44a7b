package schedule

import (
	"context"
	"net/mail"

	"github.com/pkg/errors"

	"github.com/trezcool/remindme/core"
	"github.com/trezcool/remindme/core/faculty"
	"github.com/trezcool/remindme/core/user"
)

// sms & email template names
const (
	tmplLecturerApproved   = "lecturer_approved"
	tmplStudentNewSchedule = "student_new_schedule"
	tmplScheduleApproved   = "schedule_approved"
)

var (
	errNoPhone         = errors.New("recipient has no phone number")
	errUnknownTaskKind = errors.New("unknown task kind")
)

type (
	ScheduleGetter interface {
		GetSchedule(ctx context.Context, id int64) (Schedule, error)
	}

	// UserFinder resolves lecturers & lists students (see user.Service).
	UserFinder interface {
		GetByID(ctx context.Context, id int64) (user.User, error)
		Query(ctx context.Context, filter user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error)
	}

	DepartmentGetter interface {
		GetDepartment(ctx context.Context, id int64) (faculty.Department, error)
	}

	// Report sums up the sends of one notification task.
	Report struct {
		ScheduleID int64
		Attempted  int
		Sent       int
		Failed     int
	}

	// Dispatcher sends the notifications of approved schedules.
	Dispatcher struct {
		schedules ScheduleGetter
		courses   CourseGetter
		users     UserFinder
		depts     DepartmentGetter
		sms       core.SMSService
		email     core.EmailService // optional
		logger    core.Logger
	}

	notificationData struct {
		ScheduleID int64
		Recipient  string
		Lecturer   string
		Course     string
		Date       string
		Start      string
		End        string
	}
)

// NewDispatcher creates a Dispatcher; email may be nil to disable approval emails.
func NewDispatcher(
	schedules ScheduleGetter,
	courses CourseGetter,
	users UserFinder,
	depts DepartmentGetter,
	sms core.SMSService,
	email core.EmailService,
	logger core.Logger,
) *Dispatcher {
	return &Dispatcher{
		schedules: schedules,
		courses:   courses,
		users:     users,
		depts:     depts,
		sms:       sms,
		email:     email,
		logger:    logger,
	}
}

// Process handles a task for the worker pool; the Report is logged by Handle.
func (d *Dispatcher) Process(ctx context.Context, task core.Task) error {
	_, err := d.Handle(ctx, task)
	return err
}

func (d *Dispatcher) Handle(ctx context.Context, task core.Task) (Report, error) {
	switch task.Kind {
	case core.TaskScheduleApproved:
		return d.Notify(ctx, task.ScheduleID)
	default:
		return Report{}, errors.Wrap(errUnknownTaskKind, task.Kind)
	}
}

// Notify texts the lecturer of an approved schedule, then every student of the course's department.
// Sends are sequential & best-effort: failures are logged & counted, never retried.
func (d *Dispatcher) Notify(ctx context.Context, scheduleID int64) (Report, error) {
	report := Report{ScheduleID: scheduleID}

	sched, err := d.schedules.GetSchedule(ctx, scheduleID)
	if err != nil {
		return report, errors.Wrap(err, "getting schedule")
	}
	crs, err := d.courses.GetByID(ctx, sched.CourseID)
	if err != nil {
		return report, errors.Wrap(err, "getting course")
	}
	lecturer, err := d.users.GetByID(ctx, sched.LecturerID)
	if err != nil {
		return report, errors.Wrap(err, "getting lecturer")
	}
	dept, err := d.depts.GetDepartment(ctx, crs.DepartmentID)
	if err != nil {
		return report, errors.Wrap(err, "getting department")
	}

	data := notificationData{
		ScheduleID: sched.ID,
		Lecturer:   lecturer.Name,
		Course:     crs.Name,
		Date:       sched.ScheduleDate.String(),
		Start:      sched.StartTime.String(),
		End:        sched.EndTime.String(),
	}

	lecturerData := data
	lecturerData.Recipient = lecturer.Name
	d.send(ctx, &report, lecturer, tmplLecturerApproved, lecturerData)

	students, err := d.users.Query(
		ctx,
		user.QueryFilter{Roles: []string{user.RoleStudent}, DepartmentID: dept.ID},
		[]core.DBOrdering{{Field: "id", Ascending: true}},
	)
	if err != nil {
		return report, errors.Wrap(err, "listing students")
	}
	for _, student := range students {
		studentData := data
		studentData.Recipient = student.Name
		d.send(ctx, &report, student, tmplStudentNewSchedule, studentData)
	}

	d.sendApprovalEmail(lecturer, data)

	d.logger.Info("schedule notifications sent", map[string]interface{}{
		"schedule_id": report.ScheduleID,
		"attempted":   report.Attempted,
		"sent":        report.Sent,
		"failed":      report.Failed,
	})
	return report, nil
}

func (d *Dispatcher) send(ctx context.Context, report *Report, to user.User, tmpl string, data notificationData) {
	report.Attempted++
	err := errNoPhone
	if to.Phone != "" {
		err = d.sms.Send(ctx, &core.SMSMessage{To: to.Phone, TemplateName: tmpl, TemplateData: data})
	}
	if err != nil {
		report.Failed++
		d.logger.Error("sending sms", err, map[string]interface{}{
			"schedule_id": data.ScheduleID,
			"user_id":     to.ID,
			"template":    tmpl,
		})
		return
	}
	report.Sent++
}

func (d *Dispatcher) sendApprovalEmail(lecturer user.User, data notificationData) {
	if d.email == nil || lecturer.Email == "" {
		return
	}
	d.email.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: lecturer.Name, Address: lecturer.Email}},
		Subject:      "Your schedule has been approved",
		TemplateName: tmplScheduleApproved,
		TemplateData: data,
	})
}
