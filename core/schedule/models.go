package schedule

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/remindme/core"
)

// Schedule is a lecturer-owned, course-bound time slot on a given date.
type Schedule struct {
	ID           int64     `json:"id"`
	CourseID     int64     `json:"course_id"`
	LecturerID   int64     `json:"lecturer_id"`
	ScheduleDate Date      `json:"schedule_date"`
	StartTime    TimeOfDay `json:"start_time"`
	EndTime      TimeOfDay `json:"end_time"`
	Approved     bool      `json:"approved"`
	ApprovedAt   time.Time `json:"approved_at,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (s Schedule) Interval() Interval {
	return Interval{Start: s.StartTime, End: s.EndTime}
}

func (s Schedule) Slot() Slot {
	return Slot{Date: s.ScheduleDate, Interval: s.Interval()}
}

// Detail is a Schedule joined with the names of its course & lecturer.
type Detail struct {
	Schedule
	CourseName     string `json:"course_name"`
	LecturerName   string `json:"lecturer_name"`
	DepartmentID   int64  `json:"department_id"`
	DepartmentName string `json:"department_name,omitempty"`
}

// AdminView is a row of the admin schedule listing.
type AdminView struct {
	ID           int64  `json:"id"`
	Course       string `json:"course"`
	Lecturer     string `json:"lecturer"`
	ScheduleDate Date   `json:"schedule_date"`
	StartTime    string `json:"start_time"` // 03:04 PM
	EndTime      string `json:"end_time"`   // 03:04 PM
	Approved     bool   `json:"approved"`
}

func NewAdminView(d Detail) AdminView {
	return AdminView{
		ID:           d.ID,
		Course:       d.CourseName,
		Lecturer:     d.LecturerName,
		ScheduleDate: d.ScheduleDate,
		StartTime:    d.StartTime.Format12h(),
		EndTime:      d.EndTime.Format12h(),
		Approved:     d.Approved,
	}
}

// CalendarEvent is an approved schedule as shown in a student's calendar.
type CalendarEvent struct {
	ID    int64  `json:"id"`
	Start string `json:"start"` // YYYY-MM-DD HH:MM:SS
	End   string `json:"end"`   // YYYY-MM-DD HH:MM:SS
	Title string `json:"title"`
}

func NewCalendarEvent(d Detail) CalendarEvent {
	return CalendarEvent{
		ID:    d.ID,
		Start: d.ScheduleDate.String() + " " + d.StartTime.String(),
		End:   d.ScheduleDate.String() + " " + d.EndTime.String(),
		Title: d.CourseName,
	}
}

// NewSchedule contains information needed to create a new Schedule.
type NewSchedule struct {
	CourseID     int64  `json:"course_id" validate:"required,min=1"`
	ScheduleDate string `json:"schedule_date" validate:"required,isodate"`
	StartTime    string `json:"start_time" validate:"required,timeofday"`
	EndTime      string `json:"end_time" validate:"required,timeofday"`
}

// Validate checks the input and returns the requested Slot.
// The date must be strictly after today and the start before the end.
func (ns *NewSchedule) Validate(validate *validator.Validate, today Date) (Slot, error) {
	ns.ScheduleDate = core.CleanString(ns.ScheduleDate)
	ns.StartTime = core.CleanString(ns.StartTime)
	ns.EndTime = core.CleanString(ns.EndTime)
	if err := validate.Struct(ns); err != nil {
		return Slot{}, err
	}
	return parseSlot(ns.ScheduleDate, ns.StartTime, ns.EndTime, today)
}

// UpdateSchedule defines what may be changed on an existing Schedule; CourseID 0 keeps the course.
type UpdateSchedule struct {
	CourseID     int64  `json:"course_id" validate:"omitempty,min=1"`
	ScheduleDate string `json:"schedule_date" validate:"required,isodate"`
	StartTime    string `json:"start_time" validate:"required,timeofday"`
	EndTime      string `json:"end_time" validate:"required,timeofday"`
}

func (us *UpdateSchedule) Validate(validate *validator.Validate, today Date) (Slot, error) {
	us.ScheduleDate = core.CleanString(us.ScheduleDate)
	us.StartTime = core.CleanString(us.StartTime)
	us.EndTime = core.CleanString(us.EndTime)
	if err := validate.Struct(us); err != nil {
		return Slot{}, err
	}
	return parseSlot(us.ScheduleDate, us.StartTime, us.EndTime, today)
}

func parseSlot(date, start, end string, today Date) (Slot, error) {
	invalid := func(err error, field, msg string) (Slot, error) {
		return Slot{}, core.NewValidationError(err, core.FieldError{Field: field, Error: msg})
	}

	d, err := ParseDate(date)
	if err != nil {
		return invalid(err, "schedule_date", "schedule_date must be a valid date (YYYY-MM-DD)")
	}
	if !d.After(today) {
		return invalid(nil, "schedule_date", "schedule_date must be a date after today")
	}
	startT, err := ParseTimeOfDay(start)
	if err != nil {
		return invalid(err, "start_time", "start_time must be a valid time (HH:MM:SS)")
	}
	endT, err := ParseTimeOfDay(end)
	if err != nil {
		return invalid(err, "end_time", "end_time must be a valid time (HH:MM:SS)")
	}
	interval, err := NewInterval(startT, endT)
	if err != nil {
		return invalid(errors.Cause(err), "end_time", "end_time must be after start_time")
	}
	return Slot{Date: d, Interval: interval}, nil
}

type QueryFilter struct {
	LecturerID   int64
	CourseID     int64
	DepartmentID int64
	Approved     *bool
	DateFrom     Date
	DateTo       Date
}

// Match reports whether d satisfies every set field of the filter.
func (qf QueryFilter) Match(d Detail) bool {
	if qf.LecturerID != 0 && d.LecturerID != qf.LecturerID {
		return false
	}
	if qf.CourseID != 0 && d.CourseID != qf.CourseID {
		return false
	}
	if qf.DepartmentID != 0 && d.DepartmentID != qf.DepartmentID {
		return false
	}
	if qf.Approved != nil && d.Approved != *qf.Approved {
		return false
	}
	if !qf.DateFrom.IsZero() && d.ScheduleDate.Before(qf.DateFrom) {
		return false
	}
	if !qf.DateTo.IsZero() && d.ScheduleDate.After(qf.DateTo) {
		return false
	}
	return true
}
