package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/remindme/core"
	"github.com/trezcool/remindme/core/course"
	"github.com/trezcool/remindme/core/faculty"
	"github.com/trezcool/remindme/core/schedule"
	"github.com/trezcool/remindme/core/user"
)

// NewValidator returns a validator with every app validator & translation registered.
func NewValidator() (*validator.Validate, ut.Translator) {
	enLocale := en.New()
	translator, _ := ut.New(enLocale, enLocale).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	return validate, translator
}

// CreateUser stores usr with pwd (if any) as password; Roles defaults to student.
func CreateUser(t *testing.T, repo user.Repository, usr user.User, pwd string, createdAt ...time.Time) user.User {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr.CreatedAt = tstamp
	usr.UpdatedAt = tstamp
	if usr.Roles == nil {
		usr.Roles = []string{user.RoleStudent}
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("createUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	return usr
}

func CreateFaculty(t *testing.T, repo faculty.Repository, name string) faculty.Faculty {
	t.Helper()
	now := time.Now().UTC()
	fac, err := repo.CreateFaculty(context.Background(), faculty.Faculty{Name: name, CreatedAt: now, UpdatedAt: now})
	if err != nil {
		t.Fatalf("createFaculty() failed: %v", err)
	}
	return fac
}

func CreateDepartment(t *testing.T, repo faculty.Repository, facultyID int64, name string, maxCourses int) faculty.Department {
	t.Helper()
	now := time.Now().UTC()
	dept, err := repo.CreateDepartment(context.Background(), faculty.Department{
		Name:                  name,
		FacultyID:             facultyID,
		MaxCoursesPerLecturer: maxCourses,
		CreatedAt:             now,
		UpdatedAt:             now,
	})
	if err != nil {
		t.Fatalf("createDepartment() failed: %v", err)
	}
	return dept
}

// CreateCourse stores a course of the department; lecturerID 0 leaves it unassigned.
func CreateCourse(t *testing.T, repo course.Repository, departmentID, lecturerID int64, name string) course.Course {
	t.Helper()
	now := time.Now().UTC()
	crs, err := repo.CreateCourse(context.Background(), course.Course{
		Name:         name,
		DepartmentID: departmentID,
		LecturerID:   lecturerID,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		t.Fatalf("createCourse() failed: %v", err)
	}
	return crs
}

// CreateSchedule stores a schedule of crs on date, from start to end ("HH:MM").
func CreateSchedule(t *testing.T, repo schedule.Repository, crs course.Course, date schedule.Date, start, end string, approved bool) schedule.Schedule {
	t.Helper()
	startT, err := schedule.ParseTimeOfDay(start)
	if err != nil {
		t.Fatalf("createSchedule() failed: %v", err)
	}
	endT, err := schedule.ParseTimeOfDay(end)
	if err != nil {
		t.Fatalf("createSchedule() failed: %v", err)
	}
	now := time.Now().UTC()
	sched := schedule.Schedule{
		CourseID:     crs.ID,
		LecturerID:   crs.LecturerID,
		ScheduleDate: date,
		StartTime:    startT,
		EndTime:      endT,
		Approved:     approved,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if approved {
		sched.ApprovedAt = now
	}
	sched, err = repo.CreateSchedule(context.Background(), sched)
	if err != nil {
		t.Fatalf("createSchedule() failed: %v", err)
	}
	return sched
}

// Tomorrow is the first date schedules can be booked on.
func Tomorrow() schedule.Date {
	return schedule.DateOf(time.Now().UTC()).AddDays(1)
}
