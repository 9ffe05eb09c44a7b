package course

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/remindme/core"
	"github.com/trezcool/remindme/core/faculty"
	"github.com/trezcool/remindme/core/user"
)

var (
	// errors
	ErrNotFound            = core.NewError(core.KindNotFound, "course not found")
	ErrAlreadyAssigned     = core.NewError(core.KindForbidden, "this course already has a lecturer")
	ErrDepartmentMismatch  = core.NewError(core.KindForbidden, "the lecturer and the course belong to different departments")
	ErrLecturerAtCapacity  = core.NewError(core.KindForbidden, "the lecturer has reached the maximum number of courses in this department")
	errNotALecturer        = "user is not a lecturer"
	errDepartmentNotExists = "department not found"
)

type (
	Repository interface {
		CreateCourse(ctx context.Context, crs Course) (Course, error)
		GetCourse(ctx context.Context, id int64) (Course, error)
		QueryCourses(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]Course, error)
		CountCourses(ctx context.Context, filter QueryFilter) (int, error)
		UpdateCourse(ctx context.Context, crs Course) (Course, error)
		// AssignLecturer sets the lecturer of a course that has none; returns ErrAlreadyAssigned otherwise.
		AssignLecturer(ctx context.Context, courseID, lecturerID int64, at time.Time) (Course, error)
		UnassignLecturer(ctx context.Context, courseID int64, at time.Time) (Course, error)
		DeleteCourse(ctx context.Context, id int64) error
	}

	// DepartmentGetter resolves departments & their limits (see faculty.Service).
	DepartmentGetter interface {
		GetDepartment(ctx context.Context, id int64) (faculty.Department, error)
		MaxCoursesPerLecturer(dept faculty.Department) int
	}

	// UserFinder resolves lecturers & counts students (see user.Service).
	UserFinder interface {
		GetByID(ctx context.Context, id int64) (user.User, error)
		Count(ctx context.Context, filter user.QueryFilter) (int, error)
	}

	Service interface {
		Create(ctx context.Context, nc NewCourse) (Course, error)
		GetByID(ctx context.Context, id int64) (Course, error)
		Query(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]Course, error)
		Update(ctx context.Context, id int64, uc UpdateCourse) (Course, error)
		Delete(ctx context.Context, id int64) error
		AssignLecturer(ctx context.Context, id int64, al AssignLecturer) (Course, error)
		UnassignLecturer(ctx context.Context, id int64) (Course, error)
		ListForLecturer(ctx context.Context, lecturer user.User) ([]LecturerCourse, error)
	}

	service struct {
		repo  Repository
		depts DepartmentGetter
		users UserFinder

		// assignMu serializes the capacity check & the assignment
		assignMu sync.Mutex
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, depts DepartmentGetter, users UserFinder) Service {
	return &service{repo: repo, depts: depts, users: users}
}

func (svc *service) getDepartment(ctx context.Context, id int64) (faculty.Department, error) {
	dept, err := svc.depts.GetDepartment(ctx, id)
	if err != nil {
		if errors.Cause(err) == faculty.ErrDepartmentNotFound {
			return faculty.Department{}, core.NewValidationError(err, core.FieldError{Field: "department_id", Error: errDepartmentNotExists})
		}
		return faculty.Department{}, errors.Wrap(err, "getting department")
	}
	return dept, nil
}

func (svc *service) Create(ctx context.Context, nc NewCourse) (Course, error) {
	if _, err := svc.getDepartment(ctx, nc.DepartmentID); err != nil {
		return Course{}, err
	}
	now := time.Now().UTC()
	return svc.repo.CreateCourse(ctx, Course{
		Name:         nc.Name,
		DepartmentID: nc.DepartmentID,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
}

func (svc *service) GetByID(ctx context.Context, id int64) (Course, error) {
	return svc.repo.GetCourse(ctx, id)
}

func (svc *service) Query(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]Course, error) {
	filter.Clean()
	return svc.repo.QueryCourses(ctx, filter, ordering)
}

// Update renames and/or moves a course. Moving it to another department drops its lecturer.
func (svc *service) Update(ctx context.Context, id int64, uc UpdateCourse) (Course, error) {
	crs, err := svc.repo.GetCourse(ctx, id)
	if err != nil {
		return Course{}, err
	}
	if uc.Name != "" {
		crs.Name = uc.Name
	}
	if uc.DepartmentID != 0 && uc.DepartmentID != crs.DepartmentID {
		if _, err := svc.getDepartment(ctx, uc.DepartmentID); err != nil {
			return Course{}, err
		}
		crs.DepartmentID = uc.DepartmentID
		crs.LecturerID = 0
	}
	crs.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateCourse(ctx, crs)
}

func (svc *service) Delete(ctx context.Context, id int64) error {
	if _, err := svc.repo.GetCourse(ctx, id); err != nil {
		return err
	}
	return svc.repo.DeleteCourse(ctx, id)
}

// AssignLecturer makes the lecturer teach the course. The lecturer must:
// - be in the course's department
// - stay within the department's course limit
// and the course must not have a lecturer yet.
func (svc *service) AssignLecturer(ctx context.Context, id int64, al AssignLecturer) (Course, error) {
	crs, err := svc.repo.GetCourse(ctx, id)
	if err != nil {
		return Course{}, err
	}
	lecturer, err := svc.users.GetByID(ctx, al.LecturerID)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return Course{}, core.NewValidationError(err, core.FieldError{Field: "lecturer_id", Error: err.Error()})
		}
		return Course{}, errors.Wrap(err, "getting lecturer")
	}
	if !lecturer.IsLecturer() {
		return Course{}, core.NewValidationError(nil, core.FieldError{Field: "lecturer_id", Error: errNotALecturer})
	}
	if lecturer.DepartmentID != crs.DepartmentID {
		return Course{}, ErrDepartmentMismatch
	}
	if crs.HasLecturer() {
		return Course{}, ErrAlreadyAssigned
	}

	dept, err := svc.depts.GetDepartment(ctx, crs.DepartmentID)
	if err != nil {
		return Course{}, errors.Wrap(err, "getting department")
	}

	svc.assignMu.Lock()
	defer svc.assignMu.Unlock()

	count, err := svc.repo.CountCourses(ctx, QueryFilter{LecturerID: lecturer.ID, DepartmentID: crs.DepartmentID})
	if err != nil {
		return Course{}, errors.Wrap(err, "counting lecturer courses")
	}
	if count >= svc.depts.MaxCoursesPerLecturer(dept) {
		return Course{}, ErrLecturerAtCapacity
	}
	return svc.repo.AssignLecturer(ctx, crs.ID, lecturer.ID, time.Now().UTC())
}

func (svc *service) UnassignLecturer(ctx context.Context, id int64) (Course, error) {
	if _, err := svc.repo.GetCourse(ctx, id); err != nil {
		return Course{}, err
	}
	return svc.repo.UnassignLecturer(ctx, id, time.Now().UTC())
}

// ListForLecturer lists the lecturer's courses with their department name & student count.
func (svc *service) ListForLecturer(ctx context.Context, lecturer user.User) ([]LecturerCourse, error) {
	courses, err := svc.repo.QueryCourses(ctx, QueryFilter{LecturerID: lecturer.ID}, []core.DBOrdering{{Field: "name", Ascending: true}})
	if err != nil {
		return nil, errors.Wrap(err, "querying lecturer courses")
	}

	type deptInfo struct {
		name     string
		students int
	}
	cache := make(map[int64]deptInfo)
	views := make([]LecturerCourse, 0, len(courses))
	for _, crs := range courses {
		info, ok := cache[crs.DepartmentID]
		if !ok {
			dept, err := svc.depts.GetDepartment(ctx, crs.DepartmentID)
			if err != nil {
				return nil, errors.Wrap(err, "getting department")
			}
			students, err := svc.users.Count(ctx, user.QueryFilter{Roles: []string{user.RoleStudent}, DepartmentID: dept.ID})
			if err != nil {
				return nil, errors.Wrap(err, "counting students")
			}
			info = deptInfo{name: dept.Name, students: students}
			cache[crs.DepartmentID] = info
		}
		views = append(views, LecturerCourse{
			ID:             crs.ID,
			Name:           crs.Name,
			DepartmentID:   crs.DepartmentID,
			DepartmentName: info.name,
			StudentCount:   info.students,
		})
	}
	return views, nil
}
