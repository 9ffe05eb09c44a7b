package faculty

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/remindme/core"
)

var (
	// errors
	ErrFacultyNotFound       = core.NewError(core.KindNotFound, "faculty not found")
	ErrDepartmentNotFound    = core.NewError(core.KindNotFound, "department not found")
	ErrFacultyNameExists     = errors.New("a faculty with this name already exists")
	ErrFacultyHasDepartments = core.NewError(core.KindValidation, "faculty still has departments")
)

type (
	Repository interface {
		CreateFaculty(ctx context.Context, fac Faculty) (Faculty, error)
		GetFaculty(ctx context.Context, id int64) (Faculty, error)
		QueryFaculties(ctx context.Context, ordering []core.DBOrdering) ([]Faculty, error)
		FacultyNameExists(ctx context.Context, name string, excludeID int64) (bool, error)
		UpdateFaculty(ctx context.Context, fac Faculty) (Faculty, error)
		DeleteFaculty(ctx context.Context, id int64) error
		CountFaculties(ctx context.Context) (int, error)

		CreateDepartment(ctx context.Context, dept Department) (Department, error)
		GetDepartment(ctx context.Context, id int64) (Department, error)
		QueryDepartments(ctx context.Context, filter DepartmentFilter, ordering []core.DBOrdering) ([]Department, error)
		UpdateDepartment(ctx context.Context, dept Department) (Department, error)
		DeleteDepartment(ctx context.Context, id int64) error
		CountDepartments(ctx context.Context, filter DepartmentFilter) (int, error)
	}

	Service interface {
		CreateFaculty(ctx context.Context, nf NewFaculty) (Faculty, error)
		GetFaculty(ctx context.Context, id int64) (Faculty, error)
		QueryFaculties(ctx context.Context, ordering []core.DBOrdering) ([]Faculty, error)
		UpdateFaculty(ctx context.Context, id int64, uf UpdateFaculty) (Faculty, error)
		DeleteFaculty(ctx context.Context, id int64) error
		CountFaculties(ctx context.Context) (int, error)

		CreateDepartment(ctx context.Context, nd NewDepartment) (Department, error)
		GetDepartment(ctx context.Context, id int64) (Department, error)
		QueryDepartments(ctx context.Context, filter DepartmentFilter, ordering []core.DBOrdering) ([]Department, error)
		ListDepartmentSummaries(ctx context.Context) ([]DepartmentSummary, error)
		UpdateDepartment(ctx context.Context, id int64, ud UpdateDepartment) (Department, error)
		DeleteDepartment(ctx context.Context, id int64) error
		CountDepartments(ctx context.Context) (int, error)
		// MaxCoursesPerLecturer returns the course limit of the department, or the configured default.
		MaxCoursesPerLecturer(dept Department) int
	}

	service struct {
		repo              Repository
		defaultMaxCourses int
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, conf *core.Config) Service {
	maxCourses := conf.Scheduling.MaxCoursesPerLecturer
	if maxCourses <= 0 {
		maxCourses = DefaultMaxCoursesPerLecturer
	}
	return &service{repo: repo, defaultMaxCourses: maxCourses}
}

func (svc *service) checkFacultyName(ctx context.Context, name string, excludeID int64) error {
	exists, err := svc.repo.FacultyNameExists(ctx, name, excludeID)
	if err != nil {
		return errors.Wrap(err, "checking faculty name")
	}
	if exists {
		return core.NewValidationError(ErrFacultyNameExists, core.FieldError{Field: "name", Error: ErrFacultyNameExists.Error()})
	}
	return nil
}

func (svc *service) CreateFaculty(ctx context.Context, nf NewFaculty) (Faculty, error) {
	if err := svc.checkFacultyName(ctx, nf.Name, 0); err != nil {
		return Faculty{}, err
	}
	now := time.Now().UTC()
	return svc.repo.CreateFaculty(ctx, Faculty{Name: nf.Name, CreatedAt: now, UpdatedAt: now})
}

func (svc *service) GetFaculty(ctx context.Context, id int64) (Faculty, error) {
	return svc.repo.GetFaculty(ctx, id)
}

func (svc *service) QueryFaculties(ctx context.Context, ordering []core.DBOrdering) ([]Faculty, error) {
	return svc.repo.QueryFaculties(ctx, ordering)
}

func (svc *service) UpdateFaculty(ctx context.Context, id int64, uf UpdateFaculty) (Faculty, error) {
	fac, err := svc.repo.GetFaculty(ctx, id)
	if err != nil {
		return Faculty{}, err
	}
	if err := svc.checkFacultyName(ctx, uf.Name, id); err != nil {
		return Faculty{}, err
	}
	fac.Name = uf.Name
	fac.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateFaculty(ctx, fac)
}

func (svc *service) DeleteFaculty(ctx context.Context, id int64) error {
	if _, err := svc.repo.GetFaculty(ctx, id); err != nil {
		return err
	}
	count, err := svc.repo.CountDepartments(ctx, DepartmentFilter{FacultyID: id})
	if err != nil {
		return errors.Wrap(err, "counting faculty departments")
	}
	if count > 0 {
		return ErrFacultyHasDepartments
	}
	return svc.repo.DeleteFaculty(ctx, id)
}

func (svc *service) CountFaculties(ctx context.Context) (int, error) {
	return svc.repo.CountFaculties(ctx)
}

// checkFaculty reports a missing faculty as a validation error on faculty_id.
func (svc *service) checkFaculty(ctx context.Context, id int64) error {
	if _, err := svc.repo.GetFaculty(ctx, id); err != nil {
		if errors.Cause(err) == ErrFacultyNotFound {
			return core.NewValidationError(err, core.FieldError{Field: "faculty_id", Error: err.Error()})
		}
		return err
	}
	return nil
}

func (svc *service) CreateDepartment(ctx context.Context, nd NewDepartment) (Department, error) {
	if err := svc.checkFaculty(ctx, nd.FacultyID); err != nil {
		return Department{}, err
	}
	maxCourses := nd.MaxCoursesPerLecturer
	if maxCourses == 0 {
		maxCourses = svc.defaultMaxCourses
	}
	now := time.Now().UTC()
	return svc.repo.CreateDepartment(ctx, Department{
		Name:                  nd.Name,
		FacultyID:             nd.FacultyID,
		MaxCoursesPerLecturer: maxCourses,
		CreatedAt:             now,
		UpdatedAt:             now,
	})
}

func (svc *service) GetDepartment(ctx context.Context, id int64) (Department, error) {
	return svc.repo.GetDepartment(ctx, id)
}

func (svc *service) QueryDepartments(ctx context.Context, filter DepartmentFilter, ordering []core.DBOrdering) ([]Department, error) {
	return svc.repo.QueryDepartments(ctx, filter, ordering)
}

func (svc *service) ListDepartmentSummaries(ctx context.Context) ([]DepartmentSummary, error) {
	depts, err := svc.repo.QueryDepartments(ctx, DepartmentFilter{}, []core.DBOrdering{{Field: "name", Ascending: true}})
	if err != nil {
		return nil, err
	}
	summaries := make([]DepartmentSummary, 0, len(depts))
	for _, dept := range depts {
		summaries = append(summaries, DepartmentSummary{ID: dept.ID, Name: dept.Name})
	}
	return summaries, nil
}

func (svc *service) UpdateDepartment(ctx context.Context, id int64, ud UpdateDepartment) (Department, error) {
	dept, err := svc.repo.GetDepartment(ctx, id)
	if err != nil {
		return Department{}, err
	}
	if ud.Name != "" {
		dept.Name = ud.Name
	}
	if ud.FacultyID != 0 && ud.FacultyID != dept.FacultyID {
		if err := svc.checkFaculty(ctx, ud.FacultyID); err != nil {
			return Department{}, err
		}
		dept.FacultyID = ud.FacultyID
	}
	if ud.MaxCoursesPerLecturer != 0 {
		dept.MaxCoursesPerLecturer = ud.MaxCoursesPerLecturer
	}
	dept.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateDepartment(ctx, dept)
}

func (svc *service) DeleteDepartment(ctx context.Context, id int64) error {
	if _, err := svc.repo.GetDepartment(ctx, id); err != nil {
		return err
	}
	return svc.repo.DeleteDepartment(ctx, id)
}

func (svc *service) CountDepartments(ctx context.Context) (int, error) {
	return svc.repo.CountDepartments(ctx, DepartmentFilter{})
}

func (svc *service) MaxCoursesPerLecturer(dept Department) int {
	if dept.MaxCoursesPerLecturer > 0 {
		return dept.MaxCoursesPerLecturer
	}
	return svc.defaultMaxCourses
}
