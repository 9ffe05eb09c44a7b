package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/remindme/core"
	"github.com/trezcool/remindme/core/faculty"
)

var (
	facultyOrderColumns = map[string]string{
		"id":         "id",
		"name":       "name",
		"created_at": "created_at",
	}
	departmentOrderColumns = map[string]string{
		"id":         "id",
		"name":       "name",
		"faculty_id": "faculty_id",
		"created_at": "created_at",
	}
)

const departmentColumns = "id, name, faculty_id, max_courses_per_lecturer, created_at, updated_at"

type facultyRow struct {
	ID        int64     `db:"id"`
	Name      string    `db:"name"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r facultyRow) faculty() faculty.Faculty {
	return faculty.Faculty{ID: r.ID, Name: r.Name, CreatedAt: r.CreatedAt.UTC(), UpdatedAt: r.UpdatedAt.UTC()}
}

type departmentRow struct {
	ID                    int64     `db:"id"`
	Name                  string    `db:"name"`
	FacultyID             int64     `db:"faculty_id"`
	MaxCoursesPerLecturer int       `db:"max_courses_per_lecturer"`
	CreatedAt             time.Time `db:"created_at"`
	UpdatedAt             time.Time `db:"updated_at"`
}

func toDepartmentRow(dept faculty.Department) departmentRow {
	return departmentRow{
		ID:                    dept.ID,
		Name:                  dept.Name,
		FacultyID:             dept.FacultyID,
		MaxCoursesPerLecturer: dept.MaxCoursesPerLecturer,
		CreatedAt:             dept.CreatedAt,
		UpdatedAt:             dept.UpdatedAt,
	}
}

func (r departmentRow) department() faculty.Department {
	return faculty.Department{
		ID:                    r.ID,
		Name:                  r.Name,
		FacultyID:             r.FacultyID,
		MaxCoursesPerLecturer: r.MaxCoursesPerLecturer,
		CreatedAt:             r.CreatedAt.UTC(),
		UpdatedAt:             r.UpdatedAt.UTC(),
	}
}

type facultyRepository struct {
	db *sqlx.DB
}

var _ faculty.Repository = (*facultyRepository)(nil) // interface compliance check

func NewFacultyRepository(db *sqlx.DB) faculty.Repository {
	return &facultyRepository{db: db}
}

func trapFacultyNameErr(err error) error {
	if code, _ := pgError(err); code == uniqueViolation {
		return core.NewValidationError(faculty.ErrFacultyNameExists,
			core.FieldError{Field: "name", Error: faculty.ErrFacultyNameExists.Error()})
	}
	return err
}

func (repo *facultyRepository) CreateFaculty(ctx context.Context, fac faculty.Faculty) (faculty.Faculty, error) {
	q := "INSERT INTO faculties (name, created_at, updated_at) VALUES ($1, $2, $3) RETURNING id"
	if err := repo.db.GetContext(ctx, &fac.ID, q, fac.Name, fac.CreatedAt, fac.UpdatedAt); err != nil {
		return faculty.Faculty{}, errors.Wrap(trapFacultyNameErr(err), "inserting faculty")
	}
	return fac, nil
}

func (repo *facultyRepository) GetFaculty(ctx context.Context, id int64) (faculty.Faculty, error) {
	var row facultyRow
	q := "SELECT id, name, created_at, updated_at FROM faculties WHERE id = $1"
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		return faculty.Faculty{}, trapNoRowsErr(err, faculty.ErrFacultyNotFound)
	}
	return row.faculty(), nil
}

func (repo *facultyRepository) QueryFaculties(ctx context.Context, ordering []core.DBOrdering) ([]faculty.Faculty, error) {
	var rows []facultyRow
	q := "SELECT id, name, created_at, updated_at FROM faculties" + core.OrderByClause(ordering, facultyOrderColumns, "id")
	if err := repo.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying faculties")
	}
	facs := make([]faculty.Faculty, 0, len(rows))
	for _, row := range rows {
		facs = append(facs, row.faculty())
	}
	return facs, nil
}

func (repo *facultyRepository) FacultyNameExists(ctx context.Context, name string, excludeID int64) (bool, error) {
	var found bool
	q := "SELECT EXISTS(SELECT 1 FROM faculties WHERE lower(name) = lower($1) AND id <> $2)"
	if err := repo.db.GetContext(ctx, &found, q, name, excludeID); err != nil {
		return false, errors.Wrap(err, "checking faculty name")
	}
	return found, nil
}

func (repo *facultyRepository) UpdateFaculty(ctx context.Context, fac faculty.Faculty) (faculty.Faculty, error) {
	res, err := repo.db.ExecContext(ctx, "UPDATE faculties SET name = $2, updated_at = $3 WHERE id = $1",
		fac.ID, fac.Name, fac.UpdatedAt)
	if err != nil {
		return faculty.Faculty{}, errors.Wrap(trapFacultyNameErr(err), "updating faculty")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return faculty.Faculty{}, faculty.ErrFacultyNotFound
	}
	return fac, nil
}

func (repo *facultyRepository) DeleteFaculty(ctx context.Context, id int64) error {
	if _, err := repo.db.ExecContext(ctx, "DELETE FROM faculties WHERE id = $1", id); err != nil {
		return errors.Wrap(err, "deleting faculty")
	}
	return nil
}

func (repo *facultyRepository) CountFaculties(ctx context.Context) (int, error) {
	var count int
	if err := repo.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM faculties"); err != nil {
		return 0, errors.Wrap(err, "counting faculties")
	}
	return count, nil
}

func (repo *facultyRepository) CreateDepartment(ctx context.Context, dept faculty.Department) (faculty.Department, error) {
	q := `INSERT INTO departments (name, faculty_id, max_courses_per_lecturer, created_at, updated_at)
		VALUES (:name, :faculty_id, :max_courses_per_lecturer, :created_at, :updated_at)
		RETURNING id`

	q, args, err := repo.db.BindNamed(q, toDepartmentRow(dept))
	if err != nil {
		return faculty.Department{}, errors.Wrap(err, "binding department")
	}
	if err := repo.db.GetContext(ctx, &dept.ID, q, args...); err != nil {
		return faculty.Department{}, errors.Wrap(err, "inserting department")
	}
	return dept, nil
}

func (repo *facultyRepository) GetDepartment(ctx context.Context, id int64) (faculty.Department, error) {
	var row departmentRow
	if err := repo.db.GetContext(ctx, &row, "SELECT "+departmentColumns+" FROM departments WHERE id = $1", id); err != nil {
		return faculty.Department{}, trapNoRowsErr(err, faculty.ErrDepartmentNotFound)
	}
	return row.department(), nil
}

func departmentFilter(filter faculty.DepartmentFilter) *where {
	w := new(where)
	if filter.FacultyID != 0 {
		w.add("faculty_id = ?", filter.FacultyID)
	}
	return w
}

func (repo *facultyRepository) QueryDepartments(ctx context.Context, filter faculty.DepartmentFilter, ordering []core.DBOrdering) ([]faculty.Department, error) {
	w := departmentFilter(filter)
	q, args := w.build(repo.db, "SELECT "+departmentColumns+" FROM departments"+w.String()+
		core.OrderByClause(ordering, departmentOrderColumns, "id"))

	var rows []departmentRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying departments")
	}
	depts := make([]faculty.Department, 0, len(rows))
	for _, row := range rows {
		depts = append(depts, row.department())
	}
	return depts, nil
}

func (repo *facultyRepository) UpdateDepartment(ctx context.Context, dept faculty.Department) (faculty.Department, error) {
	q := `UPDATE departments SET name = :name, faculty_id = :faculty_id,
		max_courses_per_lecturer = :max_courses_per_lecturer, updated_at = :updated_at
		WHERE id = :id`

	res, err := repo.db.NamedExecContext(ctx, q, toDepartmentRow(dept))
	if err != nil {
		return faculty.Department{}, errors.Wrap(err, "updating department")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return faculty.Department{}, faculty.ErrDepartmentNotFound
	}
	return dept, nil
}

// DeleteDepartment relies on the FKs: users are detached, courses & their schedules are deleted.
func (repo *facultyRepository) DeleteDepartment(ctx context.Context, id int64) error {
	if _, err := repo.db.ExecContext(ctx, "DELETE FROM departments WHERE id = $1", id); err != nil {
		return errors.Wrap(err, "deleting department")
	}
	return nil
}

func (repo *facultyRepository) CountDepartments(ctx context.Context, filter faculty.DepartmentFilter) (int, error) {
	w := departmentFilter(filter)
	q, args := w.build(repo.db, "SELECT COUNT(*) FROM departments"+w.String())

	var count int
	if err := repo.db.GetContext(ctx, &count, q, args...); err != nil {
		return 0, errors.Wrap(err, "counting departments")
	}
	return count, nil
}
