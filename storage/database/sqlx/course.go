package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/remindme/core"
	"github.com/trezcool/remindme/core/course"
)

const courseColumns = "id, name, department_id, lecturer_id, created_at, updated_at"

var courseOrderColumns = map[string]string{
	"id":            "id",
	"name":          "name",
	"department_id": "department_id",
	"created_at":    "created_at",
}

type courseRow struct {
	ID           int64      `db:"id"`
	Name         string     `db:"name"`
	DepartmentID int64      `db:"department_id"`
	LecturerID   null.Int64 `db:"lecturer_id"`
	CreatedAt    time.Time  `db:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"`
}

func toCourseRow(crs course.Course) courseRow {
	return courseRow{
		ID:           crs.ID,
		Name:         crs.Name,
		DepartmentID: crs.DepartmentID,
		LecturerID:   null.NewInt64(crs.LecturerID, crs.HasLecturer()),
		CreatedAt:    crs.CreatedAt,
		UpdatedAt:    crs.UpdatedAt,
	}
}

func (r courseRow) course() course.Course {
	return course.Course{
		ID:           r.ID,
		Name:         r.Name,
		DepartmentID: r.DepartmentID,
		LecturerID:   r.LecturerID.Int64,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
}

type courseRepository struct {
	db *sqlx.DB
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *sqlx.DB) course.Repository {
	return &courseRepository{db: db}
}

func (repo *courseRepository) CreateCourse(ctx context.Context, crs course.Course) (course.Course, error) {
	q := `INSERT INTO courses (name, department_id, lecturer_id, created_at, updated_at)
		VALUES (:name, :department_id, :lecturer_id, :created_at, :updated_at)
		RETURNING id`

	q, args, err := repo.db.BindNamed(q, toCourseRow(crs))
	if err != nil {
		return course.Course{}, errors.Wrap(err, "binding course")
	}
	if err := repo.db.GetContext(ctx, &crs.ID, q, args...); err != nil {
		return course.Course{}, errors.Wrap(err, "inserting course")
	}
	return crs, nil
}

func (repo *courseRepository) GetCourse(ctx context.Context, id int64) (course.Course, error) {
	var row courseRow
	if err := repo.db.GetContext(ctx, &row, "SELECT "+courseColumns+" FROM courses WHERE id = $1", id); err != nil {
		return course.Course{}, trapNoRowsErr(err, course.ErrNotFound)
	}
	return row.course(), nil
}

func courseFilter(filter course.QueryFilter) *where {
	w := new(where)
	if filter.Search != "" {
		w.add("name ILIKE ?", likePattern(filter.Search))
	}
	if filter.DepartmentID != 0 {
		w.add("department_id = ?", filter.DepartmentID)
	}
	if filter.LecturerID != 0 {
		w.add("lecturer_id = ?", filter.LecturerID)
	}
	if filter.Unassigned {
		w.add("lecturer_id IS NULL")
	}
	return w
}

func (repo *courseRepository) QueryCourses(ctx context.Context, filter course.QueryFilter, ordering []core.DBOrdering) ([]course.Course, error) {
	w := courseFilter(filter)
	q, args := w.build(repo.db, "SELECT "+courseColumns+" FROM courses"+w.String()+
		core.OrderByClause(ordering, courseOrderColumns, "id"))

	var rows []courseRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}
	courses := make([]course.Course, 0, len(rows))
	for _, row := range rows {
		courses = append(courses, row.course())
	}
	return courses, nil
}

func (repo *courseRepository) CountCourses(ctx context.Context, filter course.QueryFilter) (int, error) {
	w := courseFilter(filter)
	q, args := w.build(repo.db, "SELECT COUNT(*) FROM courses"+w.String())

	var count int
	if err := repo.db.GetContext(ctx, &count, q, args...); err != nil {
		return 0, errors.Wrap(err, "counting courses")
	}
	return count, nil
}

func (repo *courseRepository) UpdateCourse(ctx context.Context, crs course.Course) (course.Course, error) {
	q := `UPDATE courses SET name = :name, department_id = :department_id, lecturer_id = :lecturer_id,
		updated_at = :updated_at
		WHERE id = :id`

	res, err := repo.db.NamedExecContext(ctx, q, toCourseRow(crs))
	if err != nil {
		return course.Course{}, errors.Wrap(err, "updating course")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return course.Course{}, course.ErrNotFound
	}
	return crs, nil
}

// AssignLecturer only touches unassigned courses so concurrent assignments cannot both win.
func (repo *courseRepository) AssignLecturer(ctx context.Context, courseID, lecturerID int64, at time.Time) (course.Course, error) {
	var row courseRow
	q := "UPDATE courses SET lecturer_id = $2, updated_at = $3 WHERE id = $1 AND lecturer_id IS NULL RETURNING " + courseColumns
	err := repo.db.GetContext(ctx, &row, q, courseID, lecturerID, at)
	if err == nil {
		return row.course(), nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return course.Course{}, errors.Wrap(err, "assigning lecturer")
	}
	if _, err := repo.GetCourse(ctx, courseID); err != nil {
		return course.Course{}, err
	}
	return course.Course{}, course.ErrAlreadyAssigned
}

func (repo *courseRepository) UnassignLecturer(ctx context.Context, courseID int64, at time.Time) (course.Course, error) {
	var row courseRow
	q := "UPDATE courses SET lecturer_id = NULL, updated_at = $2 WHERE id = $1 RETURNING " + courseColumns
	if err := repo.db.GetContext(ctx, &row, q, courseID, at); err != nil {
		return course.Course{}, errors.Wrap(trapNoRowsErr(err, course.ErrNotFound), "unassigning lecturer")
	}
	return row.course(), nil
}

// DeleteCourse relies on the FKs to delete the course schedules.
func (repo *courseRepository) DeleteCourse(ctx context.Context, id int64) error {
	if _, err := repo.db.ExecContext(ctx, "DELETE FROM courses WHERE id = $1", id); err != nil {
		return errors.Wrap(err, "deleting course")
	}
	return nil
}
