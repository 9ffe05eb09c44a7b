package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/remindme/core"
	"github.com/trezcool/remindme/core/schedule"
)

// TIME columns are read as text so both drivers hand the same value to schedule.TimeOfDay.
const scheduleColumns = `s.id, s.course_id, s.lecturer_id, s.schedule_date, s.start_time::text AS start_time,
	s.end_time::text AS end_time, s.approved, s.approved_at, s.created_at, s.updated_at`

var scheduleOrderColumns = map[string]string{
	"id":            "s.id",
	"schedule_date": "s.schedule_date",
	"start_time":    "s.start_time",
	"end_time":      "s.end_time",
	"course":        "c.name",
	"lecturer":      "u.name",
	"approved":      "s.approved",
	"created_at":    "s.created_at",
}

type scheduleRow struct {
	ID           int64              `db:"id"`
	CourseID     int64              `db:"course_id"`
	LecturerID   int64              `db:"lecturer_id"`
	ScheduleDate schedule.Date      `db:"schedule_date"`
	StartTime    schedule.TimeOfDay `db:"start_time"`
	EndTime      schedule.TimeOfDay `db:"end_time"`
	Approved     bool               `db:"approved"`
	ApprovedAt   null.Time          `db:"approved_at"`
	CreatedAt    time.Time          `db:"created_at"`
	UpdatedAt    time.Time          `db:"updated_at"`
}

func toScheduleRow(sched schedule.Schedule) scheduleRow {
	return scheduleRow{
		ID:           sched.ID,
		CourseID:     sched.CourseID,
		LecturerID:   sched.LecturerID,
		ScheduleDate: sched.ScheduleDate,
		StartTime:    sched.StartTime,
		EndTime:      sched.EndTime,
		Approved:     sched.Approved,
		ApprovedAt:   null.NewTime(sched.ApprovedAt, !sched.ApprovedAt.IsZero()),
		CreatedAt:    sched.CreatedAt,
		UpdatedAt:    sched.UpdatedAt,
	}
}

func (r scheduleRow) schedule() schedule.Schedule {
	var approvedAt time.Time
	if r.ApprovedAt.Valid {
		approvedAt = r.ApprovedAt.Time.UTC()
	}
	return schedule.Schedule{
		ID:           r.ID,
		CourseID:     r.CourseID,
		LecturerID:   r.LecturerID,
		ScheduleDate: r.ScheduleDate,
		StartTime:    r.StartTime,
		EndTime:      r.EndTime,
		Approved:     r.Approved,
		ApprovedAt:   approvedAt,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
}

type detailRow struct {
	scheduleRow
	CourseName     string      `db:"course_name"`
	LecturerName   string      `db:"lecturer_name"`
	DepartmentID   int64       `db:"department_id"`
	DepartmentName null.String `db:"department_name"`
}

func (r detailRow) detail() schedule.Detail {
	return schedule.Detail{
		Schedule:       r.schedule(),
		CourseName:     r.CourseName,
		LecturerName:   r.LecturerName,
		DepartmentID:   r.DepartmentID,
		DepartmentName: r.DepartmentName.String,
	}
}

type scheduleRepository struct {
	db *sqlx.DB
}

var _ schedule.Repository = (*scheduleRepository)(nil) // interface compliance check

func NewScheduleRepository(db *sqlx.DB) schedule.Repository {
	return &scheduleRepository{db: db}
}

// trapConflictErr maps the lecturer overlap exclusion constraint to ErrConflict.
func trapConflictErr(err error) error {
	if code, _ := pgError(err); code == exclusionViolation {
		return schedule.ErrConflict
	}
	return err
}

func (repo *scheduleRepository) CreateSchedule(ctx context.Context, sched schedule.Schedule) (schedule.Schedule, error) {
	q := `INSERT INTO schedules (course_id, lecturer_id, schedule_date, start_time, end_time, approved, approved_at,
		created_at, updated_at)
		VALUES (:course_id, :lecturer_id, :schedule_date, :start_time, :end_time, :approved, :approved_at,
		:created_at, :updated_at)
		RETURNING id`

	q, args, err := repo.db.BindNamed(q, toScheduleRow(sched))
	if err != nil {
		return schedule.Schedule{}, errors.Wrap(err, "binding schedule")
	}
	if err := repo.db.GetContext(ctx, &sched.ID, q, args...); err != nil {
		if err := trapConflictErr(err); err == schedule.ErrConflict {
			return schedule.Schedule{}, err
		}
		return schedule.Schedule{}, errors.Wrap(err, "inserting schedule")
	}
	return sched, nil
}

func (repo *scheduleRepository) GetSchedule(ctx context.Context, id int64) (schedule.Schedule, error) {
	var row scheduleRow
	if err := repo.db.GetContext(ctx, &row, "SELECT "+scheduleColumns+" FROM schedules s WHERE s.id = $1", id); err != nil {
		return schedule.Schedule{}, trapNoRowsErr(err, schedule.ErrNotFound)
	}
	return row.schedule(), nil
}

func scheduleFilter(filter schedule.QueryFilter) *where {
	w := new(where)
	if filter.LecturerID != 0 {
		w.add("s.lecturer_id = ?", filter.LecturerID)
	}
	if filter.CourseID != 0 {
		w.add("s.course_id = ?", filter.CourseID)
	}
	if filter.DepartmentID != 0 {
		w.add("c.department_id = ?", filter.DepartmentID)
	}
	if filter.Approved != nil {
		w.add("s.approved = ?", *filter.Approved)
	}
	if !filter.DateFrom.IsZero() {
		w.add("s.schedule_date >= ?", filter.DateFrom)
	}
	if !filter.DateTo.IsZero() {
		w.add("s.schedule_date <= ?", filter.DateTo)
	}
	return w
}

func (repo *scheduleRepository) QuerySchedules(ctx context.Context, filter schedule.QueryFilter, ordering []core.DBOrdering) ([]schedule.Detail, error) {
	w := scheduleFilter(filter)
	q, args := w.build(repo.db, `SELECT `+scheduleColumns+`, c.name AS course_name, u.name AS lecturer_name,
		c.department_id, d.name AS department_name
		FROM schedules s
		JOIN courses c ON c.id = s.course_id
		JOIN users u ON u.id = s.lecturer_id
		LEFT JOIN departments d ON d.id = c.department_id`+
		w.String()+core.OrderByClause(ordering, scheduleOrderColumns, "s.id"))

	var rows []detailRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying schedules")
	}
	details := make([]schedule.Detail, 0, len(rows))
	for _, row := range rows {
		details = append(details, row.detail())
	}
	return details, nil
}

func (repo *scheduleRepository) FindConflicts(ctx context.Context, lecturerID int64, slot schedule.Slot, excludeID int64) ([]schedule.Schedule, error) {
	q := "SELECT " + scheduleColumns + ` FROM schedules s
		WHERE s.lecturer_id = $1 AND s.schedule_date = $2 AND s.start_time < $3 AND $4 < s.end_time AND s.id <> $5
		ORDER BY s.start_time, s.id`

	var rows []scheduleRow
	if err := repo.db.SelectContext(ctx, &rows, q, lecturerID, slot.Date, slot.End, slot.Start, excludeID); err != nil {
		return nil, errors.Wrap(err, "finding conflicts")
	}
	conflicts := make([]schedule.Schedule, 0, len(rows))
	for _, row := range rows {
		conflicts = append(conflicts, row.schedule())
	}
	return conflicts, nil
}

func (repo *scheduleRepository) UpdateSchedule(ctx context.Context, sched schedule.Schedule) (schedule.Schedule, error) {
	q := `UPDATE schedules SET course_id = :course_id, schedule_date = :schedule_date, start_time = :start_time,
		end_time = :end_time, updated_at = :updated_at
		WHERE id = :id`

	res, err := repo.db.NamedExecContext(ctx, q, toScheduleRow(sched))
	if err != nil {
		if err := trapConflictErr(err); err == schedule.ErrConflict {
			return schedule.Schedule{}, err
		}
		return schedule.Schedule{}, errors.Wrap(err, "updating schedule")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return schedule.Schedule{}, schedule.ErrNotFound
	}
	return sched, nil
}

func (repo *scheduleRepository) ApproveSchedule(ctx context.Context, id int64, at time.Time) (schedule.Schedule, error) {
	var row scheduleRow
	q := `UPDATE schedules s SET approved = TRUE, approved_at = $2, updated_at = $2
		WHERE s.id = $1 AND NOT s.approved
		RETURNING ` + scheduleColumns
	err := repo.db.GetContext(ctx, &row, q, id, at)
	if err == nil {
		return row.schedule(), nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return schedule.Schedule{}, errors.Wrap(err, "approving schedule")
	}
	if _, err := repo.GetSchedule(ctx, id); err != nil {
		return schedule.Schedule{}, err
	}
	return schedule.Schedule{}, schedule.ErrAlreadyApproved
}

func (repo *scheduleRepository) DeleteSchedule(ctx context.Context, id int64) error {
	if _, err := repo.db.ExecContext(ctx, "DELETE FROM schedules WHERE id = $1", id); err != nil {
		return errors.Wrap(err, "deleting schedule")
	}
	return nil
}
