package inmemdb

import (
	"cmp"
	"context"
	"strings"
	"time"

	"github.com/trezcool/remindme/core"
	"github.com/trezcool/remindme/core/schedule"
)

var scheduleFields = map[string]comparator[schedule.Detail]{
	"id":            func(a, b schedule.Detail) int { return cmp.Compare(a.ID, b.ID) },
	"schedule_date": func(a, b schedule.Detail) int { return a.ScheduleDate.Compare(b.ScheduleDate.Time) },
	"start_time":    func(a, b schedule.Detail) int { return cmp.Compare(a.StartTime, b.StartTime) },
	"end_time":      func(a, b schedule.Detail) int { return cmp.Compare(a.EndTime, b.EndTime) },
	"course":        func(a, b schedule.Detail) int { return strings.Compare(a.CourseName, b.CourseName) },
	"lecturer":      func(a, b schedule.Detail) int { return strings.Compare(a.LecturerName, b.LecturerName) },
	"approved":      func(a, b schedule.Detail) int { return cmpBool(a.Approved, b.Approved) },
	"created_at":    func(a, b schedule.Detail) int { return a.CreatedAt.Compare(b.CreatedAt) },
}

func cmpBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	default:
		return 1
	}
}

type scheduleRepository struct {
	db *DB
}

var _ schedule.Repository = (*scheduleRepository)(nil) // interface compliance check

func NewScheduleRepository(db *DB) schedule.Repository {
	return &scheduleRepository{db: db}
}

// conflicts must be called with a lock held.
func (repo *scheduleRepository) conflicts(lecturerID int64, slot schedule.Slot, excludeID int64) []schedule.Schedule {
	found := make([]schedule.Schedule, 0)
	for _, sched := range repo.db.schedules {
		if sched.ID != excludeID && sched.LecturerID == lecturerID && sched.Slot().Overlaps(slot) {
			found = append(found, *sched)
		}
	}
	return found
}

func (repo *scheduleRepository) CreateSchedule(_ context.Context, sched schedule.Schedule) (schedule.Schedule, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if len(repo.conflicts(sched.LecturerID, sched.Slot(), 0)) > 0 {
		return schedule.Schedule{}, schedule.ErrConflict
	}
	sched.ID = repo.db.nextID("schedules")
	repo.db.schedules[sched.ID] = &sched
	return sched, nil
}

func (repo *scheduleRepository) GetSchedule(_ context.Context, id int64) (schedule.Schedule, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if sched, ok := repo.db.schedules[id]; ok {
		return *sched, nil
	}
	return schedule.Schedule{}, schedule.ErrNotFound
}

// detail joins the schedule with its course, lecturer & department; must be called with a lock held.
func (repo *scheduleRepository) detail(sched schedule.Schedule) schedule.Detail {
	d := schedule.Detail{Schedule: sched}
	if crs, ok := repo.db.courses[sched.CourseID]; ok {
		d.CourseName = crs.Name
		d.DepartmentID = crs.DepartmentID
		if dept, ok := repo.db.departments[crs.DepartmentID]; ok {
			d.DepartmentName = dept.Name
		}
	}
	if lecturer, ok := repo.db.users[sched.LecturerID]; ok {
		d.LecturerName = lecturer.Name
	}
	return d
}

func (repo *scheduleRepository) QuerySchedules(_ context.Context, filter schedule.QueryFilter, ordering []core.DBOrdering) ([]schedule.Detail, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	details := make([]schedule.Detail, 0)
	for _, sched := range repo.db.schedules {
		if d := repo.detail(*sched); filter.Match(d) {
			details = append(details, d)
		}
	}
	sortRows(details, ordering, scheduleFields, func(d schedule.Detail) int64 { return d.ID })
	return details, nil
}

func (repo *scheduleRepository) FindConflicts(_ context.Context, lecturerID int64, slot schedule.Slot, excludeID int64) ([]schedule.Schedule, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return repo.conflicts(lecturerID, slot, excludeID), nil
}

func (repo *scheduleRepository) UpdateSchedule(_ context.Context, sched schedule.Schedule) (schedule.Schedule, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.schedules[sched.ID]; !ok {
		return schedule.Schedule{}, schedule.ErrNotFound
	}
	if len(repo.conflicts(sched.LecturerID, sched.Slot(), sched.ID)) > 0 {
		return schedule.Schedule{}, schedule.ErrConflict
	}
	repo.db.schedules[sched.ID] = &sched
	return sched, nil
}

func (repo *scheduleRepository) ApproveSchedule(_ context.Context, id int64, at time.Time) (schedule.Schedule, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	sched, ok := repo.db.schedules[id]
	if !ok {
		return schedule.Schedule{}, schedule.ErrNotFound
	}
	if sched.Approved {
		return schedule.Schedule{}, schedule.ErrAlreadyApproved
	}
	sched.Approved = true
	sched.ApprovedAt = at
	sched.UpdatedAt = at
	return *sched, nil
}

func (repo *scheduleRepository) DeleteSchedule(_ context.Context, id int64) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	delete(repo.db.schedules, id)
	return nil
}
