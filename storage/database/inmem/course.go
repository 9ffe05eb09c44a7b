package inmemdb

import (
	"cmp"
	"context"
	"strings"
	"time"

	"github.com/trezcool/remindme/core"
	"github.com/trezcool/remindme/core/course"
)

var courseFields = map[string]comparator[course.Course]{
	"id":            func(a, b course.Course) int { return cmp.Compare(a.ID, b.ID) },
	"name":          func(a, b course.Course) int { return strings.Compare(a.Name, b.Name) },
	"department_id": func(a, b course.Course) int { return cmp.Compare(a.DepartmentID, b.DepartmentID) },
	"created_at":    func(a, b course.Course) int { return a.CreatedAt.Compare(b.CreatedAt) },
}

type courseRepository struct {
	db *DB
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *DB) course.Repository {
	return &courseRepository{db: db}
}

func (repo *courseRepository) CreateCourse(_ context.Context, crs course.Course) (course.Course, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	crs.ID = repo.db.nextID("courses")
	repo.db.courses[crs.ID] = &crs
	return crs, nil
}

func (repo *courseRepository) GetCourse(_ context.Context, id int64) (course.Course, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if crs, ok := repo.db.courses[id]; ok {
		return *crs, nil
	}
	return course.Course{}, course.ErrNotFound
}

func matchCourse(filter course.QueryFilter, crs course.Course) bool {
	if filter.Search != "" && !strings.Contains(strings.ToLower(crs.Name), strings.ToLower(filter.Search)) {
		return false
	}
	if filter.DepartmentID != 0 && crs.DepartmentID != filter.DepartmentID {
		return false
	}
	if filter.LecturerID != 0 && crs.LecturerID != filter.LecturerID {
		return false
	}
	if filter.Unassigned && crs.HasLecturer() {
		return false
	}
	return true
}

func (repo *courseRepository) query(filter course.QueryFilter) []course.Course {
	courses := make([]course.Course, 0)
	for _, crs := range repo.db.courses {
		if matchCourse(filter, *crs) {
			courses = append(courses, *crs)
		}
	}
	return courses
}

func (repo *courseRepository) QueryCourses(_ context.Context, filter course.QueryFilter, ordering []core.DBOrdering) ([]course.Course, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	courses := repo.query(filter)
	sortRows(courses, ordering, courseFields, func(c course.Course) int64 { return c.ID })
	return courses, nil
}

func (repo *courseRepository) CountCourses(_ context.Context, filter course.QueryFilter) (int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return len(repo.query(filter)), nil
}

func (repo *courseRepository) UpdateCourse(_ context.Context, crs course.Course) (course.Course, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.courses[crs.ID]; !ok {
		return course.Course{}, course.ErrNotFound
	}
	repo.db.courses[crs.ID] = &crs
	return crs, nil
}

func (repo *courseRepository) AssignLecturer(_ context.Context, courseID, lecturerID int64, at time.Time) (course.Course, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	crs, ok := repo.db.courses[courseID]
	if !ok {
		return course.Course{}, course.ErrNotFound
	}
	if crs.HasLecturer() {
		return course.Course{}, course.ErrAlreadyAssigned
	}
	crs.LecturerID = lecturerID
	crs.UpdatedAt = at
	return *crs, nil
}

func (repo *courseRepository) UnassignLecturer(_ context.Context, courseID int64, at time.Time) (course.Course, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	crs, ok := repo.db.courses[courseID]
	if !ok {
		return course.Course{}, course.ErrNotFound
	}
	crs.LecturerID = 0
	crs.UpdatedAt = at
	return *crs, nil
}

func (repo *courseRepository) DeleteCourse(_ context.Context, id int64) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	delete(repo.db.courses, id)
	for sid, sched := range repo.db.schedules {
		if sched.CourseID == id {
			delete(repo.db.schedules, sid)
		}
	}
	return nil
}
