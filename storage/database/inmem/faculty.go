package inmemdb

import (
	"cmp"
	"context"
	"strings"

	"github.com/trezcool/remindme/core"
	"github.com/trezcool/remindme/core/faculty"
)

var (
	facultyFields = map[string]comparator[faculty.Faculty]{
		"id":         func(a, b faculty.Faculty) int { return cmp.Compare(a.ID, b.ID) },
		"name":       func(a, b faculty.Faculty) int { return strings.Compare(a.Name, b.Name) },
		"created_at": func(a, b faculty.Faculty) int { return a.CreatedAt.Compare(b.CreatedAt) },
	}
	departmentFields = map[string]comparator[faculty.Department]{
		"id":         func(a, b faculty.Department) int { return cmp.Compare(a.ID, b.ID) },
		"name":       func(a, b faculty.Department) int { return strings.Compare(a.Name, b.Name) },
		"faculty_id": func(a, b faculty.Department) int { return cmp.Compare(a.FacultyID, b.FacultyID) },
		"created_at": func(a, b faculty.Department) int { return a.CreatedAt.Compare(b.CreatedAt) },
	}
)

type facultyRepository struct {
	db *DB
}

var _ faculty.Repository = (*facultyRepository)(nil) // interface compliance check

func NewFacultyRepository(db *DB) faculty.Repository {
	return &facultyRepository{db: db}
}

func (repo *facultyRepository) CreateFaculty(_ context.Context, fac faculty.Faculty) (faculty.Faculty, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	fac.ID = repo.db.nextID("faculties")
	repo.db.faculties[fac.ID] = &fac
	return fac, nil
}

func (repo *facultyRepository) GetFaculty(_ context.Context, id int64) (faculty.Faculty, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if fac, ok := repo.db.faculties[id]; ok {
		return *fac, nil
	}
	return faculty.Faculty{}, faculty.ErrFacultyNotFound
}

func (repo *facultyRepository) QueryFaculties(_ context.Context, ordering []core.DBOrdering) ([]faculty.Faculty, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	facs := values(repo.db.faculties)
	sortRows(facs, ordering, facultyFields, func(f faculty.Faculty) int64 { return f.ID })
	return facs, nil
}

func (repo *facultyRepository) FacultyNameExists(_ context.Context, name string, excludeID int64) (bool, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, fac := range repo.db.faculties {
		if fac.ID != excludeID && strings.EqualFold(fac.Name, name) {
			return true, nil
		}
	}
	return false, nil
}

func (repo *facultyRepository) UpdateFaculty(_ context.Context, fac faculty.Faculty) (faculty.Faculty, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.faculties[fac.ID]; !ok {
		return faculty.Faculty{}, faculty.ErrFacultyNotFound
	}
	repo.db.faculties[fac.ID] = &fac
	return fac, nil
}

func (repo *facultyRepository) DeleteFaculty(_ context.Context, id int64) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	delete(repo.db.faculties, id)
	return nil
}

func (repo *facultyRepository) CountFaculties(_ context.Context) (int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return len(repo.db.faculties), nil
}

func (repo *facultyRepository) CreateDepartment(_ context.Context, dept faculty.Department) (faculty.Department, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	dept.ID = repo.db.nextID("departments")
	repo.db.departments[dept.ID] = &dept
	return dept, nil
}

func (repo *facultyRepository) GetDepartment(_ context.Context, id int64) (faculty.Department, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if dept, ok := repo.db.departments[id]; ok {
		return *dept, nil
	}
	return faculty.Department{}, faculty.ErrDepartmentNotFound
}

func (repo *facultyRepository) queryDepartments(filter faculty.DepartmentFilter) []faculty.Department {
	depts := make([]faculty.Department, 0)
	for _, dept := range repo.db.departments {
		if filter.FacultyID == 0 || dept.FacultyID == filter.FacultyID {
			depts = append(depts, *dept)
		}
	}
	return depts
}

func (repo *facultyRepository) QueryDepartments(_ context.Context, filter faculty.DepartmentFilter, ordering []core.DBOrdering) ([]faculty.Department, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	depts := repo.queryDepartments(filter)
	sortRows(depts, ordering, departmentFields, func(d faculty.Department) int64 { return d.ID })
	return depts, nil
}

func (repo *facultyRepository) UpdateDepartment(_ context.Context, dept faculty.Department) (faculty.Department, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.departments[dept.ID]; !ok {
		return faculty.Department{}, faculty.ErrDepartmentNotFound
	}
	repo.db.departments[dept.ID] = &dept
	return dept, nil
}

func (repo *facultyRepository) DeleteDepartment(_ context.Context, id int64) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	delete(repo.db.departments, id)
	// mirror the FKs: users are detached, courses & their schedules go
	for _, usr := range repo.db.users {
		if usr.DepartmentID == id {
			usr.DepartmentID = 0
		}
	}
	for cid, crs := range repo.db.courses {
		if crs.DepartmentID != id {
			continue
		}
		delete(repo.db.courses, cid)
		for sid, sched := range repo.db.schedules {
			if sched.CourseID == cid {
				delete(repo.db.schedules, sid)
			}
		}
	}
	return nil
}

func (repo *facultyRepository) CountDepartments(_ context.Context, filter faculty.DepartmentFilter) (int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return len(repo.queryDepartments(filter)), nil
}
