package course_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/remindme/core"
	"github.com/trezcool/remindme/core/course"
	"github.com/trezcool/remindme/core/faculty"
	"github.com/trezcool/remindme/core/user"
	inmemdb "github.com/trezcool/remindme/storage/database/inmem"
	testutil "github.com/trezcool/remindme/tests"
)

type fixture struct {
	svc      course.Service
	repo     course.Repository
	usrRepo  user.Repository
	dept     faculty.Department
	other    faculty.Department
	lecturer user.User
}

func setup(t *testing.T, maxCourses int) fixture {
	t.Helper()
	db := inmemdb.Open()
	facRepo := inmemdb.NewFacultyRepository(db)
	usrRepo := inmemdb.NewUserRepository(db)
	crsRepo := inmemdb.NewCourseRepository(db)

	usrSvc := user.NewService(usrRepo)
	facSvc := faculty.NewService(facRepo, core.NewTestConfig())

	fac := testutil.CreateFaculty(t, facRepo, "Science")
	f := fixture{
		svc:     course.NewService(crsRepo, facSvc, usrSvc),
		repo:    crsRepo,
		usrRepo: usrRepo,
		dept:    testutil.CreateDepartment(t, facRepo, fac.ID, "Physics", maxCourses),
		other:   testutil.CreateDepartment(t, facRepo, fac.ID, "Chemistry", 0),
	}
	f.lecturer = testutil.CreateUser(t, usrRepo, user.User{
		Name:         "Ada",
		Email:        "ada@uni.test",
		DepartmentID: f.dept.ID,
		IsActive:     true,
		Roles:        []string{user.RoleLecturer},
	}, "")
	return f
}

func TestService_AssignLecturer(t *testing.T) {
	ctx := context.Background()
	f := setup(t, 1)

	student := testutil.CreateUser(t, f.usrRepo, user.User{Name: "Bob", DepartmentID: f.dept.ID, IsActive: true}, "")
	outsider := testutil.CreateUser(t, f.usrRepo, user.User{
		Name:         "Carl",
		DepartmentID: f.other.ID,
		IsActive:     true,
		Roles:        []string{user.RoleLecturer},
	}, "")

	mechanics := testutil.CreateCourse(t, f.repo, f.dept.ID, 0, "Mechanics")
	optics := testutil.CreateCourse(t, f.repo, f.dept.ID, 0, "Optics")

	tests := []struct {
		name       string
		courseID   int64
		lecturerID int64
		wantKind   core.ErrorKind
		wantErr    error
	}{
		{name: "unknown course", courseID: 999, lecturerID: f.lecturer.ID, wantErr: course.ErrNotFound},
		{name: "unknown lecturer", courseID: mechanics.ID, lecturerID: 999, wantKind: core.KindValidation},
		{name: "not a lecturer", courseID: mechanics.ID, lecturerID: student.ID, wantKind: core.KindValidation},
		{name: "other department", courseID: mechanics.ID, lecturerID: outsider.ID, wantErr: course.ErrDepartmentMismatch},
		{name: "ok", courseID: mechanics.ID, lecturerID: f.lecturer.ID},
		{name: "already assigned", courseID: mechanics.ID, lecturerID: f.lecturer.ID, wantErr: course.ErrAlreadyAssigned},
		{name: "at capacity", courseID: optics.ID, lecturerID: f.lecturer.ID, wantErr: course.ErrLecturerAtCapacity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			crs, err := f.svc.AssignLecturer(ctx, tt.courseID, course.AssignLecturer{LecturerID: tt.lecturerID})
			switch {
			case tt.wantErr != nil:
				assert.Equal(t, tt.wantErr, err)
			case tt.wantKind != "":
				assert.Equal(t, tt.wantKind, core.KindOf(err))
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.lecturerID, crs.LecturerID)
			}
		})
	}
}

func TestService_AssignLecturer_concurrentCapacity(t *testing.T) {
	ctx := context.Background()
	f := setup(t, 2)

	courses := make([]course.Course, 6)
	for i := range courses {
		courses[i] = testutil.CreateCourse(t, f.repo, f.dept.ID, 0, "Course "+string(rune('A'+i)))
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(courses))
	for _, crs := range courses {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			_, err := f.svc.AssignLecturer(ctx, id, course.AssignLecturer{LecturerID: f.lecturer.ID})
			errs <- err
		}(crs.ID)
	}
	wg.Wait()
	close(errs)

	var assigned, rejected int
	for err := range errs {
		if err == nil {
			assigned++
		} else if assert.Equal(t, course.ErrLecturerAtCapacity, err) {
			rejected++
		}
	}
	assert.Equal(t, 2, assigned)
	assert.Equal(t, 4, rejected)

	count, err := f.repo.CountCourses(ctx, course.QueryFilter{LecturerID: f.lecturer.ID})
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestService_Update_movingDropsLecturer(t *testing.T) {
	ctx := context.Background()
	f := setup(t, 0)

	crs := testutil.CreateCourse(t, f.repo, f.dept.ID, f.lecturer.ID, "Mechanics")

	_, err := f.svc.Update(ctx, crs.ID, course.UpdateCourse{DepartmentID: 999})
	assert.Equal(t, core.KindValidation, core.KindOf(err))

	crs, err = f.svc.Update(ctx, crs.ID, course.UpdateCourse{Name: "Statics"})
	require.NoError(t, err)
	assert.Equal(t, "Statics", crs.Name)
	assert.Equal(t, f.lecturer.ID, crs.LecturerID)

	crs, err = f.svc.Update(ctx, crs.ID, course.UpdateCourse{DepartmentID: f.other.ID})
	require.NoError(t, err)
	assert.Equal(t, f.other.ID, crs.DepartmentID)
	assert.False(t, crs.HasLecturer())
}

func TestService_ListForLecturer(t *testing.T) {
	ctx := context.Background()
	f := setup(t, 0)

	testutil.CreateCourse(t, f.repo, f.dept.ID, f.lecturer.ID, "Optics")
	testutil.CreateCourse(t, f.repo, f.dept.ID, f.lecturer.ID, "Mechanics")
	testutil.CreateCourse(t, f.repo, f.dept.ID, 0, "Relativity")
	for _, name := range []string{"ann", "bob"} {
		testutil.CreateUser(t, f.usrRepo, user.User{Name: name, DepartmentID: f.dept.ID, IsActive: true}, "")
	}
	testutil.CreateUser(t, f.usrRepo, user.User{Name: "cid", DepartmentID: f.other.ID, IsActive: true}, "")

	views, err := f.svc.ListForLecturer(ctx, f.lecturer)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, "Mechanics", views[0].Name)
	assert.Equal(t, "Optics", views[1].Name)
	for _, v := range views {
		assert.Equal(t, "Physics", v.DepartmentName)
		assert.Equal(t, 2, v.StudentCount)
	}
}
