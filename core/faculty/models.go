package faculty

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/remindme/core"
)

// DefaultMaxCoursesPerLecturer applies to departments created without an explicit limit.
const DefaultMaxCoursesPerLecturer = 5

type Faculty struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Department belongs to a Faculty and owns courses, lecturers and students.
type Department struct {
	ID                    int64     `json:"id"`
	Name                  string    `json:"name"`
	FacultyID             int64     `json:"faculty_id"`
	MaxCoursesPerLecturer int       `json:"max_courses_per_lecturer"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// DepartmentSummary is the public view of a Department.
type DepartmentSummary struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type NewFaculty struct {
	Name string `json:"name" validate:"required,max=255"`
}

func (nf *NewFaculty) Validate(validate *validator.Validate) error {
	nf.Name = core.CleanString(nf.Name)
	return validate.Struct(nf)
}

type UpdateFaculty = NewFaculty

type NewDepartment struct {
	Name                  string `json:"name" validate:"required,max=255"`
	FacultyID             int64  `json:"faculty_id" validate:"required,min=1"`
	MaxCoursesPerLecturer int    `json:"max_courses_per_lecturer" validate:"omitempty,min=1,max=5"`
}

func (nd *NewDepartment) Validate(validate *validator.Validate) error {
	nd.Name = core.CleanString(nd.Name)
	return validate.Struct(nd)
}

type UpdateDepartment struct {
	Name                  string `json:"name" validate:"omitempty,max=255"`
	FacultyID             int64  `json:"faculty_id" validate:"omitempty,min=1"`
	MaxCoursesPerLecturer int    `json:"max_courses_per_lecturer" validate:"omitempty,min=1,max=5"`
}

func (ud *UpdateDepartment) Validate(validate *validator.Validate) error {
	ud.Name = core.CleanString(ud.Name)
	return validate.Struct(ud)
}

type DepartmentFilter struct {
	FacultyID int64 `query:"faculty_id"`
}
