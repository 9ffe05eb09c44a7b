package course

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/remindme/core"
)

// Course belongs to a Department and is taught by at most one lecturer (LecturerID 0 means unassigned).
type Course struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	DepartmentID int64     `json:"department_id"`
	LecturerID   int64     `json:"lecturer_id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (c Course) HasLecturer() bool { return c.LecturerID != 0 }

// LecturerCourse is a course as listed to its lecturer.
type LecturerCourse struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	DepartmentID   int64  `json:"department_id"`
	DepartmentName string `json:"department_name"`
	StudentCount   int    `json:"student_count"`
}

type NewCourse struct {
	Name         string `json:"name" validate:"required,max=255"`
	DepartmentID int64  `json:"department_id" validate:"required,min=1"`
}

func (nc *NewCourse) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)
	return validate.Struct(nc)
}

type UpdateCourse struct {
	Name         string `json:"name" validate:"omitempty,max=255"`
	DepartmentID int64  `json:"department_id" validate:"omitempty,min=1"`
}

func (uc *UpdateCourse) Validate(validate *validator.Validate) error {
	uc.Name = core.CleanString(uc.Name)
	return validate.Struct(uc)
}

type AssignLecturer struct {
	LecturerID int64 `json:"lecturer_id" validate:"required,min=1"`
}

func (al *AssignLecturer) Validate(validate *validator.Validate) error {
	return validate.Struct(al)
}

type QueryFilter struct {
	Search       string `query:"search"`
	DepartmentID int64  `query:"department_id"`
	LecturerID   int64  `query:"lecturer_id"`
	Unassigned   bool   `query:"unassigned"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}
