package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/remindme/core/user"
)

// Stat is a dashboard counter.
type Stat struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
	Value int    `json:"value"`
}

func (s *Server) registerStatsAPI(g *echo.Group, admin []echo.MiddlewareFunc) {
	g.GET("/stats", s.stats, admin...)
}

func (s *Server) stats(ctx echo.Context) error {
	rctx := ctx.Request().Context()

	faculties, err := s.FacultySvc.CountFaculties(rctx)
	if err != nil {
		return errors.Wrap(err, "counting faculties")
	}
	departments, err := s.FacultySvc.CountDepartments(rctx)
	if err != nil {
		return errors.Wrap(err, "counting departments")
	}
	lecturers, err := s.UserSvc.Count(rctx, user.QueryFilter{Roles: []string{user.RoleLecturer}})
	if err != nil {
		return errors.Wrap(err, "counting lecturers")
	}
	students, err := s.UserSvc.Count(rctx, user.QueryFilter{Roles: []string{user.RoleStudent}})
	if err != nil {
		return errors.Wrap(err, "counting students")
	}

	return ctx.JSON(http.StatusOK, []Stat{
		{ID: 1, Title: "Faculties", Value: faculties},
		{ID: 2, Title: "Departments", Value: departments},
		{ID: 3, Title: "Lecturers", Value: lecturers},
		{ID: 4, Title: "Students", Value: students},
	})
}
