package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/remindme/core/faculty"
)

const contextObjectKey = "object"

func (s *Server) registerFacultyAPI(g *echo.Group, admin []echo.MiddlewareFunc) {
	fg := g.Group("/faculties", admin...)
	fg.GET("", s.queryFaculties)
	fg.POST("", s.createFaculty)

	fdg := fg.Group("/:id", s.facultyObjectMiddleware)
	fdg.GET("", s.retrieveObject)
	fdg.PUT("", s.updateFaculty)
	fdg.DELETE("", s.destroyFaculty)

	// un-authed endpoint, used by the student registration form
	g.GET("/departments/public", s.queryPublicDepartments)

	dg := g.Group("/departments", admin...)
	dg.GET("", s.queryDepartments)
	dg.POST("", s.createDepartment)

	ddg := dg.Group("/:id", s.departmentObjectMiddleware)
	ddg.GET("", s.retrieveObject)
	ddg.PUT("", s.updateDepartment)
	ddg.DELETE("", s.destroyDepartment)
}

// retrieveObject renders the object loaded by one of the *ObjectMiddleware.
func (s *Server) retrieveObject(ctx echo.Context) error {
	obj := ctx.Get(contextObjectKey)
	if obj == nil {
		return errHttpNotFound
	}
	return ctx.JSON(http.StatusOK, obj)
}

func (s *Server) facultyObjectMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		id, err := pathID(ctx)
		if err != nil {
			return err
		}
		fac, err := s.FacultySvc.GetFaculty(ctx.Request().Context(), id)
		if err != nil {
			return errors.Wrap(err, "finding faculty by ID")
		}
		ctx.Set(contextObjectKey, fac)
		return next(ctx)
	}
}

func (s *Server) departmentObjectMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		id, err := pathID(ctx)
		if err != nil {
			return err
		}
		dept, err := s.FacultySvc.GetDepartment(ctx.Request().Context(), id)
		if err != nil {
			return errors.Wrap(err, "finding department by ID")
		}
		ctx.Set(contextObjectKey, dept)
		return next(ctx)
	}
}

// Faculties

func (s *Server) createFaculty(ctx echo.Context) error {
	var data faculty.NewFaculty
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewFaculty")
	}
	if err := data.Validate(s.Validate); err != nil {
		return err
	}

	fac, err := s.FacultySvc.CreateFaculty(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating faculty")
	}
	return ctx.JSON(http.StatusCreated, fac)
}

func (s *Server) queryFaculties(ctx echo.Context) error {
	ordering := new(Ordering)
	ordering.Bind(ctx)

	facs, err := s.FacultySvc.QueryFaculties(ctx.Request().Context(), ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying faculties")
	}
	if facs == nil {
		facs = []faculty.Faculty{}
	}
	return ctx.JSON(http.StatusOK, facs)
}

func (s *Server) updateFaculty(ctx echo.Context) error {
	fac := ctx.Get(contextObjectKey).(faculty.Faculty)

	var data faculty.UpdateFaculty
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateFaculty")
	}
	if err := data.Validate(s.Validate); err != nil {
		return err
	}

	fac, err := s.FacultySvc.UpdateFaculty(ctx.Request().Context(), fac.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating faculty")
	}
	return ctx.JSON(http.StatusOK, fac)
}

func (s *Server) destroyFaculty(ctx echo.Context) error {
	fac := ctx.Get(contextObjectKey).(faculty.Faculty)
	if err := s.FacultySvc.DeleteFaculty(ctx.Request().Context(), fac.ID); err != nil {
		return errors.Wrap(err, "deleting faculty")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Departments

func (s *Server) createDepartment(ctx echo.Context) error {
	var data faculty.NewDepartment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewDepartment")
	}
	if err := data.Validate(s.Validate); err != nil {
		return err
	}

	dept, err := s.FacultySvc.CreateDepartment(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating department")
	}
	return ctx.JSON(http.StatusCreated, dept)
}

func (s *Server) queryDepartments(ctx echo.Context) error {
	filter := new(faculty.DepartmentFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []faculty.Department{})
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	depts, err := s.FacultySvc.QueryDepartments(ctx.Request().Context(), *filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying departments")
	}
	if depts == nil {
		depts = []faculty.Department{}
	}
	return ctx.JSON(http.StatusOK, depts)
}

func (s *Server) queryPublicDepartments(ctx echo.Context) error {
	summaries, err := s.FacultySvc.ListDepartmentSummaries(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing departments")
	}
	if summaries == nil {
		summaries = []faculty.DepartmentSummary{}
	}
	return ctx.JSON(http.StatusOK, summaries)
}

func (s *Server) updateDepartment(ctx echo.Context) error {
	dept := ctx.Get(contextObjectKey).(faculty.Department)

	var data faculty.UpdateDepartment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateDepartment")
	}
	if err := data.Validate(s.Validate); err != nil {
		return err
	}

	dept, err := s.FacultySvc.UpdateDepartment(ctx.Request().Context(), dept.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating department")
	}
	return ctx.JSON(http.StatusOK, dept)
}

func (s *Server) destroyDepartment(ctx echo.Context) error {
	dept := ctx.Get(contextObjectKey).(faculty.Department)
	if err := s.FacultySvc.DeleteDepartment(ctx.Request().Context(), dept.ID); err != nil {
		return errors.Wrap(err, "deleting department")
	}
	return ctx.NoContent(http.StatusNoContent)
}
