package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/remindme/core/course"
)

func (s *Server) registerCourseAPI(g *echo.Group, admin, lecturer []echo.MiddlewareFunc) {
	cg := g.Group("/courses", admin...)
	cg.GET("", s.queryCourses)
	cg.POST("", s.createCourse)

	dg := cg.Group("/:id", s.courseObjectMiddleware)
	dg.GET("", s.retrieveObject)
	dg.PUT("", s.updateCourse)
	dg.DELETE("", s.destroyCourse)
	dg.PUT("/lecturer", s.assignLecturer)
	dg.DELETE("/lecturer", s.unassignLecturer)

	lg := g.Group("/lecturer/courses", lecturer...)
	lg.GET("", s.queryLecturerCourses)
}

func (s *Server) courseObjectMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		id, err := pathID(ctx)
		if err != nil {
			return err
		}
		crs, err := s.CourseSvc.GetByID(ctx.Request().Context(), id)
		if err != nil {
			return errors.Wrap(err, "finding course by ID")
		}
		ctx.Set(contextObjectKey, crs)
		return next(ctx)
	}
}

func (s *Server) createCourse(ctx echo.Context) error {
	var data course.NewCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCourse")
	}
	if err := data.Validate(s.Validate); err != nil {
		return err
	}

	crs, err := s.CourseSvc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating course")
	}
	return ctx.JSON(http.StatusCreated, crs)
}

func (s *Server) queryCourses(ctx echo.Context) error {
	filter := new(course.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []course.Course{})
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	courses, err := s.CourseSvc.Query(ctx.Request().Context(), *filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}
	if courses == nil {
		courses = []course.Course{}
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (s *Server) updateCourse(ctx echo.Context) error {
	crs := ctx.Get(contextObjectKey).(course.Course)

	var data course.UpdateCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateCourse")
	}
	if err := data.Validate(s.Validate); err != nil {
		return err
	}

	crs, err := s.CourseSvc.Update(ctx.Request().Context(), crs.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating course")
	}
	return ctx.JSON(http.StatusOK, crs)
}

func (s *Server) destroyCourse(ctx echo.Context) error {
	crs := ctx.Get(contextObjectKey).(course.Course)
	if err := s.CourseSvc.Delete(ctx.Request().Context(), crs.ID); err != nil {
		return errors.Wrap(err, "deleting course")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (s *Server) assignLecturer(ctx echo.Context) error {
	crs := ctx.Get(contextObjectKey).(course.Course)

	var data course.AssignLecturer
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AssignLecturer")
	}
	if err := data.Validate(s.Validate); err != nil {
		return err
	}

	crs, err := s.CourseSvc.AssignLecturer(ctx.Request().Context(), crs.ID, data)
	if err != nil {
		return errors.Wrap(err, "assigning lecturer")
	}
	return ctx.JSON(http.StatusOK, crs)
}

func (s *Server) unassignLecturer(ctx echo.Context) error {
	crs := ctx.Get(contextObjectKey).(course.Course)
	crs, err := s.CourseSvc.UnassignLecturer(ctx.Request().Context(), crs.ID)
	if err != nil {
		return errors.Wrap(err, "unassigning lecturer")
	}
	return ctx.JSON(http.StatusOK, crs)
}

func (s *Server) queryLecturerCourses(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	courses, err := s.CourseSvc.ListForLecturer(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "listing lecturer courses")
	}
	return ctx.JSON(http.StatusOK, courses)
}
