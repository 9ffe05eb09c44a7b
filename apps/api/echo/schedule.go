package echoapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/remindme/core"
	"github.com/trezcool/remindme/core/schedule"
)

// ScheduleQuery holds the raw query params of the admin schedule listing.
type ScheduleQuery struct {
	LecturerID   int64  `query:"lecturer_id"`
	CourseID     int64  `query:"course_id"`
	DepartmentID int64  `query:"department_id"`
	Approved     string `query:"approved"`
	DateFrom     string `query:"date_from"`
	DateTo       string `query:"date_to"`
}

func (sq ScheduleQuery) filter() (schedule.QueryFilter, error) {
	filter := schedule.QueryFilter{
		LecturerID:   sq.LecturerID,
		CourseID:     sq.CourseID,
		DepartmentID: sq.DepartmentID,
	}
	if sq.Approved != "" {
		approved, err := strconv.ParseBool(sq.Approved)
		if err != nil {
			return filter, core.NewValidationError(err, core.FieldError{Field: "approved", Error: "approved must be a boolean"})
		}
		filter.Approved = &approved
	}
	if sq.DateFrom != "" {
		d, err := schedule.ParseDate(sq.DateFrom)
		if err != nil {
			return filter, core.NewValidationError(err, core.FieldError{Field: "date_from", Error: "date_from must be a valid date (YYYY-MM-DD)"})
		}
		filter.DateFrom = d
	}
	if sq.DateTo != "" {
		d, err := schedule.ParseDate(sq.DateTo)
		if err != nil {
			return filter, core.NewValidationError(err, core.FieldError{Field: "date_to", Error: "date_to must be a valid date (YYYY-MM-DD)"})
		}
		filter.DateTo = d
	}
	return filter, nil
}

func (s *Server) registerScheduleAPI(g *echo.Group, admin, lecturer, student []echo.MiddlewareFunc) {
	ag := g.Group("/schedules", admin...)
	ag.GET("", s.queryAllSchedules)
	ag.PATCH("/:id/approve", s.approveSchedule)

	lg := g.Group("/lecturer/schedules", lecturer...)
	lg.GET("", s.queryLecturerSchedules)
	lg.POST("", s.createSchedule)
	lg.PUT("/:id", s.updateSchedule)
	lg.DELETE("/:id", s.destroySchedule)

	sg := g.Group("/student/schedules", student...)
	sg.GET("", s.queryStudentSchedules)
}

// Lecturer

func (s *Server) queryLecturerSchedules(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	details, err := s.ScheduleSvc.ListForLecturer(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "listing lecturer schedules")
	}
	if details == nil {
		details = []schedule.Detail{}
	}
	return ctx.JSON(http.StatusOK, details)
}

func (s *Server) createSchedule(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	var data schedule.NewSchedule
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSchedule")
	}

	sched, err := s.ScheduleSvc.Create(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "creating schedule")
	}
	return ctx.JSON(http.StatusCreated, sched)
}

func (s *Server) updateSchedule(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	var data schedule.UpdateSchedule
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateSchedule")
	}

	sched, err := s.ScheduleSvc.Update(ctx.Request().Context(), usr, id, data)
	if err != nil {
		return errors.Wrap(err, "updating schedule")
	}
	return ctx.JSON(http.StatusOK, sched)
}

func (s *Server) destroySchedule(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	if err := s.ScheduleSvc.Delete(ctx.Request().Context(), usr, id); err != nil {
		return errors.Wrap(err, "deleting schedule")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Admin

func (s *Server) queryAllSchedules(ctx echo.Context) error {
	var query ScheduleQuery
	if err := ctx.Bind(&query); err != nil {
		return ctx.JSON(http.StatusOK, []schedule.AdminView{})
	}
	filter, err := query.filter()
	if err != nil {
		return err
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	views, err := s.ScheduleSvc.ListAll(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "listing schedules")
	}
	return ctx.JSON(http.StatusOK, views)
}

func (s *Server) approveSchedule(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	id, err := pathID(ctx)
	if err != nil {
		return err
	}

	sched, err := s.ScheduleSvc.Approve(ctx.Request().Context(), usr, id)
	if err != nil {
		return errors.Wrap(err, "approving schedule")
	}
	return ctx.JSON(http.StatusOK, sched)
}

// Student

func (s *Server) queryStudentSchedules(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	events, err := s.ScheduleSvc.ListForStudent(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "listing student schedules")
	}
	return ctx.JSON(http.StatusOK, events)
}
