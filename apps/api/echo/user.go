package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/remindme/core/user"
)

// NewLecturer is the admin payload to create a lecturer account.
type NewLecturer struct {
	Name            string `json:"name"`
	Username        string `json:"username"`
	Email           string `json:"email"`
	Phone           string `json:"phone"`
	DepartmentID    int64  `json:"department_id"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirmation"`
}

func (nl NewLecturer) newUser() user.NewUser {
	return user.NewUser{
		Name:            nl.Name,
		Username:        nl.Username,
		Email:           nl.Email,
		Phone:           nl.Phone,
		DepartmentID:    nl.DepartmentID,
		Password:        nl.Password,
		PasswordConfirm: nl.PasswordConfirm,
		Role:            user.RoleLecturer,
	}
}

func (s *Server) registerUserAPI(g *echo.Group, admin []echo.MiddlewareFunc) {
	lg := g.Group("/lecturers", admin...)
	lg.GET("", s.queryUsers(user.RoleLecturer))
	lg.POST("", s.createLecturer)

	ldg := lg.Group("/:id", s.userObjectMiddleware(user.RoleLecturer))
	ldg.GET("", s.retrieveObject)
	ldg.PUT("", s.updateUser)
	ldg.DELETE("", s.destroyUser)

	sg := g.Group("/students", admin...)
	sg.GET("", s.queryUsers(user.RoleStudent))

	sdg := sg.Group("/:id", s.userObjectMiddleware(user.RoleStudent))
	sdg.GET("", s.retrieveObject)
	sdg.DELETE("", s.destroyUser)
}

// userObjectMiddleware loads the user with the path ID; users without role are not found.
func (s *Server) userObjectMiddleware(role string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			id, err := pathID(ctx)
			if err != nil {
				return err
			}
			usr, err := s.UserSvc.GetByID(ctx.Request().Context(), id)
			if err != nil {
				return errors.Wrap(err, "finding user by ID")
			}
			if !usr.HasRole(role) {
				return errHttpNotFound
			}
			ctx.Set(contextObjectKey, usr)
			return next(ctx)
		}
	}
}

func (s *Server) createLecturer(ctx echo.Context) error {
	var data NewLecturer
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewLecturer")
	}
	nu := data.newUser()
	if err := nu.Validate(ctx.Request().Context(), s.Validate, s.UserSvc); err != nil {
		return err
	}
	if err := s.checkDepartment(ctx, nu.DepartmentID); err != nil {
		return err
	}

	usr, err := s.UserSvc.Create(ctx.Request().Context(), nu)
	if err != nil {
		return errors.Wrap(err, "creating lecturer")
	}
	return ctx.JSON(http.StatusCreated, usr)
}

func (s *Server) queryUsers(role string) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		filter := new(user.QueryFilter)
		if err := ctx.Bind(filter); err != nil {
			return ctx.JSON(http.StatusOK, []user.User{})
		}
		filter.Roles = []string{role}
		ordering := new(Ordering)
		ordering.Bind(ctx)

		users, err := s.UserSvc.Query(ctx.Request().Context(), *filter, ordering.Orderings)
		if err != nil {
			return errors.Wrap(err, "querying users")
		}
		if users == nil {
			users = []user.User{}
		}
		return ctx.JSON(http.StatusOK, users)
	}
}

func (s *Server) updateUser(ctx echo.Context) error {
	usr := ctx.Get(contextObjectKey).(user.User)

	var data user.UpdateUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateUser")
	}
	if err := data.Validate(ctx.Request().Context(), usr, s.Validate, s.UserSvc); err != nil {
		return err
	}
	if data.DepartmentID != usr.DepartmentID {
		if err := s.checkDepartment(ctx, data.DepartmentID); err != nil {
			return err
		}
	}

	usr, err := s.UserSvc.Update(ctx.Request().Context(), usr.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating user")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (s *Server) destroyUser(ctx echo.Context) error {
	usr := ctx.Get(contextObjectKey).(user.User)
	if err := s.UserSvc.Delete(ctx.Request().Context(), usr.ID); err != nil {
		return errors.Wrap(err, "deleting user")
	}
	return ctx.NoContent(http.StatusNoContent)
}
