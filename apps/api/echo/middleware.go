package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/remindme/core"
	"github.com/trezcool/remindme/core/user"
)

// contextUserMiddleware loads the user the JWT was issued to; deactivated accounts are rejected.
func (s *Server) contextUserMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		claims, err := getContextClaims(ctx)
		if err != nil {
			return err
		}
		id, err := claims.UserID()
		if err != nil {
			return core.NewError(core.KindUnauthorized, "invalid token subject")
		}
		usr, err := s.UserSvc.GetByID(ctx.Request().Context(), id)
		if err != nil {
			if errors.Cause(err) == user.ErrNotFound {
				return core.NewError(core.KindUnauthorized, "user not found")
			}
			return errors.Wrap(err, "finding user by ID")
		}
		if !usr.IsActive {
			return errAccountDeactivated
		}
		ctx.Set(contextUserKey, usr)
		return next(ctx)
	}
}

// roleMiddleware only lets users having role through.
func roleMiddleware(role string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextUser(ctx)
			if err != nil {
				return err
			}
			if usr.HasRole(role) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}
