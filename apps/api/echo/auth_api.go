package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/remindme/core"
	"github.com/trezcool/remindme/core/faculty"
	"github.com/trezcool/remindme/core/user"
)

type (
	LoginRequest struct {
		Login    string `json:"login" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Token string    `json:"token"`
		User  user.User `json:"user"`
	}

	TokenResponse struct {
		Token string `json:"token"`
	}

	// RegisterStudent is the student self-registration payload.
	RegisterStudent struct {
		Name            string `json:"name"`
		Email           string `json:"email"`
		Phone           string `json:"phone"`
		StudentNumber   string `json:"student_id"`
		DepartmentID    int64  `json:"department_id"`
		Password        string `json:"password"`
		PasswordConfirm string `json:"password_confirmation"`
	}

	PasswordResetRequest struct {
		Email string `json:"email" validate:"required,email"`
	}

	// UpdateProfile is what users may change on their own account.
	UpdateProfile struct {
		Name            string `json:"name"`
		Email           string `json:"email"`
		Password        string `json:"password"`
		PasswordConfirm string `json:"password_confirmation"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Login = core.CleanString(lr.Login, true /* lower */)
	return validate.Struct(lr)
}

func (pr *PasswordResetRequest) Validate(validate *validator.Validate) error {
	pr.Email = core.CleanString(pr.Email, true /* lower */)
	return validate.Struct(pr)
}

func (rs RegisterStudent) newUser() user.NewUser {
	return user.NewUser{
		Name:            rs.Name,
		Email:           rs.Email,
		Phone:           rs.Phone,
		StudentNumber:   rs.StudentNumber,
		DepartmentID:    rs.DepartmentID,
		Password:        rs.Password,
		PasswordConfirm: rs.PasswordConfirm,
		Role:            user.RoleStudent,
	}
}

func (up UpdateProfile) updateUser() user.UpdateUser {
	return user.UpdateUser{
		Name:            up.Name,
		Email:           up.Email,
		Password:        up.Password,
		PasswordConfirm: up.PasswordConfirm,
	}
}

func (s *Server) registerAuthAPI(g *echo.Group, authed []echo.MiddlewareFunc) {
	ag := g.Group("/auth")

	// un-authed endpoints
	// TODO: rate limit `/login` & `/password-reset`
	ag.POST("/login", s.login)
	ag.POST("/register", s.register)
	ag.POST("/password-reset", s.resetPassword)
	ag.POST("/password-reset-confirm", s.confirmPasswordReset)

	// authed endpoints
	ag.POST("/token-refresh", s.refreshTokenHandler, authed...)
	ag.POST("/logout", s.logout, authed...)
	ag.GET("/me", s.getProfile, authed...)
	ag.PUT("/me", s.updateProfile, authed...)
}

func (s *Server) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(s.Validate); err != nil {
		return err
	}

	usr, err := s.authenticate(ctx, data.Login, data.Password)
	if err != nil {
		return err
	}
	token, err := GenerateToken(GetUserClaims(usr, s.Conf), s.Conf)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token, User: usr})
}

// checkDepartment reports a missing department as a validation error on department_id.
func (s *Server) checkDepartment(ctx echo.Context, id int64) error {
	if id == 0 {
		return nil
	}
	if _, err := s.FacultySvc.GetDepartment(ctx.Request().Context(), id); err != nil {
		if errors.Cause(err) == faculty.ErrDepartmentNotFound {
			return core.NewValidationError(err, core.FieldError{Field: "department_id", Error: err.Error()})
		}
		return errors.Wrap(err, "getting department")
	}
	return nil
}

func (s *Server) register(ctx echo.Context) error {
	var data RegisterStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RegisterStudent")
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
		return errors.Wrap(err, "creating student")
	}
	token, err := GenerateToken(GetUserClaims(usr, s.Conf), s.Conf)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusCreated, LoginResponse{Token: token, User: usr})
}

func (s *Server) refreshTokenHandler(ctx echo.Context) error {
	token, err := s.refreshToken(ctx)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	return ctx.JSON(http.StatusOK, TokenResponse{Token: token})
}

// logout is stateless: clients drop their token.
func (s *Server) logout(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Logged out"})
}

func (s *Server) getProfile(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, usr)
}

// updateProfile lets any user change their name, email or password.
func (s *Server) updateProfile(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}

	var data UpdateProfile
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateProfile")
	}
	uu := data.updateUser()
	if err := uu.Validate(ctx.Request().Context(), usr, s.Validate, s.UserSvc); err != nil {
		return err
	}

	usr, err = s.UserSvc.Update(ctx.Request().Context(), usr.ID, uu)
	if err != nil {
		return errors.Wrap(err, "updating profile")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (s *Server) resetPassword(ctx echo.Context) error {
	var data PasswordResetRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PasswordResetRequest")
	}
	if err := data.Validate(s.Validate); err != nil {
		return err
	}

	if err := s.PasswordResetter.RequestReset(ctx.Request().Context(), data.Email); !(err == nil || errors.Cause(err) == user.ErrNotFound) {
		// do not return errors to attackers
		s.Logger.Error("requesting password reset", errors.Wrap(err, "requesting password reset"))
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{
		Success: "If the email address supplied is associated with an active account on this system, " +
			"an email will arrive in your inbox shortly with instructions to reset your password.",
	})
}

func (s *Server) confirmPasswordReset(ctx echo.Context) error {
	var data user.ResetUserPassword
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ResetUserPassword")
	}
	if err := data.Validate(s.Validate); err != nil {
		return err
	}

	if _, err := s.PasswordResetter.Reset(ctx.Request().Context(), data); err != nil {
		return errors.Wrap(err, "resetting password")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Password has been reset with the new password."})
}
