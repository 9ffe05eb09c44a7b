package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/remindme/core"
	"github.com/trezcool/remindme/core/user"
)

var (
	errAuthenticationFailed = core.NewError(core.KindUnauthorized, "invalid credentials")
	errAccountDeactivated   = core.NewError(core.KindForbidden, "account deactivated")
	errRefreshExpired       = core.NewError(core.KindForbidden, "refresh has expired")
	errHttpForbidden        = core.NewError(core.KindForbidden, "permission denied")
	errHttpNotFound         = core.NewError(core.KindNotFound, "not found")

	kindStatuses = map[core.ErrorKind]int{
		core.KindValidation:      http.StatusBadRequest,
		core.KindNotFound:        http.StatusNotFound,
		core.KindForbidden:       http.StatusForbidden,
		core.KindNotAssigned:     http.StatusForbidden,
		core.KindConflict:        http.StatusConflict,
		core.KindAlreadyApproved: http.StatusBadRequest,
		core.KindUnauthorized:    http.StatusUnauthorized,
		core.KindExternal:        http.StatusInternalServerError,
	}
)

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	Kind    core.ErrorKind    `json:"kind"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func httpErrorKind(code int) core.ErrorKind {
	switch {
	case code == http.StatusUnauthorized:
		return core.KindUnauthorized
	case code == http.StatusForbidden:
		return core.KindForbidden
	case code == http.StatusNotFound, code == http.StatusMethodNotAllowed:
		return core.KindNotFound
	case code >= http.StatusInternalServerError:
		return core.KindExternal
	default:
		return core.KindValidation
	}
}

func fieldErrors(flds []core.FieldError) map[string]string {
	if len(flds) == 0 {
		return nil
	}
	m := make(map[string]string, len(flds))
	for _, fErr := range flds {
		m[fErr.Field] = fErr.Error
	}
	return m
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var resp ErrorResponse

		var hErr *echo.HTTPError
		var vErr *core.ValidationError
		var fErrs validator.ValidationErrors
		switch origErr := errors.Cause(err); {
		case errors.As(origErr, &hErr):
			if hErr == middleware.ErrJWTMissing {
				hErr = echo.NewHTTPError(http.StatusUnauthorized, hErr.Message)
			} else if herr, ok := hErr.Internal.(*echo.HTTPError); ok {
				hErr = herr
			}
			code = hErr.Code
			resp.Kind = httpErrorKind(code)
			if msg, ok := hErr.Message.(string); ok {
				resp.Message = msg
			} else {
				resp.Message = http.StatusText(code)
			}
		case errors.As(origErr, &fErrs):
			vErr = core.TranslateValidationErrors(fErrs, translator)
			code = http.StatusBadRequest
			resp = ErrorResponse{Kind: core.KindValidation, Message: vErr.Error(), Fields: fieldErrors(vErr.Fields)}
		case errors.As(origErr, &vErr):
			code = http.StatusBadRequest
			resp = ErrorResponse{Kind: core.KindValidation, Message: vErr.Error(), Fields: fieldErrors(vErr.Fields)}
		default:
			resp.Kind = core.KindOf(origErr)
			code = kindStatuses[resp.Kind]
			resp.Message = origErr.Error()
		}

		if code >= http.StatusInternalServerError {
			msg := http.StatusText(http.StatusInternalServerError)
			resp.Message = msg

			usr, _ := ctx.Get(contextUserKey).(user.User)
			logger.Error(msg, errors.Wrap(err, msg), usr)

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
			if ctx.Echo().Debug {
				resp.Message = err.Error()
			}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, resp)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
