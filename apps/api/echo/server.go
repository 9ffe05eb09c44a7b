package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/remindme/core"
	"github.com/trezcool/remindme/core/course"
	"github.com/trezcool/remindme/core/faculty"
	"github.com/trezcool/remindme/core/schedule"
	"github.com/trezcool/remindme/core/user"
)

type (
	ServerDeps struct {
		Conf       *core.Config
		Logger     core.Logger
		Validate   *validator.Validate
		Translator ut.Translator

		UserSvc          user.Service
		PasswordResetter *user.PasswordResetter
		FacultySvc       faculty.Service
		CourseSvc        course.Service
		ScheduleSvc      schedule.Service

		DisableReqLogs bool
	}

	Server struct {
		ServerDeps
		app      *echo.Echo
		errors   chan error
		shutdown chan os.Signal
	}
)

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		ServerDeps: deps,
		app:        echo.New(),
		errors:     make(chan error, 1),
		shutdown:   make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *Server) setup() {
	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(s.Conf.Debug || s.Conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.Logger, s.Translator, s.signalShutdown)
	s.app.Debug = s.Conf.Debug

	s.app.GET("/", s.home)

	v1 := s.app.Group("/v1")
	jwt := middleware.JWTWithConfig(newJWTConfig(s.Conf))
	authed := []echo.MiddlewareFunc{jwt, s.contextUserMiddleware}
	withRole := func(role string) []echo.MiddlewareFunc {
		return append(authed[:len(authed):len(authed)], roleMiddleware(role))
	}

	s.registerAuthAPI(v1, authed)
	s.registerFacultyAPI(v1, withRole(user.RoleAdmin))
	s.registerUserAPI(v1, withRole(user.RoleAdmin))
	s.registerCourseAPI(v1, withRole(user.RoleAdmin), withRole(user.RoleLecturer))
	s.registerScheduleAPI(v1, withRole(user.RoleAdmin), withRole(user.RoleLecturer), withRole(user.RoleStudent))
	s.registerStatsAPI(v1, withRole(user.RoleAdmin))
}

func (s *Server) Start() {
	s.errors <- s.app.Start(s.Conf.Server.Host)
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default: // already shutting down
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	signal.Stop(s.shutdown)
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *Server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.Conf.AppName+" API!")
}
