package dig_container

import (
	"context"
	"log"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/remindme/apps/api/echo"
	"github.com/trezcool/remindme/core"
	"github.com/trezcool/remindme/core/course"
	"github.com/trezcool/remindme/core/faculty"
	"github.com/trezcool/remindme/core/schedule"
	"github.com/trezcool/remindme/core/user"
	emailsvc "github.com/trezcool/remindme/services/email"
	logsvc "github.com/trezcool/remindme/services/logger"
	"github.com/trezcool/remindme/services/queue"
	smssvc "github.com/trezcool/remindme/services/sms"
	"github.com/trezcool/remindme/storage/database"
	inmemdb "github.com/trezcool/remindme/storage/database/inmem"
	sqlxrepos "github.com/trezcool/remindme/storage/database/sqlx"
)

type (
	DBLoggerParam struct {
		dig.In
		Logger core.Logger `name:"dbLogger"`
	}

	// Repositories are backed by Postgres, or by the in-memory DB with the "memory" engine.
	Repositories struct {
		dig.Out
		Users     user.Repository
		Faculties faculty.Repository
		Courses   course.Repository
		Schedules schedule.Repository
	}

	ServerParams struct {
		dig.In
		Conf             *core.Config
		Logger           core.Logger
		Validate         *validator.Validate
		Translator       ut.Translator
		UserSvc          user.Service
		PasswordResetter *user.PasswordResetter
		FacultySvc       faculty.Service
		CourseSvc        course.Service
		ScheduleSvc      schedule.Service
	}
)

func newZapLogger(conf *core.Config) (*logsvc.ZapLogger, error) {
	return logsvc.NewZapLogger(conf)
}

func newLogger(conf *core.Config, zl *logsvc.ZapLogger) core.Logger {
	return logsvc.NewRollbarLogger(&logsvc.ZapLogger{Logger: zl.Named("api")}, conf)
}

func newDBLogger(conf *core.Config, zl *logsvc.ZapLogger) core.Logger {
	return logsvc.NewRollbarLogger(&logsvc.ZapLogger{Logger: zl.Named("db")}, conf)
}

// newDB connects to Postgres & migrates it; there is no *sqlx.DB with the "memory" engine.
func newDB(conf *core.Config, loggerParam DBLoggerParam) (*sqlx.DB, error) {
	if conf.Database.Engine == "memory" {
		return nil, nil
	}

	ctx := context.Background()
	setUp := func() (*sqlx.DB, error) {
		if err := database.CreateIfNotExist(ctx, conf); err != nil {
			return nil, err
		}

		db, err := database.Open(ctx, conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(ctx, db.DB); err != nil {
			_ = db.Close()
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Error("setting up database", err)
		return nil, errors.Wrap(err, "setting up database")
	}
	return db, nil
}

func newRepositories(db *sqlx.DB) Repositories {
	if db == nil {
		mem := inmemdb.Open()
		return Repositories{
			Users:     inmemdb.NewUserRepository(mem),
			Faculties: inmemdb.NewFacultyRepository(mem),
			Courses:   inmemdb.NewCourseRepository(mem),
			Schedules: inmemdb.NewScheduleRepository(mem),
		}
	}
	return Repositories{
		Users:     sqlxrepos.NewUserRepository(db),
		Faculties: sqlxrepos.NewFacultyRepository(db),
		Courses:   sqlxrepos.NewCourseRepository(db),
		Schedules: sqlxrepos.NewScheduleRepository(db),
	}
}

func newTaskQueue(conf *core.Config) (core.TaskQueue, error) {
	switch conf.Queue.Driver {
	case "memory":
		return queue.NewMemoryQueue(conf.Queue.Buffer), nil
	case "redis":
		client, err := queue.NewRedisClient(context.Background(), conf)
		if err != nil {
			return nil, err
		}
		return queue.NewRedisQueue(client, conf), nil
	default:
		return nil, errors.Errorf("unsupported queue driver %q", conf.Queue.Driver)
	}
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newSMSService(conf *core.Config, logger core.Logger) core.SMSService {
	if conf.Debug {
		return smssvc.NewConsole(conf, logger)
	}
	return smssvc.NewGateway(conf)
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

func newCourseService(repo course.Repository, facSvc faculty.Service, usrSvc user.Service) course.Service {
	return course.NewService(repo, facSvc, usrSvc)
}

func newScheduleService(
	repo schedule.Repository,
	crsSvc course.Service,
	taskQueue core.TaskQueue,
	validate *validator.Validate,
	logger core.Logger,
	conf *core.Config,
) schedule.Service {
	return schedule.NewService(repo, crsSvc, taskQueue, validate, logger, conf)
}

func newDispatcher(
	repo schedule.Repository,
	crsSvc course.Service,
	usrSvc user.Service,
	facSvc faculty.Service,
	sms core.SMSService,
	mailSvc core.EmailService,
	logger core.Logger,
) *schedule.Dispatcher {
	return schedule.NewDispatcher(repo, crsSvc, usrSvc, facSvc, sms, mailSvc, logger)
}

func newServer(p ServerParams) *echoapi.Server {
	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:             p.Conf,
		Logger:           p.Logger,
		Validate:         p.Validate,
		Translator:       p.Translator,
		UserSvc:          p.UserSvc,
		PasswordResetter: p.PasswordResetter,
		FacultySvc:       p.FacultySvc,
		CourseSvc:        p.CourseSvc,
		ScheduleSvc:      p.ScheduleSvc,
	})
}

// New returns a new dependency injection dig.Container
func New(newConfig func() *core.Config) *dig.Container {
	c := dig.New()

	must(c.Provide(newConfig))
	must(c.Provide(newZapLogger))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(newRepositories))
	must(c.Provide(newTaskQueue))
	must(c.Provide(newEmailService))
	must(c.Provide(newSMSService))
	must(c.Provide(validator.New))
	must(c.Provide(newTranslator))
	must(c.Provide(user.NewService))
	must(c.Provide(user.NewPasswordResetter))
	must(c.Provide(faculty.NewService))
	must(c.Provide(newCourseService))
	must(c.Provide(newScheduleService))
	must(c.Provide(newDispatcher))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
