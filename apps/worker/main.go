package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"

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
	sqlxrepos "github.com/trezcool/remindme/storage/database/sqlx"
)

// The worker consumes the shared redis queue: it sends the notifications of approved schedules.
func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()
	if conf.Queue.Driver != "redis" {
		log.Fatalf("worker needs the redis queue driver, got %q", conf.Queue.Driver)
	}

	zl, err := logsvc.NewZapLogger(conf)
	if err != nil {
		log.Fatal(err)
	}
	logger := logsvc.NewRollbarLogger(&logsvc.ZapLogger{Logger: zl.Named("worker")}, conf)
	defer logger.Close()

	ctx := context.Background()

	// set up DB
	db, err := setUpDB(ctx, conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = db.Close(); err != nil {
			logger.Error("Failed to close DB", err)
		}
	}()

	// set up queue
	client, err := queue.NewRedisClient(ctx, conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("connecting to redis: %v", err), err)
	}
	taskQueue := queue.NewRedisQueue(client, conf)
	defer func() {
		if err = taskQueue.Close(); err != nil {
			logger.Error("Failed to close task queue", err)
		}
	}()

	// set up services
	var mailSvc core.EmailService
	var sms core.SMSService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
		sms = smssvc.NewConsole(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
		sms = smssvc.NewGateway(conf)
	}
	usrSvc := user.NewService(sqlxrepos.NewUserRepository(db))
	facSvc := faculty.NewService(sqlxrepos.NewFacultyRepository(db), conf)
	crsSvc := course.NewService(sqlxrepos.NewCourseRepository(db), facSvc, usrSvc)
	dispatcher := schedule.NewDispatcher(
		sqlxrepos.NewScheduleRepository(db), crsSvc, usrSvc, facSvc, sms, mailSvc, logger,
	)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Worker initializing : version %q", conf.Build))
	defer logger.Info("Worker stopped")

	core.ParseTemplates(conf, logger)

	// =========================================================================
	// Start Debug Service

	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start Workers & Reaper

	pool := queue.NewPool(taskQueue, dispatcher.Process, conf.Queue.Workers, logger)
	pool.Start(ctx)

	reaper, err := queue.NewReaper(taskQueue, conf.Queue.ReapInterval, logger)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up reaper: %v", err), err)
	}
	reaper.Run() // requeue what a previous worker left behind
	reaper.Start()

	// =========================================================================
	// Shutdown

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	sig := <-shutdown
	logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

	<-reaper.Stop().Done()

	// give in-flight notifications a deadline for completion
	stopCtx, cancel := context.WithTimeout(ctx, conf.Server.ShutdownTimeout)
	defer cancel()
	if err = pool.Stop(stopCtx); err != nil {
		logger.Error("could not stop workers gracefully", err)
	}
}

func setUpDB(ctx context.Context, conf *core.Config) (*sqlx.DB, error) {
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
