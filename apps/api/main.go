package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	echoapi "github.com/tutora/backend/apps/api/echo"
	"github.com/tutora/backend/core"
	"github.com/tutora/backend/core/attendance"
	"github.com/tutora/backend/core/class"
	"github.com/tutora/backend/core/dashboard"
	"github.com/tutora/backend/core/fee"
	"github.com/tutora/backend/core/recording"
	"github.com/tutora/backend/core/student"
	"github.com/tutora/backend/core/user"
	"github.com/tutora/backend/services/email"
	"github.com/tutora/backend/services/logger"
	"github.com/tutora/backend/services/metrics"
	"github.com/tutora/backend/storage/cache"
	"github.com/tutora/backend/storage/database"
	"github.com/tutora/backend/storage/database/inmem"
	sqlxrepos "github.com/tutora/backend/storage/database/sqlx"
)

// repositories groups the storage the services are built on.
type repositories struct {
	users      user.Repository
	students   student.Repository
	classes    class.Repository
	attendance attendance.Repository
	fees       fee.Repository
	recordings recording.Repository
	close      func() error
}

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)
	defer logger.Close()

	dbLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	dbLogger.Enable(!conf.Debug)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// set up DB
	repos, err := setUpStorage(ctx, conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = repos.close(); err != nil {
			dbLogger.Error("Failed to close", err)
		}
	}()

	stCache, err := setUpCache(ctx, conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up cache: %v", err), err)
	}

	// set up services
	m := metrics.New()
	mailSvc := emailsvc.NewService(conf, logger)
	usrSvc := user.NewService(repos.users, mailSvc, conf, logger)
	stSvc := student.NewService(repos.students, stCache, logger)
	clsSvc := class.NewService(repos.classes, stSvc, logger)
	attSvc := attendance.NewService(repos.attendance, clsSvc, attendance.NewEnricher(stSvc, clsSvc), logger)
	feeSvc := fee.NewService(repos.fees, clsSvc, stSvc, logger)
	recSvc := recording.NewService(repos.recordings, logger)
	dashSvc := dashboard.NewService(usrSvc, stSvc, clsSvc, attSvc, feeSvc, recSvc)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	attendance.InitValidators(validate, translator)
	fee.InitValidators(validate, translator)

	core.ParseEmailTemplates(conf, logger)

	user.LoadCommonPasswords(logger)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.
	// /metrics - Prometheus collectors.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	expvar.NewString("db").Set(conf.Database.Engine)
	http.DefaultServeMux.Handle("/metrics", m.Handler())

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start Jobs

	notifier := fee.NewNotifier(repos.fees, stSvc, usrSvc, mailSvc, conf.Jobs, logger, m.FeeRemindersSent)
	go notifier.Run(ctx)

	// =========================================================================
	// Start API Service

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	server := echoapi.NewServer(&echoapi.Options{
		Conf:          conf,
		Logger:        logger,
		Shutdown:      shutdown,
		Validate:      validate,
		Translator:    translator,
		Metrics:       m,
		UserSvc:       usrSvc,
		StudentSvc:    stSvc,
		ClassSvc:      clsSvc,
		AttendanceSvc: attSvc,
		FeeSvc:        feeSvc,
		RecordingSvc:  recSvc,
		DashboardSvc:  dashSvc,
	})

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info(fmt.Sprintf("API listening on %s", conf.Server.Address))
		serverErrors <- server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			logger.Error(fmt.Sprintf("server error: %v", err), err)
		}

	case sig := <-shutdown:
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))
		cancel() // stop the jobs

		// give outstanding requests a deadline for completion
		sctx, scancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer scancel()

		if err = server.Stop(sctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)
		}
	}
}

// setUpStorage returns the repositories of the configured engine: "inmem" or "postgres".
// PostgreSQL is provisioned and migrated on start.
func setUpStorage(ctx context.Context, conf *core.Config) (repositories, error) {
	if conf.Database.Engine == "inmem" {
		db := inmemdb.NewDB()
		return repositories{
			users:      inmemdb.NewUserRepository(db),
			students:   inmemdb.NewStudentRepository(db),
			classes:    inmemdb.NewClassRepository(db),
			attendance: inmemdb.NewAttendanceRepository(db),
			fees:       inmemdb.NewFeeRepository(db),
			recordings: inmemdb.NewRecordingRepository(db),
			close:      func() error { return nil },
		}, nil
	}

	if err := database.CreateIfNotExist(ctx, conf); err != nil {
		return repositories{}, err
	}
	db, err := database.Open(ctx, conf)
	if err != nil {
		return repositories{}, err
	}
	if err = database.Migrate(db.DB); err != nil {
		_ = db.Close()
		return repositories{}, err
	}
	return repositories{
		users:      sqlxrepos.NewUserRepository(db),
		students:   sqlxrepos.NewStudentRepository(db),
		classes:    sqlxrepos.NewClassRepository(db),
		attendance: sqlxrepos.NewAttendanceRepository(db),
		fees:       sqlxrepos.NewFeeRepository(db),
		recordings: sqlxrepos.NewRecordingRepository(db),
		close:      db.Close,
	}, nil
}

// setUpCache keeps student lookups in Redis when configured, in memory otherwise.
func setUpCache(ctx context.Context, conf *core.Config) (student.Cache, error) {
	if conf.Redis.Address == "" {
		return cache.NewMemoryStudentCache(conf.Redis.StudentCacheTTL, 0), nil
	}
	client, err := cache.NewRedisClient(ctx, conf.Redis)
	if err != nil {
		return nil, errors.Wrap(err, "connecting to redis")
	}
	return cache.NewRedisStudentCache(client, conf.Redis.StudentCacheTTL), nil
}
