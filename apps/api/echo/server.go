package echoapi

import (
	"context"
	"net/http"
	"os"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/tutora/backend/core"
	"github.com/tutora/backend/core/attendance"
	"github.com/tutora/backend/core/class"
	"github.com/tutora/backend/core/dashboard"
	"github.com/tutora/backend/core/fee"
	"github.com/tutora/backend/core/recording"
	"github.com/tutora/backend/core/student"
	"github.com/tutora/backend/core/user"
	"github.com/tutora/backend/services/metrics"
)

type (
	Options struct {
		Conf       *core.Config
		Logger     core.Logger
		Shutdown   chan os.Signal
		Validate   *validator.Validate
		Translator ut.Translator
		Metrics    *metrics.Metrics // optional

		UserSvc       user.Service
		StudentSvc    student.Service
		ClassSvc      class.Service
		AttendanceSvc attendance.Service
		FeeSvc        fee.Service
		RecordingSvc  recording.Service
		DashboardSvc  *dashboard.Service
	}

	Server interface {
		http.Handler
		Start() error
		Stop(context.Context) error
	}

	server struct {
		opts *Options
		app  *echo.Echo
	}
)

var _ Server = (*server)(nil)

func NewServer(opts *Options) Server {
	s := &server{
		opts: opts,
		app:  echo.New(),
	}
	s.setup()
	return s
}

func (s *server) setup() {
	conf := s.opts.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.Server.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	if s.opts.Metrics != nil {
		s.app.Use(s.opts.Metrics.Middleware())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	if len(conf.Server.AllowedOrigins) > 0 {
		s.app.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: conf.Server.AllowedOrigins,
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.opts.Logger, s.opts.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", s.home)

	v1 := s.app.Group("/v1")
	auth := newAuthenticator(conf, s.opts.UserSvc)
	jwt := middleware.JWTWithConfig(auth.jwtConfig())
	acc := &access{
		students: s.opts.StudentSvc,
		classes:  s.opts.ClassSvc,
	}

	registerUserAPI(v1, jwt, auth, s.opts.UserSvc, s.opts.Validate)
	registerStudentAPI(v1, jwt, acc, s.opts.StudentSvc, s.opts.AttendanceSvc, s.opts.FeeSvc, s.opts.Validate)
	registerClassAPI(v1, jwt, acc, s.opts.ClassSvc, s.opts.Validate)
	registerAttendanceAPI(v1, jwt, acc, s.opts.AttendanceSvc, s.opts.Validate)
	registerFeeAPI(v1, jwt, acc, s.opts.FeeSvc, s.opts.Validate)
	registerRecordingAPI(v1, jwt, acc, s.opts.RecordingSvc, s.opts.Validate)
	registerPortalAPI(v1, jwt, acc, s.opts.AttendanceSvc, s.opts.FeeSvc, s.opts.RecordingSvc)
	registerDashboardAPI(v1, jwt, s.opts.DashboardSvc)
}

func (s *server) Start() error {
	return s.app.Start(s.opts.Conf.Server.Address)
}

func (s *server) Stop(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *server) signalShutdown() {
	if s.opts.Shutdown == nil {
		return
	}
	select {
	case s.opts.Shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.opts.Conf.AppName+" API!")
}
