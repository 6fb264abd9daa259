package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/kat-co/vala"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/bytes"
	"github.com/labstack/gommon/log"
	"go.uber.org/zap"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/announcement"
	"github.com/trezcool/darasa/core/assignment"
	"github.com/trezcool/darasa/core/course"
	"github.com/trezcool/darasa/core/stats"
	"github.com/trezcool/darasa/core/submission"
	"github.com/trezcool/darasa/core/user"
	cachesvc "github.com/trezcool/darasa/services/cache"
)

type (
	ServerDeps struct {
		Conf       *core.Config
		Logger     core.Logger
		ReqLogger  *zap.Logger // nil disables request logs
		Metrics    *Metrics    // optional
		Validate   *validator.Validate
		Translator ut.Translator
		Blacklist  cachesvc.TokenBlacklist // defaults to an in-memory one
		Files      core.FileStorage

		UserSvc         *user.Service
		PasswordReset   *user.PasswordReset
		CourseSvc       *course.Service
		AssignmentSvc   *assignment.Service
		SubmissionSvc   *submission.Service
		AnnouncementSvc *announcement.Service
		StatsSvc        *stats.Service
	}

	Server struct {
		deps     ServerDeps
		app      *echo.Echo
		auth     *authenticator
		errors   chan error
		shutdown chan os.Signal
	}
)

func NewServer(deps ServerDeps) *Server {
	vala.BeginValidation().Validate(
		vala.IsNotNil(deps.Conf, "conf"),
		vala.IsNotNil(deps.Logger, "logger"),
		vala.IsNotNil(deps.Validate, "validate"),
		vala.IsNotNil(deps.Translator, "translator"),
		vala.IsNotNil(deps.Files, "files"),
		vala.IsNotNil(deps.UserSvc, "userSvc"),
		vala.IsNotNil(deps.PasswordReset, "passwordReset"),
		vala.IsNotNil(deps.CourseSvc, "courseSvc"),
		vala.IsNotNil(deps.AssignmentSvc, "assignmentSvc"),
		vala.IsNotNil(deps.SubmissionSvc, "submissionSvc"),
		vala.IsNotNil(deps.AnnouncementSvc, "announcementSvc"),
		vala.IsNotNil(deps.StatsSvc, "statsSvc"),
	).CheckAndPanic()
	if deps.Blacklist == nil {
		deps.Blacklist = cachesvc.NewMemoryBlacklist()
	}

	s := &Server{
		deps:     deps,
		app:      echo.New(),
		auth:     newAuthenticator(deps.Conf, deps.Blacklist),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Debug = conf.Debug
	s.app.Pre(middleware.RemoveTrailingSlash())
	if s.deps.ReqLogger != nil {
		s.app.Use(requestLogger(s.deps.ReqLogger))
	}
	if s.deps.Metrics != nil {
		s.app.Use(s.deps.Metrics.middleware())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	if conf.Server.MaxUploadSize > 0 {
		s.app.Use(middleware.BodyLimit(bytes.Format(conf.Server.MaxUploadSize)))
	}
	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)

	s.app.GET("/", s.home)

	api := s.app.Group("/api")
	jwt := s.auth.middleware()
	actor := actorMiddleware(s.deps.UserSvc)

	registerUserAPI(api, jwt, actor, &userApi{
		svc:      s.deps.UserSvc,
		reset:    s.deps.PasswordReset,
		logger:   s.deps.Logger,
		auth:     s.auth,
		files:    s.deps.Files,
		validate: s.deps.Validate,
		maxSize:  conf.Server.MaxUploadSize,
	})
	registerCourseAPI(api, jwt, actor, &courseApi{
		courses:       s.deps.CourseSvc,
		assignments:   s.deps.AssignmentSvc,
		announcements: s.deps.AnnouncementSvc,
		stats:         s.deps.StatsSvc,
		validate:      s.deps.Validate,
		metrics:       s.deps.Metrics,
	})
	registerAssignmentAPI(api, jwt, actor, &assignmentApi{
		assignments: s.deps.AssignmentSvc,
		submissions: s.deps.SubmissionSvc,
		files:       s.deps.Files,
		validate:    s.deps.Validate,
		metrics:     s.deps.Metrics,
		conf:        conf,
		logger:      s.deps.Logger,
	})
	registerSubmissionAPI(api, jwt, actor, &submissionApi{
		svc:      s.deps.SubmissionSvc,
		validate: s.deps.Validate,
		metrics:  s.deps.Metrics,
	})
	registerDashboardAPI(api, jwt, actor, &dashboardApi{
		courses:       s.deps.CourseSvc,
		assignments:   s.deps.AssignmentSvc,
		submissions:   s.deps.SubmissionSvc,
		announcements: s.deps.AnnouncementSvc,
		stats:         s.deps.StatsSvc,
	})
}

// Start listens on the configured host until the server is shut down.
// Listener failures are reported on Errors.
func (s *Server) Start() {
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	if err := s.app.Start(s.deps.Conf.Server.Host); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *Server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.deps.Conf.AppName+" API!")
}
