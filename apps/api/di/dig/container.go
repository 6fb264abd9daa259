package dig_container

import (
	"context"
	"fmt"
	"log"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"
	"go.uber.org/zap"

	echoapi "github.com/trezcool/darasa/apps/api/echo"
	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/announcement"
	"github.com/trezcool/darasa/core/assignment"
	"github.com/trezcool/darasa/core/course"
	"github.com/trezcool/darasa/core/stats"
	"github.com/trezcool/darasa/core/submission"
	"github.com/trezcool/darasa/core/user"
	cachesvc "github.com/trezcool/darasa/services/cache"
	emailsvc "github.com/trezcool/darasa/services/email"
	logsvc "github.com/trezcool/darasa/services/logger"
	storagesvc "github.com/trezcool/darasa/services/storage"
	"github.com/trezcool/darasa/storage/database"
	inmemdb "github.com/trezcool/darasa/storage/database/inmem"
	sqlxrepos "github.com/trezcool/darasa/storage/database/sqlx"
)

// EngineInMemory selects the in-memory repositories instead of postgres.
const EngineInMemory = "inmem"

type (
	DBLoggerParam struct {
		dig.In
		Logger core.Logger `name:"dbLogger"`
	}

	// Repositories are provided together since they share one database handle.
	Repositories struct {
		dig.Out

		Users         user.Repository
		Courses       course.Repository
		Assignments   assignment.Repository
		Submissions   submission.Repository
		Announcements announcement.Repository
		Stats         stats.Repository
	}

	// Closer releases the database handle, if any.
	Closer func() error

	ServerParams struct {
		dig.In

		Conf       *core.Config
		Logger     core.Logger
		Zap        *zap.Logger
		Metrics    *echoapi.Metrics
		Validate   *validator.Validate
		Translator ut.Translator
		Blacklist  cachesvc.TokenBlacklist
		Files      core.FileStorage

		UserSvc         *user.Service
		PasswordReset   *user.PasswordReset
		CourseSvc       *course.Service
		AssignmentSvc   *assignment.Service
		SubmissionSvc   *submission.Service
		AnnouncementSvc *announcement.Service
		StatsSvc        *stats.Service
	}
)

func newRollbarLogger(conf *core.Config, zl *zap.Logger) *logsvc.RollbarLogger {
	return logsvc.NewRollbarLogger(zl.Named("api"), conf)
}

func newLogger(rl *logsvc.RollbarLogger) core.Logger {
	return rl
}

func newDBLogger(conf *core.Config, zl *zap.Logger) core.Logger {
	return logsvc.NewRollbarLogger(zl.Named("db"), conf)
}

func newDB(conf *core.Config, loggerParam DBLoggerParam) (*sqlx.DB, error) {
	if conf.Database.Engine == EngineInMemory {
		return nil, nil
	}
	setUp := func() (*sqlx.DB, error) {
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, err
		}
		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}
		if err = database.Migrate(db.DB, "up"); err != nil {
			_ = db.Close()
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Error(fmt.Sprintf("setting up database: %v", err), err)
		return nil, err
	}
	return db, nil
}

func newRepositories(db *sqlx.DB) Repositories {
	if db == nil {
		mem := inmemdb.Open()
		return Repositories{
			Users:         inmemdb.NewUserRepository(mem),
			Courses:       inmemdb.NewCourseRepository(mem),
			Assignments:   inmemdb.NewAssignmentRepository(mem),
			Submissions:   inmemdb.NewSubmissionRepository(mem),
			Announcements: inmemdb.NewAnnouncementRepository(mem),
			Stats:         inmemdb.NewStatsRepository(mem),
		}
	}
	return Repositories{
		Users:         sqlxrepos.NewUserRepository(db),
		Courses:       sqlxrepos.NewCourseRepository(db),
		Assignments:   sqlxrepos.NewAssignmentRepository(db),
		Submissions:   sqlxrepos.NewSubmissionRepository(db),
		Announcements: sqlxrepos.NewAnnouncementRepository(db),
		Stats:         sqlxrepos.NewStatsRepository(db),
	}
}

func newCloser(db *sqlx.DB) Closer {
	return func() error {
		if db == nil {
			return nil
		}
		return db.Close()
	}
}

func newFileStorage(conf *core.Config) (core.FileStorage, error) {
	return storagesvc.New(context.Background(), conf)
}

func newValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	return validate, translator
}

func newTokenGenerator(conf *core.Config) *user.TokenGenerator {
	return user.NewTokenGenerator(conf.SecretKey, conf.PasswordResetTimeoutDelta)
}

func newAssignmentService(repo assignment.Repository, courses course.Repository) *assignment.Service {
	return assignment.NewService(repo, courses)
}

func newSubmissionService(
	conf *core.Config,
	repo submission.Repository,
	assignments assignment.Repository,
	courses course.Repository,
	users user.Repository,
	files core.FileStorage,
	mailer core.EmailService,
	logger core.Logger,
) (*submission.Service, error) {
	policy, err := submission.ParseResubmitPolicy(conf.Submissions.ResubmitPolicy)
	if err != nil {
		return nil, errors.Wrap(err, "parsing resubmit policy")
	}
	return submission.NewService(repo, submission.Deps{
		Assignments: assignments,
		Courses:     courses,
		Users:       users,
		Files:       files,
		Mailer:      mailer,
		Logger:      logger,
	}, policy), nil
}

func newAnnouncementService(
	repo announcement.Repository,
	courses course.Repository,
	mailer core.EmailService,
	logger core.Logger,
) *announcement.Service {
	return announcement.NewService(repo, courses, mailer, logger)
}

func newStatsService(
	repo stats.Repository,
	courses course.Repository,
	assignments assignment.Repository,
	submissions submission.Repository,
	announcements announcement.Repository,
) *stats.Service {
	return stats.NewService(repo, courses, assignments, submissions, announcements)
}

func newServer(p ServerParams) *echoapi.Server {
	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:            p.Conf,
		Logger:          p.Logger,
		ReqLogger:       p.Zap.Named("http"),
		Metrics:         p.Metrics,
		Validate:        p.Validate,
		Translator:      p.Translator,
		Blacklist:       p.Blacklist,
		Files:           p.Files,
		UserSvc:         p.UserSvc,
		PasswordReset:   p.PasswordReset,
		CourseSvc:       p.CourseSvc,
		AssignmentSvc:   p.AssignmentSvc,
		SubmissionSvc:   p.SubmissionSvc,
		AnnouncementSvc: p.AnnouncementSvc,
		StatsSvc:        p.StatsSvc,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(logsvc.NewZap))
	must(c.Provide(newRollbarLogger))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(newRepositories))
	must(c.Provide(newCloser))
	must(c.Provide(emailsvc.New))
	must(c.Provide(newFileStorage))
	must(c.Provide(cachesvc.New))
	must(c.Provide(echoapi.NewMetrics))
	must(c.Provide(newValidator))
	must(c.Provide(user.NewService))
	must(c.Provide(newTokenGenerator))
	must(c.Provide(user.NewPasswordReset))
	must(c.Provide(course.NewService))
	must(c.Provide(newAssignmentService))
	must(c.Provide(newSubmissionService))
	must(c.Provide(newAnnouncementService))
	must(c.Provide(newStatsService))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
