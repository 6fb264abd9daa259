// Package testutil builds fixtures shared by the tests of every layer.
package testutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/announcement"
	"github.com/trezcool/darasa/core/assignment"
	"github.com/trezcool/darasa/core/authz"
	"github.com/trezcool/darasa/core/course"
	"github.com/trezcool/darasa/core/stats"
	"github.com/trezcool/darasa/core/submission"
	"github.com/trezcool/darasa/core/user"
	emailsvc "github.com/trezcool/darasa/services/email"
	logsvc "github.com/trezcool/darasa/services/logger"
	storagesvc "github.com/trezcool/darasa/services/storage"
	"github.com/trezcool/darasa/storage/database"
	inmemdb "github.com/trezcool/darasa/storage/database/inmem"
)

// NewConfig returns the configuration tests run with.
func NewConfig() *core.Config {
	conf := core.NewConfig()
	conf.Debug = false
	conf.TestMode = true
	conf.SecretKey = "test-secret-key"
	conf.Server.JWTExpirationDelta = time.Hour
	conf.Server.JWTRefreshExpirationDelta = 30 * time.Minute
	conf.Server.MaxUploadSize = 1 << 20
	conf.Redis.Addr = ""
	return conf
}

// NewLogger logs warnings and errors through t.
func NewLogger(t *testing.T) core.Logger {
	return logsvc.NewLocalLogger(zaptest.NewLogger(t, zaptest.Level(zap.WarnLevel)))
}

// NewValidator returns a validator with every custom rule and translation registered.
func NewValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	return validate, translator
}

// NewFileStorage opens a bolt blob store in a temporary directory removed with the test.
func NewFileStorage(t *testing.T) core.FileStorage {
	bolt, err := storagesvc.OpenBolt(filepath.Join(t.TempDir(), "blobs.db"))
	if err != nil {
		t.Fatalf("OpenBolt(): %v", err)
	}
	t.Cleanup(func() { _ = bolt.Close() })
	return bolt
}

// Env is an in-memory database along with every repository and service built on top of it.
type Env struct {
	Conf       *core.Config
	Logger     core.Logger
	Validate   *validator.Validate
	Translator ut.Translator
	Mailer     *emailsvc.ConsoleServiceMock
	Files      core.FileStorage

	DB               *inmemdb.DB
	UserRepo         user.Repository
	CourseRepo       course.Repository
	AssignmentRepo   assignment.Repository
	SubmissionRepo   submission.Repository
	AnnouncementRepo announcement.Repository
	StatsRepo        stats.Repository

	UserSvc         *user.Service
	PasswordReset   *user.PasswordReset
	CourseSvc       *course.Service
	AssignmentSvc   *assignment.Service
	SubmissionSvc   *submission.Service
	AnnouncementSvc *announcement.Service
	StatsSvc        *stats.Service
}

// NewEnv builds an Env. The resubmit policy defaults to reject.
func NewEnv(t *testing.T, policy ...submission.ResubmitPolicy) *Env {
	conf := NewConfig()
	logger := NewLogger(t)
	if err := core.ParseEmailTemplates(conf); err != nil {
		t.Fatalf("parsing email templates: %v", err)
	}
	validate, translator := NewValidator()

	env := &Env{
		Conf:       conf,
		Logger:     logger,
		Validate:   validate,
		Translator: translator,
		Mailer:     emailsvc.NewConsoleServiceMock(conf, logger),
		Files:      NewFileStorage(t),
		DB:         inmemdb.Open(),
	}
	env.UserRepo = inmemdb.NewUserRepository(env.DB)
	env.CourseRepo = inmemdb.NewCourseRepository(env.DB)
	env.AssignmentRepo = inmemdb.NewAssignmentRepository(env.DB)
	env.SubmissionRepo = inmemdb.NewSubmissionRepository(env.DB)
	env.AnnouncementRepo = inmemdb.NewAnnouncementRepository(env.DB)
	env.StatsRepo = inmemdb.NewStatsRepository(env.DB)

	var p submission.ResubmitPolicy
	if len(policy) > 0 {
		p = policy[0]
	}
	env.UserSvc = user.NewService(env.UserRepo)
	env.PasswordReset = user.NewPasswordReset(
		env.UserRepo,
		user.NewTokenGenerator(conf.SecretKey, conf.PasswordResetTimeoutDelta),
		env.Mailer,
		logger,
	)
	env.CourseSvc = course.NewService(env.CourseRepo)
	env.AssignmentSvc = assignment.NewService(env.AssignmentRepo, env.CourseRepo)
	env.SubmissionSvc = submission.NewService(env.SubmissionRepo, submission.Deps{
		Assignments: env.AssignmentRepo,
		Courses:     env.CourseRepo,
		Users:       env.UserRepo,
		Files:       env.Files,
		Mailer:      env.Mailer,
		Logger:      logger,
	}, p)
	env.AnnouncementSvc = announcement.NewService(env.AnnouncementRepo, env.CourseRepo, env.Mailer, logger)
	env.StatsSvc = stats.NewService(env.StatsRepo, env.CourseRepo, env.AssignmentRepo, env.SubmissionRepo, env.AnnouncementRepo)
	return env
}

// Reset empties the database and forgets the sent emails.
func (env *Env) Reset() {
	env.DB.Reset()
	env.Mailer.Reset()
}

// PrepareDB opens the postgres database at TEST_DATABASE_URL, migrates it and empties it.
// The test is skipped when the variable is unset.
func PrepareDB(t *testing.T) *sqlx.DB {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	db, err := database.OpenURL(dsn)
	if err != nil {
		t.Fatalf("OpenURL(): %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err = database.Migrate(db.DB, "up"); err != nil {
		t.Fatalf("Migrate(): %v", err)
	}
	ResetDB(t, db)
	return db
}

func ResetDB(t *testing.T, db *sqlx.DB) {
	const stmt = "TRUNCATE users, profiles, courses, enrollments, assignments, submissions, announcements CASCADE"
	if _, err := db.Exec(stmt); err != nil {
		t.Fatalf("ResetDB(): %v", err)
	}
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	role user.Role,
	isActive bool,
	createdAt ...time.Time,
) user.Me {
	tstamp := core.Now()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC().Truncate(time.Microsecond)
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	usr.SetActive(isActive)
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser(): %v", err)
		}
	}
	usr, profile, err := repo.CreateUser(context.Background(), usr, user.Profile{
		Role:      role,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	})
	if err != nil {
		t.Fatalf("CreateUser(): %v", err)
	}
	return user.Me{User: usr, Profile: profile}
}

func Actor(me user.Me) authz.Actor {
	return authz.NewActor(me.User, me.Profile)
}

func CreateCourse(t *testing.T, repo course.Repository, teacher user.Me, title string, createdAt ...time.Time) course.Course {
	tstamp := core.Now()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC().Truncate(time.Microsecond)
	}
	c, err := repo.CreateCourse(context.Background(), course.Course{
		Title:       title,
		Description: title + " description",
		TeacherID:   teacher.ID,
		CreatedAt:   tstamp,
		UpdatedAt:   tstamp,
	})
	if err != nil {
		t.Fatalf("CreateCourse(): %v", err)
	}
	return c
}

func Enroll(t *testing.T, repo course.Repository, c course.Course, students ...user.Me) {
	for _, s := range students {
		if _, err := repo.Enroll(context.Background(), c.ID, s.ID); err != nil {
			t.Fatalf("Enroll(): %v", err)
		}
	}
}

func CreateAssignment(
	t *testing.T,
	repo assignment.Repository,
	c course.Course,
	title string,
	status assignment.Status,
	dueDate time.Time,
	createdAt ...time.Time,
) assignment.Assignment {
	tstamp := core.Now()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC().Truncate(time.Microsecond)
	}
	a, err := repo.CreateAssignment(context.Background(), assignment.Assignment{
		CourseID:    c.ID,
		TeacherID:   c.TeacherID,
		Title:       title,
		Description: title + " description",
		DueDate:     dueDate.UTC().Truncate(time.Microsecond),
		MaxPoints:   assignment.DefaultMaxPoints,
		Status:      status,
		CreatedAt:   tstamp,
		UpdatedAt:   tstamp,
	})
	if err != nil {
		t.Fatalf("CreateAssignment(): %v", err)
	}
	return a
}

func CreateSubmission(
	t *testing.T,
	repo submission.Repository,
	a assignment.Assignment,
	student user.Me,
	content string,
	submittedAt time.Time,
) submission.Submission {
	s, _, err := repo.UpsertSubmission(context.Background(), submission.Submission{
		AssignmentID: a.ID,
		StudentID:    student.ID,
		Content:      content,
		SubmittedAt:  submittedAt.UTC().Truncate(time.Microsecond),
	}, submission.ResubmitKeepGrade)
	if err != nil {
		t.Fatalf("CreateSubmission(): %v", err)
	}
	return s
}

func GradeSubmission(t *testing.T, repo submission.Repository, s submission.Submission, grade int, gradedAt time.Time) submission.Submission {
	at := gradedAt.UTC().Truncate(time.Microsecond)
	s.Grade = &grade
	s.Feedback = "feedback"
	s.GradedAt = &at
	s, err := repo.SetGrade(context.Background(), s)
	if err != nil {
		t.Fatalf("GradeSubmission(): %v", err)
	}
	return s
}

func CreateAnnouncement(
	t *testing.T,
	repo announcement.Repository,
	c course.Course,
	title string,
	createdAt ...time.Time,
) announcement.Announcement {
	tstamp := core.Now()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC().Truncate(time.Microsecond)
	}
	an, err := repo.CreateAnnouncement(context.Background(), announcement.Announcement{
		CourseID:  c.ID,
		AuthorID:  c.TeacherID,
		Title:     title,
		Content:   title + " content",
		CreatedAt: tstamp,
	})
	if err != nil {
		t.Fatalf("CreateAnnouncement(): %v", err)
	}
	return an
}
