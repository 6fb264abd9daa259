package announcement

import (
	"context"
	"net/mail"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/authz"
	"github.com/trezcool/darasa/core/course"
	"github.com/trezcool/darasa/core/user"
)

type (
	Repository interface {
		CreateAnnouncement(ctx context.Context, an Announcement) (Announcement, error)
		QueryAnnouncements(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]Announcement, error)
	}

	Courses interface {
		GetCourse(ctx context.Context, id string) (course.Course, error)
		IsEnrolled(ctx context.Context, courseID, studentID string) (bool, error)
		QueryStudents(ctx context.Context, courseID string) ([]user.User, error)
	}

	Service struct {
		repo    Repository
		courses Courses
		mailer  core.EmailService
		logger  core.Logger
	}
)

var newestFirst = []core.DBOrdering{{Field: "created_at"}}

// NewService creates the announcement service. mailer may be nil to disable notifications.
func NewService(repo Repository, courses Courses, mailer core.EmailService, logger core.Logger) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(courses, "courses"),
	).CheckAndPanic()
	return &Service{repo: repo, courses: courses, mailer: mailer, logger: logger}
}

func (svc *Service) resource(ctx context.Context, actor authz.Actor, c course.Course) (authz.Resource, error) {
	res := authz.Resource{CourseTeacherID: c.TeacherID}
	if actor.IsStudent() {
		ok, err := svc.courses.IsEnrolled(ctx, c.ID, actor.ID)
		if err != nil {
			return res, errors.Wrap(err, "checking enrollment")
		}
		res.Enrolled = ok
	}
	return res, nil
}

// Post publishes an announcement in a course owned by actor and notifies its students.
func (svc *Service) Post(ctx context.Context, actor authz.Actor, courseID string, na NewAnnouncement) (Announcement, error) {
	c, err := svc.courses.GetCourse(ctx, courseID)
	if err != nil {
		return Announcement{}, err
	}
	if err = authz.Check(actor, authz.PostAnnouncement, authz.Resource{CourseTeacherID: c.TeacherID}); err != nil {
		return Announcement{}, err
	}
	an, err := svc.repo.CreateAnnouncement(ctx, Announcement{
		CourseID:  c.ID,
		AuthorID:  actor.ID,
		Title:     na.Title,
		Content:   na.Content,
		CreatedAt: core.Now(),
	})
	if err != nil {
		return Announcement{}, errors.Wrap(err, "creating announcement")
	}
	svc.notify(ctx, c, an)
	return an, nil
}

// ForCourse lists the announcements of a course, newest first.
func (svc *Service) ForCourse(ctx context.Context, actor authz.Actor, courseID string) ([]Announcement, error) {
	c, err := svc.courses.GetCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	res, err := svc.resource(ctx, actor, c)
	if err != nil {
		return nil, err
	}
	if err = authz.Check(actor, authz.ViewAnnouncements, res); err != nil {
		return nil, err
	}
	ans, err := svc.repo.QueryAnnouncements(ctx, QueryFilter{CourseID: c.ID}, newestFirst)
	return ans, errors.Wrap(err, "querying announcements")
}

// Recent returns the latest announcements across the courses a teacher owns.
func (svc *Service) Recent(ctx context.Context, actor authz.Actor, limit int) ([]Announcement, error) {
	if err := authz.Check(actor, authz.ViewTeacherStatistics, authz.Resource{}); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = RecentLimit
	}
	ans, err := svc.repo.QueryAnnouncements(ctx, QueryFilter{TeacherID: actor.ID, Limit: limit}, newestFirst)
	return ans, errors.Wrap(err, "querying recent announcements")
}

func (svc *Service) notify(ctx context.Context, c course.Course, an Announcement) {
	if svc.mailer == nil {
		return
	}
	students, err := svc.courses.QueryStudents(ctx, c.ID)
	if err != nil {
		if svc.logger != nil {
			svc.logger.Warn("announcement.notify: querying students", err)
		}
		return
	}
	data := map[string]interface{}{
		"CourseTitle": c.Title,
		"CourseID":    c.ID,
		"Title":       an.Title,
		"Content":     an.Content,
	}
	msgs := make([]*core.EmailMessage, 0, len(students))
	for _, s := range students {
		if to, ok := s.MailAddress(); ok {
			msgs = append(msgs, &core.EmailMessage{
				To:           []mail.Address{to},
				Subject:      c.Title + ": " + an.Title,
				TemplateName: "announcement_posted",
				TemplateData: data,
			})
		}
	}
	if len(msgs) > 0 {
		svc.mailer.SendMessages(msgs...)
	}
}
