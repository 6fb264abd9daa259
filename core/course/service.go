package course

import (
	"context"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/authz"
	"github.com/trezcool/darasa/core/user"
)

var ErrNotFound = core.NewNotFoundError("course")

// AvailableLimit caps the courses offered to a student looking for new ones.
const AvailableLimit = 10

type Repository interface {
	CreateCourse(ctx context.Context, c Course) (Course, error)
	GetCourse(ctx context.Context, id string) (Course, error)
	UpdateCourse(ctx context.Context, c Course) (Course, error)
	// DeleteCourse removes the course and everything it owns.
	DeleteCourse(ctx context.Context, id string) error
	QueryCourses(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]Course, error)
	// Enroll adds the enrollment unless it exists and reports whether a row was added.
	Enroll(ctx context.Context, courseID, studentID string) (bool, error)
	IsEnrolled(ctx context.Context, courseID, studentID string) (bool, error)
	QueryStudents(ctx context.Context, courseID string) ([]user.User, error)
	CountCourse(ctx context.Context, courseID string) (Counts, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
	).CheckAndPanic()
	return &Service{repo: repo}
}

// Resource returns the authorization facts of c for actor.
func (svc *Service) Resource(ctx context.Context, actor authz.Actor, c Course) (authz.Resource, error) {
	res := authz.Resource{CourseTeacherID: c.TeacherID}
	if actor.IsStudent() {
		ok, err := svc.repo.IsEnrolled(ctx, c.ID, actor.ID)
		if err != nil {
			return res, errors.Wrap(err, "checking enrollment")
		}
		res.Enrolled = ok
	}
	return res, nil
}

// Create creates a course owned by actor.
func (svc *Service) Create(ctx context.Context, actor authz.Actor, nc NewCourse) (Course, error) {
	if err := authz.Check(actor, authz.CreateCourse, authz.Resource{}); err != nil {
		return Course{}, err
	}
	now := core.Now()
	c, err := svc.repo.CreateCourse(ctx, Course{
		Title:       nc.Title,
		Description: nc.Description,
		TeacherID:   actor.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	return c, errors.Wrap(err, "creating course")
}

// Authorize loads the course and checks action against it.
func (svc *Service) Authorize(ctx context.Context, actor authz.Actor, action authz.Action, id string) (Course, error) {
	c, err := svc.repo.GetCourse(ctx, id)
	if err != nil {
		return Course{}, err
	}
	res, err := svc.Resource(ctx, actor, c)
	if err != nil {
		return Course{}, err
	}
	if err = authz.Check(actor, action, res); err != nil {
		return Course{}, err
	}
	return c, nil
}

func (svc *Service) Get(ctx context.Context, actor authz.Actor, id string) (Course, error) {
	return svc.Authorize(ctx, actor, authz.ViewCourse, id)
}

// Detail returns the course with its counters.
func (svc *Service) Detail(ctx context.Context, actor authz.Actor, id string) (Detail, error) {
	c, err := svc.Get(ctx, actor, id)
	if err != nil {
		return Detail{}, err
	}
	cnt, err := svc.repo.CountCourse(ctx, c.ID)
	if err != nil {
		return Detail{}, errors.Wrap(err, "counting course")
	}
	return Detail{
		Course:            c,
		IsOwner:           c.TeacherID == actor.ID,
		IsEnrolled:        actor.IsStudent(),
		StudentsCount:     cnt.Students,
		AssignmentsCount:  cnt.Assignments,
		TotalSubmissions:  cnt.TotalSubmissions,
		GradedSubmissions: cnt.GradedSubmissions,
	}, nil
}

func (svc *Service) Update(ctx context.Context, actor authz.Actor, id string, uc UpdateCourse) (Course, error) {
	c, err := svc.Authorize(ctx, actor, authz.UpdateCourse, id)
	if err != nil {
		return Course{}, err
	}
	if uc.Title != nil {
		c.Title = *uc.Title
	}
	if uc.Description != nil {
		c.Description = *uc.Description
	}
	c.UpdatedAt = core.Now()
	c, err = svc.repo.UpdateCourse(ctx, c)
	return c, errors.Wrap(err, "updating course")
}

func (svc *Service) Delete(ctx context.Context, actor authz.Actor, id string) error {
	c, err := svc.Authorize(ctx, actor, authz.DeleteCourse, id)
	if err != nil {
		return err
	}
	return errors.Wrap(svc.repo.DeleteCourse(ctx, c.ID), "deleting course")
}

// Enroll adds actor to the course. Enrolling twice is not an error: it yields AlreadyEnrolled.
func (svc *Service) Enroll(ctx context.Context, actor authz.Actor, id string) (Course, EnrollStatus, error) {
	if err := authz.Check(actor, authz.EnrollCourse, authz.Resource{}); err != nil {
		return Course{}, 0, err
	}
	c, err := svc.repo.GetCourse(ctx, id)
	if err != nil {
		return Course{}, 0, err
	}
	added, err := svc.repo.Enroll(ctx, c.ID, actor.ID)
	if err != nil {
		return Course{}, 0, errors.Wrap(err, "enrolling")
	}
	if !added {
		return c, AlreadyEnrolled, nil
	}
	return c, Enrolled, nil
}

// VisibleTo returns the courses a teacher owns or a student is enrolled in, newest first.
func (svc *Service) VisibleTo(ctx context.Context, actor authz.Actor, ordering ...core.DBOrdering) ([]Course, error) {
	var filter QueryFilter
	switch {
	case actor.IsTeacher():
		filter.TeacherID = actor.ID
	case actor.IsStudent():
		filter.StudentID = actor.ID
	default:
		return nil, nil
	}
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "created_at"}}
	}
	courses, err := svc.repo.QueryCourses(ctx, filter, ordering)
	return courses, errors.Wrap(err, "querying courses")
}

// Available returns courses a student is not enrolled in yet.
func (svc *Service) Available(ctx context.Context, actor authz.Actor, limit int) ([]Course, error) {
	if err := authz.Check(actor, authz.EnrollCourse, authz.Resource{}); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > AvailableLimit {
		limit = AvailableLimit
	}
	courses, err := svc.repo.QueryCourses(
		ctx,
		QueryFilter{NotStudentID: actor.ID, Limit: limit},
		[]core.DBOrdering{{Field: "created_at"}},
	)
	return courses, errors.Wrap(err, "querying available courses")
}

// Students lists the students enrolled in a course the actor owns.
func (svc *Service) Students(ctx context.Context, actor authz.Actor, id string) ([]user.User, error) {
	c, err := svc.Authorize(ctx, actor, authz.ListStudents, id)
	if err != nil {
		return nil, err
	}
	students, err := svc.repo.QueryStudents(ctx, c.ID)
	return students, errors.Wrap(err, "querying students")
}
