package assignment

import (
	"context"
	"fmt"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/authz"
	"github.com/trezcool/darasa/core/course"
)

var ErrNotFound = core.NewNotFoundError("assignment")

type (
	Repository interface {
		CreateAssignment(ctx context.Context, a Assignment) (Assignment, error)
		GetAssignment(ctx context.Context, id string) (Assignment, error)
		UpdateAssignment(ctx context.Context, a Assignment) (Assignment, error)
		QueryAssignments(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]Assignment, error)
	}

	// Courses is what the assignment service needs to know about courses.
	Courses interface {
		GetCourse(ctx context.Context, id string) (course.Course, error)
		IsEnrolled(ctx context.Context, courseID, studentID string) (bool, error)
	}

	Service struct {
		repo    Repository
		courses Courses
	}
)

var byDueDate = []core.DBOrdering{{Field: "due_date", Ascending: true}}

func NewService(repo Repository, courses Courses) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(courses, "courses"),
	).CheckAndPanic()
	return &Service{repo: repo, courses: courses}
}

// Resource returns the authorization facts of a for actor.
func (svc *Service) Resource(ctx context.Context, actor authz.Actor, a Assignment) (authz.Resource, error) {
	res := authz.Resource{
		CourseTeacherID:     a.TeacherID,
		AssignmentTeacherID: a.TeacherID,
		Draft:               a.Status == StatusDraft,
		Published:           a.Status == StatusPublished,
	}
	if actor.IsStudent() {
		ok, err := svc.courses.IsEnrolled(ctx, a.CourseID, actor.ID)
		if err != nil {
			return res, errors.Wrap(err, "checking enrollment")
		}
		res.Enrolled = ok
	}
	return res, nil
}

// Authorize loads the assignment and checks action against it.
func (svc *Service) Authorize(ctx context.Context, actor authz.Actor, action authz.Action, id string) (Assignment, error) {
	a, err := svc.repo.GetAssignment(ctx, id)
	if err != nil {
		return Assignment{}, err
	}
	res, err := svc.Resource(ctx, actor, a)
	if err != nil {
		return Assignment{}, err
	}
	if err = authz.Check(actor, action, res); err != nil {
		return Assignment{}, err
	}
	return a, nil
}

// Create creates an assignment in a course owned by actor.
func (svc *Service) Create(ctx context.Context, actor authz.Actor, na NewAssignment) (Assignment, error) {
	c, err := svc.courses.GetCourse(ctx, na.CourseID)
	if err != nil {
		return Assignment{}, err
	}
	if err = authz.Check(actor, authz.CreateAssignment, authz.Resource{CourseTeacherID: c.TeacherID}); err != nil {
		return Assignment{}, err
	}

	now := core.Now()
	a, err := svc.repo.CreateAssignment(ctx, Assignment{
		CourseID:    c.ID,
		TeacherID:   c.TeacherID,
		Title:       na.Title,
		Description: na.Description,
		DueDate:     na.DueDate.UTC(),
		MaxPoints:   na.MaxPoints,
		Status:      na.Status,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	return a, errors.Wrap(err, "creating assignment")
}

func (svc *Service) Get(ctx context.Context, actor authz.Actor, id string) (Assignment, error) {
	return svc.Authorize(ctx, actor, authz.ViewAssignment, id)
}

func (svc *Service) Update(ctx context.Context, actor authz.Actor, id string, ua UpdateAssignment) (Assignment, error) {
	a, err := svc.Authorize(ctx, actor, authz.UpdateAssignment, id)
	if err != nil {
		return Assignment{}, err
	}
	if ua.Title != nil {
		a.Title = *ua.Title
	}
	if ua.Description != nil {
		a.Description = *ua.Description
	}
	if ua.DueDate != nil {
		a.DueDate = ua.DueDate.UTC()
	}
	if ua.MaxPoints != nil {
		a.MaxPoints = *ua.MaxPoints
	}
	if ua.Status != nil {
		a.Status = *ua.Status
	}
	a.UpdatedAt = core.Now()
	a, err = svc.repo.UpdateAssignment(ctx, a)
	return a, errors.Wrap(err, "updating assignment")
}

// Publish moves a draft to published.
func (svc *Service) Publish(ctx context.Context, actor authz.Actor, id string) (Assignment, error) {
	return svc.transition(ctx, actor, id, StatusPublished)
}

// Close moves a published assignment to closed.
func (svc *Service) Close(ctx context.Context, actor authz.Actor, id string) (Assignment, error) {
	return svc.transition(ctx, actor, id, StatusClosed)
}

func (svc *Service) transition(ctx context.Context, actor authz.Actor, id string, next Status) (Assignment, error) {
	a, err := svc.Authorize(ctx, actor, authz.UpdateAssignment, id)
	if err != nil {
		return Assignment{}, err
	}
	if !a.Status.CanTransitionTo(next) {
		msg := fmt.Sprintf("cannot move a %s assignment to %s", a.Status, next)
		return Assignment{}, core.NewValidationError(errors.New(msg), core.FieldError{Field: "status", Error: msg})
	}
	a.Status = next
	a.UpdatedAt = core.Now()
	a, err = svc.repo.UpdateAssignment(ctx, a)
	return a, errors.Wrap(err, "updating assignment status")
}

// ForCourse lists the assignments of a course ordered by due date. Students never see drafts.
func (svc *Service) ForCourse(ctx context.Context, actor authz.Actor, courseID string) ([]Assignment, error) {
	c, err := svc.courses.GetCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	res := authz.Resource{CourseTeacherID: c.TeacherID}
	if actor.IsStudent() {
		if res.Enrolled, err = svc.courses.IsEnrolled(ctx, c.ID, actor.ID); err != nil {
			return nil, errors.Wrap(err, "checking enrollment")
		}
	}
	if err = authz.Check(actor, authz.ViewCourse, res); err != nil {
		return nil, err
	}

	filter := QueryFilter{CourseID: c.ID}
	if !actor.IsTeacher() {
		filter.Statuses = []Status{StatusPublished, StatusClosed}
	}
	as, err := svc.repo.QueryAssignments(ctx, filter, byDueDate)
	return as, errors.Wrap(err, "querying course assignments")
}

// ForTeacher lists the assignments created by a teacher, newest first.
func (svc *Service) ForTeacher(ctx context.Context, actor authz.Actor, limit int) ([]Assignment, error) {
	if err := authz.Check(actor, authz.ViewTeacherStatistics, authz.Resource{}); err != nil {
		return nil, err
	}
	as, err := svc.repo.QueryAssignments(
		ctx,
		QueryFilter{TeacherID: actor.ID, Limit: limit},
		[]core.DBOrdering{{Field: "created_at"}},
	)
	return as, errors.Wrap(err, "querying teacher assignments")
}

// StudentBoard returns the published assignments of the courses a student is enrolled in:
// active ones are due in the future, overdue ones are past due and not yet submitted.
func (svc *Service) StudentBoard(ctx context.Context, actor authz.Actor) (Board, error) {
	if err := authz.Check(actor, authz.ViewStudentStatistics, authz.Resource{}); err != nil {
		return Board{}, err
	}
	now := core.Now()

	active, err := svc.repo.QueryAssignments(ctx, QueryFilter{
		StudentID: actor.ID,
		Statuses:  []Status{StatusPublished},
		DueAfter:  now,
	}, byDueDate)
	if err != nil {
		return Board{}, errors.Wrap(err, "querying active assignments")
	}

	overdue, err := svc.repo.QueryAssignments(ctx, QueryFilter{
		StudentID:      actor.ID,
		Statuses:       []Status{StatusPublished},
		DueBefore:      now,
		NotSubmittedBy: actor.ID,
	}, byDueDate)
	if err != nil {
		return Board{}, errors.Wrap(err, "querying overdue assignments")
	}

	return Board{Active: NewViews(active, now), Overdue: NewViews(overdue, now)}, nil
}

// Calendar returns the assignments whose deadlines matter to actor: everything a teacher created, or
// the published and closed assignments of a student's courses.
func (svc *Service) Calendar(ctx context.Context, actor authz.Actor) ([]Assignment, error) {
	var filter QueryFilter
	switch {
	case actor.IsTeacher():
		filter.TeacherID = actor.ID
	case actor.IsStudent():
		filter.StudentID = actor.ID
		filter.Statuses = []Status{StatusPublished, StatusClosed}
	default:
		return nil, core.ErrPermissionDenied
	}
	as, err := svc.repo.QueryAssignments(ctx, filter, byDueDate)
	return as, errors.Wrap(err, "querying calendar assignments")
}
