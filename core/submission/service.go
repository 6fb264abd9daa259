package submission

import (
	"context"
	"io"
	"strconv"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/assignment"
	"github.com/trezcool/darasa/core/authz"
	"github.com/trezcool/darasa/core/user"
)

// ListLimit caps the recent and to-grade lists.
const ListLimit = 10

var (
	ErrNotFound     = core.NewNotFoundError("submission")
	ErrFileNotFound = core.NewNotFoundError("submission file")
)

type (
	Repository interface {
		// UpsertSubmission inserts s, or atomically replaces the content of the student's existing
		// submission to the same assignment, keeping its id. The file is only replaced when s has one.
		// It reports whether a row was inserted and returns ErrAlreadyGraded when policy refuses.
		UpsertSubmission(ctx context.Context, s Submission, policy ResubmitPolicy) (Submission, bool, error)
		GetSubmission(ctx context.Context, id string) (Submission, error)
		GetStudentSubmission(ctx context.Context, assignmentID, studentID string) (Submission, error)
		QuerySubmissions(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]Submission, error)
		// SetGrade stores grade, feedback and graded_at only.
		SetGrade(ctx context.Context, s Submission) (Submission, error)
	}

	Assignments interface {
		GetAssignment(ctx context.Context, id string) (assignment.Assignment, error)
	}

	Courses interface {
		IsEnrolled(ctx context.Context, courseID, studentID string) (bool, error)
	}

	Users interface {
		QueryUsersByID(ctx context.Context, ids ...string) ([]user.User, error)
	}

	// Deps are the collaborators of the submission service. Files and Mailer are optional.
	Deps struct {
		Assignments Assignments
		Courses     Courses
		Users       Users
		Files       core.FileStorage
		Mailer      core.EmailService
		Logger      core.Logger
	}

	Service struct {
		repo   Repository
		deps   Deps
		policy ResubmitPolicy
	}
)

var bySubmittedAt = []core.DBOrdering{{Field: "submitted_at"}}

func NewService(repo Repository, deps Deps, policy ResubmitPolicy) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(deps.Assignments, "assignments"),
		vala.IsNotNil(deps.Courses, "courses"),
		vala.IsNotNil(deps.Users, "users"),
	).CheckAndPanic()
	if policy == "" {
		policy = ResubmitReject
	}
	return &Service{repo: repo, deps: deps, policy: policy}
}

func (svc *Service) Policy() ResubmitPolicy {
	return svc.policy
}

// Submit records the actor's solution to an assignment. Resubmitting updates the existing submission.
func (svc *Service) Submit(ctx context.Context, actor authz.Actor, assignmentID string, ns NewSubmission) (Receipt, error) {
	a, err := svc.deps.Assignments.GetAssignment(ctx, assignmentID)
	if err != nil {
		return Receipt{}, err
	}
	res := authz.Resource{
		AssignmentTeacherID: a.TeacherID,
		Draft:               a.Status == assignment.StatusDraft,
		Published:           a.Status == assignment.StatusPublished,
	}
	if actor.IsStudent() {
		if res.Enrolled, err = svc.deps.Courses.IsEnrolled(ctx, a.CourseID, actor.ID); err != nil {
			return Receipt{}, errors.Wrap(err, "checking enrollment")
		}
	}
	if err = authz.Check(actor, authz.SubmitAssignment, res); err != nil {
		return Receipt{}, err
	}

	var prevFile string
	if ns.File != nil && svc.deps.Files != nil {
		if prev, err := svc.repo.GetStudentSubmission(ctx, a.ID, actor.ID); err == nil {
			prevFile = prev.FileKey
		} else if !core.IsNotFound(err) {
			return Receipt{}, errors.Wrap(err, "getting previous submission")
		}
	}

	s := Submission{
		AssignmentID: a.ID,
		StudentID:    actor.ID,
		Content:      ns.Content,
		SubmittedAt:  core.Now(),
	}
	if ns.File != nil {
		s.FileKey, s.FileName = ns.File.Key, ns.File.Name
	}
	s, created, err := svc.repo.UpsertSubmission(ctx, s, svc.policy)
	if err != nil {
		if errors.Cause(err) == ErrAlreadyGraded {
			return Receipt{}, core.NewValidationError(ErrAlreadyGraded, core.FieldError{
				Field: "submission",
				Error: ErrAlreadyGraded.Error(),
			})
		}
		return Receipt{}, errors.Wrap(err, "upserting submission")
	}

	if prevFile != "" && prevFile != s.FileKey {
		if err = svc.deps.Files.Delete(ctx, prevFile); err != nil {
			svc.warn("submission.Submit: deleting replaced file", err)
		}
	}
	svc.notifySubmitted(ctx, a, s)
	return Receipt{View: NewView(s, a), Created: created}, nil
}

// Grade sets the score and feedback of a submission. Only the assignment's teacher may grade,
// and the score must fit the assignment's max points.
func (svc *Service) Grade(ctx context.Context, actor authz.Actor, id string, g Grade) (View, error) {
	s, a, err := svc.authorize(ctx, actor, authz.GradeSubmission, id)
	if err != nil {
		return View{}, err
	}
	if g.Grade == nil {
		return View{}, core.NewValidationError(nil, core.FieldError{Field: "grade", Error: "this field is required"})
	}
	maxScore := a.MaxPoints
	if maxScore <= 0 || maxScore > MaxGrade {
		maxScore = MaxGrade
	}
	if score := *g.Grade; score < 0 || score > maxScore {
		return View{}, core.NewValidationError(
			errors.Errorf("grade must be between 0 and %d", maxScore),
			core.FieldError{Field: "grade", Error: "must be between 0 and " + strconv.Itoa(maxScore)},
		)
	}

	now := core.Now()
	score := *g.Grade
	s.Grade = &score
	s.Feedback = g.Feedback
	s.GradedAt = &now
	if s, err = svc.repo.SetGrade(ctx, s); err != nil {
		return View{}, errors.Wrap(err, "grading submission")
	}
	svc.notifyGraded(ctx, a, s)
	return NewView(s, a), nil
}

// Get returns a submission to its student or to the assignment's teacher.
func (svc *Service) Get(ctx context.Context, actor authz.Actor, id string) (View, error) {
	s, a, err := svc.authorize(ctx, actor, authz.ViewSubmission, id)
	if err != nil {
		return View{}, err
	}
	views, err := svc.views(ctx, a, []Submission{s}, actor.IsTeacher())
	if err != nil {
		return View{}, err
	}
	return views[0], nil
}

// OpenFile opens the file attached to a submission.
func (svc *Service) OpenFile(ctx context.Context, actor authz.Actor, id string) (io.ReadCloser, core.Blob, string, error) {
	s, _, err := svc.authorize(ctx, actor, authz.ViewSubmission, id)
	if err != nil {
		return nil, core.Blob{}, "", err
	}
	if !s.HasFile() || svc.deps.Files == nil {
		return nil, core.Blob{}, "", ErrFileNotFound
	}
	rc, blob, err := svc.deps.Files.Open(ctx, s.FileKey)
	if err != nil {
		if errors.Cause(err) == core.ErrBlobNotFound {
			return nil, core.Blob{}, "", ErrFileNotFound
		}
		return nil, core.Blob{}, "", errors.Wrap(err, "opening submission file")
	}
	return rc, blob, s.FileName, nil
}

// Mine returns the actor's submission to an assignment.
func (svc *Service) Mine(ctx context.Context, actor authz.Actor, assignmentID string) (View, error) {
	if !actor.IsStudent() {
		return View{}, errors.Wrap(core.ErrPermissionDenied, "my submission")
	}
	a, err := svc.deps.Assignments.GetAssignment(ctx, assignmentID)
	if err != nil {
		return View{}, err
	}
	s, err := svc.repo.GetStudentSubmission(ctx, a.ID, actor.ID)
	if err != nil {
		return View{}, err
	}
	return NewView(s, a), nil
}

// ForAssignment lists every submission to an assignment, newest first.
func (svc *Service) ForAssignment(ctx context.Context, actor authz.Actor, assignmentID string) ([]View, error) {
	a, err := svc.deps.Assignments.GetAssignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	if err = authz.Check(actor, authz.ListSubmissions, authz.Resource{AssignmentTeacherID: a.TeacherID}); err != nil {
		return nil, err
	}
	subs, err := svc.repo.QuerySubmissions(ctx, QueryFilter{AssignmentID: a.ID}, bySubmittedAt)
	if err != nil {
		return nil, errors.Wrap(err, "querying assignment submissions")
	}
	return svc.views(ctx, a, subs, true)
}

// Recent returns the latest submissions of a student.
func (svc *Service) Recent(ctx context.Context, actor authz.Actor, limit int) ([]View, error) {
	if err := authz.Check(actor, authz.ViewStudentStatistics, authz.Resource{}); err != nil {
		return nil, err
	}
	subs, err := svc.repo.QuerySubmissions(ctx, QueryFilter{StudentID: actor.ID, Limit: clampLimit(limit)}, bySubmittedAt)
	if err != nil {
		return nil, errors.Wrap(err, "querying recent submissions")
	}
	return svc.mixedViews(ctx, subs, false)
}

// ToGrade returns the latest ungraded submissions to a teacher's assignments.
func (svc *Service) ToGrade(ctx context.Context, actor authz.Actor, limit int) ([]View, error) {
	if err := authz.Check(actor, authz.ViewTeacherStatistics, authz.Resource{}); err != nil {
		return nil, err
	}
	graded := false
	subs, err := svc.repo.QuerySubmissions(
		ctx,
		QueryFilter{TeacherID: actor.ID, Graded: &graded, Limit: clampLimit(limit)},
		bySubmittedAt,
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying submissions to grade")
	}
	return svc.mixedViews(ctx, subs, true)
}

// SubmittedAssignmentIDs returns the ids of the assignments the actor submitted to.
func (svc *Service) SubmittedAssignmentIDs(ctx context.Context, actor authz.Actor) ([]string, error) {
	if err := authz.Check(actor, authz.ViewStudentStatistics, authz.Resource{}); err != nil {
		return nil, err
	}
	subs, err := svc.repo.QuerySubmissions(ctx, QueryFilter{StudentID: actor.ID}, bySubmittedAt)
	if err != nil {
		return nil, errors.Wrap(err, "querying submissions")
	}
	ids := make([]string, 0, len(subs))
	for _, s := range subs {
		ids = append(ids, s.AssignmentID)
	}
	return ids, nil
}

func (svc *Service) authorize(ctx context.Context, actor authz.Actor, action authz.Action, id string) (Submission, assignment.Assignment, error) {
	s, err := svc.repo.GetSubmission(ctx, id)
	if err != nil {
		return Submission{}, assignment.Assignment{}, err
	}
	a, err := svc.deps.Assignments.GetAssignment(ctx, s.AssignmentID)
	if err != nil {
		return Submission{}, assignment.Assignment{}, err
	}
	res := authz.Resource{AssignmentTeacherID: a.TeacherID, SubmissionStudentID: s.StudentID}
	if err = authz.Check(actor, action, res); err != nil {
		return Submission{}, assignment.Assignment{}, err
	}
	return s, a, nil
}

func (svc *Service) views(ctx context.Context, a assignment.Assignment, subs []Submission, withNames bool) ([]View, error) {
	names, err := svc.studentNames(ctx, subs, withNames)
	if err != nil {
		return nil, err
	}
	views := make([]View, 0, len(subs))
	for _, s := range subs {
		v := NewView(s, a)
		v.StudentName = names[s.StudentID]
		views = append(views, v)
	}
	return views, nil
}

// mixedViews renders submissions to different assignments.
func (svc *Service) mixedViews(ctx context.Context, subs []Submission, withNames bool) ([]View, error) {
	names, err := svc.studentNames(ctx, subs, withNames)
	if err != nil {
		return nil, err
	}
	assignments := make(map[string]assignment.Assignment)
	views := make([]View, 0, len(subs))
	for _, s := range subs {
		a, ok := assignments[s.AssignmentID]
		if !ok {
			if a, err = svc.deps.Assignments.GetAssignment(ctx, s.AssignmentID); err != nil {
				return nil, errors.Wrap(err, "getting submission assignment")
			}
			assignments[a.ID] = a
		}
		v := NewView(s, a)
		v.StudentName = names[s.StudentID]
		views = append(views, v)
	}
	return views, nil
}

func (svc *Service) studentNames(ctx context.Context, subs []Submission, enabled bool) (map[string]string, error) {
	names := make(map[string]string)
	if !enabled || len(subs) == 0 {
		return names, nil
	}
	ids := make([]string, 0, len(subs))
	for _, s := range subs {
		if _, ok := names[s.StudentID]; !ok {
			names[s.StudentID] = ""
			ids = append(ids, s.StudentID)
		}
	}
	users, err := svc.deps.Users.QueryUsersByID(ctx, ids...)
	if err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	for _, u := range users {
		names[u.ID] = u.DisplayName()
	}
	return names, nil
}

func (svc *Service) warn(msg string, err error) {
	if svc.deps.Logger != nil {
		svc.deps.Logger.Warn(msg, err)
	}
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > ListLimit {
		return ListLimit
	}
	return limit
}
