package stats

import (
	"context"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/announcement"
	"github.com/trezcool/darasa/core/assignment"
	"github.com/trezcool/darasa/core/authz"
	"github.com/trezcool/darasa/core/course"
	"github.com/trezcool/darasa/core/submission"
	"github.com/trezcool/darasa/core/user"
)

type (
	// Repository runs the aggregate queries.
	Repository interface {
		StudentGrades(ctx context.Context, studentID string) ([]GradeRecord, error)
		StudentProgress(ctx context.Context, studentID string) (Progress, error)
		// TeacherGrades returns the grades given to submissions of the teacher's assignments since `since`.
		TeacherGrades(ctx context.Context, teacherID string, since time.Time) ([]GradeRecord, error)
		TeacherCourses(ctx context.Context, teacherID string) ([]CourseSummary, error)
		TeacherTotals(ctx context.Context, teacherID string) (Totals, error)
	}

	Courses interface {
		GetCourse(ctx context.Context, id string) (course.Course, error)
		QueryStudents(ctx context.Context, courseID string) ([]user.User, error)
	}

	Assignments interface {
		GetAssignment(ctx context.Context, id string) (assignment.Assignment, error)
		QueryAssignments(ctx context.Context, filter assignment.QueryFilter, ordering []core.DBOrdering) ([]assignment.Assignment, error)
	}

	Submissions interface {
		QuerySubmissions(ctx context.Context, filter submission.QueryFilter, ordering []core.DBOrdering) ([]submission.Submission, error)
	}

	Announcements interface {
		QueryAnnouncements(ctx context.Context, filter announcement.QueryFilter, ordering []core.DBOrdering) ([]announcement.Announcement, error)
	}

	Service struct {
		repo          Repository
		courses       Courses
		assignments   Assignments
		submissions   Submissions
		announcements Announcements
	}
)

var newestFirst = []core.DBOrdering{{Field: "created_at"}}

func NewService(
	repo Repository,
	courses Courses,
	assignments Assignments,
	submissions Submissions,
	announcements Announcements,
) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(courses, "courses"),
		vala.IsNotNil(assignments, "assignments"),
		vala.IsNotNil(submissions, "submissions"),
		vala.IsNotNil(announcements, "announcements"),
	).CheckAndPanic()
	return &Service{
		repo:          repo,
		courses:       courses,
		assignments:   assignments,
		submissions:   submissions,
		announcements: announcements,
	}
}

// AverageGrade returns the mean of the actor's grades, nil when nothing was graded.
func (svc *Service) AverageGrade(ctx context.Context, actor authz.Actor) (*float64, error) {
	if err := authz.Check(actor, authz.ViewStudentStatistics, authz.Resource{}); err != nil {
		return nil, err
	}
	records, err := svc.repo.StudentGrades(ctx, actor.ID)
	if err != nil {
		return nil, errors.Wrap(err, "querying student grades")
	}
	return AverageGrade(records), nil
}

// SuccessRate returns the percentage of published and closed assignments the actor submitted.
func (svc *Service) SuccessRate(ctx context.Context, actor authz.Actor) (float64, error) {
	if err := authz.Check(actor, authz.ViewStudentStatistics, authz.Resource{}); err != nil {
		return 0, err
	}
	p, err := svc.repo.StudentProgress(ctx, actor.ID)
	if err != nil {
		return 0, errors.Wrap(err, "querying student progress")
	}
	return SuccessRate(p), nil
}

// StudentCount returns the number of distinct students enrolled in the actor's courses.
func (svc *Service) StudentCount(ctx context.Context, actor authz.Actor) (int, error) {
	if err := authz.Check(actor, authz.ViewTeacherStatistics, authz.Resource{}); err != nil {
		return 0, err
	}
	t, err := svc.repo.TeacherTotals(ctx, actor.ID)
	if err != nil {
		return 0, errors.Wrap(err, "querying teacher totals")
	}
	return t.Students, nil
}

func (svc *Service) Student(ctx context.Context, actor authz.Actor) (StudentStatistics, error) {
	if err := authz.Check(actor, authz.ViewStudentStatistics, authz.Resource{}); err != nil {
		return StudentStatistics{}, err
	}
	records, err := svc.repo.StudentGrades(ctx, actor.ID)
	if err != nil {
		return StudentStatistics{}, errors.Wrap(err, "querying student grades")
	}
	p, err := svc.repo.StudentProgress(ctx, actor.ID)
	if err != nil {
		return StudentStatistics{}, errors.Wrap(err, "querying student progress")
	}
	return StudentStatistics{
		AverageGrade: AverageGrade(records),
		SuccessRate:  SuccessRate(p),
		CourseGrades: GradesByCourse(records),
	}, nil
}

func (svc *Service) Teacher(ctx context.Context, actor authz.Actor) (TeacherStatistics, error) {
	if err := authz.Check(actor, authz.ViewTeacherStatistics, authz.Resource{}); err != nil {
		return TeacherStatistics{}, err
	}
	totals, err := svc.repo.TeacherTotals(ctx, actor.ID)
	if err != nil {
		return TeacherStatistics{}, errors.Wrap(err, "querying teacher totals")
	}
	summaries, err := svc.repo.TeacherCourses(ctx, actor.ID)
	if err != nil {
		return TeacherStatistics{}, errors.Wrap(err, "querying teacher courses")
	}
	records, err := svc.repo.TeacherGrades(ctx, actor.ID, time.Time{})
	if err != nil {
		return TeacherStatistics{}, errors.Wrap(err, "querying teacher grades")
	}

	averages := make(map[string]*float64)
	for _, cg := range GradesByCourse(records) {
		averages[cg.CourseID] = cg.AverageGrade
	}
	courses := make([]CourseStats, 0, len(summaries))
	for _, s := range summaries {
		courses = append(courses, CourseStats{CourseSummary: s, AverageGrade: averages[s.CourseID]})
	}

	return TeacherStatistics{
		Totals:  totals,
		Courses: courses,
		Monthly: MonthlyGrades(records, core.Now(), MonthsBack),
	}, nil
}

// RecentActivity returns the latest events of the actor: submissions for a student, announcements
// and created assignments for a teacher.
func (svc *Service) RecentActivity(ctx context.Context, actor authz.Actor, limit int) ([]Activity, error) {
	if limit <= 0 {
		limit = ActivityLimit
	}
	switch {
	case actor.IsStudent():
		subs, err := svc.submissions.QuerySubmissions(
			ctx,
			submission.QueryFilter{StudentID: actor.ID, Limit: limit},
			[]core.DBOrdering{{Field: "submitted_at"}},
		)
		if err != nil {
			return nil, errors.Wrap(err, "querying submissions")
		}
		events := make([]Activity, 0, len(subs))
		for _, s := range subs {
			a, err := svc.assignments.GetAssignment(ctx, s.AssignmentID)
			if err != nil {
				return nil, errors.Wrap(err, "getting submission assignment")
			}
			events = append(events, Activity{
				Kind:     ActivitySubmission,
				At:       s.SubmittedAt,
				Title:    a.Title,
				CourseID: a.CourseID,
				RefID:    s.ID,
			})
		}
		return MergeActivities(limit, events), nil

	case actor.IsTeacher():
		ans, err := svc.announcements.QueryAnnouncements(
			ctx,
			announcement.QueryFilter{TeacherID: actor.ID, Limit: limit},
			newestFirst,
		)
		if err != nil {
			return nil, errors.Wrap(err, "querying announcements")
		}
		as, err := svc.assignments.QueryAssignments(
			ctx,
			assignment.QueryFilter{TeacherID: actor.ID, Limit: limit},
			newestFirst,
		)
		if err != nil {
			return nil, errors.Wrap(err, "querying assignments")
		}

		anEvents := make([]Activity, 0, len(ans))
		for _, an := range ans {
			anEvents = append(anEvents, Activity{
				Kind:     ActivityAnnouncement,
				At:       an.CreatedAt,
				Title:    an.Title,
				CourseID: an.CourseID,
				RefID:    an.ID,
			})
		}
		asEvents := make([]Activity, 0, len(as))
		for _, a := range as {
			asEvents = append(asEvents, Activity{
				Kind:     ActivityAssignment,
				At:       a.CreatedAt,
				Title:    a.Title,
				CourseID: a.CourseID,
				RefID:    a.ID,
			})
		}
		return MergeActivities(limit, anEvents, asEvents), nil
	}
	return nil, errors.Wrap(core.ErrPermissionDenied, "view activity")
}
