package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/announcement"
	"github.com/trezcool/darasa/core/assignment"
	"github.com/trezcool/darasa/core/authz"
	"github.com/trezcool/darasa/core/course"
	"github.com/trezcool/darasa/core/stats"
	"github.com/trezcool/darasa/core/submission"
	"github.com/trezcool/darasa/core/user"
)

// dashboardAssignments is how many of their latest assignments a teacher sees on the dashboard.
const dashboardAssignments = 5

type dashboardApi struct {
	courses       *course.Service
	assignments   *assignment.Service
	submissions   *submission.Service
	announcements *announcement.Service
	stats         *stats.Service
}

func registerDashboardAPI(g *echo.Group, jwt, actor echo.MiddlewareFunc, api *dashboardApi) {
	dg := g.Group("", jwt, actor)
	dg.GET("/dashboard", api.dashboard)
	dg.GET("/statistics", api.statistics, roleMiddleware(user.RoleTeacher))
	dg.GET("/activity", api.activity)
}

type (
	StudentDashboard struct {
		Role                   user.Role         `json:"role"`
		Courses                []course.Course   `json:"courses"`
		ActiveAssignments      []assignment.View `json:"active_assignments"`
		OverdueAssignments     []assignment.View `json:"overdue_assignments"`
		RecentSubmissions      []submission.View `json:"recent_submissions"`
		SubmittedAssignmentIDs []string          `json:"submitted_assignment_ids"`
		stats.StudentStatistics
	}

	TeacherDashboard struct {
		Role                user.Role                   `json:"role"`
		Courses             []course.Course             `json:"courses"`
		RecentAssignments   []assignment.Assignment     `json:"recent_assignments"`
		SubmissionsToGrade  []submission.View           `json:"submissions_to_grade"`
		RecentAnnouncements []announcement.Announcement `json:"recent_announcements"`
		Stats               stats.Totals                `json:"stats"`
	}
)

// Handlers

func (api *dashboardApi) dashboard(ctx echo.Context) error {
	actor, err := contextActor(ctx)
	if err != nil {
		return err
	}
	switch {
	case actor.IsStudent():
		d, err := api.studentDashboard(ctx, actor)
		if err != nil {
			return err
		}
		return ctx.JSON(http.StatusOK, d)
	case actor.IsTeacher():
		d, err := api.teacherDashboard(ctx, actor)
		if err != nil {
			return err
		}
		return ctx.JSON(http.StatusOK, d)
	}
	return errHttpForbidden
}

func (api *dashboardApi) studentDashboard(ctx echo.Context, actor authz.Actor) (StudentDashboard, error) {
	rctx := ctx.Request().Context()
	d := StudentDashboard{Role: actor.Role}

	var err error
	if d.Courses, err = api.courses.VisibleTo(rctx, actor); err != nil {
		return d, errors.Wrap(err, "querying courses")
	}
	board, err := api.assignments.StudentBoard(rctx, actor)
	if err != nil {
		return d, errors.Wrap(err, "getting assignment board")
	}
	d.ActiveAssignments, d.OverdueAssignments = board.Active, board.Overdue
	if d.RecentSubmissions, err = api.submissions.Recent(rctx, actor, submission.ListLimit); err != nil {
		return d, errors.Wrap(err, "querying recent submissions")
	}
	if d.SubmittedAssignmentIDs, err = api.submissions.SubmittedAssignmentIDs(rctx, actor); err != nil {
		return d, errors.Wrap(err, "querying submitted assignments")
	}
	if d.StudentStatistics, err = api.stats.Student(rctx, actor); err != nil {
		return d, errors.Wrap(err, "computing student statistics")
	}

	if d.Courses == nil {
		d.Courses = []course.Course{}
	}
	if d.RecentSubmissions == nil {
		d.RecentSubmissions = []submission.View{}
	}
	if d.SubmittedAssignmentIDs == nil {
		d.SubmittedAssignmentIDs = []string{}
	}
	return d, nil
}

func (api *dashboardApi) teacherDashboard(ctx echo.Context, actor authz.Actor) (TeacherDashboard, error) {
	rctx := ctx.Request().Context()
	d := TeacherDashboard{Role: actor.Role}

	var err error
	if d.Courses, err = api.courses.VisibleTo(rctx, actor); err != nil {
		return d, errors.Wrap(err, "querying courses")
	}
	if d.RecentAssignments, err = api.assignments.ForTeacher(rctx, actor, dashboardAssignments); err != nil {
		return d, errors.Wrap(err, "querying recent assignments")
	}
	if d.SubmissionsToGrade, err = api.submissions.ToGrade(rctx, actor, submission.ListLimit); err != nil {
		return d, errors.Wrap(err, "querying submissions to grade")
	}
	if d.RecentAnnouncements, err = api.announcements.Recent(rctx, actor, announcement.RecentLimit); err != nil {
		return d, errors.Wrap(err, "querying recent announcements")
	}
	st, err := api.stats.Teacher(rctx, actor)
	if err != nil {
		return d, errors.Wrap(err, "computing teacher statistics")
	}
	d.Stats = st.Totals

	if d.Courses == nil {
		d.Courses = []course.Course{}
	}
	if d.RecentAssignments == nil {
		d.RecentAssignments = []assignment.Assignment{}
	}
	if d.SubmissionsToGrade == nil {
		d.SubmissionsToGrade = []submission.View{}
	}
	if d.RecentAnnouncements == nil {
		d.RecentAnnouncements = []announcement.Announcement{}
	}
	return d, nil
}

func (api *dashboardApi) statistics(ctx echo.Context) error {
	actor, err := contextActor(ctx)
	if err != nil {
		return err
	}
	st, err := api.stats.Teacher(ctx.Request().Context(), actor)
	if err != nil {
		return errors.Wrap(err, "computing teacher statistics")
	}
	return ctx.JSON(http.StatusOK, st)
}

func (api *dashboardApi) activity(ctx echo.Context) error {
	actor, err := contextActor(ctx)
	if err != nil {
		return err
	}
	events, err := api.stats.RecentActivity(ctx.Request().Context(), actor, queryLimit(ctx))
	if err != nil {
		return errors.Wrap(err, "getting recent activity")
	}
	return ctx.JSON(http.StatusOK, events)
}
