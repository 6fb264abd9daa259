package echoapi

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core/assignment"
	"github.com/trezcool/darasa/core/stats"
	"github.com/trezcool/darasa/core/user"
	"github.com/trezcool/darasa/tests"
)

type dashboardFixture struct {
	teacher, ann, bob user.Me
	active, overdue   assignment.Assignment
	done, draft       assignment.Assignment
}

func newDashboardFixture(t *testing.T, env *testutil.Env) dashboardFixture {
	now := time.Now()
	f := dashboardFixture{
		teacher: testutil.CreateUser(t, env.UserRepo, "Teacher", "teacher", "teacher@test.cd", "", user.RoleTeacher, true),
		ann:     testutil.CreateUser(t, env.UserRepo, "Ann", "ann", "ann@test.cd", "", user.RoleStudent, true),
		bob:     testutil.CreateUser(t, env.UserRepo, "Bob", "bob", "bob@test.cd", "", user.RoleStudent, true),
	}
	maths := testutil.CreateCourse(t, env.CourseRepo, f.teacher, "Maths", now.Add(-10*time.Hour))
	testutil.Enroll(t, env.CourseRepo, maths, f.ann, f.bob)

	f.active = testutil.CreateAssignment(t, env.AssignmentRepo, maths, "Active", assignment.StatusPublished, now.Add(time.Hour), now.Add(-4*time.Hour))
	f.overdue = testutil.CreateAssignment(t, env.AssignmentRepo, maths, "Overdue", assignment.StatusPublished, now.Add(-time.Hour), now.Add(-3*time.Hour))
	f.done = testutil.CreateAssignment(t, env.AssignmentRepo, maths, "Done", assignment.StatusPublished, now.Add(-2*time.Hour), now.Add(-2*time.Hour))
	f.draft = testutil.CreateAssignment(t, env.AssignmentRepo, maths, "Draft", assignment.StatusDraft, now.Add(time.Hour), now.Add(-time.Hour))

	s := testutil.CreateSubmission(t, env.SubmissionRepo, f.done, f.ann, "done", now.Add(-3*time.Hour))
	testutil.GradeSubmission(t, env.SubmissionRepo, s, 80, now.Add(-90*time.Minute))
	testutil.CreateSubmission(t, env.SubmissionRepo, f.active, f.bob, "wip", now.Add(-time.Minute))
	return f
}

func assignmentIDs(views []assignment.View) []string {
	ids := make([]string, 0, len(views))
	for _, v := range views {
		ids = append(ids, v.ID)
	}
	return ids
}

func Test_dashboardApi_dashboard(t *testing.T) {
	srv, env := setup(t)
	f := newDashboardFixture(t, env)

	t.Run("missing token", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, "/api/dashboard")
		srv.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)}, rec)
	})

	t.Run("student", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/api/dashboard", getToken(t, srv, f.ann))
		srv.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var d StudentDashboard
		unmarshal(t, rec, &d)
		assert.Equal(t, user.RoleStudent, d.Role)
		require.Len(t, d.Courses, 1)
		assert.Equal(t, "Maths", d.Courses[0].Title)
		assert.Equal(t, []string{f.active.ID}, assignmentIDs(d.ActiveAssignments))
		assert.Equal(t, []string{f.overdue.ID}, assignmentIDs(d.OverdueAssignments))
		assert.True(t, d.OverdueAssignments[0].IsOverdue)
		require.Len(t, d.RecentSubmissions, 1)
		assert.Equal(t, f.done.ID, d.RecentSubmissions[0].AssignmentID)
		assert.Equal(t, []string{f.done.ID}, d.SubmittedAssignmentIDs)

		require.NotNil(t, d.AverageGrade)
		assert.Equal(t, 80.0, *d.AverageGrade)
		assert.InDelta(t, 100.0/3, d.SuccessRate, 0.001)
		require.Len(t, d.CourseGrades, 1)
		assert.Equal(t, "Maths", d.CourseGrades[0].CourseTitle)
	})

	t.Run("student without activity", func(t *testing.T) {
		carl := testutil.CreateUser(t, env.UserRepo, "Carl", "carl", "", "", user.RoleStudent, true)
		req, rec := newAuthRequest(http.MethodGet, "/api/dashboard", getToken(t, srv, carl))
		srv.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var raw map[string]interface{}
		unmarshal(t, rec, &raw)
		assert.Nil(t, raw["average_grade"])
		assert.Equal(t, 0.0, raw["success_rate"])
		assert.Equal(t, []interface{}{}, raw["courses"])
		assert.Equal(t, []interface{}{}, raw["submitted_assignment_ids"])
	})

	t.Run("teacher", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/api/dashboard", getToken(t, srv, f.teacher))
		srv.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var d TeacherDashboard
		unmarshal(t, rec, &d)
		assert.Equal(t, user.RoleTeacher, d.Role)
		assert.Equal(t, stats.Totals{Courses: 1, Assignments: 4, Students: 2, ToGrade: 1}, d.Stats)

		var raw map[string]interface{}
		unmarshal(t, rec, &raw)
		assert.Equal(t, map[string]interface{}{
			"courses_count":        1.0,
			"assignments_count":    4.0,
			"students_count":       2.0,
			"submissions_to_grade": 1.0,
		}, raw["stats"])
		assert.Len(t, raw["submissions_to_grade"], 1)
		require.Len(t, d.RecentAssignments, 4)
		assert.Equal(t, f.draft.ID, d.RecentAssignments[0].ID)
		require.Len(t, d.SubmissionsToGrade, 1)
		assert.Equal(t, f.bob.ID, d.SubmissionsToGrade[0].StudentID)
		assert.Equal(t, "Bob", d.SubmissionsToGrade[0].StudentName)
		assert.Empty(t, d.RecentAnnouncements)
	})
}

func Test_dashboardApi_statistics(t *testing.T) {
	srv, env := setup(t)
	f := newDashboardFixture(t, env)

	runHTTPTests(t, srv, []httpTest{
		{name: "missing token", path: "/api/statistics", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "student", path: "/api/statistics", token: getToken(t, srv, f.ann), wantCode: http.StatusForbidden, wantData: marchallObj(t, errPermissionDenied)},
	})

	t.Run("teacher", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/api/statistics", getToken(t, srv, f.teacher))
		srv.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var st stats.TeacherStatistics
		unmarshal(t, rec, &st)
		assert.Equal(t, 2, st.Students)
		require.Len(t, st.Courses, 1)
		assert.Equal(t, 4, st.Courses[0].Assignments)
		assert.Equal(t, 2, st.Courses[0].Students)
		require.NotNil(t, st.Courses[0].AverageGrade)
		assert.Equal(t, 80.0, *st.Courses[0].AverageGrade)
		require.Len(t, st.Monthly, stats.MonthsBack)
		var graded int
		for _, m := range st.Monthly {
			graded += m.Grades
		}
		assert.Equal(t, 1, graded)
		assert.Equal(t, time.Now().UTC().Format("2006-01"), st.Monthly[len(st.Monthly)-1].Month)
	})
}

func Test_dashboardApi_activity(t *testing.T) {
	srv, env := setup(t)
	f := newDashboardFixture(t, env)
	now := time.Now()
	maths, err := env.CourseRepo.GetCourse(context.Background(), f.active.CourseID)
	require.NoError(t, err)
	exam := testutil.CreateAnnouncement(t, env.AnnouncementRepo, maths, "Exam", now.Add(-30*time.Minute))

	activity := func(t *testing.T, token, query string) []stats.Activity {
		req, rec := newAuthRequest(http.MethodGet, "/api/activity"+query, token)
		srv.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var events []stats.Activity
		unmarshal(t, rec, &events)
		return events
	}

	t.Run("teacher", func(t *testing.T) {
		events := activity(t, getToken(t, srv, f.teacher), "")
		require.Len(t, events, stats.ActivityLimit)
		assert.Equal(t, stats.ActivityAnnouncement, events[0].Kind)
		assert.Equal(t, exam.ID, events[0].RefID)
		assert.Equal(t, stats.ActivityAssignment, events[1].Kind)
		assert.Equal(t, f.draft.ID, events[1].RefID)
		assert.Equal(t, f.active.ID, events[4].RefID)
	})

	t.Run("teacher with limit", func(t *testing.T) {
		events := activity(t, getToken(t, srv, f.teacher), "?limit=2")
		require.Len(t, events, 2)
		assert.Equal(t, exam.ID, events[0].RefID)
		assert.Equal(t, f.draft.ID, events[1].RefID)
	})

	t.Run("student", func(t *testing.T) {
		events := activity(t, getToken(t, srv, f.ann), "")
		require.Len(t, events, 1)
		assert.Equal(t, stats.ActivitySubmission, events[0].Kind)
		assert.Equal(t, "Done", events[0].Title)
	})
}
