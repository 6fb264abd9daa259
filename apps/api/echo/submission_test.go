package echoapi

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core/assignment"
	"github.com/trezcool/darasa/core/submission"
	"github.com/trezcool/darasa/core/user"
	"github.com/trezcool/darasa/tests"
)

func Test_submissionApi_retrieve(t *testing.T) {
	srv, env := setup(t)
	now := time.Now()
	teacher := testutil.CreateUser(t, env.UserRepo, "Teacher", "teacher", "teacher@test.cd", "", user.RoleTeacher, true)
	other := testutil.CreateUser(t, env.UserRepo, "Other", "other", "other@test.cd", "", user.RoleTeacher, true)
	ann := testutil.CreateUser(t, env.UserRepo, "Ann", "ann", "ann@test.cd", "", user.RoleStudent, true)
	bob := testutil.CreateUser(t, env.UserRepo, "Bob", "bob", "bob@test.cd", "", user.RoleStudent, true)
	maths := testutil.CreateCourse(t, env.CourseRepo, teacher, "Maths")
	testutil.Enroll(t, env.CourseRepo, maths, ann, bob)
	hw := testutil.CreateAssignment(t, env.AssignmentRepo, maths, "Homework", assignment.StatusPublished, now.Add(time.Hour))
	s := testutil.CreateSubmission(t, env.SubmissionRepo, hw, ann, "42", now)

	own := submission.NewView(s, hw)
	named := own
	named.StudentName = "Ann"

	path := "/api/submissions/" + s.ID
	runHTTPTests(t, srv, []httpTest{
		{name: "student owner", path: path, token: getToken(t, srv, ann), wantData: marchallObj(t, own)},
		{name: "assignment teacher", path: path, token: getToken(t, srv, teacher), wantData: marchallObj(t, named)},
		{name: "classmate", path: path, token: getToken(t, srv, bob), wantCode: http.StatusForbidden, wantData: marchallObj(t, errPermissionDenied)},
		{name: "other teacher", path: path, token: getToken(t, srv, other), wantCode: http.StatusForbidden, wantData: marchallObj(t, errPermissionDenied)},
		{name: "no file", path: path + "/file", token: getToken(t, srv, ann), wantCode: http.StatusForbidden, wantData: marchallObj(t, errPermissionDenied)},
	})
}

func Test_submissionApi_grade(t *testing.T) {
	srv, env := setup(t)
	now := time.Now()
	teacher := testutil.CreateUser(t, env.UserRepo, "Teacher", "teacher", "teacher@test.cd", "", user.RoleTeacher, true)
	other := testutil.CreateUser(t, env.UserRepo, "Other", "other", "other@test.cd", "", user.RoleTeacher, true)
	ann := testutil.CreateUser(t, env.UserRepo, "Ann", "ann", "ann@test.cd", "", user.RoleStudent, true)
	maths := testutil.CreateCourse(t, env.CourseRepo, teacher, "Maths")
	testutil.Enroll(t, env.CourseRepo, maths, ann)
	hw := testutil.CreateAssignment(t, env.AssignmentRepo, maths, "Homework", assignment.StatusPublished, now.Add(time.Hour))
	s := testutil.CreateSubmission(t, env.SubmissionRepo, hw, ann, "42", now)

	quiz := testutil.CreateAssignment(t, env.AssignmentRepo, maths, "Quiz", assignment.StatusPublished, now.Add(time.Hour))
	pts := 20
	_, err := env.AssignmentSvc.Update(context.Background(), testutil.Actor(teacher), quiz.ID, assignment.UpdateAssignment{MaxPoints: &pts})
	require.NoError(t, err)
	sq := testutil.CreateSubmission(t, env.SubmissionRepo, quiz, ann, "b", now)

	grade := func(g int, feedback string) []byte {
		return marchallObj(t, submission.Grade{Grade: &g, Feedback: feedback})
	}
	path := "/api/submissions/" + s.ID + "/grade"
	teacherToken := getToken(t, srv, teacher)

	runHTTPTests(t, srv, []httpTest{
		{name: "student cannot grade", method: http.MethodPost, path: path, body: grade(100, ""), token: getToken(t, srv, ann), wantCode: http.StatusForbidden, wantData: marchallObj(t, errPermissionDenied)},
		{name: "other teacher cannot grade", method: http.MethodPost, path: path, body: grade(100, ""), token: getToken(t, srv, other), wantCode: http.StatusForbidden, wantData: marchallObj(t, errPermissionDenied)},
		{
			name: "grade required", method: http.MethodPost, path: path, body: marchallObj(t, map[string]string{"feedback": "meh"}), token: teacherToken,
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"grade": "this field is required"}),
		},
		{
			name: "above 100", method: http.MethodPost, path: path, body: grade(101, ""), token: teacherToken,
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"grade": "grade must be 100 or less"}),
		},
		{
			name: "negative", method: http.MethodPost, path: path, body: grade(-1, ""), token: teacherToken,
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"grade": "grade must be 0 or greater"}),
		},
		{
			name: "above max points", method: http.MethodPost, path: "/api/submissions/" + sq.ID + "/grade", body: grade(21, ""), token: teacherToken,
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"grade": "must be between 0 and 20"}),
		},
	})
	assert.Empty(t, env.Mailer.Sent())

	for _, g := range []int{75, 90} {
		t.Run("graded", func(t *testing.T) {
			env.Mailer.Reset()
			req, rec := newAuthRequest(http.MethodPost, path, teacherToken, grade(g, " Good job "))
			srv.ServeHTTP(rec, req)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			var v submission.View
			unmarshal(t, rec, &v)
			require.NotNil(t, v.Grade)
			assert.Equal(t, g, *v.Grade)
			assert.Equal(t, "Good job", v.Feedback)
			assert.NotNil(t, v.GradedAt)
			assert.True(t, v.IsGraded)
			assert.Equal(t, float64(g), v.GradePercentage)

			sent := env.Mailer.Sent()
			require.Len(t, sent, 1)
			assert.Equal(t, ann.Email, sent[0].To[0].Address)
		})
	}
}
