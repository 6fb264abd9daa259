package echoapi

import (
	"bytes"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/darasa/core/announcement"
	"github.com/trezcool/darasa/core/assignment"
	"github.com/trezcool/darasa/core/course"
	"github.com/trezcool/darasa/core/user"
	fixtures "github.com/trezcool/darasa/tests"
)

func Test_courseApi_query(t *testing.T) {
	srv, env := setup(t)
	now := time.Now()

	teacher := fixtures.CreateUser(t, env.UserRepo, "Teacher", "teacher", "teacher@test.cd", "", user.RoleTeacher, true)
	other := fixtures.CreateUser(t, env.UserRepo, "Other", "other", "other@test.cd", "", user.RoleTeacher, true)
	student := fixtures.CreateUser(t, env.UserRepo, "Hero", "hero", "hero@test.cd", "", user.RoleStudent, true)
	loner := fixtures.CreateUser(t, env.UserRepo, "Loner", "loner", "loner@test.cd", "", user.RoleStudent, true)

	maths := fixtures.CreateCourse(t, env.CourseRepo, teacher, "Maths", now.Add(-2*time.Hour))
	biology := fixtures.CreateCourse(t, env.CourseRepo, teacher, "Biology", now.Add(-1*time.Hour))
	history := fixtures.CreateCourse(t, env.CourseRepo, other, "History", now)
	fixtures.Enroll(t, env.CourseRepo, maths, student)
	fixtures.Enroll(t, env.CourseRepo, history, student)

	runHTTPTests(t, srv, []httpTest{
		{name: "auth required", path: "/api/courses", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "teacher: own courses, newest first", path: "/api/courses", token: getToken(t, srv, teacher), wantData: marchallList(t, biology, maths)},
		{name: "teacher: ordering", path: "/api/courses?ordering=title", token: getToken(t, srv, teacher), wantData: marchallList(t, biology, maths)},
		{name: "teacher: -ordering", path: "/api/courses?ordering=-title", token: getToken(t, srv, teacher), wantData: marchallList(t, maths, biology)},
		{name: "student: enrolled courses", path: "/api/courses", token: getToken(t, srv, student), wantData: marchallList(t, history, maths)},
		{name: "student: none", path: "/api/courses", token: getToken(t, srv, loner), wantData: marchallList(t)},
		{name: "available: teacher forbidden", path: "/api/courses/available", token: getToken(t, srv, teacher), wantCode: http.StatusForbidden, wantData: marchallObj(t, errPermissionDenied)},
		{name: "available: not enrolled yet", path: "/api/courses/available", token: getToken(t, srv, student), wantData: marchallList(t, biology)},
		{name: "available: limit", path: "/api/courses/available?limit=2", token: getToken(t, srv, loner), wantData: marchallList(t, history, biology)},
	})
}

func Test_courseApi_create(t *testing.T) {
	srv, env := setup(t)
	teacher := fixtures.CreateUser(t, env.UserRepo, "Teacher", "teacher", "teacher@test.cd", "", user.RoleTeacher, true)
	student := fixtures.CreateUser(t, env.UserRepo, "Hero", "hero", "hero@test.cd", "", user.RoleStudent, true)

	tests := []httpTest{
		{
			name: "student forbidden", token: getToken(t, srv, student), wantCode: http.StatusForbidden,
			body: marchallObj(t, course.NewCourse{Title: "Maths", Description: "Numbers"}), wantData: marchallObj(t, errPermissionDenied),
		},
		{
			name: "blank fields", token: getToken(t, srv, teacher), wantCode: http.StatusBadRequest,
			body:     marchallObj(t, course.NewCourse{Title: "   ", Description: ""}),
			wantData: marchallObj(t, map[string]string{"title": "this field is required", "description": "this field is required"}),
		},
		{
			name: "created", token: getToken(t, srv, teacher), wantCode: http.StatusCreated,
			body: marchallObj(t, course.NewCourse{Title: " Maths ", Description: "Numbers"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, "/api/courses", tt.token, tt.body)
			srv.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)

			if rec.Code == http.StatusCreated {
				var c course.Course
				unmarshal(t, rec, &c)
				assert.NotEmpty(t, c.ID)
				assert.Equal(t, "Maths", c.Title)
				assert.Equal(t, teacher.ID, c.TeacherID)
			}
		})
	}
	assert.Equal(t, float64(1), testutil.ToFloat64(srv.deps.Metrics.events.WithLabelValues(eventCourseCreated)))
}

func Test_courseApi_detail(t *testing.T) {
	srv, env := setup(t)
	now := time.Now()

	teacher := fixtures.CreateUser(t, env.UserRepo, "Teacher", "teacher", "teacher@test.cd", "", user.RoleTeacher, true)
	other := fixtures.CreateUser(t, env.UserRepo, "Other", "other", "other@test.cd", "", user.RoleTeacher, true)
	student := fixtures.CreateUser(t, env.UserRepo, "Hero", "hero", "hero@test.cd", "", user.RoleStudent, true)
	outsider := fixtures.CreateUser(t, env.UserRepo, "Outsider", "outsider", "outsider@test.cd", "", user.RoleStudent, true)

	maths := fixtures.CreateCourse(t, env.CourseRepo, teacher, "Maths")
	fixtures.Enroll(t, env.CourseRepo, maths, student)
	hw := fixtures.CreateAssignment(t, env.AssignmentRepo, maths, "Homework", assignment.StatusPublished, now.Add(time.Hour))
	fixtures.CreateAssignment(t, env.AssignmentRepo, maths, "Draft", assignment.StatusDraft, now.Add(time.Hour))
	s := fixtures.CreateSubmission(t, env.SubmissionRepo, hw, student, "42", now)
	fixtures.GradeSubmission(t, env.SubmissionRepo, s, 80, now)

	path := "/api/courses/" + maths.ID
	runHTTPTests(t, srv, []httpTest{
		{
			name: "owner", path: path, token: getToken(t, srv, teacher),
			wantData: marchallObj(t, course.Detail{
				Course: maths, IsOwner: true, StudentsCount: 1, AssignmentsCount: 2, TotalSubmissions: 1, GradedSubmissions: 1,
			}),
		},
		{
			name: "enrolled student", path: path, token: getToken(t, srv, student),
			wantData: marchallObj(t, course.Detail{
				Course: maths, IsEnrolled: true, StudentsCount: 1, AssignmentsCount: 2, TotalSubmissions: 1, GradedSubmissions: 1,
			}),
		},
		{name: "other teacher", path: path, token: getToken(t, srv, other), wantCode: http.StatusForbidden, wantData: marchallObj(t, errPermissionDenied)},
		{name: "outsider", path: path, token: getToken(t, srv, outsider), wantCode: http.StatusForbidden, wantData: marchallObj(t, errPermissionDenied)},
		{
			name: "unknown course looks forbidden", path: "/api/courses/4f0d0c8e-0f59-4f0c-b8a5-7d1b7f4b8e21", token: getToken(t, srv, teacher),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errPermissionDenied),
		},
	})
}

func Test_courseApi_updateAndDelete(t *testing.T) {
	srv, env := setup(t)
	teacher := fixtures.CreateUser(t, env.UserRepo, "Teacher", "teacher", "teacher@test.cd", "", user.RoleTeacher, true)
	other := fixtures.CreateUser(t, env.UserRepo, "Other", "other", "other@test.cd", "", user.RoleTeacher, true)
	student := fixtures.CreateUser(t, env.UserRepo, "Hero", "hero", "hero@test.cd", "", user.RoleStudent, true)
	maths := fixtures.CreateCourse(t, env.CourseRepo, teacher, "Maths")
	fixtures.Enroll(t, env.CourseRepo, maths, student)

	path := "/api/courses/" + maths.ID
	title := func(s string) []byte { return marchallObj(t, map[string]string{"title": s}) }

	runHTTPTests(t, srv, []httpTest{
		{name: "update: other teacher", method: http.MethodPut, path: path, body: title("Lol"), token: getToken(t, srv, other), wantCode: http.StatusForbidden, wantData: marchallObj(t, errPermissionDenied)},
		{name: "update: student", method: http.MethodPut, path: path, body: title("Lol"), token: getToken(t, srv, student), wantCode: http.StatusForbidden, wantData: marchallObj(t, errPermissionDenied)},
		{
			name: "update: blank title", method: http.MethodPut, path: path, body: title("  "), token: getToken(t, srv, teacher),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"title": "this field cannot be blank"}),
		},
		{name: "delete: other teacher", method: http.MethodDelete, path: path, token: getToken(t, srv, other), wantCode: http.StatusForbidden, wantData: marchallObj(t, errPermissionDenied)},
		{name: "delete: student", method: http.MethodDelete, path: path, token: getToken(t, srv, student), wantCode: http.StatusForbidden, wantData: marchallObj(t, errPermissionDenied)},
	})

	t.Run("update: owner", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPut, path, getToken(t, srv, teacher), title(" Algebra "))
		srv.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var c course.Course
		unmarshal(t, rec, &c)
		assert.Equal(t, "Algebra", c.Title)
		assert.Equal(t, maths.Description, c.Description)
	})

	runHTTPTests(t, srv, []httpTest{
		{name: "delete: owner", method: http.MethodDelete, path: path, token: getToken(t, srv, teacher), wantCode: http.StatusNoContent},
		{name: "deleted", path: path, token: getToken(t, srv, teacher), wantCode: http.StatusForbidden, wantData: marchallObj(t, errPermissionDenied)},
		{name: "enrollments gone", path: "/api/courses", token: getToken(t, srv, student), wantData: marchallList(t)},
	})
}

func Test_courseApi_enroll(t *testing.T) {
	srv, env := setup(t)
	teacher := fixtures.CreateUser(t, env.UserRepo, "Teacher", "teacher", "teacher@test.cd", "", user.RoleTeacher, true)
	student := fixtures.CreateUser(t, env.UserRepo, "Hero", "hero", "hero@test.cd", "", user.RoleStudent, true)
	maths := fixtures.CreateCourse(t, env.CourseRepo, teacher, "Maths")

	path := "/api/courses/" + maths.ID + "/enroll"
	runHTTPTests(t, srv, []httpTest{
		{name: "teacher forbidden", method: http.MethodPost, path: path, token: getToken(t, srv, teacher), wantCode: http.StatusForbidden, wantData: marchallObj(t, errPermissionDenied)},
		{
			name: "unknown course", method: http.MethodPost, path: "/api/courses/4f0d0c8e-0f59-4f0c-b8a5-7d1b7f4b8e21/enroll",
			token: getToken(t, srv, student), wantCode: http.StatusForbidden, wantData: marchallObj(t, errPermissionDenied),
		},
		{
			name: "enrolled", method: http.MethodPost, path: path, token: getToken(t, srv, student), wantCode: http.StatusCreated,
			wantData: marchallObj(t, EnrollResponse{Status: "enrolled", Course: maths}),
		},
		{
			name: "idempotent", method: http.MethodPost, path: path, token: getToken(t, srv, student), wantCode: http.StatusOK,
			wantData: marchallObj(t, EnrollResponse{Status: "already enrolled", Course: maths}),
		},
		{name: "listed as student", path: "/api/courses/" + maths.ID + "/students", token: getToken(t, srv, teacher), wantData: marchallList(t, student.User)},
		{
			name: "students hidden from students", path: "/api/courses/" + maths.ID + "/students", token: getToken(t, srv, student),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errPermissionDenied),
		},
	})
	assert.Equal(t, float64(1), testutil.ToFloat64(srv.deps.Metrics.events.WithLabelValues(eventEnrolled)))
}

func Test_courseApi_assignments(t *testing.T) {
	srv, env := setup(t)
	now := time.Now()
	teacher := fixtures.CreateUser(t, env.UserRepo, "Teacher", "teacher", "teacher@test.cd", "", user.RoleTeacher, true)
	student := fixtures.CreateUser(t, env.UserRepo, "Hero", "hero", "hero@test.cd", "", user.RoleStudent, true)
	outsider := fixtures.CreateUser(t, env.UserRepo, "Outsider", "outsider", "outsider@test.cd", "", user.RoleStudent, true)
	maths := fixtures.CreateCourse(t, env.CourseRepo, teacher, "Maths")
	fixtures.Enroll(t, env.CourseRepo, maths, student)

	late := fixtures.CreateAssignment(t, env.AssignmentRepo, maths, "Late", assignment.StatusClosed, now.Add(-time.Hour))
	soon := fixtures.CreateAssignment(t, env.AssignmentRepo, maths, "Soon", assignment.StatusPublished, now.Add(time.Hour))
	draft := fixtures.CreateAssignment(t, env.AssignmentRepo, maths, "Draft", assignment.StatusDraft, now.Add(2*time.Hour))

	view := func(a assignment.Assignment) interface{} { return assignment.NewView(a, now) }
	path := "/api/courses/" + maths.ID + "/assignments"
	runHTTPTests(t, srv, []httpTest{
		{name: "teacher sees drafts", path: path, token: getToken(t, srv, teacher), wantData: marchallList(t, view(late), view(soon), view(draft))},
		{name: "student does not", path: path, token: getToken(t, srv, student), wantData: marchallList(t, view(late), view(soon))},
		{name: "outsider forbidden", path: path, token: getToken(t, srv, outsider), wantCode: http.StatusForbidden, wantData: marchallObj(t, errPermissionDenied)},
	})
}

func Test_courseApi_announcements(t *testing.T) {
	srv, env := setup(t)
	now := time.Now()
	teacher := fixtures.CreateUser(t, env.UserRepo, "Teacher", "teacher", "teacher@test.cd", "", user.RoleTeacher, true)
	other := fixtures.CreateUser(t, env.UserRepo, "Other", "other", "other@test.cd", "", user.RoleTeacher, true)
	student := fixtures.CreateUser(t, env.UserRepo, "Hero", "hero", "hero@test.cd", "", user.RoleStudent, true)
	mute := fixtures.CreateUser(t, env.UserRepo, "Mute", "mute", "", "", user.RoleStudent, true)
	outsider := fixtures.CreateUser(t, env.UserRepo, "Outsider", "outsider", "outsider@test.cd", "", user.RoleStudent, true)
	maths := fixtures.CreateCourse(t, env.CourseRepo, teacher, "Maths")
	fixtures.Enroll(t, env.CourseRepo, maths, student, mute)

	old := fixtures.CreateAnnouncement(t, env.AnnouncementRepo, maths, "Welcome", now.Add(-time.Hour))
	path := "/api/courses/" + maths.ID + "/announcements"
	body := marchallObj(t, announcement.NewAnnouncement{Title: "Exam", Content: "Friday at 9"})

	runHTTPTests(t, srv, []httpTest{
		{name: "student cannot post", method: http.MethodPost, path: path, body: body, token: getToken(t, srv, student), wantCode: http.StatusForbidden, wantData: marchallObj(t, errPermissionDenied)},
		{name: "other teacher cannot post", method: http.MethodPost, path: path, body: body, token: getToken(t, srv, other), wantCode: http.StatusForbidden, wantData: marchallObj(t, errPermissionDenied)},
		{
			name: "content required", method: http.MethodPost, path: path, token: getToken(t, srv, teacher),
			body:     marchallObj(t, announcement.NewAnnouncement{Title: "Exam"}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"content": "this field is required"}),
		},
	})
	assert.Empty(t, env.Mailer.Sent())

	var posted announcement.Announcement
	t.Run("posted", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, path, getToken(t, srv, teacher), body)
		srv.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		unmarshal(t, rec, &posted)
		assert.Equal(t, "Exam", posted.Title)
		assert.Equal(t, teacher.ID, posted.AuthorID)

		sent := env.Mailer.Sent()
		require.Len(t, sent, 1, "only students with an email are notified")
		assert.Equal(t, student.Email, sent[0].To[0].Address)
		assert.Equal(t, "Maths: Exam", sent[0].Subject)
	})

	runHTTPTests(t, srv, []httpTest{
		{name: "student reads, newest first", path: path, token: getToken(t, srv, student), wantData: marchallList(t, posted, old)},
		{name: "outsider forbidden", path: path, token: getToken(t, srv, outsider), wantCode: http.StatusForbidden, wantData: marchallObj(t, errPermissionDenied)},
	})
}

func Test_courseApi_gradebook(t *testing.T) {
	srv, env := setup(t)
	now := time.Now()
	teacher := fixtures.CreateUser(t, env.UserRepo, "Teacher", "teacher", "teacher@test.cd", "", user.RoleTeacher, true)
	ann := fixtures.CreateUser(t, env.UserRepo, "Ann", "ann", "ann@test.cd", "", user.RoleStudent, true)
	bob := fixtures.CreateUser(t, env.UserRepo, "Bob", "bob", "bob@test.cd", "", user.RoleStudent, true)
	maths := fixtures.CreateCourse(t, env.CourseRepo, teacher, "Maths")
	fixtures.Enroll(t, env.CourseRepo, maths, ann, bob)

	hw1 := fixtures.CreateAssignment(t, env.AssignmentRepo, maths, "HW1", assignment.StatusClosed, now.Add(-48*time.Hour))
	hw2 := fixtures.CreateAssignment(t, env.AssignmentRepo, maths, "HW2", assignment.StatusPublished, now.Add(48*time.Hour))
	fixtures.GradeSubmission(t, env.SubmissionRepo, fixtures.CreateSubmission(t, env.SubmissionRepo, hw1, ann, "a", now), 80, now)
	fixtures.GradeSubmission(t, env.SubmissionRepo, fixtures.CreateSubmission(t, env.SubmissionRepo, hw2, ann, "b", now), 90, now)
	fixtures.CreateSubmission(t, env.SubmissionRepo, hw1, bob, "c", now)

	path := "/api/courses/" + maths.ID + "/gradebook.xlsx"
	runHTTPTests(t, srv, []httpTest{
		{name: "student forbidden", path: path, token: getToken(t, srv, ann), wantCode: http.StatusForbidden, wantData: marchallObj(t, errPermissionDenied)},
	})

	t.Run("exported", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, path, getToken(t, srv, teacher))
		srv.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, xlsxMIME, rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Header().Get("Content-Disposition"), "maths-gradebook.xlsx")

		f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
		require.NoError(t, err)
		defer f.Close()

		rows, err := f.GetRows("Gradebook")
		require.NoError(t, err)
		require.Len(t, rows, 4) // title, header, ann, bob
		assert.Equal(t, []string{"Student", "Username", "HW1 (/100)", "HW2 (/100)", "Average"}, rows[1])
		assert.Equal(t, []string{"Ann", "ann", "80", "90", "85"}, rows[2])
		assert.Equal(t, []string{"Bob", "bob", "-", "-", "-"}, rows[3])
	})
}
