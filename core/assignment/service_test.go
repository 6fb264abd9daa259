package assignment_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/assignment"
	"github.com/trezcool/darasa/core/user"
	"github.com/trezcool/darasa/tests"
)

const pwd = "Passw0rd!"

func TestStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to assignment.Status
		want     bool
	}{
		{assignment.StatusDraft, assignment.StatusPublished, true},
		{assignment.StatusPublished, assignment.StatusClosed, true},
		{assignment.StatusDraft, assignment.StatusClosed, false},
		{assignment.StatusPublished, assignment.StatusDraft, false},
		{assignment.StatusClosed, assignment.StatusPublished, false},
		{assignment.StatusClosed, assignment.StatusClosed, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestNewAssignment_Validate(t *testing.T) {
	env := testutil.NewEnv(t)
	due := time.Now().Add(24 * time.Hour)

	na := assignment.NewAssignment{
		CourseID:    " 3F7C1C43-5D2A-4D6F-9D8E-1A2B3C4D5E6F ",
		Title:       " HW ",
		Description: "Do it",
		DueDate:     due,
	}
	require.NoError(t, na.Validate(env.Validate))
	assert.Equal(t, "3f7c1c43-5d2a-4d6f-9d8e-1a2b3c4d5e6f", na.CourseID)
	assert.Equal(t, "HW", na.Title)
	assert.Equal(t, assignment.DefaultMaxPoints, na.MaxPoints)
	assert.Equal(t, assignment.StatusDraft, na.Status)

	na = assignment.NewAssignment{CourseID: "nope", Title: "HW", Description: "d", DueDate: due, MaxPoints: 101, Status: "open"}
	assert.Error(t, na.Validate(env.Validate))

	zero := time.Time{}
	ua := assignment.UpdateAssignment{DueDate: &zero}
	err := ua.Validate(env.Validate)
	require.Error(t, err)
	assert.Equal(t, "due_date: this field is required", err.Error())
}

func TestService_CreateAndAccess(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	teacher := testutil.CreateUser(t, env.UserRepo, "Teacher", "teacher", "teacher@test.cd", pwd, user.RoleTeacher, true)
	other := testutil.CreateUser(t, env.UserRepo, "Other", "other", "other@test.cd", pwd, user.RoleTeacher, true)
	ann := testutil.CreateUser(t, env.UserRepo, "Ann", "ann", "ann@test.cd", pwd, user.RoleStudent, true)
	bob := testutil.CreateUser(t, env.UserRepo, "Bob", "bob", "bob@test.cd", pwd, user.RoleStudent, true)
	c := testutil.CreateCourse(t, env.CourseRepo, teacher, "Maths")
	testutil.Enroll(t, env.CourseRepo, c, ann)

	na := assignment.NewAssignment{
		CourseID:    c.ID,
		Title:       "HW",
		Description: "Do it",
		DueDate:     time.Now().Add(time.Hour),
		MaxPoints:   20,
		Status:      assignment.StatusDraft,
	}
	_, err := env.AssignmentSvc.Create(ctx, testutil.Actor(other), na)
	assert.True(t, core.IsPermissionDenied(err))
	_, err = env.AssignmentSvc.Create(ctx, testutil.Actor(ann), na)
	assert.True(t, core.IsPermissionDenied(err))

	draft, err := env.AssignmentSvc.Create(ctx, testutil.Actor(teacher), na)
	require.NoError(t, err)
	assert.Equal(t, teacher.ID, draft.TeacherID)
	assert.Equal(t, 20, draft.MaxPoints)

	tests := []struct {
		name    string
		actor   user.Me
		wantErr bool
	}{
		{name: "creator", actor: teacher},
		{name: "enrolled student cannot see a draft", actor: ann, wantErr: true},
		{name: "not enrolled student", actor: bob, wantErr: true},
		{name: "other teacher", actor: other, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.AssignmentSvc.Get(ctx, testutil.Actor(tt.actor), draft.ID)
			if tt.wantErr {
				assert.True(t, core.IsPermissionDenied(err), "got %v", err)
				return
			}
			assert.NoError(t, err)
		})
	}

	_, err = env.AssignmentSvc.Publish(ctx, testutil.Actor(teacher), draft.ID)
	require.NoError(t, err)
	got, err := env.AssignmentSvc.Get(ctx, testutil.Actor(ann), draft.ID)
	require.NoError(t, err)
	assert.Equal(t, assignment.StatusPublished, got.Status)
}

func TestService_Transitions(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	teacher := testutil.CreateUser(t, env.UserRepo, "Teacher", "teacher", "teacher@test.cd", pwd, user.RoleTeacher, true)
	other := testutil.CreateUser(t, env.UserRepo, "Other", "other", "other@test.cd", pwd, user.RoleTeacher, true)
	c := testutil.CreateCourse(t, env.CourseRepo, teacher, "Maths")
	a := testutil.CreateAssignment(t, env.AssignmentRepo, c, "HW", assignment.StatusDraft, time.Now().Add(time.Hour))
	actor := testutil.Actor(teacher)

	_, err := env.AssignmentSvc.Close(ctx, actor, a.ID)
	require.Error(t, err)
	assert.Equal(t, "cannot move a draft assignment to closed", err.Error())

	_, err = env.AssignmentSvc.Publish(ctx, testutil.Actor(other), a.ID)
	assert.True(t, core.IsPermissionDenied(err))

	a, err = env.AssignmentSvc.Publish(ctx, actor, a.ID)
	require.NoError(t, err)
	assert.Equal(t, assignment.StatusPublished, a.Status)

	_, err = env.AssignmentSvc.Publish(ctx, actor, a.ID)
	assert.Error(t, err)

	a, err = env.AssignmentSvc.Close(ctx, actor, a.ID)
	require.NoError(t, err)
	assert.Equal(t, assignment.StatusClosed, a.Status)
	assert.False(t, a.IsActionable())

	// a direct update bypasses the guard
	draft := assignment.StatusDraft
	a, err = env.AssignmentSvc.Update(ctx, actor, a.ID, assignment.UpdateAssignment{Status: &draft})
	require.NoError(t, err)
	assert.Equal(t, assignment.StatusDraft, a.Status)
}

func TestService_Listings(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	now := time.Now()
	teacher := testutil.CreateUser(t, env.UserRepo, "Teacher", "teacher", "teacher@test.cd", pwd, user.RoleTeacher, true)
	ann := testutil.CreateUser(t, env.UserRepo, "Ann", "ann", "ann@test.cd", pwd, user.RoleStudent, true)
	bob := testutil.CreateUser(t, env.UserRepo, "Bob", "bob", "bob@test.cd", pwd, user.RoleStudent, true)
	c := testutil.CreateCourse(t, env.CourseRepo, teacher, "Maths")
	testutil.Enroll(t, env.CourseRepo, c, ann)

	later := testutil.CreateAssignment(t, env.AssignmentRepo, c, "Later", assignment.StatusPublished, now.Add(48*time.Hour), now.Add(-4*time.Hour))
	soon := testutil.CreateAssignment(t, env.AssignmentRepo, c, "Soon", assignment.StatusPublished, now.Add(time.Hour), now.Add(-3*time.Hour))
	missed := testutil.CreateAssignment(t, env.AssignmentRepo, c, "Missed", assignment.StatusPublished, now.Add(-time.Hour), now.Add(-2*time.Hour))
	done := testutil.CreateAssignment(t, env.AssignmentRepo, c, "Done", assignment.StatusPublished, now.Add(-2*time.Hour), now.Add(-90*time.Minute))
	closed := testutil.CreateAssignment(t, env.AssignmentRepo, c, "Closed", assignment.StatusClosed, now.Add(-3*time.Hour), now.Add(-80*time.Minute))
	draft := testutil.CreateAssignment(t, env.AssignmentRepo, c, "Draft", assignment.StatusDraft, now.Add(2*time.Hour), now.Add(-time.Hour))
	testutil.CreateSubmission(t, env.SubmissionRepo, done, ann, "answer", now.Add(-3*time.Hour))

	ids := func(as []assignment.Assignment) []string {
		out := make([]string, 0, len(as))
		for _, a := range as {
			out = append(out, a.ID)
		}
		return out
	}
	viewIDs := func(vs []assignment.View) []string {
		out := make([]string, 0, len(vs))
		for _, v := range vs {
			out = append(out, v.ID)
		}
		return out
	}

	t.Run("course as teacher", func(t *testing.T) {
		as, err := env.AssignmentSvc.ForCourse(ctx, testutil.Actor(teacher), c.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{closed.ID, done.ID, missed.ID, soon.ID, draft.ID, later.ID}, ids(as))
	})

	t.Run("course as student", func(t *testing.T) {
		as, err := env.AssignmentSvc.ForCourse(ctx, testutil.Actor(ann), c.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{closed.ID, done.ID, missed.ID, soon.ID, later.ID}, ids(as))

		_, err = env.AssignmentSvc.ForCourse(ctx, testutil.Actor(bob), c.ID)
		assert.True(t, core.IsPermissionDenied(err))
	})

	t.Run("teacher newest first", func(t *testing.T) {
		as, err := env.AssignmentSvc.ForTeacher(ctx, testutil.Actor(teacher), 3)
		require.NoError(t, err)
		assert.Equal(t, []string{draft.ID, closed.ID, done.ID}, ids(as))
	})

	t.Run("student board", func(t *testing.T) {
		board, err := env.AssignmentSvc.StudentBoard(ctx, testutil.Actor(ann))
		require.NoError(t, err)
		assert.Equal(t, []string{soon.ID, later.ID}, viewIDs(board.Active))
		assert.Equal(t, []string{missed.ID}, viewIDs(board.Overdue))
		assert.True(t, board.Overdue[0].IsOverdue)
		assert.False(t, board.Active[0].IsOverdue)

		_, err = env.AssignmentSvc.StudentBoard(ctx, testutil.Actor(teacher))
		assert.True(t, core.IsPermissionDenied(err))
	})

	t.Run("calendar", func(t *testing.T) {
		as, err := env.AssignmentSvc.Calendar(ctx, testutil.Actor(ann))
		require.NoError(t, err)
		assert.NotContains(t, ids(as), draft.ID)
		assert.Len(t, as, 5)

		as, err = env.AssignmentSvc.Calendar(ctx, testutil.Actor(teacher))
		require.NoError(t, err)
		assert.Len(t, as, 6)
	})
}
