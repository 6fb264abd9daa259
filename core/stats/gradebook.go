package stats

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/assignment"
	"github.com/trezcool/darasa/core/authz"
	"github.com/trezcool/darasa/core/course"
	"github.com/trezcool/darasa/core/submission"
)

// Gradebook is the grade matrix of a course: one row per enrolled student, one column per
// published or closed assignment, ordered by due date.
type Gradebook struct {
	Course      course.Course           `json:"course"`
	Assignments []assignment.Assignment `json:"assignments"`
	Rows        []GradebookRow          `json:"rows"`
}

type GradebookRow struct {
	StudentID   string   `json:"student_id"`
	StudentName string   `json:"student_name"`
	Username    string   `json:"username"`
	Grades      []*int   `json:"grades"` // aligned with Gradebook.Assignments; nil when missing or ungraded
	Average     *float64 `json:"average"`
}

// Gradebook builds the gradebook of a course the actor owns.
func (svc *Service) Gradebook(ctx context.Context, actor authz.Actor, courseID string) (Gradebook, error) {
	c, err := svc.courses.GetCourse(ctx, courseID)
	if err != nil {
		return Gradebook{}, err
	}
	if err = authz.Check(actor, authz.ExportGradebook, authz.Resource{CourseTeacherID: c.TeacherID}); err != nil {
		return Gradebook{}, err
	}

	as, err := svc.assignments.QueryAssignments(
		ctx,
		assignment.QueryFilter{
			CourseID: c.ID,
			Statuses: []assignment.Status{assignment.StatusPublished, assignment.StatusClosed},
		},
		[]core.DBOrdering{{Field: "due_date", Ascending: true}},
	)
	if err != nil {
		return Gradebook{}, errors.Wrap(err, "querying course assignments")
	}
	students, err := svc.courses.QueryStudents(ctx, c.ID)
	if err != nil {
		return Gradebook{}, errors.Wrap(err, "querying course students")
	}
	subs, err := svc.submissions.QuerySubmissions(
		ctx,
		submission.QueryFilter{TeacherID: c.TeacherID, Graded: boolPtr(true)},
		nil,
	)
	if err != nil {
		return Gradebook{}, errors.Wrap(err, "querying graded submissions")
	}

	column := make(map[string]int, len(as))
	for i, a := range as {
		column[a.ID] = i
	}
	grades := make(map[string][]*int, len(students)) // student id: grades per column
	for _, s := range subs {
		col, ok := column[s.AssignmentID]
		if !ok || s.Grade == nil {
			continue
		}
		row, ok := grades[s.StudentID]
		if !ok {
			row = make([]*int, len(as))
			grades[s.StudentID] = row
		}
		g := *s.Grade
		row[col] = &g
	}

	rows := make([]GradebookRow, 0, len(students))
	for _, st := range students {
		row, ok := grades[st.ID]
		if !ok {
			row = make([]*int, len(as))
		}
		var given []int
		for _, g := range row {
			if g != nil {
				given = append(given, *g)
			}
		}
		rows = append(rows, GradebookRow{
			StudentID:   st.ID,
			StudentName: st.DisplayName(),
			Username:    st.Username,
			Grades:      row,
			Average:     Average(given),
		})
	}
	return Gradebook{Course: c, Assignments: as, Rows: rows}, nil
}

func boolPtr(b bool) *bool { return &b }
