package exportsvc

import (
	"strings"
	"testing"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/darasa/core/assignment"
	"github.com/trezcool/darasa/core/course"
	"github.com/trezcool/darasa/core/stats"
)

func intPtr(i int) *int           { return &i }
func floatPtr(f float64) *float64 { return &f }

func TestGradebook(t *testing.T) {
	gb := stats.Gradebook{
		Course: course.Course{ID: "c1", Title: "Algebra I"},
		Assignments: []assignment.Assignment{
			{ID: "a1", Title: "Quiz", MaxPoints: 20},
			{ID: "a2", Title: "Exam", MaxPoints: 100},
		},
		Rows: []stats.GradebookRow{
			{StudentName: "Ada", Username: "ada", Grades: []*int{intPtr(15), intPtr(80)}, Average: floatPtr(47.5)},
			{StudentName: "Bob", Username: "bob", Grades: []*int{nil, intPtr(61)}, Average: floatPtr(61)},
			{StudentName: "Cy", Username: "cy", Grades: []*int{nil, nil}},
		},
	}

	buf, name, err := Gradebook(gb)
	require.NoError(t, err)
	assert.Equal(t, "algebra-i-gradebook.xlsx", name)

	f, err := excelize.OpenReader(buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{gradebookSheet}, f.GetSheetList())
	tests := []struct {
		cell string
		want string
	}{
		{"A1", "Algebra I"},
		{"A2", "Student"},
		{"C2", "Quiz (/20)"},
		{"D2", "Exam (/100)"},
		{"E2", "Average"},
		{"A3", "Ada"},
		{"C3", "15"},
		{"E3", "47.5"},
		{"C4", "-"},
		{"D4", "61"},
		{"E5", "-"},
	}
	for _, tt := range tests {
		t.Run(tt.cell, func(t *testing.T) {
			got, err := f.GetCellValue(gradebookSheet, tt.cell)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGradebook_TooManyColumns(t *testing.T) {
	gb := stats.Gradebook{
		Course:      course.Course{ID: "c1", Title: "Algebra I"},
		Assignments: make([]assignment.Assignment, excelize.MaxColumns),
		Rows:        []stats.GradebookRow{{StudentName: "Ada", Username: "ada"}},
	}

	buf, name, err := Gradebook(gb)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "filling gradebook")
	assert.Nil(t, buf)
	assert.Empty(t, name)
}

func TestCalendar(t *testing.T) {
	due := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	as := []assignment.Assignment{
		{ID: "a1", Title: "Essay", Description: "500 words", DueDate: due, CreatedAt: due.AddDate(0, 0, -7), UpdatedAt: due.AddDate(0, 0, -7)},
		{ID: "a2", Title: "Lab", DueDate: due.AddDate(0, 0, 3), CreatedAt: due, UpdatedAt: due},
	}

	buf := Calendar("Darasa", "http://localhost:3000", as)
	cal, err := ics.ParseCalendar(strings.NewReader(buf.String()))
	require.NoError(t, err)

	events := cal.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "a1@Darasa", events[0].Id())
	assert.Equal(t, "Due: Essay", events[0].GetProperty(ics.ComponentPropertySummary).Value)
	assert.Equal(t, "http://localhost:3000/assignments/a2", events[1].GetProperty(ics.ComponentPropertyUrl).Value)

	end, err := events[0].GetEndAt()
	require.NoError(t, err)
	assert.True(t, end.Equal(due))
}

func Test_fileName(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"Algebra I", "algebra-i-gradebook.xlsx"},
		{"  ", "gradebook.xlsx"},
		{"Français & Co", "franais--co-gradebook.xlsx"},
	}
	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			assert.Equal(t, tt.want, fileName(tt.title, "gradebook", ".xlsx"))
		})
	}
}
