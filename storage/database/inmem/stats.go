package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/trezcool/darasa/core/assignment"
	"github.com/trezcool/darasa/core/stats"
)

type statsRepository struct {
	db *DB
}

var _ stats.Repository = (*statsRepository)(nil) // interface compliance check

func NewStatsRepository(db *DB) stats.Repository {
	return &statsRepository{db: db}
}

// gradeRecords returns the graded submissions accepted by keep, ordered by graded_at.
func (repo *statsRepository) gradeRecords(keep func(a *assignment.Assignment, studentID string) bool) []stats.GradeRecord {
	records := make([]stats.GradeRecord, 0)
	for _, s := range repo.db.submissions {
		if s.Grade == nil {
			continue
		}
		a, ok := repo.db.assignments[s.AssignmentID]
		if !ok || !keep(a, s.StudentID) {
			continue
		}
		rec := stats.GradeRecord{CourseID: a.CourseID, Grade: *s.Grade}
		if c, ok := repo.db.courses[a.CourseID]; ok {
			rec.CourseTitle = c.Title
		}
		if s.GradedAt != nil {
			rec.GradedAt = *s.GradedAt
		}
		records = append(records, rec)
	}
	sort.SliceStable(records, func(i, j int) bool {
		if c := cmpTime(records[i].GradedAt, records[j].GradedAt); c != 0 {
			return c < 0
		}
		return records[i].CourseID < records[j].CourseID
	})
	return records
}

func (repo *statsRepository) StudentGrades(_ context.Context, studentID string) ([]stats.GradeRecord, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	return repo.gradeRecords(func(_ *assignment.Assignment, sid string) bool { return sid == studentID }), nil
}

func (repo *statsRepository) StudentProgress(_ context.Context, studentID string) (stats.Progress, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var p stats.Progress
	courseIDs := repo.db.studentCourseIDs(studentID)
	for _, a := range repo.db.assignments {
		if !courseIDs[a.CourseID] || a.Status == assignment.StatusDraft {
			continue
		}
		p.Assignments++
		if repo.db.hasSubmitted(a.ID, studentID) {
			p.Submitted++
		}
	}
	return p, nil
}

func (repo *statsRepository) TeacherGrades(_ context.Context, teacherID string, since time.Time) ([]stats.GradeRecord, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	records := repo.gradeRecords(func(a *assignment.Assignment, _ string) bool { return a.TeacherID == teacherID })
	out := records[:0]
	for _, r := range records {
		if since.IsZero() || !r.GradedAt.Before(since) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (repo *statsRepository) TeacherCourses(_ context.Context, teacherID string) ([]stats.CourseSummary, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	summaries := make([]stats.CourseSummary, 0)
	for _, c := range repo.db.courses {
		if c.TeacherID != teacherID {
			continue
		}
		s := stats.CourseSummary{CourseID: c.ID, Title: c.Title}
		for k := range repo.db.enrollments {
			if k.courseID == c.ID {
				s.Students++
			}
		}
		for _, a := range repo.db.assignments {
			if a.CourseID == c.ID {
				s.Assignments++
			}
		}
		summaries = append(summaries, s)
	}
	repo.db.sortSlice(summaries, func(i int) string { return summaries[i].CourseID }, nil, func(string, int, int) int { return 0 })
	return summaries, nil
}

func (repo *statsRepository) TeacherTotals(_ context.Context, teacherID string) (stats.Totals, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var t stats.Totals
	students := make(map[string]bool)
	for _, c := range repo.db.courses {
		if c.TeacherID != teacherID {
			continue
		}
		t.Courses++
		for k := range repo.db.enrollments {
			if k.courseID == c.ID {
				students[k.studentID] = true
			}
		}
	}
	t.Students = len(students)
	for _, a := range repo.db.assignments {
		if a.TeacherID != teacherID {
			continue
		}
		t.Assignments++
		for _, s := range repo.db.submissions {
			if s.AssignmentID == a.ID && !s.IsGraded() {
				t.ToGrade++
			}
		}
	}
	return t, nil
}
