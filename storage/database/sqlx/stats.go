package sqlxrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/sqlboiler/v4/queries/qm"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/stats"
)

type gradeRecordRow struct {
	CourseID    string    `db:"course_id"`
	CourseTitle string    `db:"course_title"`
	Grade       int       `db:"grade"`
	GradedAt    time.Time `db:"graded_at"`
}

type statsRepository struct {
	db core.DB
}

var _ stats.Repository = (*statsRepository)(nil) // interface compliance check

func NewStatsRepository(db core.DB) stats.Repository {
	return &statsRepository{db: db}
}

func (repo *statsRepository) gradeRecords(ctx context.Context, where ...qm.QueryMod) ([]stats.GradeRecord, error) {
	mods := append([]qm.QueryMod{
		qm.Select(
			"a.course_id AS course_id",
			"c.title AS course_title",
			"s.grade AS grade",
			"COALESCE(s.graded_at, s.submitted_at) AS graded_at",
		),
		qm.From("submissions s"),
		qm.InnerJoin("assignments a ON a.id = s.assignment_id"),
		qm.InnerJoin("courses c ON c.id = a.course_id"),
		qm.Where("s.grade IS NOT NULL"),
	}, where...)
	mods = append(mods, qm.OrderBy("graded_at ASC, course_id ASC"))
	query, args := buildQuery(mods...)

	var rows []gradeRecordRow
	if err := repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	records := make([]stats.GradeRecord, 0, len(rows))
	for _, r := range rows {
		records = append(records, stats.GradeRecord{
			CourseID:    r.CourseID,
			CourseTitle: r.CourseTitle,
			Grade:       r.Grade,
			GradedAt:    r.GradedAt.UTC(),
		})
	}
	return records, nil
}

func (repo *statsRepository) StudentGrades(ctx context.Context, studentID string) ([]stats.GradeRecord, error) {
	if !validID(studentID) {
		return []stats.GradeRecord{}, nil
	}
	records, err := repo.gradeRecords(ctx, qm.Where("s.student_id = ?", studentID))
	return records, errors.Wrap(err, "querying student grades")
}

const studentProgressSQL = `
SELECT COUNT(a.id) AS assignments, COUNT(s.id) AS submitted
FROM assignments a
JOIN enrollments e ON e.course_id = a.course_id AND e.student_id = $1
LEFT JOIN submissions s ON s.assignment_id = a.id AND s.student_id = $1
WHERE a.status IN ('published', 'closed')`

func (repo *statsRepository) StudentProgress(ctx context.Context, studentID string) (stats.Progress, error) {
	var p stats.Progress
	if !validID(studentID) {
		return p, nil
	}
	var r struct {
		Assignments int `db:"assignments"`
		Submitted   int `db:"submitted"`
	}
	if err := repo.db.GetContext(ctx, &r, studentProgressSQL, studentID); err != nil {
		return p, errors.Wrap(err, "querying student progress")
	}
	return stats.Progress(r), nil
}

func (repo *statsRepository) TeacherGrades(ctx context.Context, teacherID string, since time.Time) ([]stats.GradeRecord, error) {
	if !validID(teacherID) {
		return []stats.GradeRecord{}, nil
	}
	where := []qm.QueryMod{qm.Where("a.teacher_id = ?", teacherID)}
	if !since.IsZero() {
		where = append(where, qm.Where("COALESCE(s.graded_at, s.submitted_at) >= ?", since))
	}
	records, err := repo.gradeRecords(ctx, where...)
	return records, errors.Wrap(err, "querying teacher grades")
}

const teacherCoursesSQL = `
SELECT
    c.id AS course_id,
    c.title AS title,
    (SELECT COUNT(*) FROM assignments a WHERE a.course_id = c.id) AS assignments,
    (SELECT COUNT(*) FROM enrollments e WHERE e.course_id = c.id) AS students
FROM courses c
WHERE c.teacher_id = $1
ORDER BY c.created_at`

func (repo *statsRepository) TeacherCourses(ctx context.Context, teacherID string) ([]stats.CourseSummary, error) {
	if !validID(teacherID) {
		return []stats.CourseSummary{}, nil
	}
	var rows []struct {
		CourseID    string `db:"course_id"`
		Title       string `db:"title"`
		Assignments int    `db:"assignments"`
		Students    int    `db:"students"`
	}
	if err := repo.db.SelectContext(ctx, &rows, teacherCoursesSQL, teacherID); err != nil {
		return nil, errors.Wrap(err, "querying teacher courses")
	}
	summaries := make([]stats.CourseSummary, 0, len(rows))
	for _, r := range rows {
		summaries = append(summaries, stats.CourseSummary(r))
	}
	return summaries, nil
}

const teacherTotalsSQL = `
SELECT
    (SELECT COUNT(*) FROM courses WHERE teacher_id = $1) AS courses,
    (SELECT COUNT(*) FROM assignments WHERE teacher_id = $1) AS assignments,
    (SELECT COUNT(DISTINCT e.student_id)
        FROM enrollments e JOIN courses c ON c.id = e.course_id
        WHERE c.teacher_id = $1) AS students,
    (SELECT COUNT(*)
        FROM submissions s JOIN assignments a ON a.id = s.assignment_id
        WHERE a.teacher_id = $1 AND s.grade IS NULL) AS to_grade`

func (repo *statsRepository) TeacherTotals(ctx context.Context, teacherID string) (stats.Totals, error) {
	var t stats.Totals
	if !validID(teacherID) {
		return t, nil
	}
	var r struct {
		Courses     int `db:"courses"`
		Assignments int `db:"assignments"`
		Students    int `db:"students"`
		ToGrade     int `db:"to_grade"`
	}
	if err := repo.db.GetContext(ctx, &r, teacherTotalsSQL, teacherID); err != nil {
		return t, errors.Wrap(err, "querying teacher totals")
	}
	return stats.Totals(r), nil
}
