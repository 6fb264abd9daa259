package sqlxrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/sqlboiler/v4/queries/qm"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/course"
	"github.com/trezcool/darasa/core/user"
)

var courseColumns = map[string]string{
	"title":      "title",
	"created_at": "created_at",
	"updated_at": "updated_at",
}

type courseRow struct {
	ID          string    `db:"id"`
	Title       string    `db:"title"`
	Description string    `db:"description"`
	TeacherID   string    `db:"teacher_id"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (r courseRow) unboil() course.Course {
	return course.Course{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		TeacherID:   r.TeacherID,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

type courseRepository struct {
	db core.DB
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db core.DB) course.Repository {
	return &courseRepository{db: db}
}

const insertCourseSQL = `
INSERT INTO courses (id, title, description, teacher_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING *`

func (repo *courseRepository) CreateCourse(ctx context.Context, c course.Course) (course.Course, error) {
	if !validID(c.TeacherID) {
		return course.Course{}, user.ErrNotFound
	}
	var r courseRow
	err := repo.db.GetContext(ctx, &r, insertCourseSQL, newID(), c.Title, c.Description, c.TeacherID, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		if pqErr, ok := pqError(err); ok && pqErr.Code == pqForeignKeyViolation {
			return course.Course{}, user.ErrNotFound
		}
		return course.Course{}, errors.Wrap(err, "inserting course")
	}
	return r.unboil(), nil
}

func (repo *courseRepository) GetCourse(ctx context.Context, id string) (course.Course, error) {
	if !validID(id) {
		return course.Course{}, course.ErrNotFound
	}
	var r courseRow
	if err := repo.db.GetContext(ctx, &r, `SELECT * FROM courses WHERE id = $1`, id); err != nil {
		return course.Course{}, trapNoRows(err, course.ErrNotFound, "getting course")
	}
	return r.unboil(), nil
}

func (repo *courseRepository) UpdateCourse(ctx context.Context, c course.Course) (course.Course, error) {
	if !validID(c.ID) {
		return course.Course{}, course.ErrNotFound
	}
	var r courseRow
	err := repo.db.GetContext(ctx, &r,
		`UPDATE courses SET title = $2, description = $3, updated_at = $4 WHERE id = $1 RETURNING *`,
		c.ID, c.Title, c.Description, c.UpdatedAt)
	if err != nil {
		return course.Course{}, trapNoRows(err, course.ErrNotFound, "updating course")
	}
	return r.unboil(), nil
}

// DeleteCourse relies on ON DELETE CASCADE for enrollments, assignments, submissions and announcements.
func (repo *courseRepository) DeleteCourse(ctx context.Context, id string) error {
	if !validID(id) {
		return course.ErrNotFound
	}
	res, err := repo.db.ExecContext(ctx, `DELETE FROM courses WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting course")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "deleting course")
	}
	if n == 0 {
		return course.ErrNotFound
	}
	return nil
}

func (repo *courseRepository) QueryCourses(ctx context.Context, filter course.QueryFilter, ordering []core.DBOrdering) ([]course.Course, error) {
	mods := []qm.QueryMod{qm.Select("*"), qm.From("courses")}
	if filter.TeacherID != "" {
		if !validID(filter.TeacherID) {
			return []course.Course{}, nil
		}
		mods = append(mods, qm.Where("teacher_id = ?", filter.TeacherID))
	}
	if filter.StudentID != "" {
		if !validID(filter.StudentID) {
			return []course.Course{}, nil
		}
		mods = append(mods, qm.Where("id IN (SELECT course_id FROM enrollments WHERE student_id = ?)", filter.StudentID))
	}
	if filter.NotStudentID != "" && validID(filter.NotStudentID) {
		mods = append(mods, qm.Where("id NOT IN (SELECT course_id FROM enrollments WHERE student_id = ?)", filter.NotStudentID))
	}
	mods = append(mods, orderBy(ordering, courseColumns)...)
	query, args := buildQuery(withLimit(mods, filter.Limit)...)

	var rows []courseRow
	if err := repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}
	courses := make([]course.Course, 0, len(rows))
	for _, r := range rows {
		courses = append(courses, r.unboil())
	}
	return courses, nil
}

const enrollSQL = `
INSERT INTO enrollments (course_id, student_id, enrolled_at)
VALUES ($1, $2, $3)
ON CONFLICT (course_id, student_id) DO NOTHING`

func (repo *courseRepository) Enroll(ctx context.Context, courseID, studentID string) (bool, error) {
	if !validID(courseID) {
		return false, course.ErrNotFound
	}
	if !validID(studentID) {
		return false, user.ErrNotFound
	}
	res, err := repo.db.ExecContext(ctx, enrollSQL, courseID, studentID, core.Now())
	if err != nil {
		if pqErr, ok := pqError(err); ok && pqErr.Code == pqForeignKeyViolation {
			if pqErr.Constraint == "enrollments_student_id_fkey" {
				return false, user.ErrNotFound
			}
			return false, course.ErrNotFound
		}
		return false, errors.Wrap(err, "inserting enrollment")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "inserting enrollment")
	}
	return n > 0, nil
}

func (repo *courseRepository) IsEnrolled(ctx context.Context, courseID, studentID string) (bool, error) {
	if !validID(courseID) || !validID(studentID) {
		return false, nil
	}
	var ok bool
	err := repo.db.GetContext(ctx, &ok,
		`SELECT EXISTS (SELECT 1 FROM enrollments WHERE course_id = $1 AND student_id = $2)`, courseID, studentID)
	return ok, errors.Wrap(err, "checking enrollment")
}

const selectStudentsSQL = `
SELECT u.* FROM users u
JOIN enrollments e ON e.student_id = u.id
WHERE e.course_id = $1
ORDER BY u.name, u.username`

func (repo *courseRepository) QueryStudents(ctx context.Context, courseID string) ([]user.User, error) {
	if !validID(courseID) {
		return []user.User{}, nil
	}
	var rows []userRow
	if err := repo.db.SelectContext(ctx, &rows, selectStudentsSQL, courseID); err != nil {
		return nil, errors.Wrap(err, "querying course students")
	}
	students := make([]user.User, 0, len(rows))
	for _, r := range rows {
		students = append(students, r.unboil())
	}
	return students, nil
}

const countCourseSQL = `
SELECT
    (SELECT COUNT(*) FROM enrollments WHERE course_id = $1) AS students,
    (SELECT COUNT(*) FROM assignments WHERE course_id = $1) AS assignments,
    COUNT(s.id) AS total_submissions,
    COUNT(s.grade) AS graded_submissions
FROM submissions s
JOIN assignments a ON a.id = s.assignment_id
WHERE a.course_id = $1`

func (repo *courseRepository) CountCourse(ctx context.Context, courseID string) (course.Counts, error) {
	var cnt course.Counts
	if !validID(courseID) {
		return cnt, course.ErrNotFound
	}
	var r struct {
		Students          int `db:"students"`
		Assignments       int `db:"assignments"`
		TotalSubmissions  int `db:"total_submissions"`
		GradedSubmissions int `db:"graded_submissions"`
	}
	if err := repo.db.GetContext(ctx, &r, countCourseSQL, courseID); err != nil {
		return cnt, errors.Wrap(err, "counting course")
	}
	return course.Counts(r), nil
}
