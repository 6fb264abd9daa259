package sqlxrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/sqlboiler/v4/queries/qm"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/assignment"
	"github.com/trezcool/darasa/core/course"
)

var assignmentColumns = map[string]string{
	"title":      "title",
	"due_date":   "due_date",
	"max_points": "max_points",
	"created_at": "created_at",
	"updated_at": "updated_at",
}

type assignmentRow struct {
	ID          string    `db:"id"`
	CourseID    string    `db:"course_id"`
	TeacherID   string    `db:"teacher_id"`
	Title       string    `db:"title"`
	Description string    `db:"description"`
	DueDate     time.Time `db:"due_date"`
	MaxPoints   int       `db:"max_points"`
	Status      string    `db:"status"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (r assignmentRow) unboil() assignment.Assignment {
	return assignment.Assignment{
		ID:          r.ID,
		CourseID:    r.CourseID,
		TeacherID:   r.TeacherID,
		Title:       r.Title,
		Description: r.Description,
		DueDate:     r.DueDate.UTC(),
		MaxPoints:   r.MaxPoints,
		Status:      assignment.Status(r.Status),
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
}

type assignmentRepository struct {
	db core.DB
}

var _ assignment.Repository = (*assignmentRepository)(nil) // interface compliance check

func NewAssignmentRepository(db core.DB) assignment.Repository {
	return &assignmentRepository{db: db}
}

const insertAssignmentSQL = `
INSERT INTO assignments (id, course_id, teacher_id, title, description, due_date, max_points, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING *`

func (repo *assignmentRepository) CreateAssignment(ctx context.Context, a assignment.Assignment) (assignment.Assignment, error) {
	if !validID(a.CourseID) {
		return assignment.Assignment{}, course.ErrNotFound
	}
	var r assignmentRow
	err := repo.db.GetContext(ctx, &r, insertAssignmentSQL,
		newID(), a.CourseID, a.TeacherID, a.Title, a.Description, a.DueDate, a.MaxPoints, string(a.Status), a.CreatedAt, a.UpdatedAt)
	if err != nil {
		if pqErr, ok := pqError(err); ok && pqErr.Code == pqForeignKeyViolation {
			return assignment.Assignment{}, course.ErrNotFound
		}
		return assignment.Assignment{}, errors.Wrap(err, "inserting assignment")
	}
	return r.unboil(), nil
}

func (repo *assignmentRepository) GetAssignment(ctx context.Context, id string) (assignment.Assignment, error) {
	if !validID(id) {
		return assignment.Assignment{}, assignment.ErrNotFound
	}
	var r assignmentRow
	if err := repo.db.GetContext(ctx, &r, `SELECT * FROM assignments WHERE id = $1`, id); err != nil {
		return assignment.Assignment{}, trapNoRows(err, assignment.ErrNotFound, "getting assignment")
	}
	return r.unboil(), nil
}

const updateAssignmentSQL = `
UPDATE assignments SET
    title = $2,
    description = $3,
    due_date = $4,
    max_points = $5,
    status = $6,
    updated_at = $7
WHERE id = $1
RETURNING *`

func (repo *assignmentRepository) UpdateAssignment(ctx context.Context, a assignment.Assignment) (assignment.Assignment, error) {
	if !validID(a.ID) {
		return assignment.Assignment{}, assignment.ErrNotFound
	}
	var r assignmentRow
	err := repo.db.GetContext(ctx, &r, updateAssignmentSQL,
		a.ID, a.Title, a.Description, a.DueDate, a.MaxPoints, string(a.Status), a.UpdatedAt)
	if err != nil {
		return assignment.Assignment{}, trapNoRows(err, assignment.ErrNotFound, "updating assignment")
	}
	return r.unboil(), nil
}

func (repo *assignmentRepository) QueryAssignments(ctx context.Context, filter assignment.QueryFilter, ordering []core.DBOrdering) ([]assignment.Assignment, error) {
	mods := []qm.QueryMod{qm.Select("*"), qm.From("assignments")}
	for _, f := range []struct {
		val    string
		clause string
	}{
		{filter.CourseID, "course_id = ?"},
		{filter.TeacherID, "teacher_id = ?"},
		{filter.StudentID, "course_id IN (SELECT course_id FROM enrollments WHERE student_id = ?)"},
		{filter.NotSubmittedBy, "NOT EXISTS (SELECT 1 FROM submissions s WHERE s.assignment_id = assignments.id AND s.student_id = ?)"},
	} {
		if f.val == "" {
			continue
		}
		if !validID(f.val) {
			return []assignment.Assignment{}, nil
		}
		mods = append(mods, qm.Where(f.clause, f.val))
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]interface{}, 0, len(filter.Statuses))
		for _, st := range filter.Statuses {
			statuses = append(statuses, string(st))
		}
		mods = append(mods, qm.WhereIn("status IN ?", statuses...))
	}
	if !filter.DueAfter.IsZero() {
		mods = append(mods, qm.Where("due_date > ?", filter.DueAfter))
	}
	if !filter.DueBefore.IsZero() {
		mods = append(mods, qm.Where("due_date < ?", filter.DueBefore))
	}
	mods = append(mods, orderBy(ordering, assignmentColumns)...)
	query, args := buildQuery(withLimit(mods, filter.Limit)...)

	var rows []assignmentRow
	if err := repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying assignments")
	}
	as := make([]assignment.Assignment, 0, len(rows))
	for _, r := range rows {
		as = append(as, r.unboil())
	}
	return as, nil
}
