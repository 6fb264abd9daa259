package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"github.com/volatiletech/sqlboiler/v4/queries/qm"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/assignment"
	"github.com/trezcool/darasa/core/submission"
	"github.com/trezcool/darasa/core/user"
)

var submissionColumns = map[string]string{
	"submitted_at": "submitted_at",
	"graded_at":    "graded_at",
	"grade":        "grade",
}

type submissionRow struct {
	ID           string      `db:"id"`
	AssignmentID string      `db:"assignment_id"`
	StudentID    string      `db:"student_id"`
	Content      string      `db:"content"`
	FileKey      null.String `db:"file_key"`
	FileName     null.String `db:"file_name"`
	SubmittedAt  time.Time   `db:"submitted_at"`
	Grade        null.Int    `db:"grade"`
	Feedback     string      `db:"feedback"`
	GradedAt     null.Time   `db:"graded_at"`
}

func (r submissionRow) unboil() submission.Submission {
	s := submission.Submission{
		ID:           r.ID,
		AssignmentID: r.AssignmentID,
		StudentID:    r.StudentID,
		Content:      r.Content,
		FileKey:      r.FileKey.String,
		FileName:     r.FileName.String,
		SubmittedAt:  r.SubmittedAt.UTC(),
		Grade:        r.Grade.Ptr(),
		Feedback:     r.Feedback,
	}
	if r.GradedAt.Valid {
		t := r.GradedAt.Time.UTC()
		s.GradedAt = &t
	}
	return s
}

type submissionRepository struct {
	db core.DB
}

var _ submission.Repository = (*submissionRepository)(nil) // interface compliance check

func NewSubmissionRepository(db core.DB) submission.Repository {
	return &submissionRepository{db: db}
}

// upsertSubmissionSQL keeps the row id across resubmissions and only replaces the file when a new one
// is given. Its placeholders take the extra SET columns and the WHERE guard of the resubmit policy.
const upsertSubmissionSQL = `
INSERT INTO submissions (id, assignment_id, student_id, content, file_key, file_name, submitted_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (assignment_id, student_id) DO UPDATE SET
    content = EXCLUDED.content,
    file_key = COALESCE(EXCLUDED.file_key, submissions.file_key),
    file_name = CASE WHEN EXCLUDED.file_key IS NULL THEN submissions.file_name ELSE EXCLUDED.file_name END,
    submitted_at = EXCLUDED.submitted_at%s
%s
RETURNING *, (xmax = 0) AS inserted`

func upsertSubmissionQuery(policy submission.ResubmitPolicy) string {
	switch policy {
	case submission.ResubmitClearGrade:
		return fmt.Sprintf(upsertSubmissionSQL, ",\n    grade = NULL,\n    feedback = '',\n    graded_at = NULL", "")
	case submission.ResubmitKeepGrade:
		return fmt.Sprintf(upsertSubmissionSQL, "", "")
	default:
		return fmt.Sprintf(upsertSubmissionSQL, "", "WHERE submissions.grade IS NULL")
	}
}

func (repo *submissionRepository) UpsertSubmission(ctx context.Context, s submission.Submission, policy submission.ResubmitPolicy) (submission.Submission, bool, error) {
	if !validID(s.AssignmentID) {
		return submission.Submission{}, false, assignment.ErrNotFound
	}
	if !validID(s.StudentID) {
		return submission.Submission{}, false, user.ErrNotFound
	}

	var r struct {
		submissionRow
		Inserted bool `db:"inserted"`
	}
	err := repo.db.GetContext(ctx, &r, upsertSubmissionQuery(policy),
		newID(), s.AssignmentID, s.StudentID, s.Content,
		null.NewString(s.FileKey, s.FileKey != ""), null.NewString(s.FileName, s.FileKey != ""), s.SubmittedAt)
	if err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			// the conflicting row exists but the WHERE guard refused the update
			return submission.Submission{}, false, submission.ErrAlreadyGraded
		}
		if pqErr, ok := pqError(err); ok && pqErr.Code == pqForeignKeyViolation {
			if pqErr.Constraint == "submissions_student_id_fkey" {
				return submission.Submission{}, false, user.ErrNotFound
			}
			return submission.Submission{}, false, assignment.ErrNotFound
		}
		return submission.Submission{}, false, errors.Wrap(err, "upserting submission")
	}
	return r.submissionRow.unboil(), r.Inserted, nil
}

func (repo *submissionRepository) GetSubmission(ctx context.Context, id string) (submission.Submission, error) {
	if !validID(id) {
		return submission.Submission{}, submission.ErrNotFound
	}
	var r submissionRow
	if err := repo.db.GetContext(ctx, &r, `SELECT * FROM submissions WHERE id = $1`, id); err != nil {
		return submission.Submission{}, trapNoRows(err, submission.ErrNotFound, "getting submission")
	}
	return r.unboil(), nil
}

func (repo *submissionRepository) GetStudentSubmission(ctx context.Context, assignmentID, studentID string) (submission.Submission, error) {
	if !validID(assignmentID) || !validID(studentID) {
		return submission.Submission{}, submission.ErrNotFound
	}
	var r submissionRow
	err := repo.db.GetContext(ctx, &r,
		`SELECT * FROM submissions WHERE assignment_id = $1 AND student_id = $2`, assignmentID, studentID)
	if err != nil {
		return submission.Submission{}, trapNoRows(err, submission.ErrNotFound, "getting student submission")
	}
	return r.unboil(), nil
}

func (repo *submissionRepository) QuerySubmissions(ctx context.Context, filter submission.QueryFilter, ordering []core.DBOrdering) ([]submission.Submission, error) {
	mods := []qm.QueryMod{qm.Select("*"), qm.From("submissions")}
	for _, f := range []struct {
		val    string
		clause string
	}{
		{filter.AssignmentID, "assignment_id = ?"},
		{filter.StudentID, "student_id = ?"},
		{filter.TeacherID, "assignment_id IN (SELECT id FROM assignments WHERE teacher_id = ?)"},
	} {
		if f.val == "" {
			continue
		}
		if !validID(f.val) {
			return []submission.Submission{}, nil
		}
		mods = append(mods, qm.Where(f.clause, f.val))
	}
	if filter.Graded != nil {
		if *filter.Graded {
			mods = append(mods, qm.Where("grade IS NOT NULL"))
		} else {
			mods = append(mods, qm.Where("grade IS NULL"))
		}
	}
	mods = append(mods, orderBy(ordering, submissionColumns)...)
	query, args := buildQuery(withLimit(mods, filter.Limit)...)

	var rows []submissionRow
	if err := repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying submissions")
	}
	subs := make([]submission.Submission, 0, len(rows))
	for _, r := range rows {
		subs = append(subs, r.unboil())
	}
	return subs, nil
}

// submitted_at is never touched by grading
const setGradeSQL = `
UPDATE submissions SET grade = $2, feedback = $3, graded_at = $4
WHERE id = $1
RETURNING *`

func (repo *submissionRepository) SetGrade(ctx context.Context, s submission.Submission) (submission.Submission, error) {
	if !validID(s.ID) {
		return submission.Submission{}, submission.ErrNotFound
	}
	var r submissionRow
	err := repo.db.GetContext(ctx, &r, setGradeSQL,
		s.ID, null.IntFromPtr(s.Grade), s.Feedback, null.TimeFromPtr(s.GradedAt))
	if err != nil {
		return submission.Submission{}, trapNoRows(err, submission.ErrNotFound, "setting grade")
	}
	return r.unboil(), nil
}
