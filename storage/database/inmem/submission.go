package inmemdb

import (
	"context"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/assignment"
	"github.com/trezcool/darasa/core/submission"
	"github.com/trezcool/darasa/core/user"
)

type submissionRepository struct {
	db *DB
}

var _ submission.Repository = (*submissionRepository)(nil) // interface compliance check

func NewSubmissionRepository(db *DB) submission.Repository {
	return &submissionRepository{db: db}
}

func (repo *submissionRepository) find(assignmentID, studentID string) *submission.Submission {
	for _, s := range repo.db.submissions {
		if s.AssignmentID == assignmentID && s.StudentID == studentID {
			return s
		}
	}
	return nil
}

func (repo *submissionRepository) UpsertSubmission(_ context.Context, s submission.Submission, policy submission.ResubmitPolicy) (submission.Submission, bool, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.assignments[s.AssignmentID]; !ok {
		return submission.Submission{}, false, assignment.ErrNotFound
	}
	if _, ok := repo.db.users[s.StudentID]; !ok {
		return submission.Submission{}, false, user.ErrNotFound
	}

	existing := repo.find(s.AssignmentID, s.StudentID)
	if existing == nil {
		s.ID = repo.db.newID()
		s.Grade, s.GradedAt, s.Feedback = nil, nil, ""
		repo.db.submissions[s.ID] = &s
		return s, true, nil
	}

	if existing.IsGraded() {
		switch policy {
		case submission.ResubmitClearGrade:
			existing.Grade, existing.GradedAt, existing.Feedback = nil, nil, ""
		case submission.ResubmitKeepGrade:
		default:
			return submission.Submission{}, false, submission.ErrAlreadyGraded
		}
	}
	existing.Content = s.Content
	if s.FileKey != "" {
		existing.FileKey = s.FileKey
		existing.FileName = s.FileName
	}
	existing.SubmittedAt = s.SubmittedAt
	return *existing, false, nil
}

func (repo *submissionRepository) GetSubmission(_ context.Context, id string) (submission.Submission, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if s, ok := repo.db.submissions[id]; ok {
		return *s, nil
	}
	return submission.Submission{}, submission.ErrNotFound
}

func (repo *submissionRepository) GetStudentSubmission(_ context.Context, assignmentID, studentID string) (submission.Submission, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if s := repo.find(assignmentID, studentID); s != nil {
		return *s, nil
	}
	return submission.Submission{}, submission.ErrNotFound
}

func (repo *submissionRepository) QuerySubmissions(_ context.Context, filter submission.QueryFilter, ordering []core.DBOrdering) ([]submission.Submission, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	subs := make([]submission.Submission, 0)
	for _, s := range repo.db.submissions {
		if filter.AssignmentID != "" && s.AssignmentID != filter.AssignmentID {
			continue
		}
		if filter.StudentID != "" && s.StudentID != filter.StudentID {
			continue
		}
		if filter.TeacherID != "" {
			a, ok := repo.db.assignments[s.AssignmentID]
			if !ok || a.TeacherID != filter.TeacherID {
				continue
			}
		}
		if filter.Graded != nil && s.IsGraded() != *filter.Graded {
			continue
		}
		subs = append(subs, *s)
	}

	repo.db.sortSlice(subs, func(i int) string { return subs[i].ID }, ordering, func(field string, i, j int) int {
		switch field {
		case "submitted_at":
			return cmpTime(subs[i].SubmittedAt, subs[j].SubmittedAt)
		case "graded_at":
			var a, b int64
			if subs[i].GradedAt != nil {
				a = subs[i].GradedAt.UnixNano()
			}
			if subs[j].GradedAt != nil {
				b = subs[j].GradedAt.UnixNano()
			}
			return cmpInt(int(a), int(b))
		}
		return 0
	})
	return subs[:limit(len(subs), filter.Limit)], nil
}

func (repo *submissionRepository) SetGrade(_ context.Context, s submission.Submission) (submission.Submission, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	orig, ok := repo.db.submissions[s.ID]
	if !ok {
		return submission.Submission{}, submission.ErrNotFound
	}
	orig.Grade = s.Grade
	orig.Feedback = s.Feedback
	orig.GradedAt = s.GradedAt
	return *orig, nil
}
