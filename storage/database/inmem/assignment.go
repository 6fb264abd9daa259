package inmemdb

import (
	"context"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/assignment"
	"github.com/trezcool/darasa/core/course"
)

type assignmentRepository struct {
	db *DB
}

var _ assignment.Repository = (*assignmentRepository)(nil) // interface compliance check

func NewAssignmentRepository(db *DB) assignment.Repository {
	return &assignmentRepository{db: db}
}

func (repo *assignmentRepository) CreateAssignment(_ context.Context, a assignment.Assignment) (assignment.Assignment, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.courses[a.CourseID]; !ok {
		return assignment.Assignment{}, course.ErrNotFound
	}
	a.ID = repo.db.newID()
	repo.db.assignments[a.ID] = &a
	return a, nil
}

func (repo *assignmentRepository) GetAssignment(_ context.Context, id string) (assignment.Assignment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if a, ok := repo.db.assignments[id]; ok {
		return *a, nil
	}
	return assignment.Assignment{}, assignment.ErrNotFound
}

func (repo *assignmentRepository) UpdateAssignment(_ context.Context, a assignment.Assignment) (assignment.Assignment, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	orig, ok := repo.db.assignments[a.ID]
	if !ok {
		return assignment.Assignment{}, assignment.ErrNotFound
	}
	orig.Title = a.Title
	orig.Description = a.Description
	orig.DueDate = a.DueDate
	orig.MaxPoints = a.MaxPoints
	orig.Status = a.Status
	orig.UpdatedAt = a.UpdatedAt
	return *orig, nil
}

func (repo *assignmentRepository) QueryAssignments(_ context.Context, filter assignment.QueryFilter, ordering []core.DBOrdering) ([]assignment.Assignment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var courseIDs map[string]bool
	if filter.StudentID != "" {
		courseIDs = repo.db.studentCourseIDs(filter.StudentID)
	}
	statuses := make(map[assignment.Status]bool, len(filter.Statuses))
	for _, st := range filter.Statuses {
		statuses[st] = true
	}

	as := make([]assignment.Assignment, 0)
	for _, a := range repo.db.assignments {
		switch {
		case filter.CourseID != "" && a.CourseID != filter.CourseID,
			filter.TeacherID != "" && a.TeacherID != filter.TeacherID,
			courseIDs != nil && !courseIDs[a.CourseID],
			len(statuses) > 0 && !statuses[a.Status],
			!filter.DueAfter.IsZero() && !a.DueDate.After(filter.DueAfter),
			!filter.DueBefore.IsZero() && !a.DueDate.Before(filter.DueBefore),
			filter.NotSubmittedBy != "" && repo.db.hasSubmitted(a.ID, filter.NotSubmittedBy):
			continue
		}
		as = append(as, *a)
	}

	repo.db.sortSlice(as, func(i int) string { return as[i].ID }, ordering, func(field string, i, j int) int {
		switch field {
		case "title":
			return cmpString(as[i].Title, as[j].Title)
		case "due_date":
			return cmpTime(as[i].DueDate, as[j].DueDate)
		case "max_points":
			return cmpInt(as[i].MaxPoints, as[j].MaxPoints)
		case "created_at":
			return cmpTime(as[i].CreatedAt, as[j].CreatedAt)
		case "updated_at":
			return cmpTime(as[i].UpdatedAt, as[j].UpdatedAt)
		}
		return 0
	})
	return as[:limit(len(as), filter.Limit)], nil
}
