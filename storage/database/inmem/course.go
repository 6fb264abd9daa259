package inmemdb

import (
	"context"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/course"
	"github.com/trezcool/darasa/core/user"
)

type courseRepository struct {
	db *DB
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *DB) course.Repository {
	return &courseRepository{db: db}
}

func (repo *courseRepository) CreateCourse(_ context.Context, c course.Course) (course.Course, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.users[c.TeacherID]; !ok {
		return course.Course{}, user.ErrNotFound
	}
	c.ID = repo.db.newID()
	repo.db.courses[c.ID] = &c
	return c, nil
}

func (repo *courseRepository) GetCourse(_ context.Context, id string) (course.Course, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if c, ok := repo.db.courses[id]; ok {
		return *c, nil
	}
	return course.Course{}, course.ErrNotFound
}

func (repo *courseRepository) UpdateCourse(_ context.Context, c course.Course) (course.Course, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	orig, ok := repo.db.courses[c.ID]
	if !ok {
		return course.Course{}, course.ErrNotFound
	}
	orig.Title = c.Title
	orig.Description = c.Description
	orig.UpdatedAt = c.UpdatedAt
	return *orig, nil
}

func (repo *courseRepository) DeleteCourse(_ context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.courses[id]; !ok {
		return course.ErrNotFound
	}
	delete(repo.db.courses, id)
	for k := range repo.db.enrollments {
		if k.courseID == id {
			delete(repo.db.enrollments, k)
		}
	}
	for aid, a := range repo.db.assignments {
		if a.CourseID != id {
			continue
		}
		for sid, s := range repo.db.submissions {
			if s.AssignmentID == aid {
				delete(repo.db.submissions, sid)
			}
		}
		delete(repo.db.assignments, aid)
	}
	for anID, an := range repo.db.announcements {
		if an.CourseID == id {
			delete(repo.db.announcements, anID)
		}
	}
	return nil
}

func (repo *courseRepository) QueryCourses(_ context.Context, filter course.QueryFilter, ordering []core.DBOrdering) ([]course.Course, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	courses := make([]course.Course, 0)
	for _, c := range repo.db.courses {
		if filter.TeacherID != "" && c.TeacherID != filter.TeacherID {
			continue
		}
		if filter.StudentID != "" && !repo.db.isEnrolled(c.ID, filter.StudentID) {
			continue
		}
		if filter.NotStudentID != "" && repo.db.isEnrolled(c.ID, filter.NotStudentID) {
			continue
		}
		courses = append(courses, *c)
	}

	repo.db.sortSlice(courses, func(i int) string { return courses[i].ID }, ordering, func(field string, i, j int) int {
		switch field {
		case "title":
			return cmpString(courses[i].Title, courses[j].Title)
		case "created_at":
			return cmpTime(courses[i].CreatedAt, courses[j].CreatedAt)
		case "updated_at":
			return cmpTime(courses[i].UpdatedAt, courses[j].UpdatedAt)
		}
		return 0
	})
	return courses[:limit(len(courses), filter.Limit)], nil
}

func (repo *courseRepository) Enroll(_ context.Context, courseID, studentID string) (bool, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.courses[courseID]; !ok {
		return false, course.ErrNotFound
	}
	if _, ok := repo.db.users[studentID]; !ok {
		return false, user.ErrNotFound
	}
	if repo.db.isEnrolled(courseID, studentID) {
		return false, nil
	}
	repo.db.enrollments[enrollmentKey{courseID, studentID}] = core.Now()
	return true, nil
}

func (repo *courseRepository) IsEnrolled(_ context.Context, courseID, studentID string) (bool, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return repo.db.isEnrolled(courseID, studentID), nil
}

func (repo *courseRepository) QueryStudents(_ context.Context, courseID string) ([]user.User, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	students := make([]user.User, 0)
	for k := range repo.db.enrollments {
		if k.courseID != courseID {
			continue
		}
		if usr, ok := repo.db.users[k.studentID]; ok {
			students = append(students, *usr)
		}
	}
	byName := []core.DBOrdering{{Field: "name", Ascending: true}, {Field: "username", Ascending: true}}
	repo.db.sortSlice(students, func(i int) string { return students[i].ID }, byName, func(field string, i, j int) int {
		if field == "name" {
			return cmpString(students[i].Name, students[j].Name)
		}
		return cmpString(students[i].Username, students[j].Username)
	})
	return students, nil
}

func (repo *courseRepository) CountCourse(_ context.Context, courseID string) (course.Counts, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var cnt course.Counts
	for k := range repo.db.enrollments {
		if k.courseID == courseID {
			cnt.Students++
		}
	}
	for _, a := range repo.db.assignments {
		if a.CourseID != courseID {
			continue
		}
		cnt.Assignments++
		for _, s := range repo.db.submissions {
			if s.AssignmentID == a.ID {
				cnt.TotalSubmissions++
				if s.IsGraded() {
					cnt.GradedSubmissions++
				}
			}
		}
	}
	return cnt, nil
}
