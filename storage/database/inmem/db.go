// Package inmemdb implements the repositories in memory. It backs the tests and the dev server when no
// database is configured.
package inmemdb

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/darasa/core/announcement"
	"github.com/trezcool/darasa/core/assignment"
	"github.com/trezcool/darasa/core/course"
	"github.com/trezcool/darasa/core/submission"
	"github.com/trezcool/darasa/core/user"
)

type enrollmentKey struct {
	courseID  string
	studentID string
}

// DB holds every table behind one lock, so that multi-table reads and the upserts are atomic.
type DB struct {
	mu sync.RWMutex

	users         map[string]*user.User
	profiles      map[string]*user.Profile // by account id
	courses       map[string]*course.Course
	enrollments   map[enrollmentKey]time.Time
	assignments   map[string]*assignment.Assignment
	submissions   map[string]*submission.Submission
	announcements map[string]*announcement.Announcement

	// insertion order, used to break ordering ties deterministically
	seq  int
	seqs map[string]int
}

func Open() *DB {
	return &DB{
		users:         make(map[string]*user.User),
		profiles:      make(map[string]*user.Profile),
		courses:       make(map[string]*course.Course),
		enrollments:   make(map[enrollmentKey]time.Time),
		assignments:   make(map[string]*assignment.Assignment),
		submissions:   make(map[string]*submission.Submission),
		announcements: make(map[string]*announcement.Announcement),
		seqs:          make(map[string]int),
	}
}

// Reset empties every table.
func (db *DB) Reset() {
	fresh := Open()
	db.mu.Lock()
	defer db.mu.Unlock()
	db.users = fresh.users
	db.profiles = fresh.profiles
	db.courses = fresh.courses
	db.enrollments = fresh.enrollments
	db.assignments = fresh.assignments
	db.submissions = fresh.submissions
	db.announcements = fresh.announcements
	db.seq = 0
	db.seqs = fresh.seqs
}

// DeleteProfile drops the profile of an account and keeps the account.
func (db *DB) DeleteProfile(accountID string) {
	db.mu.Lock()
	defer db.mu.Unlock()
	delete(db.profiles, accountID)
}

// newID must be called with the write lock held.
func (db *DB) newID() string {
	id := uuid.New().String()
	db.seq++
	db.seqs[id] = db.seq
	return id
}

func (db *DB) isEnrolled(courseID, studentID string) bool {
	_, ok := db.enrollments[enrollmentKey{courseID, studentID}]
	return ok
}

func (db *DB) studentCourseIDs(studentID string) map[string]bool {
	ids := make(map[string]bool)
	for k := range db.enrollments {
		if k.studentID == studentID {
			ids[k.courseID] = true
		}
	}
	return ids
}

func (db *DB) hasSubmitted(assignmentID, studentID string) bool {
	for _, s := range db.submissions {
		if s.AssignmentID == assignmentID && s.StudentID == studentID {
			return true
		}
	}
	return false
}

func limit(n, max int) int {
	if max > 0 && n > max {
		return max
	}
	return n
}
