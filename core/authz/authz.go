// Package authz holds the single rule table deciding which actor may perform which action on which
// resource.
package authz

import (
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/user"
)

// Actor is an authenticated account together with its role.
type Actor struct {
	ID   string
	Role user.Role
}

func NewActor(usr user.User, profile user.Profile) Actor {
	return Actor{ID: usr.ID, Role: profile.Role}
}

func (a Actor) IsTeacher() bool { return a.ID != "" && a.Role == user.RoleTeacher }
func (a Actor) IsStudent() bool { return a.ID != "" && a.Role == user.RoleStudent }

// Resource carries the ownership facts of the object an action targets.
// Only the facts relevant to the action need to be set.
type Resource struct {
	CourseTeacherID     string
	AssignmentTeacherID string
	SubmissionStudentID string
	Enrolled            bool // the actor is enrolled in the course
	Draft               bool // the assignment is a draft
	Published           bool // the assignment accepts submissions
}

type Action int

const (
	CreateCourse Action = iota + 1
	UpdateCourse
	DeleteCourse
	ViewCourse
	EnrollCourse
	ListStudents
	ExportGradebook
	CreateAssignment
	UpdateAssignment
	ViewAssignment
	SubmitAssignment
	ViewSubmission
	ListSubmissions
	GradeSubmission
	PostAnnouncement
	ViewAnnouncements
	ViewTeacherStatistics
	ViewStudentStatistics
)

var actionNames = map[Action]string{
	CreateCourse:          "create course",
	UpdateCourse:          "update course",
	DeleteCourse:          "delete course",
	ViewCourse:            "view course",
	EnrollCourse:          "enroll in course",
	ListStudents:          "list course students",
	ExportGradebook:       "export gradebook",
	CreateAssignment:      "create assignment",
	UpdateAssignment:      "update assignment",
	ViewAssignment:        "view assignment",
	SubmitAssignment:      "submit assignment",
	ViewSubmission:        "view submission",
	ListSubmissions:       "list submissions",
	GradeSubmission:       "grade submission",
	PostAnnouncement:      "post announcement",
	ViewAnnouncements:     "view announcements",
	ViewTeacherStatistics: "view teacher statistics",
	ViewStudentStatistics: "view student statistics",
}

func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return "unknown action"
}

type rule func(a Actor, r Resource) bool

func isTeacher(a Actor, _ Resource) bool { return a.IsTeacher() }
func isStudent(a Actor, _ Resource) bool { return a.IsStudent() }
func ownsCourse(a Actor, r Resource) bool {
	return r.CourseTeacherID != "" && r.CourseTeacherID == a.ID
}
func createdAssignment(a Actor, r Resource) bool {
	return r.AssignmentTeacherID != "" && r.AssignmentTeacherID == a.ID
}
func ownsSubmission(a Actor, r Resource) bool {
	return r.SubmissionStudentID != "" && r.SubmissionStudentID == a.ID
}
func enrolled(_ Actor, r Resource) bool  { return r.Enrolled }
func notDraft(_ Actor, r Resource) bool  { return !r.Draft }
func published(_ Actor, r Resource) bool { return r.Published }

func allOf(rules ...rule) rule {
	return func(a Actor, r Resource) bool {
		for _, fn := range rules {
			if !fn(a, r) {
				return false
			}
		}
		return true
	}
}

func anyOf(rules ...rule) rule {
	return func(a Actor, r Resource) bool {
		for _, fn := range rules {
			if fn(a, r) {
				return true
			}
		}
		return false
	}
}

var rules = map[Action]rule{
	CreateCourse:          isTeacher,
	UpdateCourse:          allOf(isTeacher, ownsCourse),
	DeleteCourse:          allOf(isTeacher, ownsCourse),
	ViewCourse:            anyOf(allOf(isTeacher, ownsCourse), allOf(isStudent, enrolled)),
	EnrollCourse:          isStudent,
	ListStudents:          allOf(isTeacher, ownsCourse),
	ExportGradebook:       allOf(isTeacher, ownsCourse),
	CreateAssignment:      allOf(isTeacher, ownsCourse),
	UpdateAssignment:      allOf(isTeacher, createdAssignment),
	ViewAssignment:        anyOf(allOf(isTeacher, createdAssignment), allOf(isStudent, enrolled, notDraft)),
	SubmitAssignment:      allOf(isStudent, enrolled, published),
	ViewSubmission:        anyOf(allOf(isTeacher, createdAssignment), allOf(isStudent, ownsSubmission)),
	ListSubmissions:       allOf(isTeacher, createdAssignment),
	GradeSubmission:       allOf(isTeacher, createdAssignment),
	PostAnnouncement:      allOf(isTeacher, ownsCourse),
	ViewAnnouncements:     anyOf(allOf(isTeacher, ownsCourse), allOf(isStudent, enrolled)),
	ViewTeacherStatistics: isTeacher,
	ViewStudentStatistics: isStudent,
}

// Can reports whether a may perform action on r. Unknown actions are denied.
func Can(a Actor, action Action, r Resource) bool {
	fn, ok := rules[action]
	if !ok {
		return false
	}
	return fn(a, r)
}

// Check is Can returning core.ErrPermissionDenied on denial.
func Check(a Actor, action Action, r Resource) error {
	if Can(a, action, r) {
		return nil
	}
	return errors.Wrap(core.ErrPermissionDenied, action.String())
}
