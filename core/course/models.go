package course

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/darasa/core"
)

type Course struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	TeacherID   string    `json:"teacher_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Detail is a Course with its counters.
type Detail struct {
	Course
	IsOwner           bool `json:"is_owner"`
	IsEnrolled        bool `json:"is_enrolled"`
	StudentsCount     int  `json:"students_count"`
	AssignmentsCount  int  `json:"assignments_count"`
	TotalSubmissions  int  `json:"total_submissions"`
	GradedSubmissions int  `json:"graded_submissions"`
}

// Counts are the aggregate numbers of a course.
type Counts struct {
	Students          int
	Assignments       int
	TotalSubmissions  int
	GradedSubmissions int
}

// EnrollStatus tells whether an enroll call added the student.
type EnrollStatus int

const (
	Enrolled EnrollStatus = iota + 1
	AlreadyEnrolled
)

func (s EnrollStatus) String() string {
	switch s {
	case Enrolled:
		return "enrolled"
	case AlreadyEnrolled:
		return "already enrolled"
	}
	return ""
}

// NewCourse contains information needed to create a new Course.
type NewCourse struct {
	Title       string `json:"title" validate:"required,notblank,max=200"`
	Description string `json:"description" validate:"required,notblank"`
}

func (nc *NewCourse) Validate(validate *validator.Validate) error {
	nc.Title = core.CleanString(nc.Title)
	nc.Description = core.CleanString(nc.Description)
	return validate.Struct(nc)
}

// UpdateCourse defines what information may be provided to modify an existing Course.
type UpdateCourse struct {
	Title       *string `json:"title" validate:"omitempty,notblank,max=200"`
	Description *string `json:"description" validate:"omitempty,notblank"`
}

func (uc *UpdateCourse) Validate(validate *validator.Validate) error {
	if uc.Title != nil {
		title := core.CleanString(*uc.Title)
		uc.Title = &title
		if title == "" {
			return core.NewValidationError(nil, core.FieldError{Field: "title", Error: "this field cannot be blank"})
		}
	}
	if uc.Description != nil {
		desc := core.CleanString(*uc.Description)
		uc.Description = &desc
		if desc == "" {
			return core.NewValidationError(nil, core.FieldError{Field: "description", Error: "this field cannot be blank"})
		}
	}
	return validate.Struct(uc)
}

type QueryFilter struct {
	TeacherID    string
	StudentID    string // enrolled
	NotStudentID string // not enrolled
	Limit        int
}
