package assignment

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/darasa/core"
)

type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
	StatusClosed    Status = "closed"

	DefaultMaxPoints = 100
)

var transitions = map[Status]Status{
	StatusDraft:     StatusPublished,
	StatusPublished: StatusClosed,
}

func (s Status) IsValid() bool {
	return s == StatusDraft || s == StatusPublished || s == StatusClosed
}

// CanTransitionTo reports whether next directly follows s in the draft -> published -> closed flow.
func (s Status) CanTransitionTo(next Status) bool {
	return transitions[s] == next
}

type Assignment struct {
	ID          string    `json:"id"`
	CourseID    string    `json:"course_id"`
	TeacherID   string    `json:"teacher_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	DueDate     time.Time `json:"due_date"`
	MaxPoints   int       `json:"max_points"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// IsOverdue reports whether now is past the due date.
func (a Assignment) IsOverdue(now time.Time) bool {
	return now.After(a.DueDate)
}

// IsActionable reports whether students may submit.
func (a Assignment) IsActionable() bool {
	return a.Status == StatusPublished
}

// View is an Assignment as rendered to clients.
type View struct {
	Assignment
	IsOverdue bool `json:"is_overdue"`
}

func NewView(a Assignment, now time.Time) View {
	return View{Assignment: a, IsOverdue: a.IsOverdue(now)}
}

func NewViews(as []Assignment, now time.Time) []View {
	views := make([]View, 0, len(as))
	for _, a := range as {
		views = append(views, NewView(a, now))
	}
	return views
}

// Board splits the published assignments of a student into active and overdue-unsubmitted ones.
type Board struct {
	Active  []View `json:"active"`
	Overdue []View `json:"overdue"`
}

// NewAssignment contains information needed to create a new Assignment.
type NewAssignment struct {
	CourseID    string    `json:"course_id" validate:"required,uuid"`
	Title       string    `json:"title" validate:"required,notblank,max=200"`
	Description string    `json:"description" validate:"required,notblank"`
	DueDate     time.Time `json:"due_date" validate:"required"`
	MaxPoints   int       `json:"max_points" validate:"omitempty,min=1,max=100"`
	Status      Status    `json:"status" validate:"omitempty,oneof=draft published closed"`
}

func (na *NewAssignment) Validate(validate *validator.Validate) error {
	na.CourseID = core.CleanString(na.CourseID, true /* lower */)
	na.Title = core.CleanString(na.Title)
	na.Description = core.CleanString(na.Description)
	if err := validate.Struct(na); err != nil {
		return err
	}
	if na.MaxPoints == 0 {
		na.MaxPoints = DefaultMaxPoints
	}
	if na.Status == "" {
		na.Status = StatusDraft
	}
	return nil
}

// UpdateAssignment defines what information may be provided to modify an existing Assignment.
// Setting Status directly bypasses the transition guard.
type UpdateAssignment struct {
	Title       *string    `json:"title" validate:"omitempty,notblank,max=200"`
	Description *string    `json:"description" validate:"omitempty,notblank"`
	DueDate     *time.Time `json:"due_date"`
	MaxPoints   *int       `json:"max_points" validate:"omitempty,min=1,max=100"`
	Status      *Status    `json:"status" validate:"omitempty,oneof=draft published closed"`
}

func (ua *UpdateAssignment) Validate(validate *validator.Validate) error {
	if ua.Title != nil {
		title := core.CleanString(*ua.Title)
		ua.Title = &title
	}
	if ua.Description != nil {
		desc := core.CleanString(*ua.Description)
		ua.Description = &desc
	}
	if ua.DueDate != nil && ua.DueDate.IsZero() {
		return core.NewValidationError(nil, core.FieldError{Field: "due_date", Error: "this field is required"})
	}
	return validate.Struct(ua)
}

type QueryFilter struct {
	CourseID       string
	TeacherID      string
	StudentID      string // assignments of the courses the student is enrolled in
	Statuses       []Status
	DueAfter       time.Time
	DueBefore      time.Time
	NotSubmittedBy string
	Limit          int
}
