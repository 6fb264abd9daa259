package submission

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/assignment"
)

// MaxGrade is the upper bound of any grade, whatever the assignment's max points.
const MaxGrade = 100

// ResubmitPolicy decides what happens when a student resubmits an already graded submission.
type ResubmitPolicy string

const (
	// ResubmitReject refuses the resubmission.
	ResubmitReject ResubmitPolicy = "reject"
	// ResubmitClearGrade accepts the resubmission and drops the grade and feedback.
	ResubmitClearGrade ResubmitPolicy = "clear"
	// ResubmitKeepGrade accepts the resubmission and leaves the grade untouched.
	ResubmitKeepGrade ResubmitPolicy = "keep"
)

func ParseResubmitPolicy(s string) (ResubmitPolicy, error) {
	switch p := ResubmitPolicy(core.CleanString(s, true /* lower */)); p {
	case ResubmitReject, ResubmitClearGrade, ResubmitKeepGrade:
		return p, nil
	case "":
		return ResubmitReject, nil
	}
	return "", errors.Errorf("unknown resubmit policy %q", s)
}

type Submission struct {
	ID           string     `json:"id"`
	AssignmentID string     `json:"assignment_id"`
	StudentID    string     `json:"student_id"`
	Content      string     `json:"content"`
	FileKey      string     `json:"-"`
	FileName     string     `json:"file_name,omitempty"`
	SubmittedAt  time.Time  `json:"submitted_at"`
	Grade        *int       `json:"grade"`
	Feedback     string     `json:"feedback"`
	GradedAt     *time.Time `json:"graded_at"`
}

func (s Submission) IsGraded() bool {
	return s.Grade != nil
}

func (s Submission) HasFile() bool {
	return s.FileKey != ""
}

// IsLate reports whether s was submitted strictly after the due date of a.
func (s Submission) IsLate(a assignment.Assignment) bool {
	return s.SubmittedAt.After(a.DueDate)
}

// GradePercentage returns the grade relative to the max points of a, on a 0-100 scale.
// It is 0 when s is not graded: use IsGraded to tell both apart.
func (s Submission) GradePercentage(a assignment.Assignment) float64 {
	if s.Grade == nil || a.MaxPoints <= 0 {
		return 0
	}
	return float64(*s.Grade) / float64(a.MaxPoints) * 100
}

// View is a Submission as rendered to clients.
type View struct {
	Submission
	AssignmentTitle string  `json:"assignment_title"`
	StudentName     string  `json:"student_name,omitempty"`
	MaxPoints       int     `json:"max_points"`
	HasFile         bool    `json:"has_file"`
	IsGraded        bool    `json:"is_graded"`
	IsLate          bool    `json:"is_late"`
	GradePercentage float64 `json:"grade_percentage"`
}

func NewView(s Submission, a assignment.Assignment) View {
	return View{
		Submission:      s,
		AssignmentTitle: a.Title,
		MaxPoints:       a.MaxPoints,
		HasFile:         s.HasFile(),
		IsGraded:        s.IsGraded(),
		IsLate:          s.IsLate(a),
		GradePercentage: s.GradePercentage(a),
	}
}

// Receipt is the outcome of a submit call.
type Receipt struct {
	View
	Created bool `json:"created"`
}

// File references an uploaded blob.
type File struct {
	Key  string
	Name string
}

// NewSubmission contains what a student submits.
type NewSubmission struct {
	Content string `json:"content" form:"content" validate:"required,notblank"`
	File    *File  `json:"-" form:"-"`
}

func (ns *NewSubmission) Validate(validate *validator.Validate) error {
	ns.Content = core.CleanString(ns.Content)
	return validate.Struct(ns)
}

// Grade contains what a teacher gives a submission.
type Grade struct {
	Grade    *int   `json:"grade" validate:"required,min=0,max=100"`
	Feedback string `json:"feedback" validate:"max=5000"`
}

func (g *Grade) Validate(validate *validator.Validate) error {
	g.Feedback = core.CleanString(g.Feedback)
	return validate.Struct(g)
}

// ErrAlreadyGraded is returned by repositories when the reject policy refuses a resubmission.
var ErrAlreadyGraded = errors.New("submission already graded")

type QueryFilter struct {
	AssignmentID string
	StudentID    string
	TeacherID    string // submissions to assignments created by the teacher
	Graded       *bool
	Limit        int
}
