package announcement

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/darasa/core"
)

// RecentLimit caps the announcements shown on a teacher's dashboard.
const RecentLimit = 5

// Announcement is an immutable message posted by a course's teacher.
type Announcement struct {
	ID        string    `json:"id"`
	CourseID  string    `json:"course_id"`
	AuthorID  string    `json:"author_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type NewAnnouncement struct {
	Title   string `json:"title" validate:"required,notblank,max=200"`
	Content string `json:"content" validate:"required,notblank"`
}

func (na *NewAnnouncement) Validate(validate *validator.Validate) error {
	na.Title = core.CleanString(na.Title)
	na.Content = core.CleanString(na.Content)
	return validate.Struct(na)
}

type QueryFilter struct {
	CourseID  string
	TeacherID string // announcements of the courses owned by the teacher
	Limit     int
}
