package sqlxrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/sqlboiler/v4/queries/qm"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/announcement"
	"github.com/trezcool/darasa/core/course"
)

var announcementColumns = map[string]string{
	"title":      "title",
	"created_at": "created_at",
}

type announcementRow struct {
	ID        string    `db:"id"`
	CourseID  string    `db:"course_id"`
	AuthorID  string    `db:"author_id"`
	Title     string    `db:"title"`
	Content   string    `db:"content"`
	CreatedAt time.Time `db:"created_at"`
}

func (r announcementRow) unboil() announcement.Announcement {
	return announcement.Announcement{
		ID:        r.ID,
		CourseID:  r.CourseID,
		AuthorID:  r.AuthorID,
		Title:     r.Title,
		Content:   r.Content,
		CreatedAt: r.CreatedAt.UTC(),
	}
}

type announcementRepository struct {
	db core.DB
}

var _ announcement.Repository = (*announcementRepository)(nil) // interface compliance check

func NewAnnouncementRepository(db core.DB) announcement.Repository {
	return &announcementRepository{db: db}
}

const insertAnnouncementSQL = `
INSERT INTO announcements (id, course_id, author_id, title, content, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING *`

func (repo *announcementRepository) CreateAnnouncement(ctx context.Context, an announcement.Announcement) (announcement.Announcement, error) {
	if !validID(an.CourseID) {
		return announcement.Announcement{}, course.ErrNotFound
	}
	var r announcementRow
	err := repo.db.GetContext(ctx, &r, insertAnnouncementSQL,
		newID(), an.CourseID, an.AuthorID, an.Title, an.Content, an.CreatedAt)
	if err != nil {
		if pqErr, ok := pqError(err); ok && pqErr.Code == pqForeignKeyViolation {
			return announcement.Announcement{}, course.ErrNotFound
		}
		return announcement.Announcement{}, errors.Wrap(err, "inserting announcement")
	}
	return r.unboil(), nil
}

func (repo *announcementRepository) QueryAnnouncements(ctx context.Context, filter announcement.QueryFilter, ordering []core.DBOrdering) ([]announcement.Announcement, error) {
	mods := []qm.QueryMod{qm.Select("*"), qm.From("announcements")}
	if filter.CourseID != "" {
		if !validID(filter.CourseID) {
			return []announcement.Announcement{}, nil
		}
		mods = append(mods, qm.Where("course_id = ?", filter.CourseID))
	}
	if filter.TeacherID != "" {
		if !validID(filter.TeacherID) {
			return []announcement.Announcement{}, nil
		}
		mods = append(mods, qm.Where("course_id IN (SELECT id FROM courses WHERE teacher_id = ?)", filter.TeacherID))
	}
	mods = append(mods, orderBy(ordering, announcementColumns)...)
	query, args := buildQuery(withLimit(mods, filter.Limit)...)

	var rows []announcementRow
	if err := repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying announcements")
	}
	ans := make([]announcement.Announcement, 0, len(rows))
	for _, r := range rows {
		ans = append(ans, r.unboil())
	}
	return ans, nil
}
