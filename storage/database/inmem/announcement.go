package inmemdb

import (
	"context"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/announcement"
	"github.com/trezcool/darasa/core/course"
)

type announcementRepository struct {
	db *DB
}

var _ announcement.Repository = (*announcementRepository)(nil) // interface compliance check

func NewAnnouncementRepository(db *DB) announcement.Repository {
	return &announcementRepository{db: db}
}

func (repo *announcementRepository) CreateAnnouncement(_ context.Context, an announcement.Announcement) (announcement.Announcement, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.courses[an.CourseID]; !ok {
		return announcement.Announcement{}, course.ErrNotFound
	}
	an.ID = repo.db.newID()
	repo.db.announcements[an.ID] = &an
	return an, nil
}

func (repo *announcementRepository) QueryAnnouncements(_ context.Context, filter announcement.QueryFilter, ordering []core.DBOrdering) ([]announcement.Announcement, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	ans := make([]announcement.Announcement, 0)
	for _, an := range repo.db.announcements {
		if filter.CourseID != "" && an.CourseID != filter.CourseID {
			continue
		}
		if filter.TeacherID != "" {
			c, ok := repo.db.courses[an.CourseID]
			if !ok || c.TeacherID != filter.TeacherID {
				continue
			}
		}
		ans = append(ans, *an)
	}

	repo.db.sortSlice(ans, func(i int) string { return ans[i].ID }, ordering, func(field string, i, j int) int {
		switch field {
		case "title":
			return cmpString(ans[i].Title, ans[j].Title)
		case "created_at":
			return cmpTime(ans[i].CreatedAt, ans[j].CreatedAt)
		}
		return 0
	})
	return ans[:limit(len(ans), filter.Limit)], nil
}
