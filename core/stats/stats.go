// Package stats computes read-side aggregates: averages, success rates, dashboards and activity feeds.
// Nothing here is persisted.
package stats

import (
	"sort"
	"time"
)

const (
	// ActivityLimit is the default length of an activity feed.
	ActivityLimit = 5
	// MonthsBack is how many months of grades the teacher statistics cover, current month included.
	MonthsBack = 6
)

type ActivityKind string

const (
	ActivitySubmission   ActivityKind = "submission"
	ActivityAnnouncement ActivityKind = "announcement"
	ActivityAssignment   ActivityKind = "assignment"
)

type Activity struct {
	Kind     ActivityKind `json:"kind"`
	At       time.Time    `json:"at"`
	Title    string       `json:"title"`
	CourseID string       `json:"course_id,omitempty"`
	RefID    string       `json:"ref_id"`
}

// GradeRecord is one graded submission, as seen by the aggregates.
type GradeRecord struct {
	CourseID    string
	CourseTitle string
	Grade       int
	GradedAt    time.Time
}

// Progress counts the assignments a student is expected to do and the ones they submitted.
type Progress struct {
	Assignments int // published and closed assignments of enrolled courses
	Submitted   int
}

type CourseGrade struct {
	CourseID     string   `json:"course_id"`
	CourseTitle  string   `json:"course_title"`
	AverageGrade *float64 `json:"average_grade"`
	Grades       int      `json:"grades"`
}

type MonthlyGrade struct {
	Month        string   `json:"month"` // YYYY-MM
	AverageGrade *float64 `json:"average_grade"`
	Grades       int      `json:"grades"`
}

type CourseSummary struct {
	CourseID    string `json:"course_id"`
	Title       string `json:"title"`
	Assignments int    `json:"assignments_count"`
	Students    int    `json:"students_count"`
}

type CourseStats struct {
	CourseSummary
	AverageGrade *float64 `json:"average_grade"`
}

// Totals are the headline counters of a teacher.
type Totals struct {
	Courses     int `json:"courses_count"`
	Assignments int `json:"assignments_count"`
	Students    int `json:"students_count"` // distinct
	ToGrade     int `json:"submissions_to_grade"`
}

type TeacherStatistics struct {
	Totals
	Courses []CourseStats  `json:"courses"`
	Monthly []MonthlyGrade `json:"monthly_grades"`
}

type StudentStatistics struct {
	AverageGrade *float64      `json:"average_grade"`
	SuccessRate  float64       `json:"success_rate"`
	CourseGrades []CourseGrade `json:"course_grades"`
}

// Average returns the mean of grades, or nil when there are none.
func Average(grades []int) *float64 {
	if len(grades) == 0 {
		return nil
	}
	var sum int
	for _, g := range grades {
		sum += g
	}
	avg := float64(sum) / float64(len(grades))
	return &avg
}

// AverageGrade returns the mean grade of records, or nil when there are none.
func AverageGrade(records []GradeRecord) *float64 {
	grades := make([]int, 0, len(records))
	for _, r := range records {
		grades = append(grades, r.Grade)
	}
	return Average(grades)
}

// SuccessRate returns the percentage of expected assignments a student submitted, 0 when none are expected.
func SuccessRate(p Progress) float64 {
	if p.Assignments <= 0 {
		return 0
	}
	return float64(p.Submitted) / float64(p.Assignments) * 100
}

// GradesByCourse averages records per course, in order of first appearance.
func GradesByCourse(records []GradeRecord) []CourseGrade {
	var (
		order  []string
		grades = make(map[string][]int)
		titles = make(map[string]string)
	)
	for _, r := range records {
		if _, ok := grades[r.CourseID]; !ok {
			order = append(order, r.CourseID)
			titles[r.CourseID] = r.CourseTitle
		}
		grades[r.CourseID] = append(grades[r.CourseID], r.Grade)
	}
	out := make([]CourseGrade, 0, len(order))
	for _, id := range order {
		out = append(out, CourseGrade{
			CourseID:     id,
			CourseTitle:  titles[id],
			AverageGrade: Average(grades[id]),
			Grades:       len(grades[id]),
		})
	}
	return out
}

// MonthlyGrades averages records per calendar month (UTC) over the `months` months ending with now's,
// oldest first. Months without grades are present with a nil average.
func MonthlyGrades(records []GradeRecord, now time.Time, months int) []MonthlyGrade {
	if months <= 0 {
		return nil
	}
	now = now.UTC()
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -(months - 1), 0)

	buckets := make(map[string][]int, months)
	for _, r := range records {
		at := r.GradedAt.UTC()
		if at.Before(first) || at.After(now) {
			continue
		}
		key := at.Format("2006-01")
		buckets[key] = append(buckets[key], r.Grade)
	}

	out := make([]MonthlyGrade, 0, months)
	for i := 0; i < months; i++ {
		key := first.AddDate(0, i, 0).Format("2006-01")
		out = append(out, MonthlyGrade{Month: key, AverageGrade: Average(buckets[key]), Grades: len(buckets[key])})
	}
	return out
}

// MergeActivities merges activity streams newest first and keeps at most limit events.
// Events with equal timestamps keep the order of the streams, then their order within a stream.
func MergeActivities(limit int, streams ...[]Activity) []Activity {
	var merged []Activity
	for _, s := range streams {
		merged = append(merged, s...)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].At.After(merged[j].At)
	})
	if limit >= 0 && len(merged) > limit {
		merged = merged[:limit]
	}
	if merged == nil {
		merged = []Activity{}
	}
	return merged
}
