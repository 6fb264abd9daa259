package sqlxrepos

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/volatiletech/sqlboiler/v4/queries/qm"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/submission"
)

func TestOrderBy(t *testing.T) {
	columns := map[string]string{"created_at": "created_at", "title": "title"}

	tests := []struct {
		name     string
		ordering []core.DBOrdering
		want     string
	}{
		{name: "none"},
		{name: "unknown field dropped", ordering: []core.DBOrdering{{Field: "password_hash"}}},
		{name: "default desc", ordering: []core.DBOrdering{{Field: "created_at"}}, want: `"created_at" DESC`},
		{
			name:     "many",
			ordering: []core.DBOrdering{{Field: "title", Ascending: true}, {Field: "nope"}, {Field: "created_at"}},
			want:     `"title" ASC, "created_at" DESC`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mods := orderBy(tt.ordering, columns)
			if tt.want == "" {
				assert.Nil(t, mods)
				return
			}
			query, _ := buildQuery(append([]qm.QueryMod{qm.Select("*"), qm.From("courses")}, mods...)...)
			assert.Contains(t, query, "ORDER BY "+tt.want)
		})
	}
}

func TestBuildQuery_Placeholders(t *testing.T) {
	query, args := buildQuery(withLimit([]qm.QueryMod{
		qm.Select("*"),
		qm.From("courses"),
		qm.Where("teacher_id = ?", "t1"),
		qm.Where("title = ?", "Maths"),
	}, 3)...)

	assert.Contains(t, query, "teacher_id = $1")
	assert.Contains(t, query, "title = $2")
	assert.Contains(t, query, "LIMIT 3")
	assert.Equal(t, []interface{}{"t1", "Maths"}, args)

	query, _ = buildQuery(withLimit([]qm.QueryMod{qm.Select("*"), qm.From("courses")}, 0)...)
	assert.NotContains(t, query, "LIMIT")
}

func TestValidIDs(t *testing.T) {
	id := newID()
	assert.True(t, validID(id))
	assert.False(t, validID("missing"))
	assert.Equal(t, []interface{}{id}, validIDs([]string{"nope", id, ""}))
}

func TestUpsertSubmissionQuery(t *testing.T) {
	reject := upsertSubmissionQuery(submission.ResubmitReject)
	assert.Contains(t, reject, "WHERE submissions.grade IS NULL")
	assert.NotContains(t, reject, "grade = NULL")

	cleared := upsertSubmissionQuery(submission.ResubmitClearGrade)
	assert.Contains(t, cleared, "grade = NULL")
	assert.NotContains(t, cleared, "WHERE submissions.grade IS NULL")

	keep := upsertSubmissionQuery(submission.ResubmitKeepGrade)
	assert.False(t, strings.Contains(keep, "grade = NULL") || strings.Contains(keep, "grade IS NULL"))
}
