// Package sqlxrepos implements the repositories over PostgreSQL with sqlx. List queries with optional
// filters are assembled with sqlboiler's query mods.
package sqlxrepos

import (
	"database/sql"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/sqlboiler/v4/drivers"
	"github.com/volatiletech/sqlboiler/v4/queries"
	"github.com/volatiletech/sqlboiler/v4/queries/qm"
	"github.com/volatiletech/strmangle"

	"github.com/trezcool/darasa/core"
)

const (
	pqUniqueViolation     = pq.ErrorCode("23505")
	pqForeignKeyViolation = pq.ErrorCode("23503")
)

var dialect = drivers.Dialect{
	LQ:                   '"',
	RQ:                   '"',
	UseIndexPlaceholders: true,
}

// buildQuery renders a postgres SELECT from query mods.
func buildQuery(mods ...qm.QueryMod) (string, []interface{}) {
	q := &queries.Query{}
	queries.SetDialect(q, &dialect)
	qm.Apply(q, mods...)
	return queries.BuildQuery(q)
}

// orderBy maps ordering fields through the columns whitelist. Unknown fields are dropped.
func orderBy(ordering []core.DBOrdering, columns map[string]string) []qm.QueryMod {
	clauses := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		col, ok := columns[ord.Field]
		if !ok {
			continue
		}
		clauses = append(clauses, core.DBOrdering{
			Field:     strmangle.IdentQuote(dialect.LQ, dialect.RQ, col),
			Ascending: ord.Ascending,
		}.String())
	}
	if len(clauses) == 0 {
		return nil
	}
	return []qm.QueryMod{qm.OrderBy(strings.Join(clauses, ", "))}
}

func withLimit(mods []qm.QueryMod, limit int) []qm.QueryMod {
	if limit > 0 {
		mods = append(mods, qm.Limit(limit))
	}
	return mods
}

// validID reports whether id can be compared to a UUID column.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func validIDs(ids []string) []interface{} {
	valid := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		if validID(id) {
			valid = append(valid, id)
		}
	}
	return valid
}

func newID() string {
	return uuid.New().String()
}

// pqError returns the postgres error behind err, if any.
func pqError(err error) (*pq.Error, bool) {
	pqErr, ok := errors.Cause(err).(*pq.Error)
	return pqErr, ok
}

// trapNoRows maps "no rows" to notFound and wraps anything else with msg.
func trapNoRows(err error, notFound error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}
