package inmemdb

import (
	"sort"
	"strings"
	"time"

	"github.com/trezcool/darasa/core"
)

type comparator func(field string, i, j int) int

// sortSlice sorts slice by ordering, breaking ties by insertion
// order in the direction of the first ordering.
func (db *DB) sortSlice(slice interface{}, ids func(i int) string, ordering []core.DBOrdering, cmp comparator) {
	asc := len(ordering) == 0 || ordering[0].Ascending
	sort.SliceStable(slice, func(i, j int) bool {
		for _, ord := range ordering {
			c := cmp(ord.Field, i, j)
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		si, sj := db.seqs[ids(i)], db.seqs[ids(j)]
		if asc {
			return si < sj
		}
		return si > sj
	})
}

func cmpTime(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	}
	return 0
}

func cmpString(a, b string) int {
	return strings.Compare(strings.ToLower(a), strings.ToLower(b))
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
