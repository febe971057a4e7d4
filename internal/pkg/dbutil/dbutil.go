package dbutil

import (
	"errors"
	"regexp"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

var limitRegex = regexp.MustCompile(`(?i)LIMIT\s+\?\s*,\s*\?`)

// Finalize rewrites a gendry-built query for Postgres: the MySQL-style
// `LIMIT ?,?` clause becomes `LIMIT ? OFFSET ?` (with the two args swapped
// to match) and `?` placeholders are rebound to `$N`.
func Finalize(query string, args []interface{}) (string, []interface{}) {
	if loc := limitRegex.FindStringIndex(query); loc != nil {
		qCount := strings.Count(query[:loc[0]], "?")
		if qCount+1 < len(args) {
			args[qCount], args[qCount+1] = args[qCount+1], args[qCount]
			query = limitRegex.ReplaceAllString(query, "LIMIT ? OFFSET ?")
		}
	}
	return sqlx.Rebind(sqlx.DOLLAR, query), args
}

// IsConflict reports whether err is a unique violation, however deeply
// wrapped.
func IsConflict(err error) bool {
	var pgErr *pq.Error
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
