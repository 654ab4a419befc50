package store

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

var ErrConflict = errors.New("conflict")

const pgUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

// likePrefix escapes LIKE metacharacters; queries pair it with ESCAPE '\'.
func likePrefix(prefix string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(prefix) + "%"
}
