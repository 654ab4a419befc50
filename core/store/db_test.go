package store

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRebindPostgres(t *testing.T) {
	got := DialectPostgres.Rebind(`SELECT a FROM t WHERE x=? AND y LIKE ? ESCAPE '\' AND z='?'`)
	assert.Equal(t, `SELECT a FROM t WHERE x=$1 AND y LIKE $2 ESCAPE '\' AND z='?'`, got)
}

func TestRebindSQLiteUnchanged(t *testing.T) {
	q := `UPDATE t SET a=? WHERE b=?`
	assert.Equal(t, q, DialectSQLite.Rebind(q))
}

func TestLikePrefixEscapesMetacharacters(t *testing.T) {
	assert.Equal(t, `DR|PS|25|%`, likePrefix("DR|PS|25|"))
	assert.Equal(t, `a\_b\%c\\%`, likePrefix(`a_b%c\`))
}

func TestIsUniqueViolation(t *testing.T) {
	assert.False(t, isUniqueViolation(nil))
	assert.True(t, isUniqueViolation(errors.New("constraint failed: UNIQUE constraint failed: incidents.incident_id (1555)")))
	assert.False(t, isUniqueViolation(errors.New("database is locked")))
}
