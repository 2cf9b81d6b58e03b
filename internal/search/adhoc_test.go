package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGuardStatementAllowsReads(t *testing.T) {
	allowed := []string{
		"SELECT 1",
		"select project, count(*) from transactions group by project",
		"  SELECT * FROM properties LIMIT 10;",
		"WITH recent AS (SELECT * FROM transactions) SELECT count(*) FROM recent",
	}
	for _, stmt := range allowed {
		assert.NoError(t, GuardStatement(stmt), stmt)
	}
}

func TestGuardStatementRejectsWrites(t *testing.T) {
	rejected := []string{
		"",
		"DELETE FROM properties",
		"UPDATE properties SET project = 'x'",
		"DROP TABLE properties",
		"SELECT 1; DELETE FROM properties",
		"WITH x AS (DELETE FROM properties RETURNING *) SELECT * FROM x",
		"INSERT INTO properties VALUES (1)",
		"EXPLAIN ANALYZE SELECT 1",
	}
	for _, stmt := range rejected {
		err := GuardStatement(stmt)
		requireInvalidQuery(t, err)
	}
}

func TestGuardStatementWholeWordMatching(t *testing.T) {
	// Column and string content containing keyword substrings must pass.
	assert.NoError(t, GuardStatement("SELECT last_update FROM properties"))
	assert.NoError(t, GuardStatement("SELECT * FROM properties WHERE project = 'THE CREATION'"))
}
