package search

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/propscope/propscope/internal/db"
	"github.com/propscope/propscope/internal/resilience"
)

// maxAdhocRows caps ad-hoc result sets regardless of the statement's own
// LIMIT clause.
const maxAdhocRows = 1000

// GuardStatement rejects anything other than a single read-only
// statement. The check is shape-based and runs before any database
// call; the database role is still the real enforcement boundary.
func GuardStatement(stmt string) error {
	trimmed := strings.TrimSpace(stmt)
	if trimmed == "" {
		return resilience.NewError(resilience.KindInvalidQuery,
			eris.New("search: empty statement"))
	}

	// A trailing semicolon is tolerated; any other semicolon means
	// multiple statements.
	trimmed = strings.TrimSuffix(trimmed, ";")
	if strings.ContainsRune(trimmed, ';') {
		return resilience.NewError(resilience.KindInvalidQuery,
			eris.New("search: multiple statements are not allowed"))
	}

	upper := strings.ToUpper(trimmed)
	if !strings.HasPrefix(upper, "SELECT") && !strings.HasPrefix(upper, "WITH") {
		return resilience.NewError(resilience.KindInvalidQuery,
			eris.New("search: only SELECT statements are allowed"))
	}

	// CTEs can smuggle writes: WITH x AS (DELETE ...) SELECT ...
	for _, kw := range []string{"INSERT", "UPDATE", "DELETE", "DROP", "ALTER", "TRUNCATE", "CREATE", "GRANT", "REVOKE", "COPY"} {
		if containsWord(upper, kw) {
			return resilience.NewError(resilience.KindInvalidQuery,
				eris.Errorf("search: statement contains disallowed keyword %s", kw))
		}
	}
	return nil
}

// containsWord reports whether upper contains kw as a whole word.
func containsWord(upper, kw string) bool {
	idx := 0
	for {
		i := strings.Index(upper[idx:], kw)
		if i < 0 {
			return false
		}
		i += idx
		before := i == 0 || !isWordByte(upper[i-1])
		afterIdx := i + len(kw)
		after := afterIdx >= len(upper) || !isWordByte(upper[afterIdx])
		if before && after {
			return true
		}
		idx = i + len(kw)
	}
}

func isWordByte(b byte) bool {
	return b == '_' || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

// AdhocQuery runs a guarded read-only statement and returns generic
// rows keyed by column name.
func AdhocQuery(ctx context.Context, pool db.Pool, stmt string, args ...any) ([]map[string]any, error) {
	if err := GuardStatement(stmt); err != nil {
		return nil, err
	}

	rows, err := pool.Query(ctx, stmt, args...)
	if err != nil {
		return nil, eris.Wrap(err, "search: adhoc query")
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	var out []map[string]any
	for rows.Next() {
		if len(out) >= maxAdhocRows {
			break
		}
		values, err := rows.Values()
		if err != nil {
			return nil, eris.Wrap(err, "search: read adhoc row")
		}
		row := make(map[string]any, len(fields))
		for i, f := range fields {
			row[f.Name] = values[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "search: iterate adhoc rows")
	}
	return out, nil
}
