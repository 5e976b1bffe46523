package db

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
)

// ReplaceConfig describes a delete-then-load of one slice of a table.
type ReplaceConfig struct {
	Table   string            // target table, optionally schema-qualified
	Columns []string          // columns being loaded
	Match   map[string]string // column = value pairs selecting the rows to replace
}

// Replace deletes the rows selected by cfg.Match and COPYs rows in their
// place inside one transaction, so readers see either the old or the new
// slice. It returns the number of rows loaded.
func Replace(ctx context.Context, pool Pool, cfg ReplaceConfig, rows [][]any) (int64, error) {
	if len(cfg.Columns) == 0 {
		return 0, eris.New("db: replace: no columns specified")
	}
	if len(cfg.Match) == 0 {
		return 0, eris.New("db: replace: no match columns specified")
	}

	where, args := matchClause(cfg.Match)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "db: replace: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	deleteSQL := fmt.Sprintf("DELETE FROM %s WHERE %s", Identifier(cfg.Table).Sanitize(), where)
	if _, err := tx.Exec(ctx, deleteSQL, args...); err != nil {
		return 0, eris.Wrapf(err, "db: replace: delete from %s", cfg.Table)
	}

	n, err := CopyFrom(ctx, tx, cfg.Table, cfg.Columns, rows)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "db: replace: commit tx")
	}
	return n, nil
}

// matchClause builds "a = $1 AND b = $2" with columns in sorted order.
func matchClause(match map[string]string) (string, []any) {
	cols := make([]string, 0, len(match))
	for c := range match {
		cols = append(cols, c)
	}
	sort.Strings(cols)

	clauses := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, c := range cols {
		clauses[i] = fmt.Sprintf("%s = $%d", Identifier(c).Sanitize(), i+1)
		args[i] = match[c]
	}
	return strings.Join(clauses, " AND "), args
}
