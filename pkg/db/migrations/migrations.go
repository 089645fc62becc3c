// Package migrations holds the forward-only schema history of the inventory database.
package migrations

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/pressly/goose/v3"
)

var registered []*goose.Migration

func register(m *goose.Migration) {
	registered = append(registered, m)
}

// All returns the registered migrations ordered by version.
func All() []*goose.Migration {
	out := make([]*goose.Migration, len(registered))
	copy(out, registered)
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out
}

func execAll(ctx context.Context, tx *sql.Tx, stmts []string) error {
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec %q: %w", firstLine(stmt), err)
		}
	}
	return nil
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}
