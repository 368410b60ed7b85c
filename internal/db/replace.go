package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// ReplaceConfig describes a wholesale table rewrite.
type ReplaceConfig struct {
	Table   string   // target table, optionally schema-qualified
	Columns []string // columns supplied by every row
}

// ReplaceTable deletes every row of the table and COPYs rows in, inside one
// transaction. Readers never see a partially written table.
func ReplaceTable(ctx context.Context, pool Pool, cfg ReplaceConfig, rows [][]any) (int64, error) {
	if len(cfg.Columns) == 0 {
		return 0, eris.New("db: replace: no columns specified")
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "db: replace: begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	n, err := ReplaceInTx(ctx, tx, cfg, rows)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "db: replace: commit tx")
	}
	return n, nil
}

// ReplaceInTx is ReplaceTable for a caller-owned transaction.
func ReplaceInTx(ctx context.Context, tx pgx.Tx, cfg ReplaceConfig, rows [][]any) (int64, error) {
	if _, err := tx.Exec(ctx, fmt.Sprintf("DELETE FROM %s", sanitizeTable(cfg.Table))); err != nil {
		return 0, eris.Wrapf(err, "db: replace: clear %s", cfg.Table)
	}
	return CopyFrom(ctx, tx, cfg.Table, cfg.Columns, rows)
}

// identifier splits schema-qualified names like "public.crossing_centers".
func identifier(table string) pgx.Identifier {
	return pgx.Identifier(strings.SplitN(table, ".", 2))
}

func sanitizeTable(table string) string {
	return identifier(table).Sanitize()
}

// QuoteAndJoin quotes each column name and joins with commas.
func QuoteAndJoin(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}
