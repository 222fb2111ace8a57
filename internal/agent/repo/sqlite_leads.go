package repo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/marketing-analytics-team/server/internal/agent/model"
	errx "github.com/marketing-analytics-team/server/internal/core/error"
	logx "github.com/marketing-analytics-team/server/pkg/logger"
)

// SQLiteLeadsStore executes validated queries against the scored-leads db.
type SQLiteLeadsStore struct {
	db *sql.DB
}

func NewSQLiteLeadsStore(db *sql.DB) *SQLiteLeadsStore {
	return &SQLiteLeadsStore{db: db}
}

// Execute runs query and keeps at most rowCap rows (no cap when rowCap <= 0).
// Truncated reports that more rows were available.
func (s *SQLiteLeadsStore) Execute(ctx context.Context, query string, rowCap int) (*model.ResultSet, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		logx.Warn().Err(err).Str("query", query).Msg("leads query failed")
		return nil, errx.WrapStorage(err)
	}
	defer rows.Close()

	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, errx.WrapStorage(fmt.Errorf("column types: %w", err))
	}
	out := &model.ResultSet{Query: query, Columns: make([]model.ResultColumn, len(types)), Rows: [][]any{}}
	for i, t := range types {
		out.Columns[i] = model.ResultColumn{Name: t.Name(), Type: t.DatabaseTypeName()}
	}

	for rows.Next() {
		if rowCap > 0 && len(out.Rows) == rowCap {
			out.Truncated = true
			break
		}
		vals := make([]any, len(types))
		ptrs := make([]any, len(types))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, errx.WrapStorage(fmt.Errorf("scan row: %w", err))
		}
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				vals[i] = string(b)
			}
		}
		out.Rows = append(out.Rows, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, errx.WrapStorage(err)
	}

	logx.Debug().Int("rows", len(out.Rows)).Bool("truncated", out.Truncated).Msg("leads query executed")
	return out, nil
}

var _ model.QueryExecutor = (*SQLiteLeadsStore)(nil)
