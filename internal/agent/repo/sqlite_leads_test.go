package repo

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errx "github.com/marketing-analytics-team/server/internal/core/error"
	"github.com/marketing-analytics-team/server/pkg/sqlite"
)

func seedLeadsDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "leadscored.db")
	cfg := sqlite.Config{Path: path, BusyTimeout: 1000}
	db, err := cfg.New()
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE leadscored (
		customer_id INTEGER PRIMARY KEY,
		Segment TEXT,
		engagement_score REAL,
		Converted INTEGER,
		Country TEXT
	)`)
	require.NoError(t, err)
	segments := []string{"Champions", "Champions", "At Risk", "Low Value", "Champions"}
	for i, s := range segments {
		_, err := db.Exec(`INSERT INTO leadscored VALUES (?, ?, ?, ?, ?)`,
			i+1, s, 0.1*float64(len(segments)-i), i%2, fmt.Sprintf("C%d", i%2))
		require.NoError(t, err)
	}
	return path
}

func openReadOnly(t *testing.T, path string) *SQLiteLeadsStore {
	t.Helper()
	cfg := sqlite.Config{Path: path, ReadOnly: true, BusyTimeout: 1000}
	db, err := cfg.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewSQLiteLeadsStore(db)
}

func TestSQLiteLeadsExecute(t *testing.T) {
	store := openReadOnly(t, seedLeadsDB(t))

	rs, err := store.Execute(context.Background(),
		"SELECT customer_id, Segment FROM leadscored WHERE Segment = 'Champions' ORDER BY customer_id;", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"customer_id", "Segment"}, rs.ColumnNames())
	require.Equal(t, 3, rs.Len())
	assert.Equal(t, int64(1), rs.Rows[0][0])
	assert.Equal(t, "Champions", rs.Rows[0][1])
	assert.False(t, rs.Truncated)
}

func TestSQLiteLeadsRowCap(t *testing.T) {
	store := openReadOnly(t, seedLeadsDB(t))

	rs, err := store.Execute(context.Background(), "SELECT * FROM leadscored;", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, rs.Len())
	assert.True(t, rs.Truncated)

	rs, err = store.Execute(context.Background(), "SELECT Segment, COUNT(*) AS count FROM leadscored GROUP BY Segment;", 0)
	require.NoError(t, err)
	assert.Equal(t, 3, rs.Len())
}

func TestSQLiteLeadsEmptyResult(t *testing.T) {
	store := openReadOnly(t, seedLeadsDB(t))

	rs, err := store.Execute(context.Background(), "SELECT * FROM leadscored WHERE Segment = 'Nobody';", 10)
	require.NoError(t, err)
	assert.Zero(t, rs.Len())
	assert.NotNil(t, rs.Rows)
}

func TestSQLiteLeadsErrors(t *testing.T) {
	store := openReadOnly(t, seedLeadsDB(t))

	_, err := store.Execute(context.Background(), "SELECT nope FROM missing_table;", 10)
	require.Error(t, err)
	assert.Equal(t, http.StatusBadGateway, errx.StatusOf(err))

	_, err = store.Execute(context.Background(), "DELETE FROM leadscored;", 10)
	require.Error(t, err, "query_only must reject writes")
}
