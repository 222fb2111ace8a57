package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Config locates the leads database. ReadOnly turns on query_only so
// generated SQL can never write.
type Config struct {
	Path        string `envconfig:"LEADS_DB_PATH" default:"data/leadscored.db"`
	ReadOnly    bool   `envconfig:"LEADS_DB_READ_ONLY" default:"true"`
	BusyTimeout int    `envconfig:"LEADS_DB_BUSY_TIMEOUT_MS" default:"5000"`
}

func (c *Config) New() (*sql.DB, error) {
	if c.ReadOnly {
		if _, err := os.Stat(c.Path); err != nil {
			return nil, fmt.Errorf("leads database %s: %w", c.Path, err)
		}
	} else if err := os.MkdirAll(filepath.Dir(c.Path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", c.Path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	pragmas := []string{fmt.Sprintf("PRAGMA busy_timeout=%d", c.BusyTimeout)}
	if c.ReadOnly {
		pragmas = append(pragmas, "PRAGMA query_only=ON")
	}
	// query_only is per connection; a single connection keeps it in force.
	db.SetMaxOpenConns(1)
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %q: %w", p, err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}
