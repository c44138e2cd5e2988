package store

import (
	"fmt"
	"strings"
)

func (s *SQLite) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS posts (
			id INTEGER PRIMARY KEY,
			slug TEXT NOT NULL,
			published_at TEXT NOT NULL DEFAULT '',
			doc TEXT NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_posts_slug ON posts(slug)`,

		`CREATE TABLE IF NOT EXISTS admin (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			doc TEXT NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL DEFAULT ''
		)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			// ADD COLUMN is not idempotent in SQLite.
			if strings.Contains(err.Error(), "duplicate column") {
				continue
			}
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}
