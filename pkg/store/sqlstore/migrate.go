package sqlstore

import (
	"database/sql"
	"fmt"
)

// Migrate creates the model tables when they do not exist yet.
func Migrate(db *sql.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS vocabulary (
			token TEXT PRIMARY KEY,
			count INTEGER NOT NULL
		);`,
		// context tokens are joined with the unit separator
		`CREATE TABLE IF NOT EXISTS ngrams (
			ord     INTEGER NOT NULL,
			context TEXT NOT NULL,
			next    TEXT NOT NULL,
			count   INTEGER NOT NULL,
			PRIMARY KEY (ord, context, next)
		);`,
		"CREATE INDEX IF NOT EXISTS idx_ngrams_context ON ngrams(ord, context);",
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to run migration statement: %w", err)
		}
	}

	return nil
}
