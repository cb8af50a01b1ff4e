package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

//go:embed schema.sql
var schema string

var tables = []string{"movies", "users"}

// Open opens (or creates) the SQLite database at path and checks the connection.
// Use ":memory:" for a throwaway database; it is limited to one connection so
// every query sees the same data.
func Open(path string, maxOpenConns, maxIdleConns int) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if path == ":memory:" {
		maxOpenConns, maxIdleConns = 1, 1
	}
	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
	}
	if maxIdleConns > 0 {
		db.SetMaxIdleConns(maxIdleConns)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// journal_mode is not supported for in-memory databases
	_, _ = db.Exec(`PRAGMA journal_mode=WAL`)
	if _, err := db.Exec(`PRAGMA busy_timeout=5000`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

// InitSchema creates the users and movies tables. With drop set, existing
// tables and their data are removed first.
func (s *SQLiteDB) InitSchema(ctx context.Context, drop bool) error {
	return s.WithTx(ctx, func(tx *SQLiteDB) error {
		if drop {
			for _, table := range tables {
				if _, err := tx.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
					s.logger.Error("Error dropping table", zap.String("table", table), zap.Error(err))
					return fmt.Errorf("failed to drop %s: %w", table, err)
				}
			}
		}

		for _, stmt := range strings.Split(schema, ";") {
			stmt = removeComments(stmt)
			if stmt == "" {
				continue
			}
			if _, err := tx.db.ExecContext(ctx, stmt); err != nil {
				s.logger.Error("Error creating schema", zap.Error(err))
				return fmt.Errorf("failed to execute statement: %w\nStatement: %s", err, stmt)
			}
		}
		return nil
	})
}

// removeComments strips "--" comments and blank lines from a statement.
func removeComments(stmt string) string {
	var result []string
	for _, line := range strings.Split(stmt, "\n") {
		if idx := strings.Index(line, "--"); idx >= 0 {
			line = line[:idx]
		}
		line = strings.TrimSpace(line)
		if line != "" {
			result = append(result, line)
		}
	}
	return strings.Join(result, "\n")
}
