package persistence

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/jmoiron/sqlx"
)

var clearSessionStatements = []string{
	`DELETE FROM messages;`,
	`DELETE FROM nodes;`,
	`DELETE FROM packets;`,
	`DELETE FROM position_responses;`,
	`DELETE FROM traceroute_responses;`,
	`DELETE FROM node_info_responses;`,
}

// ClearTables empties every table of an open session database inside one
// transaction, keeping the schema and the file itself.
func ClearTables(ctx context.Context, db *sqlx.DB) error {
	if db == nil {
		return fmt.Errorf("database is not initialized")
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin clear session tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, stmt := range clearSessionStatements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("clear session tables: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit clear session tx: %w", err)
	}

	return nil
}

// RemoveSessionFiles deletes a closed session database together with its WAL
// sidecar files. Missing files are not an error.
func RemoveSessionFiles(dbPath string) error {
	for _, path := range []string{dbPath, dbPath + "-wal", dbPath + "-shm"} {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", path, err)
		}
	}

	return nil
}
