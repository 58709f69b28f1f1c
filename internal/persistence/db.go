package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // register sqlite driver
)

const DefaultBusyTimeout = 5 * time.Second

func init() {
	// modernc registers as "sqlite"; teach sqlx its bindvar style.
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// Open opens (creating if needed) one session database. WAL journaling keeps
// concurrent operator reads unblocked while the single writer stream appends;
// busy_timeout bounds lock waits instead of failing immediately.
func Open(ctx context.Context, path string, busyTimeout time.Duration) (*sqlx.DB, error) {
	if busyTimeout <= 0 {
		busyTimeout = DefaultBusyTimeout
	}

	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	pragmas := []string{
		`PRAGMA foreign_keys = ON;`,
		`PRAGMA journal_mode = WAL;`,
		fmt.Sprintf(`PRAGMA busy_timeout = %d;`, busyTimeout.Milliseconds()),
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()

			return nil, fmt.Errorf("apply %s: %w", pragma, err)
		}
	}
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()

		return nil, err
	}

	return db, nil
}
