package persistence

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// migrations are applied in order; PRAGMA user_version tracks progress.
var migrations = []string{
	`
	CREATE TABLE nodes (
		node_id INTEGER PRIMARY KEY,
		short_name TEXT,
		long_name TEXT,
		hardware_model TEXT,
		role TEXT,
		latitude_i INTEGER,
		longitude_i INTEGER,
		altitude INTEGER,
		battery_level INTEGER,
		voltage REAL,
		channel_utilization REAL,
		hops_away INTEGER,
		is_favorite INTEGER,
		is_muted INTEGER,
		public_key BLOB,
		snr REAL,
		rssi INTEGER,
		last_heard_at INTEGER NOT NULL DEFAULT 0,
		updated_at INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE messages (
		local_id INTEGER PRIMARY KEY AUTOINCREMENT,
		packet_id INTEGER NOT NULL,
		from_node INTEGER NOT NULL,
		to_node INTEGER NOT NULL,
		channel INTEGER NOT NULL DEFAULT 0,
		body TEXT NOT NULL,
		direction INTEGER NOT NULL,
		status INTEGER NOT NULL,
		error_reason TEXT NOT NULL DEFAULT '',
		reply_id INTEGER NOT NULL DEFAULT 0,
		want_ack INTEGER NOT NULL DEFAULT 0,
		is_read INTEGER NOT NULL DEFAULT 0,
		snr REAL,
		rssi INTEGER,
		hop_start INTEGER,
		hop_limit INTEGER,
		sent_at INTEGER NOT NULL DEFAULT 0,
		received_at INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX idx_messages_packet_id ON messages(packet_id);
	CREATE INDEX idx_messages_channel ON messages(channel, received_at);
	CREATE INDEX idx_messages_direct ON messages(from_node, to_node);

	CREATE TABLE packets (
		local_id INTEGER PRIMARY KEY AUTOINCREMENT,
		packet_id INTEGER NOT NULL,
		from_node INTEGER NOT NULL,
		to_node INTEGER NOT NULL,
		channel INTEGER NOT NULL DEFAULT 0,
		port_num INTEGER NOT NULL DEFAULT 0,
		snr REAL,
		rssi INTEGER,
		payload BLOB,
		decode_error TEXT NOT NULL DEFAULT '',
		rx_time INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX idx_packets_rx_time ON packets(rx_time);

	CREATE TABLE position_responses (
		local_id INTEGER PRIMARY KEY AUTOINCREMENT,
		packet_id INTEGER NOT NULL,
		requester INTEGER NOT NULL,
		responder INTEGER NOT NULL,
		latitude_i INTEGER NOT NULL DEFAULT 0,
		longitude_i INTEGER NOT NULL DEFAULT 0,
		altitude INTEGER NOT NULL DEFAULT 0,
		satellites INTEGER NOT NULL DEFAULT 0,
		at INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX idx_position_responses_at ON position_responses(at);

	CREATE TABLE traceroute_responses (
		local_id INTEGER PRIMARY KEY AUTOINCREMENT,
		packet_id INTEGER NOT NULL,
		requester INTEGER NOT NULL,
		responder INTEGER NOT NULL,
		route_json TEXT,
		snr_towards_json TEXT,
		route_back_json TEXT,
		snr_back_json TEXT,
		at INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX idx_traceroute_responses_at ON traceroute_responses(at);

	CREATE TABLE node_info_responses (
		local_id INTEGER PRIMARY KEY AUTOINCREMENT,
		packet_id INTEGER NOT NULL,
		requester INTEGER NOT NULL,
		responder INTEGER NOT NULL,
		short_name TEXT,
		long_name TEXT,
		hardware_model TEXT,
		role TEXT,
		at INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX idx_node_info_responses_at ON node_info_responses(at);
	`,
}

func migrate(ctx context.Context, db *sqlx.DB) error {
	var version int
	if err := db.QueryRowContext(ctx, `PRAGMA user_version;`).Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version >= len(migrations) {
		return nil
	}

	for i := version; i < len(migrations); i++ {
		tx, err := db.BeginTxx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", i+1, err)
		}
		if _, err := tx.ExecContext(ctx, migrations[i]); err != nil {
			_ = tx.Rollback()

			return fmt.Errorf("apply migration %d: %w", i+1, err)
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`PRAGMA user_version = %d;`, i+1)); err != nil {
			_ = tx.Rollback()

			return fmt.Errorf("bump schema version to %d: %w", i+1, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", i+1, err)
		}
	}

	return nil
}
