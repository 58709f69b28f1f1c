package persistence

import (
	"os"
	"testing"
	"time"

	"github.com/statico/meshtastic-cli-sub001/internal/domain"
)

func TestClearTables_EmptiesEverything(t *testing.T) {
	ctx, _, db := openTestDB(t)

	now := time.Now().UTC()
	if err := NewNodeRepo(db).Upsert(ctx, domain.Node{ID: 1, LastHeardAt: now, UpdatedAt: now}); err != nil {
		t.Fatalf("seed node: %v", err)
	}
	if _, err := NewMessageRepo(db, 0).Insert(ctx, domain.Message{
		PacketID: 1, From: 1, To: 2, Text: "x",
		Direction: domain.MessageDirectionOut, Status: domain.MessageStatusPending, SentAt: now,
	}); err != nil {
		t.Fatalf("seed message: %v", err)
	}
	if err := NewPacketRepo(db, 10, nil).Insert(ctx, domain.PacketRecord{PacketID: 1, RxTime: now}); err != nil {
		t.Fatalf("seed packet: %v", err)
	}

	if err := ClearTables(ctx, db); err != nil {
		t.Fatalf("clear tables: %v", err)
	}

	for _, table := range []string{"nodes", "messages", "packets"} {
		var count int
		if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table).Scan(&count); err != nil {
			t.Fatalf("count %s: %v", table, err)
		}
		if count != 0 {
			t.Fatalf("expected %s empty, got %d rows", table, count)
		}
	}
}

func TestClearTables_NilDatabase(t *testing.T) {
	ctx, _, _ := openTestDB(t)

	if err := ClearTables(ctx, nil); err == nil {
		t.Fatalf("expected error for nil database")
	}
}

func TestRemoveSessionFiles_DeletesSidecars(t *testing.T) {
	_, path, db := openTestDB(t)

	if err := db.Close(); err != nil {
		t.Fatalf("close db: %v", err)
	}
	if err := RemoveSessionFiles(path); err != nil {
		t.Fatalf("remove session files: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected db file removed, stat err: %v", err)
	}

	// Removing an already-removed session is fine.
	if err := RemoveSessionFiles(path); err != nil {
		t.Fatalf("second remove: %v", err)
	}
}
