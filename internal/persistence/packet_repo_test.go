package persistence

import (
	"testing"
	"time"

	"github.com/statico/meshtastic-cli-sub001/internal/domain"
)

func TestPacketRepoInsert_PrunesBeyondRetention(t *testing.T) {
	ctx, _, db := openTestDB(t)
	repo := NewPacketRepo(db, 100, nil)

	base := time.Now().UTC().Truncate(time.Millisecond).Add(-time.Hour)
	for i := 1; i <= 120; i++ {
		if err := repo.Insert(ctx, domain.PacketRecord{
			PacketID: uint32(i),
			From:     0xAAAA0001,
			To:       domain.BroadcastNodeID,
			PortNum:  1,
			Payload:  []byte{0x01},
			RxTime:   base.Add(time.Duration(i) * time.Second),
		}); err != nil {
			t.Fatalf("insert packet %d: %v", i, err)
		}
	}

	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM packets`).Scan(&count); err != nil {
		t.Fatalf("count packets: %v", err)
	}
	if count != 100 {
		t.Fatalf("expected retention to keep 100 rows, got %d", count)
	}

	packets, err := repo.ListRecent(ctx, 200)
	if err != nil {
		t.Fatalf("list packets: %v", err)
	}
	if len(packets) != 100 {
		t.Fatalf("expected 100 packets, got %d", len(packets))
	}
	if packets[0].PacketID != 21 {
		t.Fatalf("expected oldest surviving packet 21, got %d", packets[0].PacketID)
	}
	if packets[len(packets)-1].PacketID != 120 {
		t.Fatalf("expected newest packet 120, got %d", packets[len(packets)-1].PacketID)
	}
}

func TestPacketRepoListRecent_OldestFirstWithinLimit(t *testing.T) {
	ctx, _, db := openTestDB(t)
	repo := NewPacketRepo(db, 1000, nil)

	base := time.Now().UTC().Truncate(time.Millisecond)
	for i := 1; i <= 5; i++ {
		if err := repo.Insert(ctx, domain.PacketRecord{
			PacketID: uint32(i),
			From:     1,
			To:       2,
			RxTime:   base.Add(time.Duration(i) * time.Second),
		}); err != nil {
			t.Fatalf("insert packet %d: %v", i, err)
		}
	}

	packets, err := repo.ListRecent(ctx, 3)
	if err != nil {
		t.Fatalf("list packets: %v", err)
	}
	want := []uint32{3, 4, 5}
	if len(packets) != len(want) {
		t.Fatalf("expected %d packets, got %d", len(want), len(packets))
	}
	for i, id := range want {
		if packets[i].PacketID != id {
			t.Fatalf("position %d: expected packet %d, got %d", i, id, packets[i].PacketID)
		}
	}
}

func TestPacketRepoInsert_KeepsUndecodablePayload(t *testing.T) {
	ctx, _, db := openTestDB(t)
	repo := NewPacketRepo(db, 10, nil)

	raw := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	if err := repo.Insert(ctx, domain.PacketRecord{
		PacketID:    99,
		From:        1,
		To:          2,
		Payload:     raw,
		DecodeError: "unknown portnum 511",
		RxTime:      time.Now().UTC(),
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	packets, err := repo.ListRecent(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(packets) != 1 {
		t.Fatalf("expected one packet, got %d", len(packets))
	}
	if packets[0].DecodeError != "unknown portnum 511" {
		t.Fatalf("expected decode error preserved, got %q", packets[0].DecodeError)
	}
	if string(packets[0].Payload) != string(raw) {
		t.Fatalf("expected raw payload preserved, got %x", packets[0].Payload)
	}
}
