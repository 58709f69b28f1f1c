package persistence

import (
	"testing"
	"time"

	"github.com/statico/meshtastic-cli-sub001/internal/domain"
)

func TestNodeRepoUpsert_SparseUpdateDoesNotClobber(t *testing.T) {
	ctx, _, db := openTestDB(t)
	repo := NewNodeRepo(db)

	lat := int32(377749000)
	lon := int32(-1224194000)
	battery := uint32(87)
	now := time.Now().UTC().Truncate(time.Millisecond)

	if err := repo.Upsert(ctx, domain.Node{
		ID:           5,
		LongName:     "Alpha Station",
		LatitudeI:    &lat,
		LongitudeI:   &lon,
		BatteryLevel: &battery,
		LastHeardAt:  now,
		UpdatedAt:    now,
	}); err != nil {
		t.Fatalf("upsert full node: %v", err)
	}

	snr := 9.5
	if err := repo.Upsert(ctx, domain.Node{
		ID:          5,
		ShortName:   "ALPH",
		SNR:         &snr,
		LastHeardAt: now.Add(time.Second),
		UpdatedAt:   now.Add(time.Second),
	}); err != nil {
		t.Fatalf("upsert sparse update: %v", err)
	}

	nodes, err := repo.ListSorted(ctx)
	if err != nil {
		t.Fatalf("list nodes: %v", err)
	}
	if len(nodes) != 1 {
		t.Fatalf("expected one node, got %d", len(nodes))
	}
	got := nodes[0]
	if got.ShortName != "ALPH" {
		t.Fatalf("expected short name applied, got %q", got.ShortName)
	}
	if got.LongName != "Alpha Station" {
		t.Fatalf("expected long name preserved, got %q", got.LongName)
	}
	if got.LatitudeI == nil || *got.LatitudeI != lat {
		t.Fatalf("expected latitude preserved, got %v", got.LatitudeI)
	}
	if got.BatteryLevel == nil || *got.BatteryLevel != battery {
		t.Fatalf("expected battery preserved, got %v", got.BatteryLevel)
	}
	if got.SNR == nil || *got.SNR != snr {
		t.Fatalf("expected snr applied, got %v", got.SNR)
	}
	if !got.LastHeardAt.Equal(now.Add(time.Second)) {
		t.Fatalf("expected last heard advanced, got %v", got.LastHeardAt)
	}
}

func TestNodeRepoUpsert_LastHeardNeverRegresses(t *testing.T) {
	ctx, _, db := openTestDB(t)
	repo := NewNodeRepo(db)

	now := time.Now().UTC().Truncate(time.Millisecond)
	if err := repo.Upsert(ctx, domain.Node{ID: 9, LastHeardAt: now, UpdatedAt: now}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := repo.Upsert(ctx, domain.Node{ID: 9, LastHeardAt: now.Add(-time.Hour), UpdatedAt: now.Add(-time.Hour)}); err != nil {
		t.Fatalf("upsert stale: %v", err)
	}

	nodes, err := repo.ListSorted(ctx)
	if err != nil {
		t.Fatalf("list nodes: %v", err)
	}
	if !nodes[0].LastHeardAt.Equal(now) {
		t.Fatalf("expected last heard %v, got %v", now, nodes[0].LastHeardAt)
	}
}

func TestNodeRepoListSorted_HopsThenRecency(t *testing.T) {
	ctx, _, db := openTestDB(t)
	repo := NewNodeRepo(db)

	now := time.Now().UTC().Truncate(time.Millisecond)
	one := uint32(1)
	three := uint32(3)

	fixtures := []domain.Node{
		{ID: 10, HopsAway: &three, LastHeardAt: now, UpdatedAt: now},
		{ID: 11, HopsAway: &one, LastHeardAt: now.Add(-time.Minute), UpdatedAt: now},
		{ID: 12, HopsAway: &one, LastHeardAt: now.Add(-time.Hour), UpdatedAt: now},
		{ID: 13, LastHeardAt: now, UpdatedAt: now},
	}
	for _, n := range fixtures {
		if err := repo.Upsert(ctx, n); err != nil {
			t.Fatalf("upsert node %d: %v", n.ID, err)
		}
	}

	nodes, err := repo.ListSorted(ctx)
	if err != nil {
		t.Fatalf("list nodes: %v", err)
	}
	want := []uint32{11, 12, 10, 13}
	if len(nodes) != len(want) {
		t.Fatalf("expected %d nodes, got %d", len(want), len(nodes))
	}
	for i, id := range want {
		if nodes[i].ID != id {
			t.Fatalf("position %d: expected node %d, got %d", i, id, nodes[i].ID)
		}
	}
}

func TestNodeRepoDelete_RemovesRow(t *testing.T) {
	ctx, _, db := openTestDB(t)
	repo := NewNodeRepo(db)

	now := time.Now().UTC()
	if err := repo.Upsert(ctx, domain.Node{ID: 7, LastHeardAt: now, UpdatedAt: now}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := repo.Delete(ctx, 7); err != nil {
		t.Fatalf("delete: %v", err)
	}

	nodes, err := repo.ListSorted(ctx)
	if err != nil {
		t.Fatalf("list nodes: %v", err)
	}
	if len(nodes) != 0 {
		t.Fatalf("expected empty node list, got %d", len(nodes))
	}
}
