package domain

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/statico/meshtastic-cli-sub001/internal/bus"
	"github.com/statico/meshtastic-cli-sub001/internal/connectors"
)

func TestNodeStoreMerge_PreservesFieldsOnSparseUpdates(t *testing.T) {
	store := NewNodeStore()
	lat := int32(377749000)
	lon := int32(-1224194000)
	alt := int32(123)

	store.Merge(NodeUpdate{Source: SourceNodeInfo, Node: Node{
		ID:            5,
		ShortName:     "AB",
		LongName:      "Alpha Base",
		HardwareModel: "T-Echo",
		LatitudeI:     &lat,
		LongitudeI:    &lon,
		Altitude:      &alt,
	}})
	snr := 3.2
	store.Merge(NodeUpdate{Source: SourcePacket, Node: Node{ID: 5, SNR: &snr}})
	store.Merge(NodeUpdate{Source: SourceUserBroadcast, Node: Node{ID: 5}})

	node, ok := store.Get(5)
	if !ok {
		t.Fatalf("expected node in store")
	}
	if node.ShortName != "AB" {
		t.Fatalf("expected short name preserved, got %q", node.ShortName)
	}
	if node.SNR == nil || *node.SNR != snr {
		t.Fatalf("expected snr preserved, got %v", node.SNR)
	}
	if node.LatitudeI == nil || *node.LatitudeI != lat {
		t.Fatalf("expected latitude preserved, got %v", node.LatitudeI)
	}
	if node.HardwareModel != "T-Echo" {
		t.Fatalf("expected hardware model preserved, got %q", node.HardwareModel)
	}
}

func TestNodeStoreMerge_IncidentalPacketRefreshesLastHeard(t *testing.T) {
	store := NewNodeStore()
	earlier := time.Now().Add(-time.Hour)

	store.Merge(NodeUpdate{
		Source:  SourceNodeInfo,
		HeardAt: earlier,
		Node:    Node{ID: 7, LongName: "Relay Seven", Role: "ROUTER"},
	})
	hops := uint32(2)
	rssi := -90
	store.Merge(NodeUpdate{
		Source: SourcePacket,
		Node:   Node{ID: 7, HopsAway: &hops, RSSI: &rssi},
	})

	node, ok := store.Get(7)
	if !ok {
		t.Fatalf("expected node in store")
	}
	if !node.LastHeardAt.After(earlier) {
		t.Fatalf("expected incidental packet to refresh last heard, got %s", node.LastHeardAt)
	}
	if node.LongName != "Relay Seven" || node.Role != "ROUTER" {
		t.Fatalf("expected richer fields untouched, got %+v", node)
	}
	if node.HopsAway == nil || *node.HopsAway != hops {
		t.Fatalf("expected hops applied, got %v", node.HopsAway)
	}
}

func TestNodeStoreMerge_LastHeardNeverRegresses(t *testing.T) {
	store := NewNodeStore()
	now := time.Now()

	store.Merge(NodeUpdate{Source: SourceNodeInfo, HeardAt: now, Node: Node{ID: 1}})
	store.Merge(NodeUpdate{Source: SourceImport, HeardAt: now.Add(-time.Hour), Node: Node{ID: 1, LongName: "Imported"}})

	node, _ := store.Get(1)
	if node.LastHeardAt.Before(now) {
		t.Fatalf("expected last heard to keep newer value, got %s", node.LastHeardAt)
	}
	if node.LongName != "Imported" {
		t.Fatalf("expected import fields applied, got %q", node.LongName)
	}
}

func TestNodeStoreSnapshotSorted_HopsThenLastHeard(t *testing.T) {
	store := NewNodeStore()
	now := time.Now()
	one := uint32(1)
	three := uint32(3)

	store.Merge(NodeUpdate{HeardAt: now.Add(-time.Minute), Node: Node{ID: 10, HopsAway: &three}})
	store.Merge(NodeUpdate{HeardAt: now, Node: Node{ID: 11, HopsAway: &one}})
	store.Merge(NodeUpdate{HeardAt: now.Add(-time.Second), Node: Node{ID: 12, HopsAway: &one}})
	store.Merge(NodeUpdate{HeardAt: now, Node: Node{ID: 13}})

	snapshot := store.SnapshotSorted()
	if len(snapshot) != 4 {
		t.Fatalf("expected 4 nodes, got %d", len(snapshot))
	}
	gotOrder := []uint32{snapshot[0].ID, snapshot[1].ID, snapshot[2].ID, snapshot[3].ID}
	wantOrder := []uint32{11, 12, 10, 13}
	for i := range wantOrder {
		if gotOrder[i] != wantOrder[i] {
			t.Fatalf("unexpected order %v, want %v", gotOrder, wantOrder)
		}
	}
}

func TestNodeStoreRemove(t *testing.T) {
	store := NewNodeStore()
	store.Merge(NodeUpdate{Node: Node{ID: 42, LongName: "Gone Soon"}})

	if !store.Remove(42) {
		t.Fatal("expected remove to report success")
	}
	if store.Remove(42) {
		t.Fatal("expected second remove to report miss")
	}
	if _, ok := store.Get(42); ok {
		t.Fatal("expected node gone after remove")
	}
}

func TestNodeStoreForget_PublishesRemoval(t *testing.T) {
	store := NewNodeStore()
	b := bus.New(slog.New(slog.NewTextHandler(io.Discard, nil)))
	defer b.Close()
	sub := b.Subscribe(connectors.TopicNodeRemoved)
	defer b.Unsubscribe(sub, connectors.TopicNodeRemoved)

	store.Merge(NodeUpdate{Node: Node{ID: 42, LongName: "Gone Soon"}})

	if !store.Forget(b, 42) {
		t.Fatal("expected forget to report success")
	}
	select {
	case msg := <-sub:
		id, ok := msg.(uint32)
		if !ok || id != 42 {
			t.Fatalf("unexpected removal payload %v", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("expected removal published")
	}
	if store.Forget(b, 42) {
		t.Fatal("expected second forget to report miss without publishing")
	}
}

func TestNodeStoreChanges_CoalescesBursts(t *testing.T) {
	store := NewNodeStore()
	for i := 0; i < 10; i++ {
		store.Merge(NodeUpdate{Node: Node{ID: uint32(i)}})
	}

	select {
	case <-store.Changes():
	default:
		t.Fatal("expected one pending change notification")
	}
	select {
	case <-store.Changes():
		t.Fatal("expected burst to coalesce into a single notification")
	default:
	}
}
