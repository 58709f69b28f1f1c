package domain

import (
	"context"
	"fmt"
)

// LoadStoresFromRepositories rehydrates the in-memory caches from the
// persistent store on startup. Corrupt individual rows were already skipped
// at the repository layer; only wholesale query failures abort loading.
func LoadStoresFromRepositories(ctx context.Context, nodes *NodeStore, packets *PacketStore, nodeRepo NodeRepository, packetRepo PacketRepository, packetCapacity int) error {
	nodeItems, err := nodeRepo.ListSorted(ctx)
	if err != nil {
		return fmt.Errorf("load nodes from db: %w", err)
	}
	packetItems, err := packetRepo.ListRecent(ctx, packetCapacity)
	if err != nil {
		return fmt.Errorf("load packets from db: %w", err)
	}

	nodes.Load(nodeItems)
	packets.Load(packetItems)

	return nil
}
