package domain

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/statico/meshtastic-cli-sub001/internal/bus"
	"github.com/statico/meshtastic-cli-sub001/internal/connectors"
)

// NodeStore keeps the latest merged node snapshots in memory. It is
// authoritative for the running session; persistence happens asynchronously
// through the projection.
type NodeStore struct {
	mu      sync.RWMutex
	nodes   map[uint32]Node
	changes chan struct{}
}

func NewNodeStore() *NodeStore {
	return &NodeStore{
		nodes:   make(map[uint32]Node),
		changes: make(chan struct{}, 1),
	}
}

func (s *NodeStore) Load(nodes []Node) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, node := range nodes {
		s.nodes[node.ID] = node
	}
	s.notify()
}

func (s *NodeStore) Start(ctx context.Context, b bus.MessageBus) {
	sub := b.Subscribe(connectors.TopicNodeUpdate)
	go func() {
		defer b.Unsubscribe(sub, connectors.TopicNodeUpdate)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-sub:
				if !ok {
					return
				}
				update, ok := msg.(NodeUpdate)
				if !ok {
					continue
				}
				s.Merge(update)
			}
		}
	}()
}

// Merge folds one partial observation into the cached node. Absent fields
// never clobber populated ones, regardless of the update source; every
// observation refreshes last-heard.
func (s *NodeStore) Merge(update NodeUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()

	node := update.Node
	existing, ok := s.nodes[node.ID]
	if ok {
		node = mergeNode(existing, node)
	}

	heardAt := update.HeardAt
	if heardAt.IsZero() {
		heardAt = time.Now()
	}
	if heardAt.After(node.LastHeardAt) {
		node.LastHeardAt = heardAt
	}
	node.UpdatedAt = time.Now()

	s.nodes[node.ID] = node
	s.notify()
}

func mergeNode(existing, incoming Node) Node {
	if incoming.ShortName == "" {
		incoming.ShortName = existing.ShortName
	}
	if incoming.LongName == "" {
		incoming.LongName = existing.LongName
	}
	if incoming.HardwareModel == "" {
		incoming.HardwareModel = existing.HardwareModel
	}
	if incoming.Role == "" {
		incoming.Role = existing.Role
	}
	if incoming.LatitudeI == nil {
		incoming.LatitudeI = existing.LatitudeI
	}
	if incoming.LongitudeI == nil {
		incoming.LongitudeI = existing.LongitudeI
	}
	if incoming.Altitude == nil {
		incoming.Altitude = existing.Altitude
	}
	if incoming.BatteryLevel == nil {
		incoming.BatteryLevel = existing.BatteryLevel
	}
	if incoming.Voltage == nil {
		incoming.Voltage = existing.Voltage
	}
	if incoming.ChannelUtilization == nil {
		incoming.ChannelUtilization = existing.ChannelUtilization
	}
	if incoming.HopsAway == nil {
		incoming.HopsAway = existing.HopsAway
	}
	if incoming.IsFavorite == nil {
		incoming.IsFavorite = existing.IsFavorite
	}
	if incoming.IsMuted == nil {
		incoming.IsMuted = existing.IsMuted
	}
	if len(incoming.PublicKey) == 0 {
		incoming.PublicKey = existing.PublicKey
	}
	if incoming.SNR == nil {
		incoming.SNR = existing.SNR
	}
	if incoming.RSSI == nil {
		incoming.RSSI = existing.RSSI
	}
	if existing.LastHeardAt.After(incoming.LastHeardAt) {
		incoming.LastHeardAt = existing.LastHeardAt
	}

	return incoming
}

// SnapshotSorted returns nodes ordered by hop distance ascending, then
// last-heard descending. Nodes with unknown hop distance sort last.
func (s *NodeStore) SnapshotSorted() []Node {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Node, 0, len(s.nodes))
	for _, node := range s.nodes {
		out = append(out, node)
	}
	sort.Slice(out, func(i, j int) bool {
		hi, hj := hopSortKey(out[i]), hopSortKey(out[j])
		if hi != hj {
			return hi < hj
		}

		return out[i].LastHeardAt.After(out[j].LastHeardAt)
	})

	return out
}

func hopSortKey(n Node) int {
	if n.HopsAway == nil {
		return int(^uint(0) >> 1)
	}

	return int(*n.HopsAway)
}

func (s *NodeStore) Get(id uint32) (Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	node, ok := s.nodes[id]

	return node, ok
}

// Remove deletes a node from the cache. Nodes never expire on their own;
// this is the explicit operator action.
func (s *NodeStore) Remove(id uint32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.nodes[id]; !ok {
		return false
	}
	delete(s.nodes, id)
	s.notify()

	return true
}

// Forget is the operator-facing removal: it drops the node from the cache
// and publishes the removal so the stored row is deleted as well.
func (s *NodeStore) Forget(b bus.MessageBus, id uint32) bool {
	if !s.Remove(id) {
		return false
	}
	b.Publish(connectors.TopicNodeRemoved, id)

	return true
}

// Changes delivers at most one pending notification regardless of how many
// merges happened since the last read, so burst traffic cannot storm
// subscribers.
func (s *NodeStore) Changes() <-chan struct{} {
	return s.changes
}

func (s *NodeStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes = make(map[uint32]Node)
	s.notify()
}

func (s *NodeStore) notify() {
	select {
	case s.changes <- struct{}{}:
	default:
	}
}
