package domain

import (
	"context"
	"sync"

	"github.com/statico/meshtastic-cli-sub001/internal/bus"
	"github.com/statico/meshtastic-cli-sub001/internal/connectors"
)

const DefaultPacketCapacity = 1000

// PacketStore is a fixed-capacity, insertion-ordered buffer of decoded
// packets. Oldest entries are evicted first once capacity is exceeded; the
// persistence retention limit is enforced independently by the packet repo.
type PacketStore struct {
	mu       sync.RWMutex
	capacity int
	packets  []PacketRecord
	changes  chan struct{}
}

func NewPacketStore(capacity int) *PacketStore {
	if capacity <= 0 {
		capacity = DefaultPacketCapacity
	}

	return &PacketStore{
		capacity: capacity,
		packets:  make([]PacketRecord, 0, capacity),
		changes:  make(chan struct{}, 1),
	}
}

// Load seeds the store from rehydrated records, oldest first, keeping at most
// the newest capacity entries.
func (s *PacketStore) Load(records []PacketRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(records) > s.capacity {
		records = records[len(records)-s.capacity:]
	}
	s.packets = append(s.packets[:0], records...)
	s.notify()
}

func (s *PacketStore) Start(ctx context.Context, b bus.MessageBus) {
	sub := b.Subscribe(connectors.TopicPacket)
	go func() {
		defer b.Unsubscribe(sub, connectors.TopicPacket)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-sub:
				if !ok {
					return
				}
				record, ok := msg.(PacketRecord)
				if !ok {
					continue
				}
				s.Add(record)
			}
		}
	}()
}

func (s *PacketStore) Add(record PacketRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.packets = append(s.packets, record)
	if overflow := len(s.packets) - s.capacity; overflow > 0 {
		s.packets = append(s.packets[:0], s.packets[overflow:]...)
	}
	s.notify()
}

// Snapshot returns the buffered packets oldest first.
func (s *PacketStore) Snapshot() []PacketRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]PacketRecord, len(s.packets))
	copy(out, s.packets)

	return out
}

// Get returns the most recent record carrying the given network packet id.
func (s *PacketStore) Get(packetID uint32) (PacketRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.packets) - 1; i >= 0; i-- {
		if s.packets[i].PacketID == packetID {
			return s.packets[i], true
		}
	}

	return PacketRecord{}, false
}

func (s *PacketStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.packets)
}

func (s *PacketStore) Changes() <-chan struct{} {
	return s.changes
}

func (s *PacketStore) notify() {
	select {
	case s.changes <- struct{}{}:
	default:
	}
}
