package transport

import (
	"context"

	"github.com/statico/meshtastic-cli-sub001/internal/connectors"
)

// Event is one entry of the transport's ordered event sequence: either a
// connection status change or a raw inbound packet, never both.
type Event struct {
	Status *connectors.ConnStatus
	Packet []byte
}

// Transport owns the link to the radio. Next is the single-consumer pull
// side of the event sequence; Send may run concurrently with the polling
// loop and is never serialized behind it.
type Transport interface {
	Connect(ctx context.Context) error
	Send(ctx context.Context, payload []byte) error
	Next(ctx context.Context) (Event, bool)
	Close() error
}

// LocalNodeResolver is implemented by transports that can discover the
// radio's own node identity at startup.
type LocalNodeResolver interface {
	LocalNodeID(ctx context.Context) (uint32, error)
}
