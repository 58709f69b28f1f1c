package domain

import "time"

// PositionResponse is a position probe reply, keyed by the originating
// packet id plus requester and responder.
type PositionResponse struct {
	LocalID    int64
	PacketID   uint32
	Requester  uint32
	Responder  uint32
	LatitudeI  int32
	LongitudeI int32
	Altitude   int32
	Satellites uint32
	At         time.Time
}

// TracerouteResponse is a traceroute probe reply: the ordered hop list with
// per-hop signal quality, in both directions when the reply carries them.
type TracerouteResponse struct {
	LocalID    int64
	PacketID   uint32
	Requester  uint32
	Responder  uint32
	Route      []uint32
	SNRTowards []float64
	RouteBack  []uint32
	SNRBack    []float64
	At         time.Time
}

// NodeInfoResponse is a node-info probe reply.
type NodeInfoResponse struct {
	LocalID       int64
	PacketID      uint32
	Requester     uint32
	Responder     uint32
	ShortName     string
	LongName      string
	HardwareModel string
	Role          string
	At            time.Time
}

type DiagnosticKind string

const (
	DiagnosticPosition   DiagnosticKind = "position"
	DiagnosticTraceroute DiagnosticKind = "traceroute"
	DiagnosticNodeInfo   DiagnosticKind = "node_info"
)

// DiagnosticEntry is one row of the combined chronological diagnostics log.
// Exactly one payload pointer is set, matching Kind.
type DiagnosticEntry struct {
	Kind       DiagnosticKind
	At         time.Time
	Position   *PositionResponse
	Traceroute *TracerouteResponse
	NodeInfo   *NodeInfoResponse
}
