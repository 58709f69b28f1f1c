package domain

import "time"

// Node is the merged view of one mesh participant, keyed by its numeric id.
// Optional fields are pointers so sparse updates can be told apart from
// explicit values when merging.
type Node struct {
	ID                 uint32
	ShortName          string
	LongName           string
	HardwareModel      string
	Role               string
	LatitudeI          *int32
	LongitudeI         *int32
	Altitude           *int32
	BatteryLevel       *uint32
	Voltage            *float64
	ChannelUtilization *float64
	HopsAway           *uint32
	IsFavorite         *bool
	IsMuted            *bool
	PublicKey          []byte
	SNR                *float64
	RSSI               *int
	LastHeardAt        time.Time
	UpdatedAt          time.Time
}

// positionScale converts Meshtastic fixed-point coordinates to degrees.
const positionScale = 1e-7

// Latitude returns the node's latitude in degrees, if known.
func (n Node) Latitude() (float64, bool) {
	if n.LatitudeI == nil {
		return 0, false
	}

	return float64(*n.LatitudeI) * positionScale, true
}

// Longitude returns the node's longitude in degrees, if known.
func (n Node) Longitude() (float64, bool) {
	if n.LongitudeI == nil {
		return 0, false
	}

	return float64(*n.LongitudeI) * positionScale, true
}

// UpdateSource identifies which kind of event produced a node update.
type UpdateSource int

const (
	SourceNodeInfo UpdateSource = iota + 1
	SourceUserBroadcast
	SourcePacket
	SourcePosition
	SourceTelemetry
	SourceImport
)

// NodeUpdate is one partial node observation published on the bus.
type NodeUpdate struct {
	Node    Node
	Source  UpdateSource
	HeardAt time.Time
}

type MessageDirection int

const (
	MessageDirectionIn MessageDirection = iota + 1
	MessageDirectionOut
)

// Message is a channel broadcast or direct message. The network packet id is
// not globally unique over time; LocalID is the stable internal key.
type Message struct {
	LocalID     int64
	PacketID    uint32
	From        uint32
	To          uint32
	Channel     int
	Text        string
	Direction   MessageDirection
	Status      MessageStatus
	ErrorReason DeliveryError
	ReplyID     uint32
	WantAck     bool
	Read        bool
	SNR         *float64
	RSSI        *int
	HopStart    *uint32
	HopLimit    *uint32
	SentAt      time.Time
	ReceivedAt  time.Time
}

// IsDirect reports whether the message targets a specific node rather than
// the broadcast address.
func (m Message) IsDirect() bool {
	return m.To != BroadcastNodeID
}

// MessageStatusUpdate carries a delivery state transition for a sent message.
type MessageStatusUpdate struct {
	PacketID uint32
	Status   MessageStatus
	Reason   DeliveryError
	At       time.Time
}

// PacketRecord is a raw packet envelope retained for diagnostic replay.
type PacketRecord struct {
	LocalID     int64
	PacketID    uint32
	From        uint32
	To          uint32
	Channel     int
	PortNum     int
	SNR         *float64
	RSSI        *int
	Payload     []byte
	DecodeError string
	RxTime      time.Time
}

// Conversation is the read-path aggregate for one direct-message counterpart.
type Conversation struct {
	CounterpartID uint32
	UnreadCount   int
	LastMessage   Message
}
