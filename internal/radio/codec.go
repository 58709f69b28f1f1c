package radio

import (
	"github.com/statico/meshtastic-cli-sub001/internal/domain"
)

// DecodedPacket is one parsed inbound packet: the envelope plus the event
// payloads the packet implies. A probe reply may set more than one pointer,
// e.g. a node info response also carries a node update.
type DecodedPacket struct {
	PacketID uint32
	From     uint32
	To       uint32
	Channel  int
	PortNum  int
	SNR      *float64
	RSSI     *int
	HopStart *uint32
	HopLimit *uint32
	Raw      []byte

	NodeUpdate *domain.NodeUpdate
	Message    *domain.Message
	Ack        *Ack
	Position   *domain.PositionResponse
	Traceroute *domain.TracerouteResponse
	NodeInfo   *domain.NodeInfoResponse
}

// Ack is a routing acknowledgment for a previously sent packet. A zero Error
// with FromDestination set means the destination itself confirmed receipt;
// otherwise the first relaying hop did.
type Ack struct {
	RequestID       uint32
	Error           domain.DeliveryError
	FromDestination bool
}

// EncodedMessage is an outbound frame with its tracking metadata. PacketID is
// assigned by the codec and later correlates acknowledgments.
type EncodedMessage struct {
	Payload  []byte
	PacketID uint32
	WantAck  bool
}

// Codec translates between transport payloads and domain events.
type Codec interface {
	DecodeFromRadio(payload []byte) (DecodedPacket, error)
	EncodeText(to uint32, channel int, text string, replyID uint32) (EncodedMessage, error)
	EncodeTracerouteRequest(dest uint32) (EncodedMessage, error)
	EncodePositionRequest(dest uint32) (EncodedMessage, error)
	EncodeNodeInfoRequest(dest uint32) (EncodedMessage, error)
}
