package radio

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/statico/meshtastic-cli-sub001/internal/domain"
)

// Port numbers used by the JSON debug framing, matching the firmware's
// application port assignments.
const (
	portText       = 1
	portPosition   = 3
	portNodeInfo   = 4
	portRouting    = 5
	portTraceroute = 70
	portTelemetry  = 67
)

type jsonUser struct {
	ShortName     string `json:"short_name,omitempty"`
	LongName      string `json:"long_name,omitempty"`
	HardwareModel string `json:"hw_model,omitempty"`
	Role          string `json:"role,omitempty"`
	PublicKey     []byte `json:"public_key,omitempty"`
}

type jsonPosition struct {
	LatitudeI  int32  `json:"latitude_i"`
	LongitudeI int32  `json:"longitude_i"`
	Altitude   int32  `json:"altitude,omitempty"`
	Satellites uint32 `json:"sats_in_view,omitempty"`
}

type jsonTelemetry struct {
	BatteryLevel       *uint32  `json:"battery_level,omitempty"`
	Voltage            *float64 `json:"voltage,omitempty"`
	ChannelUtilization *float64 `json:"channel_utilization,omitempty"`
}

type jsonRouting struct {
	Error    string `json:"error,omitempty"`
	FromDest bool   `json:"from_dest,omitempty"`
}

type jsonTraceroute struct {
	Route      []uint32  `json:"route"`
	SNRTowards []float64 `json:"snr_towards,omitempty"`
	RouteBack  []uint32  `json:"route_back,omitempty"`
	SNRBack    []float64 `json:"snr_back,omitempty"`
}

type jsonFrame struct {
	ID           uint32          `json:"id"`
	From         uint32          `json:"from,omitempty"`
	To           uint32          `json:"to"`
	Channel      int             `json:"channel,omitempty"`
	Port         int             `json:"port"`
	SNR          *float64        `json:"snr,omitempty"`
	RSSI         *int            `json:"rssi,omitempty"`
	HopStart     *uint32         `json:"hop_start,omitempty"`
	HopLimit     *uint32         `json:"hop_limit,omitempty"`
	WantAck      bool            `json:"want_ack,omitempty"`
	WantResponse bool            `json:"want_response,omitempty"`
	RequestID    uint32          `json:"request_id,omitempty"`
	ReplyID      uint32          `json:"reply_id,omitempty"`
	Text         string          `json:"text,omitempty"`
	User         *jsonUser       `json:"user,omitempty"`
	Position     *jsonPosition   `json:"position,omitempty"`
	Telemetry    *jsonTelemetry  `json:"telemetry,omitempty"`
	Routing      *jsonRouting    `json:"routing,omitempty"`
	Traceroute   *jsonTraceroute `json:"traceroute,omitempty"`
}

// DevCodec implements Codec for the JSON debug framing that simulated radios
// and the firmware's API test mode speak. The production protobuf codec
// plugs into the same seam.
type DevCodec struct {
	packetID atomic.Uint32
}

func NewDevCodec() (*DevCodec, error) {
	var seedRaw [4]byte
	if _, err := rand.Read(seedRaw[:]); err != nil {
		return nil, fmt.Errorf("seed codec packet id: %w", err)
	}
	c := &DevCodec{}
	c.packetID.Store(binary.BigEndian.Uint32(seedRaw[:]))

	return c, nil
}

func (c *DevCodec) DecodeFromRadio(payload []byte) (DecodedPacket, error) {
	var frame jsonFrame
	if err := json.Unmarshal(payload, &frame); err != nil {
		return DecodedPacket{}, fmt.Errorf("parse frame: %w", err)
	}

	decoded := DecodedPacket{
		PacketID: frame.ID,
		From:     frame.From,
		To:       frame.To,
		Channel:  frame.Channel,
		PortNum:  frame.Port,
		SNR:      frame.SNR,
		RSSI:     frame.RSSI,
		HopStart: frame.HopStart,
		HopLimit: frame.HopLimit,
		Raw:      payload,
	}

	switch frame.Port {
	case portText:
		decoded.Message = &domain.Message{
			PacketID: frame.ID,
			From:     frame.From,
			To:       frame.To,
			Channel:  frame.Channel,
			Text:     frame.Text,
			ReplyID:  frame.ReplyID,
			SNR:      frame.SNR,
			RSSI:     frame.RSSI,
			HopStart: frame.HopStart,
			HopLimit: frame.HopLimit,
		}
	case portNodeInfo:
		if frame.User == nil {
			return decoded, fmt.Errorf("node info frame %d missing user payload", frame.ID)
		}
		decoded.NodeUpdate = &domain.NodeUpdate{
			Node: domain.Node{
				ID:            frame.From,
				ShortName:     frame.User.ShortName,
				LongName:      frame.User.LongName,
				HardwareModel: frame.User.HardwareModel,
				Role:          frame.User.Role,
				PublicKey:     frame.User.PublicKey,
				SNR:           frame.SNR,
				RSSI:          frame.RSSI,
			},
			Source: domain.SourceNodeInfo,
		}
		if frame.RequestID != 0 {
			decoded.NodeInfo = &domain.NodeInfoResponse{
				PacketID:      frame.RequestID,
				Requester:     frame.To,
				Responder:     frame.From,
				ShortName:     frame.User.ShortName,
				LongName:      frame.User.LongName,
				HardwareModel: frame.User.HardwareModel,
				Role:          frame.User.Role,
			}
		}
	case portPosition:
		if frame.Position == nil {
			return decoded, fmt.Errorf("position frame %d missing position payload", frame.ID)
		}
		lat := frame.Position.LatitudeI
		lon := frame.Position.LongitudeI
		alt := frame.Position.Altitude
		decoded.NodeUpdate = &domain.NodeUpdate{
			Node: domain.Node{
				ID:         frame.From,
				LatitudeI:  &lat,
				LongitudeI: &lon,
				Altitude:   &alt,
				SNR:        frame.SNR,
				RSSI:       frame.RSSI,
			},
			Source: domain.SourcePosition,
		}
		if frame.RequestID != 0 {
			decoded.Position = &domain.PositionResponse{
				PacketID:   frame.RequestID,
				Requester:  frame.To,
				Responder:  frame.From,
				LatitudeI:  frame.Position.LatitudeI,
				LongitudeI: frame.Position.LongitudeI,
				Altitude:   frame.Position.Altitude,
				Satellites: frame.Position.Satellites,
			}
		}
	case portTelemetry:
		if frame.Telemetry == nil {
			return decoded, fmt.Errorf("telemetry frame %d missing telemetry payload", frame.ID)
		}
		decoded.NodeUpdate = &domain.NodeUpdate{
			Node: domain.Node{
				ID:                 frame.From,
				BatteryLevel:       frame.Telemetry.BatteryLevel,
				Voltage:            frame.Telemetry.Voltage,
				ChannelUtilization: frame.Telemetry.ChannelUtilization,
				SNR:                frame.SNR,
				RSSI:               frame.RSSI,
			},
			Source: domain.SourceTelemetry,
		}
	case portRouting:
		if frame.Routing == nil || frame.RequestID == 0 {
			return decoded, fmt.Errorf("routing frame %d missing request reference", frame.ID)
		}
		decoded.Ack = &Ack{
			RequestID:       frame.RequestID,
			Error:           parseDeliveryError(frame.Routing.Error),
			FromDestination: frame.Routing.FromDest,
		}
	case portTraceroute:
		if frame.Traceroute == nil {
			return decoded, fmt.Errorf("traceroute frame %d missing route payload", frame.ID)
		}
		decoded.Traceroute = &domain.TracerouteResponse{
			PacketID:   frame.RequestID,
			Requester:  frame.To,
			Responder:  frame.From,
			Route:      frame.Traceroute.Route,
			SNRTowards: frame.Traceroute.SNRTowards,
			RouteBack:  frame.Traceroute.RouteBack,
			SNRBack:    frame.Traceroute.SNRBack,
		}
	}

	return decoded, nil
}

func (c *DevCodec) EncodeText(to uint32, channel int, text string, replyID uint32) (EncodedMessage, error) {
	id := c.nextNonZeroID()
	wantAck := to != domain.BroadcastNodeID
	payload, err := json.Marshal(jsonFrame{
		ID:      id,
		To:      to,
		Channel: channel,
		Port:    portText,
		WantAck: wantAck,
		ReplyID: replyID,
		Text:    text,
	})
	if err != nil {
		return EncodedMessage{}, fmt.Errorf("encode text frame: %w", err)
	}

	return EncodedMessage{Payload: payload, PacketID: id, WantAck: wantAck}, nil
}

func (c *DevCodec) EncodeTracerouteRequest(dest uint32) (EncodedMessage, error) {
	return c.encodeProbe(dest, portTraceroute)
}

func (c *DevCodec) EncodePositionRequest(dest uint32) (EncodedMessage, error) {
	return c.encodeProbe(dest, portPosition)
}

func (c *DevCodec) EncodeNodeInfoRequest(dest uint32) (EncodedMessage, error) {
	return c.encodeProbe(dest, portNodeInfo)
}

func (c *DevCodec) encodeProbe(dest uint32, port int) (EncodedMessage, error) {
	id := c.nextNonZeroID()
	payload, err := json.Marshal(jsonFrame{
		ID:           id,
		To:           dest,
		Port:         port,
		WantResponse: true,
	})
	if err != nil {
		return EncodedMessage{}, fmt.Errorf("encode probe frame: %w", err)
	}

	return EncodedMessage{Payload: payload, PacketID: id}, nil
}

func (c *DevCodec) nextNonZeroID() uint32 {
	for {
		id := c.packetID.Add(1)
		if id != 0 {
			return id
		}
	}
}

func parseDeliveryError(s string) domain.DeliveryError {
	switch err := domain.DeliveryError(s); err {
	case domain.DeliveryErrorNone, domain.DeliveryErrorNoRoute, domain.DeliveryErrorRejected,
		domain.DeliveryErrorTimeout, domain.DeliveryErrorTooLarge, domain.DeliveryErrorNoResponse,
		domain.DeliveryErrorRateLimited, domain.DeliveryErrorNoChannel, domain.DeliveryErrorAuthFailure:
		return err
	default:
		return domain.DeliveryErrorUnknown
	}
}
