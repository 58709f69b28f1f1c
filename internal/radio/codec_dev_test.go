package radio

import (
	"encoding/json"
	"testing"

	"github.com/statico/meshtastic-cli-sub001/internal/domain"
)

func newTestCodec(t *testing.T) *DevCodec {
	t.Helper()
	c, err := NewDevCodec()
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}

	return c
}

func TestDevCodecText_RoundTrips(t *testing.T) {
	c := newTestCodec(t)

	enc, err := c.EncodeText(0x22222222, 1, "see you at the ridge", 0)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if enc.PacketID == 0 {
		t.Fatalf("expected non-zero packet id")
	}
	if !enc.WantAck {
		t.Fatalf("expected want_ack for direct message")
	}

	decoded, err := c.DecodeFromRadio(enc.Payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Message == nil {
		t.Fatalf("expected text payload")
	}
	if decoded.Message.Text != "see you at the ridge" {
		t.Fatalf("expected text roundtrip, got %q", decoded.Message.Text)
	}
	if decoded.Message.Channel != 1 {
		t.Fatalf("expected channel roundtrip, got %d", decoded.Message.Channel)
	}
	if decoded.PacketID != enc.PacketID {
		t.Fatalf("expected packet id %d, got %d", enc.PacketID, decoded.PacketID)
	}
}

func TestDevCodecText_BroadcastSkipsAck(t *testing.T) {
	c := newTestCodec(t)

	enc, err := c.EncodeText(domain.BroadcastNodeID, 0, "cq cq", 0)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if enc.WantAck {
		t.Fatalf("broadcast must not request an ack")
	}
}

func TestDevCodecDecode_RoutingAck(t *testing.T) {
	c := newTestCodec(t)

	payload, _ := json.Marshal(jsonFrame{
		ID:        10,
		From:      0x22222222,
		To:        0x11111111,
		Port:      portRouting,
		RequestID: 777,
		Routing:   &jsonRouting{FromDest: true},
	})
	decoded, err := c.DecodeFromRadio(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Ack == nil {
		t.Fatalf("expected ack payload")
	}
	if decoded.Ack.RequestID != 777 || !decoded.Ack.FromDestination {
		t.Fatalf("unexpected ack %+v", decoded.Ack)
	}
	if decoded.Ack.Error != domain.DeliveryErrorNone {
		t.Fatalf("expected no error, got %q", decoded.Ack.Error)
	}
}

func TestDevCodecDecode_UnknownRoutingError(t *testing.T) {
	c := newTestCodec(t)

	payload, _ := json.Marshal(jsonFrame{
		ID:        11,
		Port:      portRouting,
		RequestID: 778,
		Routing:   &jsonRouting{Error: "firmware_surprise"},
	})
	decoded, err := c.DecodeFromRadio(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Ack.Error != domain.DeliveryErrorUnknown {
		t.Fatalf("expected unknown error mapping, got %q", decoded.Ack.Error)
	}
}

func TestDevCodecDecode_NodeInfoResponseAlsoUpdatesNode(t *testing.T) {
	c := newTestCodec(t)

	payload, _ := json.Marshal(jsonFrame{
		ID:        20,
		From:      0x33333333,
		To:        0x11111111,
		Port:      portNodeInfo,
		RequestID: 555,
		User:      &jsonUser{ShortName: "BRVO", LongName: "Bravo Base", HardwareModel: "TBEAM"},
	})
	decoded, err := c.DecodeFromRadio(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.NodeUpdate == nil || decoded.NodeUpdate.Node.ShortName != "BRVO" {
		t.Fatalf("expected node update, got %+v", decoded.NodeUpdate)
	}
	if decoded.NodeUpdate.Source != domain.SourceNodeInfo {
		t.Fatalf("expected node info source, got %v", decoded.NodeUpdate.Source)
	}
	if decoded.NodeInfo == nil {
		t.Fatalf("expected probe response payload")
	}
	if decoded.NodeInfo.PacketID != 555 || decoded.NodeInfo.Responder != 0x33333333 {
		t.Fatalf("unexpected response %+v", decoded.NodeInfo)
	}
}

func TestDevCodecDecode_UnsolicitedNodeInfoHasNoResponse(t *testing.T) {
	c := newTestCodec(t)

	payload, _ := json.Marshal(jsonFrame{
		ID:   21,
		From: 0x33333333,
		To:   domain.BroadcastNodeID,
		Port: portNodeInfo,
		User: &jsonUser{ShortName: "BRVO"},
	})
	decoded, err := c.DecodeFromRadio(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.NodeUpdate == nil {
		t.Fatalf("expected node update")
	}
	if decoded.NodeInfo != nil {
		t.Fatalf("unsolicited broadcast must not look like a probe reply")
	}
}

func TestDevCodecDecode_TracerouteRoute(t *testing.T) {
	c := newTestCodec(t)

	payload, _ := json.Marshal(jsonFrame{
		ID:        30,
		From:      0x44444444,
		To:        0x11111111,
		Port:      portTraceroute,
		RequestID: 999,
		Traceroute: &jsonTraceroute{
			Route:      []uint32{0x11111111, 0x22222222, 0x44444444},
			SNRTowards: []float64{7.5, -2.25},
		},
	})
	decoded, err := c.DecodeFromRadio(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Traceroute == nil {
		t.Fatalf("expected traceroute payload")
	}
	if decoded.Traceroute.PacketID != 999 {
		t.Fatalf("expected request correlation, got %d", decoded.Traceroute.PacketID)
	}
	if len(decoded.Traceroute.Route) != 3 {
		t.Fatalf("expected route roundtrip, got %v", decoded.Traceroute.Route)
	}
}

func TestDevCodecDecode_MalformedFrame(t *testing.T) {
	c := newTestCodec(t)

	if _, err := c.DecodeFromRadio([]byte(`{not json`)); err == nil {
		t.Fatalf("expected parse error")
	}
	payload, _ := json.Marshal(jsonFrame{ID: 40, Port: portPosition})
	if _, err := c.DecodeFromRadio(payload); err == nil {
		t.Fatalf("expected error for position frame without payload")
	}
}

func TestDevCodecProbes_WantResponse(t *testing.T) {
	c := newTestCodec(t)

	enc, err := c.EncodeTracerouteRequest(0x44444444)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var frame jsonFrame
	if err := json.Unmarshal(enc.Payload, &frame); err != nil {
		t.Fatalf("parse encoded probe: %v", err)
	}
	if frame.Port != portTraceroute || !frame.WantResponse {
		t.Fatalf("unexpected probe frame %+v", frame)
	}
	if frame.To != 0x44444444 {
		t.Fatalf("expected destination set, got %08x", frame.To)
	}
}
