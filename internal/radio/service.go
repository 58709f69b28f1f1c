package radio

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/statico/meshtastic-cli-sub001/internal/bus"
	"github.com/statico/meshtastic-cli-sub001/internal/connectors"
	"github.com/statico/meshtastic-cli-sub001/internal/domain"
	"github.com/statico/meshtastic-cli-sub001/internal/transport"
)

const maxTextBytes = 200

type SendResult struct {
	Message domain.Message
	Err     error
}

type sendRequest struct {
	to      uint32
	channel int
	text    string
	replyID uint32
	result  chan SendResult
}

// Service drives synchronization between the transport and the rest of the
// application: it consumes the transport's event sequence, decodes packets
// into domain events on the bus, and serializes outbound sends.
type Service struct {
	logger      *slog.Logger
	transport   transport.Transport
	codec       Codec
	bus         bus.MessageBus
	localNodeID uint32
	outbox      chan sendRequest
	now         func() time.Time
}

func NewService(logger *slog.Logger, b bus.MessageBus, tr transport.Transport, codec Codec, localNodeID uint32) *Service {
	return &Service{
		logger:      logger,
		transport:   tr,
		codec:       codec,
		bus:         b,
		localNodeID: localNodeID,
		outbox:      make(chan sendRequest, 128),
		now:         time.Now,
	}
}

func (s *Service) LocalNodeID() uint32 {
	return s.localNodeID
}

func (s *Service) Start(ctx context.Context) {
	go s.runOutbox(ctx)
	go s.runReader(ctx)
}

// SendText queues a text message for transmission. The result carries the
// pending outbound message on success or the synchronous transport error.
func (s *Service) SendText(to uint32, channel int, text string, replyID uint32) <-chan SendResult {
	resCh := make(chan SendResult, 1)
	if utf8.RuneCountInString(strings.TrimSpace(text)) == 0 {
		resCh <- SendResult{Err: errors.New("message body is empty")}
		close(resCh)

		return resCh
	}
	if len([]byte(text)) > maxTextBytes {
		resCh <- SendResult{Err: fmt.Errorf("message body exceeds %d bytes: %d", maxTextBytes, len([]byte(text)))}
		close(resCh)

		return resCh
	}

	s.outbox <- sendRequest{to: to, channel: channel, text: text, replyID: replyID, result: resCh}

	return resCh
}

// SendTraceroute dispatches a route discovery probe toward dest. The reply
// arrives later as a decoded packet and surfaces on the diagnostics topic.
func (s *Service) SendTraceroute(ctx context.Context, dest uint32) error {
	enc, err := s.codec.EncodeTracerouteRequest(dest)
	if err != nil {
		return fmt.Errorf("encode traceroute request: %w", err)
	}

	return s.writeFrame(ctx, enc.Payload)
}

func (s *Service) RequestPosition(ctx context.Context, dest uint32) error {
	enc, err := s.codec.EncodePositionRequest(dest)
	if err != nil {
		return fmt.Errorf("encode position request: %w", err)
	}

	return s.writeFrame(ctx, enc.Payload)
}

func (s *Service) RequestNodeInfo(ctx context.Context, dest uint32) error {
	enc, err := s.codec.EncodeNodeInfoRequest(dest)
	if err != nil {
		return fmt.Errorf("encode node info request: %w", err)
	}

	return s.writeFrame(ctx, enc.Payload)
}

func (s *Service) runReader(ctx context.Context) {
	for {
		ev, ok := s.transport.Next(ctx)
		if !ok {
			return
		}
		if ev.Status != nil {
			s.bus.Publish(connectors.TopicConnStatus, *ev.Status)
			continue
		}
		s.handlePacket(ev.Packet)
	}
}

func (s *Service) handlePacket(payload []byte) {
	s.bus.Publish(connectors.TopicRawFrameIn, connectors.RawFrame{Hex: strings.ToUpper(hex.EncodeToString(payload)), Len: len(payload)})

	rxTime := s.now()
	decoded, err := s.codec.DecodeFromRadio(payload)

	record := domain.PacketRecord{
		PacketID: decoded.PacketID,
		From:     decoded.From,
		To:       decoded.To,
		Channel:  decoded.Channel,
		PortNum:  decoded.PortNum,
		SNR:      decoded.SNR,
		RSSI:     decoded.RSSI,
		Payload:  payload,
		RxTime:   rxTime,
	}
	if err != nil {
		record.DecodeError = err.Error()
	}
	// Undecodable packets still enter the diagnostic record.
	s.bus.Publish(connectors.TopicPacket, record)
	if err != nil {
		s.logger.Warn("decode fromradio failed", "error", err, "len", len(payload))

		return
	}

	if decoded.NodeUpdate != nil {
		update := *decoded.NodeUpdate
		if update.HeardAt.IsZero() {
			update.HeardAt = rxTime
		}
		s.bus.Publish(connectors.TopicNodeUpdate, update)
	} else if decoded.From != 0 && decoded.From != domain.BroadcastNodeID && decoded.From != s.localNodeID {
		// Any packet from a node proves it is alive; refresh last-heard
		// and link quality even when the payload says nothing about it.
		s.bus.Publish(connectors.TopicNodeUpdate, domain.NodeUpdate{
			Node:    domain.Node{ID: decoded.From, SNR: decoded.SNR, RSSI: decoded.RSSI},
			Source:  domain.SourcePacket,
			HeardAt: rxTime,
		})
	}
	if decoded.Message != nil {
		msg := *decoded.Message
		msg.Direction = domain.MessageDirectionIn
		msg.Status = domain.MessageStatusDelivered
		if msg.ReceivedAt.IsZero() {
			msg.ReceivedAt = rxTime
		}
		s.bus.Publish(connectors.TopicMessage, msg)
	}
	if decoded.Ack != nil {
		s.bus.Publish(connectors.TopicMessageStatus, ackToStatusUpdate(*decoded.Ack, rxTime))
	}
	if decoded.Position != nil {
		resp := *decoded.Position
		if resp.At.IsZero() {
			resp.At = rxTime
		}
		s.bus.Publish(connectors.TopicPositionLog, resp)
	}
	if decoded.Traceroute != nil {
		resp := *decoded.Traceroute
		if resp.At.IsZero() {
			resp.At = rxTime
		}
		s.bus.Publish(connectors.TopicTracerouteLog, resp)
	}
	if decoded.NodeInfo != nil {
		resp := *decoded.NodeInfo
		if resp.At.IsZero() {
			resp.At = rxTime
		}
		s.bus.Publish(connectors.TopicNodeInfoLog, resp)
	}
}

// ackToStatusUpdate maps a routing acknowledgment to a delivery transition:
// an error outcome beats any ack, a destination ack means delivered, and a
// first-hop ack only reaches acked.
func ackToStatusUpdate(ack Ack, at time.Time) domain.MessageStatusUpdate {
	update := domain.MessageStatusUpdate{PacketID: ack.RequestID, At: at}
	switch {
	case ack.Error != domain.DeliveryErrorNone:
		update.Status = domain.MessageStatusError
		update.Reason = ack.Error
	case ack.FromDestination:
		update.Status = domain.MessageStatusDelivered
	default:
		update.Status = domain.MessageStatusAcked
	}

	return update
}

func (s *Service) runOutbox(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-s.outbox:
			res := s.handleSend(ctx, req)
			req.result <- res
			close(req.result)
		}
	}
}

func (s *Service) handleSend(ctx context.Context, req sendRequest) SendResult {
	enc, err := s.codec.EncodeText(req.to, req.channel, req.text, req.replyID)
	if err != nil {
		return SendResult{Err: fmt.Errorf("encode outgoing message: %w", err)}
	}
	if err := s.writeFrame(ctx, enc.Payload); err != nil {
		return SendResult{Err: fmt.Errorf("send outgoing frame: %w", err)}
	}

	msg := domain.Message{
		PacketID:  enc.PacketID,
		From:      s.localNodeID,
		To:        req.to,
		Channel:   req.channel,
		Text:      req.text,
		Direction: domain.MessageDirectionOut,
		Status:    domain.MessageStatusPending,
		ReplyID:   req.replyID,
		WantAck:   enc.WantAck,
		Read:      true,
		SentAt:    s.now(),
	}
	s.bus.Publish(connectors.TopicMessage, msg)

	return SendResult{Message: msg}
}

func (s *Service) writeFrame(ctx context.Context, payload []byte) error {
	writeCtx, cancel := context.WithTimeout(ctx, 8*time.Second)
	defer cancel()
	if err := s.transport.Send(writeCtx, payload); err != nil {
		return err
	}
	s.bus.Publish(connectors.TopicRawFrameOut, connectors.RawFrame{Hex: strings.ToUpper(hex.EncodeToString(payload)), Len: len(payload)})

	return nil
}
