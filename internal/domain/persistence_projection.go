package domain

import (
	"context"

	"github.com/statico/meshtastic-cli-sub001/internal/bus"
	"github.com/statico/meshtastic-cli-sub001/internal/connectors"
)

// WriteQueue serializes persistence writes from async domain events.
// Enqueue is fire-and-forget: callers never wait on durability.
type WriteQueue interface {
	Enqueue(name string, fn func(context.Context) error)
}

// StartPersistenceProjection writes bus events through to the store. Each
// subscription runs on its own goroutine; failures stay inside the write
// queue and never reach the caches.
func StartPersistenceProjection(ctx context.Context, b bus.MessageBus, queue WriteQueue, nodeRepo NodeRepository, msgRepo MessageRepository, packetRepo PacketRepository, diagRepo DiagnosticsRepository) {
	nodeSub := b.Subscribe(connectors.TopicNodeUpdate)
	nodeRemovedSub := b.Subscribe(connectors.TopicNodeRemoved)
	messageSub := b.Subscribe(connectors.TopicMessage)
	statusSub := b.Subscribe(connectors.TopicMessageStatus)
	packetSub := b.Subscribe(connectors.TopicPacket)
	positionSub := b.Subscribe(connectors.TopicPositionLog)
	tracerouteSub := b.Subscribe(connectors.TopicTracerouteLog)
	nodeInfoSub := b.Subscribe(connectors.TopicNodeInfoLog)

	go project(ctx, b, nodeSub, connectors.TopicNodeUpdate, func(update NodeUpdate) {
		node := update.Node
		queue.Enqueue("upsert_node", func(writeCtx context.Context) error {
			return nodeRepo.Upsert(writeCtx, node)
		})
	})

	go project(ctx, b, nodeRemovedSub, connectors.TopicNodeRemoved, func(id uint32) {
		queue.Enqueue("delete_node", func(writeCtx context.Context) error {
			return nodeRepo.Delete(writeCtx, id)
		})
	})

	go project(ctx, b, messageSub, connectors.TopicMessage, func(msg Message) {
		queue.Enqueue("insert_message", func(writeCtx context.Context) error {
			_, err := msgRepo.Insert(writeCtx, msg)

			return err
		})
	})

	go project(ctx, b, statusSub, connectors.TopicMessageStatus, func(update MessageStatusUpdate) {
		queue.Enqueue("update_message_status", func(writeCtx context.Context) error {
			return msgRepo.UpdateStatusByPacketID(writeCtx, update.PacketID, update.Status, update.Reason)
		})
	})

	go project(ctx, b, packetSub, connectors.TopicPacket, func(record PacketRecord) {
		queue.Enqueue("insert_packet", func(writeCtx context.Context) error {
			return packetRepo.Insert(writeCtx, record)
		})
	})

	go project(ctx, b, positionSub, connectors.TopicPositionLog, func(r PositionResponse) {
		queue.Enqueue("insert_position_response", func(writeCtx context.Context) error {
			return diagRepo.InsertPosition(writeCtx, r)
		})
	})

	go project(ctx, b, tracerouteSub, connectors.TopicTracerouteLog, func(r TracerouteResponse) {
		queue.Enqueue("insert_traceroute_response", func(writeCtx context.Context) error {
			return diagRepo.InsertTraceroute(writeCtx, r)
		})
	})

	go project(ctx, b, nodeInfoSub, connectors.TopicNodeInfoLog, func(r NodeInfoResponse) {
		queue.Enqueue("insert_node_info_response", func(writeCtx context.Context) error {
			return diagRepo.InsertNodeInfo(writeCtx, r)
		})
	})
}

func project[T any](ctx context.Context, b bus.MessageBus, sub bus.Subscription, topic string, handle func(T)) {
	defer b.Unsubscribe(sub, topic)
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-sub:
			if !ok {
				return
			}
			value, ok := raw.(T)
			if !ok {
				continue
			}
			handle(value)
		}
	}
}
