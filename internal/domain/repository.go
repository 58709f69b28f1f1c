package domain

import "context"

type NodeRepository interface {
	Upsert(ctx context.Context, n Node) error
	Delete(ctx context.Context, id uint32) error
	ListSorted(ctx context.Context) ([]Node, error)
}

type MessageRepository interface {
	Insert(ctx context.Context, m Message) (int64, error)
	UpdateStatusByPacketID(ctx context.Context, packetID uint32, status MessageStatus, reason DeliveryError) error
	ListChannel(ctx context.Context, channel, limit int) ([]Message, error)
	ListDirect(ctx context.Context, localNodeID, counterpartID uint32, limit int) ([]Message, error)
	Conversations(ctx context.Context, localNodeID uint32) ([]Conversation, error)
	MarkConversationRead(ctx context.Context, localNodeID, counterpartID uint32) error
}

type PacketRepository interface {
	Insert(ctx context.Context, p PacketRecord) error
	ListRecent(ctx context.Context, limit int) ([]PacketRecord, error)
}

type DiagnosticsRepository interface {
	InsertPosition(ctx context.Context, r PositionResponse) error
	InsertTraceroute(ctx context.Context, r TracerouteResponse) error
	InsertNodeInfo(ctx context.Context, r NodeInfoResponse) error
	Positions(ctx context.Context, limit int) ([]PositionResponse, error)
	Traceroutes(ctx context.Context, limit int) ([]TracerouteResponse, error)
	NodeInfos(ctx context.Context, limit int) ([]NodeInfoResponse, error)
	CombinedLog(ctx context.Context, limit int) ([]DiagnosticEntry, error)
}
