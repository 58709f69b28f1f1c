package connectors

const (
	TopicConnStatus    = "conn.status"
	TopicPacket        = "packet.in"
	TopicNodeUpdate    = "node.update"
	TopicNodeRemoved   = "node.removed"
	TopicMessage       = "message"
	TopicMessageStatus = "message.status"
	TopicPositionLog   = "diag.position"
	TopicTracerouteLog = "diag.traceroute"
	TopicNodeInfoLog   = "diag.nodeinfo"
	TopicRawFrameIn    = "raw.frame.in"
	TopicRawFrameOut   = "raw.frame.out"
)
