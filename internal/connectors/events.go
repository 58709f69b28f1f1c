package connectors

import "time"

// ConnectionState describes the transport lifecycle state shown to the operator.
type ConnectionState string

const (
	ConnectionStateDisconnected ConnectionState = "disconnected"
	ConnectionStateConnecting   ConnectionState = "connecting"
	ConnectionStateConnected    ConnectionState = "connected"
	ConnectionStateReconnecting ConnectionState = "reconnecting"
)

// Terminal reports whether the state ends the transport's polling loop.
// Reconnecting is deliberately non-terminal: backoff below the error ceiling
// keeps trying without surfacing a user-facing disconnect.
func (s ConnectionState) Terminal() bool {
	return s == ConnectionStateDisconnected
}

// ConnStatus is a bus event snapshot of current transport status.
type ConnStatus struct {
	State     ConnectionState
	Err       string
	Target    string
	Timestamp time.Time
}

// RawFrame carries frame diagnostics for debug views and logs.
type RawFrame struct {
	Hex string
	Len int
}
