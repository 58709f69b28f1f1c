package domain

import "time"

// MessageStatus is the delivery lifecycle state of a sent message.
type MessageStatus int

const (
	MessageStatusPending MessageStatus = iota + 1
	MessageStatusAcked
	MessageStatusDelivered
	MessageStatusError
)

func (s MessageStatus) String() string {
	switch s {
	case MessageStatusPending:
		return "pending"
	case MessageStatusAcked:
		return "acked"
	case MessageStatusDelivered:
		return "delivered"
	case MessageStatusError:
		return "error"
	default:
		return "unknown"
	}
}

// statusRank orders delivery states so transitions only move forward.
// Delivered and error share the top rank: neither may replace the other.
func statusRank(s MessageStatus) int {
	switch s {
	case MessageStatusPending:
		return 1
	case MessageStatusAcked:
		return 2
	case MessageStatusDelivered, MessageStatusError:
		return 3
	default:
		return 0
	}
}

// ShouldTransitionMessageStatus reports whether a message may move from
// current to next. Pending may advance to any state, acked only to an
// end-to-end outcome, and terminal outcomes never change. Re-applying the
// same state is a no-op rather than an error.
func ShouldTransitionMessageStatus(current, next MessageStatus) bool {
	if next == 0 || current == next {
		return false
	}
	if current == 0 {
		return true
	}

	return statusRank(next) > statusRank(current)
}

// DeliveryError is a short machine-readable delivery failure reason. The
// presentation layer maps these to human-readable text.
type DeliveryError string

const (
	DeliveryErrorNone        DeliveryError = ""
	DeliveryErrorNoRoute     DeliveryError = "no_route"
	DeliveryErrorRejected    DeliveryError = "rejected"
	DeliveryErrorTimeout     DeliveryError = "timeout"
	DeliveryErrorTooLarge    DeliveryError = "too_large"
	DeliveryErrorNoResponse  DeliveryError = "no_response"
	DeliveryErrorRateLimited DeliveryError = "rate_limited"
	DeliveryErrorNoChannel   DeliveryError = "no_channel"
	DeliveryErrorAuthFailure DeliveryError = "auth_failure"
	DeliveryErrorUnknown     DeliveryError = "unknown"
)

// ApplyAckTimeout lazily resolves a stale pending outbound message to a
// timeout error at read time. There is no per-message timer: the sent-at
// timestamp plus the configured window decides the presented state.
func ApplyAckTimeout(m Message, now time.Time, window time.Duration) Message {
	if m.Direction != MessageDirectionOut || m.Status != MessageStatusPending {
		return m
	}
	if !m.WantAck || m.SentAt.IsZero() || window <= 0 {
		return m
	}
	if now.Sub(m.SentAt) <= window {
		return m
	}

	m.Status = MessageStatusError
	m.ErrorReason = DeliveryErrorTimeout

	return m
}
