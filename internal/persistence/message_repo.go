package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/statico/meshtastic-cli-sub001/internal/domain"
)

// MessageRepo implements domain.MessageRepository on SQLite. Reads apply the
// lazy acknowledgment timeout: stale pending sends surface as timeout errors
// without ever being rewritten by a background task.
type MessageRepo struct {
	db        *sqlx.DB
	ackWindow time.Duration
	now       func() time.Time
}

func NewMessageRepo(db *sqlx.DB, ackWindow time.Duration) *MessageRepo {
	return &MessageRepo{db: db, ackWindow: ackWindow, now: time.Now}
}

type messageRow struct {
	LocalID     int64           `db:"local_id"`
	PacketID    int64           `db:"packet_id"`
	FromNode    int64           `db:"from_node"`
	ToNode      int64           `db:"to_node"`
	Channel     int             `db:"channel"`
	Body        string          `db:"body"`
	Direction   int             `db:"direction"`
	Status      int             `db:"status"`
	ErrorReason string          `db:"error_reason"`
	ReplyID     int64           `db:"reply_id"`
	WantAck     int             `db:"want_ack"`
	IsRead      int             `db:"is_read"`
	SNR         sql.NullFloat64 `db:"snr"`
	RSSI        sql.NullInt64   `db:"rssi"`
	HopStart    sql.NullInt64   `db:"hop_start"`
	HopLimit    sql.NullInt64   `db:"hop_limit"`
	SentAt      int64           `db:"sent_at"`
	ReceivedAt  int64           `db:"received_at"`
}

const messageColumns = `
	local_id, packet_id, from_node, to_node, channel, body, direction, status,
	error_reason, reply_id, want_ack, is_read, snr, rssi, hop_start, hop_limit,
	sent_at, received_at`

func (r *MessageRepo) Insert(ctx context.Context, m domain.Message) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO messages(
			packet_id, from_node, to_node, channel, body, direction, status,
			error_reason, reply_id, want_ack, is_read, snr, rssi, hop_start, hop_limit,
			sent_at, received_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		int64(m.PacketID),
		int64(m.From),
		int64(m.To),
		m.Channel,
		m.Text,
		int(m.Direction),
		int(m.Status),
		string(m.ErrorReason),
		int64(m.ReplyID),
		boolToInt(m.WantAck),
		boolToInt(m.Read),
		nullableFloat(m.SNR),
		nullableInt(m.RSSI),
		nullableUint32(m.HopStart),
		nullableUint32(m.HopLimit),
		timeToUnixMillis(m.SentAt),
		timeToUnixMillis(m.ReceivedAt),
	)
	if err != nil {
		return 0, fmt.Errorf("insert message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("get message local id: %w", err)
	}

	return id, nil
}

// UpdateStatusByPacketID applies a delivery state transition to messages
// bearing the packet id. Rows whose current state forbids the transition are
// left untouched, which makes duplicate and late acknowledgments idempotent.
func (r *MessageRepo) UpdateStatusByPacketID(ctx context.Context, packetID uint32, status domain.MessageStatus, reason domain.DeliveryError) error {
	if packetID == 0 || status == 0 {
		return nil
	}

	type rowState struct {
		LocalID int64 `db:"local_id"`
		Status  int   `db:"status"`
	}
	var candidates []rowState
	err := r.db.SelectContext(ctx, &candidates, `
		SELECT local_id, status
		FROM messages
		WHERE packet_id = ? AND direction = ?
	`, int64(packetID), int(domain.MessageDirectionOut))
	if err != nil {
		return fmt.Errorf("query messages by packet id: %w", err)
	}

	for _, candidate := range candidates {
		if !domain.ShouldTransitionMessageStatus(domain.MessageStatus(candidate.Status), status) {
			continue
		}
		if _, err := r.db.ExecContext(ctx, `
			UPDATE messages
			SET status = ?, error_reason = ?
			WHERE local_id = ?
		`, int(status), string(reason), candidate.LocalID); err != nil {
			return fmt.Errorf("update message status: %w", err)
		}
	}

	return nil
}

// ListChannel returns channel broadcast messages oldest first. Outbound rows
// carry no received_at, so ordering uses the later of the two timestamps.
func (r *MessageRepo) ListChannel(ctx context.Context, channel, limit int) ([]domain.Message, error) {
	var rows []messageRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE channel = ? AND to_node = ?
		ORDER BY MAX(received_at, sent_at) DESC, local_id DESC
		LIMIT ?
	`, channel, int64(domain.BroadcastNodeID), limit)
	if err != nil {
		return nil, fmt.Errorf("list channel messages: %w", err)
	}

	return r.toDomainReversed(rows), nil
}

// ListDirect returns the conversation with one counterpart oldest first,
// excluding anything addressed to the broadcast address.
func (r *MessageRepo) ListDirect(ctx context.Context, localNodeID, counterpartID uint32, limit int) ([]domain.Message, error) {
	var rows []messageRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE to_node != ?
		  AND ((from_node = ? AND to_node = ?) OR (from_node = ? AND to_node = ?))
		ORDER BY MAX(received_at, sent_at) DESC, local_id DESC
		LIMIT ?
	`, int64(domain.BroadcastNodeID),
		int64(counterpartID), int64(localNodeID),
		int64(localNodeID), int64(counterpartID),
		limit)
	if err != nil {
		return nil, fmt.Errorf("list direct messages: %w", err)
	}

	return r.toDomainReversed(rows), nil
}

// Conversations aggregates direct messages by counterpart: unread count of
// received messages plus the most recent message, ordered most recent first.
// This is read-path aggregation only; the write model stays flat.
func (r *MessageRepo) Conversations(ctx context.Context, localNodeID uint32) ([]domain.Conversation, error) {
	type convRow struct {
		Counterpart int64 `db:"counterpart"`
		Unread      int   `db:"unread"`
		LastID      int64 `db:"last_id"`
	}
	var convs []convRow
	err := r.db.SelectContext(ctx, &convs, `
		SELECT
			CASE WHEN from_node = ? THEN to_node ELSE from_node END AS counterpart,
			SUM(CASE WHEN direction = ? AND is_read = 0 THEN 1 ELSE 0 END) AS unread,
			MAX(local_id) AS last_id
		FROM messages
		WHERE to_node != ? AND (from_node = ? OR to_node = ?)
		GROUP BY counterpart
	`, int64(localNodeID), int(domain.MessageDirectionIn),
		int64(domain.BroadcastNodeID), int64(localNodeID), int64(localNodeID))
	if err != nil {
		return nil, fmt.Errorf("aggregate conversations: %w", err)
	}

	out := make([]domain.Conversation, 0, len(convs))
	for _, conv := range convs {
		var row messageRow
		err := r.db.GetContext(ctx, &row, `
			SELECT `+messageColumns+`
			FROM messages
			WHERE local_id = ?
		`, conv.LastID)
		if err != nil {
			return nil, fmt.Errorf("load last conversation message: %w", err)
		}
		out = append(out, domain.Conversation{
			CounterpartID: uint32(conv.Counterpart),
			UnreadCount:   conv.Unread,
			LastMessage:   r.presentMessage(row.toDomain()),
		})
	}

	// Most recent conversation first.
	sort.Slice(out, func(i, j int) bool {
		return messageAt(out[i].LastMessage).After(messageAt(out[j].LastMessage))
	})

	return out, nil
}

func (r *MessageRepo) MarkConversationRead(ctx context.Context, localNodeID, counterpartID uint32) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE messages
		SET is_read = 1
		WHERE direction = ? AND is_read = 0 AND to_node != ?
		  AND from_node = ? AND to_node = ?
	`, int(domain.MessageDirectionIn), int64(domain.BroadcastNodeID),
		int64(counterpartID), int64(localNodeID))
	if err != nil {
		return fmt.Errorf("mark conversation read: %w", err)
	}

	return nil
}

func (r *MessageRepo) toDomainReversed(rows []messageRow) []domain.Message {
	out := make([]domain.Message, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		out = append(out, r.presentMessage(rows[i].toDomain()))
	}

	return out
}

func (r *MessageRepo) presentMessage(m domain.Message) domain.Message {
	return domain.ApplyAckTimeout(m, r.now(), r.ackWindow)
}

func (row messageRow) toDomain() domain.Message {
	m := domain.Message{
		LocalID:     row.LocalID,
		PacketID:    uint32(row.PacketID),
		From:        uint32(row.FromNode),
		To:          uint32(row.ToNode),
		Channel:     row.Channel,
		Text:        row.Body,
		Direction:   domain.MessageDirection(row.Direction),
		Status:      domain.MessageStatus(row.Status),
		ErrorReason: domain.DeliveryError(row.ErrorReason),
		ReplyID:     uint32(row.ReplyID),
		WantAck:     row.WantAck != 0,
		Read:        row.IsRead != 0,
		SentAt:      unixMillisToTime(row.SentAt),
		ReceivedAt:  unixMillisToTime(row.ReceivedAt),
	}
	if row.SNR.Valid {
		v := row.SNR.Float64
		m.SNR = &v
	}
	if row.RSSI.Valid {
		v := int(row.RSSI.Int64)
		m.RSSI = &v
	}
	if row.HopStart.Valid {
		v := uint32(row.HopStart.Int64)
		m.HopStart = &v
	}
	if row.HopLimit.Valid {
		v := uint32(row.HopLimit.Int64)
		m.HopLimit = &v
	}

	return m
}

func messageAt(m domain.Message) time.Time {
	if !m.ReceivedAt.IsZero() {
		return m.ReceivedAt
	}

	return m.SentAt
}

func boolToInt(v bool) int {
	if v {
		return 1
	}

	return 0
}
