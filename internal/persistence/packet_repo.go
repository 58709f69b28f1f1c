package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/statico/meshtastic-cli-sub001/internal/domain"
)

// PacketRepo implements domain.PacketRepository. The retention limit is
// enforced after every insert: oldest-timestamp rows are evicted first.
type PacketRepo struct {
	db        *sqlx.DB
	retention int
	logger    *slog.Logger
}

func NewPacketRepo(db *sqlx.DB, retention int, logger *slog.Logger) *PacketRepo {
	if retention <= 0 {
		retention = domain.DefaultPacketCapacity
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PacketRepo{db: db, retention: retention, logger: logger.With("component", "packet_repo")}
}

type packetRow struct {
	LocalID     int64           `db:"local_id"`
	PacketID    int64           `db:"packet_id"`
	FromNode    int64           `db:"from_node"`
	ToNode      int64           `db:"to_node"`
	Channel     int             `db:"channel"`
	PortNum     int             `db:"port_num"`
	SNR         sql.NullFloat64 `db:"snr"`
	RSSI        sql.NullInt64   `db:"rssi"`
	Payload     []byte          `db:"payload"`
	DecodeError string          `db:"decode_error"`
	RxTime      int64           `db:"rx_time"`
}

func (r *PacketRepo) Insert(ctx context.Context, p domain.PacketRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO packets(packet_id, from_node, to_node, channel, port_num, snr, rssi, payload, decode_error, rx_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		int64(p.PacketID),
		int64(p.From),
		int64(p.To),
		p.Channel,
		p.PortNum,
		nullableFloat(p.SNR),
		nullableInt(p.RSSI),
		nullableBytes(p.Payload),
		p.DecodeError,
		timeToUnixMillis(p.RxTime),
	)
	if err != nil {
		return fmt.Errorf("insert packet: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, `
		DELETE FROM packets
		WHERE local_id IN (
			SELECT local_id FROM packets
			ORDER BY rx_time DESC, local_id DESC
			LIMIT -1 OFFSET ?
		)
	`, r.retention); err != nil {
		return fmt.Errorf("prune packets: %w", err)
	}

	return nil
}

// ListRecent returns up to limit packets, oldest first. A row that fails to
// scan is skipped and logged rather than aborting the whole rehydration.
func (r *PacketRepo) ListRecent(ctx context.Context, limit int) ([]domain.PacketRecord, error) {
	rows, err := r.db.QueryxContext(ctx, `
		SELECT local_id, packet_id, from_node, to_node, channel, port_num, snr, rssi, payload, decode_error, rx_time
		FROM packets
		ORDER BY rx_time DESC, local_id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list packets: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []domain.PacketRecord
	for rows.Next() {
		var row packetRow
		if err := rows.StructScan(&row); err != nil {
			r.logger.Warn("skipping corrupt packet row", "error", err)

			continue
		}
		out = append(out, row.toDomain())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate packets: %w", err)
	}

	// Oldest first for replay order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}

	return out, nil
}

func (row packetRow) toDomain() domain.PacketRecord {
	p := domain.PacketRecord{
		LocalID:     row.LocalID,
		PacketID:    uint32(row.PacketID),
		From:        uint32(row.FromNode),
		To:          uint32(row.ToNode),
		Channel:     row.Channel,
		PortNum:     row.PortNum,
		Payload:     row.Payload,
		DecodeError: row.DecodeError,
		RxTime:      unixMillisToTime(row.RxTime),
	}
	if row.SNR.Valid {
		v := row.SNR.Float64
		p.SNR = &v
	}
	if row.RSSI.Valid {
		v := int(row.RSSI.Int64)
		p.RSSI = &v
	}

	return p
}
