package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/statico/meshtastic-cli-sub001/internal/domain"
)

// NodeRepo implements domain.NodeRepository on SQLite. Upserts use
// COALESCE so a sparse update never clobbers a populated column: the
// null-does-not-clobber contract holds in the store independently of the
// in-memory merge.
type NodeRepo struct {
	db *sqlx.DB
}

func NewNodeRepo(db *sqlx.DB) *NodeRepo {
	return &NodeRepo{db: db}
}

type nodeRow struct {
	NodeID             int64           `db:"node_id"`
	ShortName          sql.NullString  `db:"short_name"`
	LongName           sql.NullString  `db:"long_name"`
	HardwareModel      sql.NullString  `db:"hardware_model"`
	Role               sql.NullString  `db:"role"`
	LatitudeI          sql.NullInt64   `db:"latitude_i"`
	LongitudeI         sql.NullInt64   `db:"longitude_i"`
	Altitude           sql.NullInt64   `db:"altitude"`
	BatteryLevel       sql.NullInt64   `db:"battery_level"`
	Voltage            sql.NullFloat64 `db:"voltage"`
	ChannelUtilization sql.NullFloat64 `db:"channel_utilization"`
	HopsAway           sql.NullInt64   `db:"hops_away"`
	IsFavorite         sql.NullInt64   `db:"is_favorite"`
	IsMuted            sql.NullInt64   `db:"is_muted"`
	PublicKey          []byte          `db:"public_key"`
	SNR                sql.NullFloat64 `db:"snr"`
	RSSI               sql.NullInt64   `db:"rssi"`
	LastHeardAt        int64           `db:"last_heard_at"`
	UpdatedAt          int64           `db:"updated_at"`
}

func (r *NodeRepo) Upsert(ctx context.Context, n domain.Node) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO nodes(
			node_id, short_name, long_name, hardware_model, role,
			latitude_i, longitude_i, altitude,
			battery_level, voltage, channel_utilization,
			hops_away, is_favorite, is_muted, public_key, snr, rssi,
			last_heard_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(node_id) DO UPDATE SET
			short_name = COALESCE(excluded.short_name, nodes.short_name),
			long_name = COALESCE(excluded.long_name, nodes.long_name),
			hardware_model = COALESCE(excluded.hardware_model, nodes.hardware_model),
			role = COALESCE(excluded.role, nodes.role),
			latitude_i = COALESCE(excluded.latitude_i, nodes.latitude_i),
			longitude_i = COALESCE(excluded.longitude_i, nodes.longitude_i),
			altitude = COALESCE(excluded.altitude, nodes.altitude),
			battery_level = COALESCE(excluded.battery_level, nodes.battery_level),
			voltage = COALESCE(excluded.voltage, nodes.voltage),
			channel_utilization = COALESCE(excluded.channel_utilization, nodes.channel_utilization),
			hops_away = COALESCE(excluded.hops_away, nodes.hops_away),
			is_favorite = COALESCE(excluded.is_favorite, nodes.is_favorite),
			is_muted = COALESCE(excluded.is_muted, nodes.is_muted),
			public_key = COALESCE(excluded.public_key, nodes.public_key),
			snr = COALESCE(excluded.snr, nodes.snr),
			rssi = COALESCE(excluded.rssi, nodes.rssi),
			last_heard_at = MAX(nodes.last_heard_at, excluded.last_heard_at),
			updated_at = MAX(nodes.updated_at, excluded.updated_at)
	`,
		int64(n.ID),
		nullableString(n.ShortName),
		nullableString(n.LongName),
		nullableString(n.HardwareModel),
		nullableString(n.Role),
		nullableInt32(n.LatitudeI),
		nullableInt32(n.LongitudeI),
		nullableInt32(n.Altitude),
		nullableUint32(n.BatteryLevel),
		nullableFloat(n.Voltage),
		nullableFloat(n.ChannelUtilization),
		nullableUint32(n.HopsAway),
		nullableBool(n.IsFavorite),
		nullableBool(n.IsMuted),
		nullableBytes(n.PublicKey),
		nullableFloat(n.SNR),
		nullableInt(n.RSSI),
		timeToUnixMillis(n.LastHeardAt),
		timeToUnixMillis(n.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert node: %w", err)
	}

	return nil
}

func (r *NodeRepo) Delete(ctx context.Context, id uint32) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM nodes WHERE node_id = ?`, int64(id)); err != nil {
		return fmt.Errorf("delete node: %w", err)
	}

	return nil
}

// ListSorted returns nodes ordered by hop distance ascending (unknown last),
// then last-heard descending, matching the cache snapshot order.
func (r *NodeRepo) ListSorted(ctx context.Context) ([]domain.Node, error) {
	var rows []nodeRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT node_id, short_name, long_name, hardware_model, role,
			latitude_i, longitude_i, altitude,
			battery_level, voltage, channel_utilization,
			hops_away, is_favorite, is_muted, public_key, snr, rssi,
			last_heard_at, updated_at
		FROM nodes
		ORDER BY hops_away IS NULL, hops_away ASC, last_heard_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list nodes: %w", err)
	}

	out := make([]domain.Node, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}

	return out, nil
}

func (row nodeRow) toDomain() domain.Node {
	n := domain.Node{
		ID:          uint32(row.NodeID),
		PublicKey:   row.PublicKey,
		LastHeardAt: unixMillisToTime(row.LastHeardAt),
		UpdatedAt:   unixMillisToTime(row.UpdatedAt),
	}
	if row.ShortName.Valid {
		n.ShortName = row.ShortName.String
	}
	if row.LongName.Valid {
		n.LongName = row.LongName.String
	}
	if row.HardwareModel.Valid {
		n.HardwareModel = row.HardwareModel.String
	}
	if row.Role.Valid {
		n.Role = row.Role.String
	}
	if row.LatitudeI.Valid {
		v := int32(row.LatitudeI.Int64)
		n.LatitudeI = &v
	}
	if row.LongitudeI.Valid {
		v := int32(row.LongitudeI.Int64)
		n.LongitudeI = &v
	}
	if row.Altitude.Valid {
		v := int32(row.Altitude.Int64)
		n.Altitude = &v
	}
	if row.BatteryLevel.Valid {
		v := uint32(row.BatteryLevel.Int64)
		n.BatteryLevel = &v
	}
	if row.Voltage.Valid {
		v := row.Voltage.Float64
		n.Voltage = &v
	}
	if row.ChannelUtilization.Valid {
		v := row.ChannelUtilization.Float64
		n.ChannelUtilization = &v
	}
	if row.HopsAway.Valid {
		v := uint32(row.HopsAway.Int64)
		n.HopsAway = &v
	}
	if row.IsFavorite.Valid {
		v := row.IsFavorite.Int64 != 0
		n.IsFavorite = &v
	}
	if row.IsMuted.Valid {
		v := row.IsMuted.Int64 != 0
		n.IsMuted = &v
	}
	if row.SNR.Valid {
		v := row.SNR.Float64
		n.SNR = &v
	}
	if row.RSSI.Valid {
		v := int(row.RSSI.Int64)
		n.RSSI = &v
	}

	return n
}

func nullableInt32(v *int32) any {
	if v == nil {
		return nil
	}

	return int64(*v)
}

func nullableUint32(v *uint32) any {
	if v == nil {
		return nil
	}

	return int64(*v)
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}

	return int64(*v)
}

func nullableFloat(v *float64) any {
	if v == nil {
		return nil
	}

	return *v
}

func nullableBool(v *bool) any {
	if v == nil {
		return nil
	}
	if *v {
		return int64(1)
	}

	return int64(0)
}

func nullableBytes(v []byte) any {
	if len(v) == 0 {
		return nil
	}

	return v
}
