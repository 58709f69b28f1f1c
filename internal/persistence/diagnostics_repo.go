package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/jmoiron/sqlx"

	"github.com/statico/meshtastic-cli-sub001/internal/domain"
)

// DiagnosticsRepo stores probe responses in three append-only, time-ordered
// logs and serves a combined chronological view capped at query time.
type DiagnosticsRepo struct {
	db *sqlx.DB
}

func NewDiagnosticsRepo(db *sqlx.DB) *DiagnosticsRepo {
	return &DiagnosticsRepo{db: db}
}

func (r *DiagnosticsRepo) InsertPosition(ctx context.Context, resp domain.PositionResponse) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO position_responses(packet_id, requester, responder, latitude_i, longitude_i, altitude, satellites, at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		int64(resp.PacketID),
		int64(resp.Requester),
		int64(resp.Responder),
		resp.LatitudeI,
		resp.LongitudeI,
		resp.Altitude,
		int64(resp.Satellites),
		timeToUnixMillis(resp.At),
	)
	if err != nil {
		return fmt.Errorf("insert position response: %w", err)
	}

	return nil
}

func (r *DiagnosticsRepo) InsertTraceroute(ctx context.Context, resp domain.TracerouteResponse) error {
	routeJSON, err := marshalJSONNullable(resp.Route)
	if err != nil {
		return fmt.Errorf("marshal route: %w", err)
	}
	snrTowardsJSON, err := marshalJSONNullable(resp.SNRTowards)
	if err != nil {
		return fmt.Errorf("marshal snr towards: %w", err)
	}
	routeBackJSON, err := marshalJSONNullable(resp.RouteBack)
	if err != nil {
		return fmt.Errorf("marshal route back: %w", err)
	}
	snrBackJSON, err := marshalJSONNullable(resp.SNRBack)
	if err != nil {
		return fmt.Errorf("marshal snr back: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO traceroute_responses(packet_id, requester, responder, route_json, snr_towards_json, route_back_json, snr_back_json, at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		int64(resp.PacketID),
		int64(resp.Requester),
		int64(resp.Responder),
		routeJSON,
		snrTowardsJSON,
		routeBackJSON,
		snrBackJSON,
		timeToUnixMillis(resp.At),
	)
	if err != nil {
		return fmt.Errorf("insert traceroute response: %w", err)
	}

	return nil
}

func (r *DiagnosticsRepo) InsertNodeInfo(ctx context.Context, resp domain.NodeInfoResponse) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO node_info_responses(packet_id, requester, responder, short_name, long_name, hardware_model, role, at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		int64(resp.PacketID),
		int64(resp.Requester),
		int64(resp.Responder),
		nullableString(resp.ShortName),
		nullableString(resp.LongName),
		nullableString(resp.HardwareModel),
		nullableString(resp.Role),
		timeToUnixMillis(resp.At),
	)
	if err != nil {
		return fmt.Errorf("insert node info response: %w", err)
	}

	return nil
}

type positionRow struct {
	LocalID    int64 `db:"local_id"`
	PacketID   int64 `db:"packet_id"`
	Requester  int64 `db:"requester"`
	Responder  int64 `db:"responder"`
	LatitudeI  int32 `db:"latitude_i"`
	LongitudeI int32 `db:"longitude_i"`
	Altitude   int32 `db:"altitude"`
	Satellites int64 `db:"satellites"`
	At         int64 `db:"at"`
}

func (r *DiagnosticsRepo) Positions(ctx context.Context, limit int) ([]domain.PositionResponse, error) {
	var rows []positionRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT local_id, packet_id, requester, responder, latitude_i, longitude_i, altitude, satellites, at
		FROM position_responses
		ORDER BY at DESC, local_id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list position responses: %w", err)
	}

	out := make([]domain.PositionResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.PositionResponse{
			LocalID:    row.LocalID,
			PacketID:   uint32(row.PacketID),
			Requester:  uint32(row.Requester),
			Responder:  uint32(row.Responder),
			LatitudeI:  row.LatitudeI,
			LongitudeI: row.LongitudeI,
			Altitude:   row.Altitude,
			Satellites: uint32(row.Satellites),
			At:         unixMillisToTime(row.At),
		})
	}

	return out, nil
}

type tracerouteRow struct {
	LocalID        int64          `db:"local_id"`
	PacketID       int64          `db:"packet_id"`
	Requester      int64          `db:"requester"`
	Responder      int64          `db:"responder"`
	RouteJSON      sql.NullString `db:"route_json"`
	SNRTowardsJSON sql.NullString `db:"snr_towards_json"`
	RouteBackJSON  sql.NullString `db:"route_back_json"`
	SNRBackJSON    sql.NullString `db:"snr_back_json"`
	At             int64          `db:"at"`
}

func (r *DiagnosticsRepo) Traceroutes(ctx context.Context, limit int) ([]domain.TracerouteResponse, error) {
	var rows []tracerouteRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT local_id, packet_id, requester, responder, route_json, snr_towards_json, route_back_json, snr_back_json, at
		FROM traceroute_responses
		ORDER BY at DESC, local_id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list traceroute responses: %w", err)
	}

	out := make([]domain.TracerouteResponse, 0, len(rows))
	for _, row := range rows {
		resp := domain.TracerouteResponse{
			LocalID:   row.LocalID,
			PacketID:  uint32(row.PacketID),
			Requester: uint32(row.Requester),
			Responder: uint32(row.Responder),
			At:        unixMillisToTime(row.At),
		}
		if err := unmarshalJSONNullable(row.RouteJSON, &resp.Route); err != nil {
			return nil, fmt.Errorf("decode route: %w", err)
		}
		if err := unmarshalJSONNullable(row.SNRTowardsJSON, &resp.SNRTowards); err != nil {
			return nil, fmt.Errorf("decode snr towards: %w", err)
		}
		if err := unmarshalJSONNullable(row.RouteBackJSON, &resp.RouteBack); err != nil {
			return nil, fmt.Errorf("decode route back: %w", err)
		}
		if err := unmarshalJSONNullable(row.SNRBackJSON, &resp.SNRBack); err != nil {
			return nil, fmt.Errorf("decode snr back: %w", err)
		}
		out = append(out, resp)
	}

	return out, nil
}

type nodeInfoRow struct {
	LocalID       int64          `db:"local_id"`
	PacketID      int64          `db:"packet_id"`
	Requester     int64          `db:"requester"`
	Responder     int64          `db:"responder"`
	ShortName     sql.NullString `db:"short_name"`
	LongName      sql.NullString `db:"long_name"`
	HardwareModel sql.NullString `db:"hardware_model"`
	Role          sql.NullString `db:"role"`
	At            int64          `db:"at"`
}

func (r *DiagnosticsRepo) NodeInfos(ctx context.Context, limit int) ([]domain.NodeInfoResponse, error) {
	var rows []nodeInfoRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT local_id, packet_id, requester, responder, short_name, long_name, hardware_model, role, at
		FROM node_info_responses
		ORDER BY at DESC, local_id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list node info responses: %w", err)
	}

	out := make([]domain.NodeInfoResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.NodeInfoResponse{
			LocalID:       row.LocalID,
			PacketID:      uint32(row.PacketID),
			Requester:     uint32(row.Requester),
			Responder:     uint32(row.Responder),
			ShortName:     row.ShortName.String,
			LongName:      row.LongName.String,
			HardwareModel: row.HardwareModel.String,
			Role:          row.Role.String,
			At:            unixMillisToTime(row.At),
		})
	}

	return out, nil
}

// CombinedLog merges the three response logs into one chronological view,
// newest first, capped at limit.
func (r *DiagnosticsRepo) CombinedLog(ctx context.Context, limit int) ([]domain.DiagnosticEntry, error) {
	positions, err := r.Positions(ctx, limit)
	if err != nil {
		return nil, err
	}
	traceroutes, err := r.Traceroutes(ctx, limit)
	if err != nil {
		return nil, err
	}
	nodeInfos, err := r.NodeInfos(ctx, limit)
	if err != nil {
		return nil, err
	}

	entries := make([]domain.DiagnosticEntry, 0, len(positions)+len(traceroutes)+len(nodeInfos))
	for i := range positions {
		resp := positions[i]
		entries = append(entries, domain.DiagnosticEntry{Kind: domain.DiagnosticPosition, At: resp.At, Position: &resp})
	}
	for i := range traceroutes {
		resp := traceroutes[i]
		entries = append(entries, domain.DiagnosticEntry{Kind: domain.DiagnosticTraceroute, At: resp.At, Traceroute: &resp})
	}
	for i := range nodeInfos {
		resp := nodeInfos[i]
		entries = append(entries, domain.DiagnosticEntry{Kind: domain.DiagnosticNodeInfo, At: resp.At, NodeInfo: &resp})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].At.After(entries[j].At)
	})
	if len(entries) > limit {
		entries = entries[:limit]
	}

	return entries, nil
}

func marshalJSONNullable(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if string(raw) == "null" {
		return nil, nil
	}

	return string(raw), nil
}

func unmarshalJSONNullable(raw sql.NullString, dst any) error {
	if !raw.Valid || raw.String == "" {
		return nil
	}

	return json.Unmarshal([]byte(raw.String), dst)
}
