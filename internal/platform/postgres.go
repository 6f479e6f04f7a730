package platform

// postgres.go is the optional Postgres-backed publisher.
//
// It mirrors the *current* entity state into three tables (vehicles,
// channels, position) via upserts keyed on the vehicle key. No history is
// written; time-series storage belongs to the host, not to this service.

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/obddrive/obdd/internal/engine"
)

// PublishTimeout bounds one publish round trip.
var PublishTimeout = 5 * time.Second

// PostgresPublisher upserts snapshot deltas into Postgres.
type PostgresPublisher struct {
	pool *pgxpool.Pool
}

// NewPostgresPublisher wraps an existing connection pool.
func NewPostgresPublisher(pool *pgxpool.Pool) *PostgresPublisher {
	return &PostgresPublisher{pool: pool}
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS obd_vehicles (
	vehicle_key  TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	app_version  TEXT,
	last_seen    TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS obd_channels (
	vehicle_key  TEXT NOT NULL REFERENCES obd_vehicles (vehicle_key) ON DELETE CASCADE,
	channel_key  TEXT NOT NULL,
	code         TEXT NOT NULL,
	value_num    DOUBLE PRECISION,
	value_text   TEXT,
	unit         TEXT NOT NULL DEFAULT '',
	label        TEXT NOT NULL DEFAULT '',
	updated_at   TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (vehicle_key, channel_key)
);
CREATE TABLE IF NOT EXISTS obd_position (
	vehicle_key  TEXT PRIMARY KEY REFERENCES obd_vehicles (vehicle_key) ON DELETE CASCADE,
	latitude     DOUBLE PRECISION NOT NULL,
	longitude    DOUBLE PRECISION NOT NULL,
	altitude     DOUBLE PRECISION,
	accuracy     DOUBLE PRECISION,
	speed        DOUBLE PRECISION,
	updated_at   TIMESTAMPTZ NOT NULL
);
`

// EnsureSchema creates the snapshot tables if they do not exist.
func (p *PostgresPublisher) EnsureSchema(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, schemaSQL)
	return err
}

// Publish implements Publisher. Errors are logged, never propagated: a
// database hiccup must not disturb ingestion, and the next delta repairs
// the snapshot anyway.
func (p *PostgresPublisher) Publish(ctx context.Context, delta engine.SnapshotDelta) {
	ctx, cancel := context.WithTimeout(ctx, PublishTimeout)
	defer cancel()

	logger := slog.Default().With("vehicle", delta.VehicleKey, "upload_id", delta.UploadID)

	_, err := p.pool.Exec(ctx, `
		INSERT INTO obd_vehicles (vehicle_key, name, app_version, last_seen)
		VALUES ($1, $2, NULLIF($3, ''), $4)
		ON CONFLICT (vehicle_key) DO UPDATE
		SET name = EXCLUDED.name,
		    app_version = COALESCE(EXCLUDED.app_version, obd_vehicles.app_version),
		    last_seen = EXCLUDED.last_seen`,
		delta.VehicleKey, delta.Name, delta.Version, delta.AppliedAt)
	if err != nil {
		logger.Error("vehicle upsert failed", "error", err)
		return
	}

	for _, u := range delta.Channels {
		num := pgtype.Float8{}
		text := pgtype.Text{}
		switch v := u.Value.(type) {
		case float64:
			num = pgtype.Float8{Float64: v, Valid: true}
		case string:
			text = pgtype.Text{String: v, Valid: true}
		}

		_, err := p.pool.Exec(ctx, `
			INSERT INTO obd_channels (vehicle_key, channel_key, code, value_num, value_text, unit, label, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (vehicle_key, channel_key) DO UPDATE
			SET code = EXCLUDED.code,
			    value_num = EXCLUDED.value_num,
			    value_text = EXCLUDED.value_text,
			    unit = EXCLUDED.unit,
			    label = EXCLUDED.label,
			    updated_at = EXCLUDED.updated_at`,
			delta.VehicleKey, u.Key, u.Code, num, text, u.Unit, u.Label, delta.AppliedAt)
		if err != nil {
			logger.Error("channel upsert failed", "channel", u.Key, "error", err)
		}
	}

	if delta.Position != nil {
		pos := delta.Position
		_, err := p.pool.Exec(ctx, `
			INSERT INTO obd_position (vehicle_key, latitude, longitude, altitude, accuracy, speed, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (vehicle_key) DO UPDATE
			SET latitude = EXCLUDED.latitude,
			    longitude = EXCLUDED.longitude,
			    altitude = EXCLUDED.altitude,
			    accuracy = EXCLUDED.accuracy,
			    speed = EXCLUDED.speed,
			    updated_at = EXCLUDED.updated_at`,
			delta.VehicleKey, pos.Latitude, pos.Longitude,
			toFloat8(pos.Altitude), toFloat8(pos.Accuracy), toFloat8(pos.Speed),
			delta.AppliedAt)
		if err != nil {
			logger.Error("position upsert failed", "error", err)
		}
	}
}

func toFloat8(v *float64) pgtype.Float8 {
	if v == nil {
		return pgtype.Float8{}
	}
	return pgtype.Float8{Float64: *v, Valid: true}
}
