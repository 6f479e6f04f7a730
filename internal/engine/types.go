// Package engine is the telemetry normalization and session routing core.
// It resolves raw parameter readings against the code catalog, routes them
// to per-vehicle state, and produces snapshot deltas for the entity
// platform. The engine performs no I/O and is deterministic per call.
package engine

import (
	"time"

	"github.com/obddrive/obdd/internal/catalog"
)

// Fields is one parsed upload: raw key -> raw value, as delivered by the
// HTTP layer. Parameter readings use "k"-prefixed keys (k0c, kff1001);
// everything else is identity or transport metadata.
type Fields map[string]string

// Identity is the resolved vehicle identity for one upload.
type Identity struct {
	Key       string // stable VehicleKey; partitions all state
	Name      string // display name for the vehicle
	Email     string
	VehicleID string // the app's own vehicle/profile id, if sent
	Version   string // app version, if sent
}

// ChannelUpdate is one normalized measurement ready to be applied.
type ChannelUpdate struct {
	Key   string       // stable channel key (catalog short name)
	Code  string       // originating parameter code
	Kind  catalog.Kind // semantic kind
	Value any          // float64, or string for textual channels
	Unit  string
	Label string
	// RawSeconds preserves the pre-transform value for duration channels
	// whose materialized unit is minutes.
	RawSeconds *float64
}

// PositionUpdate is the single structured position produced per upload.
// Latitude and longitude are always both set; the rest is optional.
type PositionUpdate struct {
	Latitude  float64
	Longitude float64
	Altitude  *float64
	Accuracy  *float64
	Speed     *float64
}

// ChannelState is the last known value of one measurement channel.
type ChannelState struct {
	Code       string
	Value      any
	Unit       string
	Label      string
	RawSeconds *float64
	UpdatedAt  time.Time
}

// PositionState is the per-vehicle position tracker state.
type PositionState struct {
	Latitude  float64
	Longitude float64
	Altitude  *float64
	Accuracy  *float64
	Speed     *float64
	UpdatedAt time.Time
}

// VehicleSnapshot is a read-only copy of one vehicle's state.
type VehicleSnapshot struct {
	Key      string
	Name     string
	Email    string
	Version  string
	Channels map[string]ChannelState
	Position *PositionState
	LastSeen time.Time
}

// SnapshotDelta is what one applied upload changed: the entity platform
// realizes creations and updates from this, never from store internals.
type SnapshotDelta struct {
	UploadID   string
	VehicleKey string
	Name       string
	Version    string

	VehicleCreated  bool
	CreatedChannels []string // channel keys seen for the first time
	Channels        []ChannelUpdate

	PositionCreated bool
	Position        *PositionUpdate

	AppliedAt time.Time
}

// Empty reports whether the delta carries no updates at all.
func (d SnapshotDelta) Empty() bool {
	return len(d.Channels) == 0 && d.Position == nil && !d.VehicleCreated
}
