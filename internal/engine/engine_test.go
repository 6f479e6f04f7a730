package engine

import (
	"errors"
	"testing"

	"github.com/obddrive/obdd/internal/catalog"
)

func newTestEngine(cfg Config) *Engine {
	if cfg.Catalog == nil {
		cfg.Catalog = catalog.New()
	}
	return New(cfg)
}

func carFields(extra Fields) Fields {
	f := Fields{"eml": "alice@example.com", "profileName": "TestCar"}
	for k, v := range extra {
		f[k] = v
	}
	return f
}

func TestProcessRepeatUploadOverwrites(t *testing.T) {
	e := newTestEngine(Config{})

	if _, _, err := e.Process(carFields(Fields{"k0c": "3000"})); err != nil {
		t.Fatalf("first upload: %v", err)
	}
	delta, diags, err := e.Process(carFields(Fields{"k0c": "3200"}))
	if err != nil {
		t.Fatalf("second upload: %v", err)
	}
	if len(diags) != 0 {
		t.Errorf("unexpected diagnostics: %v", diags)
	}
	if delta.VehicleCreated {
		t.Error("second upload must not create the vehicle")
	}

	snap, ok := e.Store().Snapshot(delta.VehicleKey)
	if !ok {
		t.Fatal("vehicle missing")
	}
	ch, ok := snap.Channels["engine_rpm"]
	if !ok {
		t.Fatal("engine_rpm channel missing")
	}
	if ch.Value != 3200.0 {
		t.Errorf("got %v, want 3200", ch.Value)
	}
	if ch.Unit != "rpm" {
		t.Errorf("got unit %q, want rpm", ch.Unit)
	}
	if len(snap.Channels) != 1 {
		t.Errorf("got %d channels, want 1", len(snap.Channels))
	}
}

func TestProcessRejectsAnonymousUpload(t *testing.T) {
	e := newTestEngine(Config{})

	_, _, err := e.Process(Fields{"k0c": "3000"})
	if !errors.Is(err, ErrInvalidUpload) {
		t.Errorf("got %v, want ErrInvalidUpload", err)
	}
	if e.Store().Len() != 0 {
		t.Error("rejected upload must not create state")
	}
}

func TestProcessPosition(t *testing.T) {
	e := newTestEngine(Config{})

	delta, diags, err := e.Process(carFields(Fields{
		"kff1006": "48.85",
		"kff1005": "2.35",
		"kff1010": "35",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(diags) != 0 {
		t.Errorf("unexpected diagnostics: %v", diags)
	}
	if delta.Position == nil {
		t.Fatal("expected a position update")
	}
	if !delta.PositionCreated {
		t.Error("first position must be reported as created")
	}

	snap, _ := e.Store().Snapshot(delta.VehicleKey)
	if snap.Position == nil {
		t.Fatal("position state missing")
	}
	if snap.Position.Latitude != 48.85 || snap.Position.Longitude != 2.35 {
		t.Errorf("got (%v, %v), want (48.85, 2.35)", snap.Position.Latitude, snap.Position.Longitude)
	}
	if snap.Position.Altitude == nil || *snap.Position.Altitude != 35.0 {
		t.Errorf("got altitude %v, want 35", snap.Position.Altitude)
	}

	// Coordinates exist only in the position tracker; altitude is also a
	// scalar channel.
	if _, ok := snap.Channels["gps_lat"]; ok {
		t.Error("latitude leaked into the channel set")
	}
	if _, ok := snap.Channels["gps_lon"]; ok {
		t.Error("longitude leaked into the channel set")
	}
	if _, ok := snap.Channels["gps_altitude"]; !ok {
		t.Error("altitude channel missing")
	}
}

func TestProcessBareGPSAliases(t *testing.T) {
	e := newTestEngine(Config{})

	delta, _, err := e.Process(carFields(Fields{"lat": "48.85", "lon": "2.35"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if delta.Position == nil {
		t.Fatal("bare lat/lon keys must produce a position")
	}
	if delta.Position.Latitude != 48.85 {
		t.Errorf("got latitude %v, want 48.85", delta.Position.Latitude)
	}
}

func TestProcessLoneCoordinateSuppressed(t *testing.T) {
	e := newTestEngine(Config{})

	delta, diags, err := e.Process(carFields(Fields{"kff1006": "48.85", "k0c": "3000"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if delta.Position != nil {
		t.Error("lone latitude must not produce a position")
	}
	if len(diags) != 1 || diags[0].Kind != DiagIncompletePosition {
		t.Errorf("got diags %v, want one IncompletePosition", diags)
	}

	// The rest of the upload still applies.
	snap, _ := e.Store().Snapshot(delta.VehicleKey)
	if _, ok := snap.Channels["engine_rpm"]; !ok {
		t.Error("scalar channel must survive a suppressed position")
	}
}

func TestProcessDerivedGroupCollision(t *testing.T) {
	e := newTestEngine(Config{})

	delta, diags, err := e.Process(carFields(Fields{
		"kff1201": "30",
		"kff5202": "7.8",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(diags) != 0 {
		t.Errorf("unexpected diagnostics: %v", diags)
	}
	if len(delta.Channels) != 1 {
		t.Fatalf("got %d channel updates, want 1", len(delta.Channels))
	}
	if delta.Channels[0].Key != "l_per_100_instant" {
		t.Errorf("got winner %q, want l_per_100_instant", delta.Channels[0].Key)
	}

	snap, _ := e.Store().Snapshot(delta.VehicleKey)
	if _, ok := snap.Channels["mpg_instant"]; ok {
		t.Error("losing group member must not materialize")
	}
}

func TestProcessLosingCodeKeepsPreviousValue(t *testing.T) {
	e := newTestEngine(Config{})

	// First upload materializes the mpg channel alone.
	if _, _, err := e.Process(carFields(Fields{"kff1201": "30"})); err != nil {
		t.Fatalf("first upload: %v", err)
	}
	// Second upload adds the higher-priority variant; mpg loses but keeps
	// its last value.
	delta, _, err := e.Process(carFields(Fields{"kff1201": "31", "kff5202": "7.8"}))
	if err != nil {
		t.Fatalf("second upload: %v", err)
	}

	snap, _ := e.Store().Snapshot(delta.VehicleKey)
	if got := snap.Channels["mpg_instant"].Value; got != 30.0 {
		t.Errorf("got %v, want the previous value 30", got)
	}
	if got := snap.Channels["l_per_100_instant"].Value; got != 7.8 {
		t.Errorf("got %v, want 7.8", got)
	}
}

func TestProcessUnknownCodePassesThrough(t *testing.T) {
	e := newTestEngine(Config{})

	delta, diags, err := e.Process(carFields(Fields{"kffabcd": "42"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(diags) != 1 || diags[0].Kind != DiagUnknownCode {
		t.Errorf("got diags %v, want one UnknownCode", diags)
	}

	snap, _ := e.Store().Snapshot(delta.VehicleKey)
	ch, ok := snap.Channels["obd_ffabcd"]
	if !ok {
		t.Fatal("unknown code must materialize as a raw channel")
	}
	if ch.Value != 42.0 {
		t.Errorf("got %v, want 42", ch.Value)
	}
	if ch.Label != "OBD FFABCD" {
		t.Errorf("got label %q, want %q", ch.Label, "OBD FFABCD")
	}
}

func TestProcessMalformedValueSkipsChannel(t *testing.T) {
	e := newTestEngine(Config{})

	delta, diags, err := e.Process(carFields(Fields{"k05": "warming", "k0c": "3000"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(diags) != 1 || diags[0].Kind != DiagMalformedValue {
		t.Errorf("got diags %v, want one MalformedValue", diags)
	}

	snap, _ := e.Store().Snapshot(delta.VehicleKey)
	if _, ok := snap.Channels["coolant_temp"]; ok {
		t.Error("malformed value must not materialize")
	}
	if _, ok := snap.Channels["engine_rpm"]; !ok {
		t.Error("well-formed sibling must still apply")
	}
}

func TestProcessCommaDecimal(t *testing.T) {
	e := newTestEngine(Config{})

	delta, _, err := e.Process(carFields(Fields{"k05": "90,5"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	snap, _ := e.Store().Snapshot(delta.VehicleKey)
	if got := snap.Channels["coolant_temp"].Value; got != 90.5 {
		t.Errorf("got %v, want 90.5", got)
	}
}

func TestProcessTripTimeTransform(t *testing.T) {
	e := newTestEngine(Config{})

	delta, _, err := e.Process(carFields(Fields{"kff1266": "150"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	snap, _ := e.Store().Snapshot(delta.VehicleKey)
	ch, ok := snap.Channels["trip_time_since_start"]
	if !ok {
		t.Fatal("trip time channel missing")
	}
	if ch.Value != 2.5 {
		t.Errorf("got %v minutes, want 2.5", ch.Value)
	}
	if ch.Unit != "min" {
		t.Errorf("got unit %q, want min", ch.Unit)
	}
	if ch.RawSeconds == nil || *ch.RawSeconds != 150.0 {
		t.Errorf("got raw seconds %v, want 150", ch.RawSeconds)
	}
}

func TestProcessImperialUnits(t *testing.T) {
	e := newTestEngine(Config{Units: "imperial"})

	delta, _, err := e.Process(carFields(Fields{"k0d": "100"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	snap, _ := e.Store().Snapshot(delta.VehicleKey)
	ch := snap.Channels["speed_obd"]
	if ch.Value != 62.14 {
		t.Errorf("got %v, want 62.14", ch.Value)
	}
	if ch.Unit != "mph" {
		t.Errorf("got unit %q, want mph", ch.Unit)
	}
}

func TestProcessLabelLanguage(t *testing.T) {
	e := newTestEngine(Config{Language: "fr"})

	delta, _, err := e.Process(carFields(Fields{"k0c": "3000"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	snap, _ := e.Store().Snapshot(delta.VehicleKey)
	if got := snap.Channels["engine_rpm"].Label; got != "Régime moteur" {
		t.Errorf("got label %q, want the French label", got)
	}
}

func TestProcessPerUploadLanguageOverride(t *testing.T) {
	e := newTestEngine(Config{Language: "en"})

	delta, _, err := e.Process(carFields(Fields{"k0c": "3000", "lang": "fr"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	snap, _ := e.Store().Snapshot(delta.VehicleKey)
	if got := snap.Channels["engine_rpm"].Label; got != "Régime moteur" {
		t.Errorf("got label %q, want the French label", got)
	}
}

func TestProcessTextChannel(t *testing.T) {
	e := newTestEngine(Config{})

	delta, _, err := e.Process(carFields(Fields{"kff123a": "8"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	snap, _ := e.Store().Snapshot(delta.VehicleKey)
	ch, ok := snap.Channels["gps_satellites"]
	if !ok {
		t.Fatal("text channel missing")
	}
	if ch.Value != "8" {
		t.Errorf("got %v (%T), want the string \"8\"", ch.Value, ch.Value)
	}
}

func TestProcessVersionCaptured(t *testing.T) {
	e := newTestEngine(Config{})

	delta, _, err := e.Process(carFields(Fields{"k0c": "3000", "appVersion": "1.12.46"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if delta.Version != "1.12.46" {
		t.Errorf("got version %q, want 1.12.46", delta.Version)
	}
}
