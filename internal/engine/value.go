package engine

// value.go parses raw reading values and applies unit preference.
//
// The logging app sends everything as strings and is not shy about locale
// quirks: decimal commas, "Infinity", "NaN" during sensor warm-up. Comma
// decimals are accepted, non-finite values rejected.

import (
	"math"
	"strconv"
	"strings"

	"github.com/obddrive/obdd/internal/catalog"
)

// parseNumber interprets a raw value as a finite float64.
func parseNumber(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}
	s = strings.ReplaceAll(s, ",", ".")
	switch strings.ToLower(s) {
	case "inf", "+inf", "-inf", "infinity", "nan":
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || !isFinite(v) {
		return 0, false
	}
	return v, true
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func roundTo(v float64, n int) float64 {
	p := math.Pow10(n)
	return math.Round(v*p) / p
}

// UnitPreference selects the unit system for materialized values.
type UnitPreference string

const (
	UnitsMetric   UnitPreference = "metric"
	UnitsImperial UnitPreference = "imperial"
)

// ParseUnitPreference normalizes a configuration string; anything that is
// not "imperial" is metric.
func ParseUnitPreference(s string) UnitPreference {
	if strings.EqualFold(strings.TrimSpace(s), string(UnitsImperial)) {
		return UnitsImperial
	}
	return UnitsMetric
}

// applyUnitPreference converts a channel update in place when the imperial
// preference is active. Conversion factors and rounding match the app's own
// display conversions. GPS accuracy stays metric: it is a sensor error
// radius, not a user-facing distance.
func applyUnitPreference(u *ChannelUpdate, pref UnitPreference) {
	if pref != UnitsImperial {
		return
	}
	v, ok := u.Value.(float64)
	if !ok {
		return
	}

	switch strings.ToLower(u.Unit) {
	case "km/h", "kmh":
		u.Value = roundTo(v*0.621371, 2)
		u.Unit = "mph"
	case "km":
		u.Value = roundTo(v*0.621371, 3)
		u.Unit = "mi"
	case "m":
		if u.Kind == catalog.KindAltitude {
			u.Value = roundTo(v*3.28084, 1)
			u.Unit = "ft"
		}
	case "°c", "c":
		u.Value = roundTo(v*9.0/5.0+32.0, 1)
		u.Unit = "°F"
	case "kpa":
		u.Value = roundTo(v*0.145038, 2)
		u.Unit = "psi"
	case "bar":
		u.Value = roundTo(v*14.5038, 2)
		u.Unit = "psi"
	case "l/100km":
		if v > 0 {
			u.Value = roundTo(235.215/v, 2)
			u.Unit = "mpg"
		}
	case "n·m", "nm":
		u.Value = roundTo(v*0.737562, 2)
		u.Unit = "lb·ft"
	}
}
