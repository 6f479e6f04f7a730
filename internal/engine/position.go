package engine

// position.go diverts position-bearing readings into a single structured
// position update.
//
// Latitude and longitude only ever exist inside the position tracker: they
// are removed from the channel set unconditionally. Altitude, accuracy and
// GPS speed stay independently observable: they ride along in the position
// update and remain ordinary scalar channels. A lone latitude or longitude
// suppresses the position update for the upload and yields an
// IncompletePosition diagnostic.

import "github.com/obddrive/obdd/internal/catalog"

// directPositionAliases maps the app's bare GPS query keys onto the
// catalog's GPS codes, so "lat=48.85" and "kff1006=48.85" are equivalent.
var directPositionAliases = map[string]string{
	"lat":         "ff1006",
	"gpslat":      "ff1006",
	"lon":         "ff1005",
	"gpslon":      "ff1005",
	"alt":         "ff1010",
	"altitude":    "ff1010",
	"gpsalt":      "ff1010",
	"gps_height":  "ff1010",
	"acc":         "ff1239",
	"accuracy":    "ff1239",
	"gps_acc":     "ff1239",
	"gpsaccuracy": "ff1239",
	"gps_spd":     "ff1001",
	"speed_gps":   "ff1001",
}

// extractPosition splits position-bearing updates out of the channel set.
// Returns the position update (nil if suppressed or absent), the remaining
// channel updates, and any diagnostics.
func extractPosition(updates []ChannelUpdate) (*PositionUpdate, []ChannelUpdate, []Diagnostic) {
	var (
		lat, lon   *float64
		pos        PositionUpdate
		diags      []Diagnostic
		remaining  = make([]ChannelUpdate, 0, len(updates))
		latCode    string
		lonCode    string
	)

	for _, u := range updates {
		v, isNum := u.Value.(float64)

		switch u.Kind {
		case catalog.KindLatitude:
			latCode = u.Code
			if !isNum || v < -90 || v > 90 {
				if isNum {
					diags = append(diags, Diagnostic{
						Kind: DiagMalformedValue, Code: u.Code,
						Note: "latitude out of range",
					})
				}
				continue
			}
			lat = &v

		case catalog.KindLongitude:
			lonCode = u.Code
			if !isNum || v < -180 || v > 180 {
				if isNum {
					diags = append(diags, Diagnostic{
						Kind: DiagMalformedValue, Code: u.Code,
						Note: "longitude out of range",
					})
				}
				continue
			}
			lon = &v

		case catalog.KindAltitude:
			if isNum {
				alt := v
				pos.Altitude = &alt
			}
			remaining = append(remaining, u)

		case catalog.KindAccuracy:
			if isNum && v >= 0 {
				acc := v
				pos.Accuracy = &acc
				remaining = append(remaining, u)
			}
			// Negative accuracy is garbage from the app; drop the channel too.

		case catalog.KindGPSSpeed:
			if isNum && v >= 0 {
				spd := v
				pos.Speed = &spd
			}
			remaining = append(remaining, u)

		default:
			remaining = append(remaining, u)
		}
	}

	switch {
	case lat != nil && lon != nil:
		pos.Latitude = *lat
		pos.Longitude = *lon
		return &pos, remaining, diags

	case lat != nil || lon != nil:
		code := latCode
		if lat == nil {
			code = lonCode
		}
		diags = append(diags, Diagnostic{
			Kind: DiagIncompletePosition,
			Code: code,
			Note: "only one of latitude/longitude present; position suppressed",
		})
		return nil, remaining, diags

	default:
		// No coordinates at all: altitude/accuracy/speed stay channels but
		// there is no position to update.
		return nil, remaining, diags
	}
}
