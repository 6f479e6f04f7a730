// Package catalog maps opaque OBD parameter codes to measurement definitions.
//
// The catalog is built once at startup (built-in table plus optional YAML
// extensions) and is immutable afterwards, so it is safe for concurrent
// reads from any number of upload-handling goroutines without locking.
//
// Resolution is total: Resolve never fails. Codes the catalog has never
// heard of degrade to a generic pass-through definition instead of being
// dropped, so new vendor codes keep flowing end to end with a raw label.
package catalog

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/language"
)

// Kind is the semantic kind of a measurement. The unit resolver and the
// position extractor switch on Kind, so every definition must carry one.
type Kind int

const (
	KindUnknown Kind = iota
	KindEngineSpeed
	KindVehicleSpeed
	KindTemperature
	KindPercent
	KindPressure
	KindVoltage
	KindCurrent
	KindAirFlow
	KindDistance
	KindDuration
	KindFuelLevel
	KindFuelRate
	KindFuelEconomy
	KindEmission
	KindAcceleration
	KindLatitude
	KindLongitude
	KindAltitude
	KindAccuracy
	KindGPSSpeed
	KindText
)

var kindNames = map[Kind]string{
	KindUnknown:      "unknown",
	KindEngineSpeed:  "engine-speed",
	KindVehicleSpeed: "vehicle-speed",
	KindTemperature:  "temperature",
	KindPercent:      "percent",
	KindPressure:     "pressure",
	KindVoltage:      "voltage",
	KindCurrent:      "current",
	KindAirFlow:      "air-flow",
	KindDistance:     "distance",
	KindDuration:     "duration",
	KindFuelLevel:    "fuel-level",
	KindFuelRate:     "fuel-rate",
	KindFuelEconomy:  "fuel-economy",
	KindEmission:     "emission",
	KindAcceleration: "acceleration",
	KindLatitude:     "position-latitude",
	KindLongitude:    "position-longitude",
	KindAltitude:     "position-altitude",
	KindAccuracy:     "position-accuracy",
	KindGPSSpeed:     "position-speed",
	KindText:         "text",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// KindFromString parses a kind name as used in extension files.
func KindFromString(s string) (Kind, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for k, name := range kindNames {
		if name == s {
			return k, true
		}
	}
	return KindUnknown, false
}

// IsPosition reports whether the kind belongs to the position tracker.
func (k Kind) IsPosition() bool {
	switch k {
	case KindLatitude, KindLongitude, KindAltitude, KindAccuracy, KindGPSSpeed:
		return true
	}
	return false
}

// Transform is a pure value transform applied after parsing and before
// materialization (scaling, rounding). Must be side-effect free.
type Transform func(float64) float64

// Definition describes the semantics of one parameter code.
type Definition struct {
	Code      string            // normalized parameter code
	Kind      Kind              // semantic kind
	ShortName string            // stable channel key, e.g. "engine_rpm"
	Unit      string            // base physical unit, empty for text channels
	Names     map[string]string // language -> display label; "en" always present
	Transform Transform         // optional
	Text      bool              // value is textual, skip numeric parsing
}

// DefaultLanguage is used when a requested display language has no label.
const DefaultLanguage = "en"

// Generic reports whether the definition is the unknown-code fallback.
func (d Definition) Generic() bool {
	return d.Kind == KindUnknown
}

// Catalog is the immutable code -> definition mapping plus derived groups.
type Catalog struct {
	defs        map[string]Definition
	groups      []DerivedGroup
	groupByCode map[string]int // code -> index into groups

	supported []language.Tag
	matcher   language.Matcher
}

// New builds a catalog from the built-in table. Panics on a malformed
// built-in table since that is a programming error, not a runtime one.
func New() *Catalog {
	c, err := build(builtinDefinitions, builtinGroups)
	if err != nil {
		panic(fmt.Sprintf("built-in catalog invalid: %v", err))
	}
	return c
}

// build assembles and validates a catalog from definitions and groups.
func build(defs []Definition, groups []DerivedGroup) (*Catalog, error) {
	c := &Catalog{
		defs:        make(map[string]Definition, len(defs)),
		groupByCode: make(map[string]int),
	}

	langs := map[string]bool{DefaultLanguage: true}
	for _, d := range defs {
		code := Normalize(d.Code)
		if code == "" {
			return nil, fmt.Errorf("definition with empty code (short name %q)", d.ShortName)
		}
		if _, dup := c.defs[code]; dup {
			return nil, fmt.Errorf("duplicate code %q", code)
		}
		if d.ShortName == "" {
			return nil, fmt.Errorf("code %q has no short name", code)
		}
		if d.Names[DefaultLanguage] == "" {
			return nil, fmt.Errorf("code %q has no %s label", code, DefaultLanguage)
		}
		d.Code = code
		c.defs[code] = d
		for lang := range d.Names {
			langs[lang] = true
		}
	}

	for i, g := range groups {
		if g.Name == "" {
			return nil, fmt.Errorf("derived group %d has no name", i)
		}
		if len(g.Members) < 2 {
			return nil, fmt.Errorf("derived group %q needs at least two members", g.Name)
		}
		// Member codes are stored normalized so winner comparison works on
		// the same form the index uses.
		members := make([]GroupMember, len(g.Members))
		for j, m := range g.Members {
			code := Normalize(m.Code)
			if _, known := c.defs[code]; !known {
				return nil, fmt.Errorf("derived group %q references unknown code %q", g.Name, code)
			}
			if prev, dup := c.groupByCode[code]; dup {
				return nil, fmt.Errorf("code %q is in both group %q and %q", code, groups[prev].Name, g.Name)
			}
			c.groupByCode[code] = i
			members[j] = GroupMember{Code: code, Priority: m.Priority}
		}
		c.groups = append(c.groups, DerivedGroup{Name: g.Name, Members: members})
	}

	// Deterministic tag order for the language matcher; the default
	// language must come first so it wins when nothing matches.
	var names []string
	for lang := range langs {
		if lang != DefaultLanguage {
			names = append(names, lang)
		}
	}
	sort.Strings(names)
	c.supported = []language.Tag{language.Make(DefaultLanguage)}
	for _, lang := range names {
		c.supported = append(c.supported, language.Make(lang))
	}
	c.matcher = language.NewMatcher(c.supported)

	return c, nil
}

// Normalize canonicalizes a parameter code: lower-cased, trimmed.
func Normalize(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}

// Resolve returns the definition for a code. Total: unknown codes yield a
// generic pass-through definition so the pipeline never drops a reading.
func (c *Catalog) Resolve(code string) Definition {
	code = Normalize(code)
	if d, ok := c.defs[code]; ok {
		return d
	}
	return Definition{
		Code:      code,
		Kind:      KindUnknown,
		ShortName: "obd_" + code,
		Names: map[string]string{
			DefaultLanguage: "OBD " + strings.ToUpper(code),
		},
	}
}

// Known reports whether the code has a real (non-fallback) definition.
func (c *Catalog) Known(code string) bool {
	_, ok := c.defs[Normalize(code)]
	return ok
}

// Label returns the display label for a code in the requested language,
// using BCP-47 matching over the catalog's available languages and falling
// back to the default language.
func (c *Catalog) Label(code, lang string) string {
	d := c.Resolve(code)
	return c.labelFor(d, lang)
}

func (c *Catalog) labelFor(d Definition, lang string) string {
	tag, err := language.Parse(lang)
	if err == nil {
		matched, _, conf := c.matcher.Match(tag)
		if conf > language.No {
			base, _ := matched.Base()
			if label, ok := d.Names[base.String()]; ok && label != "" {
				return label
			}
		}
	}
	return d.Names[DefaultLanguage]
}

// Len returns the number of known definitions.
func (c *Catalog) Len() int { return len(c.defs) }

// Groups returns the derived groups, for diagnostics and tests.
func (c *Catalog) Groups() []DerivedGroup { return c.groups }
