package engine

// engine.go wires the pipeline: identity resolution, catalog lookup, unit
// deduplication, position extraction, unit preference, state apply.
//
// Process is synchronous and deterministic: no I/O, no goroutines. The
// caller decides what to do with the returned SnapshotDelta (publishing is
// fire-and-forget and must not happen under any engine lock).

import (
	"sort"
	"strings"

	"github.com/obddrive/obdd/internal/catalog"
)

// Config assembles an Engine.
type Config struct {
	Catalog  *catalog.Catalog
	Router   RouterConfig
	Store    StoreConfig
	Language string // default display language for labels
	Units    string // "metric" or "imperial"
}

// Engine is the telemetry normalization and session routing core.
type Engine struct {
	catalog *catalog.Catalog
	router  *Router
	store   *Store
	lang    string
	units   UnitPreference
}

// New creates an engine from configuration.
func New(cfg Config) *Engine {
	c := cfg.Catalog
	if c == nil {
		c = catalog.New()
	}
	lang := strings.TrimSpace(cfg.Language)
	if lang == "" {
		lang = catalog.DefaultLanguage
	}
	return &Engine{
		catalog: c,
		router:  NewRouter(cfg.Router),
		store:   NewStore(cfg.Store),
		lang:    lang,
		units:   ParseUnitPreference(cfg.Units),
	}
}

// Store exposes the vehicle state store for the read API and the eviction
// scheduler.
func (e *Engine) Store() *Store { return e.store }

// Catalog exposes the code catalog for the read API.
func (e *Engine) Catalog() *catalog.Catalog { return e.catalog }

// Process applies one upload.
//
// Returns the snapshot delta plus any per-field diagnostics. The only error
// is ErrInvalidUpload, in which case no state was mutated. Per-field
// problems (unknown codes, malformed values, a lone coordinate) never fail
// the upload; they are reported alongside the partial apply.
func (e *Engine) Process(fields Fields) (SnapshotDelta, []Diagnostic, error) {
	id, err := e.router.Resolve(fields)
	if err != nil {
		return SnapshotDelta{}, nil, err
	}

	// Opportunistic eviction keeps the store bounded even if the
	// background scheduler is not running (tests, library use).
	e.store.Evict()

	readings, diags := e.collectReadings(fields)

	codes := make([]string, 0, len(readings))
	for code := range readings {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	kept := catalog.ResolveUnits(e.catalog, codes)

	lang := e.uploadLanguage(fields)

	updates := make([]ChannelUpdate, 0, len(kept))
	for _, code := range kept {
		u, d, ok := e.normalize(code, readings[code], lang)
		diags = append(diags, d...)
		if ok {
			updates = append(updates, u)
		}
	}

	pos, updates, posDiags := extractPosition(updates)
	diags = append(diags, posDiags...)

	for i := range updates {
		applyUnitPreference(&updates[i], e.units)
	}

	delta := e.store.Apply(id, updates, pos)
	return delta, diags, nil
}

// collectReadings extracts parameter readings from the raw fields: "k"
// prefixed keys plus the app's bare GPS aliases. Returns code -> raw value.
func (e *Engine) collectReadings(fields Fields) (map[string]string, []Diagnostic) {
	readings := make(map[string]string)
	var diags []Diagnostic

	for key, raw := range fields {
		if len(key) < 2 || (key[0] != 'k' && key[0] != 'K') {
			continue
		}
		code := catalog.Normalize(key[1:])
		if code == "" {
			continue
		}
		readings[code] = raw
		if !e.catalog.Known(code) {
			diags = append(diags, Diagnostic{
				Kind:  DiagUnknownCode,
				Code:  code,
				Value: raw,
				Note:  "materialized as raw pass-through",
			})
		}
	}

	// Bare GPS keys fold into their codes, never overriding an explicit one.
	for key, raw := range fields {
		code, ok := directPositionAliases[strings.ToLower(strings.TrimSpace(key))]
		if !ok || strings.TrimSpace(raw) == "" {
			continue
		}
		if _, present := readings[code]; !present {
			readings[code] = raw
		}
	}

	return readings, diags
}

// uploadLanguage picks the label language: per-upload override, else the
// configured default.
func (e *Engine) uploadLanguage(fields Fields) string {
	for _, k := range []string{"lang", "language"} {
		if v := strings.TrimSpace(fields[k]); v != "" {
			return v
		}
	}
	return e.lang
}

// normalize turns one raw reading into a ChannelUpdate.
func (e *Engine) normalize(code, raw, lang string) (ChannelUpdate, []Diagnostic, bool) {
	def := e.catalog.Resolve(code)

	u := ChannelUpdate{
		Key:   def.ShortName,
		Code:  code,
		Kind:  def.Kind,
		Unit:  def.Unit,
		Label: e.catalog.Label(code, lang),
	}

	if def.Text {
		s := strings.TrimSpace(raw)
		if s == "" {
			return ChannelUpdate{}, nil, false
		}
		u.Value = s
		return u, nil, true
	}

	v, ok := parseNumber(raw)
	if !ok {
		// Unknown codes may legitimately carry text; known numeric
		// definitions must parse.
		if def.Generic() {
			s := strings.TrimSpace(raw)
			if s == "" {
				return ChannelUpdate{}, nil, false
			}
			u.Value = s
			return u, nil, true
		}
		return ChannelUpdate{}, []Diagnostic{{
			Kind:  DiagMalformedValue,
			Code:  code,
			Value: raw,
			Note:  "not a finite number; channel update skipped",
		}}, false
	}

	if def.Transform != nil {
		if def.Kind == catalog.KindDuration {
			sec := v
			u.RawSeconds = &sec
		}
		v = def.Transform(v)
	}
	u.Value = v
	return u, nil, true
}
