package web

// handlers.go implements the ingestion endpoint and the read API.
//
// The logging app's protocol is forgiving by necessity: GET with query
// parameters is the default, POST may carry JSON or form data, and the
// response body must be the literal "OK!" (the app checks that string and
// retries the upload otherwise). Per-field diagnostics therefore go into a
// response header and the log, not the body.

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/obddrive/obdd/internal/engine"
	"github.com/obddrive/obdd/internal/logging"
)

// handleHealth is the liveness probe.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"status":   "ok",
		"vehicles": s.engine.Store().Len(),
	})
}

// handleIngest accepts one telemetry upload.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	logger := logging.FromContext(r.Context())

	fields, err := parseUploadFields(r)
	if err != nil {
		logger.Warn("unreadable upload body", "error", err)
		writeError(w, http.StatusBadRequest, "unreadable request body")
		return
	}

	delta, diags, err := s.engine.Process(fields)
	if err != nil {
		if errors.Is(err, engine.ErrInvalidUpload) {
			// The app treats any non-"OK!" body as a soft failure and
			// moves on; a 4xx would only make it retry harder.
			logger.Warn("upload rejected: no resolvable vehicle identity")
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("IGNORED"))
			return
		}
		logger.Error("upload processing failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	for _, d := range diags {
		logger.Warn("upload diagnostic",
			"kind", string(d.Kind),
			"code", d.Code,
			"note", d.Note,
		)
	}

	// Publish outside any engine lock, fire-and-forget.
	if !delta.Empty() {
		s.notifier.Notify(delta)
	}

	logger.Debug("upload applied",
		"vehicle", delta.VehicleKey,
		"channels", len(delta.Channels),
		"created", len(delta.CreatedChannels),
		"position", delta.Position != nil,
	)

	if len(diags) > 0 {
		w.Header().Set("X-OBD-Diagnostics", strconv.Itoa(len(diags)))
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK!"))
}

// parseUploadFields flattens the request into engine.Fields. For POST,
// JSON body keys win over form keys, which win over query parameters; GET
// reads the query alone.
func parseUploadFields(r *http.Request) (engine.Fields, error) {
	fields := make(engine.Fields)

	if r.Method == http.MethodPost {
		// JSON body first, if it parses as an object.
		var body map[string]any
		if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
			if err := decodeJSONBody(r, &body); err != nil {
				return nil, err
			}
			for k, v := range body {
				fields[k] = stringify(v)
			}
		} else if err := r.ParseForm(); err == nil {
			for k, vs := range r.PostForm {
				if len(vs) > 0 {
					setDefault(fields, k, vs[0])
				}
			}
		}
	}

	// Query parameters never override body keys.
	for k, vs := range r.URL.Query() {
		if len(vs) > 0 {
			setDefault(fields, k, vs[0])
		}
	}

	return fields, nil
}

func setDefault(f engine.Fields, k, v string) {
	if _, ok := f[k]; !ok {
		f[k] = v
	}
}

// stringify flattens JSON values into the wire's string representation.
func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case nil:
		return ""
	default:
		return ""
	}
}

// handleListVehicles lists tracked vehicles, most recently updated first.
func (s *Server) handleListVehicles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"vehicles": s.engine.Store().Vehicles(),
	})
}

// snapshotChannel is the JSON shape of one channel in a snapshot response.
type snapshotChannel struct {
	Code       string   `json:"code"`
	Value      any      `json:"value"`
	Unit       string   `json:"unit,omitempty"`
	Label      string   `json:"label"`
	RawSeconds *float64 `json:"raw_seconds,omitempty"`
	UpdatedAt  string   `json:"updated_at"`
}

// handleVehicleSnapshot returns one vehicle's full snapshot.
func (s *Server) handleVehicleSnapshot(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	snap, ok := s.engine.Store().Snapshot(key)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown vehicle")
		return
	}

	channels := make(map[string]snapshotChannel, len(snap.Channels))
	for k, c := range snap.Channels {
		channels[k] = snapshotChannel{
			Code:       c.Code,
			Value:      c.Value,
			Unit:       c.Unit,
			Label:      c.Label,
			RawSeconds: c.RawSeconds,
			UpdatedAt:  c.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		}
	}

	resp := map[string]any{
		"key":       snap.Key,
		"name":      snap.Name,
		"version":   snap.Version,
		"last_seen": snap.LastSeen,
		"channels":  channels,
	}
	if snap.Position != nil {
		resp["position"] = map[string]any{
			"latitude":   snap.Position.Latitude,
			"longitude":  snap.Position.Longitude,
			"altitude":   snap.Position.Altitude,
			"accuracy":   snap.Position.Accuracy,
			"speed":      snap.Position.Speed,
			"updated_at": snap.Position.UpdatedAt,
		}
	}
	writeJSON(w, resp)
}

// handleListGroups documents the derived-group selection order.
func (s *Server) handleListGroups(w http.ResponseWriter, r *http.Request) {
	type member struct {
		Code     string `json:"code"`
		Priority int    `json:"priority"`
	}
	type group struct {
		Name    string   `json:"name"`
		Members []member `json:"members"`
	}

	groups := s.engine.Catalog().Groups()
	out := make([]group, 0, len(groups))
	for _, g := range groups {
		gm := group{Name: g.Name}
		for _, m := range g.SortedMembers() {
			gm.Members = append(gm.Members, member{Code: m.Code, Priority: m.Priority})
		}
		out = append(out, gm)
	}
	writeJSON(w, map[string]any{"groups": out})
}

// decodeJSONBody decodes the request body into v, limited to 1 MiB.
func decodeJSONBody(r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(nil, r.Body, 1<<20)
	return json.NewDecoder(r.Body).Decode(v)
}
