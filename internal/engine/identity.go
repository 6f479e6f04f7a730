package engine

// identity.go implements the session/vehicle router: deriving a stable
// VehicleKey from an upload's identity fields.
//
// Key precedence: explicit vehicle id, else (email, profile name), else
// profile name alone, else the configured default key, else the upload is
// rejected. Keys derived from profile names carry a short salt from the
// email so two accounts naming their car "Car1" never collide.
//
// The router also carries the logging app's identity niceties: profile
// name aliases, the "Vehicle 123456" poor-name guard, remembered names per
// email and per vehicle id, and the name/VIN merge modes.

import (
	"crypto/sha1"
	"encoding/hex"
	"regexp"
	"strings"
	"sync"
)

// RouterConfig configures identity resolution.
type RouterConfig struct {
	// DefaultKey is used when no identity field is present. Empty means
	// unset: such uploads fail with ErrInvalidUpload.
	DefaultKey string

	// MergeMode is "none", "name" or "vin".
	MergeMode string

	// NameMap is the canonical-name mapping text for MergeMode "name".
	NameMap string

	// RejectPoorNames treats placeholder names as absent.
	RejectPoorNames bool
}

// Merge modes.
const (
	MergeNone = "none"
	MergeName = "name"
	MergeVIN  = "vin"
)

// Router resolves upload identity fields to a VehicleKey.
type Router struct {
	defaultKey string
	mergeMode  string
	nameMap    map[string]string
	rejectPoor bool

	mu          sync.Mutex
	nameByEmail map[string]string
	nameByID    map[string]string
}

// NewRouter creates a router from configuration. The name map text is
// parsed once here; malformed lines are skipped.
func NewRouter(cfg RouterConfig) *Router {
	mode := strings.ToLower(strings.TrimSpace(cfg.MergeMode))
	switch mode {
	case MergeName, MergeVIN:
	default:
		mode = MergeNone
	}
	return &Router{
		defaultKey:  strings.TrimSpace(cfg.DefaultKey),
		mergeMode:   mode,
		nameMap:     ParseNameMap(cfg.NameMap),
		rejectPoor:  cfg.RejectPoorNames,
		nameByEmail: make(map[string]string),
		nameByID:    make(map[string]string),
	}
}

// profileNameKeys are the wire aliases accepted for the profile name, in
// precedence order. Keys are matched in normalized form (lower-case,
// separators stripped).
var profileNameKeys = []string{
	"profilename",
	"profile",
	"vehiclename",
	"vehicle",
	"carname",
	"car",
	"name",
}

// poorNameRe matches auto-generated placeholder names like "Vehicle 123456".
var poorNameRe = regexp.MustCompile(`^\s*vehicle\s*\d+\s*$`)

func isPoorName(name string) bool {
	s := strings.TrimSpace(name)
	if s == "" {
		return true
	}
	low := strings.ToLower(s)
	if low == "vehicle" || low == "véhicule" {
		return true
	}
	return poorNameRe.MatchString(low)
}

func normKey(k string) string {
	r := strings.NewReplacer(".", "", "-", "", "_", "")
	return r.Replace(strings.ToLower(strings.TrimSpace(k)))
}

// extractProfileName returns the highest-precedence non-empty profile name
// alias. The scan follows the fixed alias order, never map iteration order,
// so an upload carrying several aliases always resolves the same way.
func extractProfileName(f Fields) string {
	for _, alias := range profileNameKeys {
		var name, nameKey string
		for k, v := range f {
			if normKey(k) != alias {
				continue
			}
			s := collapseSpaces(v)
			if s == "" {
				continue
			}
			if nameKey == "" || k < nameKey {
				name, nameKey = s, k
			}
		}
		if name != "" {
			return name
		}
	}
	return ""
}

var spacesRe = regexp.MustCompile(`\s+`)

func collapseSpaces(s string) string {
	return strings.TrimSpace(spacesRe.ReplaceAllString(s, " "))
}

// extractAppVersion pulls the logging app's version out of the upload.
func extractAppVersion(f Fields) string {
	for _, k := range []string{"appVersion", "app_version", "apkVersion", "versionName", "version"} {
		if v := strings.TrimSpace(f[k]); v != "" {
			return v
		}
	}
	// "v"/"ver" double as protocol version; only trust them when they look
	// like a release string.
	for _, k := range []string{"ver", "v"} {
		if v := strings.TrimSpace(f[k]); v != "" && strings.ContainsAny(v, ".-") {
			return v
		}
	}
	return ""
}

// Resolve derives the vehicle identity for one upload.
// Returns ErrInvalidUpload when nothing usable is present.
func (r *Router) Resolve(f Fields) (Identity, error) {
	email := strings.TrimSpace(f["eml"])
	if email == "" {
		email = strings.TrimSpace(f["email"])
	}
	vehicleID := strings.TrimSpace(f["id"])
	rawName := extractProfileName(f)

	// Canonical override from merge mode.
	canonical := ""
	switch r.mergeMode {
	case MergeName:
		canonical = r.lookupCanonical(rawName)
	case MergeVIN:
		canonical = strings.TrimSpace(f["vin"])
	}

	// Fall back to the last good name seen for this id or email when the
	// payload's own name is a placeholder.
	name := rawName
	usedRemembered := false
	if isPoorName(name) {
		if remembered := r.rememberedName(vehicleID, email); remembered != "" {
			name = remembered
			usedRemembered = true
		}
	}

	if r.rejectPoor && canonical == "" && isPoorName(name) {
		name = ""
	}

	id := Identity{
		Name:      firstNonEmpty(canonical, name),
		Email:     email,
		VehicleID: vehicleID,
		Version:   extractAppVersion(f),
	}

	salt := emailSalt(email)
	switch {
	case canonical != "":
		id.Key = Slugify(canonical)
	case vehicleID != "":
		base := vehicleID
		if name != "" {
			base = Slugify(name) + "_" + truncate(vehicleID, 4)
		}
		id.Key = joinSalt(base, salt)
	case email != "" && name != "":
		id.Key = joinSalt(Slugify(name), salt)
	case name != "":
		id.Key = Slugify(name)
	case r.defaultKey != "":
		id.Key = Slugify(r.defaultKey)
		if id.Name == "" {
			id.Name = r.defaultKey
		}
	default:
		return Identity{}, ErrInvalidUpload
	}

	if id.Name == "" {
		id.Name = "Vehicle " + truncate(id.Key, 6)
	}

	// Remember the raw name only when the payload itself carried it.
	if !isPoorName(rawName) && !usedRemembered {
		r.rememberName(vehicleID, email, rawName)
	}

	return id, nil
}

func (r *Router) rememberedName(vehicleID, email string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if vehicleID != "" {
		if n := r.nameByID[vehicleID]; !isPoorName(n) {
			return n
		}
	}
	if email != "" {
		if n := r.nameByEmail[email]; !isPoorName(n) {
			return n
		}
	}
	return ""
}

func (r *Router) rememberName(vehicleID, email, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if vehicleID != "" {
		r.nameByID[vehicleID] = name
	}
	if email != "" {
		r.nameByEmail[email] = name
	}
}

func (r *Router) lookupCanonical(name string) string {
	if name == "" {
		return ""
	}
	if c := r.nameMap[strings.ToLower(strings.TrimSpace(name))]; c != "" {
		return c
	}
	return r.nameMap[Slugify(name)]
}

// ParseNameMap parses canonical-name mapping text. Entries are separated by
// ';' or newlines; each line is "alias -> canonical" with "->", "=>", ":",
// "=" or whitespace as separator. '#' starts a comment line. Aliases are
// indexed both lower-cased and slugified.
func ParseNameMap(text string) map[string]string {
	mapping := make(map[string]string)
	if strings.TrimSpace(text) == "" {
		return mapping
	}

	txt := strings.NewReplacer("\r\n", "\n", "\r", "\n", ";", "\n").Replace(text)
	for _, raw := range strings.Split(txt, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		var left, right string
		found := false
		for _, sep := range []string{"->", "=>", ":", "="} {
			if i := strings.Index(line, sep); i >= 0 {
				left, right = line[:i], line[i+len(sep):]
				found = true
				break
			}
		}
		if !found {
			parts := strings.Fields(line)
			if len(parts) < 2 {
				continue
			}
			left = strings.Join(parts[:len(parts)-1], " ")
			right = parts[len(parts)-1]
		}

		left = strings.TrimSpace(left)
		right = strings.TrimSpace(right)
		if left == "" || right == "" {
			continue
		}
		mapping[strings.ToLower(left)] = right
		mapping[Slugify(left)] = right
	}
	return mapping
}

// Slugify lowers a name to a stable identifier: lower-case alphanumerics
// with single underscores. Keys derived from names must stay stable across
// versions, so the rules here must never change.
func Slugify(s string) string {
	var b strings.Builder
	lastUnderscore := true // strip leading separators
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}

// emailSalt returns a 4-hex-digit disambiguator derived from the email.
func emailSalt(email string) string {
	if email == "" {
		return ""
	}
	sum := sha1.Sum([]byte(email))
	return hex.EncodeToString(sum[:])[:4]
}

func joinSalt(base, salt string) string {
	if salt == "" {
		return base
	}
	return base + "_" + salt
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
