package catalog

// groups.go implements the unit resolver and deduplicator.
//
// A DerivedGroup is a set of codes that express the same physical quantity
// in mutually exclusive units (L/100km vs km/L vs mpg). At most one member
// of a group is materialized per upload. The winner is decided by a fixed
// priority table so the choice never depends on the order in which codes
// appear in the upload:
//
//	1. litres per 100 km  (the app's canonical per-distance family)
//	2. kilometres per litre
//	3. miles per gallon
//
// Equal priorities (possible via extension files) break by lexicographic
// code order. Losing codes are skipped for the current upload only; a
// channel previously materialized for a losing code keeps its last value.

import "sort"

// Group member priorities, lowest wins.
const (
	PriorityPerDistance       = 1 // L/100km family
	PriorityPerVolumeMetric   = 2 // km/L family
	PriorityPerVolumeImperial = 3 // mpg family
)

// GroupMember is one unit variant inside a derived group.
type GroupMember struct {
	Code     string `yaml:"code"`
	Priority int    `yaml:"priority"`
}

// DerivedGroup is a named set of mutually exclusive unit variants.
type DerivedGroup struct {
	Name    string        `yaml:"name"`
	Members []GroupMember `yaml:"members"`
}

// GroupOf returns the derived group containing code, if any.
func (c *Catalog) GroupOf(code string) (DerivedGroup, bool) {
	i, ok := c.groupByCode[Normalize(code)]
	if !ok {
		return DerivedGroup{}, false
	}
	return c.groups[i], true
}

// ResolveUnits returns the subset of present codes that should be
// materialized, with derived-group collisions resolved. Codes outside any
// group pass through unchanged, in their input order. The result is
// deterministic for any fixed set of input codes.
func ResolveUnits(c *Catalog, present []string) []string {
	// Winner per group index, decided over the whole input set first so
	// the outcome cannot depend on input order.
	winners := make(map[int]GroupMember)
	for _, raw := range present {
		code := Normalize(raw)
		gi, grouped := c.groupByCode[code]
		if !grouped {
			continue
		}
		member := memberFor(c.groups[gi], code)
		best, seen := winners[gi]
		if !seen || less(member, best) {
			winners[gi] = member
		}
	}

	out := make([]string, 0, len(present))
	emitted := make(map[string]bool, len(present))
	for _, raw := range present {
		code := Normalize(raw)
		if emitted[code] {
			continue
		}
		if gi, grouped := c.groupByCode[code]; grouped {
			if winners[gi].Code != code {
				continue
			}
		}
		emitted[code] = true
		out = append(out, code)
	}
	return out
}

// less orders group members: lower priority first, then lexicographic code.
func less(a, b GroupMember) bool {
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	return a.Code < b.Code
}

func memberFor(g DerivedGroup, code string) GroupMember {
	for _, m := range g.Members {
		if Normalize(m.Code) == code {
			return m
		}
	}
	// Unreachable when the catalog index is consistent.
	return GroupMember{Code: code}
}

// SortedMembers returns a group's members in selection order, for
// diagnostics and documentation endpoints.
func (g DerivedGroup) SortedMembers() []GroupMember {
	out := make([]GroupMember, len(g.Members))
	copy(out, g.Members)
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}
