package engine

// store.go holds per-vehicle mutable state.
//
// Locking model: the store mutex guards the key index, the LRU list and
// each entry's touched timestamp; each vehicle entry additionally carries
// its own mutex serializing Apply calls for that key. Uploads for distinct
// vehicles never contend. Eviction takes the entry mutex before removing an
// entry, so a vehicle mid-Apply cannot vanish under the writer; an entry
// that loses the race is marked evicted and Apply re-creates it from empty.
// Dual-lock paths (Apply's touch, evictOne) always take the entry lock
// first, then the store lock.
//
// Lifecycle per vehicle: absent -> active on first upload, refreshed on
// every subsequent upload, active -> absent on TTL or LRU eviction. A
// malformed upload never transitions existing state.

import (
	"container/list"
	"sync"
	"time"

	"github.com/google/uuid"
)

// StoreConfig bounds the store.
type StoreConfig struct {
	// TTL is the idle duration after which a vehicle is evicted.
	TTL time.Duration

	// MaxVehicles bounds the number of tracked vehicles; the least
	// recently updated entries beyond it are evicted.
	MaxVehicles int
}

// Default store bounds.
const (
	DefaultTTL         = 30 * time.Minute
	DefaultMaxVehicles = 64
)

// Store is the VehicleKey -> VehicleState arena.
type Store struct {
	ttl time.Duration
	max int

	mu      sync.Mutex
	entries map[string]*entry
	lru     *list.List // front = most recently updated; values are *entry

	now func() time.Time // test hook
}

type entry struct {
	key string

	// Guarded by Store.mu.
	el      *list.Element
	touched time.Time

	// Guarded by entry.mu.
	mu       sync.Mutex
	evicted  bool
	name     string
	email    string
	version  string
	channels map[string]ChannelState
	position *PositionState
	lastSeen time.Time
}

// NewStore creates a store with the given bounds, falling back to defaults
// for zero values.
func NewStore(cfg StoreConfig) *Store {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.MaxVehicles <= 0 {
		cfg.MaxVehicles = DefaultMaxVehicles
	}
	return &Store{
		ttl:     cfg.TTL,
		max:     cfg.MaxVehicles,
		entries: make(map[string]*entry),
		lru:     list.New(),
		now:     time.Now,
	}
}

// Apply writes one upload's channel and position updates to the vehicle's
// state, creating the vehicle, channels and position tracker on first
// sight. Returns the SnapshotDelta for the entity platform. Serialized per
// key; concurrent across keys.
func (s *Store) Apply(id Identity, updates []ChannelUpdate, pos *PositionUpdate) SnapshotDelta {
	now := s.now()

	for {
		e, created := s.getOrCreate(id.Key)

		e.mu.Lock()
		if e.evicted {
			// Lost a race with the evictor between lookup and lock.
			e.mu.Unlock()
			continue
		}

		delta := SnapshotDelta{
			UploadID:       uuid.New().String(),
			VehicleKey:     id.Key,
			Name:           id.Name,
			Version:        id.Version,
			VehicleCreated: created,
			AppliedAt:      now,
		}

		e.name = id.Name
		e.email = id.Email
		e.version = id.Version

		for _, u := range updates {
			if _, seen := e.channels[u.Key]; !seen {
				delta.CreatedChannels = append(delta.CreatedChannels, u.Key)
			}
			e.channels[u.Key] = ChannelState{
				Code:       u.Code,
				Value:      u.Value,
				Unit:       u.Unit,
				Label:      u.Label,
				RawSeconds: u.RawSeconds,
				UpdatedAt:  now,
			}
			delta.Channels = append(delta.Channels, u)
		}

		if pos != nil {
			delta.PositionCreated = e.position == nil
			delta.Position = pos
			e.position = &PositionState{
				Latitude:  pos.Latitude,
				Longitude: pos.Longitude,
				Altitude:  pos.Altitude,
				Accuracy:  pos.Accuracy,
				Speed:     pos.Speed,
				UpdatedAt: now,
			}
		}

		e.lastSeen = now
		// touched must move before the entry lock drops: an eviction cycle
		// that selected this entry earlier sees the new timestamp and spares
		// it, so a just-updated vehicle never vanishes.
		s.touch(e, now)
		e.mu.Unlock()

		return delta
	}
}

// getOrCreate returns the entry for key, creating it atomically on first
// sight. The bool reports whether it was created.
func (s *Store) getOrCreate(key string) (*entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[key]; ok {
		return e, false
	}
	e := &entry{
		key:      key,
		touched:  s.now(),
		channels: make(map[string]ChannelState),
	}
	e.el = s.lru.PushFront(e)
	s.entries[key] = e
	return e, true
}

// touch moves the entry to the front of the LRU list.
func (s *Store) touch(e *entry, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.el != nil {
		e.touched = now
		s.lru.MoveToFront(e.el)
	}
}

// victim pairs a selected entry with its touched timestamp at selection
// time, so evictOne can tell whether an Apply refreshed it afterwards.
type victim struct {
	e       *entry
	touched time.Time
}

// Evict removes vehicles idle past the TTL and, independently, the least
// recently updated vehicles beyond the maximum count. Returns the evicted
// keys. Safe to call concurrently with Apply.
func (s *Store) Evict() []string {
	cutoff := s.now().Add(-s.ttl)

	var evicted []string
	for {
		victims := s.selectVictims(cutoff)
		if len(victims) == 0 {
			return evicted
		}

		progress := false
		for _, v := range victims {
			if s.evictOne(v) {
				evicted = append(evicted, v.e.key)
				progress = true
			}
		}
		if !progress {
			return evicted
		}

		// A victim refreshed between selection and removal survives. When
		// the store is still over its bound, select again so the actual
		// least recently updated entry goes instead of the refreshed one.
		s.mu.Lock()
		over := len(s.entries) > s.max
		s.mu.Unlock()
		if !over {
			return evicted
		}
	}
}

// selectVictims picks TTL-expired entries and, independently, the least
// recently updated entries beyond the maximum count. Store lock only;
// touched is guarded by it.
func (s *Store) selectVictims(cutoff time.Time) []victim {
	s.mu.Lock()
	defer s.mu.Unlock()

	var victims []victim
	selected := make(map[*entry]bool)
	for el := s.lru.Back(); el != nil; el = el.Prev() {
		e := el.Value.(*entry)
		if !e.touched.After(cutoff) {
			victims = append(victims, victim{e, e.touched})
			selected[e] = true
		}
	}
	for el := s.lru.Back(); el != nil && s.lru.Len()-len(victims) > s.max; el = el.Prev() {
		e := el.Value.(*entry)
		if !selected[e] {
			victims = append(victims, victim{e, e.touched})
			selected[e] = true
		}
	}
	return victims
}

// evictOne removes a single selected entry, honoring the per-entry lock so a
// vehicle being written never vanishes mid-update. An entry whose touched
// timestamp moved since selection was refreshed by an Apply and survives.
func (s *Store) evictOne(v victim) bool {
	e := v.e
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.evicted {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !e.touched.Equal(v.touched) {
		return false
	}

	e.evicted = true
	delete(s.entries, e.key)
	s.lru.Remove(e.el)
	e.el = nil
	return true
}

// Snapshot returns a read-only copy of one vehicle's state.
func (s *Store) Snapshot(key string) (VehicleSnapshot, bool) {
	s.mu.Lock()
	e, ok := s.entries[key]
	s.mu.Unlock()
	if !ok {
		return VehicleSnapshot{}, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.evicted {
		return VehicleSnapshot{}, false
	}

	snap := VehicleSnapshot{
		Key:      e.key,
		Name:     e.name,
		Email:    e.email,
		Version:  e.version,
		Channels: make(map[string]ChannelState, len(e.channels)),
		LastSeen: e.lastSeen,
	}
	for k, v := range e.channels {
		snap.Channels[k] = v
	}
	if e.position != nil {
		p := *e.position
		snap.Position = &p
	}
	return snap, true
}

// VehicleInfo is a listing row for the read API.
type VehicleInfo struct {
	Key      string    `json:"key"`
	Name     string    `json:"name"`
	Channels int       `json:"channels"`
	Position bool      `json:"position"`
	LastSeen time.Time `json:"last_seen"`
}

// Vehicles lists tracked vehicles, most recently updated first.
func (s *Store) Vehicles() []VehicleInfo {
	s.mu.Lock()
	entries := make([]*entry, 0, s.lru.Len())
	for el := s.lru.Front(); el != nil; el = el.Next() {
		entries = append(entries, el.Value.(*entry))
	}
	s.mu.Unlock()

	out := make([]VehicleInfo, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		if !e.evicted {
			out = append(out, VehicleInfo{
				Key:      e.key,
				Name:     e.name,
				Channels: len(e.channels),
				Position: e.position != nil,
				LastSeen: e.lastSeen,
			})
		}
		e.mu.Unlock()
	}
	return out
}

// Len returns the number of tracked vehicles.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
