package engine

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

// fakeClock drives a store's notion of now.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestStore(cfg StoreConfig) (*Store, *fakeClock) {
	s := NewStore(cfg)
	clock := newFakeClock()
	s.now = clock.Now
	return s, clock
}

func rpmUpdate(v float64) ChannelUpdate {
	return ChannelUpdate{Key: "engine_rpm", Code: "0c", Value: v, Unit: "rpm", Label: "Engine RPM"}
}

func TestApplyCreatesVehicleAndChannels(t *testing.T) {
	s, _ := newTestStore(StoreConfig{})

	delta := s.Apply(Identity{Key: "car1", Name: "Car1"}, []ChannelUpdate{rpmUpdate(3000)}, nil)

	if !delta.VehicleCreated {
		t.Error("first upload must create the vehicle")
	}
	if len(delta.CreatedChannels) != 1 || delta.CreatedChannels[0] != "engine_rpm" {
		t.Errorf("got created channels %v, want [engine_rpm]", delta.CreatedChannels)
	}
	if delta.UploadID == "" {
		t.Error("delta must carry an upload id")
	}
	if s.Len() != 1 {
		t.Errorf("got %d vehicles, want 1", s.Len())
	}
}

func TestApplyLastWriteWins(t *testing.T) {
	s, _ := newTestStore(StoreConfig{})
	id := Identity{Key: "car1", Name: "Car1"}

	for i := 0; i < 5; i++ {
		s.Apply(id, []ChannelUpdate{rpmUpdate(float64(3000 + i*100))}, nil)
	}

	snap, ok := s.Snapshot("car1")
	if !ok {
		t.Fatal("vehicle missing")
	}
	got, ok := snap.Channels["engine_rpm"].Value.(float64)
	if !ok || got != 3400 {
		t.Errorf("got %v, want 3400", snap.Channels["engine_rpm"].Value)
	}
	if s.Len() != 1 {
		t.Errorf("got %d vehicles, want 1", s.Len())
	}
}

func TestApplySecondUploadNotCreated(t *testing.T) {
	s, _ := newTestStore(StoreConfig{})
	id := Identity{Key: "car1"}

	s.Apply(id, []ChannelUpdate{rpmUpdate(3000)}, nil)
	delta := s.Apply(id, []ChannelUpdate{rpmUpdate(3200)}, nil)

	if delta.VehicleCreated {
		t.Error("second upload must not report the vehicle as created")
	}
	if len(delta.CreatedChannels) != 0 {
		t.Errorf("got created channels %v, want none", delta.CreatedChannels)
	}
}

func TestApplyPositionCreation(t *testing.T) {
	s, _ := newTestStore(StoreConfig{})
	id := Identity{Key: "car1"}
	pos := &PositionUpdate{Latitude: 48.85, Longitude: 2.35}

	first := s.Apply(id, nil, pos)
	if !first.PositionCreated {
		t.Error("first position must be reported as created")
	}

	second := s.Apply(id, nil, &PositionUpdate{Latitude: 48.86, Longitude: 2.36})
	if second.PositionCreated {
		t.Error("second position must not be reported as created")
	}

	snap, _ := s.Snapshot("car1")
	if snap.Position == nil || snap.Position.Latitude != 48.86 {
		t.Errorf("got position %+v, want latest coordinates", snap.Position)
	}
}

func TestEvictAfterTTL(t *testing.T) {
	s, clock := newTestStore(StoreConfig{TTL: 30 * time.Minute})
	id := Identity{Key: "car1", Name: "Car1"}

	s.Apply(id, []ChannelUpdate{rpmUpdate(3000)}, nil)

	clock.Advance(29 * time.Minute)
	if evicted := s.Evict(); len(evicted) != 0 {
		t.Errorf("evicted %v before the TTL elapsed", evicted)
	}

	clock.Advance(2 * time.Minute)
	evicted := s.Evict()
	if len(evicted) != 1 || evicted[0] != "car1" {
		t.Errorf("got evicted %v, want [car1]", evicted)
	}
	if _, ok := s.Snapshot("car1"); ok {
		t.Error("evicted vehicle still visible")
	}

	// The next upload recreates the vehicle from empty.
	delta := s.Apply(id, []ChannelUpdate{rpmUpdate(3100)}, nil)
	if !delta.VehicleCreated {
		t.Error("upload after eviction must recreate the vehicle")
	}
	if len(delta.CreatedChannels) != 1 {
		t.Errorf("got created channels %v, want the channel recreated", delta.CreatedChannels)
	}
}

func TestApplyRefreshesTTL(t *testing.T) {
	s, clock := newTestStore(StoreConfig{TTL: 30 * time.Minute})
	id := Identity{Key: "car1"}

	s.Apply(id, []ChannelUpdate{rpmUpdate(3000)}, nil)
	clock.Advance(20 * time.Minute)
	s.Apply(id, []ChannelUpdate{rpmUpdate(3100)}, nil)
	clock.Advance(20 * time.Minute)

	// 40 minutes since creation but only 20 since the last upload.
	if evicted := s.Evict(); len(evicted) != 0 {
		t.Errorf("evicted %v despite a recent upload", evicted)
	}
}

func TestEvictEnforcesMaxVehicles(t *testing.T) {
	s, clock := newTestStore(StoreConfig{TTL: time.Hour, MaxVehicles: 2})

	for i := 0; i < 3; i++ {
		s.Apply(Identity{Key: fmt.Sprintf("car%d", i)}, []ChannelUpdate{rpmUpdate(3000)}, nil)
		clock.Advance(time.Second)
	}

	evicted := s.Evict()
	if len(evicted) != 1 || evicted[0] != "car0" {
		t.Errorf("got evicted %v, want the least recently updated [car0]", evicted)
	}
	if s.Len() != 2 {
		t.Errorf("got %d vehicles, want 2", s.Len())
	}

	// The survivors are the two most recently updated.
	for _, key := range []string{"car1", "car2"} {
		if _, ok := s.Snapshot(key); !ok {
			t.Errorf("vehicle %s should have survived", key)
		}
	}
}

func TestEvictSparesVehicleRefreshedAfterSelection(t *testing.T) {
	s, clock := newTestStore(StoreConfig{TTL: time.Minute})
	id := Identity{Key: "car1"}

	s.Apply(id, []ChannelUpdate{rpmUpdate(3000)}, nil)
	clock.Advance(2 * time.Minute)

	// Eviction selects the idle vehicle, then an upload lands before the
	// removal pass reaches it.
	victims := s.selectVictims(clock.Now().Add(-time.Minute))
	if len(victims) != 1 || victims[0].e.key != "car1" {
		t.Fatalf("got victims %v, want [car1]", victims)
	}
	s.Apply(id, []ChannelUpdate{rpmUpdate(3100)}, nil)

	if s.evictOne(victims[0]) {
		t.Error("a vehicle updated after selection must survive")
	}
	snap, ok := s.Snapshot("car1")
	if !ok {
		t.Fatal("just-updated vehicle vanished")
	}
	if got := snap.Channels["engine_rpm"].Value; got != 3100.0 {
		t.Errorf("got %v, want 3100", got)
	}
	if evicted := s.Evict(); len(evicted) != 0 {
		t.Errorf("full cycle evicted %v, want nothing", evicted)
	}
}

func TestEvictReselectsUnderCountPressure(t *testing.T) {
	s, clock := newTestStore(StoreConfig{TTL: time.Hour, MaxVehicles: 2})

	for i := 0; i < 3; i++ {
		s.Apply(Identity{Key: fmt.Sprintf("car%d", i)}, []ChannelUpdate{rpmUpdate(1)}, nil)
		clock.Advance(time.Second)
	}

	// car0 is selected as the overflow victim, then refreshed to most
	// recent before removal.
	victims := s.selectVictims(clock.Now().Add(-time.Hour))
	if len(victims) != 1 || victims[0].e.key != "car0" {
		t.Fatalf("got victims %v, want [car0]", victims)
	}
	s.Apply(Identity{Key: "car0"}, []ChannelUpdate{rpmUpdate(2)}, nil)

	if s.evictOne(victims[0]) {
		t.Fatal("refreshed overflow victim must survive")
	}

	// A full cycle enforces the bound against the actual least recently
	// updated vehicle instead.
	evicted := s.Evict()
	if len(evicted) != 1 || evicted[0] != "car1" {
		t.Errorf("got evicted %v, want [car1]", evicted)
	}
	if _, ok := s.Snapshot("car0"); !ok {
		t.Error("just-updated vehicle was evicted under count pressure")
	}
	if s.Len() != 2 {
		t.Errorf("got %d vehicles, want 2", s.Len())
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	s, _ := newTestStore(StoreConfig{})
	id := Identity{Key: "car1"}
	s.Apply(id, []ChannelUpdate{rpmUpdate(3000)}, nil)

	snap, _ := s.Snapshot("car1")
	snap.Channels["engine_rpm"] = ChannelState{Value: -1.0}

	again, _ := s.Snapshot("car1")
	if got := again.Channels["engine_rpm"].Value; got != 3000.0 {
		t.Errorf("mutating a snapshot leaked into the store: got %v", got)
	}
}

func TestVehiclesOrderedByRecency(t *testing.T) {
	s, clock := newTestStore(StoreConfig{})

	s.Apply(Identity{Key: "old", Name: "Old"}, []ChannelUpdate{rpmUpdate(1)}, nil)
	clock.Advance(time.Minute)
	s.Apply(Identity{Key: "new", Name: "New"}, []ChannelUpdate{rpmUpdate(2)}, nil)

	vehicles := s.Vehicles()
	if len(vehicles) != 2 {
		t.Fatalf("got %d vehicles, want 2", len(vehicles))
	}
	if vehicles[0].Key != "new" || vehicles[1].Key != "old" {
		t.Errorf("got order [%s %s], want [new old]", vehicles[0].Key, vehicles[1].Key)
	}
}

func TestApplyConcurrentDistinctKeys(t *testing.T) {
	s, _ := newTestStore(StoreConfig{MaxVehicles: 100})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := Identity{Key: fmt.Sprintf("car%d", i)}
			for j := 0; j < 50; j++ {
				s.Apply(id, []ChannelUpdate{rpmUpdate(float64(j))}, nil)
			}
		}(i)
	}
	wg.Wait()

	if s.Len() != 10 {
		t.Errorf("got %d vehicles, want 10", s.Len())
	}
	for i := 0; i < 10; i++ {
		snap, ok := s.Snapshot(fmt.Sprintf("car%d", i))
		if !ok {
			t.Fatalf("vehicle car%d missing", i)
		}
		if got := snap.Channels["engine_rpm"].Value; got != 49.0 {
			t.Errorf("car%d: got %v, want 49", i, got)
		}
	}
}

func TestApplyConcurrentWithEvict(t *testing.T) {
	s, clock := newTestStore(StoreConfig{TTL: time.Minute, MaxVehicles: 4})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := Identity{Key: fmt.Sprintf("car%d", i)}
			for j := 0; j < 25; j++ {
				s.Apply(id, []ChannelUpdate{rpmUpdate(float64(j))}, nil)
			}
		}(i)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for j := 0; j < 25; j++ {
			s.Evict()
			clock.Advance(time.Second)
		}
	}()
	wg.Wait()

	s.Evict()
	if got := s.Len(); got > 4 {
		t.Errorf("got %d vehicles after eviction, want at most 4", got)
	}
}
