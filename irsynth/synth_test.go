package irsynth

import (
	"math"
	"testing"
)

func TestGenerateBasic(t *testing.T) {
	r := DefaultRoom()
	r.SampleRate = 48000
	r.DecayS = 0.5
	r.Seed = 42
	r.NormalizePeak = 0.8

	l, rr, err := Generate(r)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(l) != int(0.5*48000) || len(rr) != len(l) {
		t.Fatalf("unexpected output lengths: L=%d R=%d", len(l), len(rr))
	}

	peak := 0.0
	energy := 0.0
	for i := range l {
		if math.IsNaN(float64(l[i])) || math.IsInf(float64(l[i]), 0) || math.IsNaN(float64(rr[i])) || math.IsInf(float64(rr[i]), 0) {
			t.Fatalf("non-finite sample at %d", i)
		}
		peak = math.Max(peak, math.Max(math.Abs(float64(l[i])), math.Abs(float64(rr[i]))))
		energy += float64(l[i]*l[i] + rr[i]*rr[i])
	}
	if energy <= 1e-8 {
		t.Fatalf("expected non-zero energy")
	}
	if peak > 0.81 {
		t.Fatalf("unexpected normalization peak: %.6f", peak)
	}
}

func TestGenerateDeterministicForSeed(t *testing.T) {
	r := DefaultRoom()
	r.DecayS = 0.2
	r.Seed = 99

	l1, r1, err := Generate(r)
	if err != nil {
		t.Fatalf("first Generate: %v", err)
	}
	l2, r2, err := Generate(r)
	if err != nil {
		t.Fatalf("second Generate: %v", err)
	}
	for i := range l1 {
		if l1[i] != l2[i] || r1[i] != r2[i] {
			t.Fatalf("non-deterministic output at %d", i)
		}
	}
}

func tailEnergy(x []float32) float64 {
	e := 0.0
	for _, v := range x[len(x)/2:] {
		e += float64(v * v)
	}
	return e
}

func TestLongerDecayKeepsMoreTail(t *testing.T) {
	short := DefaultRoom()
	short.DecayS = 1
	short.LateLevel = 0.06
	long := short
	long.DecayS = 4

	ls, _, err := Generate(short)
	if err != nil {
		t.Fatalf("Generate short: %v", err)
	}
	ll, _, err := Generate(long)
	if err != nil {
		t.Fatalf("Generate long: %v", err)
	}
	// Compare the same absolute window, 0.4 s to 0.5 s.
	window := func(x []float32) float64 {
		e := 0.0
		for _, v := range x[int(0.4*44100):int(0.5*44100)] {
			e += float64(v * v)
		}
		return e
	}
	if window(ll) <= window(ls) {
		t.Fatalf("expected longer decay to carry more energy at 0.4 s: short=%g long=%g", window(ls), window(ll))
	}
	if tailEnergy(ll) <= 0 {
		t.Fatalf("expected tail energy")
	}
}

func TestValidateRejectsBadDamping(t *testing.T) {
	r := DefaultRoom()
	r.Damping = 1.5
	if err := r.Validate(); err == nil {
		t.Fatal("expected error for damping > 1")
	}
	r.Damping = 0
	r.DecayS = 0
	if err := r.Validate(); err == nil {
		t.Fatal("expected error for zero decay")
	}
}

func TestCachedReturnsSameSlices(t *testing.T) {
	r := DefaultRoom()
	r.DecayS = 0.1
	r.Seed = 7
	l1, _, err := Cached(r)
	if err != nil {
		t.Fatalf("Cached: %v", err)
	}
	l2, _, err := Cached(r)
	if err != nil {
		t.Fatalf("Cached: %v", err)
	}
	if &l1[0] != &l2[0] {
		t.Fatal("expected cached slices to be reused")
	}
}

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewCache(2)
	rooms := make([]Room, 3)
	for i := range rooms {
		rooms[i] = DefaultRoom()
		rooms[i].DecayS = 0.05
		rooms[i].Seed = int64(i + 1)
	}
	a, _, err := c.Get(rooms[0])
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if _, _, err := c.Get(rooms[1]); err != nil {
		t.Fatalf("Get: %v", err)
	}
	// Touch the first room so the second becomes the oldest.
	if again, _, _ := c.Get(rooms[0]); &again[0] != &a[0] {
		t.Fatal("expected a hit for the first room")
	}
	if _, _, err := c.Get(rooms[2]); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if c.Len() != 2 {
		t.Fatalf("cache holds %d rooms, want 2", c.Len())
	}
	if again, _, _ := c.Get(rooms[0]); &again[0] != &a[0] {
		t.Fatal("recently used room was evicted")
	}
	if _, ok := c.items[rooms[1]]; ok {
		t.Fatal("least recently used room was kept")
	}
}

func TestCacheDoesNotStoreFailures(t *testing.T) {
	c := NewCache(4)
	bad := DefaultRoom()
	bad.DecayS = 0
	if _, _, err := c.Get(bad); err == nil {
		t.Fatal("expected error for zero decay")
	}
	if c.Len() != 0 {
		t.Fatal("failed room was cached")
	}
}
