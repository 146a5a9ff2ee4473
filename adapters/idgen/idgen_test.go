package idgen_test

import (
	"sync"
	"testing"

	"github.com/revlens/revlens/adapters/idgen"
)

func TestUUID_Unique(t *testing.T) {
	g := idgen.UUID{}
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := g.New()
		if len(id) != 36 {
			t.Fatalf("New() = %q, want 36-char UUID", id)
		}
		if seen[id] {
			t.Fatalf("duplicate UUID %q", id)
		}
		seen[id] = true
	}
}

func TestSequential(t *testing.T) {
	g := idgen.NewSequential("evt-")

	if got := g.New(); got != "evt-1" {
		t.Errorf("New() = %q, want evt-1", got)
	}
	if got := g.New(); got != "evt-2" {
		t.Errorf("New() = %q, want evt-2", got)
	}

	g.Reset()
	if got := g.New(); got != "evt-1" {
		t.Errorf("New() after Reset = %q, want evt-1", got)
	}
}

func TestSequential_Concurrent(t *testing.T) {
	g := idgen.NewSequential("id-")

	var wg sync.WaitGroup
	var mu sync.Mutex
	seen := make(map[string]bool)

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := g.New()
			mu.Lock()
			defer mu.Unlock()
			if seen[id] {
				t.Errorf("duplicate ID %q", id)
			}
			seen[id] = true
		}()
	}
	wg.Wait()

	if len(seen) != 50 {
		t.Errorf("generated %d unique IDs, want 50", len(seen))
	}
}
