package cache

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"
)

func makeSnapshot(status int, body string) *Snapshot {
	return &Snapshot{
		StatusCode: status,
		Header:     make(http.Header),
		Body:       []byte(body),
	}
}

func TestNewInMemoryStore(t *testing.T) {
	tests := []struct {
		name       string
		maxEntries int
		wantSize   int
	}{
		{"ValidSize", 10, 10},
		{"ZeroSize", 0, 1024},
		{"NegativeSize", -5, 1024},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewInMemoryStore(tt.maxEntries)
			if s == nil {
				t.Fatal("NewInMemoryStore returned nil")
			}
			if s.maxEntries != tt.wantSize {
				t.Fatalf("maxEntries = %d, want %d", s.maxEntries, tt.wantSize)
			}
		})
	}
}

func TestPutAndMatch(t *testing.T) {
	s := NewInMemoryStore(10)
	ctx := context.Background()

	snap := makeSnapshot(200, "shell")
	snap.Header.Set("Content-Type", "text/html")
	s.Put(ctx, "static-cache-v1.0", "GET /", snap)

	got, ok := s.Match(ctx, "static-cache-v1.0", "GET /")
	if !ok {
		t.Fatal("Match failed for existing entry")
	}
	if got.StatusCode != 200 {
		t.Errorf("StatusCode = %d, want 200", got.StatusCode)
	}
	if string(got.Body) != "shell" {
		t.Errorf("Body = %q, want %q", got.Body, "shell")
	}
	if got.Header.Get("Content-Type") != "text/html" {
		t.Errorf("Content-Type = %q", got.Header.Get("Content-Type"))
	}

	if _, ok := s.Match(ctx, "static-cache-v1.0", "GET /missing"); ok {
		t.Error("Match succeeded for missing key")
	}
	if _, ok := s.Match(ctx, "dynamic-cache-v1.0", "GET /"); ok {
		t.Error("Match crossed generation boundary")
	}
}

func TestPutUpdatesInPlace(t *testing.T) {
	s := NewInMemoryStore(10)
	ctx := context.Background()

	s.Put(ctx, "dynamic-cache-v1.0", "GET /api/orders", makeSnapshot(200, "v1"))
	s.Put(ctx, "dynamic-cache-v1.0", "GET /api/orders", makeSnapshot(200, "v2"))

	g := s.generations["dynamic-cache-v1.0"]
	if len(g.items) != 1 {
		t.Fatalf("entries = %d, want 1 after refresh of same key", len(g.items))
	}
	got, _ := s.Match(ctx, "dynamic-cache-v1.0", "GET /api/orders")
	if string(got.Body) != "v2" {
		t.Errorf("Body = %q, want refreshed copy v2", got.Body)
	}
}

func TestDelete(t *testing.T) {
	s := NewInMemoryStore(10)
	ctx := context.Background()

	s.Put(ctx, "static-cache-v1.0", "GET /", makeSnapshot(200, "shell"))
	s.Delete(ctx, "static-cache-v1.0", "GET /")

	if _, ok := s.Match(ctx, "static-cache-v1.0", "GET /"); ok {
		t.Error("Delete failed, entry still present")
	}

	s.Delete(ctx, "static-cache-v1.0", "does-not-exist")
	s.Delete(ctx, "no-such-generation", "GET /")
}

func TestGenerationsAndDeleteGeneration(t *testing.T) {
	s := NewInMemoryStore(10)
	ctx := context.Background()

	s.Put(ctx, "static-cache-v1.0", "GET /", makeSnapshot(200, "a"))
	s.Put(ctx, "dynamic-cache-v1.0", "GET /api/x", makeSnapshot(200, "b"))
	s.Put(ctx, "static-cache-v0.9", "GET /", makeSnapshot(200, "old"))

	names := s.Generations(ctx)
	if len(names) != 3 {
		t.Fatalf("Generations = %v, want 3 names", names)
	}

	s.DeleteGeneration(ctx, "static-cache-v0.9")
	if _, ok := s.Match(ctx, "static-cache-v0.9", "GET /"); ok {
		t.Error("entry survived DeleteGeneration")
	}
	if _, ok := s.Match(ctx, "static-cache-v1.0", "GET /"); !ok {
		t.Error("live generation lost by DeleteGeneration")
	}
	if got := len(s.Generations(ctx)); got != 2 {
		t.Errorf("Generations after purge = %d, want 2", got)
	}
}

func TestLRUEvictionWithinGeneration(t *testing.T) {
	s := NewInMemoryStore(3)
	ctx := context.Background()

	s.Put(ctx, "dynamic-cache-v1.0", "k1", makeSnapshot(200, "1"))
	s.Put(ctx, "dynamic-cache-v1.0", "k2", makeSnapshot(200, "2"))
	s.Put(ctx, "dynamic-cache-v1.0", "k3", makeSnapshot(200, "3"))

	// Touch k1 so k2 is the oldest.
	if _, ok := s.Match(ctx, "dynamic-cache-v1.0", "k1"); !ok {
		t.Fatal("k1 missing before eviction")
	}
	s.Put(ctx, "dynamic-cache-v1.0", "k4", makeSnapshot(200, "4"))

	if _, ok := s.Match(ctx, "dynamic-cache-v1.0", "k2"); ok {
		t.Error("k2 was not evicted")
	}
	for _, key := range []string{"k1", "k3", "k4"} {
		if _, ok := s.Match(ctx, "dynamic-cache-v1.0", key); !ok {
			t.Errorf("%s was evicted incorrectly", key)
		}
	}

	// Another generation is not affected by eviction pressure.
	s.Put(ctx, "static-cache-v1.0", "s1", makeSnapshot(200, "s"))
	if _, ok := s.Match(ctx, "static-cache-v1.0", "s1"); !ok {
		t.Error("static generation entry missing")
	}
}

func TestConcurrency(t *testing.T) {
	s := NewInMemoryStore(100)
	ctx := context.Background()
	numGoroutines := 50
	numOperations := 500

	gens := []string{"static-cache-v1.0", "dynamic-cache-v1.0"}

	var wg sync.WaitGroup
	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < numOperations; j++ {
				gen := gens[j%2]
				key := fmt.Sprintf("key_%d", (j%10)+1)

				switch j % 5 {
				case 0, 1:
					s.Match(ctx, gen, key)
				case 2, 3:
					s.Put(ctx, gen, key, makeSnapshot(200, "data_"+key))
				case 4:
					s.Delete(ctx, gen, key)
				}
			}
		}(i)
	}
	wg.Wait()

	for _, gen := range gens {
		for i := 1; i <= 10; i++ {
			key := fmt.Sprintf("key_%d", i)
			if snap, ok := s.Match(ctx, gen, key); ok && snap == nil {
				t.Errorf("got ok=true but nil snapshot for %s %s", gen, key)
			}
		}
	}
}
