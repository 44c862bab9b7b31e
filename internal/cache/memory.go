package cache

import (
	"context"
	"sync"
)

type entry struct {
	key  string
	snap *Snapshot
	prev *entry
	next *entry
}

type generation struct {
	items map[string]*entry
	head  *entry
	tail  *entry
}

// InMemoryStore keeps snapshots per generation with LRU eviction inside
// each generation.
type InMemoryStore struct {
	mu          sync.Mutex
	generations map[string]*generation
	maxEntries  int
}

func NewInMemoryStore(maxEntries int) *InMemoryStore {
	if maxEntries <= 0 {
		maxEntries = 1024
	}
	return &InMemoryStore{
		generations: make(map[string]*generation),
		maxEntries:  maxEntries,
	}
}

func (s *InMemoryStore) Match(ctx context.Context, gen, key string) (*Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.generations[gen]
	if !ok {
		return nil, false
	}
	e, ok := g.items[key]
	if !ok {
		return nil, false
	}
	g.moveToFront(e)
	return e.snap, true
}

func (s *InMemoryStore) Put(ctx context.Context, gen, key string, snap *Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.generations[gen]
	if !ok {
		g = &generation{items: make(map[string]*entry)}
		s.generations[gen] = g
	}

	if e, ok := g.items[key]; ok {
		e.snap = snap
		g.moveToFront(e)
		return
	}

	e := &entry{key: key, snap: snap}
	g.items[key] = e
	g.addToFront(e)

	if len(g.items) > s.maxEntries {
		g.evictOldest()
	}
}

func (s *InMemoryStore) Delete(ctx context.Context, gen, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.generations[gen]
	if !ok {
		return
	}
	e, ok := g.items[key]
	if !ok {
		return
	}
	g.remove(e)
	delete(g.items, key)
}

func (s *InMemoryStore) Generations(ctx context.Context) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.generations))
	for name := range s.generations {
		names = append(names, name)
	}
	return names
}

func (s *InMemoryStore) DeleteGeneration(ctx context.Context, gen string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.generations, gen)
}

func (g *generation) addToFront(e *entry) {
	e.prev = nil
	e.next = g.head
	if g.head != nil {
		g.head.prev = e
	}
	g.head = e
	if g.tail == nil {
		g.tail = e
	}
}

func (g *generation) moveToFront(e *entry) {
	if g.head == e {
		return
	}
	g.remove(e)
	g.addToFront(e)
}

func (g *generation) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		g.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		g.tail = e.prev
	}
	e.prev = nil
	e.next = nil
}

func (g *generation) evictOldest() {
	if g.tail == nil {
		return
	}
	oldest := g.tail
	g.remove(oldest)
	delete(g.items, oldest.key)
}

var _ Store = (*InMemoryStore)(nil)
