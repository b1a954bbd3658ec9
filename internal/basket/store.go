package basket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/neexbeast/tourshop/internal/tour"
)

// DefaultKey is the storage key the basket is persisted under.
const DefaultKey = "basket"

// Storage is the durable key-value capability the basket persists through.
// storage.KV satisfies it.
type Storage interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// Item is one distinct tour in the basket with its multiplicity.
type Item struct {
	Tour     tour.Tour `json:"tour"`
	Quantity int       `json:"quantity"`
}

// Listener receives a copy of the basket contents after every change.
type Listener func([]tour.Tour)

// Store is the shopping basket: an ordered multiset of tours where
// duplicates encode quantity. The in-memory list is authoritative; storage
// is a write-through mirror.
type Store struct {
	mu      sync.Mutex
	tours   []tour.Tour
	storage Storage
	key     string
	log     *slog.Logger

	// notifyMu is taken before mu is released so listeners see changes in
	// the order they were applied.
	notifyMu sync.Mutex
	subMu    sync.Mutex
	subs     map[int]Listener
	nextID   int
}

// New restores the basket stored under key. A missing, unreadable or
// corrupt value yields an empty basket.
func New(ctx context.Context, storage Storage, key string, log *slog.Logger) *Store {
	if key == "" {
		key = DefaultKey
	}
	s := &Store{
		storage: storage,
		key:     key,
		log:     log,
		subs:    make(map[int]Listener),
	}
	s.tours = s.restore(ctx)
	return s
}

func (s *Store) restore(ctx context.Context) []tour.Tour {
	raw, ok, err := s.storage.Get(ctx, s.key)
	if err != nil {
		s.log.Warn("basket restore failed, starting empty", "key", s.key, "err", err)
		return nil
	}
	if !ok || raw == "" {
		return nil
	}

	var tours []tour.Tour
	if err := json.Unmarshal([]byte(raw), &tours); err != nil {
		s.log.Warn("stored basket is corrupt, starting empty", "key", s.key, "err", err)
		return nil
	}
	return tours
}

// Add appends t. Adding the same tour twice means a quantity of two.
func (s *Store) Add(ctx context.Context, t tour.Tour) {
	t = tour.Normalize(t)
	s.mutate(ctx, func(list []tour.Tour) []tour.Tour {
		return append(list, t)
	})
}

// RemoveOne removes the first occurrence of id. Unknown ids are a no-op.
func (s *Store) RemoveOne(ctx context.Context, id string) {
	s.mutate(ctx, func(list []tour.Tour) []tour.Tour {
		for i, t := range list {
			if t.ID == id {
				return append(list[:i:i], list[i+1:]...)
			}
		}
		return list
	})
}

// RemoveAll removes every occurrence of id.
func (s *Store) RemoveAll(ctx context.Context, id string) {
	s.mutate(ctx, func(list []tour.Tour) []tour.Tour {
		out := make([]tour.Tour, 0, len(list))
		for _, t := range list {
			if t.ID != id {
				out = append(out, t)
			}
		}
		return out
	})
}

// Clear empties the basket.
func (s *Store) Clear(ctx context.Context) {
	s.mutate(ctx, func([]tour.Tour) []tour.Tour { return nil })
}

// mutate applies fn under the lock, persists the result and then notifies
// listeners outside the lock, in mutation order.
func (s *Store) mutate(ctx context.Context, fn func([]tour.Tour) []tour.Tour) {
	s.mu.Lock()
	s.tours = fn(s.tours)
	snap := s.snapshotLocked()
	s.persist(ctx, snap)
	s.notifyMu.Lock()
	s.mu.Unlock()

	defer s.notifyMu.Unlock()
	s.notify(snap)
}

func (s *Store) persist(ctx context.Context, snap []tour.Tour) {
	b, err := json.Marshal(snap)
	if err != nil {
		s.log.Warn("encoding basket failed", "key", s.key, "err", err)
		return
	}
	if err := s.storage.Set(ctx, s.key, string(b)); err != nil {
		s.log.Warn("persisting basket failed", "key", s.key, "err", err)
	}
}

func (s *Store) snapshotLocked() []tour.Tour {
	out := make([]tour.Tour, len(s.tours))
	copy(out, s.tours)
	return out
}

// Snapshot returns a copy of the basket in insertion order.
func (s *Store) Snapshot() []tour.Tour {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Count is the number of entries including duplicates.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tours)
}

// Quantities maps each tour id to its number of occurrences.
func (s *Store) Quantities() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()

	q := make(map[string]int, len(s.tours))
	for _, t := range s.tours {
		q[t.ID]++
	}
	return q
}

// Items groups the basket by tour id, ordered by first occurrence.
func (s *Store) Items() []Item {
	return group(s.Snapshot())
}

// Total is the sum of the parsed prices of all entries.
func (s *Store) Total() int64 {
	return total(s.Snapshot())
}

func group(tours []tour.Tour) []Item {
	items := []Item{}
	pos := make(map[string]int, len(tours))
	for _, t := range tours {
		if i, ok := pos[t.ID]; ok {
			items[i].Quantity++
			continue
		}
		pos[t.ID] = len(items)
		items = append(items, Item{Tour: t, Quantity: 1})
	}
	return items
}

func total(tours []tour.Tour) int64 {
	var sum int64
	for _, t := range tours {
		sum += t.Amount
	}
	return sum
}

// Subscribe registers fn to be called after every change. Calls are
// serialized and arrive in mutation order; fn must not modify the basket.
// The returned func removes the registration.
func (s *Store) Subscribe(fn Listener) (unsubscribe func()) {
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
		})
	}
}

func (s *Store) notify(snap []tour.Tour) {
	s.subMu.Lock()
	listeners := make([]Listener, 0, len(s.subs))
	for _, fn := range s.subs {
		listeners = append(listeners, fn)
	}
	s.subMu.Unlock()

	for _, fn := range listeners {
		out := make([]tour.Tour, len(snap))
		copy(out, snap)
		fn(out)
	}
}
