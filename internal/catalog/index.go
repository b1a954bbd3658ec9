package catalog

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/neexbeast/tourshop/internal/tour"
)

// Fetcher loads the full tour collection from the upstream data source.
type Fetcher interface {
	FetchTours(ctx context.Context) ([]tour.Tour, error)
}

// Stats summarizes a catalog snapshot.
type Stats struct {
	TotalTours   int      `json:"totalTours"`
	AveragePrice int64    `json:"averagePrice"`
	TopOperators []string `json:"topOperators"`
}

const topOperatorsLimit = 5

// Index holds the current catalog snapshot and its facets.
// A refresh replaces the whole collection; records are never patched.
type Index struct {
	mu    sync.RWMutex
	tours []tour.Tour
	byID  map[string]int
}

// NewIndex returns an empty Index.
func NewIndex() *Index {
	return &Index{byID: map[string]int{}}
}

// Replace swaps in a new snapshot. Records are normalized on the way in.
func (ix *Index) Replace(tours []tour.Tour) {
	next := tour.NormalizeAll(tours)
	byID := make(map[string]int, len(next))
	for i, t := range next {
		if _, dup := byID[t.ID]; !dup {
			byID[t.ID] = i
		}
	}

	ix.mu.Lock()
	ix.tours = next
	ix.byID = byID
	ix.mu.Unlock()
}

// Refresh fetches a new snapshot from f. On error the current snapshot is kept
// and the error is returned to the caller.
func (ix *Index) Refresh(ctx context.Context, f Fetcher) (int, error) {
	tours, err := f.FetchTours(ctx)
	if err != nil {
		return 0, fmt.Errorf("refreshing catalog: %w", err)
	}
	ix.Replace(tours)
	return len(tours), nil
}

// Snapshot returns a copy of the current collection in upstream order.
func (ix *Index) Snapshot() []tour.Tour {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make([]tour.Tour, len(ix.tours))
	copy(out, ix.tours)
	return out
}

// Len reports the snapshot size.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.tours)
}

// Get looks up a tour by id.
func (ix *Index) Get(id string) (tour.Tour, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	i, ok := ix.byID[id]
	if !ok {
		return tour.Tour{}, false
	}
	return ix.tours[i], true
}

// Operators returns the distinct non-empty tour operators, sorted.
func (ix *Index) Operators() []string {
	return ix.distinct(func(t tour.Tour) string { return t.Operator })
}

// Locations returns the distinct non-empty location ids, sorted.
func (ix *Index) Locations() []string {
	return ix.distinct(func(t tour.Tour) string { return t.LocationID })
}

// Types returns the distinct non-empty tour types, sorted.
func (ix *Index) Types() []string {
	return ix.distinct(func(t tour.Tour) string { return t.Type })
}

func (ix *Index) distinct(key func(tour.Tour) string) []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	seen := make(map[string]struct{})
	out := []string{}
	for _, t := range ix.tours {
		k := key(t)
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Stats computes the snapshot summary. TopOperators is ordered by tour count,
// ties broken by name.
func (ix *Index) Stats() Stats {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	st := Stats{TotalTours: len(ix.tours), TopOperators: []string{}}
	if len(ix.tours) == 0 {
		return st
	}

	// Amounts saturate at MaxInt64, so the sum is kept in float64.
	var sum float64
	counts := make(map[string]int)
	for _, t := range ix.tours {
		sum += float64(t.Amount)
		if t.Operator != "" {
			counts[t.Operator]++
		}
	}
	if avg := sum / float64(len(ix.tours)); avg >= math.MaxInt64 {
		st.AveragePrice = math.MaxInt64
	} else {
		st.AveragePrice = int64(avg)
	}

	ops := make([]string, 0, len(counts))
	for op := range counts {
		ops = append(ops, op)
	}
	sort.Slice(ops, func(i, j int) bool {
		if counts[ops[i]] != counts[ops[j]] {
			return counts[ops[i]] > counts[ops[j]]
		}
		return ops[i] < ops[j]
	})
	if len(ops) > topOperatorsLimit {
		ops = ops[:topOperatorsLimit]
	}
	st.TopOperators = ops
	return st
}

// Query runs e over the current snapshot.
func (ix *Index) Query(e *Engine, f Filter, s *SortOptions, p *Page) Result {
	return e.Query(ix.Snapshot(), f, s, p)
}
