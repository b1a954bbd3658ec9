package catalog

import (
	"slices"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/neexbeast/tourshop/internal/tour"
)

// SortField names a sortable tour attribute.
type SortField string

const (
	SortByName     SortField = "name"
	SortByPrice    SortField = "price"
	SortByOperator SortField = "operator"
	SortByDate     SortField = "date"
	SortByLocation SortField = "location"
)

// Direction is the sort order.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// PriceRange bounds Amount inclusively on both ends.
type PriceRange struct {
	Min int64 `json:"min"`
	Max int64 `json:"max"`
}

// Filter constrains a query. Empty fields impose no constraint.
type Filter struct {
	SearchTerm string      `json:"searchTerm,omitempty"`
	Type       string      `json:"type,omitempty"`
	Operator   string      `json:"operator,omitempty"`
	LocationID string      `json:"locationId,omitempty"`
	PriceRange *PriceRange `json:"priceRange,omitempty"`
}

// SortOptions selects the sort key and direction.
type SortOptions struct {
	Field     SortField `json:"field"`
	Direction Direction `json:"direction"`
}

// Page selects a zero-based slice of the filtered result.
type Page struct {
	Index int `json:"index"`
	Size  int `json:"size"`
}

// Result is one page of a query plus the filtered total.
type Result struct {
	Items    []tour.Tour `json:"items"`
	Total    int         `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"pageSize"`
	HasMore  bool        `json:"hasMore"`
}

// Engine runs filter/sort/paginate pipelines over tour snapshots.
// It holds no mutable state and is safe for concurrent use.
type Engine struct {
	lang language.Tag
}

// NewEngine returns an Engine collating strings for the given BCP 47 locale.
// An unparsable locale falls back to English.
func NewEngine(locale string) *Engine {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.English
	}
	return &Engine{lang: tag}
}

// Query applies search, type, operator, location and price filters in that
// order, then sorts and paginates. Records are normalized on the way in, so
// raw tours price correctly. tours is never modified.
func (e *Engine) Query(tours []tour.Tour, f Filter, s *SortOptions, p *Page) Result {
	out := make([]tour.Tour, 0, len(tours))
	for _, t := range tours {
		if t = tour.Normalize(t); matches(t, f) {
			out = append(out, t)
		}
	}

	if s != nil {
		e.sort(out, *s)
	}

	return paginate(out, p)
}

func matches(t tour.Tour, f Filter) bool {
	if term := strings.ToLower(f.SearchTerm); term != "" {
		if !strings.Contains(strings.ToLower(t.Name), term) &&
			!strings.Contains(strings.ToLower(t.Description), term) &&
			!strings.Contains(strings.ToLower(t.Operator), term) {
			return false
		}
	}
	if f.Type != "" && t.Type != f.Type {
		return false
	}
	if f.Operator != "" && t.Operator != f.Operator {
		return false
	}
	if f.LocationID != "" && t.LocationID != f.LocationID {
		return false
	}
	if r := f.PriceRange; r != nil && (t.Amount < r.Min || t.Amount > r.Max) {
		return false
	}
	return true
}

func (e *Engine) sort(tours []tour.Tour, s SortOptions) {
	sign := 1
	if s.Direction == Desc {
		sign = -1
	}

	// Collators keep internal buffers, so each call gets its own.
	col := collate.New(e.lang, collate.IgnoreCase)
	byString := func(key func(tour.Tour) string) func(a, b tour.Tour) int {
		return func(a, b tour.Tour) int {
			return sign * col.CompareString(key(a), key(b))
		}
	}

	var cmp func(a, b tour.Tour) int
	switch s.Field {
	case SortByName:
		cmp = byString(func(t tour.Tour) string { return t.Name })
	case SortByOperator:
		cmp = byString(func(t tour.Tour) string { return t.Operator })
	case SortByLocation:
		cmp = byString(func(t tour.Tour) string { return t.LocationID })
	case SortByPrice:
		cmp = func(a, b tour.Tour) int {
			switch {
			case a.Amount < b.Amount:
				return -sign
			case a.Amount > b.Amount:
				return sign
			}
			return 0
		}
	case SortByDate:
		cmp = func(a, b tour.Tour) int {
			az, bz := a.StartsAt.IsZero(), b.StartsAt.IsZero()
			switch {
			case az && bz:
				return 0
			case az:
				return 1
			case bz:
				return -1
			}
			return sign * a.StartsAt.Compare(b.StartsAt)
		}
	default:
		return
	}

	slices.SortStableFunc(tours, cmp)
}

func paginate(tours []tour.Tour, p *Page) Result {
	total := len(tours)
	if p == nil || p.Size <= 0 {
		return Result{Items: tours, Total: total, PageSize: total}
	}

	index := max(p.Index, 0)
	start := total
	if index <= total/p.Size {
		start = index * p.Size
	}
	end := min(start+p.Size, total)

	return Result{
		Items:    tours[start:end],
		Total:    total,
		Page:     index,
		PageSize: p.Size,
		HasMore:  end < total,
	}
}
