package api

import (
	"context"

	"github.com/neexbeast/tourshop/internal/basket"
	"github.com/neexbeast/tourshop/internal/catalog"
	"github.com/neexbeast/tourshop/internal/imagecache"
	"github.com/neexbeast/tourshop/internal/tour"
)

// TourFetcher defines the upstream catalog reads needed by handlers.
type TourFetcher interface {
	catalog.Fetcher
	FetchTourByID(ctx context.Context, id string) (tour.Tour, error)
}

// TourIndex defines the catalog snapshot operations needed by handlers.
// *catalog.Index satisfies this interface.
type TourIndex interface {
	Refresh(ctx context.Context, f catalog.Fetcher) (int, error)
	Len() int
	Snapshot() []tour.Tour
	Get(id string) (tour.Tour, bool)
	Query(e *catalog.Engine, f catalog.Filter, s *catalog.SortOptions, p *catalog.Page) catalog.Result
	Operators() []string
	Locations() []string
	Types() []string
	Stats() catalog.Stats
}

// ImageCache defines the image resolution operations needed by handlers.
// *imagecache.Cache satisfies this interface.
type ImageCache interface {
	Resolve(raw string) string
	DisplayURL(raw string) string
	FallbackFor(raw string) string
	Lookup(raw string) (imagecache.Entry, bool)
	PreloadAll(ctx context.Context, urls []string) []imagecache.PreloadResult
	Stats() imagecache.Stats
}

// Basket defines the basket operations needed by handlers.
// *basket.Store satisfies this interface.
type Basket interface {
	Add(ctx context.Context, t tour.Tour)
	RemoveOne(ctx context.Context, id string)
	RemoveAll(ctx context.Context, id string)
	Clear(ctx context.Context)
	Items() []basket.Item
	Quantities() map[string]int
	Count() int
	Total() int64
	Checkout(ctx context.Context, submitter basket.OrderSubmitter, c basket.Customer) (basket.Order, error)
}

type pinger interface {
	Ping(ctx context.Context) error
}
