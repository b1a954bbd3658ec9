package imagecache

import (
	"context"
	"io"
	"log/slog"
	"net/url"
	"path"
	"regexp"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultTTL is how long a load outcome, success or failure, is trusted.
	DefaultTTL = 30 * time.Minute

	DefaultAssetRoot   = "/assets/images"
	defaultConcurrency = 4
)

var imageExt = regexp.MustCompile(`(?i)\.(jpe?g|png|gif|webp|svg)$`)

// Entry is the recorded outcome of the last load of a URL.
type Entry struct {
	Loaded    bool      `json:"loaded"`
	Error     bool      `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// Stats counts entries by state. Expired entries are not counted as loaded
// or failed.
type Stats struct {
	Total   int `json:"total"`
	Loaded  int `json:"loaded"`
	Errors  int `json:"errors"`
	Expired int `json:"expired"`
}

// PreloadResult is one outcome of PreloadAll.
type PreloadResult struct {
	URL     string `json:"url"`
	Success bool   `json:"success"`
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTL overrides DefaultTTL.
func WithTTL(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.ttl = d
		}
	}
}

// WithSweepInterval sets how often Run sweeps. It defaults to the TTL.
func WithSweepInterval(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.sweepEvery = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithAssetRoot sets the prefix that bare filenames are rewritten under.
func WithAssetRoot(root string) Option {
	return func(c *Cache) {
		if root = strings.TrimRight(root, "/"); root != "" {
			c.assetRoot = root
		}
	}
}

// WithConcurrency caps the number of loads PreloadAll runs at once.
func WithConcurrency(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// WithLogger sets the logger for load failures and sweeps.
func WithLogger(log *slog.Logger) Option {
	return func(c *Cache) { c.log = log }
}

// Cache tracks image load state per resolved URL.
type Cache struct {
	loader Loader
	flight singleflight.Group

	mu      sync.Mutex
	entries map[string]Entry

	ttl         time.Duration
	sweepEvery  time.Duration
	now         func() time.Time
	assetRoot   string
	concurrency int
	log         *slog.Logger
}

// New constructs a Cache that loads through loader.
func New(loader Loader, opts ...Option) *Cache {
	c := &Cache{
		loader:      loader,
		entries:     make(map[string]Entry),
		ttl:         DefaultTTL,
		now:         time.Now,
		assetRoot:   DefaultAssetRoot,
		concurrency: defaultConcurrency,
		log:         slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.sweepEvery == 0 {
		c.sweepEvery = c.ttl
	}
	return c
}

// TTL reports the configured entry lifetime.
func (c *Cache) TTL() time.Duration { return c.ttl }

// Resolve canonicalizes a raw image reference. Absolute http(s) and data URLs
// pass through, as do site-rooted image paths. Bare filenames and relative
// image paths are rewritten under the asset root. Anything else becomes the
// landscape placeholder.
func (c *Cache) Resolve(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Placeholder(Landscape)
	}
	if isDataURL(raw) {
		return raw
	}

	p := raw
	if u, err := url.Parse(raw); err == nil {
		if u.Scheme == "http" || u.Scheme == "https" {
			if u.Host != "" {
				return raw
			}
			return Placeholder(Landscape)
		}
		if u.Scheme != "" {
			return Placeholder(Landscape)
		}
		p = u.Path
	}

	if !imageExt.MatchString(p) {
		return Placeholder(Landscape)
	}
	if strings.HasPrefix(raw, "/") {
		return raw
	}

	rel := path.Clean(raw)
	for strings.HasPrefix(rel, "../") {
		rel = strings.TrimPrefix(rel, "../")
	}
	return c.assetRoot + "/" + rel
}

// Preload loads raw's resolved URL unless a fresh outcome is already cached,
// and reports whether the image is usable. Failures are cached too, so a
// broken URL is retried only after the TTL. Concurrent callers for the same
// URL share one load. A caller whose ctx ends first gets false; the shared
// load still completes and is recorded.
func (c *Cache) Preload(ctx context.Context, raw string) bool {
	u := c.Resolve(raw)
	if isDataURL(u) {
		return true
	}
	if e, ok := c.fresh(u); ok {
		return e.Loaded && !e.Error
	}

	ch := c.flight.DoChan(u, func() (any, error) {
		if e, ok := c.fresh(u); ok {
			return e.Loaded && !e.Error, nil
		}
		err := c.loader.Load(context.WithoutCancel(ctx), u)
		c.record(u, err == nil)
		if err != nil {
			c.log.Warn("image load failed", "url", u, "err", err)
		}
		return err == nil, nil
	})

	select {
	case res := <-ch:
		ok, _ := res.Val.(bool)
		return ok
	case <-ctx.Done():
		return false
	}
}

// PreloadAll preloads urls concurrently and returns outcomes in input order.
func (c *Cache) PreloadAll(ctx context.Context, urls []string) []PreloadResult {
	results := make([]PreloadResult, len(urls))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, raw := range urls {
		g.Go(func() error {
			results[i] = PreloadResult{URL: raw, Success: c.Preload(gCtx, raw)}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// Lookup returns the fresh entry for raw, if any.
func (c *Cache) Lookup(raw string) (Entry, bool) {
	return c.fresh(c.Resolve(raw))
}

// IsLoaded reports whether raw has a fresh successful load.
func (c *Cache) IsLoaded(raw string) bool {
	e, ok := c.Lookup(raw)
	return ok && e.Loaded && !e.Error
}

// HasError reports whether raw has a fresh failed load.
func (c *Cache) HasError(raw string) bool {
	e, ok := c.Lookup(raw)
	return ok && e.Error
}

// FallbackFor resolves raw and returns the matching placeholder.
func (c *Cache) FallbackFor(raw string) string {
	return FallbackFor(c.Resolve(raw))
}

// DisplayURL returns what a card should render for raw: the resolved URL, or
// its fallback when the last fresh load failed.
func (c *Cache) DisplayURL(raw string) string {
	u := c.Resolve(raw)
	if e, ok := c.fresh(u); ok && e.Error {
		return FallbackFor(u)
	}
	return u
}

// Sweep drops expired entries and returns how many were removed.
func (c *Cache) Sweep() int {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for u, e := range c.entries {
		if c.expired(e, now) {
			delete(c.entries, u)
			removed++
		}
	}
	return removed
}

// Run sweeps on every interval tick until ctx is done.
func (c *Cache) Run(ctx context.Context) {
	ticker := time.NewTicker(c.sweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := c.Sweep(); n > 0 {
				c.log.Debug("image cache swept", "count", n)
			}
		}
	}
}

// Stats counts entries by state.
func (c *Cache) Stats() Stats {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	var st Stats
	for _, e := range c.entries {
		st.Total++
		switch {
		case c.expired(e, now):
			st.Expired++
		case e.Error:
			st.Errors++
		case e.Loaded:
			st.Loaded++
		}
	}
	return st
}

// Clear forgets every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]Entry)
	c.mu.Unlock()
}

func (c *Cache) fresh(u string) (Entry, bool) {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[u]
	if !ok || c.expired(e, now) {
		return Entry{}, false
	}
	return e, true
}

func (c *Cache) record(u string, loaded bool) {
	e := Entry{Loaded: loaded, Error: !loaded, Timestamp: c.now()}

	c.mu.Lock()
	c.entries[u] = e
	c.mu.Unlock()
}

func (c *Cache) expired(e Entry, now time.Time) bool {
	return now.Sub(e.Timestamp) >= c.ttl
}

func isDataURL(u string) bool {
	return len(u) >= 5 && strings.EqualFold(u[:5], "data:")
}
