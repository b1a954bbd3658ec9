package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/neexbeast/tourshop/internal/basket"
	"github.com/neexbeast/tourshop/internal/catalog"
	"github.com/neexbeast/tourshop/internal/tour"
	"github.com/neexbeast/tourshop/internal/upstream"
)

const (
	currencySymbol  = "€"
	maxPreloadBatch = 200
	maxBodyBytes    = 1 << 20
)

// Handlers holds the dependencies for all HTTP handlers.
type Handlers struct {
	index     TourIndex
	engine    *catalog.Engine
	fetcher   TourFetcher
	images    ImageCache
	basket    Basket
	submitter basket.OrderSubmitter
	pageSize  int
	log       *slog.Logger
}

// Deps groups the collaborators passed to NewHandlers.
type Deps struct {
	Index     TourIndex
	Engine    *catalog.Engine
	Fetcher   TourFetcher
	Images    ImageCache
	Basket    Basket
	Submitter basket.OrderSubmitter
	PageSize  int
}

// NewHandlers constructs Handlers with all required dependencies.
func NewHandlers(d Deps, log *slog.Logger) *Handlers {
	return &Handlers{
		index:     d.Index,
		engine:    d.Engine,
		fetcher:   d.Fetcher,
		images:    d.Images,
		basket:    d.Basket,
		submitter: d.Submitter,
		pageSize:  d.PageSize,
		log:       log,
	}
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(dst)
}

// ---- catalog ----

// RefreshCatalog handles POST /api/v1/catalog/refresh.
// With ?preload=true the catalog images are loaded before responding.
func (h *Handlers) RefreshCatalog(w http.ResponseWriter, r *http.Request) {
	n, err := h.index.Refresh(r.Context(), h.fetcher)
	if err != nil {
		h.log.Error("catalog refresh failed", "err", err)
		writeError(w, http.StatusBadGateway, "failed to fetch tours from upstream")
		return
	}
	h.log.Info("catalog refreshed", "count", n)

	resp := map[string]any{"tours": n}
	if r.URL.Query().Get("preload") == "true" {
		resp["imagesLoaded"] = h.preloadCatalog(r.Context())
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) preloadCatalog(ctx context.Context) int {
	snap := h.index.Snapshot()
	urls := make([]string, 0, len(snap))
	for _, t := range snap {
		if t.Img != "" {
			urls = append(urls, t.Img)
		}
	}

	loaded := 0
	for _, res := range h.images.PreloadAll(ctx, urls) {
		if res.Success {
			loaded++
		}
	}
	return loaded
}

// ListTours handles GET /api/v1/tours.
// Malformed numeric parameters are ignored rather than rejected.
func (h *Handlers) ListTours(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	f := catalog.Filter{
		SearchTerm: q.Get("q"),
		Type:       q.Get("type"),
		Operator:   q.Get("operator"),
		LocationID: q.Get("location"),
	}
	minP, minOK := parseInt64(q.Get("min"))
	maxP, maxOK := parseInt64(q.Get("max"))
	if minOK || maxOK {
		if !maxOK {
			maxP = math.MaxInt64
		}
		f.PriceRange = &catalog.PriceRange{Min: minP, Max: maxP}
	}

	var sortOpts *catalog.SortOptions
	if field := q.Get("sort"); field != "" {
		sortOpts = &catalog.SortOptions{
			Field:     catalog.SortField(field),
			Direction: catalog.Direction(q.Get("dir")),
		}
	}

	page := &catalog.Page{Size: h.pageSize}
	if n, ok := parseInt(q.Get("page")); ok && n >= 0 {
		page.Index = n
	}
	if n, ok := parseInt(q.Get("size")); ok {
		page.Size = n
	}

	res := h.index.Query(h.engine, f, sortOpts, page)
	writeJSON(w, http.StatusOK, newTourPage(res, h.images))
}

// TourFacets handles GET /api/v1/tours/facets.
func (h *Handlers) TourFacets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"operators": h.index.Operators(),
		"locations": h.index.Locations(),
		"types":     h.index.Types(),
		"stats":     h.index.Stats(),
	})
}

// GetTour handles GET /api/v1/tours/{id}.
// The current snapshot is consulted first, then the upstream.
func (h *Handlers) GetTour(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	t, ok := h.index.Get(id)
	if !ok {
		var err error
		t, err = h.fetcher.FetchTourByID(r.Context(), id)
		if errors.Is(err, upstream.ErrNotFound) {
			writeError(w, http.StatusNotFound, "tour not found")
			return
		}
		if err != nil {
			h.log.Error("upstream tour fetch failed", "id", id, "err", err)
			writeError(w, http.StatusBadGateway, "failed to fetch tour from upstream")
			return
		}
	}

	writeJSON(w, http.StatusOK, newTourView(t, h.images))
}

// ---- images ----

// ResolveImage handles GET /api/v1/images/resolve?url=.
func (h *Handlers) ResolveImage(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("url")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "url query parameter is required")
		return
	}

	e, _ := h.images.Lookup(raw)
	writeJSON(w, http.StatusOK, map[string]any{
		"url":      h.images.Resolve(raw),
		"display":  h.images.DisplayURL(raw),
		"fallback": h.images.FallbackFor(raw),
		"loaded":   e.Loaded,
		"error":    e.Error,
	})
}

type preloadRequest struct {
	URLs []string `json:"urls"`
}

// PreloadImages handles POST /api/v1/images/preload.
func (h *Handlers) PreloadImages(w http.ResponseWriter, r *http.Request) {
	var req preloadRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.URLs) > maxPreloadBatch {
		writeError(w, http.StatusBadRequest, "too many urls, limit is "+strconv.Itoa(maxPreloadBatch))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"results": h.images.PreloadAll(r.Context(), req.URLs)})
}

// ImageStats handles GET /api/v1/images/stats.
func (h *Handlers) ImageStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.images.Stats())
}

// ---- basket ----

// GetBasket handles GET /api/v1/basket.
func (h *Handlers) GetBasket(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.basketView())
}

type addItemRequest struct {
	ID string `json:"id"`
}

// AddBasketItem handles POST /api/v1/basket/items.
// Only tours present in the current catalog snapshot can be added.
func (h *Handlers) AddBasketItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := decodeBody(w, r, &req); err != nil || req.ID == "" {
		writeError(w, http.StatusBadRequest, "body must be {\"id\": \"...\"}")
		return
	}

	t, ok := h.index.Get(req.ID)
	if !ok {
		writeError(w, http.StatusNotFound, "tour not found")
		return
	}

	h.basket.Add(r.Context(), t)
	writeJSON(w, http.StatusOK, h.basketView())
}

// RemoveBasketItem handles DELETE /api/v1/basket/items/{id}.
// ?all=true removes every occurrence.
func (h *Handlers) RemoveBasketItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if r.URL.Query().Get("all") == "true" {
		h.basket.RemoveAll(r.Context(), id)
	} else {
		h.basket.RemoveOne(r.Context(), id)
	}
	writeJSON(w, http.StatusOK, h.basketView())
}

// ClearBasket handles DELETE /api/v1/basket.
func (h *Handlers) ClearBasket(w http.ResponseWriter, r *http.Request) {
	h.basket.Clear(r.Context())
	writeJSON(w, http.StatusOK, h.basketView())
}

// Checkout handles POST /api/v1/basket/checkout.
func (h *Handlers) Checkout(w http.ResponseWriter, r *http.Request) {
	var c basket.Customer
	if err := decodeBody(w, r, &c); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	o, err := h.basket.Checkout(r.Context(), h.submitter, c)
	switch {
	case errors.Is(err, basket.ErrInvalidCustomer):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, basket.ErrEmptyBasket):
		writeError(w, http.StatusConflict, err.Error())
	case err != nil:
		h.log.Error("order submission failed", "err", err)
		writeError(w, http.StatusBadGateway, "failed to submit order")
	default:
		writeJSON(w, http.StatusCreated, o)
	}
}

// ---- views ----

type tourView struct {
	tour.Tour
	Amount  int64  `json:"amount"`
	Display string `json:"display"`
}

func newTourView(t tour.Tour, images ImageCache) tourView {
	return tourView{Tour: t, Amount: t.Amount, Display: images.DisplayURL(t.Img)}
}

type tourPage struct {
	Items    []tourView `json:"items"`
	Total    int        `json:"total"`
	Page     int        `json:"page"`
	PageSize int        `json:"pageSize"`
	HasMore  bool       `json:"hasMore"`
}

func newTourPage(res catalog.Result, images ImageCache) tourPage {
	items := make([]tourView, len(res.Items))
	for i, t := range res.Items {
		items[i] = newTourView(t, images)
	}
	return tourPage{Items: items, Total: res.Total, Page: res.Page, PageSize: res.PageSize, HasMore: res.HasMore}
}

type basketView struct {
	Items          []basket.Item  `json:"items"`
	Quantities     map[string]int `json:"quantities"`
	Count          int            `json:"count"`
	Total          int64          `json:"total"`
	TotalFormatted string         `json:"totalFormatted"`
}

func (h *Handlers) basketView() basketView {
	total := h.basket.Total()
	return basketView{
		Items:          h.basket.Items(),
		Quantities:     h.basket.Quantities(),
		Count:          h.basket.Count(),
		Total:          total,
		TotalFormatted: tour.FormatPrice(total, currencySymbol),
	}
}

func parseInt(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	return n, err == nil
}

func parseInt64(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	return n, err == nil
}

// ---- health ----

// HealthHandlerFunc returns an http.HandlerFunc that checks storage and
// upstream connectivity and reports the catalog size. Storage failure is
// fatal (503); an unreachable upstream only degrades, since the snapshot
// keeps serving.
func HealthHandlerFunc(store, remote pinger, index TourIndex, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		status := http.StatusOK
		overall := "ok"
		storageStatus := "ok"
		upstreamStatus := "ok"

		if err := store.Ping(ctx); err != nil {
			log.Error("health check: storage ping failed", "err", err)
			storageStatus = "error"
			overall = "degraded"
			status = http.StatusServiceUnavailable
		}

		if err := remote.Ping(ctx); err != nil {
			log.Warn("health check: upstream ping failed", "err", err)
			upstreamStatus = "error"
			overall = "degraded"
		}

		writeJSON(w, status, map[string]any{
			"status":   overall,
			"storage":  storageStatus,
			"upstream": upstreamStatus,
			"tours":    index.Len(),
		})
	}
}
