package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/neexbeast/tourshop/internal/basket"
	"github.com/neexbeast/tourshop/internal/tour"
)

const httpTimeout = 10 * time.Second

// ErrNotFound is returned when the upstream has no record for the request.
var ErrNotFound = errors.New("not found")

// Client talks to the tours backend: GET /tours, GET /tour/{id} and POST /order.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient constructs a Client rooted at baseURL with a 10-second timeout.
func NewClient(baseURL string) *Client {
	return NewClientWithHTTP(baseURL, &http.Client{Timeout: httpTimeout})
}

// NewClientWithHTTP constructs a Client with a caller-supplied http.Client.
func NewClientWithHTTP(baseURL string, hc *http.Client) *Client {
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), client: hc}
}

// doGet performs a GET request and decodes the JSON response into dst.
func (c *Client) doGet(ctx context.Context, rawURL string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("creating request for %s: %w", rawURL, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("GET %s: %w", rawURL, ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s returned status %d", rawURL, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decoding response from %s: %w", rawURL, err)
	}

	return nil
}

// FetchTours retrieves the full catalog. Records are normalized on decode.
func (c *Client) FetchTours(ctx context.Context) ([]tour.Tour, error) {
	var cat tour.Catalog
	if err := c.doGet(ctx, c.baseURL+"/tours", &cat); err != nil {
		return nil, fmt.Errorf("fetching tours: %w", err)
	}
	if cat.Tours == nil {
		cat.Tours = []tour.Tour{}
	}
	return cat.Tours, nil
}

// FetchTourByID retrieves one tour. A 404 is reported as ErrNotFound.
func (c *Client) FetchTourByID(ctx context.Context, id string) (tour.Tour, error) {
	var t tour.Tour
	if err := c.doGet(ctx, c.baseURL+"/tour/"+url.PathEscape(id), &t); err != nil {
		return tour.Tour{}, fmt.Errorf("fetching tour %s: %w", id, err)
	}
	return t, nil
}

// SubmitOrder posts the order to /order. Any 2xx status is success.
func (c *Client) SubmitOrder(ctx context.Context, o basket.Order) error {
	body, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("encoding order %s: %w", o.ID, err)
	}

	endpoint := c.baseURL + "/order"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request for %s: %w", endpoint, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("POST %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("POST %s returned status %d", endpoint, resp.StatusCode)
	}
	return nil
}

// Ping checks that the upstream answers at all. Any HTTP response counts.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.baseURL+"/tours", nil)
	if err != nil {
		return fmt.Errorf("creating ping request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("pinging upstream: %w", err)
	}
	resp.Body.Close()
	return nil
}
