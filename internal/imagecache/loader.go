package imagecache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/disintegration/imaging"
)

// Loader fetches and decodes one image. A nil error means the image is usable.
type Loader interface {
	Load(ctx context.Context, url string) error
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, url string) error

func (f LoaderFunc) Load(ctx context.Context, url string) error { return f(ctx, url) }

const httpTimeout = 10 * time.Second

// ErrHostNotAllowed is returned for absolute URLs outside the asset hosts.
var ErrHostNotAllowed = errors.New("image host not allowed")

// HTTPLoader downloads images over HTTP and checks that they decode.
// Site-rooted paths ("/assets/...") are resolved against BaseURL. Absolute
// URLs are only fetched from the base URL's host and the extra hosts.
type HTTPLoader struct {
	baseURL string
	hosts   map[string]struct{}
	client  *http.Client
}

// NewHTTPLoader constructs an HTTPLoader with a 10-second client timeout.
// extraHosts are host[:port] values allowed besides the base URL's host.
func NewHTTPLoader(baseURL string, extraHosts ...string) *HTTPLoader {
	l := &HTTPLoader{
		baseURL: strings.TrimRight(baseURL, "/"),
		hosts:   make(map[string]struct{}, len(extraHosts)+1),
		client:  &http.Client{Timeout: httpTimeout},
	}
	if u, err := url.Parse(l.baseURL); err == nil && u.Host != "" {
		l.hosts[strings.ToLower(u.Host)] = struct{}{}
	}
	for _, h := range extraHosts {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			l.hosts[h] = struct{}{}
		}
	}
	return l
}

// Load GETs raw and decodes the body. SVG is accepted on content type alone.
func (l *HTTPLoader) Load(ctx context.Context, raw string) error {
	target := raw
	if strings.HasPrefix(raw, "/") {
		if l.baseURL == "" {
			return fmt.Errorf("loading %s: no asset base URL configured", raw)
		}
		target = l.baseURL + raw
	} else if err := l.checkHost(raw); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("creating request for %s: %w", target, err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s returned status %d", target, resp.StatusCode)
	}

	if isSVG(resp.Header.Get("Content-Type"), target) {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if _, err := imaging.Decode(resp.Body); err != nil {
		return fmt.Errorf("decoding image from %s: %w", target, err)
	}
	return nil
}

func (l *HTTPLoader) checkHost(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("parsing image url %s: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("loading %s: unsupported scheme %q", raw, u.Scheme)
	}
	if _, ok := l.hosts[strings.ToLower(u.Host)]; !ok {
		return fmt.Errorf("loading %s: %w", raw, ErrHostNotAllowed)
	}
	return nil
}

func isSVG(contentType, target string) bool {
	if mt, _, err := mime.ParseMediaType(contentType); err == nil && mt == "image/svg+xml" {
		return true
	}
	return strings.HasSuffix(strings.ToLower(target), ".svg")
}
