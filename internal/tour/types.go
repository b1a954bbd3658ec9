package tour

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Tour is a single catalog record as published by the upstream tours feed.
// Amount and StartsAt are derived once at ingestion and never serialized.
type Tour struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Operator    string `json:"tourOperator"`
	Price       string `json:"price"`
	Type        string `json:"type,omitempty"`
	Date        string `json:"date,omitempty"`
	LocationID  string `json:"locationId,omitempty"`
	Img         string `json:"img,omitempty"`

	Amount   int64     `json:"-"`
	StartsAt time.Time `json:"-"`
}

// Catalog is the envelope returned by GET /tours.
type Catalog struct {
	Tours []Tour `json:"tours"`
}

// flexString accepts a JSON string, number or null. The upstream feed is
// inconsistent about ids and prices.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*f = ""
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("expected string or number, got %s", b)
		}
		*f = flexString(n.String())
	}
	return nil
}

type wireTour struct {
	ID          flexString `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Operator    string     `json:"tourOperator"`
	Price       flexString `json:"price"`
	Type        string     `json:"type"`
	Date        string     `json:"date"`
	LocationID  flexString `json:"locationId"`
	Img         string     `json:"img"`
	ImageURL    string     `json:"imageUrl"`
}

// UnmarshalJSON decodes a loosely-typed upstream record and normalizes it.
func (t *Tour) UnmarshalJSON(b []byte) error {
	var w wireTour
	if err := json.Unmarshal(b, &w); err != nil {
		return fmt.Errorf("decoding tour: %w", err)
	}

	img := w.Img
	if img == "" {
		img = w.ImageURL
	}

	*t = Normalize(Tour{
		ID:          string(w.ID),
		Name:        w.Name,
		Description: w.Description,
		Operator:    w.Operator,
		Price:       string(w.Price),
		Type:        w.Type,
		Date:        w.Date,
		LocationID:  string(w.LocationID),
		Img:         img,
	})
	return nil
}

// Normalize trims identity fields and fills in the derived Amount and StartsAt.
// It is idempotent.
func Normalize(t Tour) Tour {
	t.ID = strings.TrimSpace(t.ID)
	t.Type = strings.TrimSpace(t.Type)
	t.LocationID = strings.TrimSpace(t.LocationID)
	t.Amount = ParsePrice(t.Price)
	t.StartsAt = ParseDate(t.Date)
	return t
}

// NormalizeAll normalizes every record into a new slice.
func NormalizeAll(tours []Tour) []Tour {
	out := make([]Tour, len(tours))
	for i, t := range tours {
		out[i] = Normalize(t)
	}
	return out
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseDate parses an ISO-8601 date or timestamp. Unparsable input yields the
// zero time.
func ParseDate(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range dateLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.UTC()
		}
	}
	return time.Time{}
}
