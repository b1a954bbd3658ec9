package tour_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neexbeast/tourshop/internal/tour"
)

func TestUnmarshal_StringFields(t *testing.T) {
	raw := `{"id":"7","name":"Alps","description":"Hiking","tourOperator":"Alpina","price":"€2,192","type":"single","date":"2025-06-01","locationId":"ch","img":"alps.jpg"}`

	var got tour.Tour
	require.NoError(t, json.Unmarshal([]byte(raw), &got))

	assert.Equal(t, "7", got.ID)
	assert.Equal(t, "Alpina", got.Operator)
	assert.Equal(t, "€2,192", got.Price)
	assert.Equal(t, int64(2192), got.Amount)
	assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), got.StartsAt)
	assert.Equal(t, "ch", got.LocationID)
}

func TestUnmarshal_NumericIDAndPrice(t *testing.T) {
	raw := `{"id":42,"name":"Beach","price":825,"imageUrl":"https://cdn.example.com/b.png"}`

	var got tour.Tour
	require.NoError(t, json.Unmarshal([]byte(raw), &got))

	assert.Equal(t, "42", got.ID)
	assert.Equal(t, "825", got.Price)
	assert.Equal(t, int64(825), got.Amount)
	assert.Equal(t, "https://cdn.example.com/b.png", got.Img)
	assert.True(t, got.StartsAt.IsZero())
}

func TestUnmarshal_NullOptionalFields(t *testing.T) {
	raw := `{"id":"1","name":"X","price":null,"locationId":null}`

	var got tour.Tour
	require.NoError(t, json.Unmarshal([]byte(raw), &got))
	assert.Equal(t, int64(0), got.Amount)
	assert.Empty(t, got.LocationID)
}

func TestUnmarshal_BadIDType(t *testing.T) {
	var got tour.Tour
	require.Error(t, json.Unmarshal([]byte(`{"id":{"nested":true}}`), &got))
}

func TestCatalogEnvelope(t *testing.T) {
	raw := `{"tours":[{"id":"1","price":"€2,192"},{"id":"2","price":"€825"}]}`

	var c tour.Catalog
	require.NoError(t, json.Unmarshal([]byte(raw), &c))
	require.Len(t, c.Tours, 2)
	assert.Equal(t, int64(825), c.Tours[1].Amount)
}

func TestMarshal_OmitsDerivedFields(t *testing.T) {
	b, err := json.Marshal(tour.Normalize(tour.Tour{ID: "1", Price: "€10", Date: "2025-01-01"}))
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	assert.NotContains(t, m, "Amount")
	assert.NotContains(t, m, "StartsAt")
	assert.Equal(t, "€10", m["price"])
}

func TestNormalize_Idempotent(t *testing.T) {
	once := tour.Normalize(tour.Tour{ID: " 3 ", Price: "€1,500", Date: "2025-03-04T10:00:00Z"})
	twice := tour.Normalize(once)
	assert.Equal(t, once, twice)
	assert.Equal(t, "3", once.ID)
}

func TestParseDate(t *testing.T) {
	assert.Equal(t, time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC), tour.ParseDate("2025-03-04T10:00:00Z"))
	assert.Equal(t, time.Date(2025, 3, 4, 10, 30, 0, 0, time.UTC), tour.ParseDate("2025-03-04T10:30"))
	assert.Equal(t, time.Date(2025, 3, 4, 8, 0, 0, 0, time.UTC), tour.ParseDate("2025-03-04T10:00:00+02:00"))
	assert.True(t, tour.ParseDate("").IsZero())
	assert.True(t, tour.ParseDate("next tuesday").IsZero())
}
