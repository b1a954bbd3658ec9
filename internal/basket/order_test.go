package basket_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neexbeast/tourshop/internal/basket"
	"github.com/neexbeast/tourshop/internal/storage"
)

type mockSubmitter struct {
	submitFn func(ctx context.Context, o basket.Order) error
	got      []basket.Order
}

func (m *mockSubmitter) SubmitOrder(ctx context.Context, o basket.Order) error {
	m.got = append(m.got, o)
	if m.submitFn == nil {
		return nil
	}
	return m.submitFn(ctx, o)
}

var validCustomer = basket.Customer{Name: "Ana", Email: "ana@example.com", Phone: "+381 60 000"}

func TestCustomer_Validate(t *testing.T) {
	tests := []struct {
		name string
		c    basket.Customer
		ok   bool
	}{
		{"valid", validCustomer, true},
		{"missing name", basket.Customer{Email: "a@b.co", Phone: "1"}, false},
		{"blank phone", basket.Customer{Name: "A", Email: "a@b.co", Phone: "  "}, false},
		{"bad email", basket.Customer{Name: "A", Email: "not-an-email", Phone: "1"}, false},
		{"display name email", basket.Customer{Name: "A", Email: "Ana <a@b.co>", Phone: "1"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.c.Validate()
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, basket.ErrInvalidCustomer)
		})
	}
}

func TestCheckout_Success(t *testing.T) {
	ctx := context.Background()
	s := basket.New(ctx, storage.NewMemoryKV(), "", discardLogger())
	s.Add(ctx, mkTour("A", "€1,000"))
	s.Add(ctx, mkTour("A", "€1,000"))
	s.Add(ctx, mkTour("B", "€500"))

	sub := &mockSubmitter{}
	o, err := s.Checkout(ctx, sub, validCustomer)
	require.NoError(t, err)

	_, err = uuid.Parse(o.ID)
	assert.NoError(t, err)
	assert.Equal(t, int64(2500), o.Total)
	assert.Equal(t, []string{"A", "A", "B"}, ids(o.Tours))
	require.Len(t, o.Items, 2)
	assert.Equal(t, 2, o.Items[0].Quantity)
	assert.Equal(t, "Ana", o.Name)
	require.Len(t, sub.got, 1)

	assert.Empty(t, s.Snapshot(), "basket is cleared after a successful order")
}

func TestCheckout_SubmitFailureKeepsBasket(t *testing.T) {
	ctx := context.Background()
	s := basket.New(ctx, storage.NewMemoryKV(), "", discardLogger())
	s.Add(ctx, mkTour("A", "1"))

	boom := errors.New("upstream down")
	sub := &mockSubmitter{submitFn: func(context.Context, basket.Order) error { return boom }}

	_, err := s.Checkout(ctx, sub, validCustomer)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"A"}, ids(s.Snapshot()))
}

func TestCheckout_EmptyBasket(t *testing.T) {
	ctx := context.Background()
	s := basket.New(ctx, storage.NewMemoryKV(), "", discardLogger())
	sub := &mockSubmitter{}

	_, err := s.Checkout(ctx, sub, validCustomer)
	assert.ErrorIs(t, err, basket.ErrEmptyBasket)
	assert.Empty(t, sub.got)
}

func TestCheckout_InvalidCustomerSkipsSubmit(t *testing.T) {
	ctx := context.Background()
	s := basket.New(ctx, storage.NewMemoryKV(), "", discardLogger())
	s.Add(ctx, mkTour("A", "1"))
	sub := &mockSubmitter{}

	_, err := s.Checkout(ctx, sub, basket.Customer{Name: "A"})
	assert.ErrorIs(t, err, basket.ErrInvalidCustomer)
	assert.Empty(t, sub.got)
	assert.Len(t, s.Snapshot(), 1)
}

func TestCheckout_KeepsEntriesAddedInFlight(t *testing.T) {
	ctx := context.Background()
	s := basket.New(ctx, storage.NewMemoryKV(), "", discardLogger())
	s.Add(ctx, mkTour("A", "1"))

	sub := &mockSubmitter{submitFn: func(context.Context, basket.Order) error {
		s.Add(ctx, mkTour("A", "1"))
		s.Add(ctx, mkTour("C", "1"))
		return nil
	}}

	_, err := s.Checkout(ctx, sub, validCustomer)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "C"}, ids(s.Snapshot()))
}
