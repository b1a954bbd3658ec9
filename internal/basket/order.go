package basket

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/neexbeast/tourshop/internal/tour"
)

var (
	// ErrEmptyBasket is returned by Checkout when there is nothing to order.
	ErrEmptyBasket = errors.New("basket is empty")
	// ErrInvalidCustomer is returned by Checkout when contact details are incomplete.
	ErrInvalidCustomer = errors.New("invalid customer details")
)

// Customer holds the contact details collected at checkout.
type Customer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// Validate requires a name, a phone and a well-formed email address.
func (c Customer) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidCustomer)
	}
	if strings.TrimSpace(c.Phone) == "" {
		return fmt.Errorf("%w: phone is required", ErrInvalidCustomer)
	}
	addr, err := mail.ParseAddress(strings.TrimSpace(c.Email))
	if err != nil || addr.Name != "" {
		return fmt.Errorf("%w: email is not valid", ErrInvalidCustomer)
	}
	return nil
}

// Order is a submitted basket.
type Order struct {
	ID string `json:"id"`
	Customer
	Tours     []tour.Tour `json:"tours"`
	Items     []Item      `json:"items"`
	Total     int64       `json:"total"`
	CreatedAt time.Time   `json:"createdAt"`
}

// OrderSubmitter delivers orders to the backend.
type OrderSubmitter interface {
	SubmitOrder(ctx context.Context, o Order) error
}

// Checkout validates the customer, submits the current basket and, once the
// submitter accepts it, removes the ordered entries. On failure the basket is
// left as it was and the submitter's error is returned unchanged.
func (s *Store) Checkout(ctx context.Context, submitter OrderSubmitter, c Customer) (Order, error) {
	if err := c.Validate(); err != nil {
		return Order{}, err
	}

	tours := s.Snapshot()
	if len(tours) == 0 {
		return Order{}, ErrEmptyBasket
	}

	o := Order{
		ID: uuid.Must(uuid.NewV7()).String(),
		Customer: Customer{
			Name:  strings.TrimSpace(c.Name),
			Email: strings.TrimSpace(c.Email),
			Phone: strings.TrimSpace(c.Phone),
		},
		Tours:     tours,
		Items:     group(tours),
		Total:     total(tours),
		CreatedAt: time.Now().UTC(),
	}

	if err := submitter.SubmitOrder(ctx, o); err != nil {
		return Order{}, err
	}

	// Entries added while the order was in flight stay in the basket.
	ordered := make(map[string]int, len(o.Items))
	for _, it := range o.Items {
		ordered[it.Tour.ID] = it.Quantity
	}
	s.mutate(ctx, func(list []tour.Tour) []tour.Tour {
		out := make([]tour.Tour, 0, len(list))
		for _, t := range list {
			if ordered[t.ID] > 0 {
				ordered[t.ID]--
				continue
			}
			out = append(out, t)
		}
		return out
	})

	s.log.Info("order submitted", "id", o.ID, "count", len(tours), "total", o.Total)
	return o, nil
}
