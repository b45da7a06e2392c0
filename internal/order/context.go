package order

import (
	"time"

	"github.com/google/uuid"
)

// Order is the persisted part of an order that the status machine needs.
type Order struct {
	ID        uuid.UUID  `json:"id"`
	Status    StatusName `json:"status"`
	Version   int64      `json:"version"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// Context holds an order and its current status behaviour.
type Context struct {
	Order   *Order
	current Status
}

// NewContext loads the status behaviour matching order.Status.
func NewContext(order *Order) (*Context, error) {
	status, err := Lookup(order.Status)
	if err != nil {
		return nil, err
	}
	return &Context{Order: order, current: status}, nil
}

// SetOrderStatus swaps the current status. It is the only mutator statuses
// call while proceeding.
func (c *Context) SetOrderStatus(status Status) {
	c.current = status
	if c.Order != nil {
		c.Order.Status = status.Status()
	}
}

// Status returns the current status behaviour.
func (c *Context) Status() Status {
	return c.current
}

// Proceed asks the current status to handle trigger.
func (c *Context) Proceed(trigger string) error {
	return c.current.ProceedToNextStatus(c, trigger)
}
