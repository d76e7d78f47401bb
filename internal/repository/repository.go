package repository

import (
	"context"
	"errors"
	"time"

	"github.com/deivygoficial/supermercado-app/internal/domain"
)

var (
	ErrOrderNotFound  = errors.New("order not found")
	ErrNotCancellable = errors.New("order status does not allow cancellation")
)

// ListFilter narrows and pages List results. Zero values mean "no filter";
// Page is 1-based.
type ListFilter struct {
	Status     domain.OrderStatus
	CustomerID string
	Page       int
	Limit      int
}

type OrderRepository interface {
	Insert(ctx context.Context, order *domain.Order) error
	FindByID(ctx context.Context, id string) (*domain.Order, error)
	List(ctx context.Context, filter ListFilter) ([]*domain.Order, int64, error)

	// AppendStatus sets the order status and pushes the history entry in one
	// atomic operation, so concurrent changes against the same order can
	// never fuse or overwrite each other's history entries. deliveredAt is
	// set when non-nil. Returns the updated order.
	AppendStatus(ctx context.Context, id string, change domain.StatusChange, deliveredAt *time.Time) (*domain.Order, error)

	// CancelFrom cancels the order only if its current status is in from,
	// appending the history entry atomically. Returns ErrNotCancellable when
	// the order exists but its status is not in from.
	CancelFrom(ctx context.Context, id string, from []domain.OrderStatus, change domain.StatusChange) (*domain.Order, error)
}
