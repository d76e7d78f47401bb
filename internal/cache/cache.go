package cache

import (
	"context"
	"errors"

	"github.com/deivygoficial/supermercado-app/internal/domain"
)

var ErrCacheMiss = errors.New("order not in cache")

// OrderCache keeps recently read orders off the primary store. It is a read
// optimization only: every write path invalidates, never updates in place.
type OrderCache interface {
	Get(ctx context.Context, orderID string) (*domain.Order, error)
	Set(ctx context.Context, order *domain.Order) error
	Delete(ctx context.Context, orderID string) error
}
