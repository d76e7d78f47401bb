package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/deivygoficial/supermercado-app/internal/cache"
	"github.com/deivygoficial/supermercado-app/internal/domain"
	"github.com/deivygoficial/supermercado-app/internal/repository"
)

// readTimeout bounds list/get queries against the store. Read paths degrade
// to ErrStoreTimeout (callers answer with an empty page and a retry hint);
// write paths never degrade and surface their failures.
const readTimeout = 3 * time.Second

// Actor identifies who is performing an operation. Identity itself comes
// from the authentication tier, which is outside this service.
type Actor struct {
	ID    string
	Admin bool
}

// NotificationPublisher receives an event for every durably created order.
type NotificationPublisher interface {
	Publish(event domain.NotificationEvent)
}

type OrderPage struct {
	Orders     []*domain.Order
	Total      int64
	TotalPages int
	Page       int
}

// OrderService is the order lifecycle engine: it decides which changes are
// legal, keeps derived fields consistent and triggers side effects.
type OrderService struct {
	repo  repository.OrderRepository
	cache cache.OrderCache
	hub   NotificationPublisher
	sfg   singleflight.Group // collapses concurrent reads of the same order
}

func NewOrderService(repo repository.OrderRepository, c cache.OrderCache, hub NotificationPublisher) *OrderService {
	return &OrderService{
		repo:  repo,
		cache: c,
		hub:   hub,
	}
}

// CreateOrder validates the request, computes derived fields and persists the
// order with status pending. The new_order event is published only after the
// order is durably stored, never before.
func (s *OrderService) CreateOrder(ctx context.Context, customerID string, items []domain.OrderItem, addr domain.DeliveryAddress, notes string) (*domain.Order, error) {
	if customerID == "" {
		return nil, fmt.Errorf("%w: missing customer", ErrValidation)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: order needs at least one item", ErrValidation)
	}
	for i, item := range items {
		if item.Quantity < 1 {
			return nil, fmt.Errorf("%w: item %d has quantity %d, must be at least 1", ErrValidation, i, item.Quantity)
		}
	}
	if err := validateAddress(addr); err != nil {
		return nil, err
	}

	now := time.Now()
	order := &domain.Order{
		ID:              uuid.NewString(),
		CustomerID:      customerID,
		Items:           items,
		DeliveryAddress: addr,
		PaymentMethod:   domain.PaymentCash,
		TotalAmount:     domain.ComputeTotal(items),
		Status:          domain.OrderStatusPending,
		StatusHistory: []domain.StatusChange{{
			Status:    domain.OrderStatusPending,
			Timestamp: now,
			UpdatedBy: customerID,
		}},
		Notes:                 notes,
		EstimatedDeliveryTime: now.Add(domain.EstimatedDeliveryWindow),
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	if err := s.repo.Insert(ctx, order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	s.hub.Publish(domain.NewOrderEvent(order))

	return order, nil
}

// ChangeStatus is admin-only. Any enumerated status is reachable from any
// current status; terminal states are not enforced for admin actions, which
// mirrors the product's permissive contract. Exactly one history entry is
// appended per successful call.
func (s *OrderService) ChangeStatus(ctx context.Context, orderID string, actor Actor, newStatus domain.OrderStatus, note string) (*domain.Order, error) {
	if !actor.Admin {
		return nil, fmt.Errorf("%w: only administrators can change order status", ErrForbidden)
	}
	if !newStatus.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, newStatus)
	}

	now := time.Now()
	change := domain.StatusChange{
		Status:    newStatus,
		Timestamp: now,
		UpdatedBy: actor.ID,
		Note:      note,
	}

	var deliveredAt *time.Time
	if newStatus == domain.OrderStatusDelivered {
		deliveredAt = &now
	}

	order, err := s.repo.AppendStatus(ctx, orderID, change, deliveredAt)
	if err != nil {
		return nil, err
	}

	s.invalidate(orderID)
	return order, nil
}

// CancelOrder is the one status change customers may perform, on their own
// orders only. Orders can be cancelled only while pending or confirmed.
func (s *OrderService) CancelOrder(ctx context.Context, orderID string, actor Actor) (*domain.Order, error) {
	current, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !actor.Admin && current.CustomerID != actor.ID {
		return nil, fmt.Errorf("%w: order belongs to another customer", ErrForbidden)
	}

	change := domain.StatusChange{
		Status:    domain.OrderStatusCancelled,
		Timestamp: time.Now(),
		UpdatedBy: actor.ID,
	}

	cancellable := []domain.OrderStatus{domain.OrderStatusPending, domain.OrderStatusConfirmed}
	order, err := s.repo.CancelFrom(ctx, orderID, cancellable, change)
	if err != nil {
		if errors.Is(err, repository.ErrNotCancellable) {
			return nil, fmt.Errorf("%w: cannot cancel an order in status %s", ErrInvalidTransition, current.Status)
		}
		return nil, err
	}

	s.invalidate(orderID)
	return order, nil
}

// GetOrder serves reads through the cache; concurrent misses for the same
// order collapse into a single store query.
func (s *OrderService) GetOrder(ctx context.Context, orderID string, actor Actor) (*domain.Order, error) {
	v, err, _ := s.sfg.Do(orderID, func() (interface{}, error) {
		order, err := s.cache.Get(ctx, orderID)
		if err == nil {
			return order, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			log.Printf("order cache get error: %v", err)
		}

		readCtx, cancel := context.WithTimeout(ctx, readTimeout)
		defer cancel()

		order, err = s.repo.FindByID(readCtx, orderID)
		if err != nil {
			return nil, mapReadError(err)
		}

		go func() {
			setCtx, cancelSet := context.WithTimeout(context.Background(), time.Second)
			defer cancelSet()
			if err := s.cache.Set(setCtx, order); err != nil {
				log.Printf("order cache set error: %v", err)
			}
		}()

		return order, nil
	})
	if err != nil {
		return nil, err
	}

	order := v.(*domain.Order)
	if !actor.Admin && order.CustomerID != actor.ID {
		return nil, fmt.Errorf("%w: order belongs to another customer", ErrForbidden)
	}
	return order, nil
}

// ListOrders pages through all orders, optionally filtered by status.
// Admin-only; customers use ListCustomerOrders.
func (s *OrderService) ListOrders(ctx context.Context, actor Actor, filter repository.ListFilter) (*OrderPage, error) {
	if !actor.Admin {
		return nil, fmt.Errorf("%w: only administrators can list all orders", ErrForbidden)
	}
	filter.CustomerID = ""
	return s.list(ctx, filter)
}

// ListCustomerOrders pages through the calling customer's own orders.
func (s *OrderService) ListCustomerOrders(ctx context.Context, customerID string, filter repository.ListFilter) (*OrderPage, error) {
	filter.CustomerID = customerID
	return s.list(ctx, filter)
}

func (s *OrderService) list(ctx context.Context, filter repository.ListFilter) (*OrderPage, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = 10
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status filter %q", ErrValidation, filter.Status)
	}

	readCtx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()

	orders, total, err := s.repo.List(readCtx, filter)
	if err != nil {
		return nil, mapReadError(err)
	}
	if orders == nil {
		orders = []*domain.Order{}
	}

	totalPages := int((total + int64(filter.Limit) - 1) / int64(filter.Limit))
	return &OrderPage{
		Orders:     orders,
		Total:      total,
		TotalPages: totalPages,
		Page:       filter.Page,
	}, nil
}

func (s *OrderService) invalidate(orderID string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, orderID); err != nil {
		log.Printf("order cache invalidate error: %v", err)
	}
}

func mapReadError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrStoreTimeout
	}
	return err
}

func validateAddress(addr domain.DeliveryAddress) error {
	missing := []string{}
	if strings.TrimSpace(addr.Street) == "" {
		missing = append(missing, "street")
	}
	if strings.TrimSpace(addr.City) == "" {
		missing = append(missing, "city")
	}
	if strings.TrimSpace(addr.State) == "" {
		missing = append(missing, "state")
	}
	if strings.TrimSpace(addr.ZipCode) == "" {
		missing = append(missing, "zip_code")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: delivery address is missing %s", ErrValidation, strings.Join(missing, ", "))
	}
	return nil
}
