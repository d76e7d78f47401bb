package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"

	"github.com/deivygoficial/supermercado-app/internal/domain"
)

func setupTestDB(t *testing.T) (OrderRepository, func()) {
	ctx := context.Background()

	mongoContainer, err := mongodb.Run(ctx, "mongo:7")
	require.NoError(t, err)

	uri, err := mongoContainer.ConnectionString(ctx)
	require.NoError(t, err)

	db, err := ConnectMongoDB(ctx, uri, "testdb")
	require.NoError(t, err)

	repo := NewMongoRepository(db)

	mongoRepo := repo.(*mongoRepository)
	err = mongoRepo.CreateIndexes(ctx)
	require.NoError(t, err)

	cleanup := func() {
		if err := mongoContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}

	return repo, cleanup
}

func newOrder(id, customerID string, status domain.OrderStatus) *domain.Order {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &domain.Order{
		ID:         id,
		CustomerID: customerID,
		Items: []domain.OrderItem{
			{ProductID: "p1", Name: "Milk", Price: 2.50, Quantity: 2, Unit: "l"},
			{ProductID: "p2", Name: "Bread", Price: 1.20, Quantity: 1, Unit: "pc"},
		},
		DeliveryAddress: domain.DeliveryAddress{
			Street:  "Av. Central 123",
			City:    "Guadalajara",
			State:   "Jalisco",
			ZipCode: "44100",
		},
		PaymentMethod: domain.PaymentCash,
		TotalAmount:   6.20,
		Status:        status,
		StatusHistory: []domain.StatusChange{
			{Status: domain.OrderStatusPending, Timestamp: now, UpdatedBy: customerID},
		},
		EstimatedDeliveryTime: now.Add(domain.EstimatedDeliveryWindow),
		CreatedAt:             now,
		UpdatedAt:             now,
	}
}

func TestFindByID_NotFound(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	order, err := repo.FindByID(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, ErrOrderNotFound)
	assert.Nil(t, order)
}

func TestInsertAndFind(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	order := newOrder("order-1", "cust-1", domain.OrderStatusPending)
	require.NoError(t, repo.Insert(ctx, order))

	found, err := repo.FindByID(ctx, "order-1")
	require.NoError(t, err)
	assert.Equal(t, "cust-1", found.CustomerID)
	assert.Equal(t, domain.OrderStatusPending, found.Status)
	assert.Equal(t, 6.20, found.TotalAmount)
	assert.Len(t, found.Items, 2)
	assert.Len(t, found.StatusHistory, 1)
	assert.Equal(t, "Guadalajara", found.DeliveryAddress.City)
	assert.Nil(t, found.DeliveredAt)
}

func TestList_FiltersAndPaginates(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		order := newOrder(fmt.Sprintf("order-%d", i), "cust-1", domain.OrderStatusPending)
		order.CreatedAt = order.CreatedAt.Add(time.Duration(i) * time.Minute)
		require.NoError(t, repo.Insert(ctx, order))
	}
	other := newOrder("order-other", "cust-2", domain.OrderStatusDelivered)
	require.NoError(t, repo.Insert(ctx, other))

	// by customer, newest first, paged
	orders, total, err := repo.List(ctx, ListFilter{CustomerID: "cust-1", Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	require.Len(t, orders, 2)
	assert.Equal(t, "order-4", orders[0].ID)
	assert.Equal(t, "order-3", orders[1].ID)

	orders, _, err = repo.List(ctx, ListFilter{CustomerID: "cust-1", Page: 3, Limit: 2})
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "order-0", orders[0].ID)

	// by status
	orders, total, err = repo.List(ctx, ListFilter{Status: domain.OrderStatusDelivered})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, orders, 1)
	assert.Equal(t, "order-other", orders[0].ID)

	// no filter sees everything
	_, total, err = repo.List(ctx, ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(6), total)
}

func TestAppendStatus(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, repo.Insert(ctx, newOrder("order-1", "cust-1", domain.OrderStatusPending)))

	change := domain.StatusChange{
		Status:    domain.OrderStatusConfirmed,
		Timestamp: time.Now().UTC().Truncate(time.Millisecond),
		UpdatedBy: "admin-1",
		Note:      "stock checked",
	}
	updated, err := repo.AppendStatus(ctx, "order-1", change, nil)
	require.NoError(t, err)

	assert.Equal(t, domain.OrderStatusConfirmed, updated.Status)
	require.Len(t, updated.StatusHistory, 2)
	assert.Equal(t, "admin-1", updated.StatusHistory[1].UpdatedBy)
	assert.Equal(t, "stock checked", updated.StatusHistory[1].Note)
	assert.Nil(t, updated.DeliveredAt)
}

func TestAppendStatus_Delivered(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, repo.Insert(ctx, newOrder("order-1", "cust-1", domain.OrderStatusEnRoute)))

	deliveredAt := time.Now().UTC().Truncate(time.Millisecond)
	change := domain.StatusChange{
		Status:    domain.OrderStatusDelivered,
		Timestamp: deliveredAt,
		UpdatedBy: "admin-1",
	}
	updated, err := repo.AppendStatus(ctx, "order-1", change, &deliveredAt)
	require.NoError(t, err)

	require.NotNil(t, updated.DeliveredAt)
	assert.True(t, deliveredAt.Equal(*updated.DeliveredAt), "delivered_at mismatch: %v vs %v", deliveredAt, updated.DeliveredAt)
}

func TestAppendStatus_NotFound(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := repo.AppendStatus(context.Background(), "nonexistent", domain.StatusChange{
		Status:    domain.OrderStatusConfirmed,
		Timestamp: time.Now(),
	}, nil)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestAppendStatus_ConcurrentChangesKeepFullHistory(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, repo.Insert(ctx, newOrder("order-1", "cust-1", domain.OrderStatusPending)))

	statuses := []domain.OrderStatus{
		domain.OrderStatusConfirmed,
		domain.OrderStatusPreparing,
		domain.OrderStatusEnRoute,
		domain.OrderStatusDelivered,
	}

	var wg sync.WaitGroup
	for _, status := range statuses {
		wg.Add(1)
		go func(s domain.OrderStatus) {
			defer wg.Done()
			_, err := repo.AppendStatus(ctx, "order-1", domain.StatusChange{
				Status:    s,
				Timestamp: time.Now().UTC(),
				UpdatedBy: "admin-1",
			}, nil)
			assert.NoError(t, err)
		}(status)
	}
	wg.Wait()

	// every concurrent change lands exactly once in the history
	found, err := repo.FindByID(ctx, "order-1")
	require.NoError(t, err)
	assert.Len(t, found.StatusHistory, 1+len(statuses))
}

func TestCancelFrom(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, repo.Insert(ctx, newOrder("order-1", "cust-1", domain.OrderStatusConfirmed)))

	cancellable := []domain.OrderStatus{domain.OrderStatusPending, domain.OrderStatusConfirmed}
	change := domain.StatusChange{
		Status:    domain.OrderStatusCancelled,
		Timestamp: time.Now().UTC(),
		UpdatedBy: "cust-1",
	}
	cancelled, err := repo.CancelFrom(ctx, "order-1", cancellable, change)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, cancelled.Status)
	assert.Len(t, cancelled.StatusHistory, 2)
}

func TestCancelFrom_WrongStatus(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, repo.Insert(ctx, newOrder("order-1", "cust-1", domain.OrderStatusEnRoute)))

	cancellable := []domain.OrderStatus{domain.OrderStatusPending, domain.OrderStatusConfirmed}
	_, err := repo.CancelFrom(ctx, "order-1", cancellable, domain.StatusChange{
		Status:    domain.OrderStatusCancelled,
		Timestamp: time.Now().UTC(),
	})
	assert.ErrorIs(t, err, ErrNotCancellable)

	// order untouched
	found, findErr := repo.FindByID(ctx, "order-1")
	require.NoError(t, findErr)
	assert.Equal(t, domain.OrderStatusEnRoute, found.Status)
	assert.Len(t, found.StatusHistory, 1)
}

func TestCancelFrom_NotFound(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := repo.CancelFrom(context.Background(), "nonexistent",
		[]domain.OrderStatus{domain.OrderStatusPending},
		domain.StatusChange{Status: domain.OrderStatusCancelled, Timestamp: time.Now()})
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestCancelFrom_OnlyOneOfTwoRacersWins(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, repo.Insert(ctx, newOrder("order-1", "cust-1", domain.OrderStatusPending)))

	cancellable := []domain.OrderStatus{domain.OrderStatusPending, domain.OrderStatusConfirmed}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = repo.CancelFrom(ctx, "order-1", cancellable, domain.StatusChange{
				Status:    domain.OrderStatusCancelled,
				Timestamp: time.Now().UTC(),
				UpdatedBy: "cust-1",
			})
		}(i)
	}
	wg.Wait()

	// the filter only matches a cancellable status, so at most one racer can
	// append the cancelled entry
	found, err := repo.FindByID(ctx, "order-1")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, found.Status)
	assert.Len(t, found.StatusHistory, 2)

	succeeded := 0
	for _, e := range errs {
		if e == nil {
			succeeded++
		}
	}
	assert.Equal(t, 1, succeeded)
}
