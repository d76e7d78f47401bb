package domain

import (
	"math"
	"time"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusPreparing OrderStatus = "preparing"
	OrderStatusEnRoute   OrderStatus = "en_route"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// ValidStatuses is the full set of statuses an administrator may set.
// Transitions between them are deliberately unrestricted for admin actions;
// only CancelOrder enforces a guard.
var ValidStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusPreparing,
	OrderStatusEnRoute,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

func (s OrderStatus) Valid() bool {
	for _, v := range ValidStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// PaymentCash is the only payment method in scope; orders are paid on delivery.
const PaymentCash = "cash"

// EstimatedDeliveryWindow is added to the creation time to produce
// estimatedDeliveryTime. Set once, never recomputed.
const EstimatedDeliveryWindow = 45 * time.Minute

// OrderItem is a value snapshot of a catalog product captured at order time.
// Name and price are copied so later catalog edits never change past orders.
type OrderItem struct {
	ProductID string  `bson:"product_id" json:"product_id"`
	Name      string  `bson:"name" json:"name"`
	Price     float64 `bson:"price" json:"price"`
	Quantity  int     `bson:"quantity" json:"quantity"`
	Unit      string  `bson:"unit" json:"unit"`
}

type DeliveryAddress struct {
	Street    string `bson:"street" json:"street"`
	City      string `bson:"city" json:"city"`
	State     string `bson:"state" json:"state"`
	ZipCode   string `bson:"zip_code" json:"zip_code"`
	Reference string `bson:"reference,omitempty" json:"reference,omitempty"`
}

// StatusChange is one entry in the append-only status history.
type StatusChange struct {
	Status    OrderStatus `bson:"status" json:"status"`
	Timestamp time.Time   `bson:"timestamp" json:"timestamp"`
	UpdatedBy string      `bson:"updated_by" json:"updated_by"`
	Note      string      `bson:"note" json:"note"`
}

type Order struct {
	ID                    string          `bson:"_id" json:"id"`
	CustomerID            string          `bson:"customer_id" json:"customer_id"`
	Items                 []OrderItem     `bson:"items" json:"items"`
	DeliveryAddress       DeliveryAddress `bson:"delivery_address" json:"delivery_address"`
	PaymentMethod         string          `bson:"payment_method" json:"payment_method"`
	TotalAmount           float64         `bson:"total_amount" json:"total_amount"`
	Status                OrderStatus     `bson:"status" json:"status"`
	StatusHistory         []StatusChange  `bson:"status_history" json:"status_history"`
	Notes                 string          `bson:"notes,omitempty" json:"notes,omitempty"`
	EstimatedDeliveryTime time.Time       `bson:"estimated_delivery_time" json:"estimated_delivery_time"`
	DeliveredAt           *time.Time      `bson:"delivered_at,omitempty" json:"delivered_at,omitempty"`
	CreatedAt             time.Time       `bson:"created_at" json:"created_at"`
	UpdatedAt             time.Time       `bson:"updated_at" json:"updated_at"`
}

// ComputeTotal sums line subtotals before rounding, then rounds the sum to
// cents once, so per-line rounding errors cannot accumulate.
func ComputeTotal(items []OrderItem) float64 {
	var sum float64
	for _, item := range items {
		sum += item.Price * float64(item.Quantity)
	}
	return math.Round(sum*100) / 100
}
