package domain

import "time"

const (
	EventTypeConnected = "connected"
	EventTypeNewOrder  = "new_order"
)

// OrderSummary is the slice of an order pushed to connected administrators.
type OrderSummary struct {
	OrderID     string      `json:"id"`
	CustomerID  string      `json:"customer_id"`
	TotalAmount float64     `json:"total_amount"`
	ItemCount   int         `json:"item_count"`
	Status      OrderStatus `json:"status"`
	Street      string      `json:"street,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}

// NotificationEvent is transient: broadcast once to whoever is connected,
// never persisted, never replayed. Late-connecting admins read current state
// through the order store instead.
type NotificationEvent struct {
	Type      string        `json:"type"`
	Order     *OrderSummary `json:"order,omitempty"`
	Message   string        `json:"message,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

func NewOrderEvent(o *Order) NotificationEvent {
	return NotificationEvent{
		Type: EventTypeNewOrder,
		Order: &OrderSummary{
			OrderID:     o.ID,
			CustomerID:  o.CustomerID,
			TotalAmount: o.TotalAmount,
			ItemCount:   len(o.Items),
			Status:      o.Status,
			Street:      o.DeliveryAddress.Street,
			CreatedAt:   o.CreatedAt,
		},
		Timestamp: time.Now(),
	}
}

func ConnectedEvent() NotificationEvent {
	return NotificationEvent{
		Type:      EventTypeConnected,
		Message:   "connected to order notifications",
		Timestamp: time.Now(),
	}
}
