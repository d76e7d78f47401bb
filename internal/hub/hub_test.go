package hub

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deivygoficial/supermercado-app/internal/domain"
)

func testEvent(orderID string) domain.NotificationEvent {
	return domain.NotificationEvent{
		Type:      domain.EventTypeNewOrder,
		Order:     &domain.OrderSummary{OrderID: orderID, CustomerID: "cust-1", TotalAmount: 6.20},
		Timestamp: time.Now(),
	}
}

func receive(t *testing.T, sub *Subscription) domain.NotificationEvent {
	t.Helper()
	select {
	case data, ok := <-sub.Events():
		require.True(t, ok, "subscription channel closed")
		var event domain.NotificationEvent
		require.NoError(t, json.Unmarshal(data, &event))
		return event
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return domain.NotificationEvent{}
	}
}

func TestPublish_NoSubscribers(t *testing.T) {
	h := New()
	defer h.Close()

	// must not block or panic
	h.Publish(testEvent("o1"))
	assert.Equal(t, 0, h.Count())
}

func TestPublish_FanOut(t *testing.T) {
	h := New()
	defer h.Close()

	first := h.Subscribe()
	second := h.Subscribe()
	require.Equal(t, 2, h.Count())

	h.Publish(testEvent("o1"))

	for _, sub := range []*Subscription{first, second} {
		event := receive(t, sub)
		assert.Equal(t, domain.EventTypeNewOrder, event.Type)
		require.NotNil(t, event.Order)
		assert.Equal(t, "o1", event.Order.OrderID)
	}
}

func TestPublish_DropsSaturatedSubscriber(t *testing.T) {
	h := New()
	defer h.Close()

	stuck := h.Subscribe()
	healthy := h.Subscribe()

	// fill both buffers, then drain only the healthy subscriber
	for i := 0; i < subscriptionBuffer; i++ {
		h.Publish(testEvent("o1"))
	}
	for i := 0; i < subscriptionBuffer; i++ {
		receive(t, healthy)
	}

	// this publish overflows the stuck subscriber and removes it
	h.Publish(testEvent("o2"))
	assert.Equal(t, 1, h.Count())

	// the stuck channel was closed after its buffered events
	drained := 0
	for range stuck.Events() {
		drained++
	}
	assert.Equal(t, subscriptionBuffer, drained)

	// the healthy subscriber keeps receiving
	event := receive(t, healthy)
	assert.Equal(t, "o2", event.Order.OrderID)
}

func TestUnsubscribe_Idempotent(t *testing.T) {
	h := New()
	defer h.Close()

	sub := h.Subscribe()
	h.Unsubscribe(sub)
	h.Unsubscribe(sub)
	assert.Equal(t, 0, h.Count())

	_, ok := <-sub.Events()
	assert.False(t, ok)

	// publishing after removal must not reach the old subscription
	h.Publish(testEvent("o1"))
}

func TestClose(t *testing.T) {
	h := New()
	sub := h.Subscribe()

	h.Close()
	_, ok := <-sub.Events()
	assert.False(t, ok)
	assert.Equal(t, 0, h.Count())

	// a late subscriber gets an already-closed channel
	late := h.Subscribe()
	_, ok = <-late.Events()
	assert.False(t, ok)

	// publish and double close are no-ops
	h.Publish(testEvent("o1"))
	h.Close()
}
