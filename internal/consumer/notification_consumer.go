// Package consumer is the administrator-side counterpart of the notification
// hub: a long-lived event-stream client that survives broken connections and
// keeps a local, in-memory notification inbox for a UI to render.
package consumer

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/deivygoficial/supermercado-app/internal/domain"
)

type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Notification is a local record of a received event. Ids are monotonic and
// local to this consumer; the hub assigns none.
type Notification struct {
	ID        int64
	Type      string
	Message   string
	Order     *domain.OrderSummary
	Timestamp time.Time
	Read      bool
}

type Consumer struct {
	url        string
	adminID    string
	client     *http.Client
	retryDelay time.Duration
	alertTTL   time.Duration

	mu            sync.Mutex
	state         State
	notifications []Notification
	unread        int
	nextID        int64
	alert         *Notification
	alertTimer    *time.Timer
}

func New(baseURL, adminID string) *Consumer {
	return &Consumer{
		url:        strings.TrimRight(baseURL, "/") + "/api/orders/notifications",
		adminID:    adminID,
		client:     &http.Client{}, // no client timeout: the stream is long-held
		retryDelay: 5 * time.Second,
		alertTTL:   5 * time.Second,
	}
}

// Run drives the connection state machine until the context is cancelled:
// connecting -> connected -> (on error) disconnected -> wait retryDelay ->
// connecting. The retry wait is a single cancellable timer, so there is
// never more than one pending attempt and never two live channels.
func (c *Consumer) Run(ctx context.Context) {
	for {
		c.setState(StateConnecting)
		err := c.stream(ctx)
		c.setState(StateDisconnected)

		if ctx.Err() != nil {
			return
		}
		if err != nil {
			log.Printf("notifications: connection lost: %v", err)
		}

		timer := time.NewTimer(c.retryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (c *Consumer) stream(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("X-User-ID", c.adminID)
	req.Header.Set("X-User-Role", "admin")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	c.setState(StateConnected)

	scanner := bufio.NewScanner(resp.Body)
	var data []byte
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "data: "):
			data = append(data, strings.TrimPrefix(line, "data: ")...)
		case line == "" && len(data) > 0:
			c.dispatch(data)
			data = nil
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return errors.New("event stream closed by server")
}

func (c *Consumer) dispatch(payload []byte) {
	var event domain.NotificationEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		log.Printf("notifications: failed to parse event: %v", err)
		return
	}

	switch event.Type {
	case domain.EventTypeConnected:
		log.Printf("notifications: %s", event.Message)
	case domain.EventTypeNewOrder:
		c.record(event)
	}
}

func (c *Consumer) record(event domain.NotificationEvent) {
	message := "new order received"
	if event.Order != nil {
		message = fmt.Sprintf("customer %s placed an order for $%.2f", event.Order.CustomerID, event.Order.TotalAmount)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	n := Notification{
		ID:        c.nextID,
		Type:      event.Type,
		Message:   message,
		Order:     event.Order,
		Timestamp: event.Timestamp,
	}
	c.notifications = append([]Notification{n}, c.notifications...)
	c.unread++

	// The transient alert lives its own fixed lifetime, regardless of what
	// happens to the notification list meanwhile.
	c.alert = &n
	if c.alertTimer != nil {
		c.alertTimer.Stop()
	}
	id := n.ID
	c.alertTimer = time.AfterFunc(c.alertTTL, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.alert != nil && c.alert.ID == id {
			c.alert = nil
		}
	})
}

func (c *Consumer) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Consumer) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Consumer) Unread() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unread
}

// Notifications returns a snapshot of the inbox, newest first.
func (c *Consumer) Notifications() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Notification, len(c.notifications))
	copy(out, c.notifications)
	return out
}

// ActiveAlert returns the current transient alert, or nil once it expired.
func (c *Consumer) ActiveAlert() *Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.alert == nil {
		return nil
	}
	alert := *c.alert
	return &alert
}

// MarkRead flags one notification as read and decrements the unread counter,
// never below zero. The notification stays in the list.
func (c *Consumer) MarkRead(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.notifications {
		if c.notifications[i].ID == id {
			if !c.notifications[i].Read {
				c.notifications[i].Read = true
				if c.unread > 0 {
					c.unread--
				}
			}
			return
		}
	}
}

func (c *Consumer) MarkAllRead() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.notifications {
		c.notifications[i].Read = true
	}
	c.unread = 0
}

func (c *Consumer) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notifications = nil
	c.unread = 0
}
