package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/deivygoficial/supermercado-app/internal/domain"
	"github.com/deivygoficial/supermercado-app/internal/repository"
	"github.com/deivygoficial/supermercado-app/internal/service"
)

// OrderService is the slice of the lifecycle engine the handlers need.
type OrderService interface {
	CreateOrder(ctx context.Context, customerID string, items []domain.OrderItem, addr domain.DeliveryAddress, notes string) (*domain.Order, error)
	ChangeStatus(ctx context.Context, orderID string, actor service.Actor, newStatus domain.OrderStatus, note string) (*domain.Order, error)
	CancelOrder(ctx context.Context, orderID string, actor service.Actor) (*domain.Order, error)
	GetOrder(ctx context.Context, orderID string, actor service.Actor) (*domain.Order, error)
	ListOrders(ctx context.Context, actor service.Actor, filter repository.ListFilter) (*service.OrderPage, error)
	ListCustomerOrders(ctx context.Context, customerID string, filter repository.ListFilter) (*service.OrderPage, error)
}

type OrdersHandler struct {
	svc     OrderService
	timeout time.Duration
}

func NewOrdersHandler(svc OrderService, timeout time.Duration) *OrdersHandler {
	return &OrdersHandler{
		svc:     svc,
		timeout: timeout,
	}
}

type CreateOrderRequestDTO struct {
	Items           []domain.OrderItem     `json:"items"`
	DeliveryAddress domain.DeliveryAddress `json:"delivery_address"`
	Notes           string                 `json:"notes"`
}

type UpdateStatusRequestDTO struct {
	Status string `json:"status"`
	Note   string `json:"note"`
}

type OrderPageResponseDTO struct {
	Orders      []*domain.Order `json:"orders"`
	Total       int64           `json:"total"`
	TotalPages  int             `json:"total_pages"`
	CurrentPage int             `json:"current_page"`
	Retry       bool            `json:"retry,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// POST /api/orders
func (h *OrdersHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	var req CreateOrderRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	order, err := h.svc.CreateOrder(ctx, userID, req.Items, req.DeliveryAddress, req.Notes)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, order)
}

// GET /api/orders (admin)
func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	page, err := h.svc.ListOrders(ctx, actorFromContext(r.Context()), filterFromQuery(r))
	h.respondPage(w, page, err)
}

// GET /api/orders/mine
func (h *OrdersHandler) ListMyOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	page, err := h.svc.ListCustomerOrders(ctx, userID, filterFromQuery(r))
	h.respondPage(w, page, err)
}

// respondPage renders a list result, degrading a store timeout into an empty
// page with a retry hint instead of a hard failure.
func (h *OrdersHandler) respondPage(w http.ResponseWriter, page *service.OrderPage, err error) {
	if errors.Is(err, service.ErrStoreTimeout) {
		respondJSON(w, http.StatusOK, OrderPageResponseDTO{
			Orders: []*domain.Order{},
			Retry:  true,
		})
		return
	}
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, OrderPageResponseDTO{
		Orders:      page.Orders,
		Total:       page.Total,
		TotalPages:  page.TotalPages,
		CurrentPage: page.Page,
	})
}

// GET /api/orders/{order_id}
func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	orderID := chi.URLParam(r, "order_id")
	if orderID == "" {
		respondError(w, http.StatusBadRequest, "missing_order_id", "order_id is required")
		return
	}

	order, err := h.svc.GetOrder(ctx, orderID, actorFromContext(r.Context()))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, order)
}

// PUT /api/orders/{order_id}/status (admin)
func (h *OrdersHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orderID := chi.URLParam(r, "order_id")
	if orderID == "" {
		respondError(w, http.StatusBadRequest, "missing_order_id", "order_id is required")
		return
	}

	var req UpdateStatusRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	order, err := h.svc.ChangeStatus(ctx, orderID, actorFromContext(r.Context()), domain.OrderStatus(req.Status), req.Note)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, order)
}

// PUT /api/orders/{order_id}/cancel
func (h *OrdersHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
		return
	}

	orderID := chi.URLParam(r, "order_id")
	if orderID == "" {
		respondError(w, http.StatusBadRequest, "missing_order_id", "order_id is required")
		return
	}

	order, err := h.svc.CancelOrder(ctx, orderID, actorFromContext(r.Context()))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, order)
}

func actorFromContext(ctx context.Context) service.Actor {
	return service.Actor{
		ID:    getUserIDFromContext(ctx),
		Admin: isAdmin(ctx),
	}
}

func filterFromQuery(r *http.Request) repository.ListFilter {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	return repository.ListFilter{
		Status: domain.OrderStatus(q.Get("status")),
		Page:   page,
		Limit:  limit,
	}
}

func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, service.ErrInvalidTransition):
		respondError(w, http.StatusBadRequest, "invalid_status", err.Error())
	case errors.Is(err, service.ErrForbidden):
		respondError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, repository.ErrOrderNotFound):
		respondError(w, http.StatusNotFound, "not_found", "order not found")
	case errors.Is(err, service.ErrStoreTimeout):
		respondError(w, http.StatusServiceUnavailable, "try_again", "order store is slow, try again")
	default:
		log.Printf("internal error: %v", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "something went wrong")
	}
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, details string) {
	respondJSON(w, status, ErrorResponse{
		Error:   http.StatusText(status),
		Code:    code,
		Details: details,
	})
}
