package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/dukerupert/freyja/internal/domain"
	"github.com/dukerupert/freyja/internal/middleware"
	"github.com/dukerupert/freyja/internal/repository"
	"github.com/dukerupert/freyja/internal/service"
)

// OrderHandler exposes order retrieval and the admin transition
// surface over HTTP (§4.4).
type OrderHandler struct {
	orders     repository.OrderRepository
	orderSvc   *service.OrderService
}

func NewOrderHandler(orders repository.OrderRepository, orderSvc *service.OrderService) *OrderHandler {
	return &OrderHandler{orders: orders, orderSvc: orderSvc}
}

// ownsOrder reports whether the request's principal may view or act on
// the order: its own customer, or an admin.
func ownsOrder(c echo.Context, order *domain.Order) bool {
	p, ok := middleware.PrincipalFromContext(c.Request().Context())
	if !ok {
		return false
	}
	return p.IsAdmin() || (order.UserID != "" && order.UserID == p.UserID)
}

func (h *OrderHandler) Get(c echo.Context) error {
	order, err := h.orders.Get(c.Request().Context(), c.Param("orderId"))
	if err != nil {
		return fail(c, err)
	}
	if !ownsOrder(c, order) {
		return fail(c, domain.Forbidden("handler.order.Get", "not your order"))
	}
	items, err := h.orders.ListItems(c.Request().Context(), order.ID)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, struct {
		*domain.Order
		Items []domain.OrderItem `json:"items"`
	}{order, items})
}

func (h *OrderHandler) History(c echo.Context) error {
	order, err := h.orders.Get(c.Request().Context(), c.Param("orderId"))
	if err != nil {
		return fail(c, err)
	}
	if !ownsOrder(c, order) {
		return fail(c, domain.Forbidden("handler.order.History", "not your order"))
	}
	history, err := h.orders.ListHistory(c.Request().Context(), order.ID)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, history)
}

type transitionRequest struct {
	Status domain.OrderStatus `json:"status" validate:"required"`
}

// Transition is admin-only: the customer-reachable order mutations are
// Cancel, SetTracking never being customer-initiated, and delivery
// states arriving only via carrier webhooks in a full deployment.
func (h *OrderHandler) Transition(c echo.Context) error {
	var req transitionRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	p, _ := middleware.PrincipalFromContext(c.Request().Context())
	order, err := h.orderSvc.Transition(c.Request().Context(), c.Param("orderId"), req.Status, domain.ActorAdmin, p.UserID)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, order)
}

type cancelRequest struct {
	Reason domain.CancelReason `json:"reason" validate:"required"`
}

func (h *OrderHandler) Cancel(c echo.Context) error {
	var req cancelRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	order, err := h.orders.Get(c.Request().Context(), c.Param("orderId"))
	if err != nil {
		return fail(c, err)
	}
	if !ownsOrder(c, order) {
		return fail(c, domain.Forbidden("handler.order.Cancel", "not your order"))
	}
	p, _ := middleware.PrincipalFromContext(c.Request().Context())
	actor, actorID := domain.ActorCustomer, p.UserID
	if p.IsAdmin() {
		actor = domain.ActorAdmin
	}
	order, err = h.orderSvc.Cancel(c.Request().Context(), order.ID, req.Reason, actor, actorID)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, order)
}

type setTrackingRequest struct {
	Carrier string `json:"carrier" validate:"required"`
	Number  string `json:"number" validate:"required"`
	URL     string `json:"url"`
}

func (h *OrderHandler) SetTracking(c echo.Context) error {
	var req setTrackingRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	order, err := h.orderSvc.SetTracking(c.Request().Context(), c.Param("orderId"), req.Carrier, req.Number, req.URL)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, order)
}

type markFulfilledRequest struct {
	ItemID   string `json:"itemId" validate:"required"`
	Quantity int    `json:"quantity" validate:"required,min=1"`
}

func (h *OrderHandler) MarkFulfilled(c echo.Context) error {
	var req markFulfilledRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	order, err := h.orderSvc.MarkFulfilled(c.Request().Context(), c.Param("orderId"), req.ItemID, req.Quantity)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, order)
}
