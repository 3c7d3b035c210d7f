package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/dukerupert/freyja/internal/domain"
	"github.com/dukerupert/freyja/internal/middleware"
	"github.com/dukerupert/freyja/internal/money"
	"github.com/dukerupert/freyja/internal/service"
)

// GuestSessionHeader identifies a guest's cart when no bearer token is
// present. Consumer clients mint and persist this ID client-side.
const GuestSessionHeader = "X-Session-Id"

// CartHandler exposes cart mutation over HTTP (§4.2).
type CartHandler struct {
	carts *service.CartService
}

func NewCartHandler(carts *service.CartService) *CartHandler {
	return &CartHandler{carts: carts}
}

func (h *CartHandler) owner(c echo.Context) (domain.CartOwnerType, string, error) {
	if p, ok := middleware.PrincipalFromContext(c.Request().Context()); ok && p.UserID != "" {
		return domain.OwnerRegistered, p.UserID, nil
	}
	if sessionID := c.Request().Header.Get(GuestSessionHeader); sessionID != "" {
		return domain.OwnerGuest, sessionID, nil
	}
	return "", "", domain.Invalid("handler.cart.owner", "missing bearer token or "+GuestSessionHeader+" header")
}

func (h *CartHandler) Get(c echo.Context) error {
	ownerType, ownerID, err := h.owner(c)
	if err != nil {
		return fail(c, err)
	}
	cart, err := h.carts.GetOrCreateCart(c.Request().Context(), ownerType, ownerID)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, cart)
}

type addItemRequest struct {
	ProductID string `json:"productId" validate:"required"`
	VariantID string `json:"variantId" validate:"required"`
	BundleID  string `json:"bundleId"`
	Quantity  int    `json:"quantity" validate:"required,min=1"`
}

func (h *CartHandler) AddItem(c echo.Context) error {
	var req addItemRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ownerType, ownerID, err := h.owner(c)
	if err != nil {
		return fail(c, err)
	}
	cart, err := h.carts.GetOrCreateCart(c.Request().Context(), ownerType, ownerID)
	if err != nil {
		return fail(c, err)
	}
	cart, err = h.carts.AddItem(c.Request().Context(), cart.ID, req.ProductID, req.VariantID, req.BundleID, req.Quantity)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusCreated, cart)
}

type updateQuantityRequest struct {
	Quantity int `json:"quantity" validate:"required,min=1"`
}

func (h *CartHandler) UpdateItem(c echo.Context) error {
	var req updateQuantityRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	cart, err := h.carts.UpdateQuantity(c.Request().Context(), c.Param("cartId"), c.Param("itemId"), req.Quantity)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, cart)
}

func (h *CartHandler) RemoveItem(c echo.Context) error {
	cart, err := h.carts.RemoveItem(c.Request().Context(), c.Param("cartId"), c.Param("itemId"))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, cart)
}

func (h *CartHandler) Clear(c echo.Context) error {
	cart, err := h.carts.Clear(c.Request().Context(), c.Param("cartId"))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, cart)
}

type applyCouponRequest struct {
	Code           string `json:"code" validate:"required"`
	DiscountAmount int64  `json:"discountAmount" validate:"min=0"`
}

func (h *CartHandler) ApplyCoupon(c echo.Context) error {
	var req applyCouponRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	cart, err := h.carts.ApplyCoupon(c.Request().Context(), c.Param("cartId"), domain.AppliedCoupon{
		Code: req.Code, DiscountAmount: money.Amount(req.DiscountAmount),
	})
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, cart)
}

// Merge folds the caller's guest cart into their now-authenticated user
// cart on login (§4.2). Requires both a bearer token and the guest
// session header.
func (h *CartHandler) Merge(c echo.Context) error {
	p, ok2 := middleware.PrincipalFromContext(c.Request().Context())
	if !ok2 || p.UserID == "" {
		return fail(c, domain.Unauthorized("handler.cart.Merge", "authentication required"))
	}
	guestSessionID := c.Request().Header.Get(GuestSessionHeader)
	if guestSessionID == "" {
		return fail(c, domain.Invalid("handler.cart.Merge", "missing "+GuestSessionHeader+" header"))
	}
	cart, err := h.carts.MergeGuestIntoUser(c.Request().Context(), guestSessionID, p.UserID)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, cart)
}
