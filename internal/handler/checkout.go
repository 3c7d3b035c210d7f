package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/dukerupert/freyja/internal/domain"
	"github.com/dukerupert/freyja/internal/idempotency"
	"github.com/dukerupert/freyja/internal/middleware"
	"github.com/dukerupert/freyja/internal/service"
)

// IdempotencyKeyHeader lets a client retry a checkout initiation
// without risk of double-booking inventory: a retried request with the
// same key replays the first response instead of re-running
// InitiateCheckout.
const IdempotencyKeyHeader = "Idempotency-Key"

// CheckoutHandler exposes checkout session initiation and completion
// over HTTP (§4.3).
type CheckoutHandler struct {
	checkouts *service.CheckoutService
	idem      *idempotency.Store
}

func NewCheckoutHandler(checkouts *service.CheckoutService, idem *idempotency.Store) *CheckoutHandler {
	return &CheckoutHandler{checkouts: checkouts, idem: idem}
}

type addressRequest struct {
	FullName string `json:"fullName" validate:"required"`
	Phone    string `json:"phone" validate:"required"`
	Line1    string `json:"line1" validate:"required"`
	Line2    string `json:"line2"`
	Landmark string `json:"landmark"`
	City     string `json:"city" validate:"required"`
	State    string `json:"state" validate:"required"`
	Pincode  string `json:"pincode" validate:"required,len=6"`
	Country  string `json:"country" validate:"required"`
}

func (r addressRequest) toDomain() domain.Address {
	return domain.Address{
		FullName: r.FullName, Phone: r.Phone, Line1: r.Line1, Line2: r.Line2,
		Landmark: r.Landmark, City: r.City, State: r.State, Pincode: r.Pincode, Country: r.Country,
	}
}

type initiateCheckoutRequest struct {
	CartID           string          `json:"cartId" validate:"required"`
	ShippingAddress  addressRequest  `json:"shippingAddress" validate:"required"`
	BillingAddress   addressRequest  `json:"billingAddress" validate:"required"`
	PaymentMethodTag string          `json:"paymentMethod" validate:"required"`
}

func (h *CheckoutHandler) Initiate(c echo.Context) error {
	var req initiateCheckoutRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	key := c.Request().Header.Get(IdempotencyKeyHeader)
	if key != "" && h.idem != nil {
		if cached, inFlight := h.idem.Reserve(key); inFlight {
			if cached.StatusCode == 0 {
				return c.JSON(http.StatusConflict, envelope{Error: "a request with this idempotency key is already in progress"})
			}
			return c.JSON(cached.StatusCode, cached.Body)
		}
	}

	p, hasPrincipal := middleware.PrincipalFromContext(c.Request().Context())
	userID := ""
	if hasPrincipal {
		userID = p.UserID
	}
	session, err := h.checkouts.InitiateCheckout(c.Request().Context(), userID, req.CartID,
		req.ShippingAddress.toDomain(), req.BillingAddress.toDomain(), req.PaymentMethodTag)
	if err != nil {
		return fail(c, err)
	}

	body := envelope{Data: session}
	if key != "" && h.idem != nil {
		h.idem.Record(key, idempotency.Result{StatusCode: http.StatusCreated, Body: body})
	}
	return c.JSON(http.StatusCreated, body)
}

type completeCheckoutRequest struct {
	CustomerEmail string `json:"customerEmail" validate:"required,email"`
}

// completeCheckoutResponse bundles the three artifacts a successful
// checkout produces: the now-completed session, the order it created,
// and the gateway's payment order for the client to confirm against.
type completeCheckoutResponse struct {
	Session      *domain.CheckoutSession `json:"session"`
	Order        *domain.Order           `json:"order"`
	PaymentOrder any                     `json:"paymentOrder"`
}

func (h *CheckoutHandler) Complete(c echo.Context) error {
	var req completeCheckoutRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	session, order, paymentOrder, err := h.checkouts.Complete(c.Request().Context(), c.Param("sessionId"), req.CustomerEmail)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, completeCheckoutResponse{Session: session, Order: order, PaymentOrder: paymentOrder})
}
