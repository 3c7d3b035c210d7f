package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/dukerupert/freyja/internal/domain"
	"github.com/dukerupert/freyja/internal/middleware"
	"github.com/dukerupert/freyja/internal/money"
	"github.com/dukerupert/freyja/internal/repository"
	"github.com/dukerupert/freyja/internal/service"
)

// RefundHandler exposes refund request and the admin approval/process
// surface over HTTP (§4.5).
type RefundHandler struct {
	refunds    repository.RefundRepository
	refundSvc  *service.RefundService
}

func NewRefundHandler(refunds repository.RefundRepository, refundSvc *service.RefundService) *RefundHandler {
	return &RefundHandler{refunds: refunds, refundSvc: refundSvc}
}

type refundLineRequest struct {
	OrderItemID string `json:"orderItemId" validate:"required"`
	Quantity    int    `json:"quantity" validate:"required,min=1"`
}

type requestRefundRequest struct {
	OrderID string              `json:"orderId" validate:"required"`
	Lines   []refundLineRequest `json:"lines" validate:"required,min=1,dive"`
	Reason  string              `json:"reason" validate:"required"`
	Method  domain.RefundMethod `json:"method" validate:"required"`
}

func (h *RefundHandler) Request(c echo.Context) error {
	var req requestRefundRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	lines := make([]service.LineRequest, len(req.Lines))
	for i, l := range req.Lines {
		lines[i] = service.LineRequest{OrderItemID: l.OrderItemID, Quantity: l.Quantity}
	}
	p, hasPrincipal := middleware.PrincipalFromContext(c.Request().Context())
	actor, actorID := domain.ActorCustomer, ""
	if hasPrincipal {
		actorID = p.UserID
		if p.IsAdmin() {
			actor = domain.ActorAdmin
		}
	}
	refund, err := h.refundSvc.Request(c.Request().Context(), req.OrderID, lines, req.Reason, req.Method, actor, actorID)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusCreated, refund)
}

func (h *RefundHandler) Get(c echo.Context) error {
	refund, err := h.refunds.Get(c.Request().Context(), c.Param("refundId"))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, refund)
}

type approveRefundRequest struct {
	ApprovedAmount money.Amount `json:"approvedAmount" validate:"required,min=1"`
}

func (h *RefundHandler) Approve(c echo.Context) error {
	var req approveRefundRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	p, _ := middleware.PrincipalFromContext(c.Request().Context())
	refund, err := h.refundSvc.Approve(c.Request().Context(), c.Param("refundId"), req.ApprovedAmount, p.UserID)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, refund)
}

type rejectRefundRequest struct {
	Reason string `json:"reason" validate:"required"`
}

func (h *RefundHandler) Reject(c echo.Context) error {
	var req rejectRefundRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	p, _ := middleware.PrincipalFromContext(c.Request().Context())
	refund, err := h.refundSvc.Reject(c.Request().Context(), c.Param("refundId"), p.UserID, req.Reason)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, refund)
}

func (h *RefundHandler) Process(c echo.Context) error {
	refund, err := h.refundSvc.Process(c.Request().Context(), c.Param("refundId"))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, refund)
}
