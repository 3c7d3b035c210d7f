package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/dukerupert/freyja/internal/domain"
	"github.com/dukerupert/freyja/internal/middleware"
	"github.com/dukerupert/freyja/internal/repository"
	"github.com/dukerupert/freyja/internal/service"
)

// ReturnHandler exposes the return-request lifecycle over HTTP (§4.5):
// customer request, admin approval/rejection/pickup advancement/
// inspection, and completion.
type ReturnHandler struct {
	returns    repository.ReturnRepository
	returnSvc  *service.ReturnService
}

func NewReturnHandler(returns repository.ReturnRepository, returnSvc *service.ReturnService) *ReturnHandler {
	return &ReturnHandler{returns: returns, returnSvc: returnSvc}
}

type returnLineRequest struct {
	OrderItemID string `json:"orderItemId" validate:"required"`
	Quantity    int    `json:"quantity" validate:"required,min=1"`
	Reason      string `json:"reason"`
}

type requestReturnRequest struct {
	OrderID      string              `json:"orderId" validate:"required"`
	Lines        []returnLineRequest `json:"lines" validate:"required,min=1,dive"`
	Reason       string              `json:"reason" validate:"required"`
	PickupAddr   addressRequest      `json:"pickupAddress" validate:"required"`
}

func (h *ReturnHandler) Request(c echo.Context) error {
	var req requestReturnRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	p, ok2 := middleware.PrincipalFromContext(c.Request().Context())
	if !ok2 || p.UserID == "" {
		return fail(c, domain.Unauthorized("handler.return.Request", "authentication required"))
	}
	lines := make([]domain.ReturnLineItem, len(req.Lines))
	for i, l := range req.Lines {
		lines[i] = domain.ReturnLineItem{OrderItemID: l.OrderItemID, Quantity: l.Quantity, Reason: l.Reason}
	}
	rt, err := h.returnSvc.Request(c.Request().Context(), req.OrderID, p.UserID, lines, req.Reason, req.PickupAddr.toDomain())
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusCreated, rt)
}

func (h *ReturnHandler) Get(c echo.Context) error {
	rt, err := h.returns.Get(c.Request().Context(), c.Param("returnId"))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, rt)
}

type approveReturnRequest struct {
	PickupScheduledFor time.Time `json:"pickupScheduledFor" validate:"required"`
}

func (h *ReturnHandler) Approve(c echo.Context) error {
	var req approveReturnRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	rt, err := h.returnSvc.Approve(c.Request().Context(), c.Param("returnId"), req.PickupScheduledFor)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, rt)
}

type rejectReturnRequest struct {
	Notes string `json:"notes"`
}

func (h *ReturnHandler) Reject(c echo.Context) error {
	var req rejectReturnRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	rt, err := h.returnSvc.Reject(c.Request().Context(), c.Param("returnId"), req.Notes)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, rt)
}

type advancePickupRequest struct {
	Status     domain.ReturnStatus `json:"status" validate:"required"`
	CarrierAWB string              `json:"carrierAwb"`
}

func (h *ReturnHandler) AdvancePickup(c echo.Context) error {
	var req advancePickupRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	rt, err := h.returnSvc.AdvancePickup(c.Request().Context(), c.Param("returnId"), req.Status, req.CarrierAWB)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, rt)
}

type inspectReturnRequest struct {
	Verdict       domain.InspectionVerdict `json:"verdict" validate:"required"`
	Notes         string                   `json:"notes"`
	AcceptedLines []returnLineRequest      `json:"acceptedLines" validate:"dive"`
	RefundMethod  domain.RefundMethod      `json:"refundMethod" validate:"required"`
}

func (h *ReturnHandler) Inspect(c echo.Context) error {
	var req inspectReturnRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	accepted := make([]service.LineRequest, len(req.AcceptedLines))
	for i, l := range req.AcceptedLines {
		accepted[i] = service.LineRequest{OrderItemID: l.OrderItemID, Quantity: l.Quantity}
	}
	rt, err := h.returnSvc.Inspect(c.Request().Context(), c.Param("returnId"), req.Verdict, req.Notes, accepted, req.RefundMethod)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, rt)
}

func (h *ReturnHandler) Complete(c echo.Context) error {
	rt, err := h.returnSvc.Complete(c.Request().Context(), c.Param("returnId"))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, rt)
}
