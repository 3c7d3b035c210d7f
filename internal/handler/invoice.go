package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/dukerupert/freyja/internal/repository"
	"github.com/dukerupert/freyja/internal/service"
)

// InvoiceHandler exposes invoice retrieval and on-demand generation
// over HTTP (§4.5). Delivery-triggered generation normally happens via
// scheduler.SubscribeAutoInvoice; this lets an admin regenerate one
// manually.
type InvoiceHandler struct {
	invoices    repository.InvoiceRepository
	invoiceSvc  *service.InvoiceService
}

func NewInvoiceHandler(invoices repository.InvoiceRepository, invoiceSvc *service.InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{invoices: invoices, invoiceSvc: invoiceSvc}
}

func (h *InvoiceHandler) GetByOrder(c echo.Context) error {
	invoice, err := h.invoices.GetByOrderID(c.Request().Context(), c.Param("orderId"))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusOK, invoice)
}

func (h *InvoiceHandler) Generate(c echo.Context) error {
	invoice, err := h.invoiceSvc.Generate(c.Request().Context(), c.Param("orderId"))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, http.StatusCreated, invoice)
}
