package handler

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dukerupert/freyja/internal/metrics"
	"github.com/dukerupert/freyja/internal/middleware"
)

// Handlers bundles every HTTP surface the order lifecycle core exposes.
type Handlers struct {
	Cart     *CartHandler
	Checkout *CheckoutHandler
	Order    *OrderHandler
	Refund   *RefundHandler
	Return   *ReturnHandler
	Invoice  *InvoiceHandler
	Payment  *PaymentHandler
	Webhook  *WebhookHandler
}

// RegisterRoutes wires every route group onto e: guest/consumer routes
// under OptionalJWTAuth (cart and checkout are guest-reachable), the
// authenticated consumer surface under JWTAuth, the admin surface under
// JWTAuth+RequireAdmin, and the unauthenticated gateway webhook.
func RegisterRoutes(e *echo.Echo, h Handlers, jwtSecret string) {
	e.Use(echomw.Recover())
	e.Use(echomw.CORS())
	e.Use(metrics.EchoMiddleware())

	e.GET("/health", func(c echo.Context) error { return okMessage(c, 200, "ok", nil) })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	e.POST("/webhooks/stripe", h.Webhook.Stripe)

	guest := e.Group("", middleware.OptionalJWTAuth(jwtSecret))
	guest.GET("/carts/me", h.Cart.Get)
	guest.POST("/carts/items", h.Cart.AddItem)
	guest.PATCH("/carts/:cartId/items/:itemId", h.Cart.UpdateItem)
	guest.DELETE("/carts/:cartId/items/:itemId", h.Cart.RemoveItem)
	guest.DELETE("/carts/:cartId", h.Cart.Clear)
	guest.POST("/carts/:cartId/coupon", h.Cart.ApplyCoupon)
	guest.POST("/checkout", h.Checkout.Initiate)
	guest.POST("/checkout/:sessionId/complete", h.Checkout.Complete)

	auth := e.Group("", middleware.JWTAuth(jwtSecret))
	auth.POST("/carts/merge", h.Cart.Merge)
	auth.GET("/orders/:orderId", h.Order.Get)
	auth.GET("/orders/:orderId/history", h.Order.History)
	auth.POST("/orders/:orderId/cancel", h.Order.Cancel)
	auth.POST("/refunds", h.Refund.Request)
	auth.GET("/refunds/:refundId", h.Refund.Get)
	auth.POST("/returns", h.Return.Request)
	auth.GET("/returns/:returnId", h.Return.Get)
	auth.GET("/orders/:orderId/invoice", h.Invoice.GetByOrder)
	auth.POST("/payments/verify-signature", h.Payment.VerifySignature)

	admin := e.Group("/admin", middleware.JWTAuth(jwtSecret), middleware.RequireAdmin)
	admin.POST("/orders/:orderId/transition", h.Order.Transition)
	admin.POST("/orders/:orderId/tracking", h.Order.SetTracking)
	admin.POST("/orders/:orderId/fulfill", h.Order.MarkFulfilled)
	admin.POST("/refunds/:refundId/approve", h.Refund.Approve)
	admin.POST("/refunds/:refundId/reject", h.Refund.Reject)
	admin.POST("/refunds/:refundId/process", h.Refund.Process)
	admin.POST("/returns/:returnId/approve", h.Return.Approve)
	admin.POST("/returns/:returnId/reject", h.Return.Reject)
	admin.POST("/returns/:returnId/pickup", h.Return.AdvancePickup)
	admin.POST("/returns/:returnId/inspect", h.Return.Inspect)
	admin.POST("/returns/:returnId/complete", h.Return.Complete)
	admin.POST("/orders/:orderId/invoice", h.Invoice.Generate)
	admin.GET("/payments/stats", h.Payment.Stats)
}
