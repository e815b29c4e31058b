// Package http exposes the orders context over gin: order placement and
// lookup, the payment gateway callback, and manual recovery.
package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/commercekit/settlement/internal/domains/orders/application"
	"github.com/commercekit/settlement/internal/domains/orders/ports"
	paymentdomain "github.com/commercekit/settlement/internal/domains/payment/domain"
	sharederrors "github.com/commercekit/settlement/internal/shared/errors"
)

// OwnerHeader carries the caller's identity; upstream auth is trusted.
const OwnerHeader = "X-USER-ID"

// Handler registers the orders routes.
type Handler struct {
	service   ports.Service
	recovery  ports.RecoveryOrchestrator
	responder *sharederrors.Responder
}

// NewHandler creates the orders HTTP handler.
func NewHandler(service ports.Service, recovery ports.RecoveryOrchestrator) *Handler {
	return &Handler{
		service:   service,
		recovery:  recovery,
		responder: sharederrors.NewResponder("", mapApplicationError),
	}
}

// Register mounts the routes under /api/v1.
func (h *Handler) Register(router gin.IRouter) {
	v1 := router.Group("/api/v1")
	orders := v1.Group("/orders")
	orders.POST("", h.createOrder)
	orders.GET("", h.listOrders)
	orders.GET("/:id", h.getOrder)
	orders.DELETE("/:id", h.cancelOrder)
	orders.POST("/:id/recover", h.recoverOrder)
	orders.POST("/reconcile", h.reconcileOrders)
	orders.POST("/payments/callback", h.paymentCallback)
}

func (h *Handler) createOrder(c *gin.Context) {
	owner := c.GetHeader(OwnerHeader)
	if owner == "" {
		h.responder.BadRequest(c, OwnerHeader+" header is required")
		return
	}
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.responder.BadRequest(c, err.Error())
		return
	}
	view, err := h.service.CreateOrder(c.Request.Context(), req.toInput(owner))
	if err != nil {
		h.responder.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toOrderResponse(view))
}

func (h *Handler) listOrders(c *gin.Context) {
	owner := c.GetHeader(OwnerHeader)
	if owner == "" {
		h.responder.BadRequest(c, OwnerHeader+" header is required")
		return
	}
	views, err := h.service.ListOrders(c.Request.Context(), owner)
	if err != nil {
		h.responder.RespondError(c, err)
		return
	}
	responses := make([]orderResponse, 0, len(views))
	for _, view := range views {
		responses = append(responses, toOrderResponse(view))
	}
	c.JSON(http.StatusOK, responses)
}

func (h *Handler) getOrder(c *gin.Context) {
	owner := c.GetHeader(OwnerHeader)
	if owner == "" {
		h.responder.BadRequest(c, OwnerHeader+" header is required")
		return
	}
	orderID, ok := h.orderID(c)
	if !ok {
		return
	}
	view, err := h.service.GetOrder(c.Request.Context(), owner, orderID)
	if err != nil {
		h.responder.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(view))
}

func (h *Handler) cancelOrder(c *gin.Context) {
	owner := c.GetHeader(OwnerHeader)
	if owner == "" {
		h.responder.BadRequest(c, OwnerHeader+" header is required")
		return
	}
	orderID, ok := h.orderID(c)
	if !ok {
		return
	}
	view, err := h.service.CancelOrder(c.Request.Context(), owner, orderID)
	if err != nil {
		h.responder.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(view))
}

func (h *Handler) recoverOrder(c *gin.Context) {
	orderID, ok := h.orderID(c)
	if !ok {
		return
	}
	if err := h.recovery.StartRecovery(c.Request.Context(), orderID); err != nil {
		h.responder.RespondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"orderId": orderID, "status": "recovery started"})
}

func (h *Handler) reconcileOrders(c *gin.Context) {
	report, err := h.service.ReconcilePending(c.Request.Context())
	if err != nil {
		h.responder.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, reconcileResponse{
		Examined:     report.Examined,
		Completed:    report.Completed,
		Canceled:     report.Canceled,
		StillPending: report.StillPending,
		Failed:       report.Failed,
	})
}

func (h *Handler) paymentCallback(c *gin.Context) {
	var req paymentCallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.responder.BadRequest(c, err.Error())
		return
	}
	orderID, err := strconv.ParseInt(req.OrderID, 10, 64)
	if err != nil {
		h.responder.BadRequest(c, "orderId must be numeric")
		return
	}
	err = h.service.HandleCallback(c.Request.Context(), ports.CallbackInput{
		OrderID:        orderID,
		TransactionKey: req.TransactionKey,
		Status:         paymentdomain.TxStatus(req.Status),
		Reason:         req.Reason,
	})
	if err != nil {
		h.responder.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orderId": orderID, "result": "processed"})
}

func (h *Handler) orderID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		h.responder.BadRequest(c, "order id must be a positive integer")
		return 0, false
	}
	return id, true
}

func mapApplicationError(err error) (sharederrors.ProblemDetail, bool) {
	var declined *application.PaymentDeclinedError
	switch {
	case errors.As(err, &declined):
		return sharederrors.NewPaymentRejectedProblem(declined.Code, declined.Message), true
	case errors.Is(err, application.ErrInvalidInput):
		return sharederrors.ErrValidation.WithDetail(err.Error()), true
	case errors.Is(err, application.ErrNotFound):
		return sharederrors.ErrNotFound.WithDetail(err.Error()), true
	case errors.Is(err, application.ErrResourceExhausted):
		return sharederrors.ErrUnprocessable.WithDetail(err.Error()), true
	case errors.Is(err, application.ErrOrderConflict):
		return sharederrors.ErrConflict.WithDetail(err.Error()), true
	default:
		return sharederrors.ProblemDetail{}, false
	}
}
