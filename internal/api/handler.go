package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"copas-crm/config"
	"copas-crm/internal/models"
	"copas-crm/internal/service"
	"copas-crm/internal/util"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// OrderStatusValidator backs the "orderstatus" binding tag used by
// OrderStatusUpdate.
var OrderStatusValidator validator.Func = func(fl validator.FieldLevel) bool {
	return models.IsValidOrderStatus(fl.Field().String())
}

// Handler contains HTTP handlers
type Handler struct {
	cfg    *config.Config
	orders *service.OrderService
}

// NewHandler creates a new HTTP handler
func NewHandler(cfg *config.Config, orders *service.OrderService) *Handler {
	return &Handler{
		cfg:    cfg,
		orders: orders,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("orderstatus", OrderStatusValidator)
	}

	router.Use(gin.Recovery())
	router.Use(requestIDMiddleware())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     h.cfg.CORS.Origins,
		AllowMethods:     []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "X-Webhook-Token", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", h.healthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.POST("/webhook/shopify", h.verifyWebhookToken(), h.receiveShopifyOrder)

	router.GET("/orders", h.listOrders)
	router.GET("/orders/:id", h.getOrder)
	router.PATCH("/orders/:id/status", h.updateStatus)
	router.POST("/orders/:id/resend-whatsapp", h.resendWhatsApp)
	router.POST("/orders/:id/send-message", h.sendMessage)
	router.GET("/stats", h.dashboardStats)
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "copas-crm",
		"time":    time.Now().Unix(),
	})
}

// verifyWebhookToken checks the shared secret the automation tool
// sends in X-Webhook-Token. An empty configured secret skips the
// check (dev mode).
func (h *Handler) verifyWebhookToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		secret := h.cfg.Webhook.SecretToken
		if secret != "" && c.GetHeader("X-Webhook-Token") != secret {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid webhook token",
			})
			return
		}
		c.Next()
	}
}

// receiveShopifyOrder handles one forwarded Shopify order
func (h *Handler) receiveShopifyOrder(c *gin.Context) {
	var payload models.ShopifyOrderPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid order payload",
			"details": err.Error(),
		})
		return
	}

	resp, err := h.orders.IngestOrder(c.Request.Context(), &payload)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "failed to process order",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// listOrders handles order listing with filters and pagination
func (h *Handler) listOrders(c *gin.Context) {
	status := c.Query("status")

	var whatsappSent *bool
	if v := c.Query("whatsapp_sent"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "whatsapp_sent must be true or false"})
			return
		}
		whatsappSent = &b
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 1 || limit > 200 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 200"})
		return
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "offset must be zero or greater"})
		return
	}

	orders := h.orders.ListOrders(c.Request.Context(), status, whatsappSent, limit, offset)
	c.JSON(http.StatusOK, gin.H{
		"orders": orders,
		"count":  len(orders),
	})
}

// getOrder handles order detail with send history
func (h *Handler) getOrder(c *gin.Context) {
	detail := h.orders.GetOrder(c.Request.Context(), c.Param("id"))
	if detail == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		return
	}
	c.JSON(http.StatusOK, detail)
}

// updateStatus handles workflow status changes from the CRM
func (h *Handler) updateStatus(c *gin.Context) {
	var req models.OrderStatusUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid status, use one of: new, in-progress, shipped, completed, cancelled",
			"details": err.Error(),
		})
		return
	}

	updated, err := h.orders.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status, req.Notes)
	if errors.Is(err, service.ErrOrderNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "failed to update order status",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"order":   updated,
	})
}

// resendWhatsApp handles the manual resend action
func (h *Handler) resendWhatsApp(c *gin.Context) {
	result, err := h.orders.ResendWhatsApp(c.Request.Context(), c.Param("id"))
	if errors.Is(err, service.ErrOrderNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		return
	}
	if errors.Is(err, service.ErrNoPhoneOnFile) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "order has no phone on file"})
		return
	}

	if !result.Success {
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   "failed to send whatsapp message",
			"details": result.Error,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "whatsapp message resent",
	})
}

// sendMessage handles free-text replies to an order's customer
func (h *Handler) sendMessage(c *gin.Context) {
	var req struct {
		Message string `json:"message" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message is required"})
		return
	}

	result, err := h.orders.SendCustomMessage(c.Request.Context(), c.Param("id"), req.Message)
	if errors.Is(err, service.ErrOrderNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		return
	}
	if errors.Is(err, service.ErrNoPhoneOnFile) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "order has no phone on file"})
		return
	}

	if !result.Success {
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   "failed to send whatsapp message",
			"details": result.Error,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// dashboardStats handles the CRM dashboard counts
func (h *Handler) dashboardStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.orders.DashboardStats(c.Request.Context()))
}

// requestIDMiddleware tags every request with an id for log
// correlation.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		c.Writer.Header().Set("X-Request-ID", id)
		c.Set("request_id", id)
		c.Next()
	}
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
