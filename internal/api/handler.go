package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"warehouse-service/internal/models"
	"warehouse-service/internal/service"
	"warehouse-service/internal/store"
	"warehouse-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler contains HTTP handlers
type Handler struct {
	orders        *service.OrderService
	products      *service.ProductService
	picking       *service.PickingService
	shipping      *service.ShippingService
	webhooks      *service.WebhookService
	stockRequests *service.StockRequestService
}

// NewHandler creates a new HTTP handler
func NewHandler(
	orders *service.OrderService,
	products *service.ProductService,
	picking *service.PickingService,
	shipping *service.ShippingService,
	webhooks *service.WebhookService,
	stockRequests *service.StockRequestService,
) *Handler {
	return &Handler{
		orders:        orders,
		products:      products,
		picking:       picking,
		shipping:      shipping,
		webhooks:      webhooks,
		stockRequests: stockRequests,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/products", h.createProduct)
		v1.GET("/products", h.listProducts)
		v1.GET("/products/:id", h.getProduct)
		v1.PATCH("/products/:id", h.updateProduct)
		v1.POST("/products/:id/variants", h.addVariant)
		v1.GET("/products/:id/inventory-logs", h.getInventoryLogs)
		v1.POST("/inventory/adjust", h.adjustStock)

		v1.POST("/orders", h.createOrder)
		v1.GET("/orders", h.listOrders)
		v1.GET("/orders/:id", h.getOrder)
		v1.POST("/orders/:id/cancel", h.cancelOrder)
		v1.PATCH("/orders/:id/status", h.updateOrderStatus)
		v1.GET("/orders/:id/price-breakdown", h.getPriceBreakdown)
		v1.GET("/orders/:id/inventory-logs", h.getOrderLedger)
		v1.POST("/orders/:id/label", h.buyLabel)
		v1.GET("/orders/:id/rates", h.getRates)
		v1.POST("/orders/:id/refund", h.refundShipment)
		v1.POST("/orders/:id/notify", h.notifyOrder)

		v1.POST("/picking-lists", h.createBatch)
		v1.GET("/picking-lists", h.listBatches)
		v1.GET("/picking-lists/:id", h.getBatch)
		v1.GET("/picking-lists/:id/progress", h.getBatchProgress)
		v1.DELETE("/picking-lists/:id", h.deleteBatch)
		v1.DELETE("/picking-lists/:id/orders/:orderId", h.removeOrderFromBatch)
		v1.POST("/picking-lists/:id/archive", h.archiveBatch)
		v1.POST("/scan", h.scan)

		v1.POST("/stock-requests", h.createStockRequest)
		v1.GET("/stock-requests", h.listStockRequests)
		v1.GET("/stock-requests/:id", h.getStockRequest)
		v1.PATCH("/stock-requests/:id/status", h.transitionStockRequest)
		v1.POST("/stock-requests/:id/receive", h.receiveStockRequest)

		v1.POST("/webhooks/tracking", h.trackingWebhook)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// respondError maps service errors onto HTTP status codes.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case service.IsValidation(err), service.IsConflict(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case service.IsExternal(err):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func pagination(c *gin.Context) (offset, limit int) {
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "100"))
	return offset, limit
}

func (h *Handler) createProduct(c *gin.Context) {
	var req service.CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	product, err := h.products.CreateProduct(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, product)
}

func (h *Handler) listProducts(c *gin.Context) {
	offset, limit := pagination(c)
	products, err := h.products.ListProducts(c.Request.Context(), c.Query("category"), offset, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products, "count": len(products)})
}

func (h *Handler) getProduct(c *gin.Context) {
	product, err := h.products.GetProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *Handler) updateProduct(c *gin.Context) {
	var req service.UpdateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	product, err := h.products.UpdateProduct(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *Handler) addVariant(c *gin.Context) {
	var req service.CreateVariantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	variant, err := h.products.AddVariant(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, variant)
}

func (h *Handler) getInventoryLogs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	logs, err := h.products.GetInventoryLogs(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": logs, "count": len(logs)})
}

func (h *Handler) adjustStock(c *gin.Context) {
	var req service.AdjustStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	product, err := h.products.AdjustStock(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

// createOrder handles order creation
func (h *Handler) createOrder(c *gin.Context) {
	var req service.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	order, err := h.orders.CreateOrder(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func (h *Handler) listOrders(c *gin.Context) {
	offset, limit := pagination(c)
	orders, err := h.orders.ListOrders(c.Request.Context(), c.Query("status"), offset, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders, "count": len(orders)})
}

// getOrder accepts either an order id or an order number.
func (h *Handler) getOrder(c *gin.Context) {
	order, err := h.orders.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) cancelOrder(c *gin.Context) {
	order, err := h.orders.CancelOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) updateOrderStatus(c *gin.Context) {
	var req struct {
		Status string `json:"status" binding:"required"`
		Note   string `json:"note"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	order, err := h.orders.UpdateStatus(c.Request.Context(), c.Param("id"), models.OrderStatus(req.Status), req.Note)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) getPriceBreakdown(c *gin.Context) {
	breakdown, err := h.orders.GetPriceBreakdown(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, breakdown)
}

func (h *Handler) getOrderLedger(c *gin.Context) {
	logs, err := h.orders.GetOrderLedger(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": logs, "count": len(logs)})
}

func (h *Handler) buyLabel(c *gin.Context) {
	var req service.BuyLabelRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
			return
		}
	}
	order, err := h.shipping.BuyLabel(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) getRates(c *gin.Context) {
	rates, err := h.shipping.GetRates(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rates": rates, "count": len(rates)})
}

func (h *Handler) refundShipment(c *gin.Context) {
	order, err := h.shipping.RefundShipment(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) notifyOrder(c *gin.Context) {
	results, err := h.webhooks.NotifyOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

func (h *Handler) createBatch(c *gin.Context) {
	var req service.CreateBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	batch, err := h.picking.CreateBatch(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, batch)
}

func (h *Handler) listBatches(c *gin.Context) {
	offset, limit := pagination(c)
	batches, err := h.picking.ListBatches(c.Request.Context(), offset, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"picking_lists": batches, "count": len(batches)})
}

func (h *Handler) getBatch(c *gin.Context) {
	batch, err := h.picking.GetBatch(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, batch)
}

func (h *Handler) getBatchProgress(c *gin.Context) {
	progress, err := h.picking.GetProgress(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, progress)
}

func (h *Handler) deleteBatch(c *gin.Context) {
	result, err := h.picking.DeleteBatch(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) removeOrderFromBatch(c *gin.Context) {
	result, err := h.picking.RemoveOrder(c.Request.Context(), c.Param("id"), c.Param("orderId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) archiveBatch(c *gin.Context) {
	batch, err := h.picking.ArchiveBatch(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, batch)
}

func (h *Handler) scan(c *gin.Context) {
	var req struct {
		QRCode string `json:"qr_code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	result, err := h.picking.Scan(c.Request.Context(), req.QRCode)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) createStockRequest(c *gin.Context) {
	var req service.CreateStockRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	request, err := h.stockRequests.Create(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, request)
}

func (h *Handler) listStockRequests(c *gin.Context) {
	offset, limit := pagination(c)
	requests, err := h.stockRequests.List(c.Request.Context(), c.Query("status"), offset, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stock_requests": requests, "count": len(requests)})
}

func (h *Handler) getStockRequest(c *gin.Context) {
	request, err := h.stockRequests.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, request)
}

func (h *Handler) transitionStockRequest(c *gin.Context) {
	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	request, err := h.stockRequests.Transition(c.Request.Context(), c.Param("id"), models.StockRequestStatus(req.Status))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, request)
}

func (h *Handler) receiveStockRequest(c *gin.Context) {
	var req service.ReceiveItemsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	request, err := h.stockRequests.Receive(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, request)
}

// trackingWebhook always acks with 200 so the carrier does not retry;
// payloads we cannot use report their fate in the action field.
func (h *Handler) trackingWebhook(c *gin.Context) {
	var event service.TrackingEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		c.JSON(http.StatusOK, gin.H{"action": service.ActionInvalidPayload})
		return
	}
	result, err := h.webhooks.HandleTrackingEvent(c.Request.Context(), &event)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
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
