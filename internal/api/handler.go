package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"sushi-chatbot/internal/realtime"
	"sushi-chatbot/internal/service"
	"sushi-chatbot/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Handler contains the HTTP handlers
type Handler struct {
	orders  *service.OrderService
	catalog *service.CatalogService
	hub     *realtime.Hub
	env     string
	logger  *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(orders *service.OrderService, catalog *service.CatalogService, hub *realtime.Hub, env string) *Handler {
	return &Handler{
		orders:  orders,
		catalog: catalog,
		hub:     hub,
		env:     env,
		logger:  util.GetLogger(),
	}
}

// SetupRoutes sets up the HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/ws", h.hub.HandleWS)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/categories", h.listCategories)
		v1.POST("/categories", h.createCategory)
		v1.PUT("/categories/:id", h.updateCategory)
		v1.PATCH("/categories/:id/activate", h.setCategoryAvailability(true))
		v1.PATCH("/categories/:id/deactivate", h.setCategoryAvailability(false))

		v1.GET("/products", h.listProducts)
		v1.POST("/products", h.createProduct)
		v1.PUT("/products/:id", h.updateProduct)
		v1.PATCH("/products/:id/activate", h.setProductAvailability(true))
		v1.PATCH("/products/:id/deactivate", h.setProductAvailability(false))

		v1.GET("/orders", h.listOrders)
		v1.GET("/orders/:sequenceNumber", h.getOrder)
		v1.POST("/orders", h.createOrder)
		v1.PATCH("/orders/:sequenceNumber/status", h.updateOrderStatus)
	}
}

func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "API running",
		"time":    time.Now().Unix(),
	})
}

// respond writes the standard success envelope
func respond(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, gin.H{
		"success": true,
		"status":  status,
		"message": message,
		"data":    data,
	})
}

// fail maps a service error onto the error envelope. Unclassified errors
// are downgraded to INTERNAL_ERROR with the detail suppressed outside
// development mode.
func (h *Handler) fail(c *gin.Context, err error) {
	if svcErr, ok := service.AsError(err); ok {
		c.JSON(svcErr.Status, gin.H{
			"success":    false,
			"statusCode": svcErr.Status,
			"message":    svcErr.Message,
		})
		return
	}

	h.logger.Error("Unhandled error",
		zap.String("path", c.FullPath()),
		zap.Error(err))

	message := "internal server error"
	if h.env == "development" {
		message = err.Error()
	}
	c.JSON(http.StatusInternalServerError, gin.H{
		"success":    false,
		"statusCode": http.StatusInternalServerError,
		"message":    message,
	})
}

func (h *Handler) listCategories(c *gin.Context) {
	showAll := c.Query("showAll") == "true"

	categories, err := h.catalog.ListCategories(c.Request.Context(), showAll)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "categories found", categories)
}

func (h *Handler) createCategory(c *gin.Context) {
	var input service.CategoryInput
	if err := c.ShouldBindJSON(&input); err != nil {
		h.fail(c, service.ValidationError("invalid request body"))
		return
	}

	category, err := h.catalog.CreateCategory(c.Request.Context(), &input)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusCreated, "category created successfully", category)
}

func (h *Handler) updateCategory(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	var input service.CategoryInput
	if err := c.ShouldBindJSON(&input); err != nil {
		h.fail(c, service.ValidationError("invalid request body"))
		return
	}

	category, err := h.catalog.UpdateCategory(c.Request.Context(), id, &input)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "category updated successfully", category)
}

func (h *Handler) setCategoryAvailability(available bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := h.pathID(c, "id")
		if !ok {
			return
		}

		category, err := h.catalog.SetCategoryAvailability(c.Request.Context(), id, available)
		if err != nil {
			h.fail(c, err)
			return
		}
		respond(c, http.StatusOK, "category updated successfully", category)
	}
}

func (h *Handler) listProducts(c *gin.Context) {
	showAll := c.Query("showAll") == "true"

	products, err := h.catalog.ListProducts(c.Request.Context(), showAll)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "products found", products)
}

func (h *Handler) createProduct(c *gin.Context) {
	var input service.ProductInput
	if err := c.ShouldBindJSON(&input); err != nil {
		h.fail(c, service.ValidationError("invalid request body"))
		return
	}

	product, err := h.catalog.CreateProduct(c.Request.Context(), &input)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusCreated, "product created successfully", product)
}

func (h *Handler) updateProduct(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	var input service.ProductInput
	if err := c.ShouldBindJSON(&input); err != nil {
		h.fail(c, service.ValidationError("invalid request body"))
		return
	}

	product, err := h.catalog.UpdateProduct(c.Request.Context(), id, &input)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "product updated successfully", product)
}

func (h *Handler) setProductAvailability(available bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := h.pathID(c, "id")
		if !ok {
			return
		}

		product, err := h.catalog.SetProductAvailability(c.Request.Context(), id, available)
		if err != nil {
			h.fail(c, err)
			return
		}
		respond(c, http.StatusOK, "product updated successfully", product)
	}
}

func (h *Handler) listOrders(c *gin.Context) {
	includeCompleted := c.Query("includeCompleted") == "true"
	nameFilter := c.Query("name")

	orders, err := h.orders.ListOrders(c.Request.Context(), includeCompleted, nameFilter)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "orders found", orders)
}

func (h *Handler) getOrder(c *gin.Context) {
	sequenceNumber, ok := h.pathID(c, "sequenceNumber")
	if !ok {
		return
	}

	order, err := h.orders.GetOrder(c.Request.Context(), sequenceNumber, c.Query("customerName"))
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "order found", order)
}

// createOrder decodes the body itself so unknown fields can be rejected,
// which gin's binding cannot express.
func (h *Handler) createOrder(c *gin.Context) {
	var input service.CreateOrderInput

	decoder := json.NewDecoder(c.Request.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&input); err != nil {
		h.fail(c, service.ValidationError("invalid request body: "+err.Error()))
		return
	}

	order, err := h.orders.CreateOrder(c.Request.Context(), &input)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusCreated, "order created successfully", order)
}

func (h *Handler) updateOrderStatus(c *gin.Context) {
	sequenceNumber, ok := h.pathID(c, "sequenceNumber")
	if !ok {
		return
	}

	customerName := c.Query("customerName")
	if customerName == "" {
		h.fail(c, service.ValidationError("the customer name is required"))
		return
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Status == "" {
		h.fail(c, service.ValidationError("the status is required"))
		return
	}

	order, err := h.orders.UpdateStatus(c.Request.Context(), sequenceNumber, body.Status, customerName)
	if err != nil {
		h.fail(c, err)
		return
	}
	respond(c, http.StatusOK, "order status updated successfully", order)
}

func (h *Handler) pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		h.fail(c, service.ValidationError("invalid "+name))
		return 0, false
	}
	return id, true
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
