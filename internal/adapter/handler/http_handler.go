package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/rl1809/book-order/internal/core/domain"
	"github.com/rl1809/book-order/internal/core/service"
	"github.com/rl1809/book-order/internal/port"
)

const idempotencyHeader = "Idempotency-Key"

type HTTPHandler struct {
	orders      *service.OrderService
	books       *service.BookService
	inventory   *service.InventoryService
	idempotency port.IdempotencyStore
	logger      *zap.Logger
}

func NewHTTPHandler(
	orders *service.OrderService,
	books *service.BookService,
	inventory *service.InventoryService,
	idempotency port.IdempotencyStore,
	logger *zap.Logger,
) *HTTPHandler {
	return &HTTPHandler{
		orders:      orders,
		books:       books,
		inventory:   inventory,
		idempotency: idempotency,
		logger:      logger.Named("http"),
	}
}

// NewRouter wires every route onto a fresh gin engine.
func NewRouter(h *HTTPHandler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), h.requestLogger())

	router.GET("/health", h.HealthCheck)

	api := router.Group("/api")
	{
		api.GET("/books", h.ListBooks)
		api.GET("/books/:id", h.GetBook)
		api.GET("/inventory/:id", h.GetStock)

		api.POST("/orders", h.CreateOrder)
		api.GET("/orders", h.ListOrders)
		api.GET("/orders/:id", h.GetOrder)
		api.POST("/orders/:id/confirm", h.ConfirmOrder)
		api.POST("/orders/:id/cancel", h.CancelOrder)
		api.POST("/orders/:id/deliver", h.DeliverOrder)
	}
	return router
}

func (h *HTTPHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *HTTPHandler) ListBooks(c *gin.Context) {
	books, err := h.books.ListBooks(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	out := make([]bookResponse, 0, len(books))
	for _, b := range books {
		out = append(out, toBookResponse(b))
	}
	c.JSON(http.StatusOK, out)
}

func (h *HTTPHandler) GetBook(c *gin.Context) {
	book, err := h.books.GetBook(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBookResponse(book))
}

func (h *HTTPHandler) GetStock(c *gin.Context) {
	item, err := h.inventory.GetStock(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toInventoryResponse(item))
}

// CreateOrder honours an optional Idempotency-Key header: a key seen
// before is rejected, and released again if the order could not be
// created so the client may retry.
func (h *HTTPHandler) CreateOrder(c *gin.Context) {
	ctx := c.Request.Context()

	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: errorBody{Message: "invalid request body", Code: CodeValidation}})
		return
	}

	key := c.GetHeader(idempotencyHeader)
	if key != "" {
		ok, err := h.idempotency.Acquire(ctx, key)
		if err != nil {
			h.writeError(c, err)
			return
		}
		if !ok {
			h.writeError(c, ErrDuplicateRequest)
			return
		}
	}

	order, err := retryOnConflict(ctx, func(ctx context.Context) (*domain.Order, error) {
		return h.orders.CreateOrder(ctx, req.CustomerName, req.items())
	})
	if err != nil {
		if key != "" {
			if relErr := h.idempotency.Release(ctx, key); relErr != nil {
				h.logger.Error("failed to release idempotency key", zap.String("key", key), zap.Error(relErr))
			}
		}
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toOrderResponse(order))
}

func (h *HTTPHandler) ListOrders(c *gin.Context) {
	orders, err := h.orders.ListOrders(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	out := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderResponse(o))
	}
	c.JSON(http.StatusOK, out)
}

func (h *HTTPHandler) GetOrder(c *gin.Context) {
	id := c.Param("id")
	order, err := h.orders.FindOrderByID(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if order == nil {
		h.writeError(c, domain.NewOrderNotFound(id))
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(order))
}

func (h *HTTPHandler) ConfirmOrder(c *gin.Context) {
	h.transition(c, h.orders.ConfirmOrder)
}

func (h *HTTPHandler) CancelOrder(c *gin.Context) {
	h.transition(c, h.orders.CancelOrder)
}

func (h *HTTPHandler) DeliverOrder(c *gin.Context) {
	h.transition(c, h.orders.DeliverOrder)
}

func (h *HTTPHandler) transition(c *gin.Context, op func(ctx context.Context, orderID string) (*domain.Order, error)) {
	id := c.Param("id")
	order, err := retryOnConflict(c.Request.Context(), func(ctx context.Context) (*domain.Order, error) {
		return op(ctx, id)
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(order))
}

func (h *HTTPHandler) writeError(c *gin.Context, err error) {
	status, code := httpStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		message = "internal error"
	}
	c.JSON(status, errorResponse{Error: errorBody{Message: message, Code: code}})
}

func (h *HTTPHandler) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		h.logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
