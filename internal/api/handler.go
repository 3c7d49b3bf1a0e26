package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/Fallstop/super-tracker-nz/internal/models"
	"github.com/Fallstop/super-tracker-nz/internal/store"
	"github.com/Fallstop/super-tracker-nz/internal/util"
	"github.com/Fallstop/super-tracker-nz/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 500
)

// CatalogReader is the read side of the catalog store.
type CatalogReader interface {
	Ping(ctx context.Context) error
	GetProductByBarcode(ctx context.Context, barcode string) (*models.CatalogProduct, error)
	GetPriceHistory(ctx context.Context, productID int64, limit int) ([]models.PriceObservation, error)
}

// SweepController exposes the scheduler to operators.
type SweepController interface {
	Trigger() bool
	Status() worker.Status
}

// Handler contains HTTP handlers
type Handler struct {
	catalog   CatalogReader
	scheduler SweepController
	logger    *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(catalog CatalogReader, scheduler SweepController) *Handler {
	return &Handler{
		catalog:   catalog,
		scheduler: scheduler,
		logger:    util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(requestLogger(h.logger))

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/status", h.getStatus)
		v1.POST("/sweeps", h.triggerSweep)
		v1.GET("/products/:barcode", h.getProduct)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck reports ready once the database answers.
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.catalog.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "unavailable",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

func (h *Handler) getStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.scheduler.Status())
}

// triggerSweep queues a pass; it never waits for the pass itself.
func (h *Handler) triggerSweep(c *gin.Context) {
	queued := h.scheduler.Trigger()
	h.logger.Info("Sweep requested over HTTP", zap.Bool("queued", queued))

	c.JSON(http.StatusAccepted, gin.H{
		"queued": queued,
	})
}

// getProduct returns a catalog entry with its most recent prices.
func (h *Handler) getProduct(c *gin.Context) {
	barcode := c.Param("barcode")

	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxHistoryLimit {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid limit",
			})
			return
		}
		limit = n
	}

	product, err := h.catalog.GetProductByBarcode(c.Request.Context(), barcode)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "Product not found",
		})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to load product",
			"details": err.Error(),
		})
		return
	}

	history, err := h.catalog.GetPriceHistory(c.Request.Context(), product.ID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to load price history",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"product": product,
		"prices":  history,
	})
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

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Debug("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
