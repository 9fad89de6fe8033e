package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"inventory-service/internal/audit"
	"inventory-service/internal/auth"
	"inventory-service/internal/backup"
	"inventory-service/internal/documents"
	"inventory-service/internal/inventory"
	"inventory-service/internal/models"
	"inventory-service/internal/notify"
	"inventory-service/internal/service"
	"inventory-service/internal/store"
	"inventory-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Deps are the services the HTTP surface exposes
type Deps struct {
	Documents   *documents.Service
	Catalog     *service.CatalogService
	Orders      *service.OrderService
	Reconciler  *inventory.Reconciler
	Deriver     *notify.Deriver
	History     *notify.History
	Initializer *service.ServiceInitializer
	Audit       *audit.Writer
	Backups     *backup.Service
	Verifier    *auth.JWTVerifier
	Profiles    *auth.Profiles
	// Ready reports whether backing services are reachable
	Ready func(ctx context.Context) error
}

// Handler contains HTTP handlers
type Handler struct {
	Deps
	logger *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(d Deps) *Handler {
	return &Handler{Deps: d, logger: util.GetLogger()}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	v1.Use(h.authMiddleware())

	read := requirePermission(auth.PermRead)
	write := requirePermission(auth.PermWrite)
	del := requirePermission(auth.PermDelete)
	admin := requirePermission(auth.PermBackup)

	{
		v1.GET("/me", h.me)
		v1.POST("/session", h.startSession)
		v1.PUT("/users/:uid/role", admin, h.setRole)

		v1.GET("/collections/:collection", read, h.listCollection)
		v1.GET("/collections/:collection/stream", read, h.streamCollection)
		v1.GET("/collections/:collection/:id", read, h.getDocument)

		v1.GET("/products", read, h.listProducts)
		v1.POST("/products", write, h.addProduct)
		v1.PUT("/products/:id", write, h.updateProduct)
		v1.DELETE("/products/:id", del, h.deleteProduct)

		v1.GET("/categories", read, h.listCategories)
		v1.POST("/categories", write, h.addCategory)
		v1.PUT("/categories/:id", write, h.updateCategory)
		v1.DELETE("/categories/:id", del, h.deleteCategory)

		v1.GET("/vendors", read, h.listVendors)
		v1.POST("/vendors", write, h.addVendor)
		v1.PUT("/vendors/:id", write, h.updateVendor)
		v1.DELETE("/vendors/:id", del, h.deleteVendor)

		v1.GET("/orders", read, h.listOrders)
		v1.GET("/orders/pending", read, h.pendingOrders)
		v1.GET("/orders/:id", read, h.getOrder)
		v1.POST("/orders", write, h.addOrder)
		v1.PUT("/orders/:id", write, h.updateOrder)
		v1.DELETE("/orders/:id", del, h.deleteOrder)

		v1.GET("/inventory", read, h.listInventory)
		v1.PUT("/inventory/:productId", write, h.updateInventory)
		v1.GET("/low-stock", read, h.lowStock)
		v1.POST("/low-stock/check", write, h.checkLowStock)

		v1.GET("/notifications", read, h.listNotifications)
		v1.POST("/notifications/:id/read", read, h.markNotificationRead)

		v1.GET("/notification-history", read, h.listHistory)
		v1.POST("/notification-history", read, h.storeHistory)
		v1.GET("/notification-history/stats", read, h.historyStats)
		v1.POST("/notification-history/read-all", read, h.markAllHistoryRead)
		v1.POST("/notification-history/:id/read", read, h.markHistoryRead)
		v1.DELETE("/notification-history", del, h.clearHistory)

		v1.GET("/audit-logs", read, h.listAuditLogs)
		v1.GET("/audit-logs/stats", read, h.auditStats)
		v1.POST("/audit-logs/retention", admin, h.runRetention)

		v1.GET("/backups", admin, h.listBackups)
		v1.POST("/backups", admin, h.createBackup)
		v1.GET("/backups/stats", admin, h.backupStats)
		v1.POST("/backups/validate", admin, h.validateBackup)
		v1.POST("/backups/restore", admin, h.restoreBackup)
		v1.DELETE("/backups/:id", admin, h.deleteBackup)
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
	if h.Ready != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.Ready(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "unavailable",
				"details": err.Error(),
			})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

func (h *Handler) me(c *gin.Context) {
	id, _ := auth.FromContext(c.Request.Context())
	c.JSON(http.StatusOK, id)
}

func (h *Handler) startSession(c *gin.Context) {
	id, _ := auth.FromContext(c.Request.Context())
	h.Profiles.TouchLogin(c.Request.Context(), id.UID)
	c.JSON(http.StatusOK, id)
}

func (h *Handler) setRole(c *gin.Context) {
	var req struct {
		Role string `json:"role" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.Profiles.SetRole(c.Request.Context(), c.Param("uid"), req.Role); err != nil {
		respondError(c, "Failed to set role", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// bindDocument reads a JSON object body
func bindDocument(c *gin.Context) (models.Document, bool) {
	var doc models.Document
	if err := c.ShouldBindJSON(&doc); err != nil {
		badRequest(c, err)
		return nil, false
	}
	if doc == nil {
		doc = models.Document{}
	}
	return doc, true
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "Invalid request body",
		"details": err.Error(),
	})
}

// respondError maps service errors to HTTP statuses
func respondError(c *gin.Context, msg string, err error) {
	status := http.StatusInternalServerError
	var verr *models.ValidationError
	var perr *auth.ProviderError

	switch {
	case errors.As(err, &verr), errors.Is(err, backup.ErrInvalidBackup):
		status = http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, auth.ErrUnauthenticated):
		status = http.StatusUnauthorized
	case errors.Is(err, auth.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, inventory.ErrBusy):
		status = http.StatusConflict
	}

	details := err.Error()
	if errors.As(err, &perr) {
		details = perr.Message
	}
	if status == http.StatusInternalServerError {
		util.GetLogger().Error(msg, zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(status, gin.H{
		"error":   msg,
		"details": details,
	})
}

func queryBool(c *gin.Context, key string, def bool) bool {
	v, err := strconv.ParseBool(c.Query(key))
	if err != nil {
		return def
	}
	return v
}

func queryInt(c *gin.Context, key string) int {
	n, _ := strconv.Atoi(c.Query(key))
	return n
}

func queryList(c *gin.Context, key string) []string {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil
	}
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
