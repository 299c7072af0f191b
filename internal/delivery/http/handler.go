package http

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sentimentscope/catalog/internal/domain"
	"github.com/sentimentscope/catalog/internal/usecase"
	"go.uber.org/zap"
)

// eventBuffer is how many notifications a slow SSE client may lag behind
// before further ones are dropped for it
const eventBuffer = 16

// CatalogService is the coordinator surface the handlers depend on
type CatalogService interface {
	Products() []domain.Product
	Brands() []string
	Topics() []string
	Status() domain.Status
	Search(ctx context.Context, query string, filters domain.SearchFilters) []domain.Product
	PhoneDetails(ctx context.Context, id string) (*domain.ProductDetails, error)
	ProcessingStats(ctx context.Context) domain.ProcessingStats
	ToggleSource(ctx context.Context, useRemote bool)
	Refresh(ctx context.Context) bool
	Subscribe(fn func(domain.Event)) (unsubscribe func())
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	catalog CatalogService
	logger  *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(catalog CatalogService, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		catalog: catalog,
		logger:  logger.Named("http"),
	}
}

// ToggleSourceRequest is the body of POST /source
type ToggleSourceRequest struct {
	UseRemote *bool `json:"use_remote" binding:"required"`
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "sentimentscope-catalog",
		"version": "1.0.0",
	})
}

// ListProducts returns the current snapshot narrowed by query filters
func (h *Handler) ListProducts(c *gin.Context) {
	var filter domain.ProductFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.respondError(c, errors.Join(domain.ErrInvalidRequest, err))
		return
	}
	if err := filter.Validate(); err != nil {
		h.respondError(c, err)
		return
	}

	products := usecase.ApplyFilters(h.catalog.Products(), filter)
	c.JSON(http.StatusOK, gin.H{
		"products": products,
		"count":    len(products),
	})
}

// GetProduct returns the detail bundle for one product
func (h *Handler) GetProduct(c *gin.Context) {
	details, err := h.catalog.PhoneDetails(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, details)
}

// ListBrands returns the brand list, "All Brands" first
func (h *Handler) ListBrands(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"brands": h.catalog.Brands()})
}

// ListTopics returns every topic seen in the loaded products
func (h *Handler) ListTopics(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"topics": h.catalog.Topics()})
}

// GetStatus returns the catalog source and loading state
func (h *Handler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.catalog.Status())
}

// GetStats returns the catalog API processing counters
func (h *Handler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.catalog.ProcessingStats(c.Request.Context()))
}

// Search runs a catalog search. An empty q matches every product.
func (h *Handler) Search(c *gin.Context) {
	query := c.Query("q")

	var filters domain.SearchFilters
	if err := c.ShouldBindQuery(&filters); err != nil {
		h.respondError(c, errors.Join(domain.ErrInvalidRequest, err))
		return
	}
	if filters.Sentiment != "" && !filters.Sentiment.Valid() {
		h.respondError(c, errors.Join(domain.ErrInvalidRequest, errors.New("unknown sentiment")))
		return
	}

	results := h.catalog.Search(c.Request.Context(), query, filters)
	c.JSON(http.StatusOK, gin.H{
		"query":    query,
		"products": results,
		"count":    len(results),
	})
}

// ToggleSource switches between remote and fallback data
func (h *Handler) ToggleSource(c *gin.Context) {
	var req ToggleSourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, errors.Join(domain.ErrInvalidRequest, err))
		return
	}

	// The load outlives the request so a client disconnect cannot strand it
	h.catalog.ToggleSource(context.WithoutCancel(c.Request.Context()), *req.UseRemote)
	c.JSON(http.StatusOK, h.catalog.Status())
}

// Refresh triggers a manual refresh and reports whether it reloaded anything
func (h *Handler) Refresh(c *gin.Context) {
	refreshed := h.catalog.Refresh(context.WithoutCancel(c.Request.Context()))
	c.JSON(http.StatusOK, gin.H{
		"refreshed": refreshed,
		"status":    h.catalog.Status(),
	})
}

// Events streams coordinator notifications as server-sent events until the
// client goes away
func (h *Handler) Events(c *gin.Context) {
	events := make(chan domain.Event, eventBuffer)
	unsubscribe := h.catalog.Subscribe(func(e domain.Event) {
		select {
		case events <- e:
		default:
			h.logger.Debug("dropping event for slow subscriber", zap.String("type", string(e.Type)))
		}
	})
	defer unsubscribe()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.SSEvent("status", h.catalog.Status())
	c.Writer.Flush()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case e := <-events:
			c.SSEvent(string(e.Type), e)
			return true
		}
	})
}

func (h *Handler) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrProductNotFound):
		status = http.StatusNotFound
	default:
		h.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
