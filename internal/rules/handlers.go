package rules

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fraudguard/fraudguard/internal/validation"
)

// Handler provides HTTP endpoints for rule management.
type Handler struct {
	service *Service
}

// NewHandler creates a new rules handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes sets up rule management routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/rules", h.ListRules)
	r.GET("/rules/:id", h.GetRule)
	r.POST("/rules", h.CreateRule)
	r.PATCH("/rules/:id", h.UpdateRule)
	r.DELETE("/rules/:id", h.DeleteRule)
}

// ListRules handles GET /v1/rules
func (h *Handler) ListRules(c *gin.Context) {
	activeOnly := c.Query("active_only") == "true"

	list, err := h.service.List(c.Request.Context(), activeOnly)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"rules": list,
		"count": len(list),
	})
}

// GetRule handles GET /v1/rules/:id
func (h *Handler) GetRule(c *gin.Context) {
	rule, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrRuleNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "No rule with this ID",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"rule": rule})
}

// CreateRule handles POST /v1/rules
func (h *Handler) CreateRule(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": err.Error(),
		})
		return
	}

	rule, err := h.service.Create(c.Request.Context(), &req)
	if err != nil {
		var verrs validation.ValidationErrors
		if errors.As(err, &verrs) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "validation_failed",
				"details": verrs,
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"rule": rule})
}

// UpdateRule handles PATCH /v1/rules/:id
func (h *Handler) UpdateRule(c *gin.Context) {
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": err.Error(),
		})
		return
	}

	rule, err := h.service.Update(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		var verrs validation.ValidationErrors
		switch {
		case errors.Is(err, ErrRuleNotFound):
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "No rule with this ID",
			})
		case errors.As(err, &verrs):
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "validation_failed",
				"details": verrs,
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "internal_error",
				"message": err.Error(),
			})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"rule": rule})
}

// DeleteRule handles DELETE /v1/rules/:id
func (h *Handler) DeleteRule(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, ErrRuleNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "No rule with this ID",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "rule deleted"})
}
