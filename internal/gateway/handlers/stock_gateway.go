package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"comanda-system/internal/events"
)

type StockWriter interface {
	SetIngredientStock(ctx context.Context, ingredientID int64, qty decimal.Decimal, notes string) error
	SetContainerStock(ctx context.Context, containerID int64, qty int32, notes string) error
}

// StockHTTPHandler exposes manual stock corrections. Regular consumption and
// restoration flow through orders; these endpoints are for deliveries,
// spoilage and recounts.
type StockHTTPHandler struct {
	ledger StockWriter
	events *events.Publisher
}

func NewStockHTTPHandler(ledger StockWriter, publisher *events.Publisher) *StockHTTPHandler {
	return &StockHTTPHandler{ledger: ledger, events: publisher}
}

type SetIngredientStockRequest struct {
	Stock string `json:"stock" binding:"required"`
	Notes string `json:"notes,omitempty"`
}

type SetContainerStockRequest struct {
	Stock *int32 `json:"stock" binding:"required,min=0"`
	Notes string `json:"notes,omitempty"`
}

func (h *StockHTTPHandler) SetIngredientStock(c *gin.Context) {
	ingredientID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid ingredient ID"))
		return
	}

	var req SetIngredientStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request: "+err.Error()))
		return
	}

	qty, err := decimal.NewFromString(req.Stock)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid stock format"))
		return
	}

	if err := h.ledger.SetIngredientStock(c.Request.Context(), ingredientID, qty, req.Notes); err != nil {
		respondError(c, err)
		return
	}
	h.events.InvalidateAvailability(c.Request.Context())

	c.JSON(http.StatusOK, successResponse("Ingredient stock updated", nil))
}

func (h *StockHTTPHandler) SetContainerStock(c *gin.Context) {
	containerID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid container ID"))
		return
	}

	var req SetContainerStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request: "+err.Error()))
		return
	}

	if err := h.ledger.SetContainerStock(c.Request.Context(), containerID, *req.Stock, req.Notes); err != nil {
		respondError(c, err)
		return
	}
	h.events.InvalidateAvailability(c.Request.Context())

	c.JSON(http.StatusOK, successResponse("Container stock updated", nil))
}
