package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"

	"comanda-system/internal/events"
	"comanda-system/internal/services/stock"
)

const availabilityCacheTTL = 5 * time.Minute

type StockReader interface {
	ListAvailability(ctx context.Context) ([]stock.Availability, error)
	CheckAvailability(ctx context.Context, recipeID int64, multiplier int32) (stock.Availability, error)
}

// AvailabilityHTTPHandler serves the advisory availability listing. The
// answer is cached in Redis and invalidated on every stock mutation; a stale
// read here can only produce a rejected order, never oversubscription, since
// admission re-checks under the reservation lock.
type AvailabilityHTTPHandler struct {
	ledger StockReader
	rdb    *redis.Client
}

func NewAvailabilityHTTPHandler(ledger StockReader, rdb *redis.Client) *AvailabilityHTTPHandler {
	return &AvailabilityHTTPHandler{ledger: ledger, rdb: rdb}
}

func (h *AvailabilityHTTPHandler) ListAvailability(c *gin.Context) {
	ctx := c.Request.Context()

	if h.rdb != nil {
		if cached, err := h.rdb.Get(ctx, events.AvailabilityCacheKey).Bytes(); err == nil {
			var listing []stock.Availability
			if json.Unmarshal(cached, &listing) == nil {
				c.JSON(http.StatusOK, successResponse("Availability retrieved", listing))
				return
			}
		}
	}

	listing, err := h.ledger.ListAvailability(ctx)
	if err != nil {
		respondError(c, err)
		return
	}

	if h.rdb != nil {
		if encoded, err := json.Marshal(listing); err == nil {
			h.rdb.Set(ctx, events.AvailabilityCacheKey, encoded, availabilityCacheTTL)
		}
	}

	c.JSON(http.StatusOK, successResponse("Availability retrieved", listing))
}

func (h *AvailabilityHTTPHandler) CheckAvailability(c *gin.Context) {
	recipeID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid recipe ID"))
		return
	}

	multiplier := int32(1)
	if raw := c.Query("quantity"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, errorResponse("Invalid quantity"))
			return
		}
		multiplier = int32(n)
	}

	availability, err := h.ledger.CheckAvailability(c.Request.Context(), recipeID, multiplier)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse("Availability retrieved", availability))
}
