package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"comanda-system/internal/services/orders"
	"comanda-system/internal/services/payments"
	"comanda-system/internal/services/printing"
	"comanda-system/internal/services/stock"
)

type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func successResponse(message string, data interface{}) APIResponse {
	return APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	}
}

func errorResponse(message string) APIResponse {
	return APIResponse{
		Success: false,
		Message: message,
	}
}

// respondError maps the error taxonomy onto HTTP statuses: business
// rejections surface as 4xx with their own message, everything unexpected is
// a bare 500 (the transaction that produced it has already rolled back).
func respondError(c *gin.Context, err error) {
	var (
		validation   *orders.ValidationError
		transition   *orders.InvalidTransitionError
		noStock      *stock.InsufficientStockError
		noContainers *stock.InsufficientContainerStockError
		overpayment  *payments.OverpaymentError
	)

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, errorResponse("not found"))
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, errorResponse(validation.Error()))
	case errors.As(err, &transition):
		c.JSON(http.StatusConflict, errorResponse(transition.Error()))
	case errors.As(err, &noStock):
		c.JSON(http.StatusConflict, errorResponse(noStock.Error()))
	case errors.As(err, &noContainers):
		c.JSON(http.StatusConflict, errorResponse(noContainers.Error()))
	case errors.As(err, &overpayment):
		c.JSON(http.StatusConflict, errorResponse(overpayment.Error()))
	case errors.Is(err, printing.ErrJobNotInProgress), errors.Is(err, printing.ErrJobTerminal):
		c.JSON(http.StatusConflict, errorResponse(err.Error()))
	default:
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
	}
}
