package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"comanda-system/internal/database/models"
	"comanda-system/internal/services/payments"
)

type PaymentReconciler interface {
	PayFull(ctx context.Context, orderID int64, method, payer string, amount decimal.Decimal) (*models.Payment, error)
	PaySplit(ctx context.Context, orderID int64, splits []payments.SplitInput) ([]models.Payment, error)
	MarkReceiptPrinted(ctx context.Context, paymentID int64) error
}

type PaymentHTTPHandler struct {
	reconciler PaymentReconciler
}

func NewPaymentHTTPHandler(reconciler PaymentReconciler) *PaymentHTTPHandler {
	return &PaymentHTTPHandler{reconciler: reconciler}
}

type PayRequest struct {
	Method string `json:"method" binding:"required"`
	Amount string `json:"amount" binding:"required"`
	Payer  string `json:"payer,omitempty"`
}

type SplitRequest struct {
	ItemIDs []int64 `json:"item_ids" binding:"required,min=1"`
	Method  string  `json:"method" binding:"required"`
	Amount  string  `json:"amount" binding:"required"`
	Payer   string  `json:"payer,omitempty"`
}

type PaySplitRequest struct {
	Splits []SplitRequest `json:"splits" binding:"required,min=1,dive"`
}

func (h *PaymentHTTPHandler) Pay(c *gin.Context) {
	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid order ID"))
		return
	}

	var req PayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request: "+err.Error()))
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid amount format"))
		return
	}

	payment, err := h.reconciler.PayFull(c.Request.Context(), orderID, req.Method, req.Payer, amount)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, successResponse("Payment recorded", PaymentView{
		ID:             payment.ID,
		Amount:         payment.Amount,
		Method:         payment.Method,
		Payer:          payment.Payer,
		ReceiptPrinted: payment.ReceiptPrinted,
		CreatedAt:      payment.CreatedAt,
	}))
}

func (h *PaymentHTTPHandler) PaySplit(c *gin.Context) {
	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid order ID"))
		return
	}

	var req PaySplitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request: "+err.Error()))
		return
	}

	splits := make([]payments.SplitInput, 0, len(req.Splits))
	for _, s := range req.Splits {
		amount, err := decimal.NewFromString(s.Amount)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse("Invalid amount format"))
			return
		}
		splits = append(splits, payments.SplitInput{
			ItemIds: s.ItemIDs,
			Method:  s.Method,
			Amount:  amount,
			Payer:   s.Payer,
		})
	}

	created, err := h.reconciler.PaySplit(c.Request.Context(), orderID, splits)
	if err != nil {
		respondError(c, err)
		return
	}

	views := make([]PaymentView, 0, len(created))
	for _, p := range created {
		views = append(views, PaymentView{
			ID:             p.ID,
			Amount:         p.Amount,
			Method:         p.Method,
			Payer:          p.Payer,
			SplitGroup:     p.SplitGroup,
			ReceiptPrinted: p.ReceiptPrinted,
			CreatedAt:      p.CreatedAt,
		})
	}

	c.JSON(http.StatusCreated, successResponse("Split payment recorded", views))
}

func (h *PaymentHTTPHandler) MarkReceiptPrinted(c *gin.Context) {
	paymentID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid payment ID"))
		return
	}

	if err := h.reconciler.MarkReceiptPrinted(c.Request.Context(), paymentID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse("Receipt marked as printed", nil))
}
