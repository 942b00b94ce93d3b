package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"comanda-system/internal/database/models"
	"comanda-system/internal/services/orders"
)

// OrderEngine is the slice of the order engine the gateway needs.
type OrderEngine interface {
	CreateOrder(ctx context.Context, tableID int64, waiter string, items []orders.ItemInput) (*models.Order, error)
	FindOpenOrder(ctx context.Context, tableID int64) (*models.Order, error)
	AddItems(ctx context.Context, tableID int64, waiter string, items []orders.ItemInput) (*models.Order, error)
	UpdateItemStatus(ctx context.Context, itemID int64, status models.ItemStatus, reason string) (*models.OrderItem, error)
	DeleteItem(ctx context.Context, itemID int64) error
	CancelOrder(ctx context.Context, orderID int64, reason string) error
	GetOrder(ctx context.Context, orderID int64) (*models.Order, decimal.Decimal, error)
}

type OrderHTTPHandler struct {
	engine OrderEngine
}

func NewOrderHTTPHandler(engine OrderEngine) *OrderHTTPHandler {
	return &OrderHTTPHandler{engine: engine}
}

// Request structs
type OrderItemRequest struct {
	RecipeID    int64  `json:"recipe_id" binding:"required"`
	Quantity    int32  `json:"quantity" binding:"required,min=1"`
	Notes       string `json:"notes,omitempty"`
	IsTakeaway  bool   `json:"is_takeaway,omitempty"`
	ContainerID *int64 `json:"container_id,omitempty"`
}

type CreateOrderRequest struct {
	TableID int64              `json:"table_id" binding:"required"`
	Waiter  string             `json:"waiter" binding:"required"`
	Items   []OrderItemRequest `json:"items" binding:"required,min=1,dive"`
}

type AddItemsRequest struct {
	TableID int64              `json:"table_id" binding:"required"`
	Waiter  string             `json:"waiter" binding:"required"`
	Items   []OrderItemRequest `json:"items" binding:"required,min=1,dive"`
}

type UpdateItemStatusRequest struct {
	Status string `json:"status" binding:"required"`
	Reason string `json:"reason,omitempty"`
}

type CancelOrderRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// Response projections. Creation returns a summary, retrieval the full
// aggregate view and item updates just the item — three explicit variants
// instead of one shared shape.
type OrderSummary struct {
	ID          int64     `json:"id"`
	TableID     int64     `json:"table_id"`
	Waiter      string    `json:"waiter"`
	Status      string    `json:"status"`
	TotalAmount string    `json:"total_amount"`
	ItemCount   int       `json:"item_count"`
	CreatedAt   time.Time `json:"created_at"`
}

type OrderView struct {
	ID             int64               `json:"id"`
	TableID        int64               `json:"table_id"`
	TableNumber    int32               `json:"table_number,omitempty"`
	Waiter         string              `json:"waiter"`
	Status         string              `json:"status"`
	TotalAmount    string              `json:"total_amount"`
	GrandTotal     string              `json:"grand_total"`
	Items          []OrderItemView     `json:"items"`
	ContainerSales []ContainerSaleView `json:"container_sales,omitempty"`
	Payments       []PaymentView       `json:"payments,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

type OrderItemView struct {
	ID           int64   `json:"id"`
	RecipeID     int64   `json:"recipe_id"`
	Recipe       string  `json:"recipe,omitempty"`
	Quantity     int32   `json:"quantity"`
	UnitPrice    string  `json:"unit_price"`
	TotalPrice   string  `json:"total_price"`
	Status       string  `json:"status"`
	CancelReason *string `json:"cancel_reason,omitempty"`
	IsTakeaway   bool    `json:"is_takeaway,omitempty"`
	ContainerID  *int64  `json:"container_id,omitempty"`
	Notes        *string `json:"notes,omitempty"`
}

type ContainerSaleView struct {
	ID          int64  `json:"id"`
	ContainerID int64  `json:"container_id"`
	OrderItemID int64  `json:"order_item_id"`
	Quantity    int32  `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
	TotalPrice  string `json:"total_price"`
}

type PaymentView struct {
	ID             int64     `json:"id"`
	Amount         string    `json:"amount"`
	Method         string    `json:"method"`
	Payer          string    `json:"payer,omitempty"`
	SplitGroup     *string   `json:"split_group,omitempty"`
	ReceiptPrinted bool      `json:"receipt_printed"`
	CreatedAt      time.Time `json:"created_at"`
}

func (h *OrderHTTPHandler) CreateOrder(c *gin.Context) {
	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request: "+err.Error()))
		return
	}

	order, err := h.engine.CreateOrder(c.Request.Context(), req.TableID, req.Waiter, toItemInputs(req.Items))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, successResponse("Order created", orderSummary(order)))
}

func (h *OrderHTTPHandler) GetOrder(c *gin.Context) {
	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid order ID"))
		return
	}

	order, grand, err := h.engine.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse("Order retrieved", orderView(order, grand)))
}

func (h *OrderHTTPHandler) GetOpenOrder(c *gin.Context) {
	tableID, err := strconv.ParseInt(c.Param("table_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid table ID"))
		return
	}

	open, err := h.engine.FindOpenOrder(c.Request.Context(), tableID)
	if err != nil {
		respondError(c, err)
		return
	}
	if open == nil {
		c.JSON(http.StatusNotFound, errorResponse("No open order on this table"))
		return
	}

	order, grand, err := h.engine.GetOrder(c.Request.Context(), open.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse("Open order retrieved", orderView(order, grand)))
}

func (h *OrderHTTPHandler) AddItems(c *gin.Context) {
	var req AddItemsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request: "+err.Error()))
		return
	}

	order, err := h.engine.AddItems(c.Request.Context(), req.TableID, req.Waiter, toItemInputs(req.Items))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse("Items added", orderSummary(order)))
}

func (h *OrderHTTPHandler) UpdateItemStatus(c *gin.Context) {
	itemID, err := strconv.ParseInt(c.Param("item_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid item ID"))
		return
	}

	var req UpdateItemStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request: "+err.Error()))
		return
	}

	status, err := orders.ParseItemStatus(req.Status)
	if err != nil {
		respondError(c, err)
		return
	}

	item, err := h.engine.UpdateItemStatus(c.Request.Context(), itemID, status, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse("Item status updated", itemView(item)))
}

func (h *OrderHTTPHandler) DeleteItem(c *gin.Context) {
	itemID, err := strconv.ParseInt(c.Param("item_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid item ID"))
		return
	}

	if err := h.engine.DeleteItem(c.Request.Context(), itemID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse("Item removed", nil))
}

func (h *OrderHTTPHandler) CancelOrder(c *gin.Context) {
	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid order ID"))
		return
	}

	var req CancelOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request: "+err.Error()))
		return
	}

	if err := h.engine.CancelOrder(c.Request.Context(), orderID, req.Reason); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse("Order canceled", nil))
}

func toItemInputs(reqs []OrderItemRequest) []orders.ItemInput {
	inputs := make([]orders.ItemInput, 0, len(reqs))
	for _, r := range reqs {
		inputs = append(inputs, orders.ItemInput{
			RecipeId:    r.RecipeID,
			Quantity:    r.Quantity,
			Notes:       r.Notes,
			IsTakeaway:  r.IsTakeaway,
			ContainerId: r.ContainerID,
		})
	}
	return inputs
}

func orderSummary(order *models.Order) OrderSummary {
	return OrderSummary{
		ID:          order.ID,
		TableID:     order.TableId,
		Waiter:      order.Waiter,
		Status:      string(order.Status),
		TotalAmount: order.TotalAmount,
		ItemCount:   len(order.OrderItems),
		CreatedAt:   order.CreatedAt,
	}
}

func orderView(order *models.Order, grand decimal.Decimal) OrderView {
	view := OrderView{
		ID:          order.ID,
		TableID:     order.TableId,
		Waiter:      order.Waiter,
		Status:      string(order.Status),
		TotalAmount: order.TotalAmount,
		GrandTotal:  grand.StringFixed(2),
		Items:       make([]OrderItemView, 0, len(order.OrderItems)),
		CreatedAt:   order.CreatedAt,
		UpdatedAt:   order.UpdatedAt,
	}
	if order.Table != nil {
		view.TableNumber = order.Table.Number
	}
	for i := range order.OrderItems {
		view.Items = append(view.Items, itemView(&order.OrderItems[i]))
	}
	for _, sale := range order.ContainerSales {
		view.ContainerSales = append(view.ContainerSales, ContainerSaleView{
			ID:          sale.ID,
			ContainerID: sale.ContainerId,
			OrderItemID: sale.OrderItemId,
			Quantity:    sale.Quantity,
			UnitPrice:   sale.UnitPrice,
			TotalPrice:  sale.TotalPrice,
		})
	}
	for _, p := range order.Payments {
		view.Payments = append(view.Payments, PaymentView{
			ID:             p.ID,
			Amount:         p.Amount,
			Method:         p.Method,
			Payer:          p.Payer,
			SplitGroup:     p.SplitGroup,
			ReceiptPrinted: p.ReceiptPrinted,
			CreatedAt:      p.CreatedAt,
		})
	}
	return view
}

func itemView(item *models.OrderItem) OrderItemView {
	view := OrderItemView{
		ID:           item.ID,
		RecipeID:     item.RecipeId,
		Quantity:     item.Quantity,
		UnitPrice:    item.UnitPrice,
		TotalPrice:   item.TotalPrice,
		Status:       string(item.Status),
		CancelReason: item.CancelReason,
		IsTakeaway:   item.IsTakeaway,
		ContainerID:  item.ContainerId,
		Notes:        item.Notes,
	}
	if item.Recipe != nil {
		view.Recipe = item.Recipe.Name
	}
	return view
}
