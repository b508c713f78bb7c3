package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/davicafu/orderflow/internal/order/application"
	"github.com/davicafu/orderflow/internal/order/domain"
	"github.com/davicafu/orderflow/pkg/utils"
)

// OrderHandler encapsula los endpoints HTTP relacionados con Order.
// Los comandos van contra el aggregate (event store); las consultas de
// summary/details van contra los read models proyectados.
type OrderHandler struct {
	service *application.OrderService
	queries *application.OrderQueries
}

func NewOrderHandler(service *application.OrderService, queries *application.OrderQueries) *OrderHandler {
	return &OrderHandler{service: service, queries: queries}
}

// ---------------- Vistas ----------------

// orderView es la representación HTTP del aggregate rehidratado. Los campos
// del aggregate son privados a propósito; esta vista es la única forma de
// sacarlos por el borde.
type orderView struct {
	OrderID         string          `json:"orderId"`
	CustomerID      string          `json:"customerId"`
	Status          string          `json:"status"`
	Items           []orderItemView `json:"items"`
	TotalAmount     domain.Money    `json:"totalAmount"`
	ShippingAddress *domain.Address `json:"shippingAddress,omitempty"`
	OrderDate       time.Time       `json:"orderDate"`
	LastModified    time.Time       `json:"lastModified"`
	Version         int             `json:"version"`
}

type orderItemView struct {
	ProductID   string       `json:"productId"`
	ProductName string       `json:"productName"`
	Quantity    int          `json:"quantity"`
	UnitPrice   domain.Money `json:"unitPrice"`
	TotalPrice  domain.Money `json:"totalPrice"`
}

func toOrderView(order *domain.Order) orderView {
	items := make([]orderItemView, 0, len(order.Items()))
	for _, item := range order.Items() {
		items = append(items, orderItemView{
			ProductID:   item.ProductID().String(),
			ProductName: item.ProductName(),
			Quantity:    item.Quantity(),
			UnitPrice:   item.UnitPrice(),
			TotalPrice:  item.TotalPrice(),
		})
	}

	view := orderView{
		OrderID:      order.ID().String(),
		CustomerID:   order.CustomerID().String(),
		Status:       string(order.Status()),
		Items:        items,
		TotalAmount:  order.TotalAmount(),
		OrderDate:    order.OrderDate(),
		LastModified: order.LastModified(),
		Version:      order.Version(),
	}
	if address, ok := order.ShippingAddress(); ok {
		view.ShippingAddress = &address
	}
	return view
}

// ---------------- Handlers de comando ----------------

// CreateOrder endpoint POST /orders
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var req struct {
		CustomerID string `json:"customerId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendBadRequest(c, err.Error())
		return
	}

	customerID, err := domain.ParseCustomerID(req.CustomerID)
	if err != nil {
		utils.SendBadRequest(c, "invalid customer id")
		return
	}

	order, err := h.service.CreateOrder(c.Request.Context(), customerID)
	if err != nil {
		h.sendDomainError(c, err)
		return
	}

	utils.SendSuccess(c, http.StatusCreated, toOrderView(order))
}

// AddItem endpoint POST /orders/:id/items
func (h *OrderHandler) AddItem(c *gin.Context) {
	orderID, ok := h.orderID(c)
	if !ok {
		return
	}

	var req struct {
		ProductID   string  `json:"productId" binding:"required"`
		ProductName string  `json:"productName" binding:"required"`
		Quantity    int     `json:"quantity" binding:"required"`
		UnitPrice   float64 `json:"unitPrice" binding:"required"`
		Currency    string  `json:"currency" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendBadRequest(c, err.Error())
		return
	}

	productID, err := domain.ParseProductID(req.ProductID)
	if err != nil {
		utils.SendBadRequest(c, "invalid product id")
		return
	}

	price, err := domain.NewMoneyFromFloat(req.UnitPrice, req.Currency)
	if err != nil {
		utils.SendBadRequest(c, err.Error())
		return
	}

	order, err := h.service.AddItem(c.Request.Context(), orderID, productID, req.ProductName, req.Quantity, price)
	if err != nil {
		h.sendDomainError(c, err)
		return
	}

	utils.SendSuccess(c, http.StatusOK, toOrderView(order))
}

// RemoveItem endpoint DELETE /orders/:id/items/:productId
func (h *OrderHandler) RemoveItem(c *gin.Context) {
	orderID, ok := h.orderID(c)
	if !ok {
		return
	}

	productID, err := domain.ParseProductID(c.Param("productId"))
	if err != nil {
		utils.SendBadRequest(c, "invalid product id")
		return
	}

	order, err := h.service.RemoveItem(c.Request.Context(), orderID, productID)
	if err != nil {
		h.sendDomainError(c, err)
		return
	}

	utils.SendSuccess(c, http.StatusOK, toOrderView(order))
}

// SetShippingAddress endpoint PUT /orders/:id/address
func (h *OrderHandler) SetShippingAddress(c *gin.Context) {
	orderID, ok := h.orderID(c)
	if !ok {
		return
	}

	var req struct {
		Street  string `json:"street" binding:"required"`
		ZipCode string `json:"zipCode" binding:"required"`
		City    string `json:"city" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendBadRequest(c, err.Error())
		return
	}

	address, err := domain.NewAddress(req.Street, req.ZipCode, req.City)
	if err != nil {
		utils.SendBadRequest(c, err.Error())
		return
	}

	order, err := h.service.SetShippingAddress(c.Request.Context(), orderID, address)
	if err != nil {
		h.sendDomainError(c, err)
		return
	}

	utils.SendSuccess(c, http.StatusOK, toOrderView(order))
}

// ValidateOrder endpoint POST /orders/:id/validate
func (h *OrderHandler) ValidateOrder(c *gin.Context) {
	h.transition(c, h.service.ValidateOrder)
}

// RequestPayment endpoint POST /orders/:id/payment/request
func (h *OrderHandler) RequestPayment(c *gin.Context) {
	h.transition(c, h.service.RequestPayment)
}

// ApprovePayment endpoint POST /orders/:id/payment/approve
func (h *OrderHandler) ApprovePayment(c *gin.Context) {
	h.transition(c, h.service.ApprovePayment)
}

// FailPayment endpoint POST /orders/:id/payment/fail
func (h *OrderHandler) FailPayment(c *gin.Context) {
	orderID, ok := h.orderID(c)
	if !ok {
		return
	}

	var req struct {
		Reason string `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendBadRequest(c, err.Error())
		return
	}

	order, err := h.service.FailPayment(c.Request.Context(), orderID, req.Reason)
	if err != nil {
		h.sendDomainError(c, err)
		return
	}

	utils.SendSuccess(c, http.StatusOK, toOrderView(order))
}

// StartProcessing endpoint POST /orders/:id/processing
func (h *OrderHandler) StartProcessing(c *gin.Context) {
	h.transition(c, h.service.StartProcessing)
}

// UpdateShipping endpoint POST /orders/:id/shipping
func (h *OrderHandler) UpdateShipping(c *gin.Context) {
	orderID, ok := h.orderID(c)
	if !ok {
		return
	}

	var req struct {
		Status         string `json:"status" binding:"required"`
		TrackingNumber string `json:"trackingNumber"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendBadRequest(c, err.Error())
		return
	}

	order, err := h.service.UpdateShippingStatus(c.Request.Context(), orderID, req.Status, req.TrackingNumber)
	if err != nil {
		h.sendDomainError(c, err)
		return
	}

	utils.SendSuccess(c, http.StatusOK, toOrderView(order))
}

// MarkDelivered endpoint POST /orders/:id/delivered
func (h *OrderHandler) MarkDelivered(c *gin.Context) {
	h.transition(c, h.service.MarkDelivered)
}

// CancelOrder endpoint POST /orders/:id/cancel
func (h *OrderHandler) CancelOrder(c *gin.Context) {
	orderID, ok := h.orderID(c)
	if !ok {
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	// el body es opcional: cancelar sin motivo es válido
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.SendBadRequest(c, err.Error())
			return
		}
	}

	order, err := h.service.CancelOrder(c.Request.Context(), orderID, req.Reason)
	if err != nil {
		h.sendDomainError(c, err)
		return
	}

	utils.SendSuccess(c, http.StatusOK, toOrderView(order))
}

// ---------------- Handlers de consulta ----------------

// GetOrder endpoint GET /orders/:id — rehidrata el aggregate desde el stream.
func (h *OrderHandler) GetOrder(c *gin.Context) {
	orderID, ok := h.orderID(c)
	if !ok {
		return
	}

	order, err := h.service.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		h.sendDomainError(c, err)
		return
	}

	utils.SendSuccess(c, http.StatusOK, toOrderView(order))
}

// GetSummary endpoint GET /orders/:id/summary — lee el read model proyectado.
func (h *OrderHandler) GetSummary(c *gin.Context) {
	orderID, ok := h.orderID(c)
	if !ok {
		return
	}

	summary, err := h.queries.GetSummary(c.Request.Context(), orderID)
	if err != nil {
		h.sendDomainError(c, err)
		return
	}

	utils.SendSuccess(c, http.StatusOK, summary)
}

// GetDetails endpoint GET /orders/:id/details
func (h *OrderHandler) GetDetails(c *gin.Context) {
	orderID, ok := h.orderID(c)
	if !ok {
		return
	}

	details, err := h.queries.GetDetails(c.Request.Context(), orderID)
	if err != nil {
		h.sendDomainError(c, err)
		return
	}

	utils.SendSuccess(c, http.StatusOK, details)
}

// ListByCustomer endpoint GET /customers/:id/orders
func (h *OrderHandler) ListByCustomer(c *gin.Context) {
	customerID, err := domain.ParseCustomerID(c.Param("id"))
	if err != nil {
		utils.SendBadRequest(c, "invalid customer id")
		return
	}

	summaries, err := h.queries.ListByCustomer(c.Request.Context(), customerID)
	if err != nil {
		h.sendDomainError(c, err)
		return
	}

	utils.SendSuccess(c, http.StatusOK, summaries)
}

// ---------------- Helpers ----------------

func (h *OrderHandler) orderID(c *gin.Context) (domain.OrderID, bool) {
	orderID, err := domain.ParseOrderID(c.Param("id"))
	if err != nil {
		utils.SendBadRequest(c, "invalid order id")
		return domain.OrderID{}, false
	}
	return orderID, true
}

// transition ejecuta una transición sin body y devuelve el estado resultante.
func (h *OrderHandler) transition(c *gin.Context, fn func(ctx context.Context, orderID domain.OrderID) (*domain.Order, error)) {
	orderID, ok := h.orderID(c)
	if !ok {
		return
	}

	order, err := fn(c.Request.Context(), orderID)
	if err != nil {
		h.sendDomainError(c, err)
		return
	}

	utils.SendSuccess(c, http.StatusOK, toOrderView(order))
}

// badRequestErrors son las violaciones de validación y de reglas de negocio
// que se responden como 400: la petición es la que está mal.
var badRequestErrors = []error{
	domain.ErrEmptyOrderID,
	domain.ErrEmptyCustomerID,
	domain.ErrEmptyProductID,
	domain.ErrEmptyProductName,
	domain.ErrNegativeQuantity,
	domain.ErrQuantityLimit,
	domain.ErrTooManyProducts,
	domain.ErrInvalidItemPrice,
	domain.ErrNoItems,
	domain.ErrNoShippingAddress,
	domain.ErrBelowMinimumTotal,
	domain.ErrNegativeAmount,
	domain.ErrInvalidCurrency,
	domain.ErrCurrencyMismatch,
}

func (h *OrderHandler) sendDomainError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrOrderNotFound):
		utils.SendNotFound(c, "order not found")
	case errors.Is(err, domain.ErrInvalidTransition), domain.IsConcurrencyError(err):
		utils.SendConflict(c, err.Error())
	default:
		for _, known := range badRequestErrors {
			if errors.Is(err, known) {
				utils.SendBadRequest(c, err.Error())
				return
			}
		}
		utils.SendInternalServerError(c, err.Error())
	}
}
