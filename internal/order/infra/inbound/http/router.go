package http

import "github.com/gin-gonic/gin"

func RegisterOrderRoutes(r *gin.Engine, handler *OrderHandler) {
	orders := r.Group("/orders")
	{
		orders.POST("/", handler.CreateOrder)
		orders.GET("/:id", handler.GetOrder)
		orders.GET("/:id/summary", handler.GetSummary)
		orders.GET("/:id/details", handler.GetDetails)

		orders.POST("/:id/items", handler.AddItem)
		orders.DELETE("/:id/items/:productId", handler.RemoveItem)
		orders.PUT("/:id/address", handler.SetShippingAddress)

		orders.POST("/:id/validate", handler.ValidateOrder)
		orders.POST("/:id/payment/request", handler.RequestPayment)
		orders.POST("/:id/payment/approve", handler.ApprovePayment)
		orders.POST("/:id/payment/fail", handler.FailPayment)
		orders.POST("/:id/processing", handler.StartProcessing)
		orders.POST("/:id/shipping", handler.UpdateShipping)
		orders.POST("/:id/delivered", handler.MarkDelivered)
		orders.POST("/:id/cancel", handler.CancelOrder)
	}

	customers := r.Group("/customers")
	{
		customers.GET("/:id/orders", handler.ListByCustomer)
	}
}
