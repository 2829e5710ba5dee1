package handler

import (
	"net/http"

	"procurement/internal/middleware"
	"procurement/internal/model"
	"procurement/internal/service"
	"procurement/pkg/pagination"
	"procurement/pkg/response"

	"github.com/gin-gonic/gin"
)

type OrderHandler struct {
	orderService service.OrderService
	auth         *middleware.Auth
}

func NewOrderHandler(orderService service.OrderService, auth *middleware.Auth) *OrderHandler {
	return &OrderHandler{orderService: orderService, auth: auth}
}

func (h *OrderHandler) RegisterRoutes(router *gin.RouterGroup) {
	orders := router.Group("/api/purchase-orders")
	{
		orders.GET("", h.auth.RequirePermission(model.PermOrdersRead), h.ListOrders)
		orders.POST("", h.auth.RequirePermission(model.PermOrdersWrite), h.CreateOrder)
		orders.GET("/:number", h.auth.RequirePermission(model.PermOrdersRead), h.GetOrder)
		orders.POST("/:number/cancel", h.auth.RequirePermission(model.PermOrdersWrite), h.CancelOrder)
		orders.GET("/:number/document", h.auth.RequirePermission(model.PermOrdersRead), h.DownloadDocument)
	}
}

// CreateOrder turns approved request items into a purchase order
// @Summary      Create purchase order
// @Description  Every line must reference an item of an APPROVED request and stay within its remaining quantity
// @Tags         purchase-orders
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateOrderDTO  true  "Order lines"
// @Success      201      {object}  response.Response{data=service.OrderResponse}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/purchase-orders [post]
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	var req service.CreateOrderDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	order, err := h.orderService.CreateOrder(c.Request.Context(), actor, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, order))
}

// ListOrders returns purchase orders, newest first
// @Summary      List purchase orders
// @Tags         purchase-orders
// @Security     BearerAuth
// @Produce      json
// @Param        status  query     string  false  "PENDING, SENT, PARTIAL, FULFILLED, CANCELLED"
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Items per page (default 20)"
// @Success      200     {object}  response.Response{data=[]service.OrderResponse}
// @Router       /api/purchase-orders [get]
func (h *OrderHandler) ListOrders(c *gin.Context) {
	p := pagination.Parse(c)
	orders, total, err := h.orderService.ListOrders(c.Request.Context(), c.Query("status"), p.Page, p.Limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.SuccessWithPagination(http.StatusOK, orders, p.Page, p.Limit, total))
}

// GetOrder returns a purchase order with received quantities per line
// @Summary      Get purchase order
// @Tags         purchase-orders
// @Security     BearerAuth
// @Produce      json
// @Param        number  path      string  true  "PO number"
// @Success      200     {object}  response.Response{data=service.OrderResponse}
// @Failure      404     {object}  response.Response
// @Router       /api/purchase-orders/{number} [get]
func (h *OrderHandler) GetOrder(c *gin.Context) {
	order, err := h.orderService.GetOrder(c.Request.Context(), c.Param("number"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, order))
}

// CancelOrder cancels an order nothing has been received against
// @Summary      Cancel purchase order
// @Tags         purchase-orders
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        number   path      string                      true   "PO number"
// @Param        payload  body      service.CancelOrderRequest  false  "Optional reason"
// @Success      200      {object}  response.Response{data=service.OrderResponse}
// @Failure      409      {object}  response.Response
// @Router       /api/purchase-orders/{number}/cancel [post]
func (h *OrderHandler) CancelOrder(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	var req service.CancelOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		// Allow empty body, the reason is optional
		req.Reason = ""
	}

	order, err := h.orderService.CancelOrder(c.Request.Context(), c.Param("number"), actor, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, order))
}

// DownloadDocument renders the purchase order workbook
// @Summary      Download purchase order document
// @Tags         purchase-orders
// @Security     BearerAuth
// @Produce      application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param        number  path  string  true  "PO number"
// @Success      200     {file}  file
// @Failure      404     {object}  response.Response
// @Router       /api/purchase-orders/{number}/document [get]
func (h *OrderHandler) DownloadDocument(c *gin.Context) {
	doc, err := h.orderService.RenderOrderDocument(c.Request.Context(), c.Param("number"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+doc.Name+`"`)
	if doc.Ref != "" {
		c.Header("X-Document-Ref", doc.Ref)
	}
	c.Data(http.StatusOK, doc.ContentType, doc.Content)
}
