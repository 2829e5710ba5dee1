package handler

import (
	"net/http"

	"procurement/internal/middleware"
	"procurement/internal/model"
	"procurement/internal/service"
	"procurement/pkg/response"

	"github.com/gin-gonic/gin"
)

type ReceiptHandler struct {
	receiptService service.ReceiptService
	auth           *middleware.Auth
}

func NewReceiptHandler(receiptService service.ReceiptService, auth *middleware.Auth) *ReceiptHandler {
	return &ReceiptHandler{receiptService: receiptService, auth: auth}
}

func (h *ReceiptHandler) RegisterRoutes(router *gin.RouterGroup) {
	receipts := router.Group("/api/purchase-orders/:number/receipts")
	{
		receipts.GET("", h.auth.RequirePermission(model.PermOrdersRead), h.ListReceipts)
		receipts.POST("", h.auth.RequirePermission(model.PermReceiptsWrite), h.RecordReceipt)
	}
}

// RecordReceipt books delivered quantities against a purchase order
// @Summary      Record goods receipt
// @Tags         purchase-orders
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        number   path      string                    true  "PO number"
// @Param        payload  body      service.RecordReceiptDTO  true  "Received lines"
// @Success      201      {object}  response.Response{data=service.ReceiptResponse}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/purchase-orders/{number}/receipts [post]
func (h *ReceiptHandler) RecordReceipt(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	var req service.RecordReceiptDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	receipt, err := h.receiptService.RecordReceipt(c.Request.Context(), c.Param("number"), req, actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, receipt))
}

// ListReceipts returns every receipt booked against a purchase order
// @Summary      List goods receipts
// @Tags         purchase-orders
// @Security     BearerAuth
// @Produce      json
// @Param        number  path      string  true  "PO number"
// @Success      200     {object}  response.Response{data=[]service.ReceiptResponse}
// @Router       /api/purchase-orders/{number}/receipts [get]
func (h *ReceiptHandler) ListReceipts(c *gin.Context) {
	receipts, err := h.receiptService.ListReceipts(c.Request.Context(), c.Param("number"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, receipts))
}
