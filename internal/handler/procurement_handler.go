package handler

import (
	"net/http"

	"procurement/internal/middleware"
	"procurement/internal/model"
	"procurement/internal/service"
	"procurement/pkg/response"

	"github.com/gin-gonic/gin"
)

type ProcurementHandler struct {
	procurementService service.ProcurementService
	auth               *middleware.Auth
}

func NewProcurementHandler(procurementService service.ProcurementService, auth *middleware.Auth) *ProcurementHandler {
	return &ProcurementHandler{procurementService: procurementService, auth: auth}
}

func (h *ProcurementHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/api/procurement/items", h.auth.RequirePermission(model.PermProcurementRead), h.ListOrderableItems)
}

// ListOrderableItems returns approved items that still have quantity left to order
// @Summary      List orderable items
// @Tags         procurement
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=[]service.OrderableItem}
// @Router       /api/procurement/items [get]
func (h *ProcurementHandler) ListOrderableItems(c *gin.Context) {
	items, err := h.procurementService.ListOrderableItems(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, items))
}
