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

type CatalogHandler struct {
	catalogService service.CatalogService
	auth           *middleware.Auth
}

func NewCatalogHandler(catalogService service.CatalogService, auth *middleware.Auth) *CatalogHandler {
	return &CatalogHandler{catalogService: catalogService, auth: auth}
}

func (h *CatalogHandler) RegisterRoutes(router *gin.RouterGroup) {
	catalog := router.Group("/api/catalog")
	{
		catalog.GET("", h.auth.RequirePermission(model.PermCatalogRead), h.ListItems)
		catalog.GET("/:id", h.auth.RequirePermission(model.PermCatalogRead), h.GetItem)
		catalog.POST("", h.auth.RequirePermission(model.PermCatalogWrite), h.CreateItem)
		catalog.PUT("/:id", h.auth.RequirePermission(model.PermCatalogWrite), h.UpdateItem)
		catalog.DELETE("/:id", h.auth.RequirePermission(model.PermCatalogWrite), h.DeleteItem)
	}
}

// ListItems returns catalog entries ordered by SKU
// @Summary      List catalog items
// @Tags         catalog
// @Security     BearerAuth
// @Produce      json
// @Param        page    query     int     false  "Page number (default: 1)"
// @Param        limit   query     int     false  "Items per page (default: 20)"
// @Param        search  query     string  false  "Search by name or SKU"
// @Success      200     {object}  response.Response{data=[]service.CatalogItemResponse}
// @Router       /api/catalog [get]
func (h *CatalogHandler) ListItems(c *gin.Context) {
	p := pagination.Parse(c)
	items, total, err := h.catalogService.ListItems(c.Request.Context(), c.Query("search"), p.Page, p.Limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.SuccessWithPagination(http.StatusOK, items, p.Page, p.Limit, total))
}

// @Summary      Get catalog item
// @Tags         catalog
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Catalog item ID"
// @Success      200  {object}  response.Response{data=service.CatalogItemResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/catalog/{id} [get]
func (h *CatalogHandler) GetItem(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	item, err := h.catalogService.GetItem(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, item))
}

// @Summary      Create catalog item
// @Tags         catalog
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body  service.CatalogItemRequest  true  "Catalog item"
// @Success      201  {object}  response.Response{data=service.CatalogItemResponse}
// @Failure      409  {object}  response.Response
// @Router       /api/catalog [post]
func (h *CatalogHandler) CreateItem(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	var req service.CatalogItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	item, err := h.catalogService.CreateItem(c.Request.Context(), actor, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, item))
}

// @Summary      Update catalog item
// @Tags         catalog
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string                      true  "Catalog item ID"
// @Param        payload  body  service.CatalogItemRequest  true  "Catalog item"
// @Success      200  {object}  response.Response{data=service.CatalogItemResponse}
// @Router       /api/catalog/{id} [put]
func (h *CatalogHandler) UpdateItem(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req service.CatalogItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	item, err := h.catalogService.UpdateItem(c.Request.Context(), actor, id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, item))
}

// @Summary      Delete catalog item
// @Tags         catalog
// @Security     BearerAuth
// @Produce      json
// @Param        id  path  string  true  "Catalog item ID"
// @Success      200  {object}  response.Response
// @Router       /api/catalog/{id} [delete]
func (h *CatalogHandler) DeleteItem(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if err := h.catalogService.DeleteItem(c.Request.Context(), actor, id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "Catalog item deleted successfully"}))
}
