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

type VendorHandler struct {
	vendorService service.VendorService
	auth          *middleware.Auth
}

func NewVendorHandler(vendorService service.VendorService, auth *middleware.Auth) *VendorHandler {
	return &VendorHandler{vendorService: vendorService, auth: auth}
}

func (h *VendorHandler) RegisterRoutes(router *gin.RouterGroup) {
	vendors := router.Group("/api/vendors")
	{
		vendors.GET("", h.auth.RequirePermission(model.PermVendorsRead), h.ListVendors)
		vendors.GET("/:id", h.auth.RequirePermission(model.PermVendorsRead), h.GetVendor)
		vendors.POST("", h.auth.RequirePermission(model.PermVendorsWrite), h.CreateVendor)
		vendors.PUT("/:id", h.auth.RequirePermission(model.PermVendorsWrite), h.UpdateVendor)
		vendors.DELETE("/:id", h.auth.RequirePermission(model.PermVendorsWrite), h.DeleteVendor)
	}
}

// ListVendors returns paginated vendors with an optional search filter
// @Summary      List vendors
// @Tags         vendors
// @Security     BearerAuth
// @Produce      json
// @Param        page    query     int     false  "Page number (default: 1)"
// @Param        limit   query     int     false  "Items per page (default: 20)"
// @Param        search  query     string  false  "Search by name or tax code"
// @Success      200     {object}  response.Response{data=[]service.VendorResponse}
// @Router       /api/vendors [get]
func (h *VendorHandler) ListVendors(c *gin.Context) {
	p := pagination.Parse(c)
	vendors, total, err := h.vendorService.ListVendors(c.Request.Context(), c.Query("search"), p.Page, p.Limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.SuccessWithPagination(http.StatusOK, vendors, p.Page, p.Limit, total))
}

// GetVendor returns a single vendor
// @Summary      Get vendor
// @Tags         vendors
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Vendor ID"
// @Success      200  {object}  response.Response{data=service.VendorResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/vendors/{id} [get]
func (h *VendorHandler) GetVendor(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	vendor, err := h.vendorService.GetVendor(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, vendor))
}

// CreateVendor creates a new vendor
// @Summary      Create vendor
// @Tags         vendors
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body  service.CreateVendorRequest  true  "Vendor payload"
// @Success      201  {object}  response.Response{data=service.VendorResponse}
// @Failure      400  {object}  response.Response
// @Router       /api/vendors [post]
func (h *VendorHandler) CreateVendor(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	var req service.CreateVendorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	vendor, err := h.vendorService.CreateVendor(c.Request.Context(), actor, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, vendor))
}

// UpdateVendor updates the fields present in the payload
// @Summary      Update vendor
// @Tags         vendors
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string                       true  "Vendor ID"
// @Param        payload  body  service.UpdateVendorRequest  true  "Update payload"
// @Success      200  {object}  response.Response{data=service.VendorResponse}
// @Failure      400  {object}  response.Response
// @Router       /api/vendors/{id} [put]
func (h *VendorHandler) UpdateVendor(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req service.UpdateVendorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	vendor, err := h.vendorService.UpdateVendor(c.Request.Context(), actor, id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, vendor))
}

// DeleteVendor deletes a vendor (soft delete)
// @Summary      Delete vendor
// @Tags         vendors
// @Security     BearerAuth
// @Produce      json
// @Param        id  path  string  true  "Vendor ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/vendors/{id} [delete]
func (h *VendorHandler) DeleteVendor(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if err := h.vendorService.DeleteVendor(c.Request.Context(), actor, id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "Vendor deleted successfully"}))
}
