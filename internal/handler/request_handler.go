package handler

import (
	"io"
	"net/http"

	"procurement/internal/middleware"
	"procurement/internal/model"
	"procurement/internal/service"
	"procurement/pkg/pagination"
	"procurement/pkg/response"

	"github.com/gin-gonic/gin"
)

type RequestHandler struct {
	requestService service.RequestService
	auth           *middleware.Auth
	maxImageSize   int64
}

func NewRequestHandler(requestService service.RequestService, auth *middleware.Auth, maxImageSize int64) *RequestHandler {
	return &RequestHandler{requestService: requestService, auth: auth, maxImageSize: maxImageSize}
}

func (h *RequestHandler) RegisterRoutes(router *gin.RouterGroup) {
	requests := router.Group("/api/requests")
	{
		requests.GET("", h.auth.RequirePermission(model.PermRequestsRead), h.ListRequests)
		requests.POST("", h.auth.RequirePermission(model.PermRequestsCreate), h.CreateRequest)
		requests.GET("/:id", h.auth.RequirePermission(model.PermRequestsRead), h.GetRequest)
		requests.DELETE("/:id", h.auth.RequirePermission(model.PermRequestsDelete), h.DeleteRequest)
		requests.POST("/:id/cancel", h.auth.RequirePermission(model.PermRequestsCreate), h.CancelRequest)
		requests.GET("/:id/history", h.auth.RequirePermission(model.PermRequestsRead), h.GetHistory)
		requests.GET("/:id/steps", h.auth.RequirePermission(model.PermRequestsRead), h.ListSteps)
		requests.POST("/:id/items/:itemId/image", h.auth.RequirePermission(model.PermRequestsCreate), h.AttachItemImage)
		requests.GET("/:id/items/:itemId/image", h.auth.RequirePermission(model.PermRequestsRead), h.GetItemImage)
	}
}

// CreateRequest raises a purchase request for the caller
// @Summary      Create purchase request
// @Description  Validates the items, computes the total and opens one approval step per chain entry
// @Tags         requests
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateRequestDTO  true  "Request payload"
// @Success      201      {object}  response.Response{data=service.RequestResponse}
// @Failure      400      {object}  response.Response
// @Failure      422      {object}  response.Response
// @Failure      500      {object}  response.Response
// @Router       /api/requests [post]
func (h *RequestHandler) CreateRequest(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	var req service.CreateRequestDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	res, err := h.requestService.CreateRequest(c.Request.Context(), actor, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, res))
}

// ListRequests returns purchase requests, newest first
// @Summary      List purchase requests
// @Tags         requests
// @Security     BearerAuth
// @Produce      json
// @Param        status        query     string  false  "PENDING, APPROVED, REJECTED, CANCELLED, ORDERED, RECEIVED"
// @Param        requester_id  query     string  false  "Requester UUID"
// @Param        month         query     string  false  "Creation month, YYYY-MM"
// @Param        page          query     int     false  "Page number (default 1)"
// @Param        limit         query     int     false  "Items per page (default 20)"
// @Success      200           {object}  response.Response{data=[]service.RequestResponse}
// @Router       /api/requests [get]
func (h *RequestHandler) ListRequests(c *gin.Context) {
	p := pagination.Parse(c)
	filter := service.RequestFilter{
		Status:      c.Query("status"),
		RequesterID: c.Query("requester_id"),
		Month:       c.Query("month"),
		Page:        p.Page,
		Limit:       p.Limit,
	}

	requests, total, err := h.requestService.ListRequests(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.SuccessWithPagination(http.StatusOK, requests, p.Page, p.Limit, total))
}

// GetRequest returns a request with its items and approval steps
// @Summary      Get purchase request
// @Tags         requests
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Request ID"
// @Success      200  {object}  response.Response{data=service.RequestResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/requests/{id} [get]
func (h *RequestHandler) GetRequest(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	res, err := h.requestService.GetRequest(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, res))
}

// DeleteRequest removes a request with its items and steps
// @Summary      Delete purchase request
// @Description  Privileged callers only. Requests already on a purchase order cannot be deleted.
// @Tags         requests
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Request ID"
// @Success      200  {object}  response.Response
// @Failure      403  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Failure      409  {object}  response.Response
// @Router       /api/requests/{id} [delete]
func (h *RequestHandler) DeleteRequest(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if err := h.requestService.DeleteRequest(c.Request.Context(), id, actor); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "Request deleted successfully"}))
}

// CancelRequest withdraws a request that has nothing ordered yet
// @Summary      Cancel purchase request
// @Tags         requests
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                    true   "Request ID"
// @Param        payload  body      service.CancelRequestDTO  false  "Optional reason"
// @Success      200      {object}  response.Response{data=service.RequestResponse}
// @Failure      409      {object}  response.Response
// @Router       /api/requests/{id}/cancel [post]
func (h *RequestHandler) CancelRequest(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req service.CancelRequestDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		// Allow empty body, the reason is optional
		req.Reason = ""
	}

	res, err := h.requestService.CancelRequest(c.Request.Context(), id, actor, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, res))
}

// GetHistory returns the event trail of a request
// @Summary      Get request history
// @Tags         requests
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Request ID"
// @Success      200  {object}  response.Response{data=[]model.RequestHistory}
// @Router       /api/requests/{id}/history [get]
func (h *RequestHandler) GetHistory(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	entries, err := h.requestService.GetHistory(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, entries))
}

// ListSteps returns the approval steps of a request
// @Summary      List request approval steps
// @Tags         requests
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Request ID"
// @Success      200  {object}  response.Response{data=[]service.StepResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/requests/{id}/steps [get]
func (h *RequestHandler) ListSteps(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	steps, err := h.requestService.ListSteps(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, steps))
}

// AttachItemImage uploads a picture for one request item
// @Summary      Attach item image
// @Tags         requests
// @Security     BearerAuth
// @Accept       multipart/form-data
// @Produce      json
// @Param        id      path      string  true  "Request ID"
// @Param        itemId  path      string  true  "Item ID"
// @Param        image   formData  file    true  "Image file"
// @Success      200     {object}  response.Response{data=service.RequestItemResponse}
// @Failure      400     {object}  response.Response
// @Router       /api/requests/{id}/items/{itemId}/image [post]
func (h *RequestHandler) AttachItemImage(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	requestID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	itemID, ok := uuidParam(c, "itemId")
	if !ok {
		return
	}

	header, err := c.FormFile("image")
	if err != nil {
		badRequest(c, "image file is required")
		return
	}
	if h.maxImageSize > 0 && header.Size > h.maxImageSize {
		badRequest(c, "image is too large")
		return
	}
	file, err := header.Open()
	if err != nil {
		badRequest(c, "failed to read image")
		return
	}
	defer file.Close()
	content, err := io.ReadAll(file)
	if err != nil {
		badRequest(c, "failed to read image")
		return
	}

	res, err := h.requestService.AttachItemImage(c.Request.Context(), requestID, itemID, actor, header.Filename, content)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, res))
}

// GetItemImage downloads the picture attached to a request item
// @Summary      Download item image
// @Tags         requests
// @Security     BearerAuth
// @Produce      octet-stream
// @Param        id      path      string  true  "Request ID"
// @Param        itemId  path      string  true  "Item ID"
// @Success      200     {file}    file
// @Failure      404     {object}  response.Response
// @Router       /api/requests/{id}/items/{itemId}/image [get]
func (h *RequestHandler) GetItemImage(c *gin.Context) {
	requestID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	itemID, ok := uuidParam(c, "itemId")
	if !ok {
		return
	}

	img, err := h.requestService.GetItemImage(c.Request.Context(), requestID, itemID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", `inline; filename="`+img.Name+`"`)
	c.Data(http.StatusOK, http.DetectContentType(img.Content), img.Content)
}
