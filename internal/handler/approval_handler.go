package handler

import (
	"net/http"
	"strings"

	"procurement/internal/middleware"
	"procurement/internal/model"
	"procurement/internal/service"
	"procurement/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type ApprovalHandler struct {
	approvalService service.ApprovalService
	auth            *middleware.Auth
}

func NewApprovalHandler(approvalService service.ApprovalService, auth *middleware.Auth) *ApprovalHandler {
	return &ApprovalHandler{approvalService: approvalService, auth: auth}
}

func (h *ApprovalHandler) RegisterRoutes(router *gin.RouterGroup) {
	approvals := router.Group("/api/approvals")
	{
		approvals.GET("/pending", h.auth.RequirePermission(model.PermApprovalsRead), h.ListPending)
		approvals.GET("/:id", h.auth.RequirePermission(model.PermApprovalsRead), h.GetStep)
		approvals.PUT("/:id/decision", h.auth.RequirePermission(model.PermApprovalsDecide), h.Decide)
		approvals.PUT("/:id/approve", h.auth.RequirePermission(model.PermApprovalsDecide), h.Approve)
		approvals.PUT("/:id/reject", h.auth.RequirePermission(model.PermApprovalsDecide), h.Reject)
	}

	chain := router.Group("/api/approval-chain")
	{
		chain.GET("", h.auth.RequirePermission(model.PermApprovalsRead), h.GetChain)
		chain.PUT("", h.auth.RequirePermission(model.PermApprovalsManage), h.ReplaceChain)
	}
}

// ListPending returns the steps waiting on the caller. Admins may look at
// another approver's queue with approver_id.
// @Summary      List pending approval steps
// @Tags         approvals
// @Security     BearerAuth
// @Produce      json
// @Param        approver_id  query     string  false  "Approver UUID (admin only)"
// @Success      200          {object}  response.Response{data=[]service.PendingStepResponse}
// @Router       /api/approvals/pending [get]
func (h *ApprovalHandler) ListPending(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	approverID := actor.ID
	if raw := c.Query("approver_id"); raw != "" && actor.IsAdmin() {
		id, err := uuid.Parse(raw)
		if err != nil {
			badRequest(c, "invalid approver_id")
			return
		}
		approverID = id
	}

	steps, err := h.approvalService.ListPendingForApprover(c.Request.Context(), approverID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, steps))
}

// GetStep returns one approval step with its request
// @Summary      Get approval step
// @Tags         approvals
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Step ID"
// @Success      200  {object}  response.Response{data=service.PendingStepResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/approvals/{id} [get]
func (h *ApprovalHandler) GetStep(c *gin.Context) {
	stepID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	step, err := h.approvalService.GetStep(c.Request.Context(), stepID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, step))
}

// Decide records an approval or rejection on a step
// @Summary      Decide approval step
// @Description  A full set of approvals triggers the final budget check; a rejection rejects the request
// @Tags         approvals
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                     true  "Step ID"
// @Param        payload  body      service.DecideStepRequest  true  "Decision"
// @Success      200      {object}  response.Response{data=service.DecisionResult}
// @Failure      403      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/approvals/{id}/decision [put]
func (h *ApprovalHandler) Decide(c *gin.Context) {
	var req service.DecideStepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload: "+err.Error())
		return
	}
	// Clients send the verdict in any case
	decision := model.Decision(strings.ToUpper(strings.TrimSpace(req.Decision)))
	h.decide(c, decision, req.Comment)
}

// Approve is a shortcut for an APPROVED decision
// @Summary      Approve step
// @Tags         approvals
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Step ID"
// @Success      200  {object}  response.Response{data=service.DecisionResult}
// @Router       /api/approvals/{id}/approve [put]
func (h *ApprovalHandler) Approve(c *gin.Context) {
	h.decide(c, model.DecisionApprove, optionalComment(c))
}

// Reject is a shortcut for a REJECTED decision
// @Summary      Reject step
// @Tags         approvals
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Step ID"
// @Success      200  {object}  response.Response{data=service.DecisionResult}
// @Router       /api/approvals/{id}/reject [put]
func (h *ApprovalHandler) Reject(c *gin.Context) {
	h.decide(c, model.DecisionReject, optionalComment(c))
}

func optionalComment(c *gin.Context) string {
	var body struct {
		Comment string `json:"comment"`
	}
	// Allow empty body, the comment is optional
	_ = c.ShouldBindJSON(&body)
	return body.Comment
}

func (h *ApprovalHandler) decide(c *gin.Context, decision model.Decision, comment string) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	stepID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	result, err := h.approvalService.Decide(c.Request.Context(), stepID, decision, comment, actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// GetChain returns the configured approval chain in order
// @Summary      Get approval chain
// @Tags         approvals
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=[]service.ChainEntryResponse}
// @Router       /api/approval-chain [get]
func (h *ApprovalHandler) GetChain(c *gin.Context) {
	chain, err := h.approvalService.GetChain(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, chain))
}

// ReplaceChain swaps the whole approval chain. Requests already raised keep their steps.
// @Summary      Replace approval chain
// @Tags         approvals
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.ReplaceChainRequest  true  "Chain entries in order"
// @Success      200      {object}  response.Response{data=[]service.ChainEntryResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/approval-chain [put]
func (h *ApprovalHandler) ReplaceChain(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	var req service.ReplaceChainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	chain, err := h.approvalService.ReplaceChain(c.Request.Context(), req, actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, chain))
}
