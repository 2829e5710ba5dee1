package handler

import (
	"net/http"
	"strconv"
	"time"

	"procurement/internal/middleware"
	"procurement/internal/model"
	"procurement/internal/service"
	"procurement/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type BudgetHandler struct {
	budgetService service.BudgetService
	auth          *middleware.Auth
}

func NewBudgetHandler(budgetService service.BudgetService, auth *middleware.Auth) *BudgetHandler {
	return &BudgetHandler{budgetService: budgetService, auth: auth}
}

func (h *BudgetHandler) RegisterRoutes(router *gin.RouterGroup) {
	budgets := router.Group("/api/budgets")
	{
		budgets.GET("", h.auth.RequirePermission(model.PermBudgetsRead), h.ListBudgets)
		budgets.GET("/:month", h.auth.RequirePermission(model.PermBudgetsRead), h.GetBudgetStatus)
		budgets.PUT("/:month", h.auth.RequirePermission(model.PermBudgetsWrite), h.SetBudget)
		budgets.GET("/:month/check", h.auth.RequirePermission(model.PermBudgetsRead), h.CheckBudget)
	}
}

// ListBudgets returns the status of every month of a year
// @Summary      List monthly budgets
// @Tags         budgets
// @Security     BearerAuth
// @Produce      json
// @Param        year  query     int  false  "Year (default: current year)"
// @Success      200   {object}  response.Response{data=[]service.BudgetStatus}
// @Router       /api/budgets [get]
func (h *BudgetHandler) ListBudgets(c *gin.Context) {
	year := time.Now().Year()
	if raw := c.Query("year"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			badRequest(c, "invalid year")
			return
		}
		year = parsed
	}

	statuses, err := h.budgetService.ListBudgetStatuses(c.Request.Context(), year)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, statuses))
}

// GetBudgetStatus returns ceiling, committed spend and remaining headroom of a month
// @Summary      Get budget status
// @Tags         budgets
// @Security     BearerAuth
// @Produce      json
// @Param        month  path      string  true  "Month, YYYY-MM"
// @Success      200    {object}  response.Response{data=service.BudgetStatus}
// @Failure      400    {object}  response.Response
// @Router       /api/budgets/{month} [get]
func (h *BudgetHandler) GetBudgetStatus(c *gin.Context) {
	status, err := h.budgetService.GetBudgetStatus(c.Request.Context(), c.Param("month"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, status))
}

// SetBudget creates or replaces the ceiling of a month
// @Summary      Set monthly budget
// @Tags         budgets
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        month    path      string                    true  "Month, YYYY-MM"
// @Param        payload  body      service.SetBudgetRequest  true  "Budget amount"
// @Success      200      {object}  response.Response{data=service.BudgetStatus}
// @Failure      400      {object}  response.Response
// @Router       /api/budgets/{month} [put]
func (h *BudgetHandler) SetBudget(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	var req service.SetBudgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	status, err := h.budgetService.SetMonthlyBudget(c.Request.Context(), c.Param("month"), req.Amount, actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, status))
}

// CheckBudget tells whether an extra amount would still fit the month
// @Summary      Check budget
// @Tags         budgets
// @Security     BearerAuth
// @Produce      json
// @Param        month   path      string  true  "Month, YYYY-MM"
// @Param        amount  query     string  true  "Candidate amount"
// @Success      200     {object}  response.Response{data=service.BudgetCheckResult}
// @Failure      400     {object}  response.Response
// @Router       /api/budgets/{month}/check [get]
func (h *BudgetHandler) CheckBudget(c *gin.Context) {
	amount, err := decimal.NewFromString(c.Query("amount"))
	if err != nil {
		badRequest(c, "amount must be a decimal number")
		return
	}

	res, err := h.budgetService.CheckBudget(c.Request.Context(), c.Param("month"), amount)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, res))
}
