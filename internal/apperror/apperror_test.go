package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestErrorsIsMatchesKind(t *testing.T) {
	err := fmt.Errorf("failed to decide step: %w", Conflict("step %s already decided", "abc"))

	assert.True(t, errors.Is(err, ErrConflict))
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, KindConflict, KindOf(err))
}

func TestBudgetExceededError(t *testing.T) {
	err := &BudgetExceededError{
		Month:     "2026-10",
		Ceiling:   decimal.NewFromInt(5000),
		Committed: decimal.NewFromInt(1000),
		Requested: decimal.NewFromInt(4500),
	}

	assert.True(t, errors.Is(err, ErrBudgetExceeded))
	assert.True(t, err.Shortfall().Equal(decimal.NewFromInt(500)))
	assert.Contains(t, err.Error(), "shortfall 500.00")
	assert.Equal(t, http.StatusUnprocessableEntity, HTTPStatus(fmt.Errorf("wrap: %w", err)))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", Validation("quantity must be positive"), http.StatusBadRequest},
		{"not found", NotFound("purchase order", "PO-1020260001"), http.StatusNotFound},
		{"conflict", Conflict("stale"), http.StatusConflict},
		{"forbidden", Forbidden("no"), http.StatusForbidden},
		{"configuration", Configuration("no approval chain"), http.StatusInternalServerError},
		{"plain", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestPublicMessageHidesInternalErrors(t *testing.T) {
	assert.Equal(t, "internal server error", PublicMessage(errors.New("pq: connection refused")))
	assert.Equal(t, "item name is required", PublicMessage(fmt.Errorf("x: %w", Validation("item name is required"))))
}
