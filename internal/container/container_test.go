package container

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"procurement/internal/config"
	"procurement/internal/database"
	"procurement/internal/model"
	"procurement/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type envelope struct {
	Status     string          `json:"status"`
	StatusCode int             `json:"status_code"`
	Data       json.RawMessage `json:"data"`
	Error      string          `json:"error"`
}

type testApp struct {
	t      *testing.T
	ctr    *Container
	router *gin.Engine
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Default()
	cfg.Database.Driver = "sqlite"
	cfg.Database.Path = "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	cfg.Auth.JWTSecret = "container-test-secret"
	cfg.Storage.BaseDir = t.TempDir()
	cfg.Server.RateLimitRPS = 0
	cfg.Approval.Chain = []config.ChainEntry{{Name: "Line manager", Approver: "manager"}}

	db, err := database.Connect(cfg.Database, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	require.NoError(t, database.Migrate(db))

	ctr := New(cfg, db, zap.NewNop())
	ctx := context.Background()
	for _, u := range []struct{ name, role string }{
		{"admin", model.RoleAdmin},
		{"manager", model.RoleManager},
		{"purchaser", model.RolePurchaser},
		{"staff", model.RoleStaff},
	} {
		_, err := ctr.Users.CreateUser(ctx, service.CreateUserRequest{
			Username: u.name,
			Email:    u.name + "@example.com",
			Password: "secret123",
			Role:     u.role,
		})
		require.NoError(t, err)
	}
	require.NoError(t, ctr.Seed(ctx))

	return &testApp{t: t, ctr: ctr, router: ctr.Router()}
}

func (a *testApp) do(method, path, token string, body any) (*httptest.ResponseRecorder, envelope) {
	a.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &env)
	}
	return w, env
}

func (a *testApp) login(username string) string {
	a.t.Helper()
	w, env := a.do(http.MethodPost, "/login", "", gin.H{
		"email":    username + "@example.com",
		"password": "secret123",
	})
	require.Equal(a.t, http.StatusOK, w.Code, w.Body.String())
	var tok service.TokenResponse
	require.NoError(a.t, json.Unmarshal(env.Data, &tok))
	require.NotEmpty(a.t, tok.Token)
	return tok.Token
}

func TestHealth(t *testing.T) {
	app := newTestApp(t)

	w, _ := app.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	app := newTestApp(t)

	w, env := app.do(http.MethodGet, "/api/requests", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "error", env.Status)
}

func TestLoginRejectsBadPassword(t *testing.T) {
	app := newTestApp(t)

	w, _ := app.do(http.MethodPost, "/login", "", gin.H{"email": "staff@example.com", "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequestLifecycleOverHTTP(t *testing.T) {
	app := newTestApp(t)
	admin := app.login("admin")
	manager := app.login("manager")
	purchaser := app.login("purchaser")
	staff := app.login("staff")

	month := model.MonthOf(time.Now())
	w, _ := app.do(http.MethodPut, "/api/budgets/"+month, admin, gin.H{"amount": "10000"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, env := app.do(http.MethodPost, "/api/requests", staff, gin.H{
		"title":    "Desk chairs",
		"category": "NORMAL",
		"items": []gin.H{
			{"name": "Office chair", "quantity": 4, "unit_price": "125.50"},
		},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created service.RequestResponse
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, model.RequestPending, created.Status)
	assert.True(t, decimal.RequireFromString("502").Equal(created.TotalAmount))
	require.Len(t, created.Items, 1)
	require.Len(t, created.Steps, 1)
	stepID := created.Steps[0].ID.String()

	w, _ = app.do(http.MethodPut, "/api/approvals/"+stepID+"/approve", staff, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, env = app.do(http.MethodGet, "/api/approvals/pending", manager, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var pending []service.PendingStepResponse
	require.NoError(t, json.Unmarshal(env.Data, &pending))
	require.Len(t, pending, 1)
	assert.Equal(t, created.ID, pending[0].RequestID)

	w, env = app.do(http.MethodPut, "/api/approvals/"+stepID+"/approve", manager, gin.H{"comment": "ok"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var decision service.DecisionResult
	require.NoError(t, json.Unmarshal(env.Data, &decision))
	assert.Equal(t, model.RequestApproved, decision.RequestStatus)

	w, env = app.do(http.MethodPost, "/api/purchase-orders", purchaser, gin.H{
		"items": []gin.H{
			{"request_item_id": created.Items[0].ID.String(), "quantity": 4, "unit_price": "120"},
		},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var order service.OrderResponse
	require.NoError(t, json.Unmarshal(env.Data, &order))
	require.NotEmpty(t, order.PONumber)
	require.Len(t, order.Items, 1)

	w, env = app.do(http.MethodPost, "/api/purchase-orders/"+order.PONumber+"/receipts", purchaser, gin.H{
		"items": []gin.H{
			{"po_item_id": order.Items[0].ID.String(), "quantity_received": 4},
		},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w, env = app.do(http.MethodGet, "/api/requests/"+created.ID.String(), staff, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var final service.RequestResponse
	require.NoError(t, json.Unmarshal(env.Data, &final))
	assert.Equal(t, model.RequestReceived, final.Status)

	w, env = app.do(http.MethodGet, "/api/purchase-orders/"+order.PONumber, purchaser, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var fulfilled service.OrderResponse
	require.NoError(t, json.Unmarshal(env.Data, &fulfilled))
	assert.Equal(t, model.OrderFulfilled, fulfilled.Status)
}

func TestRequestOverBudgetIsRejectedAtCreation(t *testing.T) {
	app := newTestApp(t)
	admin := app.login("admin")
	staff := app.login("staff")

	month := model.MonthOf(time.Now())
	w, _ := app.do(http.MethodPut, "/api/budgets/"+month, admin, gin.H{"amount": "100"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, env := app.do(http.MethodPost, "/api/requests", staff, gin.H{
		"title":    "Laptops",
		"category": "NORMAL",
		"items":    []gin.H{{"name": "Laptop", "quantity": 2, "unit_price": "900"}},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())
	assert.Equal(t, "error", env.Status)
}

func (a *testApp) createRequest(token string) service.RequestResponse {
	a.t.Helper()
	admin := a.login("admin")
	w, _ := a.do(http.MethodPut, "/api/budgets/"+model.MonthOf(time.Now()), admin, gin.H{"amount": "10000"})
	require.Equal(a.t, http.StatusOK, w.Code, w.Body.String())

	w, env := a.do(http.MethodPost, "/api/requests", token, gin.H{
		"title":    "Paper",
		"category": "NORMAL",
		"items":    []gin.H{{"name": "A4 paper", "quantity": 10, "unit_price": "4.20"}},
	})
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())
	var created service.RequestResponse
	require.NoError(a.t, json.Unmarshal(env.Data, &created))
	return created
}

func TestDecisionIsCaseInsensitive(t *testing.T) {
	app := newTestApp(t)
	manager := app.login("manager")
	created := app.createRequest(app.login("staff"))
	stepID := created.Steps[0].ID.String()

	w, _ := app.do(http.MethodPut, "/api/approvals/"+stepID+"/decision", manager, gin.H{"decision": "maybe"})
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

	w, env := app.do(http.MethodPut, "/api/approvals/"+stepID+"/decision", manager, gin.H{"decision": " approved ", "comment": "ok"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var decision service.DecisionResult
	require.NoError(t, json.Unmarshal(env.Data, &decision))
	assert.Equal(t, model.StepApproved, decision.Step.Status)
	assert.Equal(t, model.RequestApproved, decision.RequestStatus)
}

func TestStepLookupOverHTTP(t *testing.T) {
	app := newTestApp(t)
	manager := app.login("manager")
	staff := app.login("staff")
	created := app.createRequest(staff)

	w, env := app.do(http.MethodGet, "/api/approvals/"+created.Steps[0].ID.String(), manager, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var step service.PendingStepResponse
	require.NoError(t, json.Unmarshal(env.Data, &step))
	assert.Equal(t, created.ID, step.RequestID)
	assert.Equal(t, "Line manager", step.StepName)

	w, _ = app.do(http.MethodGet, "/api/approvals/"+uuid.NewString(), manager, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, env = app.do(http.MethodGet, "/api/requests/"+created.ID.String()+"/steps", staff, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var steps []service.StepResponse
	require.NoError(t, json.Unmarshal(env.Data, &steps))
	require.Len(t, steps, 1)
	assert.Equal(t, "manager", steps[0].ApproverName)
}

func TestItemImageRoundTrip(t *testing.T) {
	app := newTestApp(t)
	staff := app.login("staff")
	created := app.createRequest(staff)
	path := "/api/requests/" + created.ID.String() + "/items/" + created.Items[0].ID.String() + "/image"

	w, _ := app.do(http.MethodGet, path, staff, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	content := []byte("\x89PNG\r\n\x1a\nfake-image-body")
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("image", "paper.png")
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+staff)
	rec := httptest.NewRecorder()
	app.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	w, _ = app.do(http.MethodGet, path, staff, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), ".png")
	assert.Equal(t, content, w.Body.Bytes())
}
