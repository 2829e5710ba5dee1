package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type stubPerms struct {
	codes map[string][]string
	calls int
	err   error
}

func (s *stubPerms) GetPermissionsByRoleName(_ context.Context, role string) ([]string, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.codes[role], nil
}

func sign(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func newRouter(auth *Auth, perms ...string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/thing", auth.RequirePermission(perms...), func(c *gin.Context) {
		id, _ := c.Get(ContextUserID)
		c.String(http.StatusOK, id.(uuid.UUID).String()+" "+c.GetString(ContextUserRole))
	})
	return r
}

func TestRequirePermission(t *testing.T) {
	perms := &stubPerms{codes: map[string][]string{"staff": {"requests.read"}}}
	auth := NewAuth("secret", perms, false)
	r := newRouter(auth, "requests.read")
	userID := uuid.New()
	valid := sign(t, "secret", jwt.MapClaims{"sub": userID.String(), "role": "staff", "exp": time.Now().Add(time.Hour).Unix()})

	cases := []struct {
		name   string
		header string
		cookie string
		want   int
	}{
		{"missing token", "", "", http.StatusUnauthorized},
		{"bad scheme", "Token " + valid, "", http.StatusUnauthorized},
		{"wrong key", "Bearer " + sign(t, "other", jwt.MapClaims{"sub": userID.String(), "role": "staff"}), "", http.StatusUnauthorized},
		{"expired", "Bearer " + sign(t, "secret", jwt.MapClaims{"sub": userID.String(), "role": "staff", "exp": time.Now().Add(-time.Hour).Unix()}), "", http.StatusUnauthorized},
		{"no role", "Bearer " + sign(t, "secret", jwt.MapClaims{"sub": userID.String()}), "", http.StatusUnauthorized},
		{"header", "Bearer " + valid, "", http.StatusOK},
		{"cookie", "", valid, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/thing", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			if tc.cookie != "" {
				req.AddCookie(&http.Cookie{Name: accessTokenCookie, Value: tc.cookie})
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.want, w.Code)
			if tc.want == http.StatusOK {
				assert.Equal(t, userID.String()+" staff", w.Body.String())
			}
		})
	}
	assert.Equal(t, 1, perms.calls, "permissions are cached per role")
}

func TestRequirePermission_Denied(t *testing.T) {
	perms := &stubPerms{codes: map[string][]string{"staff": {"requests.read"}}}
	auth := NewAuth("secret", perms, false)
	r := newRouter(auth, "orders.write")
	token := sign(t, "secret", jwt.MapClaims{"sub": uuid.NewString(), "role": "staff"})

	req := httptest.NewRequest(http.MethodGet, "/thing", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	perms.err = errors.New("db down")
	auth.ClearPermissionCache("")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestRateLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RateLimit(0.001, 2))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusNoContent, http.StatusNoContent, http.StatusTooManyRequests}, codes)
}

func TestRequestLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zapcore.InfoLevel)
	r := gin.New()
	r.Use(RequestLogger(zap.New(core)))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ok?x=1", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, "x=1", entries[0].ContextMap()["query"])
	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
}
