package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"procurement/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Context keys set by the auth middleware.
const (
	ContextUserID   = "userID"
	ContextUserRole = "userRole"
)

const accessTokenCookie = "access_token"

// PermissionSource resolves the permission codes granted to a role.
type PermissionSource interface {
	GetPermissionsByRoleName(ctx context.Context, roleName string) ([]string, error)
}

// permCacheEntry stores cached permission codes for a role with TTL
type permCacheEntry struct {
	codes     []string
	expiresAt time.Time
}

// Auth validates access tokens and checks role permissions.
type Auth struct {
	secret        []byte
	perms         PermissionSource
	secureCookies bool
	cacheTTL      time.Duration
	cache         sync.Map // roleName -> permCacheEntry
	now           func() time.Time
}

// NewAuth builds the auth middleware. secureCookies marks the token cookie
// Secure and SameSite=None for cross-origin production deployments.
func NewAuth(secret string, perms PermissionSource, secureCookies bool) *Auth {
	return &Auth{
		secret:        []byte(secret),
		perms:         perms,
		secureCookies: secureCookies,
		cacheTTL:      5 * time.Minute,
		now:           time.Now,
	}
}

// Secret returns the HMAC key tokens are signed with.
func (a *Auth) Secret() []byte {
	return a.secret
}

// SetTokenCookie stores the access token as an HttpOnly cookie.
func (a *Auth) SetTokenCookie(c *gin.Context, token string, expiresAt time.Time) {
	c.SetSameSite(a.sameSite())
	maxAge := int(time.Until(expiresAt).Seconds())
	c.SetCookie(accessTokenCookie, token, maxAge, "/", "", a.secureCookies, true)
}

// ClearTokenCookie removes the access token cookie.
func (a *Auth) ClearTokenCookie(c *gin.Context) {
	c.SetSameSite(a.sameSite())
	c.SetCookie(accessTokenCookie, "", -1, "/", "", a.secureCookies, true)
}

func (a *Auth) sameSite() http.SameSite {
	if a.secureCookies {
		return http.SameSiteNoneMode
	}
	return http.SameSiteLaxMode
}

var errMissingToken = errors.New("authorization is missing")

// tokenFrom reads the token from the cookie first, then the Authorization header.
func tokenFrom(c *gin.Context) (string, error) {
	if token, err := c.Cookie(accessTokenCookie); err == nil && token != "" {
		return token, nil
	}
	header := c.GetHeader("Authorization")
	if header == "" {
		return "", errMissingToken
	}
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", errors.New("invalid authorization format, expected 'Bearer <token>'")
	}
	return parts[1], nil
}

// ParseToken validates an HS256 token and returns its subject and role.
func (a *Auth) ParseToken(tokenString string) (uuid.UUID, string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return a.secret, nil
	}, jwt.WithTimeFunc(a.now))
	if err != nil {
		return uuid.Nil, "", err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return uuid.Nil, "", errors.New("invalid token claims")
	}
	sub, _ := claims["sub"].(string)
	userID, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, "", errors.New("invalid token subject")
	}
	role, ok := claims["role"].(string)
	if !ok || role == "" {
		return uuid.Nil, "", errors.New("role not found in token")
	}
	return userID, role, nil
}

// authenticate resolves the caller and stores it on the context. It aborts
// the request and returns false when the token is missing or invalid.
func (a *Auth) authenticate(c *gin.Context) bool {
	tokenString, err := tokenFrom(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, err.Error()))
		return false
	}
	userID, role, err := a.ParseToken(tokenString)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid token"))
		return false
	}
	c.Set(ContextUserID, userID)
	c.Set(ContextUserRole, role)
	return true
}

// Authenticate only requires a valid token.
func (a *Auth) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		if a.authenticate(c) {
			c.Next()
		}
	}
}

// RequirePermission validates the token and checks that the caller's role
// holds every listed permission code.
func (a *Auth) RequirePermission(requiredPerms ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !a.authenticate(c) {
			return
		}

		userPerms, err := a.Permissions(c.Request.Context(), c.GetString(ContextUserRole))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, "Failed to verify permissions"))
			return
		}

		permSet := make(map[string]bool, len(userPerms))
		for _, p := range userPerms {
			permSet[p] = true
		}
		for _, required := range requiredPerms {
			if !permSet[required] {
				c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Access denied: missing permission '"+required+"'"))
				return
			}
		}

		c.Next()
	}
}

// Permissions returns the cached or freshly loaded permission codes of a role.
func (a *Auth) Permissions(ctx context.Context, roleName string) ([]string, error) {
	if entry, ok := a.cache.Load(roleName); ok {
		cached := entry.(permCacheEntry)
		if a.now().Before(cached.expiresAt) {
			return cached.codes, nil
		}
	}

	codes, err := a.perms.GetPermissionsByRoleName(ctx, roleName)
	if err != nil {
		return nil, err
	}
	a.cache.Store(roleName, permCacheEntry{codes: codes, expiresAt: a.now().Add(a.cacheTTL)})
	return codes, nil
}

// ClearPermissionCache drops the cached permissions of a role, or of every
// role when roleName is empty.
func (a *Auth) ClearPermissionCache(roleName string) {
	if roleName != "" {
		a.cache.Delete(roleName)
		return
	}
	a.cache.Range(func(key, _ interface{}) bool {
		a.cache.Delete(key)
		return true
	})
}
