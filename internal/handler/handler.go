package handler

import (
	"net/http"

	"procurement/internal/apperror"
	"procurement/internal/middleware"
	"procurement/internal/service"
	"procurement/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// respondError renders err with the status its kind maps to. Unclassified
// errors are attached to the context so the request logger records them.
func respondError(c *gin.Context, err error) {
	status := apperror.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.JSON(status, response.Error(status, apperror.PublicMessage(err)))
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, msg))
}

// actorFrom returns the caller resolved by the auth middleware.
func actorFrom(c *gin.Context) (service.Actor, bool) {
	raw, ok := c.Get(middleware.ContextUserID)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "User ID not found in context"))
		return service.Actor{}, false
	}
	id, ok := raw.(uuid.UUID)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid User ID format"))
		return service.Actor{}, false
	}
	return service.Actor{ID: id, Role: c.GetString(middleware.ContextUserRole)}, true
}

// uuidParam parses a path parameter, answering 400 when it is malformed.
func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}
