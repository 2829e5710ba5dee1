package pagination

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 100
)

// Params holds validated pagination parameters.
type Params struct {
	Page  int
	Limit int
}

// Offset is the number of rows to skip for the page.
func (p Params) Offset() int {
	return (p.Page - 1) * p.Limit
}

// Parse reads page and limit from the query string. Missing or malformed
// values fall back to the defaults and limit is capped at MaxLimit.
func Parse(c *gin.Context) Params {
	return Params{
		Page:  queryInt(c, "page", DefaultPage),
		Limit: min(queryInt(c, "limit", DefaultLimit), MaxLimit),
	}
}

func queryInt(c *gin.Context, key string, fallback int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil || v < 1 {
		return fallback
	}
	return v
}
