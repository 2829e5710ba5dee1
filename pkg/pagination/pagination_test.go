package pagination

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		query string
		want  Params
	}{
		{"", Params{Page: 1, Limit: 20}},
		{"?page=3&limit=5", Params{Page: 3, Limit: 5}},
		{"?page=0&limit=-1", Params{Page: 1, Limit: 20}},
		{"?page=abc&limit=500", Params{Page: 1, Limit: MaxLimit}},
	}
	for _, tc := range cases {
		t.Run(tc.query, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest("GET", "/items"+tc.query, nil)
			assert.Equal(t, tc.want, Parse(c))
		})
	}
	assert.Equal(t, 10, Params{Page: 3, Limit: 5}.Offset())
}
