package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	appValidator "github.com/driftlinehq/driftline-site/pkg/validator"
)

func TestFormatValidationError(t *testing.T) {
	cases := []struct {
		failures appValidator.ValidationErrors
		want     string
	}{
		{
			failures: appValidator.ValidationErrors{{Field: "email", Tag: "required"}},
			want:     "email is required",
		},
		{
			failures: appValidator.ValidationErrors{{Field: "email", Tag: "email"}},
			want:     "email must be a valid email address",
		},
		{
			failures: appValidator.ValidationErrors{{Field: "new_password", Tag: "min", Param: "8"}},
			want:     "new password must be at least 8 characters",
		},
		{
			failures: appValidator.ValidationErrors{},
			want:     "invalid request payload",
		},
	}

	for _, tc := range cases {
		require.Equal(t, tc.want, formatValidationError(tc.failures))
	}
}

func TestBindAndValidate(t *testing.T) {
	gin.SetMode(gin.TestMode)

	type payload struct {
		Email string `json:"email" validate:"required,email"`
	}

	r := gin.New()
	r.POST("/", func(c *gin.Context) {
		var p payload
		if !bindAndValidate(c, &p) {
			return
		}
		c.Status(http.StatusOK)
	})

	send := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	require.Equal(t, http.StatusBadRequest, send("{").Code)
	require.Equal(t, http.StatusBadRequest, send("{}").Code)
	require.Equal(t, http.StatusBadRequest, send(`{"email":"nope"}`).Code)
	require.Equal(t, http.StatusOK, send(`{"email":"reader@example.com"}`).Code)
}

func TestParseIntQuery(t *testing.T) {
	gin.SetMode(gin.TestMode)

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/?page=3&junk=x", nil)

	require.Equal(t, 3, parseIntQuery(c, "page", 1))
	require.Equal(t, 7, parseIntQuery(c, "junk", 7))
	require.Equal(t, 1, parseIntQuery(c, "missing", 1))
}
