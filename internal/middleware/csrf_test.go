package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func csrfRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CSRF())
	r.GET("/form", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/form", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func TestCSRFIssuesTokenOnSafeMethod(t *testing.T) {
	r := csrfRouter()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/form", nil))

	require.Equal(t, http.StatusOK, w.Code)
	require.NotEmpty(t, w.Header().Get(CSRFHeaderName))

	var cookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == CSRFCookieName {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	require.Equal(t, w.Header().Get(CSRFHeaderName), cookie.Value)
}

func TestCSRFRejectsMutationWithoutHeader(t *testing.T) {
	r := csrfRouter()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/form", nil))

	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestCSRFAcceptsMatchingHeaderAndCookie(t *testing.T) {
	r := csrfRouter()

	// Fetch a token first, the way a browser client would.
	seed := httptest.NewRecorder()
	r.ServeHTTP(seed, httptest.NewRequest(http.MethodGet, "/form", nil))
	token := seed.Header().Get(CSRFHeaderName)
	require.NotEmpty(t, token)

	req := httptest.NewRequest(http.MethodPost, "/form", nil)
	req.AddCookie(&http.Cookie{Name: CSRFCookieName, Value: token})
	req.Header.Set(CSRFHeaderName, token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
}

func TestCSRFRejectsMismatchedHeader(t *testing.T) {
	r := csrfRouter()

	req := httptest.NewRequest(http.MethodPost, "/form", nil)
	req.AddCookie(&http.Cookie{Name: CSRFCookieName, Value: "cookie-token"})
	req.Header.Set(CSRFHeaderName, "different-token")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusForbidden, w.Code)
}
