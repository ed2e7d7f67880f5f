package cors

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func performRequest(handler gin.HandlerFunc, method, origin string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(method, "/payments/export", nil)
	if origin != "" {
		c.Request.Header.Set("Origin", origin)
	}
	handler(c)
	c.Writer.WriteHeaderNow()
	return rec
}

func TestCORSAllowsConfiguredOrigin(t *testing.T) {
	handler := New([]string{"https://fees.example.org"})

	rec := performRequest(handler, http.MethodGet, "https://fees.example.org")

	assert.Equal(t, "https://fees.example.org", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSRejectsUnknownOrigin(t *testing.T) {
	handler := New([]string{"https://fees.example.org"})

	rec := performRequest(handler, http.MethodGet, "https://evil.example.org")

	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSExposesDownloadHeaders(t *testing.T) {
	handler := New(nil)

	rec := performRequest(handler, http.MethodGet, "https://fees.example.org")

	assert.Contains(t, rec.Header().Get("Access-Control-Expose-Headers"), "Content-Disposition")
}

func TestCORSPreflightShortCircuits(t *testing.T) {
	handler := New(nil)

	rec := performRequest(handler, http.MethodOptions, "https://fees.example.org")

	assert.Equal(t, http.StatusNoContent, rec.Code)
}
