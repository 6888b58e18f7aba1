package main

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/imrishuroy/go-storefront-orders/internal/aws"
	"github.com/imrishuroy/go-storefront-orders/internal/config"
	"github.com/imrishuroy/go-storefront-orders/internal/logging"
)

func testRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	cfg := config.Config{JWTSecret: "secret", MetricsNamespace: "Test"}
	logger := logging.New(io.Discard, "error")
	return setupRouter(buildHandlerConfig(cfg, &aws.AWSClients{}, logger))
}

func TestHealth(t *testing.T) {
	r := testRouter()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))
}

func TestOrdersRequireToken(t *testing.T) {
	r := testRouter()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/orders/my-orders", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
