package telemetry

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newTracedRouter(t *testing.T) (*gin.Engine, *tracetest.SpanRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	recorder := tracetest.NewSpanRecorder()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))

	r := gin.New()
	r.Use(GinMiddleware("/health"))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/getTile", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/proxy", func(c *gin.Context) {
		_ = c.Error(errors.New("domain not allowed"))
		c.Status(http.StatusForbidden)
	})
	r.GET("/elevation", func(c *gin.Context) {
		_ = c.Error(errors.New("provider down"))
		c.Status(http.StatusBadGateway)
	})

	return r, recorder
}

func serve(r *gin.Engine, path string) {
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
}

func TestGinMiddlewareSkipsPaths(t *testing.T) {
	r, recorder := newTracedRouter(t)

	serve(r, "/health")
	assert.Empty(t, recorder.Ended())
}

func TestGinMiddlewareNamesSpanByRoute(t *testing.T) {
	r, recorder := newTracedRouter(t)

	serve(r, "/getTile?id=a")

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "GET /getTile", spans[0].Name())
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
}

func TestGinMiddlewareOnlyServerErrorsFailSpan(t *testing.T) {
	r, recorder := newTracedRouter(t)

	serve(r, "/proxy")
	serve(r, "/elevation")
	serve(r, "/nope")

	spans := recorder.Ended()
	require.Len(t, spans, 3)
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
	assert.Len(t, spans[0].Events(), 1)
	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.Equal(t, "GET unmatched", spans[2].Name())
}
