package logger

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	obscontext "github.com/magnusakselvoll/photo-booth-take-two-sub000/internal/observability/context"
)

func middlewareRouter(cfg MiddlewareConfig, handler gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(GinMiddleware(cfg))
	r.GET("/trigger", handler)
	r.GET("/healthz", handler)
	return r
}

func TestGinMiddlewareAssignsRequestID(t *testing.T) {
	var seen string
	r := middlewareRouter(MiddlewareConfig{}, func(c *gin.Context) {
		seen = obscontext.RequestIDFromGin(c)
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/trigger", nil))

	header := w.Header().Get("X-Request-Id")
	if header == "" {
		t.Fatal("expected X-Request-Id header to be set")
	}
	if seen != header {
		t.Fatalf("context request id %q != header %q", seen, header)
	}
}

func TestGinMiddlewareKeepsCallerRequestID(t *testing.T) {
	r := middlewareRouter(MiddlewareConfig{}, func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/trigger", nil)
	req.Header.Set("X-Request-Id", "booth-req-7")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if got := w.Header().Get("X-Request-Id"); got != "booth-req-7" {
		t.Fatalf("X-Request-Id = %q, want booth-req-7", got)
	}
}

func TestGinMiddlewareLogsOutcome(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	orig := zap.L()
	zap.ReplaceGlobals(zap.New(core))
	defer zap.ReplaceGlobals(orig)

	r := middlewareRouter(MiddlewareConfig{}, func(c *gin.Context) {
		c.Status(http.StatusAccepted)
	})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/trigger", nil))

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 request log, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["path"] != "/trigger" {
		t.Fatalf("path = %q, want /trigger", fields["path"])
	}
	if fields["status"] != int64(http.StatusAccepted) {
		t.Fatalf("status = %v, want %d", fields["status"], http.StatusAccepted)
	}
	if fields["request_id"] == "" {
		t.Fatal("request log missing request_id")
	}
}

func TestGinMiddlewareSkipsConfiguredPaths(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	orig := zap.L()
	zap.ReplaceGlobals(zap.New(core))
	defer zap.ReplaceGlobals(orig)

	r := middlewareRouter(MiddlewareConfig{SkipPaths: []string{"/healthz"}}, func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if got := logs.Len(); got != 0 {
		t.Fatalf("expected no log entries for skipped path, got %d", got)
	}
}
