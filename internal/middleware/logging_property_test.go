package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/imsantiagopoli/pilly/pkg/api"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// All incoming requests are logged with method, path, request id and timestamp
func TestProperty_RequestLogging(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("all requests are logged with required fields", prop.ForAll(
		func(method string, path string, status int) bool {
			core, logs := observer.New(zapcore.InfoLevel)
			logger := zap.New(core)

			router := gin.New()
			router.Use(RequestIDMiddleware())
			router.Use(RequestLoggingMiddleware(logger))
			router.Handle(method, path, func(c *gin.Context) {
				c.Status(status)
			})

			req := httptest.NewRequest(method, path, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			logEntries := logs.All()
			if len(logEntries) != 1 {
				t.Logf("expected one log entry, got %d", len(logEntries))
				return false
			}
			entry := logEntries[0]

			wantLevel := zapcore.InfoLevel
			switch {
			case status >= 500:
				wantLevel = zapcore.ErrorLevel
			case status >= 400:
				wantLevel = zapcore.WarnLevel
			}
			if entry.Level != wantLevel {
				t.Logf("level mismatch: expected %s, got %s", wantLevel, entry.Level)
				return false
			}

			fields := entry.ContextMap()
			if fields["method"] != method || fields["path"] != path || fields["route"] != path {
				t.Logf("method/path mismatch: %v", fields)
				return false
			}
			if fields["status"] != int64(status) {
				t.Logf("status mismatch: expected %d, got %v", status, fields["status"])
				return false
			}
			if fields["request_id"] != w.Header().Get(RequestIDHeader) {
				t.Logf("request_id does not match response header")
				return false
			}
			for _, key := range []string{"timestamp", "duration"} {
				if _, ok := fields[key]; !ok {
					t.Logf("%s field missing", key)
					return false
				}
			}
			return true
		},
		gen.OneConstOf("GET", "POST", "PUT", "DELETE"),
		gen.OneConstOf("/api/v1/medications", "/api/v1/doses/today", "/api/v1/history"),
		gen.OneConstOf(200, 201, 400, 404, 500),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// All errors attached to the context are logged with stack traces and request context
func TestProperty_ErrorLoggingDetail(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("errors are logged with stack traces and context", prop.ForAll(
		func(errorMessage string, path string) bool {
			core, logs := observer.New(zapcore.ErrorLevel)
			logger := zap.New(core)

			router := gin.New()
			router.Use(ErrorLoggingMiddleware(logger))
			router.GET(path, func(c *gin.Context) {
				_ = c.Error(&testError{msg: errorMessage})
				c.Status(http.StatusInternalServerError)
			})

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest("GET", path, nil))

			logEntries := logs.All()
			if len(logEntries) != 1 || logEntries[0].Message != "Request error occurred" {
				t.Logf("error log entry not found")
				return false
			}

			fields := logEntries[0].ContextMap()
			if fields["error"] != errorMessage {
				t.Logf("error field mismatch: %v", fields["error"])
				return false
			}
			if fields["method"] != "GET" || fields["path"] != path {
				t.Logf("method or path missing")
				return false
			}
			if _, ok := fields["stack_trace"]; !ok {
				t.Logf("stack_trace field missing")
				return false
			}
			return true
		},
		gen.AlphaString(),
		gen.OneConstOf("/api/v1/reports", "/api/v1/assistant/chat", "/api/v1/overview"),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestRecoveryMiddleware(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	router := gin.New()
	router.Use(RecoveryMiddleware(zap.New(core)))
	router.GET("/boom", func(c *gin.Context) {
		panic("nil map write")
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var resp api.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, api.CodeInternalError, resp.Code)

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "Panic recovered", logs.All()[0].Message)
	assert.Equal(t, "nil map write", logs.All()[0].ContextMap()["error"])
}

func TestRequestIDMiddleware(t *testing.T) {
	router := gin.New()
	router.Use(RequestIDMiddleware())
	router.GET("/id", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(RequestIDKey))
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/id", nil))
	generated := w.Header().Get(RequestIDHeader)
	assert.NoError(t, uuid.Validate(generated))
	assert.Equal(t, generated, w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/id", nil)
	req.Header.Set(RequestIDHeader, "client-supplied")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "client-supplied", w.Header().Get(RequestIDHeader))
	assert.Equal(t, "client-supplied", w.Body.String())
}

type observation struct {
	method, route string
	status        int
}

type fakeObserver struct {
	mu  sync.Mutex
	obs []observation
}

func (f *fakeObserver) ObserveHTTP(method, route string, status int, _ time.Duration) {
	f.mu.Lock()
	f.obs = append(f.obs, observation{method, route, status})
	f.mu.Unlock()
}

func TestMetricsMiddleware(t *testing.T) {
	obs := &fakeObserver{}
	router := gin.New()
	router.Use(MetricsMiddleware(obs))
	router.GET("/api/v1/medications/:id", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/medications/abc", nil))
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	require.Len(t, obs.obs, 2)
	assert.Equal(t, observation{"GET", "/api/v1/medications/:id", http.StatusNoContent}, obs.obs[0])
	assert.Equal(t, observation{"GET", "", http.StatusNotFound}, obs.obs[1])
}

type testError struct {
	msg string
}

func (e *testError) Error() string {
	return e.msg
}
