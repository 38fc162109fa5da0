package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/imsantiagopoli/pilly/internal/assistant"
	"github.com/imsantiagopoli/pilly/pkg/model"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.DoseRecorded(model.StatusTaken)
	m.DoseRecorded(model.StatusTaken)
	m.DoseRecorded(model.StatusMissed)
	m.MedicationAdded()
	m.MedicationRemoved()
	m.AssistantRequest("gemini", assistant.OutcomeOK, 300*time.Millisecond)
	m.AssistantRequest("none", assistant.OutcomeUnconfigured, 0)
	m.CloseOutCompleted(3, nil)
	m.CloseOutCompleted(0, errors.New("store down"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.dosesRecorded.WithLabelValues("taken")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dosesRecorded.WithLabelValues("missed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.medicationsAdded))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.medicationsRemoved))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.assistantRequests.WithLabelValues("gemini", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.assistantRequests.WithLabelValues("none", "unconfigured")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.closeOutRuns.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.closeOutRuns.WithLabelValues("error")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.closeOutMissed))
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.ObserveHTTP(http.MethodGet, "/api/v1/doses/today", http.StatusOK, 5*time.Millisecond)
	m.ObserveHTTP(http.MethodGet, "", http.StatusNotFound, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `pilly_http_requests_total{method="GET",route="/api/v1/doses/today",status="200"} 1`)
	assert.Contains(t, string(body), `route="unmatched"`)
	assert.Contains(t, string(body), "go_goroutines")
}
