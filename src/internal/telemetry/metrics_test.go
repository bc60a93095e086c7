package telemetry

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveRemoteCall(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.ObserveRemoteCall("gemini", "ok", 2*time.Second)
	m.ObserveRemoteCall("gemini", "ok", time.Second)
	m.ObserveRemoteCall("gemini", "timeout", time.Minute)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RemoteCalls.WithLabelValues("gemini", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RemoteCalls.WithLabelValues("gemini", "timeout")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.RemoteCallDuration))
}

func TestAuditFixAndFallbackCounters(t *testing.T) {
	m := NewMetrics(nil)

	m.ObserveAudit("heuristic", "REJECT", 35)
	m.ObserveFix("remote", "batch")
	m.ObserveFallback("audit")
	m.ObserveFallback("audit")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Audits.WithLabelValues("heuristic", "REJECT")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Fixes.WithLabelValues("remote", "batch")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Fallbacks.WithLabelValues("audit")))
}

func TestMiddlewareAndHandler(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	h := m.Middleware("POST /audit", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/audit", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("POST", "POST /audit", "400")))

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()
	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.True(t, strings.Contains(string(body), "http_requests_total"))
}
