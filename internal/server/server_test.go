package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/backtester/internal/scheduler"
	testutil "github.com/aristath/backtester/internal/testing"
)

type stubJob struct {
	runs int
	err  error
}

func (j *stubJob) Run() error {
	j.runs++
	return j.err
}

func (j *stubJob) Name() string { return "stub" }

func newTestServer(t *testing.T, job scheduler.Job) *Server {
	t.Helper()
	logger := zerolog.New(nil).Level(zerolog.Disabled)

	historyDB, cleanupHistory := testutil.NewTestDB(t, "history")
	t.Cleanup(cleanupHistory)
	backtestsDB, cleanupBacktests := testutil.NewTestDB(t, "backtests")
	t.Cleanup(cleanupBacktests)

	var sched *scheduler.Scheduler
	if job != nil {
		sched = scheduler.New(logger)
		require.NoError(t, sched.AddJob("@daily", job))
	}

	return New(Config{
		Log:         logger,
		HistoryDB:   historyDB,
		BacktestsDB: backtestsDB,
		Registry:    prometheus.NewRegistry(),
		Scheduler:   sched,
		BacktestJob: job,
		DataDir:     t.TempDir(),
		DevMode:     true,
	})
}

func serve(s *Server, method, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(method, target, nil))
	return w
}

func TestServer_Health(t *testing.T) {
	s := newTestServer(t, nil)

	w := serve(s, "GET", "/health")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "backtester", body["service"])
}

func TestServer_Metrics(t *testing.T) {
	s := newTestServer(t, nil)

	serve(s, "GET", "/health")
	w := serve(s, "GET", "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `backtester_http_requests_total{method="GET",route="/health",status="200"} 1`)
}

func TestSystemHandlers_Status(t *testing.T) {
	s := newTestServer(t, nil)

	w := serve(s, "GET", "/api/system/status")
	require.Equal(t, http.StatusOK, w.Code)

	var status SystemStatusResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&status))
	assert.Equal(t, "healthy", status.Status)
	require.Len(t, status.Databases, 2)
	assert.Equal(t, "backtests", status.Databases[0].Name)
	assert.Equal(t, "history", status.Databases[1].Name)
	assert.True(t, status.Databases[0].Healthy)
	assert.GreaterOrEqual(t, status.UptimeSeconds, 0.0)
}

func TestSystemHandlers_TriggerBacktests(t *testing.T) {
	w := serve(newTestServer(t, nil), "POST", "/api/jobs/backtests")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	job := &stubJob{}
	s := newTestServer(t, job)
	w = serve(s, "POST", "/api/jobs/backtests")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, job.runs)

	w = serve(s, "GET", "/api/system/status")
	var status SystemStatusResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&status))
	require.Len(t, status.Jobs, 1)
	assert.Equal(t, "stub", status.Jobs[0].Name)
	assert.Equal(t, 1, status.Jobs[0].Runs)

	failing := &stubJob{err: errors.New("definition x failed")}
	w = serve(newTestServer(t, failing), "POST", "/api/jobs/backtests")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "definition x failed")
}

func TestServer_BacktestRoutesOptional(t *testing.T) {
	w := serve(newTestServer(t, nil), "GET", "/api/backtests")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
