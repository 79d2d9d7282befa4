package httpadapter_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/heatwave-tracker/internal/adapter/httpadapter"
	"github.com/couchcryptid/heatwave-tracker/internal/pipeline"
)

type mockStage struct {
	err      error
	progress pipeline.Progress
}

func (m *mockStage) CheckReadiness(_ context.Context) error { return m.err }

func (m *mockStage) Progress() pipeline.Progress { return m.progress }

func newTestServer(stage *mockStage) *httpadapter.Server {
	return httpadapter.NewServer(":0", stage, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func serve(srv *httpadapter.Server, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthzReturns200(t *testing.T) {
	rec := serve(newTestServer(&mockStage{}), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	rec := serve(newTestServer(&mockStage{}), "/readyz")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	rec := serve(newTestServer(&mockStage{err: errors.New("pipeline has not completed any work yet")}), "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStatusReturnsProgress(t *testing.T) {
	stage := &mockStage{progress: pipeline.Progress{Stage: "detect", Total: 153, Done: 40, Failed: 1}}

	rec := serve(newTestServer(stage), "/status")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var got pipeline.Progress
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, stage.progress, got)
}

func TestStatusWithRealPipeline(t *testing.T) {
	p := pipeline.NewTrackingPipeline(nil, nil, nil, pipeline.TrackingOptions{}, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
	srv := httpadapter.NewServer(":0", p, slog.New(slog.NewTextHandler(io.Discard, nil)))

	assert.Equal(t, http.StatusServiceUnavailable, serve(srv, "/readyz").Code)
	assert.Equal(t, http.StatusOK, serve(srv, "/status").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	rec := serve(newTestServer(&mockStage{}), "/metrics")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestUnknownRoute(t *testing.T) {
	rec := serve(newTestServer(&mockStage{}), "/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBackgroundWithoutAddrIsNoop(t *testing.T) {
	shutdown := httpadapter.Background("", &mockStage{}, time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NotNil(t, shutdown)
	shutdown()
}

func TestBackgroundServesUntilShutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	shutdown := httpadapter.Background(addr, &mockStage{}, time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	shutdown()
	_, err = http.Get("http://" + addr + "/healthz")
	require.Error(t, err)
}
