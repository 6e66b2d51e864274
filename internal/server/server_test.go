package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"axial/internal/config"
	"axial/internal/persistence"
	"axial/internal/pipeline"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePipeline struct {
	syncResult pipeline.SyncResult
	enriched   int
	created    bool
	err        error
	status     *pipeline.Status
	ai         bool
	lastCtx    context.Context
}

func (f *fakePipeline) RunSync(ctx context.Context) (pipeline.SyncResult, error) {
	f.lastCtx = ctx
	return f.syncResult, f.err
}

func (f *fakePipeline) RunEnrichment(ctx context.Context) (int, error) {
	f.lastCtx = ctx
	return f.enriched, f.err
}

func (f *fakePipeline) RunDigest(ctx context.Context) (bool, error) {
	f.lastCtx = ctx
	return f.created, f.err
}

func (f *fakePipeline) Status(context.Context) (*pipeline.Status, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.status, nil
}

func (f *fakePipeline) AIAvailable() bool { return f.ai }

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func newTestServer(p Pipeline, db Pinger, metrics http.Handler) *Server {
	return New(p, db, metrics, config.Server{Host: "127.0.0.1", Port: 0})
}

func do(t *testing.T, s *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s := newTestServer(&fakePipeline{ai: true}, fakePinger{}, nil)

	rec := do(t, s, http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var body HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "ok", body.Status)
	assert.True(t, body.AIAvailable)
	assert.Equal(t, "ok", body.Checks["database"])
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestHealthDatabaseDown(t *testing.T) {
	s := newTestServer(&fakePipeline{}, fakePinger{err: errors.New("connection refused")}, nil)

	rec := do(t, s, http.MethodGet, "/health")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "unhealthy", body.Status)
	assert.Equal(t, "error", body.Checks["database"])
}

func TestSyncEndpoint(t *testing.T) {
	p := &fakePipeline{syncResult: pipeline.SyncResult{Fetched: 12, New: 3, Errors: 1}}
	s := newTestServer(p, fakePinger{}, nil)

	rec := do(t, s, http.MethodPost, "/api/pipeline/sync")
	require.Equal(t, http.StatusOK, rec.Code)

	var body pipeline.SyncResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, p.syncResult, body)
	assert.Equal(t, "no-cache, no-store, must-revalidate", rec.Header().Get("Cache-Control"))

	require.NotNil(t, p.lastCtx)
	assert.Nil(t, p.lastCtx.Done(), "stage context must not be cancelled with the request")
}

func TestEnrichAndDigestEndpoints(t *testing.T) {
	p := &fakePipeline{enriched: 4, created: true}
	s := newTestServer(p, fakePinger{}, nil)

	rec := do(t, s, http.MethodPost, "/api/pipeline/enrich")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"enriched":4}`, rec.Body.String())

	rec = do(t, s, http.MethodPost, "/api/pipeline/digest")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"created":true}`, rec.Body.String())
}

func TestStageErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"busy", pipeline.ErrStageBusy, http.StatusConflict},
		{"wrapped busy", errors.Join(errors.New("lock"), pipeline.ErrStageBusy), http.StatusConflict},
		{"failure", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(&fakePipeline{err: tt.err}, fakePinger{}, nil)

			for _, path := range []string{"/api/pipeline/sync", "/api/pipeline/enrich", "/api/pipeline/digest"} {
				rec := do(t, s, http.MethodPost, path)
				assert.Equal(t, tt.want, rec.Code, path)

				var body map[string]map[string]interface{}
				require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
				assert.EqualValues(t, tt.want, body["error"]["status"])
			}
		})
	}
}

func TestStatusEndpoint(t *testing.T) {
	p := &fakePipeline{status: &pipeline.Status{
		StatusCounts: persistence.StatusCounts{},
		AIAvailable:  true,
		Running:      []pipeline.Stage{pipeline.StageSync},
	}}
	s := newTestServer(p, fakePinger{}, nil)

	rec := do(t, s, http.MethodGet, "/api/pipeline/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, true, body["aiAvailable"])
	assert.Equal(t, []interface{}{"sync"}, body["running"])
}

func TestStatusEndpointFailure(t *testing.T) {
	s := newTestServer(&fakePipeline{err: errors.New("db gone")}, fakePinger{}, nil)

	rec := do(t, s, http.MethodGet, "/api/pipeline/status")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestMetricsRoute(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("axial_up 1\n"))
	})

	s := newTestServer(&fakePipeline{}, fakePinger{}, metrics)
	rec := do(t, s, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "axial_up")

	s = newTestServer(&fakePipeline{}, fakePinger{}, nil)
	rec = do(t, s, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	s := newTestServer(&fakePipeline{}, fakePinger{}, nil)
	rec := do(t, s, http.MethodGet, "/api/pipeline/sync")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
