package web

import (
	"bytes"
	"context"
	"encoding/json"
	"iter"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fodder-analyzer/internal/assistant"
	"github.com/fodder-analyzer/internal/config"
	"github.com/fodder-analyzer/internal/controller"
	"github.com/fodder-analyzer/internal/dataset"
	"github.com/fodder-analyzer/internal/domain"
	"github.com/fodder-analyzer/internal/engine"
	"github.com/fodder-analyzer/internal/logging"
	"github.com/fodder-analyzer/internal/upload"
)

type staticSource struct{ snap *dataset.Snapshot }

func (s staticSource) Snapshot() *dataset.Snapshot { return s.snap }

type panicky struct{}

func (panicky) Name() string                    { return "panicky" }
func (panicky) IsAvailable(context.Context) bool { return true }
func (panicky) Stream(context.Context, assistant.Request) iter.Seq2[string, error] {
	panic("collaborator exploded")
}

func testSnapshot() *dataset.Snapshot {
	return dataset.NewSnapshot([]domain.RegionRecord{
		domain.NewRegionRecord("PRAKASAM", 529193.34, 2427896.20),
		domain.NewRegionRecord("ELURU", 1828093.46, 1665749.50),
		domain.NewRegionRecord("VISAKHAPATNAM", 449237.70, 191088.90),
	}, nil, nil, nil)
}

func newTestServer(t *testing.T, snap *dataset.Snapshot, mutate func(*config.Config), collaborators ...assistant.Collaborator) http.Handler {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Assistant.Provider = "local"
	cfg.Upload.Path = filepath.Join(t.TempDir(), "upload.json")
	cfg.Server.RateLimit = 0
	if mutate != nil {
		mutate(cfg)
	}
	ctrl := controller.NewWithOptions(controller.Options{
		Config:        cfg,
		Logger:        logging.Nop(),
		Source:        staticSource{snap: snap},
		Uploads:       upload.NewFileStore(cfg.Upload.Path),
		Collaborators: collaborators,
	})
	s := newServer(8080, ctrl, logging.Nop())
	t.Cleanup(func() {
		_ = s.Shutdown(context.Background())
		_ = ctrl.Close()
	})
	return s.Handler()
}

func do(t *testing.T, h http.Handler, method, target string, body []byte, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&out))
	return out
}

func TestHealthEndpoint(t *testing.T) {
	h := newTestServer(t, testSnapshot(), nil)

	rr := do(t, h, http.MethodGet, "/api/health", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp controller.HealthResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, controller.Version, resp.Version)
	assert.True(t, resp.Dataset.Loaded)
	assert.NotNil(t, resp.Collaborators)
}

func TestDataEndpoint(t *testing.T) {
	h := newTestServer(t, testSnapshot(), nil)

	rr := do(t, h, http.MethodGet, "/api/data", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)

	body := decode(t, rr)
	assert.Equal(t, true, body["success"])
	assert.Len(t, body["regions"], 3)
	assert.Equal(t, []interface{}{}, body["supply"])
	assert.Equal(t, []interface{}{}, body["mandals"])
}

func TestChatEndpoint(t *testing.T) {
	h := newTestServer(t, testSnapshot(), nil)

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantText   string
	}{
		{"comparison", `{"message":"Compare Prakasam and Eluru"}`, http.StatusOK, "COMPARISON: PRAKASAM vs ELURU"},
		{"summary", `{"message":"hello"}`, http.StatusOK, "STATEWIDE"},
		{"empty message", `{"message":""}`, http.StatusBadRequest, "message is required"},
		{"invalid json", `not json`, http.StatusBadRequest, "Invalid request body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, h, http.MethodPost, "/api/chat", []byte(tt.body), "application/json")
			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.Contains(t, rr.Body.String(), tt.wantText)
		})
	}
}

func TestChatPanicStillAnswers(t *testing.T) {
	h := newTestServer(t, testSnapshot(), nil, panicky{})

	rr := do(t, h, http.MethodPost, "/api/chat", []byte(`{"message":"hello"}`), "application/json")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp controller.ChatResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.True(t, strings.HasPrefix(resp.Response, engine.SystemErrorPrefix+": "))
	assert.Contains(t, resp.Response, "collaborator exploded")
}

func TestChatStreamEndpoint(t *testing.T) {
	h := newTestServer(t, testSnapshot(), nil)

	rr := do(t, h, http.MethodPost, "/api/chat/stream", []byte(`{"message":"Compare Prakasam and Eluru"}`), "application/json")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "text/plain; charset=utf-8", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Body.String(), "COMPARISON")
	assert.True(t, rr.Flushed)

	rr = do(t, h, http.MethodPost, "/api/chat/stream", []byte(`{"message":"  "}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func multipartBody(t *testing.T, field, filename, content string) ([]byte, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return buf.Bytes(), mw.FormDataContentType()
}

func TestUploadEndpoint(t *testing.T) {
	h := newTestServer(t, testSnapshot(), nil)

	body, ct := multipartBody(t, "file", "herd.csv", "Village,Cattle\nA,10\nB,20\n")
	rr := do(t, h, http.MethodPost, "/api/upload", body, ct)
	require.Equal(t, http.StatusOK, rr.Code)

	resp := decode(t, rr)
	assert.Equal(t, true, resp["success"])
	assert.Equal(t, "herd.csv", resp["filename"])
	assert.EqualValues(t, 2, resp["rows"])
	assert.NotEmpty(t, resp["id"])

	rr = do(t, h, http.MethodGet, "/api/upload/latest", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, resp["id"], decode(t, rr)["id"])
}

func TestUploadEndpointErrors(t *testing.T) {
	h := newTestServer(t, testSnapshot(), nil)

	tests := []struct {
		name     string
		field    string
		filename string
		content  string
		wantErr  string
	}{
		{"header only", "file", "bad.csv", "A,B\n", "no data rows"},
		{"unsupported type", "file", "notes.pdf", "%PDF", "unsupported file type"},
		{"missing field", "upload", "herd.csv", "A,B\n1,2\n", "Missing form field"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, ct := multipartBody(t, tt.field, tt.filename, tt.content)
			rr := do(t, h, http.MethodPost, "/api/upload", body, ct)
			assert.Equal(t, http.StatusBadRequest, rr.Code)

			resp := decode(t, rr)
			assert.Equal(t, false, resp["success"])
			assert.Contains(t, resp["error"], tt.wantErr)
		})
	}

	rr := do(t, h, http.MethodGet, "/api/upload/latest", nil, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestForecastEndpoint(t *testing.T) {
	h := newTestServer(t, testSnapshot(), nil)

	tests := []struct {
		name       string
		target     string
		wantStatus int
	}{
		{"statewide", "/api/forecast", http.StatusOK},
		{"region with jitter", "/api/forecast?region=eluru&months=3&jitter=0.1&seed=7", http.StatusOK},
		{"unknown region", "/api/forecast?region=atlantis", http.StatusNotFound},
		{"bad months", "/api/forecast?months=six", http.StatusBadRequest},
		{"bad seed", "/api/forecast?seed=-1", http.StatusBadRequest},
		{"months over the cap", "/api/forecast?months=35184372088832", http.StatusBadRequest},
		{"jitter above one", "/api/forecast?jitter=5&seed=1", http.StatusBadRequest},
		{"jitter not a number", "/api/forecast?jitter=NaN", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, h, http.MethodGet, tt.target, nil, "")
			assert.Equal(t, tt.wantStatus, rr.Code)
		})
	}
}

func TestScenarioEndpoint(t *testing.T) {
	h := newTestServer(t, testSnapshot(), nil)

	rr := do(t, h, http.MethodGet, "/api/scenario?region=vizag&drop=100", nil, "")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp controller.ScenarioResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "VISAKHAPATNAM", resp.Region)
	assert.Equal(t, domain.Deficit, resp.Scenario.Status)
}

func TestInsightsWithoutDataset(t *testing.T) {
	h := newTestServer(t, nil, nil)

	rr := do(t, h, http.MethodGet, "/api/insights", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	rr = do(t, h, http.MethodGet, "/api/health", nil, "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "degraded", decode(t, rr)["status"])
}

func TestNotFoundAndMethod(t *testing.T) {
	h := newTestServer(t, testSnapshot(), nil)

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/api/nope", nil, "").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, do(t, h, http.MethodGet, "/api/chat", nil, "").Code)
}

func TestCORSPreflight(t *testing.T) {
	h := newTestServer(t, testSnapshot(), nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(0.001, 5)
	defer rl.Stop()

	for i := 0; i < 5; i++ {
		assert.True(t, rl.Allow("192.168.1.1"), "request %d should be allowed", i+1)
	}
	assert.False(t, rl.Allow("192.168.1.1"), "6th request should be denied")
	assert.True(t, rl.Allow("192.168.1.2"), "another IP has its own bucket")
}

func TestRateLimitedRoutes(t *testing.T) {
	h := newTestServer(t, testSnapshot(), func(cfg *config.Config) {
		cfg.Server.RateLimit = 0.001
		cfg.Server.RateBurst = 2
	})

	get := func(path string) int {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.RemoteAddr = "192.168.1.1:1234"
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr.Code
	}

	assert.Equal(t, http.StatusOK, get("/api/data"))
	assert.Equal(t, http.StatusOK, get("/api/data"))
	assert.Equal(t, http.StatusTooManyRequests, get("/api/data"))
	// Health stays reachable for probes
	assert.Equal(t, http.StatusOK, get("/api/health"))
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name          string
		xForwardedFor string
		xRealIP       string
		remoteAddr    string
		expectedIP    string
	}{
		{
			name:          "X-Forwarded-For header",
			xForwardedFor: "10.0.0.1, 192.168.1.1",
			remoteAddr:    "127.0.0.1:8080",
			expectedIP:    "10.0.0.1",
		},
		{
			name:       "X-Real-IP header",
			xRealIP:    "10.0.0.2",
			remoteAddr: "127.0.0.1:8080",
			expectedIP: "10.0.0.2",
		},
		{
			name:       "RemoteAddr fallback",
			remoteAddr: "192.168.1.100:54321",
			expectedIP: "192.168.1.100",
		},
		{
			name:       "RemoteAddr without port",
			remoteAddr: "192.168.1.100",
			expectedIP: "192.168.1.100",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/test", nil)
			if tt.xForwardedFor != "" {
				req.Header.Set("X-Forwarded-For", tt.xForwardedFor)
			}
			if tt.xRealIP != "" {
				req.Header.Set("X-Real-IP", tt.xRealIP)
			}
			req.RemoteAddr = tt.remoteAddr

			assert.Equal(t, tt.expectedIP, getClientIP(req))
		})
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.NewUploadError("x.csv", "empty"), http.StatusBadRequest},
		{controller.ErrEmptyMessage, http.StatusBadRequest},
		{domain.ErrInvalidParameter, http.StatusBadRequest},
		{domain.ErrUnresolvedEntity, http.StatusNotFound},
		{upload.ErrNoUpload, http.StatusNotFound},
		{domain.ErrMissingDataset, http.StatusServiceUnavailable},
		{assert.AnError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusFor(tt.err), tt.err.Error())
	}
}
