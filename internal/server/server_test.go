package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/docintel/internal/app"
	"github.com/ternarybob/docintel/internal/common"
)

func newTestServer(t *testing.T, configure ...func(*common.Config)) (*Server, *httptest.Server) {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/documents", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"documents":[{"id":1,"filename":"invoice.pdf","file_type":"pdf","status":"uploaded"}]}`))
	})
	mux.HandleFunc("/api/ocr/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"healthy"}`))
	})
	backend := httptest.NewServer(mux)
	t.Cleanup(backend.Close)

	cfg := common.NewDefaultConfig()
	cfg.Backend.BaseURL = backend.URL
	cfg.Backend.LegacyBaseURL = backend.URL
	cfg.Backend.RateLimit = 0
	cfg.Storage.Badger.Enabled = false
	cfg.Storage.Badger.Path = filepath.Join(t.TempDir(), "db")
	cfg.Registry.AutoRefresh = false
	for _, fn := range configure {
		fn(cfg)
	}

	application, err := app.New(cfg, arbor.NewLogger())
	require.NoError(t, err)
	t.Cleanup(func() { application.Close() })
	require.NoError(t, application.Registry.Refresh(application.Context()))

	s := New(application)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func TestRoutes_ListDocuments(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/documents")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		Documents []struct {
			ID       string `json:"id"`
			Filename string `json:"filename"`
		} `json:"documents"`
		Total int `json:"total"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Documents, 1)
	assert.Equal(t, "1", body.Documents[0].ID)
	assert.Equal(t, "invoice.pdf", body.Documents[0].Filename)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestRoutes_UnknownAPIPathReturnsJSON404(t *testing.T) {
	_, ts := newTestServer(t)

	for _, path := range []string{"/api/nothing", "/api/documents/1/unknown", "/api/documents/"} {
		resp, err := http.Get(ts.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, path)
		assert.Contains(t, resp.Header.Get("Content-Type"), "application/json", path)
	}
}

func decodeError(t *testing.T, resp *http.Response) map[string]string {
	t.Helper()
	defer resp.Body.Close()
	assert.Contains(t, resp.Header.Get("Content-Type"), "application/json")
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestRoutes_MethodNotAllowed(t *testing.T) {
	_, ts := newTestServer(t)

	// Rejected by the route table
	req, err := http.NewRequest(http.MethodPut, ts.URL+"/api/documents/1", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	assert.Equal(t, "DELETE", resp.Header.Get("Allow"))
	body := decodeError(t, resp)
	assert.Equal(t, "error", body["status"])
	assert.Equal(t, "Method not allowed", body["error"])

	// Rejected by the handler
	resp, err = http.Post(ts.URL+"/api/stats", "application/json", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	assert.Equal(t, "GET", resp.Header.Get("Allow"))
	assert.Equal(t, "error", decodeError(t, resp)["status"])

	req, err = http.NewRequest(http.MethodPut, ts.URL+"/api/uploads", nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, "DELETE, GET, POST", resp.Header.Get("Allow"))
	assert.Equal(t, "error", decodeError(t, resp)["status"])
}

func TestMiddleware_PanicReturnsJSON(t *testing.T) {
	s, _ := newTestServer(t)

	h := s.withConditionalMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/documents", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "error", body["status"])
	assert.Equal(t, "Internal server error", body["error"])
}

func TestMiddleware_CORSOrigins(t *testing.T) {
	get := func(ts *httptest.Server, origin string) *http.Response {
		req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/version", nil)
		require.NoError(t, err)
		if origin != "" {
			req.Header.Set("Origin", origin)
		}
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		return resp
	}

	_, restricted := newTestServer(t, func(cfg *common.Config) {
		cfg.Server.AllowedOrigins = []string{"http://ui.local"}
	})

	resp := get(restricted, "http://ui.local")
	assert.Equal(t, "http://ui.local", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "Origin", resp.Header.Get("Vary"))

	resp = get(restricted, "http://elsewhere.local")
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))

	_, closed := newTestServer(t, func(cfg *common.Config) {
		cfg.Server.AllowedOrigins = nil
	})
	resp = get(closed, "http://ui.local")
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestMethodRouter_Allowed(t *testing.T) {
	noop := func(http.ResponseWriter, *http.Request) {}
	routes := MethodRouter{http.MethodPost: noop, http.MethodGet: noop, http.MethodPut: nil}
	assert.Equal(t, []string{"GET", "POST"}, routes.Allowed())
}

func TestRoutes_UploadQueue(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/uploads")
	require.NoError(t, err)
	var queue struct {
		Items []interface{} `json:"items"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&queue))
	resp.Body.Close()
	assert.Empty(t, queue.Items)

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/api/uploads/abc", nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	req, err = http.NewRequest(http.MethodDelete, ts.URL+"/api/uploads", nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRoutes_OptionsPreflight(t *testing.T) {
	_, ts := newTestServer(t)

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/api/documents", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRoutes_Health(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "online", body["ocr"])
}

func TestServer_Addr(t *testing.T) {
	s, _ := newTestServer(t)
	assert.Equal(t, "127.0.0.1:8085", s.Addr())
}
