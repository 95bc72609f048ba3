package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guileen/respool/config"
	"github.com/guileen/respool/manager"
)

func setupTestRESTHandler(t *testing.T) (*RESTHandler, *manager.Manager, chi.Router) {
	t.Helper()

	cfg, err := config.New()
	require.NoError(t, err)
	m, err := manager.New(cfg, manager.WithAllocationTracing())
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })

	handler := NewRESTHandler(m)
	router := chi.NewRouter()
	handler.RegisterRoutes(router)

	return handler, m, router
}

func TestRESTHandler_GetStats(t *testing.T) {
	_, m, router := setupTestRESTHandler(t)

	buf, err := m.AllocateMemory(4096)
	require.NoError(t, err)
	defer m.ReleaseMemory(buf)

	req := httptest.NewRequest(http.MethodGet, "/api/respool/stats", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var stats manager.Stats
	err = json.NewDecoder(w.Body).Decode(&stats)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.ActiveResources)
	assert.Equal(t, 1, stats.ResourcesByKind["buffer"])
	assert.Equal(t, int64(1), stats.Pool.ActiveBuffers)
}

func TestRESTHandler_ListResources(t *testing.T) {
	_, m, router := setupTestRESTHandler(t)

	h, err := manager.Add(m, "session", nil, nil)
	require.NoError(t, err)
	defer h.Close()

	req := httptest.NewRequest(http.MethodGet, "/api/respool/resources", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp ListResourcesResponse
	err = json.NewDecoder(w.Body).Decode(&resp)
	require.NoError(t, err)
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "string", resp.Resources[0].Kind)
	assert.NotEmpty(t, resp.Resources[0].Trace)
}

func TestRESTHandler_ListRecentlyClosed(t *testing.T) {
	_, m, router := setupTestRESTHandler(t)

	h, err := manager.Add(m, "session", nil, nil)
	require.NoError(t, err)
	require.NoError(t, h.Close())

	req := httptest.NewRequest(http.MethodGet, "/api/respool/resources/recent", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp ListRecentlyClosedResponse
	err = json.NewDecoder(w.Body).Decode(&resp)
	require.NoError(t, err)
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "string", resp.Resources[0].Kind)
}

func TestRESTHandler_RunMaintenance(t *testing.T) {
	_, m, router := setupTestRESTHandler(t)

	buf, err := m.AllocateMemory(1024)
	require.NoError(t, err)
	require.NoError(t, m.ReleaseMemory(buf))

	req := httptest.NewRequest(http.MethodPost, "/api/respool/maintenance", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp MaintenanceResponse
	err = json.NewDecoder(w.Body).Decode(&resp)
	require.NoError(t, err)
	assert.Equal(t, 0, resp.Stats.ActiveResources)
}

func TestRESTHandler_ResetState(t *testing.T) {
	_, m, router := setupTestRESTHandler(t)

	_, err := manager.Add(m, "leftover", nil, nil)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/respool/reset", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp MaintenanceResponse
	err = json.NewDecoder(w.Body).Decode(&resp)
	require.NoError(t, err)
	assert.Equal(t, 0, resp.Stats.ActiveResources)
	assert.Equal(t, 0, m.ActiveResourceCount())
}

func TestRESTHandler_ClosedManager(t *testing.T) {
	_, m, router := setupTestRESTHandler(t)
	require.NoError(t, m.Close())

	for _, tc := range []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/respool/stats"},
		{http.MethodGet, "/api/respool/resources"},
		{http.MethodGet, "/api/respool/resources/recent"},
		{http.MethodPost, "/api/respool/maintenance"},
		{http.MethodPost, "/api/respool/reset"},
	} {
		req := httptest.NewRequest(tc.method, tc.path, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code, "%s %s", tc.method, tc.path)

		var resp ErrorResponse
		err := json.NewDecoder(w.Body).Decode(&resp)
		require.NoError(t, err)
		assert.NotEmpty(t, resp.Error)
	}
}
