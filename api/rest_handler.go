package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/guileen/respool/errors"
	"github.com/guileen/respool/manager"
)

// RESTHandler exposes manager diagnostics over HTTP
type RESTHandler struct {
	manager *manager.Manager
}

func NewRESTHandler(m *manager.Manager) *RESTHandler {
	return &RESTHandler{
		manager: m,
	}
}

func (h *RESTHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/respool", func(r chi.Router) {
		r.Get("/stats", h.GetStats)
		r.Get("/resources", h.ListResources)
		r.Get("/resources/recent", h.ListRecentlyClosed)
		r.Post("/maintenance", h.RunMaintenance)
		r.Post("/reset", h.ResetState)
	})
}

type ResourceInfo struct {
	ID        uint64   `json:"id"`
	Kind      string   `json:"kind"`
	CreatedAt string   `json:"created_at"`
	Trace     []string `json:"trace,omitempty"`
}

type ListResourcesResponse struct {
	Resources []ResourceInfo `json:"resources"`
	Count     int            `json:"count"`
}

type ClosedResourceInfo struct {
	ID        uint64 `json:"id"`
	Kind      string `json:"kind"`
	CreatedAt string `json:"created_at"`
	ClosedAt  string `json:"closed_at"`
}

type ListRecentlyClosedResponse struct {
	Resources []ClosedResourceInfo `json:"resources"`
	Count     int                  `json:"count"`
}

type MaintenanceResponse struct {
	Stats manager.Stats `json:"stats"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func (h *RESTHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	if h.manager.Closed() {
		writeError(w, http.StatusServiceUnavailable, errors.ErrManagerClosed)
		return
	}

	writeJSON(w, http.StatusOK, h.manager.Stats())
}

func (h *RESTHandler) ListResources(w http.ResponseWriter, r *http.Request) {
	if h.manager.Closed() {
		writeError(w, http.StatusServiceUnavailable, errors.ErrManagerClosed)
		return
	}

	records := h.manager.ActiveRecords()
	resources := make([]ResourceInfo, len(records))
	for i, rec := range records {
		resources[i] = ResourceInfo{
			ID:        rec.ID,
			Kind:      rec.Kind,
			CreatedAt: rec.CreatedAt.Format(timeFormat),
			Trace:     rec.Trace,
		}
	}

	writeJSON(w, http.StatusOK, ListResourcesResponse{
		Resources: resources,
		Count:     len(resources),
	})
}

func (h *RESTHandler) ListRecentlyClosed(w http.ResponseWriter, r *http.Request) {
	if h.manager.Closed() {
		writeError(w, http.StatusServiceUnavailable, errors.ErrManagerClosed)
		return
	}

	history := h.manager.RecentlyClosed()
	resources := make([]ClosedResourceInfo, len(history))
	for i, rec := range history {
		resources[i] = ClosedResourceInfo{
			ID:        rec.ID,
			Kind:      rec.Kind,
			CreatedAt: rec.CreatedAt.Format(timeFormat),
			ClosedAt:  rec.ClosedAt.Format(timeFormat),
		}
	}

	writeJSON(w, http.StatusOK, ListRecentlyClosedResponse{
		Resources: resources,
		Count:     len(resources),
	})
}

func (h *RESTHandler) RunMaintenance(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.PerformMaintenance(); err != nil {
		writeError(w, statusForError(err), err)
		return
	}

	writeJSON(w, http.StatusOK, MaintenanceResponse{
		Stats: h.manager.Stats(),
	})
}

func (h *RESTHandler) ResetState(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.Reset(); err != nil {
		writeError(w, statusForError(err), err)
		return
	}

	writeJSON(w, http.StatusOK, MaintenanceResponse{
		Stats: h.manager.Stats(),
	})
}

const timeFormat = "2006-01-02T15:04:05.000Z07:00"

// Helper functions
func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, statusCode int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{Error: err.Error()})
}

func statusForError(err error) int {
	switch {
	case errors.IsAlreadyClosed(err):
		return http.StatusServiceUnavailable
	case errors.IsInvalidArgument(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
