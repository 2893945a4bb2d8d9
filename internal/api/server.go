// Package api provides the read-only HTTP status surface over a registry.
// It is an adapter: the core engine never depends on it.
package api

import (
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/aaronkwan/synced-object/pkg/object"
	"github.com/aaronkwan/synced-object/pkg/registry"
)

// ServerOption configures the status API server.
type ServerOption func(*serverConfig)

type serverConfig struct {
	middlewares []func(http.Handler) http.Handler
	timeout     time.Duration
}

// WithMiddlewares adds middleware to the router.
func WithMiddlewares(mw ...func(http.Handler) http.Handler) ServerOption {
	return func(cfg *serverConfig) {
		cfg.middlewares = append(cfg.middlewares, mw...)
	}
}

// WithRequestTimeout overrides the per-request timeout. Defaults to 30s.
func WithRequestTimeout(d time.Duration) ServerOption {
	return func(cfg *serverConfig) {
		if d > 0 {
			cfg.timeout = d
		}
	}
}

// NewServer creates the HTTP router exposing registry state.
func NewServer(reg *registry.Registry, opts ...ServerOption) *chi.Mux {
	cfg := &serverConfig{timeout: 30 * time.Second}
	for _, opt := range opts {
		opt(cfg)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.timeout))
	for _, mw := range cfg.middlewares {
		r.Use(mw)
	}

	h := &handler{reg: reg}
	r.Get("/health", h.health)
	r.Route("/api/v0", func(r chi.Router) {
		r.Get("/objects", h.listObjects)
		r.Get("/objects/{key}", h.getObject)
	})
	return r
}

type handler struct {
	reg *registry.Registry
}

// objectSummary is the list-endpoint projection of a tracked object.
type objectSummary struct {
	Key               string   `json:"key"`
	Mode              string   `json:"mode"`
	LastOutcome       string   `json:"lastOutcome"`
	LastError         string   `json:"lastError,omitempty"`
	PendingProperties []string `json:"pendingProperties,omitempty"`
}

// objectDetail adds the payload to the summary.
type objectDetail struct {
	objectSummary
	Data         any    `json:"data"`
	UnloadPolicy string `json:"unloadPolicy"`
}

func (*handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) listObjects(w http.ResponseWriter, _ *http.Request) {
	keys := h.reg.Keys()
	sort.Strings(keys)

	summaries := make([]objectSummary, 0, len(keys))
	for _, key := range keys {
		obj, ok := h.reg.Get(key)
		if !ok {
			continue
		}
		summaries = append(summaries, summarize(obj))
	}
	writeJSON(w, http.StatusOK, map[string]any{"objects": summaries})
}

func (h *handler) getObject(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	obj, ok := h.reg.Get(key)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no tracked object with this key"})
		return
	}
	writeJSON(w, http.StatusOK, objectDetail{
		objectSummary: summarize(obj),
		Data:          obj.Data(),
		UnloadPolicy:  string(obj.UnloadPolicy()),
	})
}

func summarize(obj *object.TrackedObject) objectSummary {
	status := obj.Status()
	summary := objectSummary{
		Key:               obj.Key(),
		Mode:              string(obj.Mode()),
		LastOutcome:       string(status.LastOutcome),
		PendingProperties: obj.PendingProperties(),
	}
	if status.LastError != nil {
		summary.LastError = status.LastError.Error()
	}
	return summary
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
