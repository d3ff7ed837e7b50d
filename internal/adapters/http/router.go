package httpadapter

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/OK-cpu-beep/Energohunt/internal/core/domain"
	"github.com/OK-cpu-beep/Energohunt/internal/core/ports"
)

const defaultPageSize = 100

type RequestMetrics interface {
	Middleware(next http.Handler) http.Handler
}

type Router struct {
	consumers      ports.ConsumerReader
	metricsHandler http.Handler
	requestMetrics RequestMetrics
}

// NewRouter serves the stored consumers. metricsHandler and requestMetrics
// are optional.
func NewRouter(consumers ports.ConsumerReader, metricsHandler http.Handler, requestMetrics RequestMetrics) *Router {
	return &Router{
		consumers:      consumers,
		metricsHandler: metricsHandler,
		requestMetrics: requestMetrics,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/consumers", rt.listConsumers)
	mux.HandleFunc("/v1/consumers/", rt.getConsumer)
	if rt.metricsHandler != nil {
		mux.Handle("/metrics", rt.metricsHandler)
	}

	var handler http.Handler = mux
	if rt.requestMetrics != nil {
		handler = rt.requestMetrics.Middleware(handler)
	}
	return requestIDMiddleware(accessLogMiddleware(handler))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) listConsumers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	limit, err := queryInt(r, "limit", defaultPageSize)
	if err != nil {
		writeError(w, err)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		writeError(w, err)
		return
	}
	limit = min(limit, domain.MaxConsumerPage)

	consumers, err := rt.consumers.ListConsumers(r.Context(), limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"limit":     limit,
		"offset":    offset,
		"consumers": consumers,
	})
}

func (rt *Router) getConsumer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	accountID := strings.TrimPrefix(r.URL.Path, "/v1/consumers/")
	if accountID == "" || strings.Contains(accountID, "/") {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}

	consumer, err := rt.consumers.GetConsumer(r.Context(), accountID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, consumer)
}

func queryInt(r *http.Request, key string, fallback int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.WrapError(domain.ErrInvalidInput, "parse query", err)
	}
	return v, nil
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
