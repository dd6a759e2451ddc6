package httpadapter

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/kirillkom/campus-notice-rag/internal/config"
	"github.com/kirillkom/campus-notice-rag/internal/core/ports"
	"github.com/kirillkom/campus-notice-rag/internal/observability/metrics"
)

const (
	maxSearchK     = 200
	maxRequestBody = 1 << 20
	sourceLines    = 3
)

type Router struct {
	cfg       config.Config
	retriever ports.NoticeRetriever
	chat      ports.ChatService
	submitter ports.NoticeSubmitter
	docs      ports.DocumentStore
	metrics   *metrics.HTTPServerMetrics
	logger    *slog.Logger
	degraded  func() []string
}

func NewRouter(
	cfg config.Config,
	retriever ports.NoticeRetriever,
	chat ports.ChatService,
	submitter ports.NoticeSubmitter,
	docs ports.DocumentStore,
) *Router {
	return &Router{
		cfg:       cfg,
		retriever: retriever,
		chat:      chat,
		submitter: submitter,
		docs:      docs,
		logger:    slog.Default(),
	}
}

// WithMetrics enables request metrics and the /metrics endpoint.
func (rt *Router) WithMetrics(m *metrics.HTTPServerMetrics) *Router {
	rt.metrics = m
	return rt
}

// WithHealth makes /healthz report "degraded" with the names returned by
// openCircuits while any is non-empty.
func (rt *Router) WithHealth(openCircuits func() []string) *Router {
	rt.degraded = openCircuits
	return rt
}

func (rt *Router) WithLogger(logger *slog.Logger) *Router {
	if logger != nil {
		rt.logger = logger
	}
	return rt
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.HandleFunc("POST /v1/search", rt.search)
	mux.HandleFunc("POST /v1/chat", rt.chatStream)
	mux.HandleFunc("DELETE /v1/sessions/{session_id}", rt.forgetSession)
	mux.HandleFunc("POST /v1/notices", rt.submitNotice)
	mux.HandleFunc("GET /v1/notices/{notice_id}", rt.getNotice)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.cfg.APIMaxInFlight, 50*time.Millisecond)
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(handler)
	}
	handler = accessLogMiddleware(handler, rt.logger)
	return requestIDMiddleware(handler)
}

type healthResponse struct {
	Status       string   `json:"status"`
	OpenCircuits []string `json:"open_circuits,omitempty"`
}

// healthz stays 200 while degraded: an open circuit heals on its own and
// restarting the process would not help.
func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{Status: "ok"}
	if rt.degraded != nil {
		if open := rt.degraded(); len(open) > 0 {
			resp = healthResponse{Status: "degraded", OpenCircuits: open}
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (rt *Router) observeRAG(endpoint string, documents int, started time.Time) {
	if rt.metrics == nil {
		return
	}
	rt.metrics.RecordRAGObservation(endpoint, documents, time.Since(started))
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	return decoder.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
