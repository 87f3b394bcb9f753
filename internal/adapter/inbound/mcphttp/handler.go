package mcphttp

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/i2y/mcp-odoo/internal/session"
	"github.com/i2y/mcp-odoo/internal/usecase"
	"github.com/i2y/mcp-odoo/pkg/shared/mcpjsonrpc"
)

// Handlers holds the dependencies of the HTTP transport: the dispatcher that
// executes JSON-RPC envelopes, the session manager backing the SSE streams,
// and the registry (read-only, for the health report).
type Handlers struct {
	dispatcher *usecase.Dispatcher
	sessions   *session.Manager
	registry   usecase.ToolRegistry
	service    string
	heartbeat  time.Duration
	logger     *slog.Logger
}

// NewHandlers creates the handler set. heartbeat is the interval between
// SSE heartbeat events.
func NewHandlers(
	dispatcher *usecase.Dispatcher,
	sessions *session.Manager,
	registry usecase.ToolRegistry,
	service string,
	heartbeat time.Duration,
	logger *slog.Logger,
) *Handlers {
	return &Handlers{
		dispatcher: dispatcher,
		sessions:   sessions,
		registry:   registry,
		service:    service,
		heartbeat:  heartbeat,
		logger:     logger.With("component", "mcphttp_handler"),
	}
}

// Routes builds the full HTTP handler: MCP endpoints plus the middleware
// stack (request logging, proxy/CORS headers).
func (h *Handlers) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /sse", h.handleSSE)
	mux.HandleFunc("POST /messages", h.handleMessages)
	mux.HandleFunc("POST /messages/{$}", h.handleMessages)
	mux.HandleFunc("OPTIONS /", h.handleOptions)
	return h.logRequests(commonHeaders(mux))
}

// NewServer wraps the handler set in an http.Server. WriteTimeout stays zero:
// SSE streams live for the whole client session and must not be cut by a
// fixed write deadline.
func NewServer(addr string, h *Handlers) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      0,
		IdleTimeout:       120 * time.Second,
	}
}

// healthResponse is the GET /health body.
type healthResponse struct {
	Status      string `json:"status"`
	Service     string `json:"service"`
	Timestamp   string `json:"timestamp"`
	ToolsLoaded int    `json:"tools_loaded"`
	Initialized bool   `json:"initialized"`
}

// handleHealth implements GET /health.
func (h *Handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, healthResponse{
		Status:      "healthy",
		Service:     h.service,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		ToolsLoaded: h.registry.Len(),
		Initialized: h.dispatcher.Initialized(),
	})
}

// handleMessages implements POST /messages: one JSON-RPC envelope in, one
// envelope out. The body is the error signal; the status code mirrors it
// (200 result, 400 error, 202 for notifications that produce no response).
func (h *Handlers) handleMessages(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	// Session correlation is advisory: an unknown or missing id never
	// rejects the message.
	if id := r.URL.Query().Get("session_id"); id != "" {
		h.sessions.Touch(id)
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.Warn("Failed to read request body.", slog.Any("error", err))
		h.writeJSON(w, http.StatusBadRequest,
			mcpjsonrpc.NewErrorResponse(nil, mcpjsonrpc.CodeParseError, "read request body: "+err.Error()))
		return
	}

	resp := h.dispatcher.Dispatch(r.Context(), body)
	if resp == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}

	status := http.StatusOK
	if resp.Error != nil {
		status = http.StatusBadRequest
	}
	h.writeJSON(w, status, resp)
}

// handleOptions answers CORS preflight for every path. The allowance headers
// are already set by the middleware.
func (h *Handlers) handleOptions(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("Failed to encode response body.", slog.Any("error", err))
	}
}

// commonHeaders sets the headers every response carries: cache and proxy
// buffering opt-outs (heartbeats must reach the client immediately, even
// through nginx-style reverse proxies) plus permissive CORS.
func commonHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hd := w.Header()
		hd.Set("Cache-Control", "no-cache, no-store, must-revalidate")
		hd.Set("Connection", "keep-alive")
		hd.Set("X-Accel-Buffering", "no")
		hd.Set("Access-Control-Allow-Origin", "*")
		hd.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		hd.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		next.ServeHTTP(w, r)
	})
}

// logRequests emits one structured line per request. For SSE streams the
// line fires when the stream ends.
func (h *Handlers) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		h.logger.Info("Handled request.",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rec.Status()),
			slog.Duration("elapsed", time.Since(start)))
	})
}

// statusRecorder captures the response status for the request log. It keeps
// http.Flusher visible so the SSE handler still streams through it.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Status() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}
