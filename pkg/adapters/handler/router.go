package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/wadjakorntonsri/kv-shortener/pkg/config"
	"github.com/wadjakorntonsri/kv-shortener/pkg/ports"
)

// NewRouter creates and configures the main application router
func NewRouter(cfg *config.Config, service ports.LinkService, log *zap.Logger) http.Handler {
	h := NewHTTPHandler(service, cfg.BaseURL, log)
	mw := NewMiddleware(log)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": "ok"})
	})

	// Dashboard and API
	mux.HandleFunc("GET /{$}", h.Dashboard)
	mux.HandleFunc("GET /api/links", h.ListLinks)
	mux.HandleFunc("DELETE /api/links/{key...}", h.DeleteLink)
	mux.HandleFunc("POST /api/shorten", h.Shorten)
	mux.HandleFunc("GET /api/stats/{key...}", h.Stats)
	mux.HandleFunc("PUT /api/stats/{key...}", h.ReplaceStats)
	mux.HandleFunc("DELETE /api/stats/{key...}", h.DeleteStats)
	mux.HandleFunc("GET /view/{key...}", h.View)

	// Everything else is a short link.
	mux.HandleFunc("GET /{key...}", h.Redirect)

	return middleware.RequestID(mw.RequestLogger(middleware.Recoverer(rejectHead(mux))))
}

// rejectHead stops HEAD requests from reaching the GET routes, which would
// otherwise resolve links and record visits.
func rejectHead(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.Header().Set("Allow", "GET")
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}
		next.ServeHTTP(w, r)
	})
}
