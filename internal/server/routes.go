// internal/server/routes.go
package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"kids-meal-log/internal/logging"
	"kids-meal-log/internal/metrics"
)

func (s *MealLogServer) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(requestLogger)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         300,
	}))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/log", http.StatusSeeOther)
	})
	r.Get("/log", s.handleLogPage)
	r.Post("/log", s.handleLogSubmit)
	r.Get("/history", s.handleHistoryPage)
	r.Get("/history.csv", s.handleHistoryCSV)
	r.Get("/recommend", s.handleRecommendPage)
	r.Post("/recommend", s.handleRecommendSubmit)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/meals", s.handleAPIListMeals)
		r.Post("/meals", s.handleAPILogMeal)
		r.Get("/recommendations", s.handleAPIRecommendations)
		r.Post("/suggestions", s.handleAPISuggest)
	})

	r.Post("/mcp", s.handleMCP)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": Version})
	})
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// requestLogger tags the request with an id, logs it once it completes and
// records its latency by route pattern.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = logging.NewRequestID()
		}
		w.Header().Set("X-Request-ID", requestID)
		ctx := logging.ContextWithRequestID(r.Context(), requestID)

		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r.WithContext(ctx))

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		duration := time.Since(start)

		metrics.RecordHTTPRequest(r.Method, route, strconv.Itoa(status), duration)
		logging.Ctx(ctx).Debug().
			Str("method", r.Method).
			Str("route", route).
			Int("status", status).
			Dur("duration", duration).
			Msg("Request handled")
	})
}
