package http

import (
	"context"
	"net/http"
	"time"

	"exam-attempt-service/internal/app"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"
)

// RouterOptions tunes the HTTP surface.
type RouterOptions struct {
	AllowedOrigins []string
	// Now is the clock used to reject expired tokens. Defaults to time.Now.
	Now func() time.Time
	// LiveAttempts, when set, is reported on /healthz.
	LiveAttempts func(ctx context.Context) (int, error)
}

// NewRouter mounts the REST catalog, the attempt websocket and health checks.
func NewRouter(service *app.AttemptService, opts RouterOptions) http.Handler {
	if opts.Now == nil {
		opts.Now = time.Now
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, requestLogger, middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		health := map[string]any{"status": "ok"}
		if opts.LiveAttempts != nil {
			n, err := opts.LiveAttempts(r.Context())
			if err != nil {
				log.Warn().Err(err).Msg("count live attempts")
				writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "degraded"})
				return
			}
			health["liveAttempts"] = n
		}
		writeJSON(w, http.StatusOK, health)
	})

	api := NewAPIHandler(service)
	ws := NewWSHandler(service, opts.AllowedOrigins)

	r.Group(func(pr chi.Router) {
		pr.Use(Authenticate(opts.Now))

		pr.Get("/api/categories", api.Categories)
		pr.Get("/api/categories/{categoryID}/quizzes", api.QuizzesOfCategory)
		pr.Get("/api/quizzes/{quizID}", api.Quiz)
		pr.Get("/api/attempts/last", api.LastAttempt)
		pr.Get("/api/attempts/history", api.History)

		pr.Get("/ws/attempt", ws.ServeWS)
	})
	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		log.Debug().
			Str("requestId", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("http request")
	})
}
