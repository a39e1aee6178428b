package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

type RouterOptions struct {
	AllowedOrigins []string
	// SendLimiter throttles POST /api/messages. Nil disables throttling.
	SendLimiter *rate.Limiter
	// Live is mounted at /ws when set.
	Live http.Handler
}

func Router(h *Handler, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	r.Use(metricsMiddleware)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(loggingMiddleware)
	r.Use(chimw.Recoverer)

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/health", h.Health)

	r.Post("/webhook", h.Webhook)

	r.Route("/api", func(r chi.Router) {
		r.Get("/chats", h.ListChats)
		r.Get("/chats/{wa_id}", h.ListChatMessages)
		r.With(rateLimit(opts.SendLimiter, "POST /api/messages")).Post("/messages", h.SendMessage)

		r.Get("/rescan/status", h.RescanStatus)
		r.Post("/rescan/start", h.RescanStart)
		r.Post("/rescan/stop", h.RescanStop)
	})

	if opts.Live != nil {
		r.Handle("/ws", opts.Live)
	}

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("wa-inbox"))
	})

	return r
}
