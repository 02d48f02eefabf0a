package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fono/internal/channel"
	"fono/internal/notify"
	"fono/internal/service"
	"fono/internal/store"
)

type Handler struct {
	messages   *service.MessageService
	dispatcher *notify.Dispatcher
	signer     *channel.Signer
	store      *store.Store
}

type RouterConfig struct {
	// AuthMiddleware is the authenticated-principal provider; every /v1 route
	// sits behind it.
	AuthMiddleware  func(http.Handler) http.Handler
	CORSOrigins     string
	RateLimitPerMin int
}

func NewRouter(
	messages *service.MessageService,
	dispatcher *notify.Dispatcher,
	signer *channel.Signer,
	st *store.Store,
	cfg RouterConfig,
) http.Handler {
	h := &Handler{messages: messages, dispatcher: dispatcher, signer: signer, store: st}

	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))

	if cfg.RateLimitPerMin > 0 {
		r.Use(httprate.LimitByIP(cfg.RateLimitPerMin, 1*time.Minute))
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   splitOrigins(cfg.CORSOrigins),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		if cfg.AuthMiddleware != nil {
			r.Use(cfg.AuthMiddleware)
		}

		r.Route("/chat_messages", func(r chi.Router) {
			r.Post("/", h.handleSendMessage)
			r.Get("/", h.handleListMessages)
			r.Delete("/{id}", h.handleSoftDeleteMessage)
			r.Post("/{id}/restore", h.handleRestoreMessage)
			r.Delete("/{id}/purge", h.handlePurgeMessage)
		})

		r.Route("/pusher", func(r chi.Router) {
			r.Post("/auth", h.handleChannelAuth)
			r.Post("/typing", h.handleTyping)
		})

		r.Route("/fono_items", func(r chi.Router) {
			r.Get("/", h.handleListItems)
			r.Post("/", h.handleCreateItem)
			r.Get("/{id}", h.handleGetItem)
			r.Put("/{id}", h.handleUpdateItem)
			r.Delete("/{id}", h.handleDeleteItem)
		})

		r.Route("/users", func(r chi.Router) {
			r.Get("/", h.handleListUsers)
			r.Get("/me", h.handleMe)
			r.Put("/profile", h.handleUpdateProfile)
			r.Put("/status", h.handleUpdateStatus)
			r.Get("/{userId}", h.handleGetUser)
		})
	})

	return r
}

func splitOrigins(raw string) []string {
	out := []string{}
	for _, o := range strings.Split(raw, ",") {
		if s := strings.TrimSpace(o); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
