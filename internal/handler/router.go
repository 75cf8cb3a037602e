package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nutrigraph/nutribot/backend/internal/handler/chat"
	"github.com/nutrigraph/nutribot/backend/internal/handler/food"
	"github.com/nutrigraph/nutribot/backend/internal/handler/persona"
	"github.com/nutrigraph/nutribot/backend/internal/handler/stream"
	"github.com/nutrigraph/nutribot/backend/internal/handler/ws"
	"github.com/nutrigraph/nutribot/backend/internal/logger"
	middlewarePkg "github.com/nutrigraph/nutribot/backend/internal/middleware"
	personaModel "github.com/nutrigraph/nutribot/backend/internal/model/persona"
	chatService "github.com/nutrigraph/nutribot/backend/internal/service/chat"
	foodService "github.com/nutrigraph/nutribot/backend/internal/service/food"
	"github.com/nutrigraph/nutribot/backend/pkg/utils"
)

// RouterOptions carries the optional pieces of the HTTP surface.
type RouterOptions struct {
	AllowedOrigins []string
	// Gatherer backs /metrics. Nil uses the default registry.
	Gatherer prometheus.Gatherer
	// AIEnabled is reported by /healthz.
	AIEnabled bool
	// Foods backs /api/foods. Nil leaves the catalogue routes out.
	Foods *foodService.Catalogue
}

// Router is the API handler plus the resources it owns.
type Router struct {
	http.Handler
	WebSockets *ws.ConnectionManager
}

// NewRouter wires HTTP routes to core services.
func NewRouter(personas personaModel.Store, chatSvc *chatService.Service, opts RouterOptions) *Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.RequestLogger(logger.For("http")))
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(opts.AllowedOrigins))

	personaHandler := persona.New(personas)
	chatHandler := chat.New(chatSvc)
	streamHandler := stream.New(chatSvc)
	wsHandler := ws.New(chatSvc, middlewarePkg.OriginChecker(opts.AllowedOrigins))

	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]any{
			"status": "ok",
			"ai":     opts.AIEnabled,
		})
	})

	r.Route("/api", func(api chi.Router) {
		personaHandler.RegisterRoutes(api)
		chatHandler.RegisterRoutes(api)
		streamHandler.RegisterRoutes(api)
		wsHandler.RegisterRoutes(api)
		if opts.Foods != nil {
			food.New(opts.Foods).RegisterRoutes(api)
		}
	})

	return &Router{Handler: r, WebSockets: wsHandler.Connections()}
}
