package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/nikhilbhutani/orpheusvoice/internal/api/handlers"
	"github.com/nikhilbhutani/orpheusvoice/internal/api/middleware"
	"github.com/nikhilbhutani/orpheusvoice/internal/config"
	"github.com/nikhilbhutani/orpheusvoice/internal/conversation"
	"github.com/nikhilbhutani/orpheusvoice/internal/metrics"
	"github.com/nikhilbhutani/orpheusvoice/internal/multimodal/tts"
	"github.com/nikhilbhutani/orpheusvoice/internal/voice"
)

// Deps are the process-wide components the router serves.
type Deps struct {
	Catalog      *voice.Catalog
	Synthesizer  tts.Synthesizer
	Status       *tts.DeploymentStatus
	Conversation *conversation.Manager
	Performance  *metrics.Performance
	Instruments  *metrics.Instruments
	// Cache is nil when the audio cache is disabled.
	Cache     handlers.Pinger
	Backends  handlers.Backends
	RateLimit config.RateLimitConfig
	// Prometheus serves /metrics/prometheus. Defaults to metrics.Handler().
	Prometheus http.Handler
}

type Router struct {
	mux  *chi.Mux
	deps Deps
	rl   *middleware.RateLimiter
}

func NewRouter(deps Deps) *Router {
	if deps.Performance == nil {
		deps.Performance = metrics.NewPerformance()
	}
	if deps.Instruments == nil {
		deps.Instruments = metrics.Noop()
	}
	if deps.Status == nil {
		deps.Status = &tts.DeploymentStatus{}
	}
	if deps.Prometheus == nil {
		deps.Prometheus = metrics.Handler()
	}
	return &Router{mux: chi.NewRouter(), deps: deps}
}

func (rt *Router) Setup() http.Handler {
	r := rt.mux
	d := rt.deps

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(d.Instruments))
	r.Use(middleware.Recover)
	r.Use(middleware.CORS([]string{"*"}))

	if d.RateLimit.RPS > 0 {
		rt.rl = middleware.NewRateLimiter(d.RateLimit.RPS, d.RateLimit.Burst)
		r.Use(rt.rl.Limit)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		handlers.WriteError(w, http.StatusNotFound, "Endpoint not found: "+r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		handlers.WriteError(w, http.StatusMethodNotAllowed, "Method "+r.Method+" not allowed for "+r.URL.Path)
	})

	health := handlers.NewHealthHandler(d.Catalog, d.Performance, d.Status, d.Conversation, d.Cache, d.Backends)
	r.Get("/healthz", health.Healthz)
	r.Get("/health", health.Health)

	voices := handlers.NewVoicesHandler(d.Catalog)
	r.Get("/voices", voices.List)

	metricsH := handlers.NewMetricsHandler(d.Performance, d.Conversation)
	r.Get("/metrics", metricsH.Get)
	r.Method(http.MethodGet, "/metrics/prometheus", d.Prometheus)

	generate := handlers.NewGenerateHandler(d.Catalog, d.Synthesizer)
	r.Post("/generate", generate.Generate)

	convH := handlers.NewConversationHandler(d.Catalog, d.Synthesizer, d.Conversation)
	r.Route("/conversation", func(r chi.Router) {
		r.Post("/respond", convH.Respond)
		r.Post("/respond_emotional", convH.RespondEmotional)
		r.Get("/history", convH.History)
		r.Post("/clear", convH.Clear)
	})

	return r
}

// Close releases background resources started by Setup.
func (rt *Router) Close() {
	if rt.rl != nil {
		rt.rl.Close()
	}
}
