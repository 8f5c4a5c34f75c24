package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/shehryarbajwa/plant-identifier/internal/ratelimit"
)

// Options are the settings SetupRoutes needs beyond the handlers
type Options struct {
	AllowedOrigin string
	StaticDir     string
	ExposeAPIKey  bool
	TrustProxy    bool
	Logger        *zap.Logger
}

// SetupRoutes configures all HTTP routes
func SetupRoutes(h *Handler, keys *KeyHandler, rateLimiter *ratelimit.Limiter, opts Options) *mux.Router {
	r := mux.NewRouter()

	// Health check for monitoring (not rate limited)
	r.HandleFunc("/health", Health).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()

	// Identification endpoints call the model, so they are rate limited
	// and size capped
	identifyAPI := api.PathPrefix("").Subrouter()
	identifyAPI.Use(BodyLimitMiddleware(MaxBodyBytes))
	identifyAPI.Use(RateLimitMiddleware(rateLimiter, opts.TrustProxy))
	identifyAPI.HandleFunc("/identify-plant", h.IdentifyPlant).Methods(http.MethodPost, http.MethodOptions)
	identifyAPI.HandleFunc("/identify", h.Identify).Methods(http.MethodPost, http.MethodOptions)

	// Credential-issuing endpoint, only when explicitly enabled
	if opts.ExposeAPIKey && keys != nil {
		api.Handle("/config", keys)
	}

	if opts.StaticDir != "" {
		r.PathPrefix("/").Handler(spaHandler{dir: opts.StaticDir}).Methods(http.MethodGet, http.MethodHead)
	}

	r.Use(RequestLogMiddleware(opts.Logger))
	r.Use(CORSMiddleware(opts.AllowedOrigin))

	return r
}
