package api

import (
	"net/http"

	"throttle/internal/models"
	"throttle/internal/ratelimit"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
)

// Paths that bypass tracing and admission control.
const (
	healthPath    = "/health"
	apiHealthPath = "/api/v1/health"
)

type routeOptions struct {
	otelServiceName string
	rateLimiter     func(http.Handler) http.Handler
}

// RouteOption configures optional route behavior.
type RouteOption func(*routeOptions)

// WithOTelMiddleware adds OpenTelemetry HTTP instrumentation middleware.
func WithOTelMiddleware(serviceName string) RouteOption {
	return func(o *routeOptions) { o.otelServiceName = serviceName }
}

// WithRateLimiter gates every request except health checks through the
// per-client limiter registry.
func WithRateLimiter(registry *ratelimit.Registry, opts ...ratelimit.GateOption) RouteOption {
	gateOpts := append([]ratelimit.GateOption{ratelimit.WithSkipper(isHealthRequest)}, opts...)
	return func(o *routeOptions) {
		o.rateLimiter = ratelimit.Middleware(registry, gateOpts...)
	}
}

// SetupRoutes configures the HTTP routes for the API.
//
// Middleware order, outermost first: recovery, logging, security headers,
// CORS, tracing, rate limiting. The same chain wraps the 404 and 405
// handlers so unmatched requests are logged and limited too.
func SetupRoutes(handlers *Handlers, config *models.Config, opts ...RouteOption) *mux.Router {
	var o routeOptions
	for _, opt := range opts {
		opt(&o)
	}

	chain := []mux.MiddlewareFunc{recoveryMiddleware, loggingMiddleware}
	if config.Security.Headers.Enabled {
		chain = append(chain, securityHeadersMiddleware(config.Security.Headers))
	}
	if config.Server.CORS.Enabled {
		chain = append(chain, corsMiddleware(config.Server.CORS))
	}
	if o.otelServiceName != "" {
		chain = append(chain, otelmux.Middleware(o.otelServiceName,
			otelmux.WithFilter(func(r *http.Request) bool {
				return !isHealthRequest(r) && r.URL.Path != "/metrics"
			}),
		))
	}
	if o.rateLimiter != nil {
		chain = append(chain, o.rateLimiter)
	}

	router := mux.NewRouter()
	router.Use(chain...)

	router.HandleFunc(healthPath, handlers.HealthCheck).Methods("GET")
	router.HandleFunc(apiHealthPath, handlers.HealthCheck).Methods("GET")

	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/items", handlers.ListItems).Methods("GET")
	api.HandleFunc("/items", handlers.CreateItem).Methods("POST")
	api.HandleFunc("/items/{id}", handlers.GetItem).Methods("GET")
	api.HandleFunc("/items/{id}", handlers.UpdateItem).Methods("PUT")
	api.HandleFunc("/items/{id}", handlers.DeleteItem).Methods("DELETE")

	api.HandleFunc("/openapi.yaml", handlers.ServeOpenAPISpec).Methods("GET")
	api.HandleFunc("/docs", handlers.ServeSwaggerUI).Methods("GET")

	router.NotFoundHandler = wrap(http.HandlerFunc(notFoundHandler), chain)
	router.MethodNotAllowedHandler = wrap(http.HandlerFunc(methodNotAllowedHandler), chain)

	return router
}

func isHealthRequest(r *http.Request) bool {
	return r.URL.Path == healthPath || r.URL.Path == apiHealthPath
}

// wrap applies chain so that chain[0] is outermost, matching mux's Use order.
func wrap(h http.Handler, chain []mux.MiddlewareFunc) http.Handler {
	for i := len(chain) - 1; i >= 0; i-- {
		h = chain[i](h)
	}
	return h
}

func notFoundHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, models.NewErrorResponse("Resource not found", models.ErrorCodeNotFound))
}

// methodNotAllowedHandler handles requests with invalid HTTP methods
func methodNotAllowedHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, models.NewErrorResponse("Method not allowed", models.ErrorCodeMethodNotAllowed))
}
