package api

import (
	"net/http"

	"checkbot/internal/models"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
)

// RouteOption configures optional route behavior.
type RouteOption func(*mux.Router)

// WithOTelMiddleware adds OpenTelemetry HTTP instrumentation middleware.
func WithOTelMiddleware(serviceName string) RouteOption {
	return func(r *mux.Router) {
		r.Use(otelmux.Middleware(serviceName,
			otelmux.WithFilter(func(r *http.Request) bool {
				return r.URL.Path != "/health"
			}),
		))
	}
}

// SetupRoutes configures the webhook routes. A nil throttle disables
// ingress limiting; an empty secret disables signature checks.
func SetupRoutes(handlers *Handlers, server models.ServerConfig, secret string, throttle Throttle, opts ...RouteOption) *mux.Router {
	router := mux.NewRouter()

	for _, opt := range opts {
		opt(router)
	}

	var event http.Handler = http.HandlerFunc(handlers.HandleEvent)
	event = signatureMiddleware(secret)(event)
	if throttle != nil {
		event = throttleMiddleware(throttle)(event)
	}
	router.Handle(server.EventPath, event).Methods("POST")
	router.HandleFunc("/health", handlers.HealthCheck).Methods("GET")

	router.Use(loggingMiddleware)
	router.Use(recoveryMiddleware)

	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed", models.ErrorCodeBadRequest)
	})

	return router
}
