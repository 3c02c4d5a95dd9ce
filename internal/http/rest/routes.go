package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/italolelis/mp3grab/internal/telemetry"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// NewRouter wires the API, the optional static frontend and the middleware chain.
// static may be nil, in which case non-API paths return 404.
func NewRouter(download *DownloadHandler, static http.Handler, tel *telemetry.Telemetry, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(telemetry.RequestID)
	r.Use(telemetry.HTTPLogging)
	r.Use(middleware.Recoverer)
	r.Use(telemetry.NewHTTPMiddleware(tel).Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", telemetry.RequestIDHeader},
		ExposedHeaders: []string{"Content-Disposition", telemetry.RequestIDHeader},
		MaxAge:         300,
	}))

	r.Mount("/api", download.Routes())

	if tel.Enabled() {
		r.Method(http.MethodGet, "/metrics", tel.Handler())
	}

	if static != nil {
		r.Method(http.MethodGet, "/*", static)
		r.Method(http.MethodHead, "/*", static)
	}

	return otelhttp.NewHandler(r, "mp3grab")
}
