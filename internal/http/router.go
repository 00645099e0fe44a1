package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"placement/internal/auth"
	"placement/internal/config"
	"placement/internal/directory"
	"placement/internal/exporter"
	"placement/internal/gate"
	"placement/internal/importer"
)

// Dependencies are the services the router exposes. Google may be nil when sign-in is
// not configured.
type Dependencies struct {
	Gate      *gate.Gate
	Directory *directory.Service
	Google    IdentityProvider
}

// NewRouter wires application routes and middleware using chi.
func NewRouter(cfg config.Config, deps Dependencies, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	cookies := newSessionCookies(cfg.Environment)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(newSecurityHeadersMiddleware(cfg.Environment))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(newSlogMiddleware(logger))
	r.Use(newMetricsMiddleware())
	r.Use(newSessionMiddleware(deps.Gate, cookies, logger))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":      "ok",
			"environment": cfg.Environment,
		})
	})
	r.Handle("/metrics", promhttp.Handler())

	if deps.Google == nil {
		logger.Warn("Google sign-in is not configured; /auth/google is disabled")
	}

	pages := NewPageHandler(deps.Directory, logger)
	oauth := NewOAuthHandler(deps.Google, deps.Gate, cookies, "", logger)
	sessions := NewSessionHandler(cookies)
	profile := NewProfileHandler(deps.Directory, logger)
	admin := NewAdminHandler(deps.Directory, exporter.NewCSVExporter(), importer.NewCSVImporter(deps.Directory), logger)

	r.Get("/", pages.Root)
	r.Get(loginPath, pages.Login)

	r.Route("/auth", func(r chi.Router) {
		r.Get("/google", oauth.InitiateGoogle)
		r.Get("/google/callback", oauth.CallbackGoogle)
		r.Post("/logout", sessions.Logout)
	})

	r.With(requirePage(auth.RoleStudent)).Get(dashboardPath, pages.Dashboard)
	r.With(requirePage()).Get("/profile/edit", pages.EditProfile)
	r.With(requirePage(auth.RoleAdmin)).Get(adminPath, pages.Admin)

	r.Route("/api", func(r chi.Router) {
		r.Get("/session", sessions.Status)

		r.Group(func(r chi.Router) {
			r.Use(requireAPI())
			r.Get("/profile", profile.Get)
			r.Put("/profile", profile.Update)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(requireAPI(auth.RoleAdmin))
			r.Get("/summary", admin.Summary)
			r.Route("/students", func(r chi.Router) {
				r.Get("/", admin.Students)
				r.Get("/export", admin.Export)
				r.Post("/placements/import", admin.ImportPlacements)
				r.Put("/{email}/placement", admin.SetPlacement)
			})
		})
	})

	r.NotFound(http.NotFoundHandler().ServeHTTP)

	return r
}
