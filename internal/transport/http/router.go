package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/school-notify-api/internal/application/auth"
	"github.com/school-notify-api/internal/application/dispatch"
	"github.com/school-notify-api/internal/application/notification"
	"github.com/school-notify-api/internal/application/registration"
	"github.com/school-notify-api/internal/config"
	"github.com/school-notify-api/internal/domain"
	"github.com/school-notify-api/internal/transport/http/handler"
	appmiddleware "github.com/school-notify-api/internal/transport/http/middleware"
	"golang.org/x/time/rate"
)

// NewRouter builds and returns the application router. ctx bounds background
// work owned by the router, such as rate-limiter cleanup.
func NewRouter(ctx context.Context, cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	if cfg.TrustProxy {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	authMw := appmiddleware.Auth(deps.JWTProvider)
	apiKeyMw := appmiddleware.APIKey(cfg.Dispatch.APIKeys)
	sensitiveRL := appmiddleware.NewRateLimiter(ctx, rate.Limit(cfg.LoginRateLimit), cfg.LoginRateBurst)

	authSvc := auth.NewService(auth.ServiceDeps{
		IdentityRepo: deps.IdentityRepo,
		Roster:       deps.Roster,
		JWTProvider:  deps.JWTProvider,
	})
	registrationSvc := registration.NewService(registration.ServiceDeps{
		IdentityRepo:     deps.IdentityRepo,
		RegistrationRepo: deps.RegistrationRepo,
		Roster:           deps.Roster,
	})
	dispatchSvc := dispatch.NewService(dispatch.ServiceDeps{
		RegistrationRepo: deps.RegistrationRepo,
		IdentityRepo:     deps.IdentityRepo,
		NotificationRepo: deps.NotificationRepo,
		Roster:           deps.Roster,
		Provider:         deps.Push,
		Concurrency:      cfg.Dispatch.Concurrency,
	})
	notifSvc := notification.NewService(deps.NotificationRepo)

	healthH := handler.NewHealthHandler(deps.ReadinessChecks)
	authH := handler.NewAuthHandler(authSvc)
	registrationH := handler.NewRegistrationHandler(registrationSvc)
	dispatchH := handler.NewDispatchHandler(dispatchSvc)
	notifH := handler.NewNotificationHandler(notifSvc)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		// ── Public routes (no auth) ──────────────────────────────────────────
		r.Get("/health-check/{action}", healthH.Ping)
		r.With(sensitiveRL.Limit).Post("/register", authH.Register)
		r.With(sensitiveRL.Limit).Post("/parents/register", authH.RegisterParent)
		r.With(sensitiveRL.Limit).Post("/login", authH.Login)

		// ── Dispatch routes (API key) ────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(apiKeyMw)

			r.Post("/send-notifications", dispatchH.Send)
			r.Post("/notify-all-school-users", dispatchH.NotifyAll)
			r.Post("/notify", dispatchH.NotifyGuardians)
		})

		// ── Authenticated routes ─────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(authMw)

			r.Put("/password", authH.ChangeCredential)
			r.Post("/save-push-token", registrationH.SavePushToken)
			r.Get("/notifications/{id}", notifH.List)

			// Parent-only routes
			r.Group(func(r chi.Router) {
				r.Use(appmiddleware.RequireKind(domain.KindParent))

				r.Get("/parents/students", registrationH.ListStudents)
				r.Post("/parents/students", registrationH.AddStudent)
				r.Delete("/parents/students/{studentId}", registrationH.RemoveStudent)
			})
		})
	})

	return r
}
