package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/securevote-api/internal/config"
	"github.com/securevote-api/internal/domain"
	"github.com/securevote-api/internal/transport/http/handler"
	appmiddleware "github.com/securevote-api/internal/transport/http/middleware"
	"golang.org/x/time/rate"
)

// NewRouter builds and returns the application router. ctx bounds the
// rate limiters' background sweepers.
func NewRouter(ctx context.Context, cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	authMw := appmiddleware.Auth(deps.Tokens, deps.Sessions)

	// OTP requests and logins: 5 requests/second, burst of 10.
	sensitiveRL := appmiddleware.NewRateLimiter(ctx, rate.Limit(5), 10, cfg.TrustProxyHeaders)

	healthH := handler.NewHealthHandler()
	sessionH := handler.NewSessionHandler(deps.SessionSvc)
	verifyH := handler.NewVerificationHandler(deps.VerificationSvc)
	electionH := handler.NewElectionHandler(deps.ElectionSvc, deps.BallotSvc)
	adminH := handler.NewAdminHandler(deps.ElectionSvc, deps.VoterSvc)

	r.Route("/v1", func(r chi.Router) {
		// ── Public routes (no auth) ──────────────────────────────────────────
		r.Get("/health-check/{action}", healthH.Ping)
		r.With(sensitiveRL.Limit).Post("/sessions", sessionH.Start)
		r.With(sensitiveRL.Limit).Post("/admin/sessions", sessionH.AdminLogin)
		r.With(sensitiveRL.Limit).Post("/admin/sessions/google", sessionH.AdminGoogleLogin)

		// ── Authenticated routes ─────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(authMw)

			r.Get("/sessions", sessionH.GetCurrent)
			r.Post("/sessions/logout", sessionH.Logout)

			// Voter flows
			r.Group(func(r chi.Router) {
				r.Use(appmiddleware.RequireRole(domain.RoleVoter))

				r.With(sensitiveRL.Limit).Post("/verification/{flow}/{action}", verifyH.Step)
				r.Get("/elections", electionH.ListActive)
				r.Get("/elections/{id}", electionH.Get)
				r.Post("/elections/{id}/ballots", electionH.Cast)
			})

			// Admin-only routes
			r.Group(func(r chi.Router) {
				r.Use(appmiddleware.RequireRole(domain.RoleAdmin))

				r.Get("/admin/dashboard", adminH.Dashboard)
				r.Post("/admin/voters/import", adminH.ImportVoters)
				r.Get("/admin/elections", adminH.ListElections)
				r.Post("/admin/elections", adminH.CreateElection)
				r.Get("/admin/elections/{id}", adminH.GetElection)
				r.Post("/admin/elections/{id}/toggle", adminH.ToggleElection)
				r.Get("/admin/elections/{id}/results", adminH.Results)
			})
		})
	})

	return r
}
