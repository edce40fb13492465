package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/carelane/governor/app"
	"github.com/carelane/governor/handlers"
)

// NewRouter builds the HTTP surface of the governance service
func NewRouter(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Actor-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", handlers.HealthHandler())
	r.Get("/readyz", handlers.ReadyHandler(deps))

	r.Route("/api/v1", func(r chi.Router) {
		// Agent-facing submission endpoint
		r.Post("/commands", handlers.SubmitCommandHandler(deps))

		// Review queue; resolutions require an identified human actor
		r.Route("/approvals", func(r chi.Router) {
			r.Get("/", handlers.ListApprovalsHandler(deps))
			r.Get("/{approvalID}", handlers.GetApprovalHandler(deps))

			r.Group(func(r chi.Router) {
				r.Use(deps.ActorMiddleware.RequireActor)
				r.Post("/{approvalID}/resolution", handlers.ResolveApprovalHandler(deps))
			})
		})

		r.Get("/audit/events", handlers.QueryAuditEventsHandler(deps))

		r.Route("/policy", func(r chi.Router) {
			r.Get("/", handlers.GetPolicyHandler(deps))
			r.Post("/reload", handlers.ReloadPolicyHandler(deps))
		})
	})

	return r
}
