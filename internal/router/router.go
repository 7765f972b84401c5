package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	_ "github.com/voyplan/voyplan/docs"
	"github.com/voyplan/voyplan/internal/api/activity"
	"github.com/voyplan/voyplan/internal/api/auth"
	"github.com/voyplan/voyplan/internal/api/budget"
	"github.com/voyplan/voyplan/internal/api/trip"
)

// Config carries the handlers and the auth middleware the router mounts.
// Server-wide middleware (request ID, logger, recoverer) is applied in main
// before this router.
type Config struct {
	AuthHandler            auth.Handler
	TripHandler            trip.Handler
	ActivityHandler        activity.Handler
	BudgetHandler          budget.Handler
	AuthenticateMiddleware func(http.Handler) http.Handler
}

// SetupRouter wires every route group: public auth and share-link routes,
// then the JWT-protected API surface.
func SetupRouter(cfg *Config) chi.Router {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:3000"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("pong"))
	})

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	r.Route("/api/v1", func(r chi.Router) {
		// Public routes: no JWT required.
		r.Group(func(r chi.Router) {
			r.Post("/auth/register", cfg.AuthHandler.Register)
			r.Post("/auth/login", cfg.AuthHandler.Login)
			r.Post("/auth/refresh", cfg.AuthHandler.RefreshSession)
			r.Get("/auth/{provider}", cfg.AuthHandler.OAuthBegin)
			r.Get("/auth/{provider}/callback", cfg.AuthHandler.OAuthCallback)

			// Share links resolve by opaque token, not by trip ID.
			r.Get("/public/trips/{shareToken}", cfg.TripHandler.GetSharedTripHandler)
		})

		// Protected routes.
		r.Group(func(r chi.Router) {
			r.Use(cfg.AuthenticateMiddleware)

			r.Post("/auth/logout", cfg.AuthHandler.Logout)
			r.Get("/auth/session", cfg.AuthHandler.ValidateSession)

			r.Route("/trips", func(r chi.Router) {
				r.Post("/", cfg.TripHandler.CreateTripHandler)
				r.Get("/", cfg.TripHandler.ListTripsHandler)

				r.Route("/{tripID}", func(r chi.Router) {
					r.Get("/", cfg.TripHandler.GetTripHandler)
					r.Patch("/", cfg.TripHandler.UpdateTripHandler)
					r.Delete("/", cfg.TripHandler.DeleteTripHandler)
					r.Post("/share", cfg.TripHandler.ShareTripHandler)

					r.Route("/activities", func(r chi.Router) {
						r.Post("/", cfg.ActivityHandler.CreateActivityHandler)
						r.Get("/", cfg.ActivityHandler.ListActivitiesHandler)
						r.Get("/{activityID}", cfg.ActivityHandler.GetActivityHandler)
						r.Patch("/{activityID}", cfg.ActivityHandler.UpdateActivityHandler)
						r.Delete("/{activityID}", cfg.ActivityHandler.DeleteActivityHandler)
						r.Post("/{activityID}/favorite", cfg.ActivityHandler.ToggleFavoriteHandler)
						r.Post("/{activityID}/complete", cfg.ActivityHandler.ToggleCompletedHandler)
					})

					r.Route("/budget", func(r chi.Router) {
						r.Get("/", cfg.BudgetHandler.GetBudgetHandler)
						r.Put("/", cfg.BudgetHandler.UpdateBudgetHandler)
						r.Get("/summary", cfg.BudgetHandler.GetSummaryHandler)
						r.Post("/recalculate", cfg.BudgetHandler.RecalculateHandler)
					})

					r.Route("/expenses", func(r chi.Router) {
						r.Post("/", cfg.BudgetHandler.AddExpenseHandler)
						r.Get("/", cfg.BudgetHandler.ListExpensesHandler)
						r.Delete("/{expenseID}", cfg.BudgetHandler.RemoveExpenseHandler)
					})
				})
			})
		})
	})

	return r
}
