package routes

import (
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/iete-tsec/ascension-registration/handlers"
	"github.com/iete-tsec/ascension-registration/middleware"
)

func SetupRoutes(
	router *chi.Mux,
	registrationHandler *handlers.RegistrationHandler,
	adminHandler *handlers.AdminHandler,
	authHandler *handlers.AuthHandler,
	webSocketHandler *handlers.WebSocketHandler,
	jwtSecret string,
	allowedOrigins []string,
) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Public surface: submission form, roster, landing-page counters.
	router.Route("/registrations", func(r chi.Router) {
		r.Post("/", registrationHandler.Submit)
		r.Get("/", registrationHandler.ListTeams)
		r.Get("/status", registrationHandler.Status)
	})

	// Live capacity feed for the landing page.
	router.Get("/ws/capacity", webSocketHandler.ServeCapacity)

	// Admin: login is public, everything else sits behind the token check.
	router.Route("/admin", func(r chi.Router) {
		r.Post("/login", authHandler.Login)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate([]byte(jwtSecret)))

			r.Get("/session", authHandler.Session)
			r.Post("/logout", authHandler.Logout)

			r.Route("/registrations", func(r chi.Router) {
				r.Get("/", adminHandler.ListRegistrations)
				r.Patch("/{registrationID}/payment-status", adminHandler.SetPaymentStatus)
				r.Delete("/{registrationID}", adminHandler.DeleteRegistration)
			})
		})
	})
}
