/**
 * @description
 * This file sets up the HTTP router for the fund-service. It defines the API
 * endpoints, associates them with their corresponding handlers, and applies the
 * middleware for logging, recovery, CORS and authentication.
 *
 * @dependencies
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 * - github.com/go-chi/cors: CORS handling for browser clients.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Routes creates and returns the router for the fund service.
func Routes(h *Handlers, verifier TokenVerifier, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"https://*", "http://*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any major browsers
	}))

	// Health check endpoint
	health := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	}
	r.Get("/health", health)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", health)
		r.Post("/auth/login", h.LoginHandler)

		// Group routes that require authentication.
		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(verifier))

			r.Post("/auth/logout", h.LogoutHandler)
			r.Get("/me", h.GetProfileHandler)
			r.Put("/me", h.UpdateProfileHandler)

			// Fund discovery
			r.Get("/funds", h.ListFundsHandler)
			r.Get("/funds/{fundID}", h.GetFundHandler)
			r.Get("/investments", h.ListInvestmentsHandler)

			// Wallet
			r.Get("/wallet/balances", h.ListBalancesHandler)
			r.Get("/wallet/networks", h.ListNetworksHandler)
			r.Get("/wallet/transactions", h.ListTransactionsHandler)

			// Wizards
			r.Get("/wizards", h.ListWizardsHandler)
			r.Get("/wizards/{kind}", h.GetWizardHandler)
			r.Delete("/wizards/{kind}", h.CancelWizardHandler)
			r.Post("/wizards/{kind}/open", h.OpenWizardHandler)
			r.Post("/wizards/{kind}/proceed", h.ProceedWizardHandler)
			r.Post("/wizards/{kind}/back", h.BackWizardHandler)
			r.Post("/wizards/{kind}/cancel", h.CancelWizardHandler)
		})
	})

	return r
}
