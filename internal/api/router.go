/**
 * @description
 * This file sets up the HTTP router for the wallet API. It defines the
 * endpoints, associates them with their corresponding handlers, and applies
 * middleware for logging, panic recovery, CORS and session authentication.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 * - github.com/go-chi/cors: CORS middleware for browser clients.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// WalletRoutes creates and returns a new router for the wallet API.
func WalletRoutes(h *WalletHandlers, tokens *TokenManager) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link", "Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	r.Route("/api", func(r chi.Router) {
		// Public endpoints: account creation and the login/OTP handshake.
		r.Post("/signup", h.SignupHandler)
		r.Post("/login", h.LoginHandler)
		r.Post("/send-otp", h.SendOtpHandler)
		r.Post("/verify-otp", h.VerifyOtpHandler)

		// Group routes that require authentication.
		r.Group(func(r chi.Router) {
			r.Use(SessionAuthMiddleware(tokens))

			r.Post("/transfer", h.TransferHandler)
			r.Post("/add-money", h.AddMoneyHandler)
			r.Put("/limits", h.UpdateLimitsHandler)
			r.Get("/rewards", h.RewardsHandler)
			r.Get("/me", h.ProfileHandler)
			r.Get("/history", h.HistoryHandler)
			r.Get("/notifications", h.NotificationsHandler)
			r.Post("/notifications/clear", h.ClearNotificationsHandler)
			r.Get("/statement", h.StatementHandler)
		})
	})

	return r
}
