/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/members/*            Registration, approval queue, soft delete
  /api/collections/*        Matrix, CSV export, configuration
  /api/allocations/*        Multi-month allocation preview and commit
  /api/payments/*           Direct recording, corrections, soft delete
  /api/donation-requests/*  Member claims and admin decisions
  /api/expenses/*           Fund expenses
  /api/dashboard/*          Finance summary
  /api/announcements/*      Announcements board
  /api/notifications/*      Mark-read
  /api/recycle-bin/*        Restore and purge
  /api/admin/*              Backup, restore, reset, activity log

SECURITY NOTE:
  No authentication middleware. All endpoints are public; deployments
  front this with a reverse proxy that handles auth.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Member routes
		r.Route("/members", func(r chi.Router) {
			r.Get("/", h.ListMembers)
			r.Post("/", h.RegisterMember)
			r.Get("/{id}", h.GetMember)
			r.Post("/{id}/approve", h.ApproveMember)
			r.Post("/{id}/reject", h.RejectMember)
			r.Delete("/{id}", h.DeleteMember)
			r.Get("/{id}/notifications", h.ListNotifications)
		})

		// Collection matrix and configuration
		r.Route("/collections", func(r chi.Router) {
			r.Get("/matrix", h.GetMatrix)
			r.Get("/matrix/export", h.ExportMatrix)
			r.Get("/config", h.GetConfig)
			r.Put("/config", h.UpdateConfig)
		})

		// Allocation routes
		r.Route("/allocations", func(r chi.Router) {
			r.Post("/preview", h.PreviewAllocation)
			r.Post("/commit", h.CommitAllocation)
			r.Post("/fill-last-blank", h.FillLastBlank)
		})

		// Payment routes
		r.Route("/payments", func(r chi.Router) {
			r.Get("/", h.ListPayments)
			r.Post("/", h.CreatePayment)
			r.Put("/{id}/amount", h.CorrectPaymentAmount)
			r.Delete("/{id}", h.DeletePayment)
		})

		// Donation request routes
		r.Route("/donation-requests", func(r chi.Router) {
			r.Get("/", h.ListDonationRequests)
			r.Post("/", h.SubmitDonation)
			r.Post("/{id}/approve", h.ApproveDonation)
			r.Post("/{id}/reject", h.RejectDonation)
		})

		// Expense routes
		r.Route("/expenses", func(r chi.Router) {
			r.Get("/", h.ListExpenses)
			r.Post("/", h.CreateExpense)
			r.Delete("/{id}", h.DeleteExpense)
		})

		// Dashboard
		r.Get("/dashboard/summary", h.GetDashboard)

		// Announcement routes
		r.Route("/announcements", func(r chi.Router) {
			r.Get("/", h.ListAnnouncements)
			r.Post("/", h.CreateAnnouncement)
			r.Delete("/{id}", h.DeleteAnnouncement)
		})

		// Notification routes
		r.Post("/notifications/{id}/read", h.MarkNotificationRead)

		// Recycle bin routes
		r.Route("/recycle-bin", func(r chi.Router) {
			r.Get("/", h.ListRecycleBin)
			r.Post("/{id}/restore", h.RestoreRecycleEntry)
			r.Delete("/{id}", h.PurgeRecycleEntry)
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Post("/backup", h.Backup)
			r.Post("/restore", h.Restore)
			r.Post("/reset", h.ResetDatabase)
			r.Get("/activity", h.ListActivity)
		})
	})

	return r
}
