package main

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/unclebandit/ngo-backoffice/internal/app"
	"github.com/unclebandit/ngo-backoffice/internal/auth"
	"github.com/unclebandit/ngo-backoffice/internal/controller"
	"github.com/unclebandit/ngo-backoffice/internal/handler"
	"github.com/unclebandit/ngo-backoffice/internal/logger"
	"github.com/unclebandit/ngo-backoffice/internal/metrics"
)

func newRouter(a *app.App) http.Handler {
	log := a.Logger.Named("http")

	newsletterController := &controller.NewsletterController{
		Service:     a.Newsletter,
		Broadcaster: a.Dispatcher,
		Logger:      log,
	}
	if a.Jobs != nil {
		newsletterController.Jobs = a.Jobs
	}
	donationController := &controller.DonationController{Service: a.Donations, Logger: log}
	collaborationController := &controller.CollaborationController{Service: a.Collaborations, Logger: log}
	adminHandler := &handler.AdminHandler{
		Newsletter:     a.Newsletter,
		Donations:      a.Donations,
		Collaborations: a.Collaborations,
		Logger:         log,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logger.AccessLog(log))
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)
	r.Use(auth.Middleware(a.Config.JWT.Secret))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		controller.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := a.DB.PingContext(ctx); err != nil {
			controller.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "database unavailable"})
			return
		}
		controller.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})
	r.Handle("/metrics", promhttp.Handler())

	// Public routes
	r.Post("/newsletter/subscribe", newsletterController.Subscribe)
	r.Get("/newsletter/unsubscribe/{token}", newsletterController.UnsubscribePage)
	r.Post("/newsletter/unsubscribe/{token}", newsletterController.Unsubscribe)
	r.Post("/donations", donationController.Create)
	r.Post("/collaborations", collaborationController.Create)

	// Admin routes
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAdmin)

		r.Post("/newsletter/send-message", newsletterController.SendMessage)
		r.Get("/newsletter/stats", newsletterController.Stats)
		r.Get("/newsletter/subscribers", newsletterController.ListSubscribers)
		r.Delete("/newsletter/subscribers/{email}", newsletterController.DeleteSubscriber)
		r.Get("/newsletter/messages", newsletterController.ListMessages)
		r.Get("/newsletter/messages/{id}", adminHandler.GetMessageHandler)

		r.Get("/admin/donations", adminHandler.ListDonationsHandler)
		r.Get("/admin/collaborations", adminHandler.ListCollaborationsHandler)
		r.Patch("/admin/collaborations/{id}/status", collaborationController.UpdateStatus)
	})

	return r
}
