// Excubitor - Frigate NVR Event Notification Bridge
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/excubitor

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	_ "github.com/tomtom215/excubitor/docs" // generated swagger spec

	"github.com/tomtom215/excubitor/internal/authz"
	"github.com/tomtom215/excubitor/internal/middleware"
)

// Router assembles the HTTP surface: middleware stacks, API routes, the
// WebSocket upgrade, metrics and swagger.
type Router struct {
	handler  *Handler
	enforcer *authz.Enforcer
}

// NewRouter creates a router around the handler set. The enforcer may be
// nil, which disables RBAC (every authenticated subject passes).
func NewRouter(handler *Handler, enforcer *authz.Enforcer) *Router {
	return &Router{handler: handler, enforcer: enforcer}
}

// Setup builds the chi handler tree.
func (router *Router) Setup() http.Handler {
	h := router.handler
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: h.cfg.Security.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-Request-ID"},
		MaxAge:         86400,
	}))

	// Health endpoints stay open: probes and monitors poll them.
	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(middleware.RateLimit(1000, time.Minute))
		r.Get("/", h.Health)
		r.Get("/live", h.HealthLive)
		r.Get("/ready", h.HealthReady)
	})

	// Login is the brute-force target, so it gets the strictest limit.
	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Use(middleware.RateLimit(5, 5*time.Minute))
		r.Post("/login", h.Login)
	})

	// Everything else requires authentication; RBAC layers on top.
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RateLimit(h.rateLimit()))
		r.Use(middleware.PrometheusMetrics)
		r.Use(h.authSvc.RequireAuth)
		if router.enforcer != nil {
			r.Use(router.enforcer.Middleware)
		}

		r.Get("/status", h.Status)
		r.Get("/events", h.Events)
		r.Get("/events/stats", h.EventStats)
		r.Get("/events/{id}", h.EventByID)
		r.Get("/events/{id}/snapshot", h.EventSnapshot)
		r.Get("/notifications", h.Notifications)
		r.Get("/config", h.ConfigView)
		r.Post("/notify/test", h.NotifyTest)
		r.Post("/admin/auth/reset", h.AuthReset)
	})

	r.Group(func(r chi.Router) {
		r.Use(h.authSvc.RequireAuth)
		if router.enforcer != nil {
			r.Use(router.enforcer.Middleware)
		}
		r.Get("/ws", h.WebSocket)
	})

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
		httpSwagger.DeepLinking(true),
		httpSwagger.DocExpansion("list"),
	))

	return r
}

func (h *Handler) rateLimit() (int, time.Duration) {
	requests, window := 100, time.Minute
	if h.cfg != nil {
		if h.cfg.Security.RateLimitReq > 0 {
			requests = h.cfg.Security.RateLimitReq
		}
		if h.cfg.Security.RateLimitWin > 0 {
			window = h.cfg.Security.RateLimitWin
		}
	}
	return requests, window
}

func routeParam(r *http.Request, name string) string {
	return chi.URLParam(r, name)
}
