/*
Package handler provides the HTTP entry points of the presence gateway.

This file defines the main Router. The Gateway middleware runs first so that stray
upgrade requests are terminated before any other middleware touches them; CORS,
request IDs, logging and panic recovery follow, then the health and real-time routes.
*/
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"skillswap/internal/pkg/errs"
	"skillswap/internal/pkg/logx"
	"skillswap/internal/pkg/resp"
)

// ServiceName is reported by the health endpoint.
const ServiceName = "SkillSwap Presence Gateway"

// HealthPayload is the data returned by GET /health.
type HealthPayload struct {
	Status            string `json:"status"`
	Service           string `json:"service"`
	Users             int    `json:"users"`
	Connections       int    `json:"connections"`
	ActiveConnections int    `json:"activeConnections"`
}

// Router sets up the HTTP routing table for the gateway.
func Router(deps *AppDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(deps.Gateway.Middleware)

	corsAllowedOrigins := []string{}
	if deps.Config.IsDevelopment() {
		corsAllowedOrigins = []string{"*"}
	} else if len(deps.Config.AllowedOrigins) > 0 {
		corsAllowedOrigins = deps.Config.AllowedOrigins
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   corsAllowedOrigins,
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	})
	r.Use(c.Handler)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logx.RequestLogger())
	r.Use(middleware.Recoverer)

	r.Get("/health", HandleHealth(deps))
	r.Get(deps.Gateway.Path(), deps.Gateway.ServeWS)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		resp.RespondError(w, r, errs.NewError(errs.ErrNotFound, r.URL.Path))
	})

	return r
}

// HandleHealth reports liveness and presence counters.
func HandleHealth(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		users, conns := deps.Registry.Stats()

		resp.RespondSuccess(w, r, HealthPayload{
			Status:            "ok",
			Service:           ServiceName,
			Users:             users,
			Connections:       conns,
			ActiveConnections: deps.Gateway.ActiveConnections(),
		})
	}
}
