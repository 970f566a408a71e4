// Package server assembles the chi router with the common middleware stack
// and mounts the API routes.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	commonmiddleware "github.com/makerhub/makerhub/internal/common/middleware"
	"github.com/makerhub/makerhub/internal/hubsrv/apis"
	"github.com/makerhub/makerhub/internal/hubsrv/config"
)

type HubServer struct {
	Router *chi.Mux
}

func CreateNewServer() (*HubServer, error) {
	s := &HubServer{}
	s.Router = chi.NewRouter()
	return s, nil
}

func (s *HubServer) MountHandlers(handler *apis.Handler) {
	s.Router.Use(commonmiddleware.RequestLogger)
	s.Router.Use(commonmiddleware.PanicHandler)
	if config.Config().HandleCORS {
		s.Router.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", "Content-Length", "Authorization", apis.ActorIDHeader, apis.ActorManageHeader},
			MaxAge:         300,
		}))
	}
	s.Router.Get("/healthz", s.getHealth)
	s.Router.Mount("/api/v1", handler.Router())
}

func (s *HubServer) getHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
