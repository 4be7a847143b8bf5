// Package server exposes the HTTP surface: health, room lookup, the
// websocket endpoint and prometheus metrics.
package server

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/scythe504/tunebingo-backend/internal/config"
	"github.com/scythe504/tunebingo-backend/internal/game"
)

type Server struct {
	router *mux.Router
	svc    *game.Service
	cfg    *config.Config
	log    zerolog.Logger
}

func New(cfg *config.Config, svc *game.Service, logger zerolog.Logger) *Server {
	s := &Server{
		router: mux.NewRouter(),
		svc:    svc,
		cfg:    cfg,
		log:    logger.With().Str("component", "server").Logger(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}
