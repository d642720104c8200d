package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/patpanic/patpanic-backend/internal/cards"
	"github.com/patpanic/patpanic-backend/internal/config"
	"github.com/patpanic/patpanic-backend/internal/game"
	"github.com/patpanic/patpanic-backend/internal/store"
)

type Server struct {
	cfg      config.Config
	registry *game.Registry
	hub      *game.Hub
	cards    *cards.Repository
	pg       *store.PostgresStore
}

// NewServer wires the hub, registry and stores together and returns the
// http.Server ready to listen.
func NewServer(cfg config.Config, repo *cards.Repository, pg *store.PostgresStore) (*http.Server, *Server) {
	hub := game.NewHub()

	var snapStore game.SnapshotStore
	if pg != nil {
		snapStore = pg
	} else {
		snapStore = store.NewMemoryStore()
	}
	registry := game.NewRegistry(cfg.RoomTTL, repo, snapStore, hub)
	hub.AttachRegistry(registry)

	s := &Server{
		cfg:      cfg,
		registry: registry,
		hub:      hub,
		cards:    repo,
		pg:       pg,
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return httpServer, s
}

// Registry exposes the session registry for shutdown.
func (s *Server) Registry() *game.Registry {
	return s.registry
}
