package api

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/papercomputeco/psyche/pkg/dispatch"
	"github.com/papercomputeco/psyche/pkg/pattern"
	"github.com/papercomputeco/psyche/pkg/respond"
	"github.com/papercomputeco/psyche/pkg/snapshot"
	"github.com/papercomputeco/psyche/pkg/storage"
)

// Server is the API server exposing the psyche pipeline.
type Server struct {
	config       Config
	storer       storage.Driver
	dispatcher   *dispatch.Dispatcher
	patterns     *pattern.Engine
	snapshots    *snapshot.Engine
	orchestrator *respond.Orchestrator
	logger       *zap.Logger
	app          *fiber.App
}

// Engines bundles the pipeline components the server fronts.
// The storer is injected separately to allow sharing with other components.
type Engines struct {
	Dispatcher   *dispatch.Dispatcher
	Patterns     *pattern.Engine
	Snapshots    *snapshot.Engine
	Orchestrator *respond.Orchestrator
}

// NewServer creates a new API server.
func NewServer(config Config, storer storage.Driver, engines Engines, logger *zap.Logger) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config:       config,
		storer:       storer,
		dispatcher:   engines.Dispatcher,
		patterns:     engines.Patterns,
		snapshots:    engines.Snapshots,
		orchestrator: engines.Orchestrator,
		logger:       logger,
		app:          app,
	}

	app.Get("/ping", s.handlePing)
	app.Post("/v1/dispatch", s.handleDispatch)
	app.Post("/v1/owners/:owner/patterns", s.handlePatterns)
	app.Post("/v1/owners/:owner/snapshot", s.handleSnapshot)
	app.Get("/v1/owners/:owner/snapshots", s.handleListSnapshots)
	app.Get("/v1/owners/:owner/arcs", s.handleListArcs)
	app.Post("/v1/owners/:owner/respond", s.handleRespond)

	return s
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		zap.String("listen", s.config.ListenAddr),
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
