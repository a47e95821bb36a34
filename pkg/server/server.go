// Package server provides the camrelay HTTP and websocket transport:
// the per-viewer session socket and the camera configuration API.
package server

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/edgecam/camrelay/internal/log"
	"github.com/edgecam/camrelay/pkg/camera"
	"github.com/edgecam/camrelay/pkg/stream"
)

// Server is the camrelay transport server.
type Server struct {
	app  *fiber.App
	port string

	cams    *camera.Registry
	streams *stream.Registry
	params  stream.ParamsFunc
}

// New creates the server over the given camera and stream registries.
func New(port string, cams *camera.Registry, streams *stream.Registry, params stream.ParamsFunc) *Server {
	s := &Server{
		port:    port,
		cams:    cams,
		streams: streams,
		params:  params,
	}

	app := fiber.New(fiber.Config{
		AppName:               "camrelay",
		DisableStartupMessage: true,
	})

	// CORS for local development
	app.Use(cors.New())

	// API routes
	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/params", s.handleParams)
	api.Get("/cameras", s.handleListCameras)
	api.Put("/cameras/:id", s.handleUpsertCamera)
	api.Delete("/cameras/:id", s.handleDeleteCamera)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	// One websocket connection = one viewer session
	app.Get("/ws", websocket.New(s.handleWS))

	s.app = app
	return s
}

// handleWS services one viewer session until the connection closes.
func (s *Server) handleWS(c *websocket.Conn) {
	newSession(c, s.streams).run()
}

// Start starts the server and blocks until it stops.
func (s *Server) Start() error {
	log.Info("camrelay listening", "port", s.port)
	return s.app.Listen(":" + s.port)
}

// Shutdown stops every active stream worker and then the HTTP server.
func (s *Server) Shutdown() error {
	s.streams.StopAll()
	return s.app.Shutdown()
}
