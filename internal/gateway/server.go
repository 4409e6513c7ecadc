package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/fieldgrid/fieldgrid-core/internal/infrastructure/config"
	"github.com/fieldgrid/fieldgrid-core/internal/infrastructure/database"
	"github.com/fieldgrid/fieldgrid-core/internal/infrastructure/logging"
)

// shutdownTimeout is the grace period for in-flight requests on shutdown.
const shutdownTimeout = 10 * time.Second

// upgrader configures the WebSocket upgrader.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// Devices connect from arbitrary origins; dashboards are gated by
		// token, not origin.
		return true
	},
}

// Server is the HTTP/WebSocket front for FieldGrid Core.
type Server struct {
	cfg    *config.Config
	logger *logging.Logger

	hub         *Hub
	coord       *Coordinator
	credentials *CredentialChecker
	db          *database.DB

	httpServer *http.Server
}

// ServerDeps carries the server's dependencies.
type ServerDeps struct {
	Config      *config.Config
	Logger      *logging.Logger
	Hub         *Hub
	Coordinator *Coordinator
	Credentials *CredentialChecker
	DB          *database.DB
}

// NewServer creates the gateway server and wires its routes.
func NewServer(deps ServerDeps) *Server {
	s := &Server{
		cfg:         deps.Config,
		logger:      deps.Logger.With("component", "gateway"),
		hub:         deps.Hub,
		coord:       deps.Coordinator,
		credentials: deps.Credentials,
		db:          deps.DB,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Get("/healthz", s.handleHealth)
	r.Get(deps.Config.WebSocket.Path, s.handleWebSocket)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", deps.Config.Server.Host, deps.Config.Server.Port),
		Handler:      r,
		ReadTimeout:  deps.Config.GetReadTimeout(),
		WriteTimeout: deps.Config.GetWriteTimeout(),
		IdleTimeout:  deps.Config.GetIdleTimeout(),
	}

	return s
}

// Start begins serving. It blocks until the listener fails or Close is called.
func (s *Server) Start() error {
	s.logger.Info("gateway listening",
		"addr", s.httpServer.Addr,
		"ws_path", s.cfg.WebSocket.Path,
	)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("gateway server: %w", err)
	}
	return nil
}

// Close shuts the server down gracefully: stop accepting, drain in-flight
// HTTP requests, then drop all WebSocket clients.
func (s *Server) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := s.httpServer.Shutdown(ctx)
	s.hub.CloseAll()
	if err != nil {
		return fmt.Errorf("shutting down gateway: %w", err)
	}
	return nil
}

// handleHealth reports service and database health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK

	if err := s.db.HealthCheck(r.Context()); err != nil {
		s.logger.Error("health check failed", "error", err)
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	//nolint:errcheck // Best-effort response body
	json.NewEncoder(w).Encode(map[string]any{
		"status":  status,
		"clients": s.hub.ClientCount(),
	})
}

// handleWebSocket upgrades the connection and starts the client pumps.
//
// Connections with a token query parameter are dashboard subscribers and
// must present a valid credential. Connections without one are devices,
// which identify themselves by registering. The asymmetry is intentional:
// dashboards observe the whole fleet, a device only ever speaks for itself.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	var dashboard bool
	var subject string

	if token := r.URL.Query().Get("token"); token != "" {
		sub, err := s.credentials.Verify(token)
		if err != nil {
			s.logger.Warn("dashboard credential rejected", "error", err)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			//nolint:errcheck // Best-effort response body
			json.NewEncoder(w).Encode(map[string]string{"error": "invalid token"})
			return
		}
		dashboard = true
		subject = sub
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := &Client{
		id:        uuid.NewString(),
		hub:       s.hub,
		conn:      conn,
		send:      make(chan []byte, s.cfg.WebSocket.SendBuffer),
		coord:     s.coord,
		dashboard: dashboard,
		subject:   subject,
	}

	s.hub.Register(client)

	go client.writePump(s.cfg.WebSocket)
	go client.readPump(s.cfg.WebSocket)
}
