// Package gameserver wires the world simulation, the session layer and the
// websocket listener together and owns their lifecycle.
package gameserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"github.com/sasha-s/go-deadlock"

	"gridrealm/server/config"
	"gridrealm/server/handlers"
	"gridrealm/server/logger"
	"gridrealm/server/messages"
	"gridrealm/server/persistence"
	"gridrealm/server/scheduler"
	"gridrealm/server/services"
)

// Server is a running game server
type Server struct {
	cfg     *config.ServerConfig
	codec   messages.Codec
	journal persistence.Journal
	sched   *scheduler.TickerScheduler
	world   *services.WorldService
	clients *handlers.ClientManager

	upgrader   websocket.Upgrader
	httpServer *http.Server
	listener   net.Listener

	broadcastTask scheduler.Task
	sessions      sync.WaitGroup
	shuttingDown  atomic.Bool
	shutdownOnce  sync.Once
}

// New builds a server from cfg. The journal is closed on Shutdown; nil
// disables journaling.
func New(cfg *config.ServerConfig, journal persistence.Journal) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	codec, err := messages.CodecByName(cfg.Server.Codec)
	if err != nil {
		return nil, err
	}
	if journal == nil {
		journal = persistence.NopJournal{}
	}

	deadlock.Opts.Disable = !cfg.Debug.DeadlockDetection
	if cfg.Debug.DeadlockTimeout > 0 {
		deadlock.Opts.DeadlockTimeout = cfg.Debug.DeadlockTimeout
	}
	deadlock.Opts.OnPotentialDeadlock = func() {
		logger.Error("Potential deadlock detected")
	}

	s := &Server{
		cfg:     cfg,
		codec:   codec,
		journal: journal,
		sched:   scheduler.NewTickerScheduler(),
		clients: handlers.NewClientManager(cfg.Server.MaxPlayers),
	}
	s.world = services.NewWorldService(cfg, s.sched, s.clients, journal)
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			allowed := cfg.Server.IsOriginAllowed(origin)
			if !allowed {
				logger.Warning("WebSocket connection rejected - origin not allowed", "origin", origin, "remote_addr", r.RemoteAddr)
			}
			return allowed
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocketUpgrade)
	s.httpServer = &http.Server{Handler: mux}
	return s, nil
}

// World returns the simulation
func (s *Server) World() *services.WorldService {
	return s.world
}

// Start binds the listener, populates the world and begins serving
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.cfg.Address())
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	s.listener = listener

	s.world.Initialize()

	interval := s.cfg.Server.BroadcastInterval
	s.broadcastTask = s.sched.Every("broadcast", interval, interval, s.broadcastFullState)

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	logger.Info("Server listening", "address", listener.Addr().String(), "codec", s.codec.Name(), "max_players", s.cfg.Server.MaxPlayers)
	return nil
}

// Addr returns the bound listener address
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) broadcastFullState() {
	if s.clients.Count() == 0 {
		return
	}
	s.clients.BroadcastToAll(messages.New(messages.MessageTypeFullState, s.world.Snapshot()))
}

func (s *Server) handleWebSocketUpgrade(w http.ResponseWriter, r *http.Request) {
	if s.shuttingDown.Load() {
		http.Error(w, "Server is shutting down", http.StatusServiceUnavailable)
		return
	}

	wsConn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warning("Failed to upgrade connection", "remote_addr", r.RemoteAddr, "error", err)
		return
	}

	s.sessions.Add(1)
	defer s.sessions.Done()
	handlers.HandleClientConnection(wsConn, s.codec, s.cfg.Server.MaxMessageSize, s.world, s.clients)
}

// Shutdown stops accepting sessions, notifies and closes every client,
// stops the world and closes the journal. Later calls do nothing.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		logger.Info("Shutting down server")
		s.shuttingDown.Store(true)
		clients := s.clients.Close()

		if s.broadcastTask != nil {
			s.broadcastTask.Stop()
		}

		notice := messages.New(messages.MessageTypeServerShutdown, messages.ShutdownMessage{Message: "Server is shutting down"})
		for _, client := range clients {
			client.Send(notice)
		}
		for _, client := range clients {
			client.Disconnect()
		}

		s.world.Shutdown()

		if err := s.httpServer.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("http shutdown: %w", err)
		}

		done := make(chan struct{})
		go func() {
			s.sessions.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			logger.Warning("Timed out waiting for sessions to end")
		}

		if err := s.journal.Close(); err != nil {
			shutdownErr = errors.Join(shutdownErr, fmt.Errorf("journal close: %w", err))
		}
		logger.Info("Server stopped")
	})
	return shutdownErr
}
