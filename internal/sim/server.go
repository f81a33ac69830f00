package sim

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/jmraffin/flowdeck/internal/controller"
	"github.com/jmraffin/flowdeck/internal/discovery"
	"github.com/jmraffin/flowdeck/internal/logging"
	"github.com/jmraffin/flowdeck/internal/settings"
	"github.com/jmraffin/flowdeck/internal/version"
)

const (
	// defaultStepInterval is the physics tick of the simulated rack.
	defaultStepInterval = 200 * time.Millisecond

	// defaultPushInterval is the cadence of WebSocket snapshot pushes.
	defaultPushInterval = 500 * time.Millisecond

	// writeWait is the time allowed to write a message to a WebSocket peer.
	writeWait = 10 * time.Second
)

// Config holds the simulator configuration
type Config struct {
	Host       string
	Port       int
	MaxDevices int
	Ports      []string // Serial port names the rack offers (empty = defaults)
	LogLevel   string
	Announce   bool   // If true, register the service over mDNS
	Name       string // mDNS instance name (default "flowdeck-sim")
}

// Server serves the controller HTTP API backed by a simulated rack.
type Server struct {
	config  *Config
	manager *Manager

	mu     sync.Mutex
	theme  string
	subs   map[*websocket.Conn]struct{}
	closed bool

	upgrader   websocket.Upgrader
	httpServer *http.Server
	wg         sync.WaitGroup
}

// New creates a new Server instance
func New(config *Config) (*Server, error) {
	if err := logging.Initialize(config.LogLevel); err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}
	if config.Name == "" {
		config.Name = "flowdeck-sim"
	}

	return &Server{
		config:  config,
		manager: NewManager(config.MaxDevices, config.Ports),
		theme:   settings.ThemeLight,
		subs:    make(map[*websocket.Conn]struct{}),
		upgrader: websocket.Upgrader{
			// The simulator is a local development tool; any origin may
			// subscribe to the snapshot feed.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}, nil
}

// Manager exposes the simulated rack, mainly for tests that want to drive
// the physics directly.
func (s *Server) Manager() *Manager {
	return s.manager
}

// Handler returns the HTTP handler serving the controller API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/ports", s.handlePorts)
	mux.HandleFunc("/api/info", s.handleInfo)
	mux.HandleFunc("/api/snapshot", s.handleSnapshot)
	mux.HandleFunc("/api/connect", s.handleConnect)
	mux.HandleFunc("/api/disconnect", s.handleDisconnect)
	mux.HandleFunc("/api/devices/toggle", s.handleToggle)
	mux.HandleFunc("/api/devices/tag", s.handleTag)
	mux.HandleFunc("/api/devices/consigne", s.handleConsigne)
	mux.HandleFunc("/api/devices/vanne", s.handleVanne)
	mux.HandleFunc("/api/devices/ramp", s.handleRamp)
	mux.HandleFunc("/api/devices/gas", s.handleGas)
	mux.HandleFunc("/api/devices/total/reset", s.handleResetTotal)
	mux.HandleFunc("/api/theme", s.handleTheme)
	mux.HandleFunc("/ws", s.handleWebSocket)

	return s.logRequests(mux)
}

// Start starts the simulator and blocks until shutdown
func (s *Server) Start() error {
	addr := net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))

	logging.Info("Starting flowdeck simulator",
		zap.String("addr", addr),
		zap.Int("channels", s.manager.MaxDevices()),
		zap.Strings("ports", s.manager.Ports()),
		zap.String("log_level", s.config.LogLevel),
	)

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Advertise over mDNS so `flowdeck scan` finds the simulator
	var withdraw func()
	if s.config.Announce {
		port := listener.Addr().(*net.TCPAddr).Port
		withdraw, err = discovery.Announce(s.config.Name, port, map[string]string{
			"version":  version.Version,
			"channels": strconv.Itoa(s.manager.MaxDevices()),
		})
		if err != nil {
			logging.Warn("mDNS announcement failed, continuing without it", zap.Error(err))
		} else {
			logging.Info("Announced over mDNS",
				zap.String("instance", s.config.Name),
				zap.String("service", discovery.ServiceType),
			)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.wg.Add(2)
	go s.stepLoop(ctx)
	go s.pushLoop(ctx)

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- s.httpServer.Serve(listener)
	}()

	logging.Info("Simulator listening", zap.String("addr", listener.Addr().String()))

	select {
	case <-sigChan:
		logging.Info("Shutdown signal received, stopping simulator...")
		cancel()
		if withdraw != nil {
			withdraw()
		}
		return s.Shutdown(context.Background())
	case err := <-errChan:
		cancel()
		if withdraw != nil {
			withdraw()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Shutdown gracefully shuts down the simulator
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down simulator...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			logging.Error("Error shutting down HTTP server", zap.Error(err))
		}
	}

	// Close all WebSocket subscribers
	s.mu.Lock()
	s.closed = true
	for conn := range s.subs {
		_ = conn.Close()
	}
	s.subs = make(map[*websocket.Conn]struct{})
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logging.Info("Simulator stopped")
	case <-shutdownCtx.Done():
		logging.Warn("Shutdown timeout, forcing close")
	}

	logging.Sync()
	return nil
}

// stepLoop advances the rack physics at a fixed cadence.
func (s *Server) stepLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(defaultStepInterval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.manager.Step(now.Sub(last).Seconds())
			last = now
		}
	}
}

// pushLoop broadcasts snapshots to WebSocket subscribers.
func (s *Server) pushLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(defaultPushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.broadcast(s.manager.Snapshot())
		}
	}
}

// broadcast sends a snapshot to every subscriber, dropping broken ones.
func (s *Server) broadcast(snap *controller.Snapshot) {
	data, err := json.Marshal(snap)
	if err != nil {
		logging.Error("Failed to marshal snapshot", zap.Error(err))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.subs {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			logging.Debug("Dropping WebSocket subscriber",
				zap.String("remote_addr", conn.RemoteAddr().String()),
				zap.Error(err),
			)
			_ = conn.Close()
			delete(s.subs, conn)
		}
	}
}

// ---------- HTTP handlers ----------

// statusRecorder captures the status code for request logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logging.LogHTTPRequest(r.RemoteAddr, r.Method, r.URL.Path, rec.status)
	})
}

func (s *Server) handlePorts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, s.manager.Ports())
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.mu.Lock()
	theme := s.theme
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, controller.AppInfo{
		Name:     s.config.Name,
		Version:  version.Version,
		Max:      s.manager.MaxDevices(),
		Settings: controller.AppSettings{Theme: theme},
	})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, s.manager.Snapshot())
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Port string `json:"port"`
	}
	if !s.decodeCommand(w, r, &req) {
		return
	}
	if err := s.manager.Connect(req.Port); err != nil {
		writeManagerError(w, err)
		return
	}
	logging.LogConnection(req.Port, "connected")
	writeJSON(w, http.StatusOK, s.manager.Snapshot())
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.manager.Disconnect()
	logging.LogConnection("", "disconnected")
	writeJSON(w, http.StatusOK, s.manager.Snapshot())
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Index  int  `json:"index"`
		Active bool `json:"active"`
	}
	if !s.decodeCommand(w, r, &req) {
		return
	}
	s.command(w, req.Index, "toggle", s.manager.Toggle(req.Index, req.Active))
}

func (s *Server) handleTag(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Index int    `json:"index"`
		Tag   string `json:"tag"`
	}
	if !s.decodeCommand(w, r, &req) {
		return
	}
	if err := s.manager.SetTag(req.Index, req.Tag); err != nil {
		writeManagerError(w, err)
		return
	}
	logging.LogCommand("set_tag", req.Index, nil)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleConsigne(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Index int     `json:"index"`
		Value float64 `json:"value"`
	}
	if !s.decodeCommand(w, r, &req) {
		return
	}
	s.command(w, req.Index, "set_consigne", s.manager.SetConsigne(req.Index, req.Value))
}

func (s *Server) handleVanne(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Index int    `json:"index"`
		Mode  string `json:"mode"`
	}
	if !s.decodeCommand(w, r, &req) {
		return
	}
	s.command(w, req.Index, "set_vanne", s.manager.SetVanne(req.Index, req.Mode))
}

func (s *Server) handleRamp(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Index  int     `json:"index"`
		Active bool    `json:"active"`
		TimeS  float64 `json:"time_s"`
	}
	if !s.decodeCommand(w, r, &req) {
		return
	}
	s.command(w, req.Index, "set_ramp", s.manager.SetRamp(req.Index, req.Active, req.TimeS))
}

func (s *Server) handleGas(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Index int    `json:"index"`
		Gas   string `json:"gas"`
	}
	if !s.decodeCommand(w, r, &req) {
		return
	}
	s.command(w, req.Index, "select_gas", s.manager.SelectGas(req.Index, req.Gas))
}

func (s *Server) handleResetTotal(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Index int `json:"index"`
	}
	if !s.decodeCommand(w, r, &req) {
		return
	}
	s.command(w, req.Index, "reset_total", s.manager.ResetTotal(req.Index))
}

func (s *Server) handleTheme(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Theme string `json:"theme"`
	}
	if !s.decodeCommand(w, r, &req) {
		return
	}
	if !settings.ValidTheme(req.Theme) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown theme %q", req.Theme))
		return
	}
	s.mu.Lock()
	s.theme = req.Theme
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Error("WebSocket upgrade failed",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = conn.Close()
		return
	}
	s.subs[conn] = struct{}{}
	s.mu.Unlock()

	logging.LogConnection(r.RemoteAddr, "websocket_subscribed")

	// Drain the read side to detect disconnects; the feed is one-way.
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.subs, conn)
			s.mu.Unlock()
			_ = conn.Close()
			logging.LogConnection(r.RemoteAddr, "websocket_closed")
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// command finishes a device command: error answer or fresh snapshot.
func (s *Server) command(w http.ResponseWriter, index int, op string, err error) {
	logging.LogCommand(op, index, err)
	if err != nil {
		writeManagerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.manager.Snapshot())
}

// decodeCommand enforces POST and parses the JSON request body.
func (s *Server) decodeCommand(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("Failed to encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeManagerError maps rack rejections to HTTP answers: state conflicts
// are 409, bad requests 400.
func writeManagerError(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	switch {
	case errors.Is(err, ErrNotConnected), errors.Is(err, ErrDeviceOff), errors.Is(err, ErrUnknownPort):
		status = http.StatusConflict
	}
	writeError(w, status, err.Error())
}
