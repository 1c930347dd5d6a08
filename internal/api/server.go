// Package api provides the HTTP API for observing a running simulation.
// GET endpoints are public (read-only observation).
// POST endpoints require a bearer token (admin control plane).
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/talgya/firesim/internal/agents"
	"github.com/talgya/firesim/internal/city"
	"github.com/talgya/firesim/internal/engine"
	"github.com/talgya/firesim/internal/persistence"
)

const (
	maxStreamConns = 8
	writeWait      = 5 * time.Second
	pingPeriod     = 15 * time.Second
)

// Server serves the simulation over HTTP.
type Server struct {
	Eng      *engine.Engine
	DB       *persistence.DB // Run archive; nil disables the runs endpoints
	Addr     string
	AdminKey string // Bearer token for POST endpoints. Empty = POST disabled.

	// ControlLimit bounds control requests per client per minute.
	ControlLimit int

	streamConns int32
	srv         *http.Server
}

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	limit := s.ControlLimit
	if limit <= 0 {
		limit = 60
	}
	controlLimiter := NewRateLimiter(limit, time.Minute)

	mux := http.NewServeMux()

	// Public endpoints (GET, read-only).
	mux.HandleFunc("GET /api/v1/status", s.handleStatus)
	mux.HandleFunc("GET /api/v1/grid", s.handleGrid)
	mux.HandleFunc("GET /api/v1/agents", s.handleAgents)
	mux.HandleFunc("GET /api/v1/stats", s.handleStats)
	mux.HandleFunc("GET /api/v1/events", s.handleEvents)
	mux.HandleFunc("GET /api/v1/runs", s.handleRuns)
	mux.HandleFunc("GET /api/v1/runs/{id}/history", s.handleRunHistory)
	mux.HandleFunc("GET /api/v1/runs/{id}/events", s.handleRunEvents)

	// Live frame stream.
	mux.HandleFunc("GET /api/v1/stream", s.handleStream)

	// Admin endpoint (POST, requires bearer token).
	mux.HandleFunc("POST /api/v1/control", s.adminOnly(RateLimitMiddleware(controlLimiter, s.handleControl)))

	return corsMiddleware(mux)
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	s.srv = &http.Server{
		Addr:              s.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", s.Addr, "admin_auth", s.AdminKey != "", "archive", s.DB != nil)

	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// Shutdown stops the server started by Start.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set CORS_ORIGINS env var to a comma-separated list of allowed origins.
// Localhost dev servers are always allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.AdminKey == "" {
			http.Error(w, "admin endpoints disabled (no FIRESIM_ADMIN_KEY set)", http.StatusForbidden)
			return
		}
		if !s.checkBearerToken(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

type statusResponse struct {
	Tick     uint64       `json:"tick"`
	SimTime  string       `json:"sim_time"`
	Day      int          `json:"day"`
	Hour     int          `json:"hour"`
	Phase    engine.Phase `json:"phase"`
	Speed    engine.Speed `json:"speed"`
	Scenario string       `json:"scenario"`
	Seed     int64        `json:"seed"`
	Days     int          `json:"days"`
	MaxTicks uint64       `json:"max_ticks"`
	Agents   int          `json:"agents"`
	Fires    int          `json:"fires"`
}

func (s *Server) status() statusResponse {
	var st statusResponse
	s.Eng.View(func(sim *engine.Simulation) {
		burning, _, _ := sim.Fires.Counts()
		st = statusResponse{
			Tick:     sim.Tick,
			SimTime:  engine.SimTime(sim.Tick),
			Day:      engine.DayOf(sim.Tick),
			Hour:     engine.HourOf(sim.Tick),
			Phase:    sim.Phase,
			Scenario: sim.Params.Scenario.String(),
			Seed:     sim.Params.Seed,
			Days:     sim.Params.Days,
			MaxTicks: sim.Params.MaxTicks(),
			Agents:   len(sim.Agents),
			Fires:    burning,
		}
	})
	st.Speed = s.Eng.Speed()
	return st
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.status())
}

func (s *Server) handleGrid(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.grid())
}

func (s *Server) grid() *city.Grid {
	var g *city.Grid
	s.Eng.View(func(sim *engine.Simulation) { g = sim.Grid.Clone() })
	return g
}

// handleAgents lists agents, optionally filtered by ?kind=.
func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	var filter *agents.Kind
	if k := r.URL.Query().Get("kind"); k != "" {
		kind, err := agents.ParseKind(k)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		filter = &kind
	}

	var views []engine.AgentView
	s.Eng.View(func(sim *engine.Simulation) { views = sim.AgentViews() })
	if filter != nil {
		kept := views[:0]
		for _, v := range views {
			if v.Kind == *filter {
				kept = append(kept, v)
			}
		}
		views = kept
	}
	writeJSON(w, views)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	type statsResponse struct {
		Tick    uint64                 `json:"tick"`
		Stats   engine.Stats           `json:"stats"`
		History []engine.HistorySample `json:"history"`
	}
	var resp statsResponse
	s.Eng.View(func(sim *engine.Simulation) {
		resp = statsResponse{
			Tick:    sim.Tick,
			Stats:   sim.Stats.Clone(),
			History: append([]engine.HistorySample(nil), sim.History...),
		}
	})
	writeJSON(w, resp)
}

// handleEvents returns the event log newest first, optionally trimmed by
// ?limit=.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r, engine.MaxEvents)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var events []engine.Event
	s.Eng.View(func(sim *engine.Simulation) {
		n := min(limit, len(sim.Events))
		events = append([]engine.Event(nil), sim.Events[:n]...)
	})
	writeJSON(w, events)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if !s.archiveEnabled(w) {
		return
	}
	limit, err := queryLimit(r, 50)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	runs, err := s.DB.ListRuns(limit)
	if err != nil {
		slog.Error("list runs failed", "error", err)
		http.Error(w, "archive query failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, runs)
}

func (s *Server) handleRunHistory(w http.ResponseWriter, r *http.Request) {
	if !s.archiveEnabled(w) {
		return
	}
	hist, err := s.DB.RunHistory(r.PathValue("id"))
	if !s.archiveResult(w, err) {
		return
	}
	writeJSON(w, hist)
}

func (s *Server) handleRunEvents(w http.ResponseWriter, r *http.Request) {
	if !s.archiveEnabled(w) {
		return
	}
	events, err := s.DB.RunEvents(r.PathValue("id"))
	if !s.archiveResult(w, err) {
		return
	}
	writeJSON(w, events)
}

func (s *Server) archiveEnabled(w http.ResponseWriter) bool {
	if s.DB == nil {
		http.Error(w, "run archive disabled", http.StatusServiceUnavailable)
		return false
	}
	return true
}

func (s *Server) archiveResult(w http.ResponseWriter, err error) bool {
	switch {
	case err == nil:
		return true
	case errors.Is(err, persistence.ErrNotFound):
		http.Error(w, "run not found", http.StatusNotFound)
	default:
		slog.Error("archive query failed", "error", err)
		http.Error(w, "archive query failed", http.StatusInternalServerError)
	}
	return false
}

// controlRequest is the body of POST /api/v1/control.
type controlRequest struct {
	Action string `json:"action"` // pause, resume, speed, reset
	Speed  string `json:"speed,omitempty"`
}

func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	var req controlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	switch strings.ToLower(req.Action) {
	case "pause":
		if !s.Eng.Pause() {
			http.Error(w, "simulation is not running", http.StatusConflict)
			return
		}
	case "resume":
		if !s.Eng.Resume() {
			http.Error(w, "simulation is not paused", http.StatusConflict)
			return
		}
	case "speed":
		sp, err := engine.ParseSpeed(req.Speed)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.Eng.SetSpeed(sp)
	case "reset":
		s.Eng.Reset()
	default:
		http.Error(w, "unknown action "+strconv.Quote(req.Action), http.StatusBadRequest)
		return
	}
	slog.Info("control action applied", "action", req.Action, "speed", req.Speed)
	writeJSON(w, s.status())
}

// streamMessage is one websocket message: the full grid on connect, then
// one frame per tick.
type streamMessage struct {
	Type string `json:"type"` // "grid" or "frame"
	Data any    `json:"data"`
}

// handleStream upgrades to a websocket and pushes frames until the client
// goes away. Connections are capped.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	current := atomic.AddInt32(&s.streamConns, 1)
	if current > maxStreamConns {
		atomic.AddInt32(&s.streamConns, -1)
		http.Error(w, "too many stream connections", http.StatusServiceUnavailable)
		return
	}
	defer atomic.AddInt32(&s.streamConns, -1)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	subID, frames := s.Eng.Subscribe()
	defer s.Eng.Unsubscribe(subID)
	slog.Info("stream client connected", "sub_id", subID)

	if err := writeMessage(conn, streamMessage{Type: "grid", Data: s.grid()}); err != nil {
		return
	}

	// The reader only notices the close handshake.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case f, ok := <-frames:
			if !ok {
				return
			}
			if err := writeMessage(conn, streamMessage{Type: "frame", Data: f}); err != nil {
				slog.Info("stream client dropped", "sub_id", subID, "error", err)
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-gone:
			slog.Info("stream client disconnected", "sub_id", subID)
			return
		}
	}
}

func writeMessage(conn *websocket.Conn, msg streamMessage) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(msg)
}

func queryLimit(r *http.Request, def int) (int, error) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, errors.New("limit must be a non-negative integer")
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
