package monitor

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/yaap/device-oneplus-sm8150-common/internal/host"
	"github.com/yaap/device-oneplus-sm8150-common/internal/trace"
)

// Feed is the reading stream the monitor serves.
type Feed interface {
	Subscribe() (string, <-chan host.Reading)
	Unsubscribe(id string)
	Recent(n int) []host.Reading
	Last() (host.Reading, bool)
	Stats() host.Stats
}

// HealthFunc reports the health of a dependency; nil means healthy.
type HealthFunc func(ctx context.Context) error

// rateLimiter tracks message timestamps using a sliding window.
type rateLimiter struct {
	timestamps []time.Time
	mu         sync.Mutex
}

// allow checks if a message is allowed and records the timestamp if so.
func (r *rateLimiter) allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-RateLimitWindow)

	valid := r.timestamps[:0]
	for _, t := range r.timestamps {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	r.timestamps = valid

	if len(r.timestamps) >= RateLimitMessages {
		return false
	}

	r.timestamps = append(r.timestamps, now)
	return true
}

// Server handles HTTP and WebSocket connections.
type Server struct {
	feed   Feed
	health HealthFunc

	mu      sync.RWMutex
	clients int
}

// New creates a monitor server. health may be nil.
func New(feed Feed, health HealthFunc) *Server {
	return &Server{feed: feed, health: health}
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/ws", s.handleWebSocket)

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /api/readings", s.handleReadings)
	mux.HandleFunc("GET /api/stats", s.handleStats)

	return corsMiddleware(trace.Middleware(mux))
}

// Clients returns the number of connected WebSocket clients.
func (s *Server) Clients() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clients
}

// ListenAndServe serves the monitor on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: ReadHeaderTimeout,
	}
	stop := context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("monitor shutdown error", "error", err)
		}
	})
	defer stop()

	slog.Info("monitor listening", "addr", addr)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("websocket accept error", "error", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	id, readings := s.feed.Subscribe()
	defer s.feed.Unsubscribe(id)

	s.mu.Lock()
	s.clients++
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.clients--
		s.mu.Unlock()
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	log := slog.With("client", id)
	log.Info("websocket connected", "remote", r.RemoteAddr)

	hello := HelloMessage{Type: "hello", ID: id, Readings: newReadingMessages(s.feed.Recent(HistoryOnConnect))}
	if err := s.write(ctx, conn, hello); err != nil {
		log.Debug("websocket write error", "error", err)
		return
	}

	go func() {
		defer cancel()
		s.readLoop(ctx, conn, log)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case reading, ok := <-readings:
			if !ok {
				return
			}
			if err := s.write(ctx, conn, newReadingMessage(reading)); err != nil {
				log.Debug("websocket write error", "error", err)
				return
			}
		}
	}
}

// readLoop answers client requests until the connection fails.
func (s *Server) readLoop(ctx context.Context, conn *websocket.Conn, log *slog.Logger) {
	rl := &rateLimiter{}
	for {
		var msg json.RawMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			log.Debug("websocket read error", "error", err)
			return
		}

		if !rl.allow() {
			log.Warn("rate limit exceeded")
			_ = s.write(ctx, conn, RateLimitedMessage{Type: "error", Message: "rate limit exceeded"})
			continue
		}

		var base Message
		if err := json.Unmarshal(msg, &base); err != nil {
			continue
		}

		switch base.Type {
		case "stats":
			_ = s.write(ctx, conn, StatsMessage{Type: "stats", Stats: s.feed.Stats()})
		case "history":
			_ = s.write(ctx, conn, HelloMessage{Type: "history", Readings: newReadingMessages(s.feed.Recent(MaxRecent))})
		}
	}
}

func (s *Server) write(ctx context.Context, conn *websocket.Conn, v any) error {
	ctx, cancel := context.WithTimeout(ctx, WriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, v)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"status": "ok", "stats": s.feed.Stats(), "clients": s.Clients()}
	if last, ok := s.feed.Last(); ok {
		resp["last"] = newReadingMessage(last)
	}
	code := http.StatusOK

	if s.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), HealthTimeout)
		defer cancel()
		if err := s.health(ctx); err != nil {
			resp["status"] = "degraded"
			resp["error"] = err.Error()
			code = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, code, resp)
}

func (s *Server) handleReadings(w http.ResponseWriter, r *http.Request) {
	n := DefaultRecent
	if v := r.URL.Query().Get("n"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "n must be a positive integer"})
			return
		}
		n = min(parsed, MaxRecent)
	}
	writeJSON(w, http.StatusOK, newReadingMessages(s.feed.Recent(n)))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.feed.Stats())
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
