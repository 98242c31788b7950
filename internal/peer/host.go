package peer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

// Host accepts exactly one remote player over a websocket.
type Host struct {
	logger   *log.Logger
	upgrader websocket.Upgrader
	listener net.Listener
	srv      *http.Server

	mu       sync.Mutex
	conn     *Conn
	accepted chan *Conn
}

// NewHost creates a host that is not yet listening. Its Handler can be
// served by any http.Server.
func NewHost(logger *log.Logger) *Host {
	return &Host{
		logger: logger.WithPrefix("peer"),
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		accepted: make(chan *Conn, 1),
	}
}

// Listen starts serving on addr. The server stops when ctx is cancelled or
// Close is called.
func Listen(ctx context.Context, addr string, logger *log.Logger) (*Host, error) {
	h := NewHost(logger)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	h.listener = ln
	h.srv = &http.Server{
		Handler:           h.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := h.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.logger.Error("Server stopped", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		_ = h.Close()
	}()

	h.logger.Info("Waiting for a player", "addr", ln.Addr().String())
	return h, nil
}

// Handler returns the host's routes.
func (h *Host) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/ws", h.handleWebSocket)
	r.Get("/health", h.handleHealth)
	return r
}

// Addr returns the listening address, or "" when not listening.
func (h *Host) Addr() string {
	if h.listener == nil {
		return ""
	}
	return h.listener.Addr().String()
}

// Accept waits for the remote player to connect.
func (h *Host) Accept(ctx context.Context) (Transport, error) {
	select {
	case c := <-h.accepted:
		return c, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops the server and drops the connected player, if any.
func (h *Host) Close() error {
	h.mu.Lock()
	conn := h.conn
	h.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}

	if h.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (h *Host) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.conn != nil {
		h.logger.Warn("Refusing second player", "remote", r.RemoteAddr)
		http.Error(w, ErrPeerTaken.Error(), http.StatusConflict)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade connection", "error", err)
		return
	}

	h.conn = newConn(ws, h.logger)
	h.accepted <- h.conn
	h.logger.Info("Player connected", "remote", r.RemoteAddr)
}

func (h *Host) handleHealth(w http.ResponseWriter, _ *http.Request) {
	h.mu.Lock()
	connected := h.conn != nil
	h.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":    "ok",
		"connected": connected,
	})
}
