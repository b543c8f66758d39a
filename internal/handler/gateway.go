/*
Package handler provides the HTTP entry points of the presence gateway.

This file defines the Gateway, which decides every inbound WebSocket upgrade: requests
for the real-time endpoint are rate limited, upgraded, and handed to the Dispatcher as a
new unauthenticated Connection; upgrade requests for any other path have their transport
terminated without a handshake.
*/
package handler

import (
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"skillswap/internal/app/chat"
	"skillswap/internal/configs"
	"skillswap/internal/pkg/errs"
	"skillswap/internal/pkg/limiter"
	"skillswap/internal/pkg/logx"
	"skillswap/internal/pkg/resp"
)

// Gateway accepts real-time upgrades and tracks the connections it created.
type Gateway struct {
	path           string
	sendBufferSize int

	upgrader   websocket.Upgrader
	limiter    *limiter.IPRateLimiter
	dispatcher *chat.Dispatcher

	// mu protects conns and closed.
	mu     sync.Mutex
	conns  map[*chat.Connection]struct{}
	closed bool

	// wg tracks running Serve loops so Shutdown can wait for them.
	wg sync.WaitGroup

	accepted atomic.Int64

	logger zerolog.Logger
}

// NewGateway constructs a Gateway for cfg.WSPath that registers identities in registry.
func NewGateway(registry *chat.Registry, cfg *configs.AppConfig) *Gateway {
	allowedOrigins := make(map[string]struct{}, len(cfg.AllowedOrigins))
	for _, origin := range cfg.AllowedOrigins {
		allowedOrigins[origin] = struct{}{}
	}

	g := &Gateway{
		path:           cfg.WSPath,
		sendBufferSize: cfg.SendBufferSize,
		limiter:        limiter.NewIPRateLimiter(rate.Limit(cfg.UpgradeRate), cfg.UpgradeBurst),
		dispatcher: chat.NewDispatcher(registry, chat.DispatcherConfig{
			AuthMode:      cfg.AuthMode,
			JWTSecret:     cfg.JWTSecret,
			PongWait:      cfg.PongWait,
			MaxFrameBytes: cfg.MaxFrameBytes,
		}),
		conns:  make(map[*chat.Connection]struct{}),
		logger: logx.Component("Gateway"),
	}

	g.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if cfg.IsDevelopment() {
				return true
			}

			origin := r.Header.Get("Origin")
			if _, ok := allowedOrigins[origin]; ok {
				return true
			}

			g.logger.Warn().Str("origin", origin).Msg("WebSocket connection rejected: Origin not allowed.")
			return false
		},
	}

	return g
}

// Path returns the real-time endpoint path.
func (g *Gateway) Path() string {
	return g.path
}

// Middleware terminates upgrade requests addressed to any path other than the
// real-time endpoint. Other requests pass through untouched.
func (g *Gateway) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if websocket.IsWebSocketUpgrade(r) && r.URL.Path != g.path {
			g.terminate(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// terminate closes the underlying transport without writing a handshake or response.
func (g *Gateway) terminate(w http.ResponseWriter, r *http.Request) {
	g.logger.Warn().
		Str("path", r.URL.Path).
		Str("remote_ip", limiter.ClientIP(r)).
		Msg("Upgrade rejected: not the real-time endpoint. Terminating transport.")

	hj, ok := w.(http.Hijacker)
	if !ok {
		// net/http drops the connection without a response for this sentinel.
		panic(http.ErrAbortHandler)
	}

	netConn, _, err := hj.Hijack()
	if err != nil {
		g.logger.Error().Err(err).Msg("Failed to hijack rejected upgrade")
		panic(http.ErrAbortHandler)
	}

	if err := netConn.Close(); err != nil {
		g.logger.Debug().Err(err).Msg("Error closing rejected transport")
	}
}

// ServeWS upgrades the request and runs the resulting Connection until it closes.
func (g *Gateway) ServeWS(w http.ResponseWriter, r *http.Request) {
	if !g.limiter.Allow(r) {
		g.logger.Warn().Str("ip", limiter.ClientIP(r)).Msg("WebSocket connection rejected: Rate limit exceeded.")
		resp.RespondError(w, r, errs.NewError(errs.ErrRateLimitExceeded))
		return
	}

	if g.isClosed() {
		resp.RespondError(w, r, errs.NewError(errs.ErrShuttingDown))
		return
	}

	wsConn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already written an HTTP error response.
		g.logger.Warn().Err(err).Msg("Failed to upgrade connection to WebSocket")
		return
	}

	g.accepted.Add(1)

	conn := chat.NewConnection(wsConn, g.sendBufferSize)
	if !g.track(conn) {
		conn.Close()
		return
	}
	defer g.untrack(conn)

	g.logger.Info().Str("conn_id", conn.ID()).Msg("WebSocket connection established.")

	g.dispatcher.Serve(conn)
}

func (g *Gateway) isClosed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.closed
}

func (g *Gateway) track(conn *chat.Connection) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return false
	}
	g.conns[conn] = struct{}{}
	g.wg.Add(1)
	return true
}

func (g *Gateway) untrack(conn *chat.Connection) {
	g.mu.Lock()
	delete(g.conns, conn)
	g.mu.Unlock()
	g.wg.Done()
}

// ActiveConnections returns the number of live connections, authenticated or not.
func (g *Gateway) ActiveConnections() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.conns)
}

// Accepted returns how many upgrades have produced a Connection since start.
func (g *Gateway) Accepted() int64 {
	return g.accepted.Load()
}

// Shutdown stops accepting upgrades, closes every live connection, and waits for
// their loops to finish cleanup.
func (g *Gateway) Shutdown() {
	g.logger.Info().Msg("Shutting down Gateway...")

	g.mu.Lock()
	g.closed = true
	conns := make([]*chat.Connection, 0, len(g.conns))
	for c := range g.conns {
		conns = append(conns, c)
	}
	g.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}

	g.wg.Wait()
	g.limiter.Stop()

	g.logger.Info().Int("closed_connections", len(conns)).Msg("Gateway shutdown complete.")
}
