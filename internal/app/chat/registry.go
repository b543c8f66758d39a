/*
Package chat contains the core logic for the real-time presence layer: live connections,
the user presence registry, and the routing of chat events between users.

This file defines the Registry, the process-wide presence map from user identifier
to the set of that user's open connections.
*/
package chat

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"skillswap/internal/pkg/logx"
)

// Registry maps user identifiers to their live connections.
// No user entry is ever left with an empty set.
type Registry struct {
	// mu protects concurrent access to the users map.
	mu sync.RWMutex

	users map[string]map[*Connection]struct{}

	// structured logger with Registry context.
	logger zerolog.Logger
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		users:  make(map[string]map[*Connection]struct{}),
		logger: logx.Component("Registry"),
	}
}

// Register adds conn to the set for userID. Registering a member again is a no-op.
func (r *Registry) Register(userID string, conn *Connection) {
	if userID == "" || conn == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.users[userID]
	if !ok {
		set = make(map[*Connection]struct{})
		r.users[userID] = set
	}
	set[conn] = struct{}{}

	r.logger.Debug().
		Str("user_id", userID).
		Str("conn_id", conn.ID()).
		Int("user_connections", len(set)).
		Msg("Connection registered.")
}

// Unregister removes conn from the set for userID and drops the entry once empty.
// Unknown users or connections are ignored.
func (r *Registry) Unregister(userID string, conn *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.users[userID]
	if !ok {
		return
	}
	if _, member := set[conn]; !member {
		return
	}

	delete(set, conn)
	if len(set) == 0 {
		delete(r.users, userID)
	}

	r.logger.Debug().
		Str("user_id", userID).
		Str("conn_id", conn.ID()).
		Int("user_connections", len(set)).
		Msg("Connection unregistered.")
}

// ConnectionsFor returns a snapshot of the connections registered for userID.
func (r *Registry) ConnectionsFor(userID string) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.users[userID]
	conns := make([]*Connection, 0, len(set))
	for c := range set {
		conns = append(conns, c)
	}
	return conns
}

// Deliver pushes frame to every open connection of userID and returns how many accepted it.
// Connections that are closed or closing are skipped.
func (r *Registry) Deliver(userID string, frame []byte) int {
	delivered := 0
	for _, c := range r.ConnectionsFor(userID) {
		if c.Send(frame) {
			delivered++
		}
	}
	return delivered
}

// DeliverJSON marshals v once and delivers it to every open connection of userID.
func (r *Registry) DeliverJSON(userID string, v any) (int, error) {
	frame, err := json.Marshal(v)
	if err != nil {
		return 0, err
	}
	return r.Deliver(userID, frame), nil
}

// Stats returns the number of present users and of registered connections.
func (r *Registry) Stats() (users, connections int) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, set := range r.users {
		connections += len(set)
	}
	return len(r.users), connections
}

// Shutdown closes every registered connection and empties the registry.
func (r *Registry) Shutdown() {
	r.logger.Info().Msg("Shutting down Registry...")

	r.mu.Lock()
	var conns []*Connection
	for _, set := range r.users {
		for c := range set {
			conns = append(conns, c)
		}
	}
	r.users = make(map[string]map[*Connection]struct{})
	r.mu.Unlock()

	for _, c := range conns {
		c.closeWith(websocket.CloseGoingAway, "server shutting down")
	}

	r.logger.Info().Int("closed_connections", len(conns)).Msg("Registry shutdown complete.")
}
