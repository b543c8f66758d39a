/*
Package randx provides generators for unique identifiers.

It is used to tag every live connection with a random identifier that appears in logs,
so the several connections a single user may hold can be told apart.
*/
package randx

import (
	"strings"

	"github.com/google/uuid"
)

// ConnectionIDPrefix is prepended to every generated connection identifier.
const ConnectionIDPrefix = "conn_"

// ConnectionID generates a random UUID v4 based connection identifier.
func ConnectionID() string {
	return ConnectionIDPrefix + uuid.New().String()
}

// IsConnectionID reports whether s has the shape produced by ConnectionID.
func IsConnectionID(s string) bool {
	raw, ok := strings.CutPrefix(s, ConnectionIDPrefix)
	if !ok {
		return false
	}
	_, err := uuid.Parse(raw)
	return err == nil
}
