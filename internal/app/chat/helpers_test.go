package chat

import (
	"testing"
)

// newTestConn returns a Connection with no transport; frames stay in its queue.
func newTestConn(buffer int) *Connection {
	return NewConnection(nil, buffer)
}

// nextFrame pops one queued frame or fails the test.
func nextFrame(t *testing.T, c *Connection) string {
	t.Helper()
	select {
	case f := <-c.send:
		return string(f)
	default:
		t.Fatalf("expected a queued frame on %s", c.ID())
		return ""
	}
}

// assertNoFrame fails if any frame is queued on c.
func assertNoFrame(t *testing.T, c *Connection) {
	t.Helper()
	select {
	case f := <-c.send:
		t.Fatalf("unexpected frame on %s: %s", c.ID(), f)
	default:
	}
}
