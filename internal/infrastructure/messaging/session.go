// Package messaging provides the live-connection registry and the
// per-socket session objects it tracks.
package messaging

import (
	"sync"

	"github.com/AtRiskMedia/chatline-go/internal/domain/chat"
)

// Session is the in-process state of one live connection: its role, the
// visitor identity it speaks for (visitors only), and its send capability.
// Sessions are ephemeral and never persisted.
//
// The send capability is a buffered channel drained by the connection's
// write pump. Deliver never blocks: a full or closed session drops the
// payload, and the transport's own disconnect handling eventually
// unregisters it.
type Session struct {
	ID        string
	Role      chat.Role
	VisitorID string // empty for operators

	send    chan []byte
	closed  chan struct{}
	once    sync.Once
	release func(*Session)
}

// NewSession creates a session in the Connecting state. buffer sizes the
// outbound queue between fan-out and the write pump.
func NewSession(id string, role chat.Role, visitorID string, buffer int) *Session {
	if buffer < 1 {
		buffer = 1
	}
	return &Session{
		ID:        id,
		Role:      role,
		VisitorID: visitorID,
		send:      make(chan []byte, buffer),
		closed:    make(chan struct{}),
	}
}

// Deliver queues a payload for the write pump. It reports false when the
// payload was dropped (session closed or buffer full); callers never treat
// that as an error.
func (s *Session) Deliver(payload []byte) bool {
	select {
	case <-s.closed:
		return false
	default:
	}
	select {
	case s.send <- payload:
		return true
	default:
		return false
	}
}

// Outbox is read by the write pump.
func (s *Session) Outbox() <-chan []byte { return s.send }

// Done is closed when the session reaches its terminal state.
func (s *Session) Done() <-chan struct{} { return s.closed }

// Close moves the session to Closed. Idempotent: the registry release hook
// runs exactly once no matter how many teardown paths race here.
func (s *Session) Close() {
	s.once.Do(func() {
		close(s.closed)
		if s.release != nil {
			s.release(s)
		}
	})
}

// bindRelease is set by the registry at registration so that Close always
// releases the membership it acquired, on every teardown path.
func (s *Session) bindRelease(f func(*Session)) {
	s.release = f
}
