package messaging

import (
	"sync"

	"github.com/AtRiskMedia/chatline-go/internal/domain/chat"
	"github.com/AtRiskMedia/chatline-go/internal/infrastructure/observability/logging"
)

// Registry is the authoritative map from live identity to transport:
// visitorId -> session set, plus the operator set. One mutex serializes all
// mutation and fan-out; the maps are small and correctness, not contention,
// is the concern here. Constructed once per process and injected everywhere
// it is needed.
type Registry struct {
	mu        sync.Mutex
	visitors  map[string]map[*Session]struct{}
	operators map[*Session]struct{}
	logger    *logging.ChanneledLogger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *logging.ChanneledLogger) *Registry {
	return &Registry{
		visitors:  make(map[string]map[*Session]struct{}),
		operators: make(map[*Session]struct{}),
		logger:    logger,
	}
}

// Register inserts the session into its bucket. A session registers at most
// once (map identity on the session pointer); registering also binds the
// session's release hook so Close unregisters exactly once.
func (r *Registry) Register(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s.bindRelease(r.Unregister)

	switch s.Role {
	case chat.RoleOperator:
		r.operators[s] = struct{}{}
		r.logger.Websocket().Info("Operator session registered", "sessionId", s.ID, "operators", len(r.operators))
	default:
		bucket, ok := r.visitors[s.VisitorID]
		if !ok {
			bucket = make(map[*Session]struct{})
			r.visitors[s.VisitorID] = bucket
		}
		bucket[s] = struct{}{}
		r.logger.Websocket().Info("Visitor session registered", "sessionId", s.ID, "visitorId", s.VisitorID, "connections", len(bucket))
	}
}

// Unregister removes the session from its bucket. Idempotent; an empty
// visitor bucket is deleted so registry memory tracks live connections, not
// historical visitors.
func (r *Registry) Unregister(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch s.Role {
	case chat.RoleOperator:
		if _, ok := r.operators[s]; ok {
			delete(r.operators, s)
			r.logger.Websocket().Info("Operator session unregistered", "sessionId", s.ID, "operators", len(r.operators))
		}
	default:
		if bucket, ok := r.visitors[s.VisitorID]; ok {
			if _, ok := bucket[s]; ok {
				delete(bucket, s)
				if len(bucket) == 0 {
					delete(r.visitors, s.VisitorID)
				}
				r.logger.Websocket().Info("Visitor session unregistered", "sessionId", s.ID, "visitorId", s.VisitorID)
			}
		}
	}
}

// FanOutToVisitor delivers to every live connection for the visitor. A
// no-op when none are live: persistence, not delivery, is the durability
// guarantee. A drop on one session never aborts delivery to the rest.
func (r *Registry) FanOutToVisitor(visitorID string, payload []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for s := range r.visitors[visitorID] {
		if !s.Deliver(payload) {
			r.logger.Websocket().Warn("Dropped payload to visitor session", "sessionId", s.ID, "visitorId", visitorID)
		}
	}
}

// FanOutToOperators delivers to every live operator connection.
func (r *Registry) FanOutToOperators(payload []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for s := range r.operators {
		if !s.Deliver(payload) {
			r.logger.Websocket().Warn("Dropped payload to operator session", "sessionId", s.ID)
		}
	}
}

// OperatorCount returns the number of live operator connections.
func (r *Registry) OperatorCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.operators)
}

// VisitorConnections returns the number of live connections for a visitor.
func (r *Registry) VisitorConnections(visitorID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.visitors[visitorID])
}
