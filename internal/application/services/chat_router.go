package services

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/AtRiskMedia/chatline-go/internal/domain/chat"
	"github.com/AtRiskMedia/chatline-go/internal/infrastructure/messaging"
	"github.com/AtRiskMedia/chatline-go/internal/infrastructure/observability/logging"
)

// ChatRouter validates and dispatches inbound events. It owns the only
// serialization point between persistence and delivery: for a given visitor,
// a message is durable in the store before any session sees it, and the
// store-assigned ids reflect arrival order. Independent visitors commit and
// broadcast in any relative order.
type ChatRouter struct {
	registry *messaging.Registry
	visitors chat.VisitorRepository
	messages chat.MessageRepository
	notifier *NotifyService // optional, nil when alerts are not configured
	logger   *logging.ChanneledLogger

	mu           sync.Mutex
	visitorLocks map[string]*sync.Mutex
}

// NewChatRouter wires the router to its collaborators. notifier may be nil.
func NewChatRouter(
	registry *messaging.Registry,
	visitors chat.VisitorRepository,
	messages chat.MessageRepository,
	notifier *NotifyService,
	logger *logging.ChanneledLogger,
) *ChatRouter {
	return &ChatRouter{
		registry:     registry,
		visitors:     visitors,
		messages:     messages,
		notifier:     notifier,
		logger:       logger,
		visitorLocks: make(map[string]*sync.Mutex),
	}
}

// lockFor returns the per-visitor mutex that orders persist+fan-out for one
// visitor identity.
func (r *ChatRouter) lockFor(visitorID string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	lock, ok := r.visitorLocks[visitorID]
	if !ok {
		lock = &sync.Mutex{}
		r.visitorLocks[visitorID] = lock
	}
	return lock
}

// EnsureVisitor creates the visitor row on first connect and refreshes the
// display name on reconnects.
func (r *ChatRouter) EnsureVisitor(id, displayName string) error {
	existing, err := r.visitors.FindByID(id)
	if err != nil {
		return fmt.Errorf("%w: %v", chat.ErrPersistence, err)
	}
	if existing == nil {
		return r.visitors.Store(&chat.Visitor{
			ID:          id,
			DisplayName: displayName,
			CreatedAt:   time.Now().UnixMilli(),
		})
	}
	if displayName != "" && displayName != existing.DisplayName {
		return r.visitors.UpdateName(id, displayName)
	}
	return nil
}

// HandleEvent dispatches one inbound frame from a session. Malformed events
// (unparseable payload, unknown kind, missing required field, wrong role) are
// dropped without surfacing an error; the session stays open.
func (r *ChatRouter) HandleEvent(sess *messaging.Session, raw []byte) {
	env, err := chat.ParseEnvelope(raw)
	if err != nil {
		r.logger.Chat().Debug("Dropped unparseable event", "sessionId", sess.ID, "error", err.Error())
		return
	}

	switch env.Type {
	case chat.EventMessageSend:
		r.handleMessageSend(sess, env)
	case chat.EventHistoryRequest:
		r.handleHistoryRequest(sess, env)
	case chat.EventRosterRequest:
		if sess.Role != chat.RoleOperator {
			r.drop(sess, env.Type, "operator-only event")
			return
		}
		r.handleRosterRequest(sess)
	case chat.EventVisitorPurge:
		if sess.Role != chat.RoleOperator || env.ClientID == "" {
			r.drop(sess, env.Type, "operator-only event with target visitor")
			return
		}
		if err := r.PurgeVisitor(env.ClientID); err != nil {
			r.deliverError(sess, "purge failed")
		}
	default:
		r.drop(sess, env.Type, "unknown event kind")
	}
}

func (r *ChatRouter) drop(sess *messaging.Session, eventType, reason string) {
	r.logger.Chat().Debug("Dropped event", "sessionId", sess.ID, "type", eventType, "reason", reason)
}

func (r *ChatRouter) handleMessageSend(sess *messaging.Session, env *chat.Envelope) {
	if env.Payload == nil || env.Payload.Content == "" || !chat.ValidKind(env.Payload.Kind) {
		r.drop(sess, env.Type, "missing or invalid payload")
		return
	}

	var visitorID string
	var sender chat.Sender
	switch sess.Role {
	case chat.RoleOperator:
		if env.ClientID == "" {
			r.drop(sess, env.Type, "missing target visitor")
			return
		}
		visitorID = env.ClientID
		sender = chat.SenderAdmin
	default:
		visitorID = sess.VisitorID
		sender = chat.SenderVisitor
	}

	if _, err := r.send(sess, visitorID, sender, env.Payload.Kind, env.Payload.Content); err != nil {
		r.logger.Chat().Error("Message send failed", "sessionId", sess.ID, "visitorId", visitorID, "error", err.Error())
	}
}

// Ingest routes a message that arrived outside the websocket (media uploads,
// transcripts). Same persistence and fan-out path as message.send; failures
// come back to the HTTP caller instead of an error event.
func (r *ChatRouter) Ingest(visitorID string, sender chat.Sender, kind chat.Kind, content string) (*chat.Message, error) {
	if content == "" || !chat.ValidKind(kind) {
		return nil, chat.ErrMalformedEvent
	}
	return r.send(nil, visitorID, sender, kind, content)
}

// send persists then fans out, holding the visitor's lock across both so the
// second of two near-simultaneous sends is never visible before the first is
// durable. origin is nil for HTTP-ingested messages.
func (r *ChatRouter) send(origin *messaging.Session, visitorID string, sender chat.Sender, kind chat.Kind, content string) (*chat.Message, error) {
	lock := r.lockFor(visitorID)
	lock.Lock()
	defer lock.Unlock()

	msg := &chat.Message{
		VisitorID: visitorID,
		Sender:    sender,
		Kind:      kind,
		Content:   content,
		TS:        time.Now().UnixMilli(),
	}

	id, err := r.messages.Store(msg)
	if err != nil {
		if origin != nil {
			r.deliverError(origin, "message could not be saved")
		}
		return nil, fmt.Errorf("%w: %v", chat.ErrPersistence, err)
	}
	msg.ID = id

	payload, err := json.Marshal(chat.NewMessageEvent(msg))
	if err != nil {
		return nil, err
	}

	// Visitor-sent: operators plus the sender's own connection set (other
	// tabs). Operator-sent: the target visitor plus every operator console.
	r.registry.FanOutToVisitor(visitorID, payload)
	r.registry.FanOutToOperators(payload)

	if sender == chat.SenderVisitor && r.notifier != nil && r.registry.OperatorCount() == 0 {
		r.notifier.VisitorMessage(visitorID, content)
	}

	return msg, nil
}

func (r *ChatRouter) handleHistoryRequest(sess *messaging.Session, env *chat.Envelope) {
	var visitorID string
	switch sess.Role {
	case chat.RoleOperator:
		if env.ClientID == "" {
			r.drop(sess, env.Type, "missing target visitor")
			return
		}
		visitorID = env.ClientID
	default:
		visitorID = sess.VisitorID
	}

	messages, err := r.messages.ListByVisitor(visitorID)
	if err != nil {
		r.deliverError(sess, "history unavailable")
		return
	}

	r.deliverJSON(sess, chat.HistoryResponseEvent{
		Type:     chat.EventHistoryResponse,
		ClientID: visitorID,
		Messages: messages,
	})
}

func (r *ChatRouter) handleRosterRequest(sess *messaging.Session) {
	entries, err := r.visitors.ListWithLastMessage()
	if err != nil {
		r.deliverError(sess, "roster unavailable")
		return
	}

	r.deliverJSON(sess, chat.RosterResponseEvent{
		Type:     chat.EventRosterResponse,
		Visitors: entries,
	})
}

// PurgeVisitor deletes a visitor and their full history, then confirms to all
// operator consoles. Live sockets for the visitor are not force-closed; they
// keep operating statelessly and a reconnect creates a fresh identity.
func (r *ChatRouter) PurgeVisitor(visitorID string) error {
	lock := r.lockFor(visitorID)
	lock.Lock()
	defer lock.Unlock()

	if err := r.visitors.DeleteWithMessages(visitorID); err != nil {
		return fmt.Errorf("%w: %v", chat.ErrPersistence, err)
	}

	payload, err := json.Marshal(chat.PurgeConfirmedEvent{
		Type:     chat.EventPurgeConfirmed,
		ClientID: visitorID,
	})
	if err != nil {
		return err
	}
	r.registry.FanOutToOperators(payload)

	r.logger.Chat().Info("Visitor purged", "visitorId", visitorID)
	return nil
}

func (r *ChatRouter) deliverJSON(sess *messaging.Session, event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		r.logger.Chat().Error("Failed to marshal event", "sessionId", sess.ID, "error", err.Error())
		return
	}
	sess.Deliver(payload)
}

func (r *ChatRouter) deliverError(sess *messaging.Session, message string) {
	r.deliverJSON(sess, chat.ErrorEvent{Type: chat.EventError, Message: message})
}
