package chat

import "encoding/json"

// Inbound event kinds.
const (
	EventMessageSend    = "message.send"
	EventHistoryRequest = "history.request"
	EventRosterRequest  = "roster.request"
	EventVisitorPurge   = "visitor.purge"
)

// Outbound event kinds.
const (
	EventReady           = "ready"
	EventMessage         = "message"
	EventHistoryResponse = "history.response"
	EventRosterResponse  = "roster.response"
	EventPurgeConfirmed  = "purge.confirmed"
	EventError           = "error"
)

// Envelope is the inbound wire frame. Dispatch is on Type; unknown top-level
// fields are ignored, unknown types are dropped.
type Envelope struct {
	Type     string          `json:"type"`
	ClientID string          `json:"clientId,omitempty"`
	Payload  *MessagePayload `json:"payload,omitempty"`
}

// MessagePayload carries the body of a message.send event.
type MessagePayload struct {
	Kind    Kind   `json:"kind"`
	Content string `json:"content"`
}

// ParseEnvelope decodes an inbound frame. A nil result with nil error never
// occurs; callers treat any error as a malformed event and drop it.
func ParseEnvelope(raw []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

// ReadyEvent confirms a session reached Active and echoes the visitor id the
// client should persist for reconnects.
type ReadyEvent struct {
	Type     string `json:"type"`
	Role     Role   `json:"role"`
	ClientID string `json:"clientId,omitempty"`
}

// MessageEvent is the live broadcast form of a persisted message.
type MessageEvent struct {
	Type      string `json:"type"`
	ID        int64  `json:"id"`
	From      Sender `json:"from"`
	VisitorID string `json:"visitorId"`
	Kind      Kind   `json:"kind"`
	Content   string `json:"content"`
	TS        int64  `json:"ts"`
}

// HistoryResponseEvent returns one visitor's full message log to a requester.
type HistoryResponseEvent struct {
	Type     string     `json:"type"`
	ClientID string     `json:"clientId"`
	Messages []*Message `json:"messages"`
}

// RosterResponseEvent returns the visitor roster to an operator.
type RosterResponseEvent struct {
	Type     string         `json:"type"`
	Visitors []*RosterEntry `json:"visitors"`
}

// PurgeConfirmedEvent tells operator consoles a visitor was purged.
type PurgeConfirmedEvent struct {
	Type     string `json:"type"`
	ClientID string `json:"clientId"`
}

// ErrorEvent surfaces a failure to a single connection.
type ErrorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// NewMessageEvent builds the broadcast envelope for a persisted message.
func NewMessageEvent(m *Message) MessageEvent {
	return MessageEvent{
		Type:      EventMessage,
		ID:        m.ID,
		From:      m.Sender,
		VisitorID: m.VisitorID,
		Kind:      m.Kind,
		Content:   m.Content,
		TS:        m.TS,
	}
}
