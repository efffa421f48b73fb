// Package chat defines the core entities of the ChatLine domain: visitors,
// messages, and the roster the operator console works from.
package chat

// Role identifies which side of the conversation a connection belongs to.
type Role string

const (
	RoleVisitor  Role = "visitor"
	RoleOperator Role = "operator"
)

// Sender is the persisted origin of a message. Operator-sent messages are
// stored and broadcast as "admin" to match the console and widget clients.
type Sender string

const (
	SenderVisitor Sender = "visitor"
	SenderAdmin   Sender = "admin"
)

// Kind is the payload type of a message. For image and audio the content
// field carries a reference path under /uploads, never raw bytes.
type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
	KindAudio Kind = "audio"
)

// ValidKind reports whether k is one of the supported message kinds.
func ValidKind(k Kind) bool {
	switch k {
	case KindText, KindImage, KindAudio:
		return true
	}
	return false
}

// Visitor is the durable identity of an anonymous chat participant. The id
// is chosen client-side (or generated at first connect) and persisted in the
// visitor's browser; it survives reconnects until an operator purge.
type Visitor struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	CreatedAt   int64  `json:"createdAt"` // unix ms
}

// Message is one persisted chat message. Immutable once stored; the id is
// assigned by the store and, per visitor, increases in arrival order.
type Message struct {
	ID        int64  `json:"id"`
	VisitorID string `json:"visitorId"`
	Sender    Sender `json:"sender"`
	Kind      Kind   `json:"kind"`
	Content   string `json:"content"`
	TS        int64  `json:"ts"` // unix ms
}

// RosterEntry is one row of the operator-facing visitor list: the visitor
// plus their most recent message, if any.
type RosterEntry struct {
	Visitor
	LastContent *string `json:"lastContent,omitempty"`
	LastTS      *int64  `json:"lastTs,omitempty"`
}
