package chat

// VisitorRepository is the persistence contract for visitor identities.
type VisitorRepository interface {
	// FindByID returns the visitor or (nil, nil) when absent.
	FindByID(id string) (*Visitor, error)
	Store(v *Visitor) error
	UpdateName(id, displayName string) error
	// ListWithLastMessage returns the roster ordered by most recent activity
	// descending; visitors with no messages sort after those with messages,
	// then by creation time descending.
	ListWithLastMessage() ([]*RosterEntry, error)
	// DeleteWithMessages removes the visitor and all their messages in one
	// transaction.
	DeleteWithMessages(id string) error
}

// MessageRepository is the persistence contract for the message log.
type MessageRepository interface {
	// Store persists the message and returns the store-assigned id. The
	// message must be durable before Store returns.
	Store(m *Message) (int64, error)
	// ListByVisitor returns the visitor's messages ordered by id ascending.
	ListByVisitor(visitorID string) ([]*Message, error)
}
