package chat

import (
	"time"

	"github.com/AtRiskMedia/chatline-go/internal/domain/chat"
	"github.com/AtRiskMedia/chatline-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/chatline-go/internal/infrastructure/persistence/database"
	"github.com/AtRiskMedia/chatline-go/pkg/config"
)

// SQLMessageRepository is the SQL-based implementation of the MessageRepository.
type SQLMessageRepository struct {
	db     *database.DB
	logger *logging.ChanneledLogger
}

// NewSQLMessageRepository creates a new instance of the repository.
func NewSQLMessageRepository(db *database.DB, logger *logging.ChanneledLogger) *SQLMessageRepository {
	return &SQLMessageRepository{
		db:     db,
		logger: logger,
	}
}

// Store persists a message and returns the store-assigned id. The insert has
// committed before this returns; the router relies on that for its
// durability-before-broadcast guarantee.
func (r *SQLMessageRepository) Store(m *chat.Message) (int64, error) {
	const query = `
		INSERT INTO messages (visitor_id, sender, kind, content, ts)
		VALUES (?, ?, ?, ?, ?)`

	start := time.Now()
	r.logger.Database().Debug("Executing message insert", "visitorId", m.VisitorID, "kind", m.Kind)

	res, err := r.db.Exec(query, m.VisitorID, string(m.Sender), string(m.Kind), m.Content, m.TS)
	if err != nil {
		r.logger.Database().Error("Message insert failed", "error", err.Error(), "visitorId", m.VisitorID)
		return 0, err
	}

	id, err := res.LastInsertId()
	if err != nil {
		r.logger.Database().Error("Message id lookup failed", "error", err.Error(), "visitorId", m.VisitorID)
		return 0, err
	}

	duration := time.Since(start)
	r.logger.Database().Debug("Message insert completed", "id", id, "visitorId", m.VisitorID, "duration", duration)
	if duration > config.SlowQueryThreshold {
		r.logger.LogSlowQuery(query, duration)
	}
	return id, nil
}

// ListByVisitor returns a visitor's messages ordered by id ascending, which
// for a single visitor matches arrival order.
func (r *SQLMessageRepository) ListByVisitor(visitorID string) ([]*chat.Message, error) {
	const query = `
		SELECT id, visitor_id, sender, kind, content, ts
		FROM messages
		WHERE visitor_id = ?
		ORDER BY id ASC`

	start := time.Now()
	r.logger.Database().Debug("Loading message history", "visitorId", visitorID)

	rows, err := r.db.Query(query, visitorID)
	if err != nil {
		r.logger.Database().Error("History query failed", "error", err.Error(), "visitorId", visitorID)
		return nil, err
	}
	defer rows.Close()

	messages := make([]*chat.Message, 0)
	for rows.Next() {
		var m chat.Message
		var sender, kind string
		if err := rows.Scan(&m.ID, &m.VisitorID, &sender, &kind, &m.Content, &m.TS); err != nil {
			r.logger.Database().Error("History row scan failed", "error", err.Error(), "visitorId", visitorID)
			return nil, err
		}
		m.Sender = chat.Sender(sender)
		m.Kind = chat.Kind(kind)
		messages = append(messages, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	duration := time.Since(start)
	r.logger.Database().Debug("History loaded", "visitorId", visitorID, "messages", len(messages), "duration", duration)
	if duration > config.SlowQueryThreshold {
		r.logger.LogSlowQuery(query, duration)
	}
	return messages, nil
}
