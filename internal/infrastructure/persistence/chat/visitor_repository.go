// Package chat provides the concrete SQL-based implementations of
// the chat domain repositories (Visitor, Message).
package chat

import (
	"database/sql"
	"time"

	"github.com/AtRiskMedia/chatline-go/internal/domain/chat"
	"github.com/AtRiskMedia/chatline-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/chatline-go/internal/infrastructure/persistence/database"
	"github.com/AtRiskMedia/chatline-go/pkg/config"
)

// SQLVisitorRepository is the SQL-based implementation of the VisitorRepository.
type SQLVisitorRepository struct {
	db     *database.DB
	logger *logging.ChanneledLogger
}

// NewSQLVisitorRepository creates a new instance of the repository.
func NewSQLVisitorRepository(db *database.DB, logger *logging.ChanneledLogger) *SQLVisitorRepository {
	return &SQLVisitorRepository{
		db:     db,
		logger: logger,
	}
}

// FindByID retrieves a Visitor by their unique identifier.
func (r *SQLVisitorRepository) FindByID(id string) (*chat.Visitor, error) {
	const query = `
		SELECT id, display_name, created_at
		FROM visitors
		WHERE id = ?`

	start := time.Now()
	r.logger.Database().Debug("Loading visitor by ID", "id", id)

	var visitor chat.Visitor
	var displayName sql.NullString
	err := r.db.QueryRow(query, id).Scan(&visitor.ID, &displayName, &visitor.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			r.logger.Database().Debug("Visitor not found by ID", "id", id)
			return nil, nil
		}
		r.logger.Database().Error("Failed to load visitor by ID", "error", err.Error(), "id", id)
		return nil, err
	}
	if displayName.Valid {
		visitor.DisplayName = displayName.String
	}

	duration := time.Since(start)
	if duration > config.SlowQueryThreshold {
		r.logger.LogSlowQuery(query, duration)
	}
	return &visitor, nil
}

// Store saves a new Visitor to the database.
func (r *SQLVisitorRepository) Store(v *chat.Visitor) error {
	const query = `
		INSERT INTO visitors (id, display_name, created_at)
		VALUES (?, ?, ?)`

	start := time.Now()
	r.logger.Database().Debug("Executing visitor insert", "id", v.ID)

	_, err := r.db.Exec(query, v.ID, v.DisplayName, v.CreatedAt)
	if err != nil {
		r.logger.Database().Error("Visitor insert failed", "error", err.Error(), "id", v.ID)
		return err
	}

	r.logger.Database().Info("Visitor insert completed", "id", v.ID, "duration", time.Since(start))
	duration := time.Since(start)
	if duration > config.SlowQueryThreshold {
		r.logger.LogSlowQuery(query, duration)
	}
	return nil
}

// UpdateName refreshes the display name supplied on a reconnect.
func (r *SQLVisitorRepository) UpdateName(id, displayName string) error {
	const query = `UPDATE visitors SET display_name = ? WHERE id = ?`

	start := time.Now()
	_, err := r.db.Exec(query, displayName, id)
	if err != nil {
		r.logger.Database().Error("Visitor name update failed", "error", err.Error(), "id", id)
		return err
	}

	duration := time.Since(start)
	if duration > config.SlowQueryThreshold {
		r.logger.LogSlowQuery(query, duration)
	}
	return nil
}

// ListWithLastMessage returns the operator roster. Ordering is explicit:
// most recent activity first, visitors without messages after those with,
// then newest visitor first.
func (r *SQLVisitorRepository) ListWithLastMessage() ([]*chat.RosterEntry, error) {
	const query = `
		SELECT v.id, v.display_name, v.created_at,
		       (SELECT content FROM messages m WHERE m.visitor_id = v.id ORDER BY m.id DESC LIMIT 1) AS last_content,
		       (SELECT ts FROM messages m WHERE m.visitor_id = v.id ORDER BY m.id DESC LIMIT 1) AS last_ts
		FROM visitors v
		ORDER BY (last_ts IS NULL) ASC, last_ts DESC, v.created_at DESC`

	start := time.Now()
	r.logger.Database().Debug("Loading visitor roster")

	rows, err := r.db.Query(query)
	if err != nil {
		r.logger.Database().Error("Roster query failed", "error", err.Error())
		return nil, err
	}
	defer rows.Close()

	entries := make([]*chat.RosterEntry, 0)
	for rows.Next() {
		var entry chat.RosterEntry
		var displayName, lastContent sql.NullString
		var lastTS sql.NullInt64
		if err := rows.Scan(&entry.ID, &displayName, &entry.CreatedAt, &lastContent, &lastTS); err != nil {
			r.logger.Database().Error("Roster row scan failed", "error", err.Error())
			return nil, err
		}
		if displayName.Valid {
			entry.DisplayName = displayName.String
		}
		if lastContent.Valid {
			entry.LastContent = &lastContent.String
		}
		if lastTS.Valid {
			entry.LastTS = &lastTS.Int64
		}
		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	duration := time.Since(start)
	r.logger.Database().Info("Roster loaded", "visitors", len(entries), "duration", duration)
	if duration > config.SlowQueryThreshold {
		r.logger.LogSlowQuery(query, duration)
	}
	return entries, nil
}

// DeleteWithMessages removes a visitor and all their messages in one
// transaction, so a crash cannot leave orphaned history behind.
func (r *SQLVisitorRepository) DeleteWithMessages(id string) error {
	start := time.Now()
	r.logger.Database().Debug("Purging visitor", "id", id)

	tx, err := r.db.Begin()
	if err != nil {
		r.logger.Database().Error("Purge transaction begin failed", "error", err.Error(), "id", id)
		return err
	}

	if _, err := tx.Exec(`DELETE FROM messages WHERE visitor_id = ?`, id); err != nil {
		tx.Rollback()
		r.logger.Database().Error("Message purge failed", "error", err.Error(), "id", id)
		return err
	}
	if _, err := tx.Exec(`DELETE FROM visitors WHERE id = ?`, id); err != nil {
		tx.Rollback()
		r.logger.Database().Error("Visitor purge failed", "error", err.Error(), "id", id)
		return err
	}
	if err := tx.Commit(); err != nil {
		r.logger.Database().Error("Purge commit failed", "error", err.Error(), "id", id)
		return err
	}

	r.logger.Database().Info("Visitor purged", "id", id, "duration", time.Since(start))
	return nil
}
