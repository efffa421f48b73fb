// Package database provides database helper functions
package database

import (
	"time"

	"github.com/AtRiskMedia/chatline-go/internal/infrastructure/observability/logging"
)

// schema is the full bootstrap DDL. Message ids are store-assigned and, for a
// fixed visitor, agree with timestamp order because all writes for a visitor
// go through a single serialization point in the router.
const schema = `
CREATE TABLE IF NOT EXISTS visitors (
	id TEXT PRIMARY KEY,
	display_name TEXT,
	created_at INTEGER
);
CREATE TABLE IF NOT EXISTS messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	visitor_id TEXT,
	sender TEXT,
	kind TEXT,
	content TEXT,
	ts INTEGER
);
CREATE INDEX IF NOT EXISTS idx_messages_visitor ON messages (visitor_id, id);
`

// EnsureSchema creates the chat tables if they do not exist and switches the
// journal to WAL for concurrent readers.
func (db *DB) EnsureSchema(logger *logging.ChanneledLogger) error {
	start := time.Now()

	if _, err := db.Exec(`PRAGMA journal_mode = WAL`); err != nil {
		logger.Database().Warn("Failed to enable WAL journal mode", "error", err.Error())
	}

	if _, err := db.Exec(schema); err != nil {
		logger.Database().Error("Schema bootstrap failed", "error", err.Error())
		return err
	}

	logger.Database().Info("Schema bootstrap completed", "duration", time.Since(start))
	return nil
}
