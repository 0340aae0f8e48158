package migrations

import (
	"gorm.io/gorm"
)

// Migration002AddConversationIndexes adds partial indexes backing the two hot
// queries: unread counting and pending-delivery batch updates. Partial
// indexes stay tiny because delivered/read rows drop out of them.
func Migration002AddConversationIndexes() Migration {
	return Migration{
		ID:        "002_add_conversation_indexes",
		Name:      "Add partial indexes for unread and undelivered lookups",
		DependsOn: []string{"001_add_reply_to_fk"},
		Up: func(db *gorm.DB) error {
			stmts := []string{
				`CREATE INDEX IF NOT EXISTS idx_messages_unread
					ON messages (receiver_id, sender_id, id)
					WHERE read_at IS NULL AND deleted_for_everyone = FALSE`,
				`CREATE INDEX IF NOT EXISTS idx_messages_undelivered
					ON messages (receiver_id, sender_id, id)
					WHERE delivered_at IS NULL AND deleted_for_everyone = FALSE`,
			}
			for _, stmt := range stmts {
				if err := db.Exec(stmt).Error; err != nil {
					return err
				}
			}
			return nil
		},
		Down: func(db *gorm.DB) error {
			stmts := []string{
				`DROP INDEX IF EXISTS idx_messages_unread`,
				`DROP INDEX IF EXISTS idx_messages_undelivered`,
			}
			for _, stmt := range stmts {
				if err := db.Exec(stmt).Error; err != nil {
					return err
				}
			}
			return nil
		},
	}
}
