package services

import (
	"time"
	"unicode/utf8"

	"github.com/pintoo555/SyncERP-sub001/internal/database"
	"github.com/pintoo555/SyncERP-sub001/internal/models"
	"github.com/pintoo555/SyncERP-sub001/pkg/logger"
)

// Conversations are a derived view: there is no conversation table. Each
// distinct counterpart with at least one message still visible to the caller
// yields one summary, computed from the message set on demand.

const previewRunes = 120

// ConversationSummary is one row of the conversation list.
type ConversationSummary struct {
	Counterpart   models.User `json:"counterpart"`
	LastMessageID int64       `json:"lastMessageId"`
	LastSenderID  string      `json:"lastSenderId"`
	Preview       string      `json:"preview"`
	LastMessageAt time.Time   `json:"lastMessageAt"`
	UnreadCount   int64       `json:"unreadCount"`
}

// ListConversations returns the caller's conversations ordered by most recent
// visible message, newest first. Unread counts obey the same visibility rules
// as history, so their sum always matches UnreadCount.
func ListConversations(userID string) ([]ConversationSummary, error) {
	query := `
		WITH visible AS (
			SELECT id, sender_id, receiver_id, body, attachment_name, sent_at, read_at,
				CASE WHEN sender_id = ? THEN receiver_id ELSE sender_id END AS partner_id
			FROM messages
			WHERE deleted_for_everyone = FALSE
			  AND (
				(sender_id = ? AND deleted_for_sender = FALSE) OR
				(receiver_id = ? AND deleted_for_receiver = FALSE)
			  )
		),
		latest AS (
			SELECT partner_id, MAX(id) AS last_id
			FROM visible
			GROUP BY partner_id
		)
		SELECT
			u.id, COALESCE(u.username, ''), COALESCE(u.name, u.username, ''), COALESCE(u.image, ''), u.last_seen_at,
			m.id, m.sender_id, COALESCE(m.body, ''), COALESCE(m.attachment_name, ''), m.sent_at,
			(SELECT COUNT(*) FROM visible v
				WHERE v.partner_id = latest.partner_id AND v.receiver_id = ? AND v.read_at IS NULL) AS unread
		FROM latest
		JOIN users u ON u.id = latest.partner_id
		JOIN visible m ON m.id = latest.last_id
		ORDER BY latest.last_id DESC
	`

	rows, err := database.DB.Raw(query, userID, userID, userID, userID).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []ConversationSummary
	for rows.Next() {
		var s ConversationSummary
		var body, attachmentName string
		if err := rows.Scan(
			&s.Counterpart.ID, &s.Counterpart.Username, &s.Counterpart.Name, &s.Counterpart.Image, &s.Counterpart.LastSeenAt,
			&s.LastMessageID, &s.LastSenderID, &body, &attachmentName, &s.LastMessageAt,
			&s.UnreadCount,
		); err != nil {
			logger.Error().Err(err).Msg("conversation row scan failed")
			continue
		}
		s.Preview = messagePreview(body, attachmentName)
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// UnreadCount is the total number of unread messages addressed to userID
// across all counterparts, under the same visibility rules as
// ListConversations.
func UnreadCount(userID string) (int64, error) {
	var count int64
	err := database.DB.Model(&models.Message{}).
		Where("receiver_id = ? AND read_at IS NULL", userID).
		Where("deleted_for_receiver = ? AND deleted_for_everyone = ?", false, false).
		Count(&count).Error
	return count, err
}

func messagePreview(body, attachmentName string) string {
	if body == "" {
		if attachmentName != "" {
			return "\U0001F4CE " + attachmentName
		}
		return ""
	}
	if utf8.RuneCountInString(body) <= previewRunes {
		return body
	}
	runes := []rune(body)
	return string(runes[:previewRunes]) + "…"
}
