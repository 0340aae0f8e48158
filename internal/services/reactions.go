package services

import (
	"time"
	"unicode/utf8"

	"github.com/pintoo555/SyncERP-sub001/internal/database"
	"github.com/pintoo555/SyncERP-sub001/internal/models"
	apperrors "github.com/pintoo555/SyncERP-sub001/pkg/errors"
	"gorm.io/gorm/clause"
)

// Emoji input is treated as an opaque short string and compared byte-for-byte;
// no canonicalization of variant selectors or skin-tone modifiers.
const maxEmojiBytes = 64

// SetReaction records userID's reaction on a message, replacing any prior one
// (last write wins, no history). The counterpart is resolved from the message
// row itself, never from caller input.
func SetReaction(messageID int64, userID, emoji string) (map[string]string, error) {
	if emoji == "" || !utf8.ValidString(emoji) || len(emoji) > maxEmojiBytes {
		return nil, apperrors.BadRequest("Invalid reaction emoji")
	}

	msg, err := loadMessage(messageID)
	if err != nil {
		return nil, err
	}
	if !msg.IsParticipant(userID) {
		return nil, apperrors.Forbidden("Not a participant of this conversation")
	}
	if !msg.VisibleTo(userID) {
		return nil, apperrors.NotFound("Message not found")
	}

	reaction := models.MessageReaction{
		MessageID: messageID,
		UserID:    userID,
		Emoji:     emoji,
		CreatedAt: time.Now().UTC(),
	}
	if err := database.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "message_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"emoji", "created_at"}),
	}).Create(&reaction).Error; err != nil {
		return nil, err
	}

	reactions, err := ReactionsFor(messageID)
	if err != nil {
		return nil, err
	}

	notifyUser(msg.Counterpart(userID), EventMessageReaction, map[string]interface{}{
		"messageId": messageID,
		"reactions": reactions,
		"reactorId": userID,
		"added":     true,
	})
	return reactions, nil
}

// RemoveReaction clears userID's reaction if one exists. Removing a reaction
// that is not there is a successful no-op and emits nothing.
func RemoveReaction(messageID int64, userID string) (map[string]string, error) {
	msg, err := loadMessage(messageID)
	if err != nil {
		return nil, err
	}
	if !msg.IsParticipant(userID) {
		return nil, apperrors.Forbidden("Not a participant of this conversation")
	}

	res := database.DB.
		Where("message_id = ? AND user_id = ?", messageID, userID).
		Delete(&models.MessageReaction{})
	if res.Error != nil {
		return nil, res.Error
	}

	reactions, err := ReactionsFor(messageID)
	if err != nil {
		return nil, err
	}

	if res.RowsAffected > 0 {
		notifyUser(msg.Counterpart(userID), EventMessageReaction, map[string]interface{}{
			"messageId": messageID,
			"reactions": reactions,
			"reactorId": userID,
			"added":     false,
		})
	}
	return reactions, nil
}

// ReactionsFor returns the current reacting-user -> emoji mapping.
func ReactionsFor(messageID int64) (map[string]string, error) {
	var rows []models.MessageReaction
	if err := database.DB.Where("message_id = ?", messageID).Find(&rows).Error; err != nil {
		return nil, err
	}
	reactions := make(map[string]string, len(rows))
	for _, r := range rows {
		reactions[r.UserID] = r.Emoji
	}
	return reactions, nil
}
