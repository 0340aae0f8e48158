package services

import (
	"time"

	"github.com/pintoo555/SyncERP-sub001/internal/database"
	"github.com/pintoo555/SyncERP-sub001/internal/models"
	"github.com/pintoo555/SyncERP-sub001/pkg/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Delivery tracking. Transitions run as single predicate-guarded UPDATEs with
// RETURNING so each call learns exactly which rows it transitioned: two
// concurrent calls over overlapping ID sets can never double-count a message
// or double-push an event. No cross-request locking is involved.

// MarkDelivered stamps delivered_at on the given messages where the caller is
// the receiver and delivery is still pending. Other IDs in the input are
// silently ignored, which makes re-invocation idempotent. All rows updated by
// one call share a single timestamp, and at most one message.delivered push
// goes to the counterpart.
func MarkDelivered(callerID, counterpartID string, messageIDs []int64) ([]int64, time.Time, error) {
	if len(messageIDs) == 0 {
		return nil, time.Time{}, nil
	}
	now := time.Now().UTC()

	updated, err := updateReturningIDs(
		database.DB.
			Where("id IN ?", messageIDs).
			Where("sender_id = ? AND receiver_id = ?", counterpartID, callerID).
			Where("delivered_at IS NULL").
			Where("deleted_for_everyone = ?", false),
		map[string]interface{}{"delivered_at": now},
	)
	if err != nil {
		return nil, time.Time{}, err
	}

	if len(updated) > 0 {
		notifyUser(counterpartID, EventMessageDelivered, map[string]interface{}{
			"messageIds":  updated,
			"deliveredAt": now,
			"byUserId":    callerID,
		})
	}
	return updated, now, nil
}

// MarkRead stamps read_at, backfilling delivered_at with the same timestamp
// where it is still missing so sent_at <= delivered_at <= read_at always
// holds. As a side effect the caller's last-seen timestamp moves forward.
func MarkRead(callerID, counterpartID string, messageIDs []int64) ([]int64, time.Time, error) {
	if len(messageIDs) == 0 {
		return nil, time.Time{}, nil
	}
	return markReadScope(callerID, counterpartID, func(db *gorm.DB) *gorm.DB {
		return db.Where("id IN ?", messageIDs)
	})
}

// MarkAllRead is MarkRead over every currently-unread message the caller
// received in this conversation.
func MarkAllRead(callerID, counterpartID string) ([]int64, time.Time, error) {
	return markReadScope(callerID, counterpartID, nil)
}

func markReadScope(callerID, counterpartID string, scope func(*gorm.DB) *gorm.DB) ([]int64, time.Time, error) {
	now := time.Now().UTC()

	q := database.DB.
		Where("sender_id = ? AND receiver_id = ?", counterpartID, callerID).
		Where("read_at IS NULL").
		Where("deleted_for_everyone = ?", false)
	if scope != nil {
		q = scope(q)
	}

	updated, err := updateReturningIDs(q, map[string]interface{}{
		"read_at":      now,
		"delivered_at": gorm.Expr("COALESCE(delivered_at, ?)", now),
	})
	if err != nil {
		return nil, time.Time{}, err
	}

	if len(updated) > 0 {
		touchLastSeen(callerID, now)
		notifyUser(counterpartID, EventMessageRead, map[string]interface{}{
			"messageIds": updated,
			"readAt":     now,
			"byUserId":   callerID,
		})
	}
	return updated, now, nil
}

// updateReturningIDs applies a guarded batch update and returns the IDs of
// the rows this statement actually changed.
func updateReturningIDs(q *gorm.DB, values map[string]interface{}) ([]int64, error) {
	var rows []models.Message
	res := q.Model(&rows).
		Clauses(clause.Returning{Columns: []clause.Column{{Name: "id"}}}).
		Updates(values)
	if res.Error != nil {
		return nil, res.Error
	}
	ids := make([]int64, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	return ids, nil
}

// touchLastSeen bumps the presence marker. Failures are logged and ignored:
// presence is cosmetic and must not fail a read acknowledgement.
func touchLastSeen(userID string, at time.Time) {
	if err := database.DB.Model(&models.User{}).
		Where("id = ?", userID).
		Update("last_seen_at", at).Error; err != nil {
		logger.Debug().Err(err).Str("user_id", userID).Msg("last-seen update failed")
	}
	if err := database.CachePresence(userID, at); err != nil {
		logger.Debug().Err(err).Str("user_id", userID).Msg("presence cache update failed")
	}
}
