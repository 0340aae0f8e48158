package services

import (
	"errors"
	"time"

	"github.com/pintoo555/SyncERP-sub001/internal/database"
	"github.com/pintoo555/SyncERP-sub001/internal/models"
	apperrors "github.com/pintoo555/SyncERP-sub001/pkg/errors"
	"gorm.io/gorm"
)

// History page size bounds. The cap holds regardless of what the client asks
// for so a single call can never drag the whole conversation over the wire.
const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 500
)

// AttachmentRef is the opaque reference handed out by the attachment upload
// endpoint. The chat core stores it verbatim and never touches file bytes.
type AttachmentRef struct {
	FileID string `json:"fileId"`
	Name   string `json:"name"`
	Mime   string `json:"mime"`
	Token  string `json:"accessToken"`
}

// SendInput carries the payload of a send request after handler-side
// sanitization.
type SendInput struct {
	Body       string
	Attachment *AttachmentRef
	ReplyToID  *int64
}

// visibleScope filters out messages the given user has deleted for themselves
// and messages deleted for everyone.
func visibleScope(userID string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("deleted_for_everyone = ?", false).
			Where(
				db.Session(&gorm.Session{NewDB: true}).
					Where("sender_id = ? AND deleted_for_sender = ?", userID, false).
					Or("receiver_id = ? AND deleted_for_receiver = ?", userID, false),
			)
	}
}

// conversationScope restricts to the unordered pair (a, b).
func conversationScope(a, b string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(
			db.Session(&gorm.Session{NewDB: true}).
				Where("sender_id = ? AND receiver_id = ?", a, b).
				Or("sender_id = ? AND receiver_id = ?", b, a),
		)
	}
}

func loadMessage(messageID int64) (*models.Message, error) {
	var msg models.Message
	if err := database.DB.First(&msg, "id = ?", messageID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("Message not found")
		}
		return nil, err
	}
	return &msg, nil
}

// SendMessage creates a new message in the sent state and pushes a
// message.new event to the receiver's active sessions.
func SendMessage(senderID, receiverID string, in SendInput) (*models.Message, error) {
	if receiverID == "" {
		return nil, apperrors.BadRequest("Recipient is required")
	}
	if receiverID == senderID {
		return nil, apperrors.BadRequest("Cannot send a message to yourself")
	}
	if in.Body == "" && in.Attachment == nil {
		return nil, apperrors.BadRequest("Message needs text or an attachment")
	}

	var receiver models.User
	if err := database.DB.Select("id").First(&receiver, "id = ?", receiverID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("Recipient not found")
		}
		return nil, err
	}

	if in.ReplyToID != nil {
		parent, err := loadMessage(*in.ReplyToID)
		if err != nil {
			return nil, err
		}
		// The reply target must belong to this conversation and still be
		// visible to the sender.
		sameConversation := (parent.SenderID == senderID && parent.ReceiverID == receiverID) ||
			(parent.SenderID == receiverID && parent.ReceiverID == senderID)
		if !sameConversation || !parent.VisibleTo(senderID) {
			return nil, apperrors.NotFound("Reply target not found in this conversation")
		}
	}

	msg := models.Message{
		SenderID:   senderID,
		ReceiverID: receiverID,
		ReplyToID:  in.ReplyToID,
		SentAt:     time.Now().UTC(),
	}
	if in.Body != "" {
		body := in.Body
		msg.Body = &body
	}
	if in.Attachment != nil {
		msg.AttachmentFileID = &in.Attachment.FileID
		msg.AttachmentName = &in.Attachment.Name
		msg.AttachmentMime = &in.Attachment.Mime
		msg.AttachmentToken = &in.Attachment.Token
	}

	if err := database.DB.Create(&msg).Error; err != nil {
		return nil, err
	}

	notifyUser(receiverID, EventMessageNew, map[string]interface{}{
		"message": msg,
	})

	return &msg, nil
}

// ForwardMessage creates a fresh message carrying the original body and
// attachment reference. Reactions, stars, pin and the reply link do not
// travel with it.
func ForwardMessage(messageID int64, byUserID, toUserID string) (*models.Message, error) {
	src, err := loadMessage(messageID)
	if err != nil {
		return nil, err
	}
	if !src.VisibleTo(byUserID) {
		return nil, apperrors.NotFound("Message not found")
	}

	in := SendInput{}
	if src.Body != nil {
		in.Body = *src.Body
	}
	if src.AttachmentFileID != nil {
		in.Attachment = &AttachmentRef{FileID: *src.AttachmentFileID}
		if src.AttachmentName != nil {
			in.Attachment.Name = *src.AttachmentName
		}
		if src.AttachmentMime != nil {
			in.Attachment.Mime = *src.AttachmentMime
		}
		if src.AttachmentToken != nil {
			in.Attachment.Token = *src.AttachmentToken
		}
	}

	return SendMessage(byUserID, toUserID, in)
}

// FetchHistory returns a newest-first page of the conversation as userID
// sees it: strictly older than beforeID when given, at most limit items.
func FetchHistory(userID, counterpartID string, limit int, beforeID int64) ([]models.Message, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	q := database.DB.
		Scopes(conversationScope(userID, counterpartID), visibleScope(userID)).
		Order("id desc").
		Limit(limit).
		Preload("Reactions")
	if beforeID > 0 {
		q = q.Where("id < ?", beforeID)
	}

	var messages []models.Message
	if err := q.Find(&messages).Error; err != nil {
		return nil, err
	}
	return messages, nil
}

// DeleteForMe hides the message from the caller's view only. Idempotent.
func DeleteForMe(messageID int64, userID string) error {
	msg, err := loadMessage(messageID)
	if err != nil {
		return err
	}
	if !msg.IsParticipant(userID) {
		return apperrors.Forbidden("Not a participant of this conversation")
	}

	column := "deleted_for_receiver"
	if msg.SenderID == userID {
		column = "deleted_for_sender"
	}
	return database.DB.Model(&models.Message{}).
		Where("id = ?", messageID).
		Update(column, true).Error
}

// DeleteForEveryone is a sender-only action. Once set it supersedes the
// per-side flags for all future reads; the counterpart gets a push so open
// clients can drop the bubble immediately.
func DeleteForEveryone(messageID int64, userID string) error {
	msg, err := loadMessage(messageID)
	if err != nil {
		return err
	}
	if msg.SenderID != userID {
		return apperrors.Forbidden("Only the sender can delete for everyone")
	}

	if err := database.DB.Model(&models.Message{}).
		Where("id = ?", messageID).
		Update("deleted_for_everyone", true).Error; err != nil {
		return err
	}

	notifyUser(msg.ReceiverID, EventMessageDeleted, map[string]interface{}{
		"messageId": messageID,
	})
	return nil
}

// StarMessage sets the caller's star flag. Idempotent: starring an already
// starred message is a successful no-op.
func StarMessage(messageID int64, userID string) error {
	return setStar(messageID, userID, true)
}

// UnstarMessage clears the caller's star flag.
func UnstarMessage(messageID int64, userID string) error {
	return setStar(messageID, userID, false)
}

func setStar(messageID int64, userID string, starred bool) error {
	msg, err := loadMessage(messageID)
	if err != nil {
		return err
	}
	if !msg.IsParticipant(userID) {
		return apperrors.Forbidden("Not a participant of this conversation")
	}

	column := "starred_by_receiver"
	if msg.SenderID == userID {
		column = "starred_by_sender"
	}
	return database.DB.Model(&models.Message{}).
		Where("id = ?", messageID).
		Update(column, starred).Error
}

// PinMessage marks the message as pinned in its conversation.
func PinMessage(messageID int64, userID string) error {
	return setPin(messageID, userID, true)
}

// UnpinMessage clears the pin.
func UnpinMessage(messageID int64, userID string) error {
	return setPin(messageID, userID, false)
}

func setPin(messageID int64, userID string, pinned bool) error {
	msg, err := loadMessage(messageID)
	if err != nil {
		return err
	}
	if !msg.IsParticipant(userID) {
		return apperrors.Forbidden("Not a participant of this conversation")
	}
	return database.DB.Model(&models.Message{}).
		Where("id = ?", messageID).
		Update("pinned", pinned).Error
}
