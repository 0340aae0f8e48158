package models

import "time"

// Message is a direct message between two users. The autoincrement ID doubles
// as the total order within a conversation, so pagination and "newest message"
// lookups never depend on wall-clock ties.
type Message struct {
	ID         int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	SenderID   string `gorm:"index:idx_messages_sender_receiver,priority:1;not null" json:"senderId"`
	Sender     *User  `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
	ReceiverID string `gorm:"index:idx_messages_sender_receiver,priority:2;not null" json:"receiverId"`
	Receiver   *User  `gorm:"foreignKey:ReceiverID" json:"receiver,omitempty"`

	// Body is null for attachment-only messages.
	Body *string `gorm:"type:text" json:"body"`

	// Attachment reference resolved by the upload endpoint before send.
	// The chat core never touches file bytes.
	AttachmentFileID *string `gorm:"type:text" json:"attachmentFileId,omitempty"`
	AttachmentName   *string `gorm:"type:text" json:"attachmentName,omitempty"`
	AttachmentMime   *string `gorm:"type:text" json:"attachmentMime,omitempty"`
	AttachmentToken  *string `gorm:"type:text" json:"attachmentToken,omitempty"`

	// ReplyToID points at another message in the same conversation.
	// The FK constraint is added by a raw-SQL migration.
	ReplyToID *int64   `gorm:"index" json:"replyToMessageId,omitempty"`
	ReplyTo   *Message `gorm:"foreignKey:ReplyToID" json:"replyTo,omitempty"`

	// Lifecycle: sent_at is immutable; delivered_at and read_at only ever move
	// forward and sent_at <= delivered_at <= read_at holds whenever set.
	SentAt      time.Time  `gorm:"not null" json:"sentAt"`
	DeliveredAt *time.Time `json:"deliveredAt"`
	ReadAt      *time.Time `json:"readAt"`

	// Soft-deletion flags. Rows are never physically removed.
	DeletedForSender   bool `gorm:"default:false" json:"-"`
	DeletedForReceiver bool `gorm:"default:false" json:"-"`
	DeletedForEveryone bool `gorm:"default:false" json:"deletedForEveryone"`

	// Decoration
	StarredBySender   bool `gorm:"default:false" json:"starredBySender"`
	StarredByReceiver bool `gorm:"default:false" json:"starredByReceiver"`
	Pinned            bool `gorm:"default:false" json:"pinned"`

	Reactions []MessageReaction `gorm:"foreignKey:MessageID" json:"reactions,omitempty"`
}

// IsParticipant reports whether userID is the sender or the receiver.
func (m *Message) IsParticipant(userID string) bool {
	return m.SenderID == userID || m.ReceiverID == userID
}

// Counterpart returns the other participant relative to userID.
func (m *Message) Counterpart(userID string) string {
	if m.SenderID == userID {
		return m.ReceiverID
	}
	return m.SenderID
}

// VisibleTo reports whether userID may still see this message.
func (m *Message) VisibleTo(userID string) bool {
	if m.DeletedForEveryone {
		return false
	}
	if m.SenderID == userID {
		return !m.DeletedForSender
	}
	if m.ReceiverID == userID {
		return !m.DeletedForReceiver
	}
	return false
}

// MessageReaction holds at most one emoji per user per message; setting a new
// emoji replaces the row. Emoji strings are opaque and compared byte-for-byte.
type MessageReaction struct {
	MessageID int64     `gorm:"primaryKey;autoIncrement:false" json:"messageId"`
	UserID    string    `gorm:"primaryKey;type:text" json:"userId"`
	Emoji     string    `gorm:"not null" json:"emoji"`
	CreatedAt time.Time `json:"createdAt"`
}
