package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pintoo555/SyncERP-sub001/internal/services"
	apperrors "github.com/pintoo555/SyncERP-sub001/pkg/errors"
	"github.com/pintoo555/SyncERP-sub001/pkg/logger"
)

// respondChatError maps service errors onto the wire format. AppErrors keep
// their status and machine-readable kind; anything else is a 500.
func respondChatError(c *gin.Context, err error) {
	if appErr, ok := err.(*apperrors.AppError); ok {
		c.JSON(appErr.Code, gin.H{"error": appErr.Message, "kind": appErr.Kind})
		return
	}
	logger.Error().Err(err).Str("path", c.Request.URL.Path).Msg("chat operation failed")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error", "kind": apperrors.KindInternal})
}

func messageIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid message id", "kind": apperrors.KindValidation})
		return 0, false
	}
	return id, true
}

// GetConversations returns the caller's conversation list with previews and
// unread counts, most recent first.
func GetConversations(c *gin.Context) {
	userID := c.MustGet("userId").(string)

	conversations, err := services.ListConversations(userID)
	if err != nil {
		respondChatError(c, err)
		return
	}
	if conversations == nil {
		conversations = []services.ConversationSummary{}
	}
	c.JSON(http.StatusOK, gin.H{"conversations": conversations})
}

// GetUnreadCount returns the total unread count for the app-shell badge.
func GetUnreadCount(c *gin.Context) {
	userID := c.MustGet("userId").(string)

	count, err := services.UnreadCount(userID)
	if err != nil {
		respondChatError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unreadCount": count})
}

// GetMessages returns a page of history with one counterpart.
// Query: with=<userId>, limit=<n>, before=<messageId>.
func GetMessages(c *gin.Context) {
	userID := c.MustGet("userId").(string)
	counterpartID := c.Query("with")
	if counterpartID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Query parameter 'with' is required", "kind": apperrors.KindValidation})
		return
	}

	limit, _ := strconv.Atoi(c.Query("limit"))
	before, _ := strconv.ParseInt(c.Query("before"), 10, 64)

	messages, err := services.FetchHistory(userID, counterpartID, limit, before)
	if err != nil {
		respondChatError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

// SendMessage creates a new message. The attachment reference must come from
// a prior upload; text-only, attachment-only and text+attachment are all
// valid, empty messages are not.
func SendMessage(c *gin.Context) {
	senderID := c.MustGet("userId").(string)
	var req struct {
		ToUserID         string `json:"toUserId" binding:"required"`
		Text             string `json:"text"`
		AttachmentFileID string `json:"attachmentFileId"`
		ReplyToMessageID *int64 `json:"replyToMessageId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "kind": apperrors.KindValidation})
		return
	}

	in := services.SendInput{ReplyToID: req.ReplyToMessageID}

	if req.Text != "" {
		body, err := SanitizeMessageBody(req.Text)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": apperrors.KindValidation})
			return
		}
		in.Body = body
	}

	if req.AttachmentFileID != "" {
		ref, err := resolveAttachment(req.AttachmentFileID)
		if err != nil {
			respondChatError(c, err)
			return
		}
		in.Attachment = ref
	}

	msg, err := services.SendMessage(senderID, req.ToUserID, in)
	if err != nil {
		respondChatError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": msg})
}

// MarkDelivered acknowledges receipt of a batch of messages.
// Body: {withUserId, messageIds[]}.
func MarkDelivered(c *gin.Context) {
	userID := c.MustGet("userId").(string)
	var req struct {
		WithUserID string  `json:"withUserId" binding:"required"`
		MessageIDs []int64 `json:"messageIds"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "kind": apperrors.KindValidation})
		return
	}

	updated, at, err := services.MarkDelivered(userID, req.WithUserID, req.MessageIDs)
	if err != nil {
		respondChatError(c, err)
		return
	}
	if updated == nil {
		updated = []int64{}
	}
	c.JSON(http.StatusOK, gin.H{"messageIds": updated, "deliveredAt": at})
}

// MarkRead acknowledges display of a batch of messages. An empty messageIds
// list means "mark everything unread in this conversation".
func MarkRead(c *gin.Context) {
	userID := c.MustGet("userId").(string)
	var req struct {
		WithUserID string  `json:"withUserId" binding:"required"`
		MessageIDs []int64 `json:"messageIds"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "kind": apperrors.KindValidation})
		return
	}

	var (
		updated []int64
		at      time.Time
		err     error
	)
	if len(req.MessageIDs) == 0 {
		updated, at, err = services.MarkAllRead(userID, req.WithUserID)
	} else {
		updated, at, err = services.MarkRead(userID, req.WithUserID, req.MessageIDs)
	}
	if err != nil {
		respondChatError(c, err)
		return
	}
	if updated == nil {
		updated = []int64{}
	}
	c.JSON(http.StatusOK, gin.H{"messageIds": updated, "readAt": at})
}

// ReactToMessage sets the caller's emoji reaction, replacing any prior one.
func ReactToMessage(c *gin.Context) {
	userID := c.MustGet("userId").(string)
	messageID, ok := messageIDParam(c)
	if !ok {
		return
	}
	var req struct {
		Emoji string `json:"emoji" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "kind": apperrors.KindValidation})
		return
	}

	reactions, err := services.SetReaction(messageID, userID, req.Emoji)
	if err != nil {
		respondChatError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messageId": messageID, "reactions": reactions})
}

// RemoveReaction clears the caller's reaction.
func RemoveReaction(c *gin.Context) {
	userID := c.MustGet("userId").(string)
	messageID, ok := messageIDParam(c)
	if !ok {
		return
	}

	reactions, err := services.RemoveReaction(messageID, userID)
	if err != nil {
		respondChatError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messageId": messageID, "reactions": reactions})
}

// ForwardMessage re-sends an existing message to another user.
func ForwardMessage(c *gin.Context) {
	userID := c.MustGet("userId").(string)
	messageID, ok := messageIDParam(c)
	if !ok {
		return
	}
	var req struct {
		ToUserID string `json:"toUserId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "kind": apperrors.KindValidation})
		return
	}

	msg, err := services.ForwardMessage(messageID, userID, req.ToUserID)
	if err != nil {
		respondChatError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": msg})
}

// DeleteMessage hides a message: for the caller only by default, for both
// participants when forEveryone is set (sender only).
func DeleteMessage(c *gin.Context) {
	userID := c.MustGet("userId").(string)
	messageID, ok := messageIDParam(c)
	if !ok {
		return
	}
	var req struct {
		ForEveryone bool `json:"forEveryone"`
	}
	// Body is optional; absence means delete-for-me.
	_ = c.ShouldBindJSON(&req)

	var err error
	if req.ForEveryone {
		err = services.DeleteForEveryone(messageID, userID)
	} else {
		err = services.DeleteForMe(messageID, userID)
	}
	if err != nil {
		respondChatError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true, "forEveryone": req.ForEveryone})
}

// StarMessage / UnstarMessage toggle the caller's star flag.
func StarMessage(c *gin.Context) {
	toggleMessageFlag(c, services.StarMessage, gin.H{"starred": true})
}

func UnstarMessage(c *gin.Context) {
	toggleMessageFlag(c, services.UnstarMessage, gin.H{"starred": false})
}

// PinMessage / UnpinMessage toggle the conversation-scoped pin.
func PinMessage(c *gin.Context) {
	toggleMessageFlag(c, services.PinMessage, gin.H{"pinned": true})
}

func UnpinMessage(c *gin.Context) {
	toggleMessageFlag(c, services.UnpinMessage, gin.H{"pinned": false})
}

func toggleMessageFlag(c *gin.Context, op func(int64, string) error, response gin.H) {
	userID := c.MustGet("userId").(string)
	messageID, ok := messageIDParam(c)
	if !ok {
		return
	}
	if err := op(messageID, userID); err != nil {
		respondChatError(c, err)
		return
	}
	c.JSON(http.StatusOK, response)
}
