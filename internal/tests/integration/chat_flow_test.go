package integration

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

// Full round trip over the HTTP surface: send, list conversations, mark
// delivered and read, react, then delete for everyone.
func TestChatFlow_e2e(t *testing.T) {
	setupTestDB(t)
	r := setupChatRouter()

	aliceToken := createTestUser(t, "flow_alice")
	bobToken := createTestUser(t, "flow_bob")

	// Unauthenticated requests are rejected
	w := performRequest(r, "GET", "/api/chat/conversations", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Alice sends Bob a message
	w = performRequest(r, "POST", "/api/chat/messages", map[string]interface{}{
		"toUserId": "flow_bob",
		"text":     "Invoice #4411 approved, shipping tomorrow.",
	}, aliceToken)
	assert.Equal(t, http.StatusCreated, w.Code)

	var sendResp struct {
		Message struct {
			ID          int64       `json:"id"`
			SenderID    string      `json:"senderId"`
			DeliveredAt interface{} `json:"deliveredAt"`
		} `json:"message"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &sendResp))
	messageID := sendResp.Message.ID
	assert.NotZero(t, messageID)
	assert.Nil(t, sendResp.Message.DeliveredAt)

	// Bob sees the conversation with one unread message
	w = performRequest(r, "GET", "/api/chat/conversations", nil, bobToken)
	assert.Equal(t, http.StatusOK, w.Code)

	var convResp struct {
		Conversations []struct {
			Counterpart struct {
				ID string `json:"id"`
			} `json:"counterpart"`
			UnreadCount int64 `json:"unreadCount"`
		} `json:"conversations"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &convResp))
	if assert.Len(t, convResp.Conversations, 1) {
		assert.Equal(t, "flow_alice", convResp.Conversations[0].Counterpart.ID)
		assert.Equal(t, int64(1), convResp.Conversations[0].UnreadCount)
	}

	// Bob acknowledges delivery, then reads
	w = performRequest(r, "POST", "/api/chat/messages/delivered", map[string]interface{}{
		"withUserId": "flow_alice",
		"messageIds": []int64{messageID},
	}, bobToken)
	assert.Equal(t, http.StatusOK, w.Code)

	w = performRequest(r, "POST", "/api/chat/messages/read", map[string]interface{}{
		"withUserId": "flow_alice",
		"messageIds": []int64{},
	}, bobToken)
	assert.Equal(t, http.StatusOK, w.Code)

	w = performRequest(r, "GET", "/api/chat/unread-count", nil, bobToken)
	assert.Equal(t, http.StatusOK, w.Code)
	var unreadResp struct {
		UnreadCount int64 `json:"unreadCount"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &unreadResp))
	assert.Zero(t, unreadResp.UnreadCount)

	// Bob reacts; history reflects both read state and reaction
	w = performRequest(r, "POST", fmt.Sprintf("/api/chat/messages/%d/react", messageID), map[string]interface{}{
		"emoji": "🎉",
	}, bobToken)
	assert.Equal(t, http.StatusOK, w.Code)

	w = performRequest(r, "GET", "/api/chat/messages?with=flow_bob", nil, aliceToken)
	assert.Equal(t, http.StatusOK, w.Code)
	var histResp struct {
		Messages []struct {
			ID        int64       `json:"id"`
			ReadAt    interface{} `json:"readAt"`
			Reactions []struct {
				UserID string `json:"userId"`
				Emoji  string `json:"emoji"`
			} `json:"reactions"`
		} `json:"messages"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &histResp))
	if assert.Len(t, histResp.Messages, 1) {
		assert.NotNil(t, histResp.Messages[0].ReadAt)
		if assert.Len(t, histResp.Messages[0].Reactions, 1) {
			assert.Equal(t, "🎉", histResp.Messages[0].Reactions[0].Emoji)
		}
	}

	// Only the sender may delete for everyone
	w = performRequest(r, "POST", fmt.Sprintf("/api/chat/messages/%d/delete", messageID), map[string]interface{}{
		"forEveryone": true,
	}, bobToken)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = performRequest(r, "POST", fmt.Sprintf("/api/chat/messages/%d/delete", messageID), map[string]interface{}{
		"forEveryone": true,
	}, aliceToken)
	assert.Equal(t, http.StatusOK, w.Code)

	// The thread is now empty for both sides
	w = performRequest(r, "GET", "/api/chat/messages?with=flow_alice", nil, bobToken)
	assert.Equal(t, http.StatusOK, w.Code)
	var emptyResp struct {
		Messages []json.RawMessage `json:"messages"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &emptyResp))
	assert.Empty(t, emptyResp.Messages)
}
