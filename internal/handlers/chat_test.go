package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/pintoo555/SyncERP-sub001/internal/database"
	"github.com/pintoo555/SyncERP-sub001/internal/models"
	"github.com/pintoo555/SyncERP-sub001/internal/services"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// SetupTestDB initializes an in-memory SQLite DB for testing
func SetupTestDB(t *testing.T) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	database.DB = db
	if err := database.DB.AutoMigrate(
		&models.User{},
		&models.Message{},
		&models.MessageReaction{},
	); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}
}

func seedUser(t *testing.T, id string) {
	t.Helper()
	user := models.User{ID: id, Username: id, Email: id + "@example.com"}
	if err := database.DB.FirstOrCreate(&user, "id = ?", id).Error; err != nil {
		t.Fatalf("failed to seed user %s: %v", id, err)
	}
}

func jsonContext(t *testing.T, w *httptest.ResponseRecorder, userID, method, target string, body interface{}) *gin.Context {
	t.Helper()
	c, _ := gin.CreateTestContext(w)

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}
	req, _ := http.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set("userId", userID)
	return c
}

func TestSendMessageHandler(t *testing.T) {
	SetupTestDB(t)
	gin.SetMode(gin.TestMode)
	seedUser(t, "h_send_1")
	seedUser(t, "h_send_2")

	w := httptest.NewRecorder()
	c := jsonContext(t, w, "h_send_1", "POST", "/api/chat/messages", gin.H{
		"toUserId": "h_send_2",
		"text":     "hello over http",
	})

	SendMessage(c)

	assert.Equal(t, http.StatusCreated, w.Code)

	var response struct {
		Message models.Message `json:"message"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.NotZero(t, response.Message.ID)
	assert.Equal(t, "h_send_1", response.Message.SenderID)
	assert.Nil(t, response.Message.DeliveredAt)
	assert.Nil(t, response.Message.ReadAt)
}

func TestSendMessageHandlerRejectsEmpty(t *testing.T) {
	SetupTestDB(t)
	gin.SetMode(gin.TestMode)
	seedUser(t, "h_empty_1")
	seedUser(t, "h_empty_2")

	w := httptest.NewRecorder()
	c := jsonContext(t, w, "h_empty_1", "POST", "/api/chat/messages", gin.H{
		"toUserId": "h_empty_2",
	})

	SendMessage(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var response map[string]string
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "validation_error", response["kind"])
}

func TestGetMessagesHandler(t *testing.T) {
	SetupTestDB(t)
	gin.SetMode(gin.TestMode)
	seedUser(t, "h_get_1")
	seedUser(t, "h_get_2")

	_, err := services.SendMessage("h_get_1", "h_get_2", services.SendInput{Body: "first"})
	assert.NoError(t, err)
	_, err = services.SendMessage("h_get_2", "h_get_1", services.SendInput{Body: "second"})
	assert.NoError(t, err)

	w := httptest.NewRecorder()
	c := jsonContext(t, w, "h_get_1", "GET", "/api/chat/messages?with=h_get_2", nil)

	GetMessages(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var response struct {
		Messages []models.Message `json:"messages"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	if assert.Len(t, response.Messages, 2) {
		// Newest first
		assert.Equal(t, "second", *response.Messages[0].Body)
	}
}

// End-to-end read flow over the HTTP surface: empty messageIds means
// "mark everything in this conversation".
func TestMarkReadHandlerMarksAll(t *testing.T) {
	SetupTestDB(t)
	gin.SetMode(gin.TestMode)
	seedUser(t, "h_read_1")
	seedUser(t, "h_read_2")

	for _, body := range []string{"a", "b"} {
		_, err := services.SendMessage("h_read_1", "h_read_2", services.SendInput{Body: body})
		assert.NoError(t, err)
	}

	w := httptest.NewRecorder()
	c := jsonContext(t, w, "h_read_2", "POST", "/api/chat/messages/read", gin.H{
		"withUserId": "h_read_1",
		"messageIds": []int64{},
	})

	MarkRead(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var response struct {
		MessageIDs []int64 `json:"messageIds"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Len(t, response.MessageIDs, 2)

	count, err := services.UnreadCount("h_read_2")
	assert.NoError(t, err)
	assert.Zero(t, count)
}

func TestGetConversationsHandler(t *testing.T) {
	SetupTestDB(t)
	gin.SetMode(gin.TestMode)
	seedUser(t, "h_conv_me")
	seedUser(t, "h_conv_a")

	_, err := services.SendMessage("h_conv_a", "h_conv_me", services.SendInput{Body: "new lead assigned"})
	assert.NoError(t, err)

	w := httptest.NewRecorder()
	c := jsonContext(t, w, "h_conv_me", "GET", "/api/chat/conversations", nil)

	GetConversations(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var response struct {
		Conversations []services.ConversationSummary `json:"conversations"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	if assert.Len(t, response.Conversations, 1) {
		assert.Equal(t, "h_conv_a", response.Conversations[0].Counterpart.ID)
		assert.Equal(t, int64(1), response.Conversations[0].UnreadCount)
	}
}

func TestDeleteMessageHandlerForbiddenForEveryone(t *testing.T) {
	SetupTestDB(t)
	gin.SetMode(gin.TestMode)
	seedUser(t, "h_del_1")
	seedUser(t, "h_del_2")

	msg, err := services.SendMessage("h_del_1", "h_del_2", services.SendInput{Body: "mine"})
	assert.NoError(t, err)

	// The receiver may not delete for everyone
	w := httptest.NewRecorder()
	c := jsonContext(t, w, "h_del_2", "POST", "/api/chat/messages/delete", gin.H{"forEveryone": true})
	c.Params = gin.Params{{Key: "id", Value: strconv.FormatInt(msg.ID, 10)}}

	DeleteMessage(c)

	assert.Equal(t, http.StatusForbidden, w.Code)
}
