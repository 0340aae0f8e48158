package handlers

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	socketio "github.com/googollee/go-socket.io"
	"github.com/googollee/go-socket.io/engineio"
	"github.com/googollee/go-socket.io/engineio/transport"
	"github.com/googollee/go-socket.io/engineio/transport/polling"
	"github.com/googollee/go-socket.io/engineio/transport/websocket"
	"github.com/pintoo555/SyncERP-sub001/internal/database"
	"github.com/pintoo555/SyncERP-sub001/internal/models"
	"github.com/pintoo555/SyncERP-sub001/internal/services"
	"github.com/pintoo555/SyncERP-sub001/pkg/logger"
	"github.com/pintoo555/SyncERP-sub001/pkg/utils"
)

var SocketServer *socketio.Server

// Presence tracking
var (
	onlineUsers   = make(map[string]string) // userId -> socketId
	onlineUsersMu sync.RWMutex
)

// Typing throttle: track last typing emit per user to prevent spam
var (
	lastTypingEmit         = make(map[string]time.Time) // userId -> last emit time
	lastTypingMu           sync.RWMutex
	typingThrottleDuration = 3 * time.Second
)

// GetOnlineUsers returns list of online user IDs
func GetOnlineUsers() []string {
	onlineUsersMu.RLock()
	defer onlineUsersMu.RUnlock()

	users := make([]string, 0, len(onlineUsers))
	for userID := range onlineUsers {
		users = append(users, userID)
	}
	return users
}

// IsUserOnline checks if a user is online
func IsUserOnline(userID string) bool {
	onlineUsersMu.RLock()
	defer onlineUsersMu.RUnlock()
	_, exists := onlineUsers[userID]
	return exists
}

// BroadcastPresenceUpdate broadcasts user online/offline status to all clients
func BroadcastPresenceUpdate(userID string, isOnline bool) {
	if SocketServer != nil {
		SocketServer.BroadcastToRoom("/", "presence", "presence_update", map[string]interface{}{
			"userId":   userID,
			"isOnline": isOnline,
		})
	}
}

func InitSocketServer() *socketio.Server {
	server := socketio.NewServer(&engineio.Options{
		Transports: []transport.Transport{
			&websocket.Transport{
				CheckOrigin: func(r *http.Request) bool { return true },
			},
			&polling.Transport{
				CheckOrigin: func(r *http.Request) bool { return true },
			},
		},
	})

	server.OnConnect("/", func(s socketio.Conn) error {
		s.SetContext("")
		url := s.URL()

		token := url.Query().Get("token")
		if token == "" {
			token = url.Query().Get("auth_token") // Fallback
		}
		if token == "" {
			logger.Warn().Str("socket_id", s.ID()).Msg("socket connection rejected: no token")
			return fmt.Errorf("authentication required")
		}

		claims, err := utils.ValidateToken(token)
		if err != nil {
			logger.Warn().Str("socket_id", s.ID()).Msg("socket connection rejected: invalid token")
			return fmt.Errorf("invalid token")
		}

		userID := claims.UserID
		s.SetContext(userID)

		onlineUsersMu.Lock()
		onlineUsers[userID] = s.ID()
		onlineUsersMu.Unlock()

		// Personal room: every chat push targets this room.
		s.Join(userID)
		s.Join("presence")

		BroadcastPresenceUpdate(userID, true)
		s.Emit("online_users", GetOnlineUsers())

		logger.Debug().Str("socket_id", s.ID()).Str("user_id", userID).Msg("socket authenticated")
		return nil
	})

	server.OnEvent("/", "typing", func(s socketio.Conn, data map[string]interface{}) {
		recipientID, _ := data["withUserId"].(string)
		if recipientID == "" {
			recipientID, _ = data["recipientId"].(string)
		}
		if recipientID == "" {
			return
		}

		senderID, _ := s.Context().(string)
		if senderID == "" {
			return
		}

		lastTypingMu.RLock()
		lastTime, exists := lastTypingEmit[senderID]
		lastTypingMu.RUnlock()
		if exists && time.Since(lastTime) < typingThrottleDuration {
			return // Throttled
		}

		lastTypingMu.Lock()
		lastTypingEmit[senderID] = time.Now()
		lastTypingMu.Unlock()

		server.BroadcastToRoom("/", recipientID, "user_typing", map[string]interface{}{
			"userId":    senderID,
			"expiresAt": time.Now().Add(4 * time.Second).Unix(), // Auto-expire on client
		})
	})

	server.OnEvent("/", "get_online_users", func(s socketio.Conn, msg string) {
		s.Emit("online_users", GetOnlineUsers())
	})

	// message_ack: clients acknowledge delivery/read over the socket instead
	// of the HTTP batch endpoints. Same state machine underneath; the sender
	// still gets exactly one push per transition.
	server.OnEvent("/", "message_ack", func(s socketio.Conn, data map[string]interface{}) {
		userID, _ := s.Context().(string)
		if userID == "" {
			return
		}
		rawID, ok := data["messageId"].(float64)
		if !ok {
			return
		}
		messageID := int64(rawID)
		status, _ := data["status"].(string)
		if status != "delivered" && status != "read" {
			return
		}

		var senderID string
		if err := database.DB.Model(&models.Message{}).
			Select("sender_id").
			Where("id = ? AND receiver_id = ?", messageID, userID).
			Scan(&senderID).Error; err != nil || senderID == "" {
			return
		}

		var err error
		if status == "delivered" {
			_, _, err = services.MarkDelivered(userID, senderID, []int64{messageID})
		} else {
			_, _, err = services.MarkRead(userID, senderID, []int64{messageID})
		}
		if err != nil {
			logger.Debug().Err(err).Int64("message_id", messageID).Str("status", status).Msg("message_ack failed")
		}
	})

	server.OnDisconnect("/", func(s socketio.Conn, reason string) {
		onlineUsersMu.Lock()
		var disconnectedUserID string
		for userID, socketID := range onlineUsers {
			if socketID == s.ID() {
				disconnectedUserID = userID
				delete(onlineUsers, userID)
				break
			}
		}
		onlineUsersMu.Unlock()

		if disconnectedUserID != "" {
			now := time.Now().UTC()
			if err := database.DB.Model(&models.User{}).
				Where("id = ?", disconnectedUserID).
				Update("last_seen_at", now).Error; err == nil {
				_ = database.CachePresence(disconnectedUserID, now)
			}
			BroadcastPresenceUpdate(disconnectedUserID, false)
		}
	})

	server.OnError("/", func(s socketio.Conn, e error) {
		logger.Debug().Err(e).Msg("socket error")
	})

	go server.Serve()
	SocketServer = server

	// Wire the chat core's fire-and-forget push channel to personal rooms.
	services.Emit = func(userID, event string, data map[string]interface{}) {
		server.BroadcastToRoom("/", userID, event, data)
	}

	return server
}

// SocketHandler wraps the socket.io server for gin.
func SocketHandler(server *socketio.Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		server.ServeHTTP(c.Writer, c.Request)
	}
}
