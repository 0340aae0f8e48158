package services

import (
	"github.com/pintoo555/SyncERP-sub001/pkg/logger"
)

// Event names pushed to a user's connected sessions.
const (
	EventMessageNew       = "message.new"
	EventMessageDelivered = "message.delivered"
	EventMessageRead      = "message.read"
	EventMessageReaction  = "message.reaction"
	EventMessageDeleted   = "message.deleted"
)

// Emit is wired to the socket.io server at boot (handlers.InitSocketServer).
// Tests swap in a recorder. May be nil when no realtime transport is running.
var Emit func(userID string, event string, data map[string]interface{})

// notifyUser pushes an event to every connected session of userID, best
// effort. The push channel is a latency optimization only: failures are
// swallowed here and clients reconcile from persisted state on next fetch.
func notifyUser(userID, event string, data map[string]interface{}) {
	if Emit == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Debug().Str("user_id", userID).Str("event", event).Msgf("realtime push failed: %v", r)
		}
	}()
	Emit(userID, event, data)
}
