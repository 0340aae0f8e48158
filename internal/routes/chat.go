package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/pintoo555/SyncERP-sub001/internal/handlers"
	"github.com/pintoo555/SyncERP-sub001/internal/middleware"
)

func RegisterChatRoutes(r gin.IRouter) {
	chat := r.Group("/chat")
	chat.Use(middleware.AuthMiddleware())
	{
		chat.GET("/conversations", handlers.GetConversations)
		chat.GET("/unread-count", handlers.GetUnreadCount)
		chat.GET("/messages", handlers.GetMessages) // ?with=...&limit=...&before=...

		send := chat.Group("")
		send.Use(middleware.ChatRateLimit())
		{
			send.POST("/messages", handlers.SendMessage)
			send.POST("/messages/:id/react", handlers.ReactToMessage)
			send.POST("/messages/:id/forward", handlers.ForwardMessage)
		}

		chat.POST("/messages/delivered", handlers.MarkDelivered)
		chat.POST("/messages/read", handlers.MarkRead) // empty messageIds = mark all
		chat.DELETE("/messages/:id/react", handlers.RemoveReaction)
		chat.POST("/messages/:id/delete", handlers.DeleteMessage)
		chat.POST("/messages/:id/star", handlers.StarMessage)
		chat.DELETE("/messages/:id/star", handlers.UnstarMessage)
		chat.POST("/messages/:id/pin", handlers.PinMessage)
		chat.DELETE("/messages/:id/pin", handlers.UnpinMessage)

		chat.POST("/attachments", middleware.UploadRateLimit(), handlers.UploadChatAttachment)
	}
}
