package main

import (
	"log"

	"github.com/pintoo555/SyncERP-sub001/internal/config"
	"github.com/pintoo555/SyncERP-sub001/internal/database"
	"github.com/pintoo555/SyncERP-sub001/internal/models"
	"github.com/pintoo555/SyncERP-sub001/internal/seeds"
)

func main() {
	config.LoadConfig()
	database.Connect()

	log.Println("🔄 Running migrations (just in case)...")
	if err := database.DB.AutoMigrate(
		&models.User{},
		&models.Message{},
		&models.MessageReaction{},
	); err != nil {
		log.Fatalf("❌ Migration failed: %v", err)
	}

	users, err := seeds.DemoUsers()
	if err != nil {
		log.Fatalf("❌ Failed to seed users: %v", err)
	}

	if err := seeds.DemoConversation(users); err != nil {
		log.Fatalf("❌ Failed to seed conversation: %v", err)
	}

	log.Println("✅ Seeding Complete!")
}
