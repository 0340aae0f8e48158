package services

import (
	"testing"

	"github.com/pintoo555/SyncERP-sub001/internal/database"
	"github.com/pintoo555/SyncERP-sub001/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// SetupTestDB initializes an in-memory SQLite DB shared across the package's
// tests. Tests isolate themselves with per-test user IDs.
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

func seedUsers(t *testing.T, ids ...string) {
	t.Helper()
	for _, id := range ids {
		user := models.User{ID: id, Username: id, Email: id + "@example.com"}
		if err := database.DB.FirstOrCreate(&user, "id = ?", id).Error; err != nil {
			t.Fatalf("failed to seed user %s: %v", id, err)
		}
	}
}

type pushRecord struct {
	UserID string
	Event  string
	Data   map[string]interface{}
}

// recordPushes swaps the realtime emit hook for a recorder for the duration
// of the test.
func recordPushes(t *testing.T) *[]pushRecord {
	t.Helper()
	var pushes []pushRecord
	prev := Emit
	Emit = func(userID, event string, data map[string]interface{}) {
		pushes = append(pushes, pushRecord{UserID: userID, Event: event, Data: data})
	}
	t.Cleanup(func() { Emit = prev })
	return &pushes
}

func mustSend(t *testing.T, from, to, body string) *models.Message {
	t.Helper()
	msg, err := SendMessage(from, to, SendInput{Body: body})
	if err != nil {
		t.Fatalf("send %s -> %s failed: %v", from, to, err)
	}
	return msg
}
