package integration

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/pintoo555/SyncERP-sub001/internal/config"
	"github.com/pintoo555/SyncERP-sub001/internal/database"
	"github.com/pintoo555/SyncERP-sub001/internal/models"
	"github.com/pintoo555/SyncERP-sub001/internal/routes"
	"github.com/pintoo555/SyncERP-sub001/pkg/utils"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	// Init Config for JWT
	config.AppConfig = &config.Config{
		JWTSecret: "test_secret_key_12345",
	}

	testDB, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to open test DB: %v", err)
	}

	if err := testDB.AutoMigrate(
		&models.User{},
		&models.Message{},
		&models.MessageReaction{},
	); err != nil {
		t.Fatalf("Failed to migrate test DB: %v", err)
	}

	// Handlers use the global database.DB
	database.DB = testDB
	return testDB
}

func setupChatRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	api := r.Group("/api")
	routes.RegisterChatRoutes(api)
	return r
}

// createTestUser inserts a user and returns a valid bearer token for it.
func createTestUser(t *testing.T, id string) string {
	t.Helper()
	user := models.User{ID: id, Username: id, Email: id + "@syncerp.local"}
	if err := database.DB.FirstOrCreate(&user, "id = ?", id).Error; err != nil {
		t.Fatalf("Failed to create test user %s: %v", id, err)
	}
	token, err := utils.GenerateToken(id)
	if err != nil {
		t.Fatalf("Failed to generate token for %s: %v", id, err)
	}
	return token
}

func performRequest(r *gin.Engine, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}
