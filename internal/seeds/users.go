package seeds

import (
	"log"
	"time"

	"github.com/pintoo555/SyncERP-sub001/internal/database"
	"github.com/pintoo555/SyncERP-sub001/internal/models"
	"github.com/pintoo555/SyncERP-sub001/pkg/utils"
)

// DemoUsers creates a small set of users for local development. Existing
// users with the same username are reused so the seeder stays idempotent.
func DemoUsers() ([]models.User, error) {
	log.Println("👤 Seeding Demo Users...")

	profiles := []models.User{
		{Username: "asha", Name: "Asha Nair", Email: "asha@syncerp.local"},
		{Username: "ravi", Name: "Ravi Patel", Email: "ravi@syncerp.local"},
		{Username: "meera", Name: "Meera Iyer", Email: "meera@syncerp.local"},
	}

	users := make([]models.User, 0, len(profiles))
	for _, p := range profiles {
		var user models.User
		err := database.DB.Where("username = ?", p.Username).First(&user).Error
		if err == nil {
			log.Printf("   ✅ User exists: %s", user.Username)
			users = append(users, user)
			continue
		}

		user = p
		user.ID = utils.GenerateID()
		user.Image = "https://api.dicebear.com/7.x/identicon/svg?seed=" + p.Username
		user.CreatedAt = time.Now()
		user.UpdatedAt = time.Now()
		if err := database.DB.Create(&user).Error; err != nil {
			return nil, err
		}
		log.Printf("   ✅ User Created: %s", user.Username)
		users = append(users, user)
	}
	return users, nil
}
