package seeds

import (
	"fmt"
	"log"

	"github.com/pintoo555/SyncERP-sub001/internal/models"
	"github.com/pintoo555/SyncERP-sub001/internal/services"
)

// DemoConversation walks a short exchange through the real service layer so
// the seeded data carries every state a client renders: sent, delivered,
// read, reacted, starred and pinned.
func DemoConversation(users []models.User) error {
	if len(users) < 3 {
		return fmt.Errorf("need at least 3 users, got %d", len(users))
	}
	asha, ravi, meera := users[0], users[1], users[2]

	log.Println("💬 Seeding Demo Conversation...")

	first, err := services.SendMessage(asha.ID, ravi.ID, services.SendInput{
		Body: "Morning! The Q3 purchase orders are ready for review.",
	})
	if err != nil {
		return err
	}

	reply, err := services.SendMessage(ravi.ID, asha.ID, services.SendInput{
		Body:      "On it. I will sign off before lunch.",
		ReplyToID: &first.ID,
	})
	if err != nil {
		return err
	}

	// Ravi has read Asha's message; Asha has only received Ravi's reply.
	if _, _, err := services.MarkAllRead(ravi.ID, asha.ID); err != nil {
		return err
	}
	if _, _, err := services.MarkDelivered(asha.ID, ravi.ID, []int64{reply.ID}); err != nil {
		return err
	}

	if _, err := services.SetReaction(reply.ID, asha.ID, "👍"); err != nil {
		return err
	}
	if err := services.StarMessage(first.ID, ravi.ID); err != nil {
		return err
	}
	if err := services.PinMessage(first.ID, asha.ID); err != nil {
		return err
	}

	// A second thread so the conversation list has something to sort.
	if _, err := services.SendMessage(meera.ID, asha.ID, services.SendInput{
		Body: "Inventory sync finished, no discrepancies this week.",
	}); err != nil {
		return err
	}

	log.Println("   ✅ Conversation seeded")
	return nil
}
