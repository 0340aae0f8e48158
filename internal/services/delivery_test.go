package services

import (
	"testing"

	"github.com/pintoo555/SyncERP-sub001/internal/database"
	"github.com/pintoo555/SyncERP-sub001/internal/models"
	"github.com/stretchr/testify/assert"
)

func reload(t *testing.T, id int64) models.Message {
	t.Helper()
	var msg models.Message
	if err := database.DB.First(&msg, id).Error; err != nil {
		t.Fatalf("reload message %d: %v", id, err)
	}
	return msg
}

func TestMarkDeliveredIdempotent(t *testing.T) {
	SetupTestDB(t)
	seedUsers(t, "mdel_1", "mdel_2")

	msg := mustSend(t, "mdel_1", "mdel_2", "hello")
	pushes := recordPushes(t)

	updated, at, err := MarkDelivered("mdel_2", "mdel_1", []int64{msg.ID})
	assert.NoError(t, err)
	assert.Equal(t, []int64{msg.ID}, updated)
	assert.False(t, at.IsZero())

	stored := reload(t, msg.ID)
	if assert.NotNil(t, stored.DeliveredAt) {
		assert.False(t, stored.SentAt.After(*stored.DeliveredAt))
	}
	assert.Nil(t, stored.ReadAt)

	// Second call changes nothing and emits nothing
	updated, _, err = MarkDelivered("mdel_2", "mdel_1", []int64{msg.ID})
	assert.NoError(t, err)
	assert.Empty(t, updated)

	deliveredPushes := 0
	for _, p := range *pushes {
		if p.Event == EventMessageDelivered {
			deliveredPushes++
			assert.Equal(t, "mdel_1", p.UserID)
		}
	}
	assert.Equal(t, 1, deliveredPushes)
}

func TestMarkDeliveredOnlyAffectsCallerAsReceiver(t *testing.T) {
	SetupTestDB(t)
	seedUsers(t, "mrecv_1", "mrecv_2")

	outgoing := mustSend(t, "mrecv_1", "mrecv_2", "mine")
	incoming := mustSend(t, "mrecv_2", "mrecv_1", "theirs")

	// mrecv_1 trying to mark their own outgoing message is silently ignored
	updated, _, err := MarkDelivered("mrecv_1", "mrecv_2", []int64{outgoing.ID, incoming.ID})
	assert.NoError(t, err)
	assert.Equal(t, []int64{incoming.ID}, updated)

	assert.Nil(t, reload(t, outgoing.ID).DeliveredAt)
	assert.NotNil(t, reload(t, incoming.ID).DeliveredAt)
}

func TestMarkReadBackfillsDelivered(t *testing.T) {
	SetupTestDB(t)
	seedUsers(t, "mread_1", "mread_2")

	msg := mustSend(t, "mread_1", "mread_2", "read me")
	pushes := recordPushes(t)

	updated, at, err := MarkRead("mread_2", "mread_1", []int64{msg.ID})
	assert.NoError(t, err)
	assert.Equal(t, []int64{msg.ID}, updated)

	stored := reload(t, msg.ID)
	if assert.NotNil(t, stored.ReadAt) && assert.NotNil(t, stored.DeliveredAt) {
		// Backfill uses one timestamp for both columns
		assert.Equal(t, stored.DeliveredAt.Unix(), stored.ReadAt.Unix())
		assert.Equal(t, at.Unix(), stored.ReadAt.Unix())
		assert.False(t, stored.DeliveredAt.After(*stored.ReadAt))
	}

	// One read push, no delivered push
	assert.Len(t, *pushes, 1)
	assert.Equal(t, EventMessageRead, (*pushes)[0].Event)
	assert.Equal(t, "mread_1", (*pushes)[0].UserID)
}

func TestMarkReadPreservesEarlierDelivery(t *testing.T) {
	SetupTestDB(t)
	seedUsers(t, "mpres_1", "mpres_2")

	msg := mustSend(t, "mpres_1", "mpres_2", "two-step")

	_, deliveredAt, err := MarkDelivered("mpres_2", "mpres_1", []int64{msg.ID})
	assert.NoError(t, err)

	pushes := recordPushes(t)
	updated, _, err := MarkRead("mpres_2", "mpres_1", []int64{msg.ID})
	assert.NoError(t, err)
	assert.Equal(t, []int64{msg.ID}, updated)

	stored := reload(t, msg.ID)
	if assert.NotNil(t, stored.DeliveredAt) {
		// The earlier delivery timestamp survives the read
		assert.Equal(t, deliveredAt.Unix(), stored.DeliveredAt.Unix())
	}

	// Marking read again is a no-op with no push
	updated, _, err = MarkRead("mpres_2", "mpres_1", []int64{msg.ID})
	assert.NoError(t, err)
	assert.Empty(t, updated)

	readPushes := 0
	for _, p := range *pushes {
		if p.Event == EventMessageRead {
			readPushes++
		}
	}
	assert.Equal(t, 1, readPushes)
}

func TestMarkAllRead(t *testing.T) {
	SetupTestDB(t)
	seedUsers(t, "mall_1", "mall_2")
	pushes := recordPushes(t)

	var ids []int64
	for _, body := range []string{"a", "b", "c"} {
		ids = append(ids, mustSend(t, "mall_1", "mall_2", body).ID)
	}

	updated, _, err := MarkAllRead("mall_2", "mall_1")
	assert.NoError(t, err)
	assert.ElementsMatch(t, ids, updated)

	count, err := UnreadCount("mall_2")
	assert.NoError(t, err)
	assert.Zero(t, count)

	// Presence side effect: the reader's last-seen marker moved
	var reader models.User
	assert.NoError(t, database.DB.First(&reader, "id = ?", "mall_2").Error)
	assert.NotNil(t, reader.LastSeenAt)

	// One batched push for the whole set, not one per message
	readPushes := 0
	for _, p := range *pushes {
		if p.Event == EventMessageRead {
			readPushes++
			assert.Len(t, p.Data["messageIds"], 3)
		}
	}
	assert.Equal(t, 1, readPushes)
}

// Full lifecycle: send, deliver, read, with one push per transition.
func TestMessageLifecycleScenario(t *testing.T) {
	SetupTestDB(t)
	seedUsers(t, "life_1", "life_2")
	pushes := recordPushes(t)

	msg := mustSend(t, "life_1", "life_2", "hello")
	assert.Nil(t, msg.DeliveredAt)
	assert.Nil(t, msg.ReadAt)

	updated, _, err := MarkDelivered("life_2", "life_1", []int64{msg.ID})
	assert.NoError(t, err)
	assert.Len(t, updated, 1)

	updated, _, err = MarkRead("life_2", "life_1", []int64{msg.ID})
	assert.NoError(t, err)
	assert.Len(t, updated, 1)

	stored := reload(t, msg.ID)
	assert.NotNil(t, stored.DeliveredAt)
	assert.NotNil(t, stored.ReadAt)
	assert.False(t, stored.DeliveredAt.After(*stored.ReadAt))

	var events []string
	for _, p := range *pushes {
		events = append(events, p.Event)
	}
	assert.Equal(t, []string{EventMessageNew, EventMessageDelivered, EventMessageRead}, events)
}
