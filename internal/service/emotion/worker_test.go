package emotion

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/heartlog/backend/internal/model/chat"
	"github.com/zhouzirui/heartlog/backend/internal/realtime"
	"github.com/zhouzirui/heartlog/backend/internal/store/memory"
)

func seedMessage(t *testing.T, st *memory.Store, id, content string) chat.Message {
	t.Helper()
	ctx := context.Background()
	if _, err := st.GetChat(ctx, "c1"); err != nil {
		require.NoError(t, st.CreateChat(ctx, chat.Chat{ID: "c1", UserID: "u1", Type: chat.TypePersonalAI, Name: "Diary", CreatedAt: time.Now()}))
	}
	m := chat.Message{ID: id, ChatID: "c1", Role: chat.RoleUser, Content: content, CreatedAt: time.Now()}
	require.NoError(t, st.CreateMessage(ctx, m))
	return m
}

func TestWorkerClassifiesAndPublishes(t *testing.T) {
	st := memory.New()
	hub := realtime.NewHub(4)
	events, cancel := hub.Subscribe("u1")
	defer cancel()

	w := NewWorker(NewService(nil, Config{}), st, hub, 2, 8)
	w.Start(context.Background())
	defer w.Stop()

	m := seedMessage(t, st, "m1", "I am so happy")
	require.True(t, w.Enqueue(Job{MessageID: m.ID, ChatID: m.ChatID, Content: m.Content}))

	select {
	case ev := <-events:
		assert.Equal(t, realtime.EventEmotion, ev.Type)
		assert.Equal(t, "m1", ev.MessageID)
		assert.Equal(t, "joy", ev.Emotion)
	case <-time.After(2 * time.Second):
		t.Fatal("no emotion event published")
	}

	got, err := st.GetMessage(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, "joy", got.EmotionLabel())
}

func TestWorkerQueueFullDrops(t *testing.T) {
	w := NewWorker(NewService(nil, Config{}), memory.New(), nil, 1, 1)

	assert.True(t, w.Enqueue(Job{MessageID: "a", Content: "x"}))
	assert.True(t, w.Enqueue(Job{MessageID: "a", Content: "x"}), "duplicate is accepted without queueing twice")
	assert.False(t, w.Enqueue(Job{MessageID: "b", Content: "y"}))
	assert.False(t, w.Enqueue(Job{Content: "no id"}))
	assert.Equal(t, 1, w.Pending())
}

func TestBackfillEnqueuesUnclassified(t *testing.T) {
	st := memory.New()
	seedMessage(t, st, "m1", "sad day")
	seedMessage(t, st, "m2", "fine")
	require.NoError(t, st.UpdateMessageEmotion(context.Background(), "m2", "neutral", 0.5))
	seedMessage(t, st, "m3", "wow")

	w := NewWorker(NewService(nil, Config{}), st, nil, 1, 8)
	b := NewBackfill(st, w, "", 10)

	assert.Equal(t, 2, b.RunOnce(context.Background()))
	assert.Equal(t, 2, w.Pending())

	w.Start(context.Background())
	defer w.Stop()
	require.Eventually(t, func() bool {
		left, err := st.ListUnclassified(context.Background(), 10)
		return err == nil && len(left) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestBackfillRejectsBadSpec(t *testing.T) {
	b := NewBackfill(memory.New(), NewWorker(NewService(nil, Config{}), memory.New(), nil, 1, 1), "every now and then", 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	assert.Error(t, b.Run(ctx))
}
