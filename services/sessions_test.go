package services

import (
	"context"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessions_KeepsPerChatOrder(t *testing.T) {
	var mu sync.Mutex
	seen := map[int64][]string{}
	s := NewSessions(func(_ context.Context, u tgbotapi.Update) {
		time.Sleep(time.Millisecond)
		mu.Lock()
		seen[u.Message.Chat.ID] = append(seen[u.Message.Chat.ID], u.Message.Text)
		mu.Unlock()
	})

	want := []string{"a", "b", "c", "d", "e"}
	for _, text := range want {
		s.Dispatch(context.Background(), textUpdate(1, text))
		s.Dispatch(context.Background(), textUpdate(2, text))
	}
	s.Wait()

	assert.Equal(t, want, seen[1])
	assert.Equal(t, want, seen[2])
	assert.Zero(t, s.Active())
}

func TestSessions_ChatsRunInParallel(t *testing.T) {
	release := make(chan struct{})
	second := make(chan struct{})
	s := NewSessions(func(_ context.Context, u tgbotapi.Update) {
		switch u.Message.Chat.ID {
		case 1:
			<-release
		case 2:
			close(second)
		}
	})

	s.Dispatch(context.Background(), textUpdate(1, "slow"))
	s.Dispatch(context.Background(), textUpdate(2, "fast"))

	select {
	case <-second:
	case <-time.After(time.Second):
		t.Fatal("chat 2 was blocked by chat 1")
	}
	require.Eventually(t, func() bool { return s.Active() == 1 }, time.Second, time.Millisecond)
	close(release)
	s.Wait()
	assert.Zero(t, s.Active())
}

func TestSessions_CallbacksShareTheChatQueue(t *testing.T) {
	var mu sync.Mutex
	var order []string
	s := NewSessions(func(_ context.Context, u tgbotapi.Update) {
		mu.Lock()
		defer mu.Unlock()
		if u.CallbackQuery != nil {
			order = append(order, "callback")
			return
		}
		order = append(order, u.Message.Text)
	})

	s.Dispatch(context.Background(), textUpdate(9, "first"))
	s.Dispatch(context.Background(), callbackUpdate(9, 1, "resolved_yes_T1"))
	s.Dispatch(context.Background(), textUpdate(9, "last"))
	s.Wait()

	require.Len(t, order, 3)
	assert.Equal(t, []string{"first", "callback", "last"}, order)
}
