package services

import (
	"context"
	"sync"

	"milda_bot/monitoring"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Sessions runs updates for each chat one at a time, in arrival order,
// while different chats proceed in parallel. A chat's worker exits as soon
// as its queue drains and is started again by the next update.
type Sessions struct {
	handle func(ctx context.Context, u tgbotapi.Update)

	mu     sync.Mutex
	queues map[int64]*sessionQueue
	wg     sync.WaitGroup
}

type sessionQueue struct {
	pending []tgbotapi.Update
}

func NewSessions(handle func(ctx context.Context, u tgbotapi.Update)) *Sessions {
	return &Sessions{
		handle: handle,
		queues: make(map[int64]*sessionQueue),
	}
}

// Dispatch queues u behind earlier updates from the same chat. It never
// blocks on the handler.
func (s *Sessions) Dispatch(ctx context.Context, u tgbotapi.Update) {
	chatID, ok := updateChatID(u)
	if !ok {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handle(ctx, u)
		}()
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if q, running := s.queues[chatID]; running {
		q.pending = append(q.pending, u)
		return
	}
	q := &sessionQueue{pending: []tgbotapi.Update{u}}
	s.queues[chatID] = q
	s.wg.Add(1)
	monitoring.SessionStarted()
	go s.work(ctx, chatID, q)
}

func (s *Sessions) work(ctx context.Context, chatID int64, q *sessionQueue) {
	defer s.wg.Done()
	defer monitoring.SessionEnded()
	for {
		s.mu.Lock()
		if len(q.pending) == 0 {
			delete(s.queues, chatID)
			s.mu.Unlock()
			return
		}
		u := q.pending[0]
		q.pending = q.pending[1:]
		s.mu.Unlock()

		s.handle(ctx, u)
	}
}

// Active is the number of chats with a running worker.
func (s *Sessions) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queues)
}

// Wait blocks until every queued update has been handled.
func (s *Sessions) Wait() {
	s.wg.Wait()
}
