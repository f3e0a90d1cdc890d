package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"milda_bot/db"
	"milda_bot/models"
	"milda_bot/workpool"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

var errRemote = errors.New("remote unavailable")

// fakeMessenger records every outbound call. rejectRich makes Telegram
// refuse MarkdownV2, failChats makes every send to those chats fail.
type fakeMessenger struct {
	mu         sync.Mutex
	sent       []tgbotapi.Chattable
	requests   []tgbotapi.Chattable
	rejectRich bool
	failEdits  bool
	failChats  map[int64]bool
	nextID     int
}

func (f *fakeMessenger) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var chatID int64
	switch m := c.(type) {
	case tgbotapi.MessageConfig:
		chatID = m.ChatID
		if f.rejectRich && m.ParseMode != "" {
			return tgbotapi.Message{}, errors.New("Bad Request: can't parse entities")
		}
	case tgbotapi.PhotoConfig:
		chatID = m.ChatID
	}
	if f.failChats[chatID] {
		return tgbotapi.Message{}, errRemote
	}
	f.sent = append(f.sent, c)
	f.nextID++
	return tgbotapi.Message{MessageID: f.nextID, Chat: &tgbotapi.Chat{ID: chatID}}, nil
}

func (f *fakeMessenger) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if e, ok := c.(tgbotapi.EditMessageTextConfig); ok {
		if f.failEdits || (f.rejectRich && e.ParseMode != "") {
			return nil, errors.New("Bad Request: can't parse entities")
		}
	}
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

// messages returns the text messages sent to chatID, oldest first.
func (f *fakeMessenger) messages(chatID int64) []tgbotapi.MessageConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []tgbotapi.MessageConfig
	for _, c := range f.sent {
		if m, ok := c.(tgbotapi.MessageConfig); ok && m.ChatID == chatID {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakeMessenger) lastText(chatID int64) string {
	msgs := f.messages(chatID)
	if len(msgs) == 0 {
		return ""
	}
	return msgs[len(msgs)-1].Text
}

func (f *fakeMessenger) photos() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.sent {
		if _, ok := c.(tgbotapi.PhotoConfig); ok {
			n++
		}
	}
	return n
}

func (f *fakeMessenger) edits() []tgbotapi.EditMessageTextConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []tgbotapi.EditMessageTextConfig
	for _, c := range f.requests {
		if e, ok := c.(tgbotapi.EditMessageTextConfig); ok {
			out = append(out, e)
		}
	}
	return out
}

func (f *fakeMessenger) callbacksAnswered() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.requests {
		if _, ok := c.(tgbotapi.CallbackConfig); ok {
			n++
		}
	}
	return n
}

type recordingNotifier struct {
	mu      sync.Mutex
	tickets []models.Ticket
}

func (r *recordingNotifier) TicketCreated(_ context.Context, t models.Ticket) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tickets = append(r.tickets, t)
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tickets)
}

// faultyStore injects errors in front of a working store.
type faultyStore struct {
	db.RowStore
	appendErr error
	findErr   error
	readErr   error
	updateErr error
	findPanic bool
}

func (s *faultyStore) Append(ctx context.Context, t models.Ticket) error {
	if s.appendErr != nil {
		return s.appendErr
	}
	return s.RowStore.Append(ctx, t)
}

func (s *faultyStore) FindByID(ctx context.Context, id string) (models.Row, error) {
	if s.findPanic {
		panic("index out of range")
	}
	if s.findErr != nil {
		return models.Row{}, s.findErr
	}
	return s.RowStore.FindByID(ctx, id)
}

func (s *faultyStore) ReadAll(ctx context.Context) ([]models.Row, error) {
	if s.readErr != nil {
		return nil, s.readErr
	}
	return s.RowStore.ReadAll(ctx)
}

func (s *faultyStore) UpdateStatus(ctx context.Context, location int, status models.Status) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	return s.RowStore.UpdateStatus(ctx, location, status)
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var testNow = time.Date(2024, 11, 5, 9, 30, 0, 0, time.UTC)

// fixedMinter yields T042AA, T043AA, ...
func fixedMinter() *IDMinter {
	return &IDMinter{counter: 41, intn: func(int) int { return 0 }}
}

type harness struct {
	bot      *Bot
	api      *fakeMessenger
	store    *db.MemoryStore
	notifier *recordingNotifier
}

func newHarness(t *testing.T, seed ...models.Ticket) *harness {
	t.Helper()
	h := &harness{
		api:      &fakeMessenger{},
		store:    db.NewMemoryStore(seed...),
		notifier: &recordingNotifier{},
	}
	h.bot = h.newBot(h.store)
	return h
}

func (h *harness) newBot(store db.RowStore) *Bot {
	return NewBot(Deps{
		API:      h.api,
		Store:    store,
		Notifier: h.notifier,
		Pool:     workpool.New(4),
		Logger:   discard(),
		Now:      func() time.Time { return testNow },
		IDs:      fixedMinter(),
	})
}

func textUpdate(chatID int64, text string) tgbotapi.Update {
	msg := &tgbotapi.Message{
		Text: text,
		Chat: &tgbotapi.Chat{ID: chatID},
		From: &tgbotapi.User{ID: chatID, UserName: "agent"},
	}
	if strings.HasPrefix(text, "/") {
		cmdLen := len(text)
		if i := strings.IndexByte(text, ' '); i >= 0 {
			cmdLen = i
		}
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: cmdLen}}
	}
	return tgbotapi.Update{Message: msg}
}

func callbackUpdate(chatID int64, messageID int, data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb-1",
		From:    &tgbotapi.User{ID: chatID},
		Data:    data,
		Message: &tgbotapi.Message{MessageID: messageID, Chat: &tgbotapi.Chat{ID: chatID}},
	}}
}

func (h *harness) say(chatID int64, texts ...string) {
	for _, text := range texts {
		h.bot.HandleUpdate(context.Background(), textUpdate(chatID, text))
	}
}
