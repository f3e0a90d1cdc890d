package services

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"milda_bot/db"
	"milda_bot/models"
	"milda_bot/render"
	"milda_bot/workpool"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	msgGenericError = "Une erreur s'est produite. Veuillez réessayer plus tard."
	msgUnknownCmd   = "❌ Commande inconnue. Utilisez /start pour créer un ticket ou /status <numéro_ticket> pour suivre un ticket."
	msgNoSession    = "Pour créer un nouveau ticket, utilisez /start.\nPour vérifier un ticket: /status <numéro_ticket>"
	msgStatusUsage  = "Veuillez fournir votre numéro de ticket. Exemple: /status <numéro_ticket>"
	msgNotFound     = "❌ Numéro de ticket non trouvé."
	msgStatusError  = "❌ Erreur lors de la vérification du statut du ticket. Veuillez réessayer plus tard."
	msgTextOnly     = "Veuillez répondre par un message texte."
)

// Notifier is told about every ticket written to the store.
type Notifier interface {
	TicketCreated(ctx context.Context, t models.Ticket)
}

type Deps struct {
	API      Messenger
	Store    db.RowStore
	Notifier Notifier
	Pool     *workpool.Pool
	Logger   *slog.Logger
	// AssetsDir holds the welcome images. Missing images are skipped.
	AssetsDir string
	Now       func() time.Time
	IDs       *IDMinter
}

// Bot handles chat updates: the intake conversation, /status lookups and
// answers to resolution prompts.
type Bot struct {
	*outbox
	store    db.RowStore
	notifier Notifier
	drafts   *DraftStore
	ids      *IDMinter
	now      func() time.Time
	photos   []string
}

func NewBot(d Deps) *Bot {
	now := d.Now
	if now == nil {
		now = time.Now
	}
	ids := d.IDs
	if ids == nil {
		ids = NewIDMinter(now())
	}
	var photos []string
	if d.AssetsDir != "" {
		photos = []string{filepath.Join(d.AssetsDir, "pnlp.png"), filepath.Join(d.AssetsDir, "commcare.png")}
	}
	return &Bot{
		outbox:   &outbox{api: d.API, pool: d.Pool, log: d.Logger.With("component", "bot")},
		store:    d.Store,
		notifier: d.Notifier,
		drafts:   NewDraftStore(),
		ids:      ids,
		now:      now,
		photos:   photos,
	}
}

func (b *Bot) Drafts() *DraftStore { return b.drafts }

// HandleUpdate routes one update. A panic in any handler is logged and the
// user gets a generic apology; the process keeps running.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("panic while handling update", "update_id", update.UpdateID, "panic", r, "stack", string(debug.Stack()))
			if chatID, ok := updateChatID(update); ok {
				b.reply(ctx, chatID, msgGenericError, nil)
			}
		}
	}()

	switch {
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	case update.CallbackQuery != nil:
		b.handleCallbackQuery(ctx, update.CallbackQuery)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	if msg.IsCommand() {
		switch msg.Command() {
		case "start":
			b.startIntake(ctx, msg)
		case "status":
			b.checkStatus(ctx, msg)
		default:
			b.reply(ctx, chatID, msgUnknownCmd, nil)
		}
		return
	}

	if _, ok := b.drafts.Get(chatID); ok {
		// Stickers, photos and voice notes carry no text and are not answers.
		if strings.TrimSpace(msg.Text) == "" {
			b.reply(ctx, chatID, msgTextOnly, nil)
			return
		}
		b.continueIntake(ctx, msg)
		return
	}
	b.reply(ctx, chatID, msgNoSession, nil)
}

func (b *Bot) handleCallbackQuery(ctx context.Context, q *tgbotapi.CallbackQuery) {
	if strings.HasPrefix(q.Data, resolutionPrefix) {
		b.confirmResolution(ctx, q)
		return
	}
	b.log.Warn("unhandled callback", "data", q.Data)
	if err := b.request(ctx, tgbotapi.NewCallback(q.ID, "")); err != nil {
		b.log.Error("answer callback failed", "error", err)
	}
}

// checkStatus answers /status <id>. It never touches the session draft.
func (b *Bot) checkStatus(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	args := strings.Fields(msg.CommandArguments())
	if len(args) == 0 {
		b.reply(ctx, chatID, msgStatusUsage, nil)
		return
	}
	id := strings.Trim(args[0], "<>")
	if id == "" {
		b.reply(ctx, chatID, msgStatusUsage, nil)
		return
	}

	row, err := b.store.FindByID(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		b.reply(ctx, chatID, msgNotFound, nil)
		return
	}
	if err != nil {
		b.log.Error("status lookup failed", "ticket_id", id, "chat_id", chatID, "error", err)
		b.reply(ctx, chatID, msgStatusError, nil)
		return
	}

	if _, err := b.sendRendered(ctx, chatID, statusMessage(row.Ticket), nil); err != nil {
		b.log.Error("send status failed", "ticket_id", id, "chat_id", chatID, "error", err)
	}
}

func statusMessage(t models.Ticket) *render.Message {
	return render.New().
		Line("📋 Détails du Ticket:").
		Line("").
		Field("🎫 ", "Numéro de Ticket", ": ", t.ID).
		Field("📝 ", "Catégorie", ": ", orNA(t.Category)).
		Field("📄 ", "Description", ": ", orNA(t.Description)).
		Field("⚡ ", "Priorité", ": ", orNA(t.Priority)).
		Field("📊 ", "Statut", ": ", orNA(string(t.Status)))
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}

func updateChatID(u tgbotapi.Update) (int64, bool) {
	switch {
	case u.Message != nil && u.Message.Chat != nil:
		return u.Message.Chat.ID, true
	case u.CallbackQuery != nil && u.CallbackQuery.Message != nil && u.CallbackQuery.Message.Chat != nil:
		return u.CallbackQuery.Message.Chat.ID, true
	case u.CallbackQuery != nil && u.CallbackQuery.From != nil:
		return u.CallbackQuery.From.ID, true
	}
	return 0, false
}
