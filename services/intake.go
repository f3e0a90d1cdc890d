package services

import (
	"context"
	"errors"
	"os"
	"strconv"
	"strings"

	"milda_bot/db"
	"milda_bot/models"
	"milda_bot/monitoring"
	"milda_bot/render"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

var Categories = []string{
	"Problèmes d'Utilisateur & d'Accès",
	"Problèmes de Collecte & Soumission de Données",
	"Problèmes de Synchronisation & Connectivité",
	"Problèmes de Performance d'Appareil & d'Application",
	"Problèmes de Rapports & Tableaux de Bord",
}

var Priorities = []string{"Urgent", "Moyen", "Faible"}

var affirmative = map[string]bool{"oui": true, "yes": true}

const (
	welcomeText = "👋 Bienvenue au chatbot de Support de la Campagne MILDA Guinée ! 🇬🇳\n\n" +
		"Ce bot est conçu pour vous aider à enregistrer et résoudre les problèmes liés à la campagne MILDA en Guinée.\n\n" +
		"Notre objectif est de garantir que toutes les préoccupations soient traitées rapidement et efficacement.\n\n" +
		"Pour plus d'informations, contactez DIMAGI \n\n" +
		"Veuillez sélectionner la catégorie de votre problème :"
	askDescription = "Veuillez décrire votre problème en détail:"
	askPriority    = "Veuillez sélectionner le niveau de priorité:"

	// mintAttempts bounds how many ids are tried before giving up on a
	// collision streak.
	mintAttempts = 3
)

var errNoUniqueID = errors.New("no unique ticket id after retries")

func categoryKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(Categories[0]), tgbotapi.NewKeyboardButton(Categories[1])),
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(Categories[2]), tgbotapi.NewKeyboardButton(Categories[3])),
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(Categories[4])),
	)
	kb.OneTimeKeyboard = true
	return kb
}

func priorityKeyboard() tgbotapi.ReplyKeyboardMarkup {
	rows := make([][]tgbotapi.KeyboardButton, 0, len(Priorities))
	for _, p := range Priorities {
		rows = append(rows, tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(p)))
	}
	kb := tgbotapi.NewReplyKeyboard(rows...)
	kb.OneTimeKeyboard = true
	return kb
}

// startIntake opens a fresh draft for the chat, replacing any abandoned one.
func (b *Bot) startIntake(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	b.log.Info("start command received", "chat_id", chatID)
	b.drafts.Begin(chatID, b.now())

	b.sendWelcomePhotos(ctx, chatID)

	welcome := tgbotapi.NewMessage(chatID, welcomeText)
	welcome.ReplyMarkup = categoryKeyboard()
	if _, err := b.send(ctx, welcome); err != nil {
		b.log.Error("send welcome message failed", "chat_id", chatID, "error", err)
		b.drafts.Delete(chatID)
	}
}

// sendWelcomePhotos is best effort: a missing file or failed upload is
// logged and the conversation carries on.
func (b *Bot) sendWelcomePhotos(ctx context.Context, chatID int64) {
	for _, path := range b.photos {
		if _, err := os.Stat(path); err != nil {
			b.log.Warn("welcome image not found", "path", path, "error", err)
			continue
		}
		if _, err := b.send(ctx, tgbotapi.NewPhoto(chatID, tgbotapi.FilePath(path))); err != nil {
			b.log.Warn("send welcome image failed", "path", path, "chat_id", chatID, "error", err)
		}
	}
}

// continueIntake feeds one free-text answer to the session's current stage.
func (b *Bot) continueIntake(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	d, ok := b.drafts.Get(chatID)
	if !ok {
		return
	}
	text := msg.Text
	d.UpdatedAt = b.now()

	switch d.Stage {
	case StageCategory:
		d.Category = text
		d.ChatID = chatID
		d.Timestamp = models.FormatTimestamp(b.now())
		if msg.From != nil {
			d.Username = msg.From.UserName
		}
		d.Stage = StageDescription
		b.drafts.Put(d)
		b.reply(ctx, chatID, askDescription, tgbotapi.NewRemoveKeyboard(true))

	case StageDescription:
		d.Description = text
		d.Stage = StagePriority
		b.drafts.Put(d)
		b.reply(ctx, chatID, askPriority, priorityKeyboard())

	case StagePriority:
		d.Priority = text
		d.Stage = StageConfirm
		b.drafts.Put(d)
		if _, err := b.sendRendered(ctx, chatID, confirmationMessage(d), tgbotapi.NewRemoveKeyboard(true)); err != nil {
			b.log.Error("send confirmation summary failed", "chat_id", chatID, "error", err)
		}

	case StageConfirm:
		b.drafts.Delete(chatID)
		if affirmative[strings.ToLower(strings.TrimSpace(text))] {
			b.createTicket(ctx, d)
			return
		}
		monitoring.TrackTicket("cancelled")
		m := render.New().Bold("❌ Création de ticket annulée.").Text("\nPour recommencer, utilisez /start")
		if _, err := b.sendRendered(ctx, chatID, m, nil); err != nil {
			b.log.Error("send cancellation failed", "chat_id", chatID, "error", err)
		}
	}
}

func confirmationMessage(d Draft) *render.Message {
	return render.New().
		Line("Veuillez confirmer les détails de votre ticket:").
		Line("").
		Field("", "Catégorie", ": ", d.Category).
		Field("", "Description", ": ", d.Description).
		Field("", "Priorité", ": ", d.Priority).
		Line("").
		Text("Répondez 'oui' pour confirmer ou 'non' pour annuler.")
}

// createTicket persists a confirmed draft. A failed write ends the
// conversation with nothing stored and no email sent.
func (b *Bot) createTicket(ctx context.Context, d Draft) {
	chatID := d.ChatID

	id, err := b.mintID(ctx)
	if err != nil {
		b.log.Error("mint ticket id failed", "chat_id", chatID, "error", err)
		monitoring.TrackTicket("failed")
		b.sendFailure(ctx, chatID)
		return
	}

	t := models.Ticket{
		ID:          id,
		Timestamp:   d.Timestamp,
		ChatID:      strconv.FormatInt(chatID, 10),
		Category:    d.Category,
		Description: d.Description,
		Priority:    d.Priority,
		Status:      models.StatusOpen,
	}
	if t.Timestamp == "" {
		t.Timestamp = models.FormatTimestamp(b.now())
	}

	if err := b.store.Append(ctx, t); err != nil {
		b.log.Error("store ticket failed", "ticket_id", id, "chat_id", chatID, "error", err)
		monitoring.TrackTicket("failed")
		b.sendFailure(ctx, chatID)
		return
	}
	b.log.Info("ticket created", "ticket_id", id, "chat_id", chatID, "user", d.Username, "priority", d.Priority)
	monitoring.TrackTicket("created")

	b.notifier.TicketCreated(ctx, t)

	m := render.New().
		Bold("✅ Ticket créé avec succès!").Text("\n").
		Text("Votre numéro de ticket est: ").Bold(id).Text("\n\n").
		Text("Pour vérifier le statut: /status " + id + "\n").
		Text("Pour soumettre un nouveau ticket: /start")
	if _, err := b.sendRendered(ctx, chatID, m, nil); err != nil {
		b.log.Error("send ticket confirmation failed", "ticket_id", id, "chat_id", chatID, "error", err)
	}
}

func (b *Bot) sendFailure(ctx context.Context, chatID int64) {
	m := render.New().Bold("❌ Erreur lors de la création du ticket.").Text("\nVeuillez réessayer plus tard.")
	if _, err := b.sendRendered(ctx, chatID, m, nil); err != nil {
		b.log.Error("send failure notice failed", "chat_id", chatID, "error", err)
	}
}

// mintID returns an id not yet present in the store. If the lookup itself
// fails the fresh id is used as is.
func (b *Bot) mintID(ctx context.Context) (string, error) {
	for i := 0; i < mintAttempts; i++ {
		id := b.ids.Next()
		_, err := b.store.FindByID(ctx, id)
		if errors.Is(err, db.ErrNotFound) {
			return id, nil
		}
		if err != nil {
			b.log.Warn("ticket id uniqueness check failed, using id unchecked", "ticket_id", id, "error", err)
			return id, nil
		}
		b.log.Warn("ticket id collision, minting another", "ticket_id", id)
	}
	return "", errNoUniqueID
}
