package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"milda_bot/db"
	"milda_bot/models"
	"milda_bot/monitoring"
	"milda_bot/render"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const resolutionPrefix = "resolved_"

const (
	ResponseYes = "yes"
	ResponseNo  = "no"
)

var ErrBadPayload = errors.New("malformed resolution payload")

// ResolutionPayload builds the callback data for one button of a
// resolution prompt. Ticket ids never contain the separator.
func ResolutionPayload(response, ticketID string) string {
	return resolutionPrefix + response + "_" + ticketID
}

// ParseResolutionPayload splits resolved_{yes|no}_{id}.
func ParseResolutionPayload(data string) (response, ticketID string, err error) {
	parts := strings.SplitN(data, "_", 3)
	if len(parts) != 3 || parts[0]+"_" != resolutionPrefix || parts[2] == "" {
		return "", "", fmt.Errorf("%w: %q", ErrBadPayload, data)
	}
	switch parts[1] {
	case ResponseYes, ResponseNo:
		return parts[1], parts[2], nil
	}
	return "", "", fmt.Errorf("%w: %q", ErrBadPayload, data)
}

// Transition is the status a row moves to when the reporter answers. The
// stored status does not change the outcome: a late or repeated tap still
// records the latest answer.
func Transition(_ models.Status, response string) models.Status {
	if response == ResponseYes {
		return models.StatusConfirmedResolved
	}
	return models.StatusReopened
}

func closedMessage() *render.Message {
	return render.New().
		Bold("✅ Ticket Fermé avec Succès").Text("\n\n").
		Bold("Merci pour votre confirmation.").Text(" Votre ticket est maintenant définitivement fermé.\n").
		Text("Si vous rencontrez un nouveau problème, n'hésitez pas à créer un nouveau ticket avec /start")
}

func reopenedMessage() *render.Message {
	return render.New().
		Bold("🔄 Ticket Rouvert").Text("\n\n").
		Bold("Nous avons rouvert votre ticket.").Text(" Notre équipe va reprendre le traitement dès que possible.\n").
		Text("Nous vous tiendrons informé de l'avancement.")
}

func confirmErrorMessage() *render.Message {
	return render.New().Bold("Une erreur s'est produite.").Text("\nVeuillez réessayer plus tard.")
}

// confirmResolution applies the reporter's answer to a resolution prompt.
func (b *Bot) confirmResolution(ctx context.Context, q *tgbotapi.CallbackQuery) {
	if err := b.request(ctx, tgbotapi.NewCallback(q.ID, "")); err != nil {
		b.log.Warn("answer callback failed", "error", err)
	}

	var chatID int64
	var messageID int
	if q.Message != nil && q.Message.Chat != nil {
		chatID, messageID = q.Message.Chat.ID, q.Message.MessageID
	} else if q.From != nil {
		chatID = q.From.ID
	}

	response, id, err := ParseResolutionPayload(q.Data)
	if err != nil {
		b.log.Warn("ignoring resolution callback", "error", err)
		monitoring.TrackConfirmation("invalid", err)
		return
	}
	log := b.log.With("ticket_id", id, "response", response, "chat_id", chatID)

	err = b.applyResolution(ctx, id, response)
	monitoring.TrackConfirmation(response, err)
	if err != nil {
		log.Error("apply resolution answer failed", "error", err)
		b.notifyConfirmFailure(ctx, chatID, messageID)
		return
	}
	log.Info("resolution answer recorded")

	m := reopenedMessage()
	if response == ResponseYes {
		m = closedMessage()
	}
	if messageID == 0 {
		if _, err := b.sendRendered(ctx, chatID, m, nil); err != nil {
			log.Error("send resolution reply failed", "error", err)
		}
		return
	}
	if err := b.editRendered(ctx, chatID, messageID, m); err != nil {
		log.Error("edit resolution prompt failed", "error", err)
		b.notifyConfirmFailure(ctx, chatID, messageID)
	}
}

func (b *Bot) applyResolution(ctx context.Context, id, response string) error {
	row, err := b.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return fmt.Errorf("ticket %s: %w", id, err)
		}
		return fmt.Errorf("lookup ticket %s: %w", id, err)
	}
	target := Transition(row.Ticket.Status, response)
	if row.Ticket.Status == target {
		return nil
	}
	if err := b.store.UpdateStatus(ctx, row.Location, target); err != nil {
		return fmt.Errorf("update ticket %s to %q: %w", id, target, err)
	}
	return nil
}

// notifyConfirmFailure edits the prompt into an error notice, or sends a
// fresh message when the edit is impossible.
func (b *Bot) notifyConfirmFailure(ctx context.Context, chatID int64, messageID int) {
	if chatID == 0 {
		return
	}
	if messageID != 0 {
		err := b.editRendered(ctx, chatID, messageID, confirmErrorMessage())
		if err == nil {
			return
		}
		b.log.Warn("edit error notice failed, sending new message", "chat_id", chatID, "error", err)
	}
	if _, err := b.sendRendered(ctx, chatID, confirmErrorMessage(), nil); err != nil {
		b.log.Error("send error notice failed", "chat_id", chatID, "error", err)
	}
}
