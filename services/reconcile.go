package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"milda_bot/db"
	"milda_bot/models"
	"milda_bot/monitoring"
	"milda_bot/render"
	"milda_bot/workpool"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Reconciler finds tickets staff marked resolved and asks each reporter to
// confirm. Moving the row to AwaitingConfirmation after the prompt is what
// keeps the next pass from asking again.
type Reconciler struct {
	*outbox
	store    db.RowStore
	interval time.Duration
	firstRun time.Duration
}

func NewReconciler(api Messenger, store db.RowStore, pool *workpool.Pool, interval, firstRun time.Duration, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		outbox:   &outbox{api: api, pool: pool, log: logger.With("component", "reconciler")},
		store:    store,
		interval: interval,
		firstRun: firstRun,
	}
}

// Run repeats RunOnce every interval until ctx is done. A failed pass is
// logged and the next tick retries.
func (r *Reconciler) Run(ctx context.Context) {
	timer := time.NewTimer(r.firstRun)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		if _, err := r.RunOnce(ctx); err != nil && ctx.Err() == nil {
			r.log.Error("reconciliation pass failed", "error", err)
		}
		timer.Reset(r.interval)
	}
}

// RunOnce performs one pass and returns how many reporters were prompted.
// Only a failure to read the store aborts the pass.
func (r *Reconciler) RunOnce(ctx context.Context) (int, error) {
	r.log.Info("checking for resolved tickets")
	rows, err := r.store.ReadAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("read tickets: %w", err)
	}

	prompted := 0
	for _, row := range rows {
		if ctx.Err() != nil {
			return prompted, ctx.Err()
		}
		chatID, ok, err := promptTarget(row.Ticket)
		if err != nil {
			r.log.Warn("resolved ticket has an unusable chat id, skipping", "ticket_id", row.Ticket.ID, "row", row.Location, "error", err)
			continue
		}
		if !ok {
			continue
		}
		if err := r.prompt(ctx, row, chatID); err != nil {
			r.log.Error("resolution prompt failed", "ticket_id", row.Ticket.ID, "row", row.Location, "error", err)
			continue
		}
		prompted++
	}
	r.log.Info("reconciliation pass complete", "prompted", prompted)
	return prompted, nil
}

// promptTarget reports whether t awaits a resolution prompt and to which
// chat. A resolved row whose chat id does not parse returns an error.
func promptTarget(t models.Ticket) (int64, bool, error) {
	if !t.Status.IsResolvedMarker() {
		return 0, false, nil
	}
	raw := strings.TrimSpace(t.ChatID)
	if raw == "" {
		return 0, false, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("chat id %q: %w", raw, err)
	}
	return id, true, nil
}

func (r *Reconciler) prompt(ctx context.Context, row models.Row, chatID int64) error {
	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("OUI", ResolutionPayload(ResponseYes, row.Ticket.ID)),
			tgbotapi.NewInlineKeyboardButtonData("NON", ResolutionPayload(ResponseNo, row.Ticket.ID)),
		),
	)
	_, err := r.sendRendered(ctx, chatID, resolutionPrompt(row.Ticket), keyboard)
	monitoring.TrackResolutionPrompt(err)
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}
	r.log.Info("resolution prompt sent", "ticket_id", row.Ticket.ID, "chat_id", chatID)

	if err := r.store.UpdateStatus(ctx, row.Location, models.StatusAwaitingConfirmation); err != nil {
		return fmt.Errorf("mark awaiting confirmation: %w", err)
	}
	return nil
}

func resolutionPrompt(t models.Ticket) *render.Message {
	return render.New().
		Bold("🎉 Mise à jour de votre ticket!").Text("\n\n").
		Text("Votre ticket ").Bold(t.ID).Text(" a été marqué comme résolu par notre équipe.\n\n").
		Bold("Détails du ticket:").Text("\n").
		Field("📅 ", "Date de création", " : ", t.Timestamp).
		Field("📝 ", "Catégorie", " : ", t.Category).
		Field("📄 ", "Description", " : ", t.Description).
		Field("⚡ ", "Priorité", " : ", t.Priority).
		Line("").
		Text("Est-ce que votre problème est effectivement résolu?")
}
