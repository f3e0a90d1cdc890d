package services

import (
	"context"
	"log/slog"

	"milda_bot/monitoring"
	"milda_bot/render"
	"milda_bot/workpool"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Messenger is the part of *tgbotapi.BotAPI the bot talks through.
type Messenger interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// outbox runs outbound Telegram calls on the remote-call pool and owns the
// rich-then-plain fallback for rendered messages.
type outbox struct {
	api  Messenger
	pool *workpool.Pool
	log  *slog.Logger
}

func (o *outbox) send(ctx context.Context, c tgbotapi.Chattable) (tgbotapi.Message, error) {
	var sent tgbotapi.Message
	err := o.pool.Do(ctx, func(context.Context) error {
		var err error
		sent, err = o.api.Send(c)
		return err
	})
	return sent, err
}

func (o *outbox) request(ctx context.Context, c tgbotapi.Chattable) error {
	return o.pool.Do(ctx, func(context.Context) error {
		_, err := o.api.Request(c)
		return err
	})
}

// reply sends fixed plain text and logs failures.
func (o *outbox) reply(ctx context.Context, chatID int64, text string, markup interface{}) {
	msg := tgbotapi.NewMessage(chatID, text)
	if markup != nil {
		msg.ReplyMarkup = markup
	}
	if _, err := o.send(ctx, msg); err != nil {
		o.log.Error("send message failed", "chat_id", chatID, "error", err)
	}
}

// sendRendered sends m as MarkdownV2, falling back to the plain rendering
// when the rich form cannot be built or is rejected.
func (o *outbox) sendRendered(ctx context.Context, chatID int64, m *render.Message, markup interface{}) (tgbotapi.Message, error) {
	rich, err := m.Rich()
	if err == nil {
		msg := tgbotapi.NewMessage(chatID, rich)
		msg.ParseMode = tgbotapi.ModeMarkdownV2
		if markup != nil {
			msg.ReplyMarkup = markup
		}
		sent, sendErr := o.send(ctx, msg)
		if sendErr == nil {
			return sent, nil
		}
		err = sendErr
	}
	o.log.Warn("rich message failed, sending plain text", "chat_id", chatID, "error", err)
	monitoring.TrackRenderFallback("send")

	msg := tgbotapi.NewMessage(chatID, m.Plain())
	if markup != nil {
		msg.ReplyMarkup = markup
	}
	return o.send(ctx, msg)
}

// editRendered replaces the text of an earlier message with the same
// fallback rule as sendRendered. The inline keyboard is dropped.
func (o *outbox) editRendered(ctx context.Context, chatID int64, messageID int, m *render.Message) error {
	rich, err := m.Rich()
	if err == nil {
		edit := tgbotapi.NewEditMessageText(chatID, messageID, rich)
		edit.ParseMode = tgbotapi.ModeMarkdownV2
		if err = o.request(ctx, edit); err == nil {
			return nil
		}
	}
	o.log.Warn("rich edit failed, editing as plain text", "chat_id", chatID, "message_id", messageID, "error", err)
	monitoring.TrackRenderFallback("edit")

	return o.request(ctx, tgbotapi.NewEditMessageText(chatID, messageID, m.Plain()))
}
