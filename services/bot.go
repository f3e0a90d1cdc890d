package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"milda_bot/config"
	"milda_bot/db"
	"milda_bot/notify"
	"milda_bot/ratelimit"
	"milda_bot/workpool"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Backend is the rate-limited row store shared by every component of one
// process, plus the pool its remote calls run on.
type Backend struct {
	Store db.RowStore
	Pool  *workpool.Pool
	close func() error
}

// OpenBackend connects the configured store and wraps it in the shared
// limiter.
func OpenBackend(ctx context.Context, cfg *config.Config) (*Backend, error) {
	store, closeFn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	pool := workpool.New(cfg.RemoteWorkers)
	limiter := ratelimit.New(cfg.StoreRateLimit, cfg.StoreRateWindow)
	return &Backend{Store: db.NewLimited(store, limiter, pool), Pool: pool, close: closeFn}, nil
}

func (b *Backend) Close() error {
	b.Pool.Wait()
	return b.close()
}

// VerifyStore reads the whole table once so a bad sheet id or credential
// shows up at startup rather than on the first ticket.
func VerifyStore(ctx context.Context, store db.RowStore, logger *slog.Logger) (int, error) {
	rows, err := store.ReadAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("verify store: %w", err)
	}
	logger.Info("store reachable", "rows", len(rows))
	return len(rows), nil
}

// NewAPI authorizes against Telegram and routes the library's own log lines
// into logger.
func NewAPI(cfg *config.Config, logger *slog.Logger) (*tgbotapi.BotAPI, error) {
	_ = tgbotapi.SetLogger(slog.NewLogLogger(logger.With("component", "telegram").Handler(), slog.LevelDebug))

	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	api.Debug = cfg.BotDebug
	logger.Info("authorized on account", "username", api.Self.UserName)
	return api, nil
}

// Run polls Telegram until ctx is cancelled. ready flips to true once the
// bot is authorized and polling.
func Run(ctx context.Context, cfg *config.Config, logger *slog.Logger, ready *atomic.Bool) error {
	backend, err := OpenBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := backend.Close(); err != nil {
			logger.Warn("close store", "error", err)
		}
	}()

	if _, err := VerifyStore(ctx, backend.Store, logger); err != nil {
		logger.Error("store not reachable, continuing", "error", err)
	}

	api, err := NewAPI(cfg, logger)
	if err != nil {
		return err
	}
	if _, err := api.Request(tgbotapi.DeleteWebhookConfig{DropPendingUpdates: true}); err != nil {
		logger.Warn("clear webhook failed", "error", err)
	}

	mailer := notify.NewDispatcher(
		notify.NewSMTPSender(cfg.SMTPAddr(), cfg.SMTPEmail, cfg.SMTPPassword),
		cfg.AdminEmails, cfg.SheetURL(), backend.Pool, logger,
	)
	defer mailer.Wait()

	bot := NewBot(Deps{
		API:       api,
		Store:     backend.Store,
		Notifier:  mailer,
		Pool:      backend.Pool,
		Logger:    logger,
		AssetsDir: cfg.AssetsDir,
	})
	reconciler := NewReconciler(api, backend.Store, backend.Pool, cfg.ReconcileInterval, cfg.ReconcileFirstRun, logger)

	loopCtx, cancel := context.WithCancel(ctx)
	waitBackground := startBackground(loopCtx,
		func(ctx context.Context) {
			CleanupAbandonedDrafts(ctx, bot.Drafts(), cfg.DraftTTL, bot.now, logger.With("component", "drafts"))
		},
		reconciler.Run,
	)
	defer waitBackground()
	defer cancel()

	sessions := NewSessions(bot.HandleUpdate)
	defer sessions.Wait()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := api.GetUpdatesChan(u)

	if ready != nil {
		ready.Store(true)
	}
	logger.Info("bot started", "reconcile_interval", cfg.ReconcileInterval, "store", cfg.StoreBackend)

	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			if ready != nil {
				ready.Store(false)
			}
			api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			sessions.Dispatch(loopCtx, update)
		}
	}
}

// startBackground runs each task in its own goroutine. The returned func
// blocks until all of them have returned, so the store is only closed once
// no pass is still using it.
func startBackground(ctx context.Context, tasks ...func(ctx context.Context)) (wait func()) {
	var wg sync.WaitGroup
	for _, task := range tasks {
		wg.Add(1)
		go func(task func(ctx context.Context)) {
			defer wg.Done()
			task(ctx)
		}(task)
	}
	return wg.Wait
}
