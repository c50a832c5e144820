package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"ask-kyra/internal/advice"
	"ask-kyra/internal/auth"
	"ask-kyra/internal/config"
	"ask-kyra/internal/desk"
	"ask-kyra/internal/history"
	"ask-kyra/internal/logging"
	"ask-kyra/internal/notify"
	"ask-kyra/internal/pending"
	"ask-kyra/internal/storage"
)

// App is the wired service graph shared by every binary.
type App struct {
	Config   *config.Config
	Auth     *auth.Service
	Store    storage.Store
	Desk     *desk.Service
	Notifier notify.Notifier
}

// Build opens the stores and constructs the services described by cfg.
func Build(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*App, error) {
	var adminRepo auth.Repository
	if cfg.AdminAllowlistPath != "" {
		repo, err := auth.NewFileRepository(cfg.AdminAllowlistPath)
		if err != nil {
			logger.Warn(ctx, "admin allow-list unavailable", zap.Error(err))
		} else {
			adminRepo = repo
		}
	}
	authSvc, err := auth.NewWithRepo(adminRepo, cfg.AdminEmails, cfg.AdminMarker)
	if err != nil {
		return nil, fmt.Errorf("init auth: %w", err)
	}

	systemPrompt, err := advice.ReadSystemPrompt(cfg.SystemPromptPath)
	if err != nil {
		return nil, err
	}
	advisor, err := advice.New(cfg, systemPrompt)
	if err != nil {
		return nil, fmt.Errorf("init advice client: %w", err)
	}

	store, err := storage.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	pend, err := pending.NewFileRepository(cfg.PendingUploadsPath, cfg.PendingUploadTTL)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("init pending uploads: %w", err)
	}

	notifier, err := notify.New(cfg.TelegramBotToken, cfg.TelegramAdminChatID)
	if err != nil {
		logger.Warn(ctx, "telegram notifier unavailable, logging notifications", zap.Error(err))
		notifier = notify.LogNotifier{}
	}

	d := desk.New(desk.Deps{
		Store:    store,
		Advice:   advisor,
		Auth:     authSvc,
		Chats:    history.NewManager(cfg.ChatLogMaxEntries, cfg.ChatLogMaxSessions),
		Pending:  pend,
		Notifier: notifier,
	})
	logger.Info(ctx, "services ready",
		zap.String("advice_provider", string(cfg.AdviceProvider)),
		zap.String("storage_backend", string(cfg.StorageBackend)))

	return &App{Config: cfg, Auth: authSvc, Store: store, Desk: d, Notifier: notifier}, nil
}

func (a *App) Close() error {
	return a.Store.Close()
}
