package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"notifyhub/internal/config"
	"notifyhub/internal/domain/notification"
	"notifyhub/internal/infra/chat"
	"notifyhub/internal/infra/email"
	"notifyhub/internal/infra/inapp"
	"notifyhub/internal/infra/metrics"
	"notifyhub/internal/infra/ratelimit"
	"notifyhub/internal/infra/sms"
	"notifyhub/internal/infra/store"
	"notifyhub/internal/infra/template"
	"notifyhub/internal/middleware"
	"notifyhub/internal/router"
)

const version = "1.0.0"

// backingStore holds in-app records and resolves user contacts.
type backingStore interface {
	notification.InboxStore
	notification.ContactDirectory
}

func main() {
	logLevel := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if err := logLevel.UnmarshalText([]byte(strings.ToUpper(cfg.Log.Level))); err != nil {
		slog.Warn("invalid log level, keeping info", "level", cfg.Log.Level)
	}

	slog.Info("configuration loaded", "port", cfg.Server.Port, "mode", cfg.Server.Mode, "storage", cfg.Storage.Driver)

	// ==========================================
	// Dependency Injection (Manual Wiring)
	// ==========================================

	backing, err := newBackingStore(cfg)
	if err != nil {
		slog.Error("failed to initialize store", "error", err)
		os.Exit(1)
	}

	var recipientLimiter notification.RecipientRateLimiter
	if cfg.Redis.Address != "" && cfg.Providers.SMS.MaxPerHour > 0 {
		limiter := ratelimit.NewRedisRecipientLimiter(
			cfg.Redis.Address,
			cfg.Redis.Password,
			cfg.Redis.DB,
			cfg.Providers.SMS.MaxPerHour,
		)
		defer limiter.Close()
		recipientLimiter = limiter
		slog.Info("recipient rate limiter initialized", "redis", cfg.Redis.Address, "max_per_hour", cfg.Providers.SMS.MaxPerHour)
	}

	inAppProvider := inapp.NewProvider(backing, cfg.Providers.InApp.Enabled)

	smsCfg := cfg.Providers.SMS
	smsProvider := sms.NewProvider(
		sms.Config{Enabled: smsCfg.Enabled, AccessKeyID: smsCfg.AccessKeyID, AccessKeySecret: smsCfg.AccessKeySecret},
		sms.NewAliyunGateway(sms.AliyunConfig{
			AccessKeyID:     smsCfg.AccessKeyID,
			AccessKeySecret: smsCfg.AccessKeySecret,
			SignName:        smsCfg.SignName,
			TemplateCode:    smsCfg.TemplateCode,
			Endpoint:        smsCfg.Endpoint,
			Region:          smsCfg.Region,
		}),
		backing,
		recipientLimiter,
	)

	chatCfg := cfg.Providers.Chat
	chatProvider := chat.NewFeishuProvider(chat.Config{
		Enabled:   chatCfg.Enabled,
		AppID:     chatCfg.AppID,
		AppSecret: chatCfg.AppSecret,
		ChatID:    chatCfg.ChatID,
		BaseURL:   chatCfg.BaseURL,
		Timeout:   time.Duration(chatCfg.TimeoutSec) * time.Second,
	})

	emailCfg := cfg.Providers.Email
	emailProvider := email.NewResendProvider(email.Config{
		Enabled:     emailCfg.Enabled,
		APIKey:      emailCfg.APIKey,
		FromAddress: emailCfg.FromAddress,
		FromName:    emailCfg.FromName,
	})

	registry := notification.NewRegistry(inAppProvider, smsProvider, chatProvider, emailProvider)
	for _, ch := range registry.Channels() {
		p, _ := registry.Get(ch)
		slog.Info("provider registered", "channel", ch, "available", p.IsAvailable())
	}

	rulesManager, err := notification.NewRulesManager(routingRules(cfg.Rules))
	if err != nil {
		slog.Error("invalid routing rules", "error", err)
		os.Exit(1)
	}

	var extraTemplates []notification.Template
	if cfg.Templates.File != "" {
		extraTemplates, err = template.LoadFile(cfg.Templates.File)
		if err != nil {
			slog.Error("failed to load templates", "error", err)
			os.Exit(1)
		}
		slog.Info("templates loaded", "file", cfg.Templates.File, "count", len(extraTemplates))
	}
	engine, err := template.NewEngine(extraTemplates...)
	if err != nil {
		slog.Error("failed to compile templates", "error", err)
		os.Exit(1)
	}

	recorder := metrics.New()

	notificationService := notification.NewService(rulesManager, engine, registry, inAppProvider,
		notification.WithObserver(recorder),
		notification.WithParallelDispatch(cfg.Dispatch.Parallel),
		notification.WithIdentity("notifyhub", version),
	)

	notificationHandler := notification.NewHandler(notificationService)

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, cfg.Auth.APIKeys)
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go rateLimiter.RunSweeper(sweepCtx, 5*time.Minute, 30*time.Minute)

	r := router.New(cfg, notificationHandler, rateLimiter, recorder)

	// ==========================================
	// HTTP Server with Graceful Shutdown
	// ==========================================

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "address", srv.Addr, "version", version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")

	// Give outstanding requests 10 seconds to complete
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server exited gracefully")
}

func newBackingStore(cfg *config.Config) (backingStore, error) {
	switch cfg.Storage.Driver {
	case "supabase":
		s, err := store.NewSupabaseStore(cfg.Supabase.URL, cfg.Supabase.ServiceKey)
		if err != nil {
			return nil, err
		}
		slog.Info("supabase store initialized")
		return s, nil
	default:
		slog.Warn("using in-memory store, in-app notifications are lost on restart")
		return store.NewMemoryStore(), nil
	}
}
