package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"auramind/internal/authclient"
	"auramind/internal/chat"
	"auramind/internal/config"
	"auramind/internal/ratelimit"
	"auramind/internal/server"
	"auramind/internal/usertoken"
	"auramind/internal/util"
	"auramind/pkg/ai"
	"auramind/pkg/store"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: failed to load config: %v\n", err)
		os.Exit(1)
	}

	util.InitLogger(cfg.LogLevel)

	authClient := authclient.NewClient(cfg.AuthURL, cfg.AuthAnonKey)
	var tokenVerifier *usertoken.Verifier
	if cfg.AuthJWKSURL != "" {
		tokenVerifier, err = usertoken.NewVerifier(usertoken.Config{
			JWKSURL:    cfg.AuthJWKSURL,
			Issuer:     cfg.JWTIssuer,
			Audience:   cfg.JWTAudience,
			HTTPClient: &http.Client{Timeout: 5 * time.Second},
		})
		if err != nil {
			fatal("failed to init jwks verifier", "err", err)
		}
	}

	dataStore, err := store.NewGormStore(cfg.DatabaseURL)
	if err != nil {
		fatal("failed to init store", "err", err)
	}

	provider, err := ai.New(ai.Config{
		Provider:        cfg.AIProvider,
		GeminiAPIKey:    cfg.GeminiAPIKey,
		AnthropicAPIKey: cfg.AnthropicAPIKey,
		OpenAIAPIKey:    cfg.OpenAIAPIKey,
		GeminiModel:     cfg.GeminiModel,
		ClaudeModel:     cfg.ClaudeModel,
		OpenAIModel:     cfg.OpenAIModel,
	})
	if err != nil {
		fatal("failed to init ai provider", "err", err)
	}

	chatLimiter, err := ratelimit.NewWindow(cfg.ChatRateLimitPerMinute, time.Minute)
	if err != nil {
		fatal("failed to init rate limiter", "err", err)
	}

	var accountLimiter server.Limiter
	if cfg.RedisAddr != "" {
		accountLimiter, err = ratelimit.NewRedisFixedWindowLimiter(
			cfg.RedisAddr, cfg.RedisPassword, "", cfg.AccountRateLimitPerMinute, time.Minute)
		if err != nil {
			fatal("failed to init account rate limiter", "err", err)
		}
	}

	chatService, err := chat.New(chat.Config{
		Store:    dataStore,
		Provider: provider,
		Limiter:  chatLimiter,
	})
	if err != nil {
		fatal("failed to init chat service", "err", err)
	}

	httpServer := server.New(server.Config{
		Chat:           chatService,
		Auth:           authClient,
		TokenVerifier:  tokenVerifier,
		AccountLimiter: accountLimiter,
		AllowedOrigins: cfg.AllowedOrigins,
	})

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("auramind server listening", "addr", addr, "provider", cfg.AIProvider)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "err", err)
		os.Exit(1)
	}
}

func fatal(msg string, args ...any) {
	slog.Error(msg, args...)
	os.Exit(1)
}
