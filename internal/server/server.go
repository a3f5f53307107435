// Package server exposes the AI chat API over HTTP.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"auramind/internal/authclient"
	"auramind/internal/chat"
	"auramind/internal/usertoken"
	"auramind/internal/util"
	"auramind/pkg/ai"
	"auramind/pkg/domain"
)

// Limiter gates requests by key. Satisfied by both the in-process window
// and the Redis fixed-window limiter.
type Limiter interface {
	Allow(key string) bool
}

// Config wires required dependencies for the HTTP server.
type Config struct {
	Chat          *chat.Service
	Auth          *authclient.Client
	TokenVerifier *usertoken.Verifier
	// AccountLimiter guards the account endpoints per client IP. Optional.
	AccountLimiter Limiter
	AllowedOrigins []string
}

// Server exposes HTTP endpoints for the chat service.
type Server struct {
	chat           *chat.Service
	auth           *authclient.Client
	tokenVerifier  *usertoken.Verifier
	accountLimiter Limiter
	allowedOrigins []string
	mux            *http.ServeMux
}

// New constructs the server with routes configured.
func New(cfg Config) *Server {
	s := &Server{
		chat:           cfg.Chat,
		auth:           cfg.Auth,
		tokenVerifier:  cfg.TokenVerifier,
		accountLimiter: cfg.AccountLimiter,
		allowedOrigins: cfg.AllowedOrigins,
		mux:            http.NewServeMux(),
	}
	s.routes()
	return s
}

// Router returns the configured handler with the shared middleware applied.
func (s *Server) Router() http.Handler {
	return util.WithSecurityHeaders(
		util.WithCORS(s.allowedOrigins,
			util.WithRequestID(
				util.WithRequestLog(s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.Handle("/ai/chat", s.withUser(s.handleChat))
	s.mux.Handle("/ai/conversations", s.withUser(s.handleConversations))
	s.mux.Handle("/ai/conversations/", s.withUser(s.handleConversationMessages))
	s.mux.Handle("/account/bonus-messages", s.withIPLimit(s.withUser(s.handleBonusMessages)))
	s.mux.Handle("/account/delete", s.withIPLimit(s.withUser(s.handleDeleteAccount)))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type userHandler func(http.ResponseWriter, *http.Request, domain.User)

func (s *Server) withUser(next userHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.auth == nil {
			writeError(w, http.StatusInternalServerError, "auth client not configured")
			return
		}
		token, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if s.tokenVerifier != nil {
			if _, err := s.tokenVerifier.VerifySubject(token); err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
		}
		user, err := s.auth.Me(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r, user)
	})
}

func (s *Server) withIPLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.accountLimiter != nil && !s.accountLimiter.Allow(util.ClientIP(r)) {
			writeError(w, http.StatusTooManyRequests, "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type chatRequest struct {
	Message        string         `json:"message"`
	ConversationID string         `json:"conversation_id"`
	ContextType    string         `json:"context_type"`
	ChartContext   map[string]any `json:"chart_context"`
	MaxTokens      int            `json:"max_tokens"`
}

type chatResponse struct {
	Message        domain.Message `json:"message"`
	ConversationID string         `json:"conversation_id"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req chatRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	result, err := s.chat.Chat(r.Context(), user, chat.Input{
		Message:        req.Message,
		ConversationID: req.ConversationID,
		ContextType:    req.ContextType,
		ChartContext:   req.ChartContext,
		MaxTokens:      req.MaxTokens,
	})
	if err != nil {
		s.writeChatError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{
		Message:        result.Message,
		ConversationID: result.ConversationID,
	})
}

func (s *Server) handleConversations(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	items, err := s.chat.ListConversations(user, queryInt(r, "limit"))
	if err != nil {
		s.writeChatError(w, r, err)
		return
	}
	if items == nil {
		items = []domain.Conversation{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"conversations": items})
}

// /ai/conversations/{id}/messages
func (s *Server) handleConversationMessages(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	path := strings.TrimPrefix(r.URL.Path, "/ai/conversations/")
	parts := strings.SplitN(path, "/", 2)
	if parts[0] == "" || len(parts) != 2 || parts[1] != "messages" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	items, err := s.chat.ListMessages(user, parts[0], queryInt(r, "limit"))
	if err != nil {
		s.writeChatError(w, r, err)
		return
	}
	if items == nil {
		items = []domain.Message{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": items})
}

type bonusRequest struct {
	Count      int    `json:"count"`
	PurchaseID string `json:"purchase_id"`
}

func (s *Server) handleBonusMessages(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req bonusRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	granted, err := s.chat.GrantBonusMessages(user, req.PurchaseID, req.Count)
	if err != nil {
		s.writeChatError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":          true,
		"messages_granted": granted,
	})
}

type deleteRequest struct {
	UserID string `json:"user_id"`
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req deleteRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.chat.DeleteAccount(user, req.UserID); err != nil {
		s.writeChatError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// writeChatError maps pipeline errors to HTTP responses. Validation messages
// surface verbatim; provider and storage detail stays in the logs.
func (s *Server) writeChatError(w http.ResponseWriter, r *http.Request, err error) {
	var validationErr *chat.ValidationError
	if errors.As(err, &validationErr) {
		writeError(w, http.StatusBadRequest, validationErr.Message)
		return
	}
	switch {
	case errors.Is(err, chat.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "Too many requests. Please slow down.")
	case errors.Is(err, chat.ErrQuotaExceeded):
		writeJSON(w, http.StatusTooManyRequests, map[string]string{
			"error": "Monthly message limit reached. Upgrade to premium for unlimited messages.",
			"code":  "QUOTA_EXCEEDED",
		})
	case errors.Is(err, chat.ErrConversationNotFound):
		writeError(w, http.StatusNotFound, "Conversation not found")
	case errors.Is(err, chat.ErrPurchaseNotFound):
		writeError(w, http.StatusNotFound, "Purchase not found")
	case errors.Is(err, chat.ErrPurchaseRedeemed):
		writeError(w, http.StatusConflict, "Purchase already redeemed")
	case errors.Is(err, chat.ErrSelfDeleteOnly):
		writeError(w, http.StatusForbidden, "Users can only delete their own account")
	default:
		var providerErr *ai.ProviderError
		if errors.As(err, &providerErr) {
			slog.Error("provider request failed",
				"request_id", util.RequestIDFromRequest(r),
				"provider", providerErr.Provider,
				"status", providerErr.Status)
		} else {
			slog.Error("chat request failed",
				"request_id", util.RequestIDFromRequest(r),
				"error", err)
		}
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func queryInt(r *http.Request, name string) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return 0
	}
	return v
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", false
	}
	return token, true
}
