// Package chat implements the AI chat pipeline: rate limiting, input
// validation, quota bookkeeping, conversation lifecycle, prompt composition,
// and the provider call.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"auramind/internal/prompt"
	"auramind/internal/ratelimit"
	"auramind/internal/util"
	"auramind/pkg/ai"
	"auramind/pkg/domain"
	"auramind/pkg/store"
)

const (
	// MaxConversationHistory bounds the context window sent upstream.
	MaxConversationHistory = 20
	// MaxConversationsPerUser bounds live threads per user; creating one
	// past the cap evicts the least-recently-active thread first.
	MaxConversationsPerUser = 50

	titleLength       = 100
	maxBonusGrant     = 500
	defaultRateLimit  = 10
	defaultRateWindow = time.Minute
)

// Config wires the service's dependencies.
type Config struct {
	Store    store.Store
	Provider ai.Provider
	// Limiter is optional; a default 10-per-minute window is built when nil.
	Limiter *ratelimit.Window
	// Now is optional; overridden in tests for deterministic period keys.
	Now func() time.Time
}

// Service owns the request pipeline for the AI chat endpoints.
type Service struct {
	store    store.Store
	provider ai.Provider
	limiter  *ratelimit.Window
	now      func() time.Time
}

// New constructs the service.
func New(cfg Config) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("chat service requires a store")
	}
	if cfg.Provider == nil {
		return nil, errors.New("chat service requires an ai provider")
	}
	limiter := cfg.Limiter
	if limiter == nil {
		var err error
		limiter, err = ratelimit.NewWindow(defaultRateLimit, defaultRateWindow)
		if err != nil {
			return nil, err
		}
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		store:    cfg.Store,
		provider: cfg.Provider,
		limiter:  limiter,
		now:      now,
	}, nil
}

// Input is one inbound chat request, already decoded from JSON.
type Input struct {
	Message        string
	ConversationID string
	ContextType    string
	ChartContext   map[string]any
	MaxTokens      int
}

// Result carries the assistant reply and the conversation it belongs to.
type Result struct {
	Message        domain.Message
	ConversationID string
}

// Chat runs the fixed pipeline for one request, short-circuiting on the
// first failure. Once a reply has been generated, downstream storage
// failures are logged but do not discard it.
func (s *Service) Chat(ctx context.Context, user domain.User, input Input) (Result, error) {
	if !s.limiter.Allow(user.ID) {
		return Result{}, ErrRateLimited
	}

	message, err := validateMessage(input.Message)
	if err != nil {
		return Result{}, err
	}
	conversationID, err := validateConversationID(input.ConversationID)
	if err != nil {
		return Result{}, err
	}
	contextType := normalizeContextType(input.ContextType)
	chartContext, err := validateChartContext(input.ChartContext)
	if err != nil {
		return Result{}, err
	}

	premium, err := s.isPremium(user.ID)
	if err != nil {
		return Result{}, err
	}
	if !premium {
		if err := s.checkQuota(user.ID); err != nil {
			return Result{}, err
		}
	}

	conversation, err := s.resolveConversation(user, conversationID, contextType, message)
	if err != nil {
		return Result{}, err
	}

	userMessage := domain.Message{
		ID:             util.NewID(),
		ConversationID: conversation.ID,
		Role:           domain.RoleUser,
		Content:        message,
		CreatedAt:      s.now().UTC(),
	}
	if err := s.store.AppendMessage(userMessage); err != nil {
		return Result{}, fmt.Errorf("save user message: %w", err)
	}

	history, err := s.store.ListRecentMessages(conversation.ID, MaxConversationHistory)
	if err != nil {
		return Result{}, fmt.Errorf("load history: %w", err)
	}
	turns := make([]ai.Message, 0, len(history))
	for _, msg := range history {
		turns = append(turns, ai.Message{Role: msg.Role, Content: msg.Content})
	}

	systemPrompt := prompt.BuildSystemPrompt(contextType, chartContext)
	maxTokens := prompt.MaxTokens(contextType, input.MaxTokens)
	reply, err := s.provider.Chat(ctx, systemPrompt, turns, maxTokens)
	if err != nil {
		return Result{}, fmt.Errorf("generate reply: %w", err)
	}

	logger := util.LoggerFromContext(ctx)
	assistantMessage := domain.Message{
		ID:             util.NewID(),
		ConversationID: conversation.ID,
		Role:           domain.RoleAssistant,
		Content:        reply,
		CreatedAt:      s.now().UTC(),
	}
	// The reply exists; from here on failures are warnings, not errors.
	if err := s.store.AppendMessage(assistantMessage); err != nil {
		logger.Warn("failed to store assistant reply", "conversation_id", conversation.ID, "err", err)
	}

	if count, err := s.store.CountMessages(conversation.ID); err != nil {
		logger.Warn("failed to recount conversation messages", "conversation_id", conversation.ID, "err", err)
	} else if err := s.store.TouchConversation(conversation.ID, count, s.now().UTC()); err != nil {
		logger.Warn("failed to update conversation metadata", "conversation_id", conversation.ID, "err", err)
	}

	if !premium {
		if err := s.store.IncrementUsage(user.ID, periodStart(s.now())); err != nil {
			logger.Warn("failed to increment usage counter", "user_id", user.ID, "err", err)
		}
	}

	return Result{Message: assistantMessage, ConversationID: conversation.ID}, nil
}

// resolveConversation returns the existing conversation after an ownership
// check, or creates a new one, evicting the user's least-recently-active
// thread when the cap is reached.
func (s *Service) resolveConversation(user domain.User, conversationID string, contextType domain.ContextType, firstMessage string) (domain.Conversation, error) {
	if conversationID != "" {
		conversation, ok, err := s.store.GetConversation(conversationID)
		if err != nil {
			return domain.Conversation{}, fmt.Errorf("load conversation: %w", err)
		}
		if !ok || conversation.UserID != user.ID {
			return domain.Conversation{}, ErrConversationNotFound
		}
		return conversation, nil
	}

	count, err := s.store.CountConversations(user.ID)
	if err != nil {
		return domain.Conversation{}, fmt.Errorf("count conversations: %w", err)
	}
	if count >= MaxConversationsPerUser {
		oldest, ok, err := s.store.OldestConversation(user.ID)
		if err != nil {
			return domain.Conversation{}, fmt.Errorf("find oldest conversation: %w", err)
		}
		if ok {
			if err := s.store.DeleteConversation(oldest.ID); err != nil {
				return domain.Conversation{}, fmt.Errorf("evict oldest conversation: %w", err)
			}
		}
	}

	now := s.now().UTC()
	conversation := domain.Conversation{
		ID:            util.NewID(),
		UserID:        user.ID,
		ContextType:   contextType,
		Title:         deriveTitle(firstMessage),
		LastMessageAt: now,
		CreatedAt:     now,
	}
	if err := s.store.CreateConversation(conversation); err != nil {
		return domain.Conversation{}, fmt.Errorf("create conversation: %w", err)
	}
	return conversation, nil
}

func deriveTitle(firstMessage string) string {
	runes := []rune(firstMessage)
	if len(runes) > titleLength {
		return string(runes[:titleLength])
	}
	return firstMessage
}

// ListConversations returns the user's conversations, most recent first.
func (s *Service) ListConversations(user domain.User, limit int) ([]domain.Conversation, error) {
	if limit <= 0 || limit > 100 {
		limit = MaxConversationsPerUser
	}
	items, err := s.store.ListConversationsByUser(user.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return items, nil
}

// ListMessages returns a conversation's messages in chronological order,
// after the same ownership check the chat path applies.
func (s *Service) ListMessages(user domain.User, conversationID string, limit int) ([]domain.Message, error) {
	conversationID, err := validateConversationID(strings.TrimSpace(conversationID))
	if err != nil {
		return nil, err
	}
	if conversationID == "" {
		return nil, validationErrorf("Invalid conversation ID format")
	}
	conversation, ok, err := s.store.GetConversation(conversationID)
	if err != nil {
		return nil, fmt.Errorf("load conversation: %w", err)
	}
	if !ok || conversation.UserID != user.ID {
		return nil, ErrConversationNotFound
	}
	if limit <= 0 || limit > 500 {
		limit = 200
	}
	items, err := s.store.ListRecentMessages(conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return items, nil
}

// GrantBonusMessages redeems a purchase into this month's bonus allowance.
// The granted amount is the purchase's own message count, never the
// client-supplied one.
func (s *Service) GrantBonusMessages(user domain.User, purchaseID string, count int) (int, error) {
	if count < 1 || count > maxBonusGrant {
		return 0, validationErrorf("Invalid message count")
	}
	if strings.TrimSpace(purchaseID) == "" {
		return 0, validationErrorf("Missing purchase_id")
	}
	purchase, ok, err := s.store.GetPurchase(purchaseID, user.ID)
	if err != nil {
		return 0, fmt.Errorf("load purchase: %w", err)
	}
	if !ok {
		return 0, ErrPurchaseNotFound
	}
	if purchase.Redeemed {
		return 0, ErrPurchaseRedeemed
	}
	grant := purchase.MessageCount
	if grant < 0 {
		grant = 0
	}
	if err := s.store.AddBonusMessages(user.ID, periodStart(s.now()), grant); err != nil {
		return 0, fmt.Errorf("grant bonus messages: %w", err)
	}
	if err := s.store.MarkPurchaseRedeemed(purchase.ID, s.now().UTC()); err != nil {
		return 0, fmt.Errorf("mark purchase redeemed: %w", err)
	}
	return grant, nil
}

// DeleteAccount erases every record the user owns. Users may only delete
// themselves.
func (s *Service) DeleteAccount(user domain.User, requestedUserID string) error {
	if requestedUserID == "" || requestedUserID != user.ID {
		return ErrSelfDeleteOnly
	}
	if err := s.store.DeleteUserData(user.ID); err != nil {
		return fmt.Errorf("delete user data: %w", err)
	}
	return nil
}
