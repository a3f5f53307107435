package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"auramind/internal/ratelimit"
	"auramind/pkg/ai"
	"auramind/pkg/domain"
	"auramind/pkg/store"
)

type stubProvider struct {
	reply string
	err   error

	lastSystemPrompt string
	lastMessages     []ai.Message
	lastMaxTokens    int
	calls            int
}

func (p *stubProvider) Chat(_ context.Context, systemPrompt string, messages []ai.Message, maxTokens int) (string, error) {
	p.calls++
	p.lastSystemPrompt = systemPrompt
	p.lastMessages = messages
	p.lastMaxTokens = maxTokens
	if p.err != nil {
		return "", p.err
	}
	return p.reply, nil
}

// newTestService builds a service with a fake clock that auto-advances one
// second per call, so stored messages get distinct timestamps.
func newTestService(t *testing.T, s store.Store, provider ai.Provider, start time.Time) *Service {
	t.Helper()
	current := start
	now := func() time.Time {
		current = current.Add(time.Second)
		return current
	}
	limiter, err := ratelimit.NewWindow(1000, time.Minute, ratelimit.WithClock(now))
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	svc, err := New(Config{Store: s, Provider: provider, Limiter: limiter, Now: now})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestChatCreatesConversationAndStoresExchange(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	mem := store.NewMemoryStore()
	provider := &stubProvider{reply: "Your sacral says yes."}
	svc := newTestService(t, mem, provider, now)

	result, err := svc.Chat(context.Background(), domain.User{ID: "u-1"}, Input{
		Message:     "Should I take the job?",
		ContextType: "general",
	})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if result.ConversationID == "" {
		t.Fatalf("expected a conversation id")
	}
	if result.Message.Role != domain.RoleAssistant || result.Message.Content != "Your sacral says yes." {
		t.Fatalf("unexpected reply message: %+v", result.Message)
	}

	conversation, ok, _ := mem.GetConversation(result.ConversationID)
	if !ok {
		t.Fatalf("conversation not stored")
	}
	if conversation.Title != "Should I take the job?" {
		t.Fatalf("title should derive from the first message, got %q", conversation.Title)
	}
	if conversation.MessageCount != 2 {
		t.Fatalf("message count should be recounted to 2, got %d", conversation.MessageCount)
	}

	messages, _ := mem.ListRecentMessages(result.ConversationID, 0)
	if len(messages) != 2 || messages[0].Role != domain.RoleUser || messages[1].Role != domain.RoleAssistant {
		t.Fatalf("expected stored user+assistant pair, got %+v", messages)
	}

	// Non-premium exchange consumed one quota unit.
	usage, ok, _ := mem.GetUsage("u-1", "2026-03-01")
	if !ok || usage.MessagesCount != 1 {
		t.Fatalf("usage should be incremented once, got %+v", usage)
	}
}

func TestChatTitleTruncatedTo100Chars(t *testing.T) {
	mem := store.NewMemoryStore()
	svc := newTestService(t, mem, &stubProvider{reply: "ok"}, time.Now())

	long := strings.Repeat("q", 150)
	result, err := svc.Chat(context.Background(), domain.User{ID: "u-1"}, Input{Message: long})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	conversation, _, _ := mem.GetConversation(result.ConversationID)
	if len(conversation.Title) != 100 {
		t.Fatalf("title should be truncated to 100 chars, got %d", len(conversation.Title))
	}
}

func TestChatRateLimited(t *testing.T) {
	mem := store.NewMemoryStore()
	limiter, err := ratelimit.NewWindow(10, time.Minute)
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	svc, err := New(Config{Store: mem, Provider: &stubProvider{reply: "ok"}, Limiter: limiter})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	_ = mem.SaveSubscription(domain.Subscription{
		UserID:    "u-1",
		Tier:      domain.TierPremium,
		ExpiresAt: time.Now().Add(time.Hour),
	})

	for i := 0; i < 10; i++ {
		if _, err := svc.Chat(context.Background(), domain.User{ID: "u-1"}, Input{Message: "hi"}); err != nil {
			t.Fatalf("request %d should pass: %v", i+1, err)
		}
	}
	_, err = svc.Chat(context.Background(), domain.User{ID: "u-1"}, Input{Message: "hi"})
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("11th request should be rate limited, got %v", err)
	}
}

func TestChatConversationOwnership(t *testing.T) {
	mem := store.NewMemoryStore()
	svc := newTestService(t, mem, &stubProvider{reply: "ok"}, time.Now())

	owned := "a3bb189e-8bf9-3888-9912-ace4e6543002"
	_ = mem.CreateConversation(domain.Conversation{ID: owned, UserID: "u-2"})

	_, err := svc.Chat(context.Background(), domain.User{ID: "u-1"}, Input{
		Message:        "hi",
		ConversationID: owned,
	})
	if !errors.Is(err, ErrConversationNotFound) {
		t.Fatalf("foreign conversation must look like not found, got %v", err)
	}

	missing := "11111111-2222-3333-4444-555555555555"
	_, err = svc.Chat(context.Background(), domain.User{ID: "u-1"}, Input{
		Message:        "hi",
		ConversationID: missing,
	})
	if !errors.Is(err, ErrConversationNotFound) {
		t.Fatalf("missing conversation should be not found, got %v", err)
	}
}

func TestChatEvictsOldestConversationAtCap(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	mem := store.NewMemoryStore()
	svc := newTestService(t, mem, &stubProvider{reply: "ok"}, now)

	for i := 0; i < MaxConversationsPerUser; i++ {
		_ = mem.CreateConversation(domain.Conversation{
			ID:            fmt.Sprintf("conv-%02d", i),
			UserID:        "u-1",
			LastMessageAt: now.Add(time.Duration(i) * time.Minute),
		})
	}
	// conv-00 is the least recently active.
	result, err := svc.Chat(context.Background(), domain.User{ID: "u-1"}, Input{Message: "a new thread"})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if _, ok, _ := mem.GetConversation("conv-00"); ok {
		t.Fatalf("oldest conversation should have been evicted")
	}
	if _, ok, _ := mem.GetConversation("conv-01"); !ok {
		t.Fatalf("only the oldest conversation should be evicted")
	}
	if _, ok, _ := mem.GetConversation(result.ConversationID); !ok {
		t.Fatalf("new conversation should be resolvable after eviction")
	}
	count, _ := mem.CountConversations("u-1")
	if count != MaxConversationsPerUser {
		t.Fatalf("expected cap to hold at %d, got %d", MaxConversationsPerUser, count)
	}
}

func TestChatHistoryWindow(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	mem := store.NewMemoryStore()
	provider := &stubProvider{reply: "ok"}
	svc := newTestService(t, mem, provider, now)

	conversationID := "a3bb189e-8bf9-3888-9912-ace4e6543002"
	_ = mem.CreateConversation(domain.Conversation{ID: conversationID, UserID: "u-1"})
	for i := 0; i < 500; i++ {
		_ = mem.AppendMessage(domain.Message{
			ID:             fmt.Sprintf("m-%03d", i),
			ConversationID: conversationID,
			Role:           domain.RoleUser,
			Content:        fmt.Sprintf("old %d", i),
			CreatedAt:      now.Add(time.Duration(i-600) * time.Second),
		})
	}

	_, err := svc.Chat(context.Background(), domain.User{ID: "u-1"}, Input{
		Message:        "latest",
		ConversationID: conversationID,
	})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if len(provider.lastMessages) != MaxConversationHistory {
		t.Fatalf("provider should see exactly %d messages, got %d", MaxConversationHistory, len(provider.lastMessages))
	}
	// Oldest-first, ending with the just-stored user message.
	if provider.lastMessages[len(provider.lastMessages)-1].Content != "latest" {
		t.Fatalf("history should end with the new user message")
	}
}

func TestChatPromptAndBudgetForwarded(t *testing.T) {
	mem := store.NewMemoryStore()
	provider := &stubProvider{reply: "ok"}
	svc := newTestService(t, mem, provider, time.Now())

	_, err := svc.Chat(context.Background(), domain.User{ID: "u-1"}, Input{
		Message:      "compare us",
		ContextType:  "compatibility",
		ChartContext: map[string]any{"person1": "A", "secret": "x"},
	})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if provider.lastMaxTokens != 2048 {
		t.Fatalf("compatibility budget should be 2048, got %d", provider.lastMaxTokens)
	}
	if !strings.Contains(provider.lastSystemPrompt, "relationship analyst") {
		t.Fatalf("compatibility template not used")
	}
	if !strings.Contains(provider.lastSystemPrompt, "person1") {
		t.Fatalf("allow-listed chart context should reach the prompt")
	}
	if strings.Contains(provider.lastSystemPrompt, "secret") {
		t.Fatalf("stripped key must not reach the prompt")
	}
}

func TestChatProviderFailureStoresNoReply(t *testing.T) {
	mem := store.NewMemoryStore()
	provider := &stubProvider{err: &ai.ProviderError{Provider: "claude", Status: 500, Body: "boom"}}
	svc := newTestService(t, mem, provider, time.Now())

	_, err := svc.Chat(context.Background(), domain.User{ID: "u-1"}, Input{Message: "hi"})
	var provErr *ai.ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("expected wrapped ProviderError, got %v", err)
	}
	// No usage is consumed when the exchange failed.
	if _, ok, _ := mem.GetUsage("u-1", periodStart(time.Now())); ok {
		t.Fatalf("usage must not be incremented on provider failure")
	}
}

// failingStore wraps a Store and fails AppendMessage for assistant rows,
// exercising the partial-failure path after a reply exists.
type failingStore struct {
	store.Store
}

func (f *failingStore) AppendMessage(msg domain.Message) error {
	if msg.Role == domain.RoleAssistant {
		return errors.New("disk full")
	}
	return f.Store.AppendMessage(msg)
}

func TestChatReplySurvivesAssistantPersistFailure(t *testing.T) {
	mem := store.NewMemoryStore()
	svc := newTestService(t, &failingStore{Store: mem}, &stubProvider{reply: "still here"}, time.Now())

	result, err := svc.Chat(context.Background(), domain.User{ID: "u-1"}, Input{Message: "hi"})
	if err != nil {
		t.Fatalf("reply must survive assistant persist failure: %v", err)
	}
	if result.Message.Content != "still here" {
		t.Fatalf("caller should still receive the reply, got %q", result.Message.Content)
	}
	// The usage counter still advances: the exchange happened.
	usage, ok, _ := mem.GetUsage("u-1", periodStart(time.Now()))
	if !ok || usage.MessagesCount != 1 {
		t.Fatalf("usage should be incremented, got %+v", usage)
	}
}

func TestGrantBonusMessages(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	mem := store.NewMemoryStore()
	svc := newTestService(t, mem, &stubProvider{reply: "ok"}, now)

	_ = mem.SavePurchase(domain.Purchase{ID: "p-1", UserID: "u-1", MessageCount: 20})

	granted, err := svc.GrantBonusMessages(domain.User{ID: "u-1"}, "p-1", 5)
	if err != nil {
		t.Fatalf("grant: %v", err)
	}
	if granted != 20 {
		t.Fatalf("grant should use the purchase's count, not the client's: got %d", granted)
	}
	usage, _, _ := mem.GetUsage("u-1", "2026-03-01")
	if usage.BonusMessages != 20 {
		t.Fatalf("bonus not recorded, got %+v", usage)
	}

	if _, err := svc.GrantBonusMessages(domain.User{ID: "u-1"}, "p-1", 5); !errors.Is(err, ErrPurchaseRedeemed) {
		t.Fatalf("double redemption should fail, got %v", err)
	}
	if _, err := svc.GrantBonusMessages(domain.User{ID: "u-2"}, "p-1", 5); !errors.Is(err, ErrPurchaseNotFound) {
		t.Fatalf("another user's purchase should be not found, got %v", err)
	}
	if _, err := svc.GrantBonusMessages(domain.User{ID: "u-1"}, "p-1", 0); err == nil {
		t.Fatalf("count below 1 should be rejected")
	}
	if _, err := svc.GrantBonusMessages(domain.User{ID: "u-1"}, "p-1", 501); err == nil {
		t.Fatalf("count above 500 should be rejected")
	}

	// A zero-count purchase grants zero, never the client's number.
	_ = mem.SavePurchase(domain.Purchase{ID: "p-2", UserID: "u-1", MessageCount: 0})
	granted, err = svc.GrantBonusMessages(domain.User{ID: "u-1"}, "p-2", 5)
	if err != nil {
		t.Fatalf("zero-count grant: %v", err)
	}
	if granted != 0 {
		t.Fatalf("zero-count purchase should grant 0, got %d", granted)
	}
	usage, _, _ = mem.GetUsage("u-1", "2026-03-01")
	if usage.BonusMessages != 20 {
		t.Fatalf("bonus should be unchanged after zero grant, got %+v", usage)
	}
	p2, _, _ := mem.GetPurchase("p-2", "u-1")
	if !p2.Redeemed {
		t.Fatalf("zero-count purchase should still be marked redeemed")
	}
}

func TestDeleteAccountSelfOnly(t *testing.T) {
	mem := store.NewMemoryStore()
	svc := newTestService(t, mem, &stubProvider{reply: "ok"}, time.Now())

	_ = mem.CreateConversation(domain.Conversation{ID: "c-1", UserID: "u-1"})

	if err := svc.DeleteAccount(domain.User{ID: "u-1"}, "u-2"); !errors.Is(err, ErrSelfDeleteOnly) {
		t.Fatalf("deleting another user should fail, got %v", err)
	}
	if err := svc.DeleteAccount(domain.User{ID: "u-1"}, ""); !errors.Is(err, ErrSelfDeleteOnly) {
		t.Fatalf("empty target should fail, got %v", err)
	}
	if err := svc.DeleteAccount(domain.User{ID: "u-1"}, "u-1"); err != nil {
		t.Fatalf("self delete: %v", err)
	}
	if _, ok, _ := mem.GetConversation("c-1"); ok {
		t.Fatalf("conversation should be gone after account deletion")
	}
}

func TestListMessagesOwnership(t *testing.T) {
	mem := store.NewMemoryStore()
	svc := newTestService(t, mem, &stubProvider{reply: "ok"}, time.Now())

	conversationID := "a3bb189e-8bf9-3888-9912-ace4e6543002"
	_ = mem.CreateConversation(domain.Conversation{ID: conversationID, UserID: "u-1"})
	_ = mem.AppendMessage(domain.Message{ID: "m-1", ConversationID: conversationID, Role: domain.RoleUser, Content: "hi"})

	items, err := svc.ListMessages(domain.User{ID: "u-1"}, conversationID, 0)
	if err != nil || len(items) != 1 {
		t.Fatalf("owner should list messages: %v", err)
	}
	if _, err := svc.ListMessages(domain.User{ID: "u-2"}, conversationID, 0); !errors.Is(err, ErrConversationNotFound) {
		t.Fatalf("foreign listing should be not found, got %v", err)
	}
}
