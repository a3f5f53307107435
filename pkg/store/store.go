package store

import (
	"time"

	"auramind/pkg/domain"
)

// Store defines persistence operations for conversations, messages, usage
// counters, purchases, and subscriptions. There is no cross-operation
// transaction: callers sequence these steps and accept partial failure.
type Store interface {
	// subscriptions
	SaveSubscription(domain.Subscription) error
	GetSubscription(userID string) (domain.Subscription, bool, error)

	// conversations
	CreateConversation(domain.Conversation) error
	GetConversation(id string) (domain.Conversation, bool, error)
	ListConversationsByUser(userID string, limit int) ([]domain.Conversation, error)
	CountConversations(userID string) (int, error)
	// OldestConversation returns the user's conversation with the oldest
	// last_message_at timestamp.
	OldestConversation(userID string) (domain.Conversation, bool, error)
	// DeleteConversation removes the conversation and, by cascade, its messages.
	DeleteConversation(id string) error
	TouchConversation(id string, messageCount int, lastMessageAt time.Time) error

	// messages
	AppendMessage(domain.Message) error
	// ListRecentMessages returns up to limit of the most recent messages,
	// ordered oldest-first.
	ListRecentMessages(conversationID string, limit int) ([]domain.Message, error)
	CountMessages(conversationID string) (int, error)

	// usage counters, keyed by (user, calendar-month period)
	GetUsage(userID, periodStart string) (domain.Usage, bool, error)
	IncrementUsage(userID, periodStart string) error
	AddBonusMessages(userID, periodStart string, count int) error

	// purchases
	SavePurchase(domain.Purchase) error
	GetPurchase(id, userID string) (domain.Purchase, bool, error)
	MarkPurchaseRedeemed(id string, redeemedAt time.Time) error

	// DeleteUserData removes every record owned by the user, child tables
	// first: messages, conversations, usage, purchases, subscription.
	DeleteUserData(userID string) error
}
