package domain

import "time"

type SubscriptionTier string

const (
	TierFree    SubscriptionTier = "free"
	TierPremium SubscriptionTier = "premium"
)

// ContextType selects the system-prompt template and token budget for a chat turn.
type ContextType string

const (
	ContextGeneral        ContextType = "general"
	ContextChart          ContextType = "chart"
	ContextTransit        ContextType = "transit"
	ContextTransitInsight ContextType = "transit_insight"
	ContextChartReading   ContextType = "chart_reading"
	ContextCompatibility  ContextType = "compatibility"
	ContextDream          ContextType = "dream"
	ContextJournal        ContextType = "journal"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type User struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
}

type Subscription struct {
	UserID    string           `json:"user_id"`
	Tier      SubscriptionTier `json:"tier"`
	ExpiresAt time.Time        `json:"expires_at"`
}

type Conversation struct {
	ID            string      `json:"id"`
	UserID        string      `json:"user_id"`
	ContextType   ContextType `json:"context_type"`
	Title         string      `json:"title"`
	MessageCount  int         `json:"message_count"`
	LastMessageAt time.Time   `json:"last_message_at"`
	CreatedAt     time.Time   `json:"created_at"`
}

type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// Usage is the calendar-month quota row for one user. PeriodStart is the
// first day of the month, formatted YYYY-MM-01 in UTC.
type Usage struct {
	UserID        string    `json:"user_id"`
	PeriodStart   string    `json:"period_start"`
	MessagesCount int       `json:"messages_count"`
	BonusMessages int       `json:"bonus_messages"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type Purchase struct {
	ID           string     `json:"id"`
	UserID       string     `json:"user_id"`
	MessageCount int        `json:"message_count"`
	Redeemed     bool       `json:"redeemed"`
	RedeemedAt   *time.Time `json:"redeemed_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}
