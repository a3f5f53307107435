package store

import "time"

// GORM models used for persistence. Table names follow the schema the
// mobile clients already depend on.

type SubscriptionModel struct {
	UserID    string    `gorm:"primaryKey"`
	Tier      string    `gorm:"not null"`
	ExpiresAt time.Time `gorm:"not null"`
	UpdatedAt time.Time
}

func (SubscriptionModel) TableName() string { return "subscriptions" }

type ConversationModel struct {
	ID            string    `gorm:"primaryKey"`
	UserID        string    `gorm:"not null;index"`
	ContextType   string    `gorm:"not null"`
	Title         string    `gorm:"not null"`
	MessageCount  int       `gorm:"not null;default:0"`
	LastMessageAt time.Time `gorm:"not null;index"`
	CreatedAt     time.Time `gorm:"not null"`
}

func (ConversationModel) TableName() string { return "ai_conversations" }

type MessageModel struct {
	ID             string    `gorm:"primaryKey"`
	ConversationID string    `gorm:"not null;index"`
	Role           string    `gorm:"not null"`
	Content        string    `gorm:"type:text;not null"`
	CreatedAt      time.Time `gorm:"not null;index"`
}

func (MessageModel) TableName() string { return "ai_messages" }

type UsageModel struct {
	UserID        string `gorm:"primaryKey"`
	PeriodStart   string `gorm:"primaryKey"`
	MessagesCount int    `gorm:"not null;default:0"`
	BonusMessages int    `gorm:"not null;default:0"`
	UpdatedAt     time.Time
}

func (UsageModel) TableName() string { return "ai_usage" }

type PurchaseModel struct {
	ID           string `gorm:"primaryKey"`
	UserID       string `gorm:"not null;index"`
	MessageCount int    `gorm:"not null"`
	Redeemed     bool   `gorm:"not null;default:false"`
	RedeemedAt   *time.Time
	CreatedAt    time.Time `gorm:"not null"`
}

func (PurchaseModel) TableName() string { return "ai_purchases" }
