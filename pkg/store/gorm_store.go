package store

import (
	"errors"
	"fmt"
	"log"
	"os"
	"sort"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"auramind/pkg/domain"
)

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.AutoMigrate(
		&SubscriptionModel{},
		&ConversationModel{},
		&MessageModel{},
		&UsageModel{},
		&PurchaseModel{},
	); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) SaveSubscription(sub domain.Subscription) error {
	model := SubscriptionModel{
		UserID:    sub.UserID,
		Tier:      string(sub.Tier),
		ExpiresAt: sub.ExpiresAt.UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		UpdateAll: true,
	}).Create(&model).Error
}

func (s *GormStore) GetSubscription(userID string) (domain.Subscription, bool, error) {
	var model SubscriptionModel
	err := s.db.First(&model, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Subscription{}, false, nil
	}
	if err != nil {
		return domain.Subscription{}, false, err
	}
	return domain.Subscription{
		UserID:    model.UserID,
		Tier:      domain.SubscriptionTier(model.Tier),
		ExpiresAt: model.ExpiresAt,
	}, true, nil
}

func (s *GormStore) CreateConversation(conversation domain.Conversation) error {
	model := conversationToModel(conversation)
	return s.db.Create(&model).Error
}

func (s *GormStore) GetConversation(id string) (domain.Conversation, bool, error) {
	var model ConversationModel
	err := s.db.First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Conversation{}, false, nil
	}
	if err != nil {
		return domain.Conversation{}, false, err
	}
	return conversationFromModel(model), true, nil
}

func (s *GormStore) ListConversationsByUser(userID string, limit int) ([]domain.Conversation, error) {
	var models []ConversationModel
	query := s.db.Where("user_id = ?", userID).Order("last_message_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	items := make([]domain.Conversation, 0, len(models))
	for _, model := range models {
		items = append(items, conversationFromModel(model))
	}
	return items, nil
}

func (s *GormStore) CountConversations(userID string) (int, error) {
	var count int64
	err := s.db.Model(&ConversationModel{}).Where("user_id = ?", userID).Count(&count).Error
	return int(count), err
}

func (s *GormStore) OldestConversation(userID string) (domain.Conversation, bool, error) {
	var model ConversationModel
	err := s.db.Where("user_id = ?", userID).Order("last_message_at ASC").First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Conversation{}, false, nil
	}
	if err != nil {
		return domain.Conversation{}, false, err
	}
	return conversationFromModel(model), true, nil
}

func (s *GormStore) DeleteConversation(id string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("conversation_id = ?", id).Delete(&MessageModel{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&ConversationModel{}).Error
	})
}

func (s *GormStore) TouchConversation(id string, messageCount int, lastMessageAt time.Time) error {
	return s.db.Model(&ConversationModel{}).Where("id = ?", id).Updates(map[string]any{
		"message_count":   messageCount,
		"last_message_at": lastMessageAt.UTC(),
	}).Error
}

func (s *GormStore) AppendMessage(msg domain.Message) error {
	model := messageToModel(msg)
	return s.db.Create(&model).Error
}

func (s *GormStore) ListRecentMessages(conversationID string, limit int) ([]domain.Message, error) {
	var models []MessageModel
	query := s.db.Where("conversation_id = ?", conversationID).Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	items := make([]domain.Message, 0, len(models))
	for _, model := range models {
		items = append(items, messageFromModel(model))
	}
	// Flip the newest-first page into chronological order.
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	return items, nil
}

func (s *GormStore) CountMessages(conversationID string) (int, error) {
	var count int64
	err := s.db.Model(&MessageModel{}).Where("conversation_id = ?", conversationID).Count(&count).Error
	return int(count), err
}

func (s *GormStore) GetUsage(userID, periodStart string) (domain.Usage, bool, error) {
	var model UsageModel
	err := s.db.First(&model, "user_id = ? AND period_start = ?", userID, periodStart).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Usage{}, false, nil
	}
	if err != nil {
		return domain.Usage{}, false, err
	}
	return domain.Usage{
		UserID:        model.UserID,
		PeriodStart:   model.PeriodStart,
		MessagesCount: model.MessagesCount,
		BonusMessages: model.BonusMessages,
		UpdatedAt:     model.UpdatedAt,
	}, true, nil
}

func (s *GormStore) IncrementUsage(userID, periodStart string) error {
	now := time.Now().UTC()
	return s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "period_start"}},
		DoUpdates: clause.Assignments(map[string]any{
			"messages_count": gorm.Expr("ai_usage.messages_count + 1"),
			"updated_at":     now,
		}),
	}).Create(&UsageModel{
		UserID:        userID,
		PeriodStart:   periodStart,
		MessagesCount: 1,
		UpdatedAt:     now,
	}).Error
}

func (s *GormStore) AddBonusMessages(userID, periodStart string, count int) error {
	now := time.Now().UTC()
	return s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "period_start"}},
		DoUpdates: clause.Assignments(map[string]any{
			"bonus_messages": gorm.Expr("ai_usage.bonus_messages + ?", count),
			"updated_at":     now,
		}),
	}).Create(&UsageModel{
		UserID:        userID,
		PeriodStart:   periodStart,
		BonusMessages: count,
		UpdatedAt:     now,
	}).Error
}

func (s *GormStore) SavePurchase(p domain.Purchase) error {
	model := PurchaseModel{
		ID:           p.ID,
		UserID:       p.UserID,
		MessageCount: p.MessageCount,
		Redeemed:     p.Redeemed,
		RedeemedAt:   p.RedeemedAt,
		CreatedAt:    p.CreatedAt.UTC(),
	}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&model).Error
}

func (s *GormStore) GetPurchase(id, userID string) (domain.Purchase, bool, error) {
	var model PurchaseModel
	err := s.db.First(&model, "id = ? AND user_id = ?", id, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Purchase{}, false, nil
	}
	if err != nil {
		return domain.Purchase{}, false, err
	}
	return domain.Purchase{
		ID:           model.ID,
		UserID:       model.UserID,
		MessageCount: model.MessageCount,
		Redeemed:     model.Redeemed,
		RedeemedAt:   model.RedeemedAt,
		CreatedAt:    model.CreatedAt,
	}, true, nil
}

func (s *GormStore) MarkPurchaseRedeemed(id string, redeemedAt time.Time) error {
	at := redeemedAt.UTC()
	return s.db.Model(&PurchaseModel{}).Where("id = ?", id).Updates(map[string]any{
		"redeemed":    true,
		"redeemed_at": at,
	}).Error
}

func (s *GormStore) DeleteUserData(userID string) error {
	// Ordered to respect foreign keys: child tables first.
	return s.db.Transaction(func(tx *gorm.DB) error {
		conversationIDs := tx.Model(&ConversationModel{}).Select("id").Where("user_id = ?", userID)
		if err := tx.Where("conversation_id IN (?)", conversationIDs).Delete(&MessageModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", userID).Delete(&ConversationModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", userID).Delete(&UsageModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", userID).Delete(&PurchaseModel{}).Error; err != nil {
			return err
		}
		return tx.Where("user_id = ?", userID).Delete(&SubscriptionModel{}).Error
	})
}

func conversationToModel(c domain.Conversation) ConversationModel {
	return ConversationModel{
		ID:            c.ID,
		UserID:        c.UserID,
		ContextType:   string(c.ContextType),
		Title:         c.Title,
		MessageCount:  c.MessageCount,
		LastMessageAt: c.LastMessageAt.UTC(),
		CreatedAt:     c.CreatedAt.UTC(),
	}
}

func conversationFromModel(m ConversationModel) domain.Conversation {
	return domain.Conversation{
		ID:            m.ID,
		UserID:        m.UserID,
		ContextType:   domain.ContextType(m.ContextType),
		Title:         m.Title,
		MessageCount:  m.MessageCount,
		LastMessageAt: m.LastMessageAt,
		CreatedAt:     m.CreatedAt,
	}
}

func messageToModel(msg domain.Message) MessageModel {
	return MessageModel{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		Role:           msg.Role,
		Content:        msg.Content,
		CreatedAt:      msg.CreatedAt.UTC(),
	}
}

func messageFromModel(m MessageModel) domain.Message {
	return domain.Message{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		Role:           m.Role,
		Content:        m.Content,
		CreatedAt:      m.CreatedAt,
	}
}
