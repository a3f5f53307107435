package store

import (
	"sort"
	"sync"
	"time"

	"auramind/pkg/domain"
)

// MemoryStore keeps all records in-process. It backs tests and local
// development; GormStore is the production implementation.
type MemoryStore struct {
	mu            sync.RWMutex
	subscriptions map[string]domain.Subscription
	conversations map[string]domain.Conversation
	messages      map[string][]domain.Message // conversation id -> append order
	usage         map[string]domain.Usage     // user id + "|" + period start
	purchases     map[string]domain.Purchase
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		subscriptions: make(map[string]domain.Subscription),
		conversations: make(map[string]domain.Conversation),
		messages:      make(map[string][]domain.Message),
		usage:         make(map[string]domain.Usage),
		purchases:     make(map[string]domain.Purchase),
	}
}

func usageKey(userID, periodStart string) string {
	return userID + "|" + periodStart
}

func (m *MemoryStore) SaveSubscription(sub domain.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscriptions[sub.UserID] = sub
	return nil
}

func (m *MemoryStore) GetSubscription(userID string) (domain.Subscription, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sub, ok := m.subscriptions[userID]
	return sub, ok, nil
}

func (m *MemoryStore) CreateConversation(conversation domain.Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conversations[conversation.ID] = conversation
	return nil
}

func (m *MemoryStore) GetConversation(id string) (domain.Conversation, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	conversation, ok := m.conversations[id]
	return conversation, ok, nil
}

func (m *MemoryStore) ListConversationsByUser(userID string, limit int) ([]domain.Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	items := make([]domain.Conversation, 0)
	for _, conversation := range m.conversations {
		if conversation.UserID == userID {
			items = append(items, conversation)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].LastMessageAt.After(items[j].LastMessageAt)
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (m *MemoryStore) CountConversations(userID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, conversation := range m.conversations {
		if conversation.UserID == userID {
			count++
		}
	}
	return count, nil
}

func (m *MemoryStore) OldestConversation(userID string) (domain.Conversation, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var oldest domain.Conversation
	found := false
	for _, conversation := range m.conversations {
		if conversation.UserID != userID {
			continue
		}
		if !found || conversation.LastMessageAt.Before(oldest.LastMessageAt) {
			oldest = conversation
			found = true
		}
	}
	return oldest, found, nil
}

func (m *MemoryStore) DeleteConversation(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.conversations, id)
	delete(m.messages, id)
	return nil
}

func (m *MemoryStore) TouchConversation(id string, messageCount int, lastMessageAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	conversation, ok := m.conversations[id]
	if !ok {
		return nil
	}
	conversation.MessageCount = messageCount
	conversation.LastMessageAt = lastMessageAt
	m.conversations[id] = conversation
	return nil
}

func (m *MemoryStore) AppendMessage(msg domain.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[msg.ConversationID] = append(m.messages[msg.ConversationID], msg)
	return nil
}

func (m *MemoryStore) ListRecentMessages(conversationID string, limit int) ([]domain.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	all := m.messages[conversationID]
	items := make([]domain.Message, len(all))
	copy(items, all)
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	if limit > 0 && len(items) > limit {
		items = items[len(items)-limit:]
	}
	return items, nil
}

func (m *MemoryStore) CountMessages(conversationID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.messages[conversationID]), nil
}

func (m *MemoryStore) GetUsage(userID, periodStart string) (domain.Usage, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	usage, ok := m.usage[usageKey(userID, periodStart)]
	return usage, ok, nil
}

func (m *MemoryStore) IncrementUsage(userID, periodStart string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := usageKey(userID, periodStart)
	usage := m.usage[key]
	usage.UserID = userID
	usage.PeriodStart = periodStart
	usage.MessagesCount++
	usage.UpdatedAt = time.Now().UTC()
	m.usage[key] = usage
	return nil
}

func (m *MemoryStore) AddBonusMessages(userID, periodStart string, count int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := usageKey(userID, periodStart)
	usage := m.usage[key]
	usage.UserID = userID
	usage.PeriodStart = periodStart
	usage.BonusMessages += count
	usage.UpdatedAt = time.Now().UTC()
	m.usage[key] = usage
	return nil
}

func (m *MemoryStore) SavePurchase(p domain.Purchase) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.purchases[p.ID] = p
	return nil
}

func (m *MemoryStore) GetPurchase(id, userID string) (domain.Purchase, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	purchase, ok := m.purchases[id]
	if !ok || purchase.UserID != userID {
		return domain.Purchase{}, false, nil
	}
	return purchase, true, nil
}

func (m *MemoryStore) MarkPurchaseRedeemed(id string, redeemedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	purchase, ok := m.purchases[id]
	if !ok {
		return nil
	}
	purchase.Redeemed = true
	at := redeemedAt
	purchase.RedeemedAt = &at
	m.purchases[id] = purchase
	return nil
}

func (m *MemoryStore) DeleteUserData(userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, conversation := range m.conversations {
		if conversation.UserID == userID {
			delete(m.conversations, id)
			delete(m.messages, id)
		}
	}
	for key, usage := range m.usage {
		if usage.UserID == userID {
			delete(m.usage, key)
		}
	}
	for id, purchase := range m.purchases {
		if purchase.UserID == userID {
			delete(m.purchases, id)
		}
	}
	delete(m.subscriptions, userID)
	return nil
}
