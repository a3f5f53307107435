package chat

import (
	"fmt"
	"time"

	"auramind/pkg/domain"
)

// FreeMessagesPerMonth is the base allowance for non-premium users.
const FreeMessagesPerMonth = 5

// periodStart returns the calendar-month quota bucket for a point in time,
// as the first day of the month in UTC. UTC keeps the reset boundary
// identical across replicas regardless of server timezone.
func periodStart(now time.Time) string {
	now = now.UTC()
	return fmt.Sprintf("%04d-%02d-01", now.Year(), now.Month())
}

// isPremium reports whether the user currently holds an unexpired premium
// subscription. Evaluated fresh on every request; premium status is never
// cached across requests.
func (s *Service) isPremium(userID string) (bool, error) {
	sub, ok, err := s.store.GetSubscription(userID)
	if err != nil {
		return false, fmt.Errorf("load subscription: %w", err)
	}
	if !ok {
		return false, nil
	}
	return sub.Tier == domain.TierPremium && sub.ExpiresAt.After(s.now()), nil
}

// checkQuota enforces the monthly allowance for non-premium users. The
// matching increment happens separately, after a successful exchange. An
// absent usage row means zero consumption and zero bonus.
func (s *Service) checkQuota(userID string) error {
	usage, _, err := s.store.GetUsage(userID, periodStart(s.now()))
	if err != nil {
		return fmt.Errorf("load usage: %w", err)
	}
	if usage.MessagesCount >= FreeMessagesPerMonth+usage.BonusMessages {
		return ErrQuotaExceeded
	}
	return nil
}
