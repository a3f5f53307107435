package chat

import "errors"

var (
	// ErrRateLimited is returned when the per-user request window is full.
	ErrRateLimited = errors.New("too many requests")
	// ErrQuotaExceeded is returned when a free-tier user has spent the
	// month's message allowance.
	ErrQuotaExceeded = errors.New("monthly message limit reached")
	// ErrConversationNotFound covers both a missing conversation and one
	// owned by another user, so existence is never confirmed to outsiders.
	ErrConversationNotFound = errors.New("conversation not found")
	ErrPurchaseNotFound     = errors.New("purchase not found")
	ErrPurchaseRedeemed     = errors.New("purchase already redeemed")
	ErrSelfDeleteOnly       = errors.New("users can only delete their own account")
)

// ValidationError reports malformed input. Its message is safe to surface
// verbatim to the caller.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func validationErrorf(msg string) error {
	return &ValidationError{Message: msg}
}
