package chat

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"auramind/pkg/domain"
)

const (
	// MaxMessageLength bounds a single user message, in characters.
	MaxMessageLength = 2000
	// MaxChartContextSize bounds the serialized chart context, in characters.
	MaxChartContextSize = 10000
)

var validContextTypes = map[string]domain.ContextType{
	"chart":           domain.ContextChart,
	"transit":         domain.ContextTransit,
	"general":         domain.ContextGeneral,
	"transit_insight": domain.ContextTransitInsight,
	"chart_reading":   domain.ContextChartReading,
	"compatibility":   domain.ContextCompatibility,
	"dream":           domain.ContextDream,
	"journal":         domain.ContextJournal,
}

// Top-level chart_context keys the prompt may carry. Anything else is
// silently stripped, not rejected, matching what the chart builder emits.
var allowedChartContextKeys = map[string]bool{
	"name": true, "type": true, "strategy": true, "authority": true,
	"profile": true, "definition": true, "definedCenters": true,
	"undefinedCenters": true, "channels": true, "consciousGates": true,
	"unconsciousGates": true, "incarnationCross": true,
	// transit context
	"transitGates": true, "transitChannels": true, "newChannels": true,
	"activatedGates": true,
	// compatibility context
	"person1": true, "person2": true, "compositeResult": true,
	"electromagneticChannels": true, "companionshipChannels": true,
	"dominanceChannels": true, "compromiseChannels": true,
}

func validateMessage(message string) (string, error) {
	trimmed := strings.TrimSpace(message)
	if trimmed == "" {
		return "", validationErrorf("Message cannot be empty")
	}
	if utf8.RuneCountInString(trimmed) > MaxMessageLength {
		return "", validationErrorf(fmt.Sprintf("Message exceeds maximum length of %d characters", MaxMessageLength))
	}
	return trimmed, nil
}

// validateConversationID accepts an empty id (meaning "start a new
// conversation") or a canonical hyphenated UUID.
func validateConversationID(id string) (string, error) {
	if id == "" {
		return "", nil
	}
	if len(id) != 36 {
		return "", validationErrorf("Invalid conversation ID format")
	}
	if _, err := uuid.Parse(id); err != nil {
		return "", validationErrorf("Invalid conversation ID format")
	}
	return id, nil
}

// normalizeContextType maps unrecognized values to general rather than
// rejecting them.
func normalizeContextType(contextType string) domain.ContextType {
	if normalized, ok := validContextTypes[contextType]; ok {
		return normalized
	}
	return domain.ContextGeneral
}

// validateChartContext size-caps the payload and strips unlisted top-level
// keys. The prompt composer trusts that this filtering already happened.
func validateChartContext(ctx map[string]any) (map[string]any, error) {
	if ctx == nil {
		return nil, nil
	}
	serialized, err := json.Marshal(ctx)
	if err != nil {
		return nil, validationErrorf("chart_context must be an object")
	}
	if utf8.RuneCount(serialized) > MaxChartContextSize {
		return nil, validationErrorf(fmt.Sprintf("chart_context exceeds maximum size of %d characters", MaxChartContextSize))
	}
	filtered := make(map[string]any, len(ctx))
	for key, value := range ctx {
		if allowedChartContextKeys[key] {
			filtered[key] = value
		}
	}
	return filtered, nil
}
