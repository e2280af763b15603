// Package agentctx implements the Context Builder (C9, §4.9): assembles a
// frozen Agent Context (§3) from a user's profile, recent conversation
// history, and a character-class language heuristic. The profile/history
// stores are external collaborators consumed only through their read
// interfaces, per §4.9.
package agentctx

import "context"

// Turn is one prior conversation turn, including any function calls made
// during it (§3 Agent Context: "history ... prior function calls").
type Turn struct {
	Role          string
	Content       string
	FunctionCalls []string
}

// AgentContext is the §3 Agent Context entity, a frozen value once built.
type AgentContext struct {
	UserID           string
	Query            string
	ConversationID   string
	History          []Turn
	UserInstructions string
	UserPreferences  map[string]interface{}
	Language         string // ISO tag, "vi" or "en"
}

// Profile is the subset of a user's stored profile the builder consumes.
type Profile struct {
	Instructions string
	Preferences  map[string]interface{}
}

// ProfileStore is the read-only profile collaborator (§4.9).
type ProfileStore interface {
	LoadProfile(ctx context.Context, userID string) (Profile, error)
}

// HistoryStore is the read-only conversation history collaborator (§4.9).
type HistoryStore interface {
	LoadHistory(ctx context.Context, conversationID string, limit int) ([]Turn, error)
}

// Builder is the Context Builder (C9).
type Builder struct {
	Profiles     ProfileStore
	History      HistoryStore
	HistoryTurns int // default 10
}

func (b *Builder) historyTurns() int {
	if b.HistoryTurns > 0 {
		return b.HistoryTurns
	}
	return 10
}

// Build assembles an AgentContext for a single run (§4.9 contract). A
// missing conversation_id skips history loading. Profile/history load
// failures degrade gracefully to empty values rather than aborting the
// build, since Context Builder failures must never block a run from
// starting (§7: "only failing to start (configuration) aborts").
func (b *Builder) Build(ctx context.Context, userID, query, conversationID string) AgentContext {
	result := AgentContext{
		UserID:          userID,
		Query:           query,
		ConversationID:  conversationID,
		UserPreferences: map[string]interface{}{},
		Language:        DetectLanguage(query),
	}

	if b.Profiles != nil {
		if profile, err := b.Profiles.LoadProfile(ctx, userID); err == nil {
			result.UserInstructions = profile.Instructions
			if profile.Preferences != nil {
				result.UserPreferences = profile.Preferences
			}
		}
	}

	if b.History != nil && conversationID != "" {
		if turns, err := b.History.LoadHistory(ctx, conversationID, b.historyTurns()); err == nil {
			result.History = turns
		}
	}

	return result
}

// vietnameseMarks covers the accented-letter and tone-mark rune ranges used
// in Vietnamese orthography (Latin-1 Supplement, Latin Extended-A/B, Latin
// Extended Additional, plus the combining marks), used as the char-class
// heuristic for language detection. The ranges are not exclusive to
// Vietnamese, so any accented Latin letter counts.
func vietnameseMarks(r rune) bool {
	switch {
	case r >= 0x00C0 && r <= 0x00FF: // Latin-1 Supplement accented letters
		return true
	case r >= 0x0100 && r <= 0x017F: // Latin Extended-A
		return true
	case r >= 0x0180 && r <= 0x024F: // Latin Extended-B (ơ, ư)
		return true
	case r >= 0x1EA0 && r <= 0x1EF9: // Latin Extended Additional (Vietnamese block)
		return true
	case r >= 0x0300 && r <= 0x036F: // combining diacritical marks
		return true
	default:
		return false
	}
}

// DetectLanguage applies a character-class heuristic (§4.9): any Vietnamese
// diacritic or tone-mark rune in query implies "vi", otherwise "en".
func DetectLanguage(query string) string {
	for _, r := range query {
		if vietnameseMarks(r) {
			return "vi"
		}
	}
	return "en"
}
