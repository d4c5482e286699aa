package storage

import (
	"path"
	"strings"
)

const conversationPrefix = "conversations"

// ConversationKey builds the storage key for a per-conversation record.
// The conversation ID is sanitized so host-supplied identifiers cannot
// escape the conversation namespace.
func ConversationKey(conversationID, record string) string {
	return path.Join(conversationPrefix, SanitizeComponent(conversationID, 64), record)
}

// componentCleaner maps path separators and punctuation out of key
// components. Separators and dots become hyphens so adjacent words stay
// readable; the rest is dropped. No output contains another pattern, so
// a single pass is complete.
var componentCleaner = strings.NewReplacer(
	" ", "-", "/", "-", "\\", "-", ":", "-", ".", "-",
	"*", "", "?", "", "\"", "", "<", "", ">", "", "|", "",
	",", "", "'", "", "!", "", "@", "", "#", "", "$", "",
	"%", "", "^", "", "&", "", "(", "", ")", "", "[", "",
	"]", "", "{", "", "}", "", ";", "", "=", "", "+", "",
)

// SanitizeComponent converts a string to a safe key component. The
// result is lowercase, hyphen-separated, at most maxLen bytes, and
// never empty.
func SanitizeComponent(s string, maxLen int) string {
	s = componentCleaner.Replace(strings.ToLower(s))

	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "-")
	}
	s = strings.Trim(s, "-")

	if len(s) > maxLen {
		s = strings.TrimRight(s[:maxLen], "-")
	}
	if s == "" {
		s = "conversation"
	}
	return s
}
