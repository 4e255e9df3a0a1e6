package domain

import "time"

// Role is the author of a conversation record.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ConversationRecord is one append-only line of a conversation. Records are
// never updated or deleted.
type ConversationRecord struct {
	ID             string         `json:"id"`
	UserID         string         `json:"user_id"`
	ConversationID string         `json:"conversation_id"`
	Role           Role           `json:"role"`
	Content        string         `json:"content"`
	Timestamp      time.Time      `json:"timestamp"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}
