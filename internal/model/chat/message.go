package chat

import "time"

// Message roles. Assistant messages always follow the user message that
// prompted them within the same session.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message persists a single turn half. Immutable once written; ordered by
// CreatedAt within a session.
type Message struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}
