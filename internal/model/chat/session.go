package chat

import (
	"time"

	"github.com/omnimind/omnimind-engine/internal/model/persona"
)

// Session captures one therapeutic conversation owned by a single user.
// It is created on the first user message or an explicit "new conversation"
// action and is never hard-deleted by this subsystem.
type Session struct {
	ID        string       `json:"id"`
	OwnerID   string       `json:"ownerId"`
	Mode      persona.Mode `json:"therapyMode"`
	Title     string       `json:"title"`
	Summary   string       `json:"summary,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}
