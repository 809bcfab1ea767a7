package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event is one row-change record awaiting publication to the feed. Rows are
// written in the same transaction as the mutation they describe; the
// listener publishes and marks them sent.
type Event struct {
	ID        uuid.UUID       `json:"id"`
	RoundID   uuid.UUID       `json:"round_id"`
	GameType  string          `json:"game_type"`
	EventType string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
	SentAt    *time.Time      `json:"sent_at,omitempty"`
}
