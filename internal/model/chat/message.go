package chat

import "time"

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Message is one turn of the tutor conversation. Messages are append-only.
//
// Hidden messages (the opening greeting) reach the model but not the
// learner's transcript. Failed marks a fallback reply; it and the user turn
// it answers stay in the transcript but are never sent back to the model.
type Message struct {
	ID        string    `json:"id" msgpack:"id"`
	SessionID string    `json:"sessionId" msgpack:"sessionId"`
	Role      Role      `json:"role" msgpack:"role"`
	Text      string    `json:"text" msgpack:"text"`
	Hidden    bool      `json:"-" msgpack:"hidden"`
	Failed    bool      `json:"failed,omitempty" msgpack:"failed"`
	CreatedAt time.Time `json:"createdAt" msgpack:"createdAt"`
}

// ModelContext filters a stored history down to what the model should see:
// hidden turns are kept, failed replies and the user turn before them are
// dropped.
func ModelContext(history []Message) []Message {
	out := make([]Message, 0, len(history))
	for _, msg := range history {
		if msg.Failed {
			if n := len(out); n > 0 && out[n-1].Role == RoleUser {
				out = out[:n-1]
			}
			continue
		}
		out = append(out, msg)
	}
	return out
}

// Transcript drops hidden messages.
func Transcript(history []Message) []Message {
	out := make([]Message, 0, len(history))
	for _, msg := range history {
		if !msg.Hidden {
			out = append(out, msg)
		}
	}
	return out
}
