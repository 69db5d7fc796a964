package chat

import "time"

// Role tags the author of a transcript entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// TimeLayout is the wall-clock stamp rendered next to every message.
const TimeLayout = "15:04"

// Message is one transcript entry. Entries are immutable once appended.
type Message struct {
	ID          string    `json:"id"`
	Role        Role      `json:"role"`
	Content     string    `json:"content"`
	Time        string    `json:"time"`
	Audio       string    `json:"audio,omitempty"` // base64 encoded
	AudioFormat string    `json:"audioFormat,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// HasAudio reports whether an audio payload is attached.
func (m Message) HasAudio() bool {
	return m.Role == RoleAssistant && m.Audio != ""
}
