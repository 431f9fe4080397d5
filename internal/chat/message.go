package chat

// Role tags a message with its conversation side.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one role-tagged unit of conversation history.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}
