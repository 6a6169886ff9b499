package chat

// Wire roles for completion request messages.
const (
	MessageRoleSystem    = "system"
	MessageRoleUser      = "user"
	MessageRoleAssistant = "assistant"
)

// PromptMessage is one entry of the ordered message list sent to the
// completion endpoint.
type PromptMessage struct {
	Role    string `json:"role"` // "system", "user" or "assistant"
	Content string `json:"content"`
}
