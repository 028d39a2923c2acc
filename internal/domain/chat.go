package domain

// Chat roles accepted on the wire. The relay forwards them verbatim to the
// upstream chat-completions API.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// ChatMessage is the provider-agnostic chat message shape used by the handler
// and LLM integrations.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the inbound body for POST /chat: the full conversation
// history accumulated by the caller, oldest turn first.
type ChatRequest struct {
	Messages []ChatMessage `json:"messages"`
}

// ValidRole reports whether role is one of the three accepted chat roles.
func ValidRole(role string) bool {
	switch role {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}
