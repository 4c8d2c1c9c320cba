package domain

// Chat roles understood by OpenAI-compatible completion APIs.
const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// ChatMessage is a single turn sent to a completion API.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Reference is a web source collected for the researcher agent.
type Reference struct {
	Title   string
	URL     string
	Snippet string
}
