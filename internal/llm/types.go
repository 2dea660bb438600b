package llm

// Message represents a single message in a chat conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Completion is the result of a chat completion call, including token usage
// as reported by the backend.
type Completion struct {
	Text         string
	InputTokens  int
	OutputTokens int
}
