package sculptor

import "context"

// Message roles.
const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// Message represents a message in a conversation
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// NewUserMessage creates a new user message
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// NewSystemMessage creates a new system message
func NewSystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// Request is one completion call: built fresh for every attempt.
type Request struct {
	Model          string
	Messages       []Message
	ResponseFormat *Contract
	Attempt        int
}

// Completion is what a transport hands back. Structured is set when the
// provider returns parsed structured output natively; otherwise the parser
// works from Text.
type Completion struct {
	Text       string
	Structured map[string]any
	Model      string
}

// Transport is the LLM request/response capability the pipeline depends on.
// Implementations must be safe for concurrent use; one transport is shared by
// every item of a batch.
type Transport interface {
	Complete(ctx context.Context, req *Request) (*Completion, error)
}

// TransportFunc adapts a plain function to Transport.
type TransportFunc func(ctx context.Context, req *Request) (*Completion, error)

func (f TransportFunc) Complete(ctx context.Context, req *Request) (*Completion, error) {
	return f(ctx, req)
}
