package llm

// Role represents the role of a message sender in a conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message represents a single message in a conversation.
type Message struct {
	Role    Role
	Content string
}

// CompletionRequest contains the parameters for a single generate call.
//
// When Schema is set the provider constrains its output to JSON of that shape
// (natively where the vendor supports it, by instruction otherwise). When
// SearchGrounding is set the provider may consult live web search; providers
// without a search tool ignore it.
type CompletionRequest struct {
	Model       string
	Messages    []Message
	MaxTokens   int
	Temperature float64

	// JSONMode asks for a JSON object without a declared shape.
	JSONMode bool
	// Schema declares the exact output shape. Implies JSONMode.
	Schema *Schema
	// SchemaName labels the schema for vendors that require one.
	SchemaName string

	SearchGrounding bool
	// ThinkingBudget caps reasoning tokens on models that support it. Zero leaves
	// the vendor default.
	ThinkingBudget int
}

// CompletionResponse contains the result of a generate call.
type CompletionResponse struct {
	Content      string
	InputTokens  int
	OutputTokens int
	Model        string
	FinishReason string
	// GroundingRefs lists source URIs consulted by search grounding.
	GroundingRefs []string
}

// SystemPrompt returns the concatenated system messages of a request.
func (r CompletionRequest) SystemPrompt() string {
	var out string
	for _, m := range r.Messages {
		if m.Role != RoleSystem {
			continue
		}
		if out != "" {
			out += "\n\n"
		}
		out += m.Content
	}
	return out
}

func (r CompletionRequest) wantsJSON() bool {
	return r.JSONMode || r.Schema != nil
}
