package ports

import "context"

// CompleteOptions tunes a single completion.
type CompleteOptions struct {
	Temperature float64
	MaxTokens   int
	// JSON asks the service for a JSON-only answer.
	JSON bool
}

// Completer is a single-shot LLM completion service.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string, opts CompleteOptions) (string, error)
}
