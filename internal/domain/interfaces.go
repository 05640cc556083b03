package domain

import "context"

// TextCompleter is an external text-completion collaborator (LLM provider).
// Implementations return the raw completion text for a single prompt.
type TextCompleter interface {
	Complete(ctx context.Context, systemPrompt, prompt string) (string, error)
}
