// Package ai abstracts the text-completion backend used by the auto-reply
// pipeline. The pipeline only needs a transcript in and text out; retries,
// timeouts and gating live with the caller.
package ai

import "context"

const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Turn is one entry of a chat transcript, oldest first.
type Turn struct {
	Role string
	Text string
}

// Completion is a provider response plus the analytics the caller records.
type Completion struct {
	Text         string
	Model        string
	PromptTokens int
	OutputTokens int
}

type Provider interface {
	Complete(ctx context.Context, systemPrompt string, transcript []Turn, message string) (*Completion, error)
}
