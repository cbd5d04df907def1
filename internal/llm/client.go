// Package llm wraps the text-generation backends the compliance analyst talks to.
package llm

import (
	"context"
	"fmt"
	"time"
)

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message of a conversation.
type Turn struct {
	Role    Role   `json:"role" firestore:"role"`
	Content string `json:"content" firestore:"content"`
}

// Conversation is the history a caller carries between questions. Values are never
// mutated in place; Append returns a new Conversation.
type Conversation []Turn

// Append returns a copy of c with one more turn.
func (c Conversation) Append(role Role, content string) Conversation {
	out := make(Conversation, len(c), len(c)+1)
	copy(out, c)
	return append(out, Turn{Role: role, Content: content})
}

// Exchange appends a question and its answer.
func (c Conversation) Exchange(question, answer string) Conversation {
	return c.Append(RoleUser, question).Append(RoleAssistant, answer)
}

// Client generates a reply to prompt given the prior conversation. The system prompt is
// fixed when the client is built.
type Client interface {
	Generate(ctx context.Context, history Conversation, prompt string) (string, error)
	Name() string
}

// Provider names accepted by New.
const (
	ProviderVertex = "vertex"
	ProviderOpenAI = "openai"
)

// Options configure New.
type Options struct {
	Provider     string
	Model        string
	SystemPrompt string
	Timeout      time.Duration

	ProjectID string
	Region    string

	OpenAIAPIKey string
	BaseURL      string
}

// New builds the client named by opts.Provider.
func New(ctx context.Context, opts Options) (Client, error) {
	switch opts.Provider {
	case ProviderVertex, "":
		c, err := NewVertexClient(ctx, VertexConfig{
			ProjectID:    opts.ProjectID,
			Region:       opts.Region,
			Model:        opts.Model,
			SystemPrompt: opts.SystemPrompt,
			Timeout:      opts.Timeout,
		})
		if err != nil {
			return nil, err
		}
		return c, nil
	case ProviderOpenAI:
		c, err := NewOpenAIClient(OpenAIConfig{
			APIKey:       opts.OpenAIAPIKey,
			Model:        opts.Model,
			SystemPrompt: opts.SystemPrompt,
			Timeout:      opts.Timeout,
			BaseURL:      opts.BaseURL,
		})
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", opts.Provider)
	}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
