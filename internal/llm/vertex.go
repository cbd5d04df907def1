package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/vertexai/genai"
)

const defaultVertexModel = "gemini-1.5-pro"

// VertexConfig configures a VertexClient.
type VertexConfig struct {
	ProjectID    string
	Region       string
	Model        string
	SystemPrompt string
	Timeout      time.Duration
}

// VertexClient answers through a Gemini model on Vertex AI.
type VertexClient struct {
	model      *genai.GenerativeModel
	modelName  string
	timeout    time.Duration
	baseClient *genai.Client
}

// NewVertexClient creates the genai client and configures the analyst model.
func NewVertexClient(ctx context.Context, cfg VertexConfig) (*VertexClient, error) {
	if cfg.ProjectID == "" || cfg.Region == "" {
		return nil, fmt.Errorf("NewVertexClient: projectID and region cannot be empty")
	}
	if cfg.Model == "" {
		cfg.Model = defaultVertexModel
	}

	baseClient, err := genai.NewClient(ctx, cfg.ProjectID, cfg.Region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	model := baseClient.GenerativeModel(cfg.Model)
	if cfg.SystemPrompt != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(cfg.SystemPrompt)},
		}
	}
	model.GenerationConfig = genai.GenerationConfig{
		Temperature: genai.Ptr[float32](0.0),
	}

	return &VertexClient{
		model:      model,
		modelName:  cfg.Model,
		timeout:    cfg.Timeout,
		baseClient: baseClient,
	}, nil
}

// Name returns the provider and model.
func (c *VertexClient) Name() string {
	return ProviderVertex + "/" + c.modelName
}

// Generate replays history into a chat session and sends prompt.
func (c *VertexClient) Generate(ctx context.Context, history Conversation, prompt string) (string, error) {
	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()

	cs := c.model.StartChat()
	cs.History = vertexHistory(history)

	resp, err := cs.SendMessage(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate content from gemini: %w", err)
	}
	return responseText(resp), nil
}

// Close releases the underlying genai client.
func (c *VertexClient) Close() error {
	if c.baseClient != nil {
		return c.baseClient.Close()
	}
	return nil
}

func vertexHistory(history Conversation) []*genai.Content {
	out := make([]*genai.Content, 0, len(history))
	for _, turn := range history {
		role := "user"
		if turn.Role == RoleAssistant {
			role = "model"
		}
		out = append(out, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(turn.Content)},
		})
	}
	return out
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	return b.String()
}
