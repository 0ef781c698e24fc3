// Package generation produces answers from assembled prompts with an OpenAI
// chat model.
package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openai/openai-go"
)

const (
	// DefaultModel is the chat model used for answers.
	DefaultModel = "gpt-4o-mini"

	// DefaultMaxTokens is the user message budget before old history is dropped.
	DefaultMaxTokens = 16000
)

// ErrGenerationService marks a failure of the upstream model.
var ErrGenerationService = errors.New("generation service failure")

// Prompt is a system instruction plus the user message it applies to. The
// user message is the History lines, oldest first, followed by the Question.
type Prompt struct {
	System   string
	History  []string
	Question string
}

// User renders the user message.
func (p Prompt) User() string {
	var b strings.Builder
	if len(p.History) > 0 {
		b.WriteString("Conversation so far:\n")
		b.WriteString(strings.Join(p.History, "\n"))
		b.WriteString("\n\n")
	}
	b.WriteString("Question: ")
	b.WriteString(p.Question)
	return b.String()
}

// Generator calls the chat completions API.
type Generator struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float64
	logger      *slog.Logger
}

// Option configures a Generator.
type Option func(*Generator)

// WithModel overrides the chat model.
func WithModel(model string) Option {
	return func(g *Generator) {
		if model != "" {
			g.model = model
		}
	}
}

// WithMaxTokens sets the user message budget in tokens.
func WithMaxTokens(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.maxTokens = n
		}
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(g *Generator) {
		g.temperature = t
	}
}

// WithLogger sets the logger used for truncation warnings.
func WithLogger(l *slog.Logger) Option {
	return func(g *Generator) {
		if l != nil {
			g.logger = l
		}
	}
}

// NewGenerator creates a generator with the given OpenAI client.
func NewGenerator(client *openai.Client, opts ...Option) *Generator {
	g := &Generator{
		client:      client,
		model:       DefaultModel,
		maxTokens:   DefaultMaxTokens,
		temperature: 0.2,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate returns the complete answer for p.
func (g *Generator) Generate(ctx context.Context, p Prompt) (string, error) {
	resp, err := g.client.Chat.Completions.New(ctx, g.params(p))
	if err != nil {
		return "", fmt.Errorf("%w: chat completion failed: %w", ErrGenerationService, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty completion", ErrGenerationService)
	}
	return resp.Choices[0].Message.Content, nil
}

// GenerateStream forwards answer fragments to onFragment in order. An error
// from onFragment stops the stream and is returned as is.
func (g *Generator) GenerateStream(ctx context.Context, p Prompt, onFragment func(string) error) error {
	stream := g.client.Chat.Completions.NewStreaming(ctx, g.params(p))
	defer stream.Close()

	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		text := chunk.Choices[0].Delta.Content
		if text == "" {
			continue
		}
		if err := onFragment(text); err != nil {
			return err
		}
	}
	if err := stream.Err(); err != nil {
		return fmt.Errorf("%w: stream failed: %w", ErrGenerationService, err)
	}
	return nil
}

func (g *Generator) params(p Prompt) openai.ChatCompletionNewParams {
	return openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(p.System),
			openai.UserMessage(g.fit(p).User()),
		},
		Model:       openai.ChatModel(g.model),
		Temperature: openai.Float(g.temperature),
	}
}

// fit drops the oldest history lines until the user message fits the token
// budget. The question is always kept, even when it alone exceeds the budget.
// Uses rough estimate of 4 characters per token.
func (g *Generator) fit(p Prompt) Prompt {
	maxChars := g.maxTokens * 4
	size := len(p.User())
	if size <= maxChars {
		return p
	}

	history := p.History
	for len(history) > 0 && size > maxChars {
		size -= len(history[0]) + 1
		history = history[1:]
	}
	if len(history) == 0 {
		// Without history the "Conversation so far" block disappears entirely.
		size = len(Prompt{Question: p.Question}.User())
	}

	g.logger.Warn("Dropping old history from prompt",
		"dropped_lines", len(p.History)-len(history), "to_chars", size, "estimated_tokens", g.maxTokens)

	p.History = history
	return p
}
