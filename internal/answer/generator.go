// Package answer turns retrieved chunks into an answer with an OpenAI chat model.
package answer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/hyperjump/pdfrag/internal/config"
	"github.com/hyperjump/pdfrag/internal/models"
	"github.com/hyperjump/pdfrag/internal/provider"
)

// NoResponse is returned when the model answers with nothing.
const NoResponse = "No response."

const systemPrompt = "You answer questions about a document using only the context excerpts provided. " +
	"If the context does not contain the answer, say that you don't know. " +
	"Answer in the language of the question. Keep answers concise."

// Generator answers questions from context chunks.
type Generator struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	policy      provider.Policy
	logger      *zap.Logger
}

// Option configures a Generator.
type Option func(*Generator)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(g *Generator) {
		g.logger = l
		g.policy.Logger = l
	}
}

// WithPolicy sets the timeout, retry and rate limit policy for chat calls.
func WithPolicy(p provider.Policy) Option {
	return func(g *Generator) {
		logger := g.policy.Logger
		g.policy = p
		if g.policy.Logger == nil {
			g.policy.Logger = logger
		}
	}
}

// NewGenerator creates a generator for the chat model in cfg.
func NewGenerator(apiKey, baseURL string, cfg config.LLMConfig, opts ...Option) (*Generator, error) {
	if apiKey == "" {
		return nil, errors.New("answer: API key is empty")
	}
	g := &Generator{
		client:      provider.NewOpenAIClient(apiKey, baseURL),
		model:       cfg.Model,
		temperature: float32(cfg.Temperature),
		maxTokens:   cfg.MaxTokens,
		policy:      provider.Policy{Name: "llm"},
	}
	if g.model == "" {
		g.model = openai.GPT4oMini
	}
	if g.maxTokens <= 0 {
		g.maxTokens = 512
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Answer asks the model question with chunks as context.
func (g *Generator) Answer(ctx context.Context, question string, chunks []*models.ContextChunk) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       g.model,
		Temperature: g.temperature,
		MaxTokens:   g.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: BuildPrompt(question, chunks)},
		},
	}
	resp, err := provider.Call(ctx, g.policy, func(ctx context.Context) (openai.ChatCompletionResponse, error) {
		r, err := g.client.CreateChatCompletion(ctx, req)
		return r, provider.OpenAIError(err)
	})
	if err != nil {
		return "", fmt.Errorf("answer: %w", err)
	}
	if len(resp.Choices) == 0 {
		return NoResponse, nil
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if g.logger != nil {
		g.logger.Debug("answered",
			zap.Int("context_chunks", len(chunks)),
			zap.Int("prompt_tokens", resp.Usage.PromptTokens),
			zap.Int("completion_tokens", resp.Usage.CompletionTokens))
	}
	if text == "" {
		return NoResponse, nil
	}
	return text, nil
}

// BuildPrompt places every chunk, tagged with its pages, ahead of the question.
func BuildPrompt(question string, chunks []*models.ContextChunk) string {
	var b strings.Builder
	b.WriteString("Context:\n")
	for _, c := range chunks {
		fmt.Fprintf(&b, "\n[%s]\n%s\n", c.Chunk.Pages, strings.TrimSpace(c.Chunk.Text))
	}
	b.WriteString("\nQuestion: ")
	b.WriteString(strings.TrimSpace(question))
	b.WriteString("\nAnswer:")
	return b.String()
}
