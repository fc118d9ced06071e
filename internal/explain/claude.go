// Package explain asks a language model to describe a configuration diff
// in plain words.
package explain

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	DefaultModel     = "claude-3-5-haiku-latest"
	DefaultMaxTokens = 512
)

// Explainer describes a configuration change
type Explainer interface {
	ExplainChange(ctx context.Context, deviceID, unifiedDiff string) (string, error)
}

// Config configures a ClaudeClient
type Config struct {
	APIKey    string
	Model     string
	MaxTokens int
	BaseURL   string
}

type ClaudeClient struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewClaudeClient creates a client. The API key falls back to
// ANTHROPIC_API_KEY.
func NewClaudeClient(config Config) (*ClaudeClient, error) {
	apiKey := config.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY environment variable or explain.api_key is required")
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(1)}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}

	model := config.Model
	if model == "" {
		model = DefaultModel
	}
	maxTokens := config.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	return &ClaudeClient{
		client:    anthropic.NewClient(opts...),
		model:     model,
		maxTokens: int64(maxTokens),
	}, nil
}

func (c *ClaudeClient) ExplainChange(ctx context.Context, deviceID, unifiedDiff string) (string, error) {
	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(Prompt(deviceID, unifiedDiff))),
		},
	})
	if err != nil {
		return "", fmt.Errorf("explain change: %w", err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", fmt.Errorf("explain change: empty response")
	}
	return text, nil
}

// Prompt builds the request text for a diff
func Prompt(deviceID, unifiedDiff string) string {
	var sb strings.Builder
	sb.WriteString("The running configuration of network device ")
	sb.WriteString(deviceID)
	sb.WriteString(" changed. Summarize the change for a network operator in a few ")
	sb.WriteString("short bullet points, and flag anything that could affect routing, ")
	sb.WriteString("reachability or security.\n\n```diff\n")
	sb.WriteString(unifiedDiff)
	if !strings.HasSuffix(unifiedDiff, "\n") {
		sb.WriteString("\n")
	}
	sb.WriteString("```\n")
	return sb.String()
}
