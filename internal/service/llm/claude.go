package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	domsvc "StockSage/internal/domain/service"
	"StockSage/pkg/logger"
)

// ClaudeGenerator produces analysis text via the Anthropic API.
type ClaudeGenerator struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	timeout   time.Duration
	log       *logger.Logger
}

func NewClaudeGenerator(apiKey, model string, maxTokens int, timeout time.Duration, log *logger.Logger) *ClaudeGenerator {
	if model == "" {
		model = "claude-sonnet-4-20250514"
	}
	if maxTokens <= 0 {
		maxTokens = 2048
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &ClaudeGenerator{
		client:    anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:     model,
		maxTokens: int64(maxTokens),
		timeout:   timeout,
		log:       log,
	}
}

var _ domsvc.TextGenerator = (*ClaudeGenerator)(nil)

func (g *ClaudeGenerator) Generate(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(g.model),
		MaxTokens: g.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userMessage)),
		},
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemPrompt}}
	}

	resp, err := g.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("claude: %w", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			sb.WriteString(b.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("claude: empty response")
	}

	g.log.Debug("claude completion",
		logger.String("model", g.model),
		logger.Int("response_length", sb.Len()))
	return sb.String(), nil
}
