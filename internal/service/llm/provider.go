package llm

import (
	"context"
	"fmt"
	"time"

	"StockSage/internal/domain/repository"
	domsvc "StockSage/internal/domain/service"
	"StockSage/pkg/config"
	"StockSage/pkg/logger"
)

// NewGenerator builds the configured text generator, instrumented with
// call metrics.
func NewGenerator(cfg *config.Config, metrics repository.Metrics, log *logger.Logger) (domsvc.TextGenerator, error) {
	var inner domsvc.TextGenerator
	switch cfg.LLM.Provider {
	case "claude":
		inner = NewClaudeGenerator(cfg.LLM.Claude.APIKey, cfg.LLM.Model, cfg.LLM.MaxTokens, cfg.LLM.Timeout, log)
	case "ollama":
		inner = NewOllamaGenerator(cfg.LLM.Ollama.BaseURL, cfg.LLM.Model, cfg.LLM.Timeout, log)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLM.Provider)
	}
	return &instrumented{inner: inner, provider: cfg.LLM.Provider, metrics: metrics}, nil
}

type instrumented struct {
	inner    domsvc.TextGenerator
	provider string
	metrics  repository.Metrics
}

func (m *instrumented) Generate(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	start := time.Now()
	out, err := m.inner.Generate(ctx, systemPrompt, userMessage)
	if m.metrics != nil {
		m.metrics.RecordLLMCall(m.provider, time.Since(start).Seconds(), err != nil)
	}
	return out, err
}
