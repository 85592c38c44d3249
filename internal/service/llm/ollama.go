package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	domsvc "StockSage/internal/domain/service"
	xhttp "StockSage/pkg/http"
	"StockSage/pkg/logger"
)

// OllamaGenerator produces analysis text via a local Ollama server.
type OllamaGenerator struct {
	baseURL string
	model   string
	http    *xhttp.Client
	log     *logger.Logger
}

func NewOllamaGenerator(baseURL, model string, timeout time.Duration, log *logger.Logger) *OllamaGenerator {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3.1"
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &OllamaGenerator{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		http:    xhttp.NewClient(xhttp.WithTimeout(timeout)),
		log:     log,
	}
}

var _ domsvc.TextGenerator = (*OllamaGenerator)(nil)

type ollamaChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string              `json:"model"`
	Messages []ollamaChatMessage `json:"messages"`
	Stream   bool                `json:"stream"`
}

type ollamaChatResponse struct {
	Message ollamaChatMessage `json:"message"`
	Error   string            `json:"error,omitempty"`
}

func (g *OllamaGenerator) Generate(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	req := ollamaChatRequest{
		Model:  g.model,
		Stream: false,
	}
	if systemPrompt != "" {
		req.Messages = append(req.Messages, ollamaChatMessage{Role: "system", Content: systemPrompt})
	}
	req.Messages = append(req.Messages, ollamaChatMessage{Role: "user", Content: userMessage})

	var resp ollamaChatResponse
	err := g.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodPost,
		URL:    g.baseURL + "/api/chat",
		Body:   req,
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("ollama: %w", err)
	}
	if resp.Error != "" {
		return "", fmt.Errorf("ollama: %s", resp.Error)
	}
	if strings.TrimSpace(resp.Message.Content) == "" {
		return "", fmt.Errorf("ollama: empty response")
	}

	g.log.Debug("ollama completion",
		logger.String("model", g.model),
		logger.Int("response_length", len(resp.Message.Content)))
	return resp.Message.Content, nil
}
