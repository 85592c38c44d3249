package agents

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"StockSage/internal/domain/models"
	domsvc "StockSage/internal/domain/service"
	"StockSage/pkg/logger"
)

const sentimentSystemPrompt = `You are a market sentiment analyst. Judge the tone of recent news coverage for the stock. End your answer with a line of the form "SENTIMENT_SCORE: X" where X is a number between -1.0 (very negative) and 1.0 (very positive).`

var sentimentScoreRe = regexp.MustCompile(`SENTIMENT_SCORE:\s*(-?\d+(?:\.\d+)?)`)

// SentimentAgent scores recent news coverage for a symbol.
type SentimentAgent struct {
	news domsvc.NewsFeed
	gen  domsvc.TextGenerator
	log  *logger.Logger
}

func NewSentimentAgent(news domsvc.NewsFeed, gen domsvc.TextGenerator, log *logger.Logger) *SentimentAgent {
	return &SentimentAgent{news: news, gen: gen, log: log}
}

func (a *SentimentAgent) Name() models.AgentName { return models.AgentSentiment }

func (a *SentimentAgent) Analyze(ctx context.Context, symbol string, report func(string)) (*models.Fragment, error) {
	report("Fetching recent news")
	sources, err := a.news.CompanyNews(ctx, symbol, 10)
	if err != nil {
		return nil, fmt.Errorf("sentiment %s: %w", symbol, err)
	}
	if len(sources) == 0 {
		// Thinly covered symbols fall back to broad market tone.
		if market, err := a.news.MarketNews(ctx, 10); err == nil {
			sources = market
		}
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("sentiment %s: no news available", symbol)
	}

	report("Scoring news sentiment")
	raw, err := a.gen.Generate(ctx, sentimentSystemPrompt, a.buildPrompt(symbol, sources))
	if err != nil {
		return nil, fmt.Errorf("sentiment %s: %w", symbol, err)
	}

	score, found := ExtractSentimentScore(raw)
	if !found {
		a.log.Warn("sentiment score missing from model output", logger.String("symbol", symbol))
	}

	return &models.Fragment{
		Agent: models.AgentSentiment,
		Sentiment: &models.SentimentFragment{
			Summary: strings.TrimSpace(stripScoreLine(raw)),
			Score:   score,
			Sources: sources,
		},
	}, nil
}

func (a *SentimentAgent) buildPrompt(symbol string, sources []models.Source) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Recent news about %s:\n", symbol)
	for _, s := range sources {
		fmt.Fprintf(&sb, "- %s\n", s.Title)
	}
	sb.WriteString("\nSummarize the sentiment of this coverage in a short paragraph.")
	return sb.String()
}

// ExtractSentimentScore pulls the SENTIMENT_SCORE value from model
// output, clamped to [-1, 1]. Missing or unparseable scores read as
// neutral 0.0.
func ExtractSentimentScore(raw string) (float64, bool) {
	m := sentimentScoreRe.FindStringSubmatch(raw)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	if v > 1 {
		v = 1
	}
	if v < -1 {
		v = -1
	}
	return v, true
}

func stripScoreLine(raw string) string {
	lines := strings.Split(raw, "\n")
	out := lines[:0]
	for _, l := range lines {
		if sentimentScoreRe.MatchString(l) {
			continue
		}
		out = append(out, l)
	}
	return strings.Join(out, "\n")
}
