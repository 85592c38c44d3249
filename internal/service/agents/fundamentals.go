package agents

import (
	"context"
	"fmt"
	"strings"

	"StockSage/internal/domain/models"
	domsvc "StockSage/internal/domain/service"
	"StockSage/pkg/logger"
)

const fundamentalsSystemPrompt = `You are a fundamental analysis expert. Assess the company's financial health, valuation and growth prospects from the data provided. Be concise and concrete; cite the numbers you rely on.`

// FundamentalsAgent analyzes company financials and recent filings.
type FundamentalsAgent struct {
	market domsvc.MarketData
	news   domsvc.NewsFeed
	gen    domsvc.TextGenerator
	log    *logger.Logger
}

func NewFundamentalsAgent(market domsvc.MarketData, news domsvc.NewsFeed, gen domsvc.TextGenerator, log *logger.Logger) *FundamentalsAgent {
	return &FundamentalsAgent{market: market, news: news, gen: gen, log: log}
}

func (a *FundamentalsAgent) Name() models.AgentName { return models.AgentFundamentals }

func (a *FundamentalsAgent) Analyze(ctx context.Context, symbol string, report func(string)) (*models.Fragment, error) {
	report("Fetching company financials")
	fin, err := a.market.Profile(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("fundamentals %s: %w", symbol, err)
	}

	sources := []models.Source{{
		Type:  "data",
		Title: fmt.Sprintf("%s company profile and key ratios", symbol),
	}}
	if headlines, err := a.news.CompanyNews(ctx, symbol, 5); err != nil {
		a.log.Warn("company news unavailable", logger.String("symbol", symbol), logger.Error(err))
	} else {
		sources = append(sources, headlines...)
	}

	report("Analyzing financial health")
	summary, err := a.gen.Generate(ctx, fundamentalsSystemPrompt, a.buildPrompt(symbol, fin, sources))
	if err != nil {
		return nil, fmt.Errorf("fundamentals %s: %w", symbol, err)
	}

	return &models.Fragment{
		Agent: models.AgentFundamentals,
		Fundamentals: &models.FundamentalsFragment{
			Summary:    strings.TrimSpace(summary),
			Financials: fin,
			Sources:    sources,
		},
	}, nil
}

func (a *FundamentalsAgent) buildPrompt(symbol string, fin models.CompanyFinancials, sources []models.Source) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Analyze the fundamentals of %s (%s).\n\n", fin.Name, symbol)
	fmt.Fprintf(&sb, "Sector: %s\n", fin.Sector)
	fmt.Fprintf(&sb, "Market cap: %.0f\n", fin.MarketCap)
	fmt.Fprintf(&sb, "P/E (TTM): %.2f\n", fin.PERatio)
	fmt.Fprintf(&sb, "Revenue growth YoY: %.2f%%\n", fin.RevenueGrowth)
	fmt.Fprintf(&sb, "Net profit margin: %.2f%%\n", fin.ProfitMargin)
	fmt.Fprintf(&sb, "Debt/equity: %.2f\n", fin.DebtRatio)

	var headlines []string
	for _, s := range sources {
		if s.Type == "news" {
			headlines = append(headlines, "- "+s.Title)
		}
	}
	if len(headlines) > 0 {
		sb.WriteString("\nRecent headlines:\n")
		sb.WriteString(strings.Join(headlines, "\n"))
		sb.WriteString("\n")
	}

	sb.WriteString("\nProvide a short fundamental assessment covering valuation, growth, profitability and balance-sheet risk.")
	return sb.String()
}
