package service

import (
	"context"

	"StockSage/internal/domain/models"
)

// TextGenerator produces free-form analysis text from a prompt pair.
// Implementations wrap a language-model provider.
type TextGenerator interface {
	Generate(ctx context.Context, systemPrompt, userMessage string) (string, error)
}

// MarketData fetches price and company snapshots for a symbol.
type MarketData interface {
	Profile(ctx context.Context, symbol string) (models.CompanyFinancials, error)
	Quote(ctx context.Context, symbol string) (float64, error)
	Candles(ctx context.Context, symbol string, days int) ([]models.Candle, error)
}

// NewsFeed fetches recent headlines for sentiment analysis.
type NewsFeed interface {
	CompanyNews(ctx context.Context, symbol string, max int) ([]models.Source, error)
	MarketNews(ctx context.Context, max int) ([]models.Source, error)
}

// MacroData fetches the current macroeconomic snapshot.
type MacroData interface {
	Indicators(ctx context.Context) (models.MacroIndicators, error)
}

// IndicatorEngine computes the technical indicator snapshot and its
// signal interpretations from a candle series.
type IndicatorEngine interface {
	Compute(candles []models.Candle) (models.TechnicalIndicators, map[string]string, error)
}
