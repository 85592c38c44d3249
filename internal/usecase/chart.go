package usecase

import (
	"context"
	"fmt"
	"strings"

	"StockSage/internal/domain/models"
	domsvc "StockSage/internal/domain/service"
	"StockSage/internal/service/indicators"
)

// ChartUseCase provides the candle series backing the price chart,
// with the indicator snapshot computed over it.
type ChartUseCase struct {
	market domsvc.MarketData
	engine domsvc.IndicatorEngine
}

func NewChartUseCase(market domsvc.MarketData, engine domsvc.IndicatorEngine) *ChartUseCase {
	return &ChartUseCase{market: market, engine: engine}
}

type GetChartParams struct {
	Symbol string
	Days   int
}

type GetChartResult struct {
	Symbol     string                      `json:"symbol"`
	Days       int                         `json:"days"`
	Count      int                         `json:"count"`
	Candles    []models.Candle             `json:"candles"`
	Indicators *models.TechnicalIndicators `json:"indicators,omitempty"`
	Signals    map[string]string           `json:"signals,omitempty"`
	Confluence *indicators.Confluence      `json:"confluence,omitempty"`
}

const (
	minChartDays = 30
	maxChartDays = 1825
)

func (uc *ChartUseCase) GetChart(ctx context.Context, p GetChartParams) (*GetChartResult, error) {
	symbol := strings.ToUpper(strings.TrimSpace(p.Symbol))
	if symbol == "" {
		return nil, fmt.Errorf("symbol required")
	}
	if p.Days <= 0 {
		p.Days = 90
	}
	if p.Days < minChartDays {
		p.Days = minChartDays
	}
	if p.Days > maxChartDays {
		p.Days = maxChartDays
	}

	candles, err := uc.market.Candles(ctx, symbol, p.Days)
	if err != nil {
		return nil, fmt.Errorf("get chart: %w", err)
	}

	res := &GetChartResult{
		Symbol:  symbol,
		Days:    p.Days,
		Count:   len(candles),
		Candles: candles,
	}

	// Short series still chart fine, they just carry no indicators.
	if ind, signals, err := uc.engine.Compute(candles); err == nil {
		res.Indicators = &ind
		res.Signals = signals
		conf := indicators.ConfluenceScore(signals)
		res.Confluence = &conf
	}

	return res, nil
}
