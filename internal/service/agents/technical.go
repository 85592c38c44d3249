package agents

import (
	"context"
	"fmt"

	"StockSage/internal/domain/models"
	domsvc "StockSage/internal/domain/service"
	"StockSage/pkg/logger"
)

// candleHistoryDays gives SMA200 enough trading days to settle.
const candleHistoryDays = 365

// TechnicalAgent computes the indicator snapshot and its signal
// interpretations. Fully algorithmic, no model call.
type TechnicalAgent struct {
	market domsvc.MarketData
	engine domsvc.IndicatorEngine
	log    *logger.Logger
}

func NewTechnicalAgent(market domsvc.MarketData, engine domsvc.IndicatorEngine, log *logger.Logger) *TechnicalAgent {
	return &TechnicalAgent{market: market, engine: engine, log: log}
}

func (a *TechnicalAgent) Name() models.AgentName { return models.AgentTechnical }

func (a *TechnicalAgent) Analyze(ctx context.Context, symbol string, report func(string)) (*models.Fragment, error) {
	report("Fetching price history")
	candles, err := a.market.Candles(ctx, symbol, candleHistoryDays)
	if err != nil {
		return nil, fmt.Errorf("technical %s: %w", symbol, err)
	}

	report("Computing indicators")
	indicators, signals, err := a.engine.Compute(candles)
	if err != nil {
		return nil, fmt.Errorf("technical %s: %w", symbol, err)
	}

	return &models.Fragment{
		Agent: models.AgentTechnical,
		Technical: &models.TechnicalFragment{
			Signals:    signals,
			Indicators: indicators,
			Sources: []models.Source{{
				Type:  "data",
				Title: fmt.Sprintf("%s daily OHLCV, %d bars", symbol, len(candles)),
			}},
		},
	}, nil
}
