package repository

import (
	"context"
	"time"

	"StockSage/internal/domain/models"
)

// Publisher pushes frozen analysis results to a message bus for
// downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, r *models.AnalysisResult) error
	Close() error
}

// Archive persists frozen analysis results for later retrieval.
type Archive interface {
	Init(ctx context.Context) error
	Store(ctx context.Context, r *models.AnalysisResult) error
	Query(ctx context.Context, symbol string, from, to time.Time, limit int) ([]*models.AnalysisResult, error)
	Health(ctx context.Context) error
	Close() error
}

// Metrics records operational counters for the analysis pipeline.
type Metrics interface {
	RecordAgentDuration(agent string, seconds float64)
	RecordAgentFailure(agent, kind string)
	RecordEventEmitted(agent, status string)
	RecordLLMCall(provider string, seconds float64, err bool)
	RecordAnalysis(style string)
}
